package dedup_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/koustreak/ffiload/internal/database"
	"github.com/koustreak/ffiload/internal/database/sqlite/sqlitetest"
	"github.com/koustreak/ffiload/internal/dedup"
	"github.com/koustreak/ffiload/internal/entity"
	"github.com/koustreak/ffiload/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ddl = []string{
	`CREATE TABLE RegistrationUnit (RegistrationUnit_GUID TEXT PRIMARY KEY, RegistrationUnit_Name TEXT)`,
	`CREATE TABLE ProjectUnit (ProjectUnit_GUID TEXT PRIMARY KEY, ProjectUnit_Name TEXT)`,
	`CREATE TABLE MacroPlot (MacroPlot_GUID TEXT PRIMARY KEY, MacroPlot_Name TEXT)`,
	`CREATE TABLE SampleEvent (SampleEvent_GUID TEXT PRIMARY KEY, SampleEvent_Plot_GUID TEXT, SampleEvent_Date TEXT)`,
	`INSERT INTO RegistrationUnit VALUES ('RU-1', 'Unit A')`,
	`INSERT INTO ProjectUnit VALUES ('PU-1', 'P1')`,
	`INSERT INTO MacroPlot VALUES ('MP-1', 'Plot1')`,
	`INSERT INTO SampleEvent VALUES ('SE-1', 'MP-1', '2020-01-01T00:00:00.000')`,
}

// countingStore counts queries issued through it.
type countingStore struct {
	dedup.Store
	queries int
}

func (c *countingStore) Query(ctx context.Context, sql string, args ...any) (database.Rows, error) {
	c.queries++
	return c.Store.Query(ctx, sql, args...)
}

func file(unit, project, plot string, dates ...string) *entity.Map {
	m := entity.NewMap()
	ru := entity.NewTable("RegistrationUnit", "RegistrationUnit_GUID", "RegistrationUnit_Name")
	ru.Append(entity.Record{"RegistrationUnit_GUID": "RU-1", "RegistrationUnit_Name": unit})
	m.Set(ru)

	pu := entity.NewTable("ProjectUnit", "ProjectUnit_GUID", "ProjectUnit_Name")
	pu.Append(entity.Record{"ProjectUnit_GUID": "PU-1", "ProjectUnit_Name": project})
	m.Set(pu)

	mp := entity.NewTable("MacroPlot", "MacroPlot_GUID", "MacroPlot_Name")
	mp.Append(entity.Record{"MacroPlot_GUID": "MP-1", "MacroPlot_Name": plot})
	m.Set(mp)

	se := entity.NewTable("SampleEvent", "SampleEvent_GUID", "SampleEvent_Plot_GUID", "SampleEvent_Date")
	for i, d := range dates {
		se.Append(entity.Record{
			"SampleEvent_GUID":      fmt.Sprintf("SE-%d", i+1),
			"SampleEvent_Plot_GUID": "MP-1",
			"SampleEvent_Date":      d,
		})
	}
	m.Set(se)
	return m
}

func TestCheck_Duplicate(t *testing.T) {
	db := sqlitetest.Open(t, ddl...)

	rep, err := dedup.New(db).Check(context.Background(),
		file("Unit A", "P1", "Plot1", "2020-01-01T00:00:00.000"))
	require.NoError(t, err)

	assert.Equal(t, dedup.Duplicate, rep.Verdict)
	require.Len(t, rep.Levels, 4)
	for _, lvl := range rep.Levels {
		assert.Empty(t, lvl.New, lvl.Level)
		assert.Len(t, lvl.Existing, 1, lvl.Level)
	}
}

func TestCheck_PartialReportsOnlyNewEvent(t *testing.T) {
	db := sqlitetest.Open(t, ddl...)

	rep, err := dedup.New(db).Check(context.Background(),
		file("Unit A", "P1", "Plot1", "2020-02-01T00:00:00.000"))
	require.NoError(t, err)

	assert.Equal(t, dedup.Partial, rep.Verdict)
	for _, lvl := range rep.Levels[:3] {
		assert.Empty(t, lvl.New, lvl.Level)
	}
	event := rep.Levels[3]
	assert.Equal(t, "sample event", event.Level)
	require.Len(t, event.New, 1)
	assert.Equal(t, "2020-02-01T00:00:00.000", event.New[0].Key)
	assert.Equal(t, "2020-02-01T00:00:00.000 @ Plot1", event.New[0].Label)
	assert.Empty(t, event.Existing)
}

func TestCheck_New(t *testing.T) {
	db := sqlitetest.Open(t, ddl...)

	rep, err := dedup.New(db).Check(context.Background(),
		file("Unit B", "P9", "Plot9", "2021-06-01T00:00:00.000"))
	require.NoError(t, err)

	assert.Equal(t, dedup.VerdictNew, rep.Verdict)
	assert.Equal(t, "new", rep.Verdict.String())
}

func TestCheck_EmptyFileIsDuplicate(t *testing.T) {
	db := sqlitetest.Open(t, ddl...)

	// no level has a new identity
	rep, err := dedup.New(db).Check(context.Background(), entity.NewMap())
	require.NoError(t, err)
	assert.Equal(t, dedup.Duplicate, rep.Verdict)
	for _, lvl := range rep.Levels {
		assert.Empty(t, lvl.New, lvl.Level)
	}
}

func TestCheck_DateFormsCompareEqual(t *testing.T) {
	db := sqlitetest.Open(t, ddl...)

	// the same date twice in the file
	m := file("Unit A", "P1", "Plot1", "2020-01-01T00:00:00.000", "2020-01-01T00:00:00.000")
	rep, err := dedup.New(db).Check(context.Background(), m)
	require.NoError(t, err)

	assert.Equal(t, dedup.Duplicate, rep.Verdict)
	assert.Len(t, rep.Levels[3].Existing, 1, "repeated dates collapse to one identity")
}

func TestCheck_StoreDateRendering(t *testing.T) {
	tests := []struct {
		name     string
		stored   string
		verdict  dedup.Verdict
		existing int
	}{
		{"space separated", "2020-01-01 00:00:00", dedup.Duplicate, 1},
		{"date only", "2020-01-01", dedup.Duplicate, 1},
		{"same day other time", "2020-01-01 08:30:00", dedup.Partial, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := sqlitetest.Open(t, ddl[:7]...)
			_, err := db.Exec(context.Background(),
				`INSERT INTO SampleEvent VALUES ('SE-1', 'MP-1', ?)`, tt.stored)
			require.NoError(t, err)

			rep, err := dedup.New(db).Check(context.Background(),
				file("Unit A", "P1", "Plot1", "2020-01-01T00:00:00.000"))
			require.NoError(t, err)

			assert.Equal(t, tt.verdict, rep.Verdict)
			assert.Len(t, rep.Levels[3].Existing, tt.existing)
		})
	}
}

func TestCheck_Chunked(t *testing.T) {
	db := sqlitetest.Open(t, ddl...)
	for i := 0; i < 120; i++ {
		_, err := db.Exec(context.Background(),
			`INSERT INTO SampleEvent VALUES (?, 'MP-1', ?)`,
			fmt.Sprintf("SE-X%d", i), fmt.Sprintf("2019-01-01T00:%02d:%02d.000", i/60, i%60))
		require.NoError(t, err)
	}

	var dates []string
	for i := 0; i < 250; i++ {
		dates = append(dates, fmt.Sprintf("2019-01-01T00:%02d:%02d.000", i/60, i%60))
	}
	m := file("Unit A", "P1", "Plot1", dates...)

	store := &countingStore{Store: db}
	rep, err := dedup.New(store, dedup.WithBatchSize(100)).Check(context.Background(), m)
	require.NoError(t, err)

	// three single-chunk levels plus ceil(250/100) event chunks
	assert.Equal(t, 3+3, store.queries)
	assert.Equal(t, dedup.Partial, rep.Verdict)
	assert.Len(t, rep.Levels[3].Existing, 120)
	assert.Len(t, rep.Levels[3].New, 130)
}

func TestCheck_MissingStoreTable(t *testing.T) {
	db := sqlitetest.Open(t, ddl[:3]...)

	_, err := dedup.New(db).Check(context.Background(),
		file("Unit A", "P1", "Plot1", "2020-01-01T00:00:00.000"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sample event")
	assert.True(t, errs.IsNotFound(err))
}
