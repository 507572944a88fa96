// Package dedup classifies an export file against the store by the
// human-meaningful identities of its four top hierarchy levels.
//
// The verdict is advisory: the inserter filters rows by primary key on its
// own, so a Partial file still loads only what is new.
package dedup

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/koustreak/ffiload/internal/database"
	"github.com/koustreak/ffiload/internal/entity"
	"github.com/koustreak/ffiload/internal/errs"
	"github.com/koustreak/ffiload/internal/logger"
)

// Verdict is the file-level classification.
type Verdict int

const (
	// VerdictNew means no identity at any level exists in the store.
	VerdictNew Verdict = iota
	// Partial means some identities exist and some do not.
	Partial
	// Duplicate means every identity at every level already exists.
	Duplicate
)

func (v Verdict) String() string {
	switch v {
	case Partial:
		return "partial"
	case Duplicate:
		return "duplicate"
	default:
		return "new"
	}
}

// MarshalText lets reports carry the verdict by name.
func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText parses a verdict name.
func (v *Verdict) UnmarshalText(b []byte) error {
	switch string(b) {
	case "new":
		*v = VerdictNew
	case "partial":
		*v = Partial
	case "duplicate":
		*v = Duplicate
	default:
		return errs.Newf(errs.ErrKindInvalidInput, "unknown verdict %q", b)
	}
	return nil
}

// Level describes one identity level: the table carrying it and the column
// holding its human-meaningful key.
type Level struct {
	Name   string
	Table  string
	Column string
	Date   bool
}

// Levels are the four hierarchy levels checked, top down.
var Levels = []Level{
	{Name: "registration unit", Table: "RegistrationUnit", Column: "RegistrationUnit_Name"},
	{Name: "project", Table: "ProjectUnit", Column: "ProjectUnit_Name"},
	{Name: "plot", Table: "MacroPlot", Column: "MacroPlot_Name"},
	{Name: "sample event", Table: "SampleEvent", Column: "SampleEvent_Date", Date: true},
}

// Identity is one candidate key of a level. Label is what operators see;
// for sample events it adds the plot name.
type Identity struct {
	Key   string `yaml:"key"`
	Label string `yaml:"label"`
}

// LevelResult partitions one level's candidates.
type LevelResult struct {
	Level    string     `yaml:"level"`
	Existing []Identity `yaml:"existing,omitempty"`
	New      []Identity `yaml:"new,omitempty"`
}

// Report is the outcome of Check.
type Report struct {
	Verdict Verdict       `yaml:"verdict"`
	Levels  []LevelResult `yaml:"levels"`
}

// Store is the part of database.DB the detector reads through.
type Store interface {
	database.Querier
	Dialect() database.Dialect
}

// Detector runs duplicate checks against one store.
type Detector struct {
	store     Store
	batchSize int
	log       *logger.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithBatchSize bounds the IN-list of a single lookup query.
func WithBatchSize(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.batchSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(d *Detector) { d.log = l }
}

// New returns a Detector reading from store.
func New(store Store, opts ...Option) *Detector {
	d := &Detector{store: store, batchSize: database.DefaultBatchSize}
	for _, opt := range opts {
		opt(d)
	}
	d.log = logger.OrNop(d.log).Component("dedup")
	return d
}

// Check classifies the file held in m. Levels whose table is absent from
// the file contribute no candidates. A file with no candidates at all has no
// new identity at any level and is a Duplicate.
func (d *Detector) Check(ctx context.Context, m *entity.Map) (*Report, error) {
	report := &Report{}
	var candidates, existing int

	for _, lvl := range Levels {
		ids, raw := d.candidates(m, lvl)
		found, err := d.lookup(ctx, lvl, raw)
		if err != nil {
			return nil, fmt.Errorf("checking %s identities: %w", lvl.Name, err)
		}

		res := LevelResult{Level: lvl.Name}
		for _, id := range ids {
			if found[id.Key] {
				res.Existing = append(res.Existing, id)
			} else {
				res.New = append(res.New, id)
			}
		}
		candidates += len(ids)
		existing += len(res.Existing)
		report.Levels = append(report.Levels, res)

		if len(res.New) > 0 {
			d.log.InfoWith("new identities", map[string]any{
				"level": lvl.Name,
				"count": len(res.New),
			})
		}
	}

	switch {
	case existing == candidates:
		report.Verdict = Duplicate
	case existing == 0:
		report.Verdict = VerdictNew
	default:
		report.Verdict = Partial
	}
	d.log.With().Str("verdict", report.Verdict.String()).Int("identities", candidates).Logger().Info("duplicate check")
	return report, nil
}

// candidates returns the distinct identities of a level in file order, plus
// the raw values to query with.
func (d *Detector) candidates(m *entity.Map, lvl Level) ([]Identity, []any) {
	t, ok := m.Get(lvl.Table)
	if !ok {
		return nil, nil
	}

	var plots map[string]any
	if lvl.Date {
		plots = plotNames(m)
	}

	seen := map[string]bool{}
	var ids []Identity
	var raw []any
	for _, rec := range t.Records {
		v := rec[lvl.Column]
		if v == nil {
			continue
		}
		key := identityKey(lvl, v)
		if seen[key] {
			continue
		}
		seen[key] = true

		label := key
		if lvl.Date {
			if name, ok := plots[database.KeyString(rec["SampleEvent_Plot_GUID"])]; ok && name != nil {
				label = fmt.Sprintf("%s @ %v", key, name)
			}
		}
		ids = append(ids, Identity{Key: key, Label: label})
		raw = append(raw, v)
	}
	return ids, raw
}

// lookup returns the keys among values that exist in the store, querying in
// chunks of batchSize.
func (d *Detector) lookup(ctx context.Context, lvl Level, values []any) (map[string]bool, error) {
	if lvl.Date {
		return d.lookupDates(ctx, lvl, values)
	}
	found := map[string]bool{}
	for _, chunk := range database.Chunk(values, d.batchSize) {
		b := database.Select(lvl.Table, d.store.Dialect()).
			Columns(lvl.Column).
			WhereIn(lvl.Column, chunk)
		if err := d.collect(ctx, lvl, b, found); err != nil {
			return nil, err
		}
	}
	return found, nil
}

// lookupDates matches date identities by instant rather than by text: the
// store may render the same date differently from the export. Each chunk of
// parsed dates is fetched as a whole-day range and compared by DateKey.
// Values that do not parse are matched as text.
func (d *Detector) lookupDates(ctx context.Context, lvl Level, values []any) (map[string]bool, error) {
	var dates []time.Time
	var text []any
	for _, v := range values {
		if t, ok := database.ParseTimestamp(database.KeyString(v), nil); ok {
			dates = append(dates, t)
		} else {
			text = append(text, v)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	found := map[string]bool{}
	for _, chunk := range database.Chunk(dates, d.batchSize) {
		from := chunk[0].Format(dayLayout)
		to := chunk[len(chunk)-1].AddDate(0, 0, 1).Format(dayLayout)
		b := database.Select(lvl.Table, d.store.Dialect()).
			Columns(lvl.Column).
			Where(lvl.Column, ">=", from).
			Where(lvl.Column, "<", to)
		if err := d.collect(ctx, lvl, b, found); err != nil {
			return nil, err
		}
	}
	for _, chunk := range database.Chunk(text, d.batchSize) {
		b := database.Select(lvl.Table, d.store.Dialect()).
			Columns(lvl.Column).
			WhereIn(lvl.Column, chunk)
		if err := d.collect(ctx, lvl, b, found); err != nil {
			return nil, err
		}
	}
	return found, nil
}

const dayLayout = "2006-01-02"

// collect runs b and adds the identity key of every non-null value to found.
func (d *Detector) collect(ctx context.Context, lvl Level, b *database.SelectBuilder, found map[string]bool) error {
	sql, args, err := b.Build()
	if err != nil {
		return err
	}
	rows, err := database.QueryMaps(ctx, d.store, sql, args)
	if err != nil {
		return err
	}
	for _, row := range rows {
		for _, v := range row {
			if v != nil {
				found[identityKey(lvl, v)] = true
			}
		}
	}
	return nil
}

func identityKey(lvl Level, v any) string {
	if lvl.Date {
		return database.DateKey(v)
	}
	return database.KeyString(v)
}

func plotNames(m *entity.Map) map[string]any {
	out := map[string]any{}
	t, ok := m.Get("MacroPlot")
	if !ok {
		return out
	}
	for _, rec := range t.Records {
		if g := rec["MacroPlot_GUID"]; g != nil {
			out[database.KeyString(g)] = rec["MacroPlot_Name"]
		}
	}
	return out
}
