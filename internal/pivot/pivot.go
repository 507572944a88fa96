// Package pivot reshapes the long-format attribute and sample collections of
// an FFI export into one wide table per method (and unit system).
//
// Each long record is a (subject, field, value) triple. Records are grouped
// by method name; within a method every distinct subject key becomes one
// row and every distinct field name one column.
package pivot

import (
	"fmt"
	"strings"

	"github.com/koustreak/ffiload/internal/database"
	"github.com/koustreak/ffiload/internal/entity"
	"github.com/koustreak/ffiload/internal/errs"
	"github.com/koustreak/ffiload/internal/logger"
)

// DefaultUnitSystem is the unit system whose tables carry no unit suffix.
const DefaultUnitSystem = "English"

// DefaultVersions are the export format versions that carry long-format
// attribute tables.
var DefaultVersions = []string{"1.05.13", "1.05.08"}

// Applies reports whether an export of the given format version needs
// pivoting.
func Applies(version string, versions []string) bool {
	for _, v := range versions {
		if v != "" && strings.Contains(version, v) {
			return true
		}
	}
	return false
}

// Result summarises one Expand call.
type Result struct {
	// Tables lists the wide tables added to the entity map, in creation order.
	Tables []string

	// Skipped counts long records without a resolvable method or field name.
	Skipped int

	// Collisions holds one errs.ErrKindConflict error per method whose key
	// columns did not identify a subject. Those methods produce no tables.
	Collisions []error

	// Synthesized names the source tables whose audit columns were absent
	// and filled with nil.
	Synthesized []string
}

// Engine expands entity maps.
type Engine struct {
	log *logger.Logger
}

// New returns an Engine logging through log (nil discards).
func New(log *logger.Logger) *Engine {
	return &Engine{log: logger.OrNop(log).Component("pivot")}
}

// Expand pivots the attribute and sample collections of m into per-method
// tables and removes the four long-format source tables from m.
func (e *Engine) Expand(m *entity.Map) *Result {
	res := &Result{}
	for _, k := range []kind{attributeKind, sampleKind} {
		e.expandKind(m, k, res)
	}
	m.Delete(TableAttributeRow, TableAttributeData, TableSampleRow, TableSampleData)
	return res
}

func (e *Engine) expandKind(m *entity.Map, k kind, res *Result) {
	src, ok := m.Get(k.source)
	if !ok {
		return
	}
	for _, col := range k.audit {
		if !src.HasColumn(col) {
			res.Synthesized = append(res.Synthesized, k.source)
			e.log.Debugf("%s has no audit columns; using nulls", k.source)
			break
		}
	}

	long := k.build(m)
	groups, order, skipped := groupByMethod(long)
	res.Skipped += skipped
	if skipped > 0 {
		e.log.Warnf("skipped %d %s records without method or field", skipped, k.suffix)
	}

	for _, method := range order {
		tables, err := pivotMethod(method, k, groups[method])
		if err != nil {
			res.Collisions = append(res.Collisions, err)
			e.log.ErrorWith("pivot collision", err, map[string]any{"method": method})
			continue
		}
		for _, t := range tables {
			m.Set(t)
			res.Tables = append(res.Tables, t.Name)
			e.log.Table(t.Name).Debugf("pivoted %d rows", t.Len())
		}
	}
}

func groupByMethod(long []longRecord) (map[string][]longRecord, []string, int) {
	groups := map[string][]longRecord{}
	var order []string
	skipped := 0
	for _, r := range long {
		if TableName(r.method) == "" || r.field == "" {
			skipped++
			continue
		}
		if _, ok := groups[r.method]; !ok {
			order = append(order, r.method)
		}
		groups[r.method] = append(groups[r.method], r)
	}
	return groups, order, skipped
}

// pivotMethod builds the wide table(s) of one method. Records are split by
// unit system first; a missing unit system counts as the default one.
func pivotMethod(method string, k kind, long []longRecord) ([]*entity.Table, error) {
	type unitGroup struct {
		label   string
		records []longRecord
	}
	var units []*unitGroup
	byUnit := map[string]*unitGroup{}
	for _, r := range long {
		label := unitLabel(r.unit)
		g, ok := byUnit[label]
		if !ok {
			g = &unitGroup{label: label}
			byUnit[label] = g
			units = append(units, g)
		}
		g.records = append(g.records, r)
	}

	base := TableName(method)
	tables := make([]*entity.Table, 0, len(units))
	for _, g := range units {
		name := base + "_" + k.suffix
		if len(units) > 1 && g.label != DefaultUnitSystem {
			name = base + "_" + g.label + "_" + k.suffix
		}
		t, err := widen(name, k.keys, g.records)
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindConflict, fmt.Sprintf("pivot %q", method), err)
		}
		if t.Len() > 0 {
			tables = append(tables, t)
		}
	}
	return tables, nil
}

// widen turns long records sharing one method and unit system into a wide
// table keyed by keys.
func widen(name string, keys []string, long []longRecord) (*entity.Table, error) {
	t := entity.NewTable(name, keys...)
	rows := map[string]entity.Record{}
	seen := map[string]bool{}

	for _, r := range long {
		subject := database.TupleKey(r.key)
		rec, ok := rows[subject]
		if !ok {
			rec = make(entity.Record, len(keys))
			for i, col := range keys {
				rec[col] = r.key[i]
			}
			rows[subject] = rec
			t.Records = append(t.Records, rec)
		}

		cell := subject + "\x1e" + r.field
		if seen[cell] {
			return nil, errs.Newf(errs.ErrKindConflict,
				"field %q appears twice for subject %v", r.field, r.key)
		}
		seen[cell] = true

		if containsKey(keys, r.field) {
			return nil, errs.Newf(errs.ErrKindConflict, "field %q shadows a key column", r.field)
		}
		t.AddColumn(r.field)
		rec[r.field] = r.value
	}
	return t, nil
}

func containsKey(keys []string, field string) bool {
	for _, k := range keys {
		if k == field {
			return true
		}
	}
	return false
}

func unitLabel(v any) string {
	s := strings.TrimSpace(text(v))
	if s == "" {
		return DefaultUnitSystem
	}
	return TableName(s)
}

// TableName derives a table name from a method name by removing spaces,
// hyphens and parentheses.
func TableName(method string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '-', '(', ')':
			return -1
		}
		return r
	}, strings.TrimSpace(method))
}
