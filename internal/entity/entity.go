// Package entity holds the in-memory form of one export file: named tables
// of flat records, kept in the order they were read.
package entity

import "slices"

// Record is one flat row: column name to scalar value. Values are strings,
// nil, or typed scalars (int64, float64, time.Time) after normalisation.
type Record map[string]any

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Table is a named, ordered collection of records with a stable column order.
type Table struct {
	Name    string
	Columns []string
	Records []Record
}

// NewTable returns an empty table.
func NewTable(name string, columns ...string) *Table {
	return &Table{Name: name, Columns: slices.Clone(columns)}
}

// Append adds rec, extending Columns with any column seen for the first time.
// Several new columns from one record are added in lexical order; callers
// wanting document order declare columns with AddColumn first.
func (t *Table) Append(rec Record) {
	var fresh []string
	for col := range rec {
		if !slices.Contains(t.Columns, col) {
			fresh = append(fresh, col)
		}
	}
	slices.Sort(fresh)
	t.Columns = append(t.Columns, fresh...)
	t.Records = append(t.Records, rec)
}

// AddColumn appends col to the column order if absent. Existing records read
// it as nil.
func (t *Table) AddColumn(col string) {
	if !slices.Contains(t.Columns, col) {
		t.Columns = append(t.Columns, col)
	}
}

// HasColumn reports whether col is part of the table.
func (t *Table) HasColumn(col string) bool {
	return slices.Contains(t.Columns, col)
}

// DropColumns removes cols from the column order and from every record.
func (t *Table) DropColumns(cols ...string) {
	t.Columns = slices.DeleteFunc(t.Columns, func(c string) bool {
		return slices.Contains(cols, c)
	})
	for _, rec := range t.Records {
		for _, c := range cols {
			delete(rec, c)
		}
	}
}

// Len returns the number of records.
func (t *Table) Len() int {
	return len(t.Records)
}

// Rows projects the records onto cols, in order, for writing.
func (t *Table) Rows(cols []string) [][]any {
	rows := make([][]any, len(t.Records))
	for i, rec := range t.Records {
		row := make([]any, len(cols))
		for j, c := range cols {
			row[j] = rec[c]
		}
		rows[i] = row
	}
	return rows
}

// Map is the entity map of one file: tables by name, iterated in insertion order.
type Map struct {
	order  []string
	tables map[string]*Table
}

// NewMap returns an empty map.
func NewMap() *Map {
	return &Map{tables: make(map[string]*Table)}
}

// Get returns the named table.
func (m *Map) Get(name string) (*Table, bool) {
	t, ok := m.tables[name]
	return t, ok
}

// Has reports whether the named table is present.
func (m *Map) Has(name string) bool {
	_, ok := m.tables[name]
	return ok
}

// Set stores t under t.Name, keeping the original position on replace.
func (m *Map) Set(t *Table) {
	if _, ok := m.tables[t.Name]; !ok {
		m.order = append(m.order, t.Name)
	}
	m.tables[t.Name] = t
}

// Delete removes the named tables.
func (m *Map) Delete(names ...string) {
	for _, name := range names {
		if _, ok := m.tables[name]; !ok {
			continue
		}
		delete(m.tables, name)
		m.order = slices.DeleteFunc(m.order, func(n string) bool { return n == name })
	}
}

// Names returns table names in insertion order.
func (m *Map) Names() []string {
	return slices.Clone(m.order)
}

// Len returns the number of tables.
func (m *Map) Len() int {
	return len(m.order)
}

// Ensure returns the named table, creating an empty one if absent.
func (m *Map) Ensure(name string) *Table {
	if t, ok := m.tables[name]; ok {
		return t
	}
	t := NewTable(name)
	m.Set(t)
	return t
}
