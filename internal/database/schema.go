package database

import "strings"

// Schema is the reflected structure of a store: every user table keyed by name.
type Schema struct {
	Tables map[string]*TableInfo
}

// TableInfo describes one table.
type TableInfo struct {
	Name        string
	Columns     []*ColumnInfo
	PrimaryKey  []string // ordered as declared in the key constraint
	ForeignKeys []*ForeignKey
}

// ColumnInfo describes one column.
type ColumnInfo struct {
	Name       string
	DataType   string
	Nullable   bool
	Default    *string
	IsPrimary  bool
	IsIdentity bool // auto-generated (IDENTITY / AUTO_INCREMENT / serial)
}

// ForeignKey is a single column reference to another table's column.
// Composite references appear as one ForeignKey per column pair.
type ForeignKey struct {
	Column    string
	RefTable  string
	RefColumn string
}

// Column returns the named column, matching case-insensitively when no exact
// match exists.
func (t *TableInfo) Column(name string) *ColumnInfo {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}

// HasIdentity reports whether any column is store-generated.
func (t *TableInfo) HasIdentity() bool {
	for _, c := range t.Columns {
		if c.IsIdentity {
			return true
		}
	}
	return false
}

// MarkKeys flags primary-key columns from t.PrimaryKey.
func (t *TableInfo) MarkKeys() {
	pk := make(map[string]bool, len(t.PrimaryKey))
	for _, name := range t.PrimaryKey {
		pk[name] = true
	}
	for _, c := range t.Columns {
		c.IsPrimary = pk[c.Name]
	}
}

// integerTypes are the store column types whose values are whole numbers.
var integerTypes = map[string]bool{
	"int": true, "integer": true, "smallint": true, "bigint": true, "tinyint": true,
	"mediumint": true, "int2": true, "int4": true, "int8": true,
	"serial": true, "bigserial": true, "smallserial": true,
}

// IsIntegerType reports whether a reflected DataType holds whole numbers.
// Parameters and modifiers ("int(11)", "bigint unsigned") are ignored.
func IsIntegerType(dataType string) bool {
	t := strings.ToLower(strings.TrimSpace(dataType))
	if i := strings.IndexAny(t, "( "); i >= 0 {
		t = t[:i]
	}
	return integerTypes[t]
}
