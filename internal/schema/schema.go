// Package schema reflects primary- and foreign-key metadata from the store
// once and serves it from a cache for the rest of the run.
package schema

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/koustreak/ffiload/internal/database"
	"github.com/koustreak/ffiload/internal/errs"
)

// Reader is the part of database.DB the introspector needs.
type Reader interface {
	// InspectSchema returns the full schema (all tables and keys).
	InspectSchema(ctx context.Context) (*database.Schema, error)
}

// Ref is one end of a foreign-key edge.
type Ref struct {
	Table  string
	Column string
}

// Introspector caches the reflected schema. The cache is filled lazily on
// first access and lives until Reset. Safe for concurrent use.
type Introspector struct {
	src Reader

	mu     sync.Mutex
	cached *database.Schema
}

// New returns an Introspector reading from src.
func New(src Reader) *Introspector {
	return &Introspector{src: src}
}

// Reset drops the cache; the next lookup reflects the store again.
func (i *Introspector) Reset() {
	i.mu.Lock()
	i.cached = nil
	i.mu.Unlock()
}

func (i *Introspector) load(ctx context.Context) (*database.Schema, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.cached != nil {
		return i.cached, nil
	}
	s, err := i.src.InspectSchema(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.KindOf(err), "reflect schema", err)
	}
	if s.Tables == nil {
		s.Tables = map[string]*database.TableInfo{}
	}
	i.cached = s
	return s, nil
}

// Table returns the reflected table. Names match exactly first, then
// case-insensitively. An unknown name is an errs.ErrKindNotFound error.
func (i *Introspector) Table(ctx context.Context, name string) (*database.TableInfo, error) {
	s, err := i.load(ctx)
	if err != nil {
		return nil, err
	}
	if t, ok := s.Tables[name]; ok {
		return t, nil
	}
	for tn, t := range s.Tables {
		if strings.EqualFold(tn, name) {
			return t, nil
		}
	}
	return nil, errs.Newf(errs.ErrKindNotFound, "table not found: %s", name)
}

// Has reports whether the store has the named table.
func (i *Introspector) Has(ctx context.Context, name string) (bool, error) {
	_, err := i.Table(ctx, name)
	if errs.IsNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

// PrimaryKeys returns the table's key columns in declared order.
func (i *Introspector) PrimaryKeys(ctx context.Context, table string) ([]string, error) {
	t, err := i.Table(ctx, table)
	if err != nil {
		return nil, err
	}
	return slices.Clone(t.PrimaryKey), nil
}

// ForeignKeys returns, per referencing column, every (table, column) it
// references.
func (i *Introspector) ForeignKeys(ctx context.Context, table string) (map[string][]Ref, error) {
	t, err := i.Table(ctx, table)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]Ref, len(t.ForeignKeys))
	for _, fk := range t.ForeignKeys {
		out[fk.Column] = append(out[fk.Column], Ref{Table: fk.RefTable, Column: fk.RefColumn})
	}
	return out, nil
}

// ReferencedTables returns the distinct tables table references, in
// declaration order.
func (i *Introspector) ReferencedTables(ctx context.Context, table string) ([]string, error) {
	t, err := i.Table(ctx, table)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, fk := range t.ForeignKeys {
		if !slices.Contains(out, fk.RefTable) {
			out = append(out, fk.RefTable)
		}
	}
	return out, nil
}
