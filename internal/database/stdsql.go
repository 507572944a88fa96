package database

import (
	"context"
	"database/sql"
	"errors"
)

// ErrorMapper translates a native driver error into an *errs.Error.
type ErrorMapper func(err error, msg string) error

// SQLDB carries the pieces of DB that every database/sql backed driver shares
// (MySQL, SQL Server, SQLite). Drivers embed it and add Dialect,
// InspectSchema and SetIdentityInsert.
type SQLDB struct {
	Pool     *sql.DB
	MapError ErrorMapper

	// Convert, when set, rewrites each value scanned into an *any given the
	// column's database type name (e.g. SQL Server UNIQUEIDENTIFIER bytes
	// to GUID text).
	Convert func(dbType string, v any) any
}

// Ping verifies the database is reachable.
func (s *SQLDB) Ping(ctx context.Context) error {
	if err := s.Pool.PingContext(ctx); err != nil {
		return s.MapError(err, "ping failed")
	}
	return nil
}

// Close releases the pool.
func (s *SQLDB) Close() {
	_ = s.Pool.Close()
}

// Query executes a SQL statement that returns multiple rows.
func (s *SQLDB) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	return queryOn(ctx, s.Pool, s, query, args)
}

// Exec executes a statement and returns the affected row count.
func (s *SQLDB) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return execOn(ctx, s.Pool, s, query, args)
}

// Session runs fn on a dedicated connection inside a transaction.
func (s *SQLDB) Session(ctx context.Context, fn func(Session) error) (err error) {
	conn, err := s.Pool.Conn(ctx)
	if err != nil {
		return s.MapError(err, "acquire session")
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return s.MapError(err, "begin session")
	}

	if err := fn(&sqlSession{tx: tx, parent: s}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, s.MapError(rbErr, "rollback failed"))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return s.MapError(err, "commit failed")
	}
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func queryOn(ctx context.Context, q queryer, s *SQLDB, query string, args []any) (Rows, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.MapError(err, "query failed")
	}
	r := &sqlRows{rows: rows, convert: s.Convert}
	if s.Convert != nil {
		types, err := rows.ColumnTypes()
		if err != nil {
			_ = rows.Close()
			return nil, s.MapError(err, "read column types")
		}
		r.types = make([]string, len(types))
		for i, t := range types {
			r.types[i] = t.DatabaseTypeName()
		}
	}
	return r, nil
}

func execOn(ctx context.Context, q queryer, s *SQLDB, query string, args []any) (int64, error) {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, s.MapError(err, "exec failed")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

type sqlSession struct {
	tx     *sql.Tx
	parent *SQLDB
}

func (s *sqlSession) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	return queryOn(ctx, s.tx, s.parent, query, args)
}

func (s *sqlSession) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return execOn(ctx, s.tx, s.parent, query, args)
}

// sqlRows wraps *sql.Rows to satisfy Rows.
type sqlRows struct {
	rows    *sql.Rows
	convert func(string, any) any
	types   []string
}

func (r *sqlRows) Next() bool                 { return r.rows.Next() }
func (r *sqlRows) Columns() ([]string, error) { return r.rows.Columns() }
func (r *sqlRows) Close()                     { _ = r.rows.Close() }
func (r *sqlRows) Err() error                 { return r.rows.Err() }

func (r *sqlRows) Scan(dest ...any) error {
	if err := r.rows.Scan(dest...); err != nil {
		return err
	}
	if r.convert == nil {
		return nil
	}
	for i, d := range dest {
		if p, ok := d.(*any); ok && i < len(r.types) {
			*p = r.convert(r.types[i], *p)
		}
	}
	return nil
}
