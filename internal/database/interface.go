package database

import "context"

// Querier is the statement surface shared by a pooled DB and a Session.
type Querier interface {
	// Query executes a SQL statement that returns multiple rows.
	Query(ctx context.Context, sql string, args ...any) (Rows, error)

	// Exec executes a SQL statement and returns the number of affected rows.
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
}

// DB is the central contract for all store operations.
// The schema introspector, duplicate detector and inserter talk only to this
// interface; they never import a driver package directly.
type DB interface {
	Querier

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the connection pool.
	Close()

	// Dialect reports the SQL flavour the builders must emit for this store.
	Dialect() Dialect

	// InspectSchema returns the full schema of the store.
	// This is expensive; callers should cache the result.
	InspectSchema(ctx context.Context) (*Schema, error)

	// Session runs fn on a dedicated connection inside a transaction.
	// The transaction commits if fn returns nil and rolls back otherwise.
	// No session outlives the call.
	Session(ctx context.Context, fn func(Session) error) error

	// SetIdentityInsert toggles explicit writes into an identity column of
	// table for the duration of sess. Stores or tables without such a column
	// return an errs.ErrKindUnsupported error.
	SetIdentityInsert(ctx context.Context, sess Session, table string, on bool) error
}

// Session is a scoped unit of work on one connection.
type Session interface {
	Querier
}

// Rows is an abstraction over a database result set.
// Callers must always call Close() when done, even on error.
type Rows interface {
	// Next advances to the next row.
	// Returns false when no more rows exist or on error.
	Next() bool

	// Scan copies the current row's columns into the provided destinations.
	Scan(dest ...any) error

	// Columns returns the column names of the result set.
	Columns() ([]string, error)

	// Close releases resources held by the result set.
	Close()

	// Err returns any error encountered during iteration.
	Err() error
}
