// Package connect opens the store adapter named by a database.Config.
package connect

import (
	"context"

	"github.com/koustreak/ffiload/internal/database"
	"github.com/koustreak/ffiload/internal/database/mssql"
	"github.com/koustreak/ffiload/internal/database/mysql"
	"github.com/koustreak/ffiload/internal/database/postgres"
	"github.com/koustreak/ffiload/internal/database/sqlite"
	"github.com/koustreak/ffiload/internal/errs"
)

// Open validates cfg and connects the matching driver.
func Open(ctx context.Context, cfg *database.Config) (database.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		db  database.DB
		err error
	)
	switch cfg.Driver {
	case database.DriverPostgres:
		db, err = unwrap(postgres.New(ctx, cfg))
	case database.DriverMySQL:
		db, err = unwrap(mysql.New(ctx, cfg))
	case database.DriverSQLServer:
		db, err = unwrap(mssql.New(ctx, cfg))
	case database.DriverSQLite:
		db, err = unwrap(sqlite.New(ctx, cfg))
	default:
		err = errs.Newf(errs.ErrKindInvalidInput, "unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return db, nil
}

// unwrap keeps a nil driver pointer from becoming a non-nil interface.
func unwrap[T database.DB](d T, err error) (database.DB, error) {
	if err != nil {
		return nil, err
	}
	return d, nil
}
