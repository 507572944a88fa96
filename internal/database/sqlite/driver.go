package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/koustreak/ffiload/internal/database"
	"github.com/koustreak/ffiload/internal/errs"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Driver is an embedded SQLite implementation of database.DB backed by
// modernc.org/sqlite. Used for local runs and the store-backed tests.
type Driver struct {
	*database.SQLDB
}

// New opens the database file named by cfg.DSN (a path, "file:" URI or
// ":memory:"), enabling foreign-key enforcement.
func New(ctx context.Context, cfg *database.Config) (*Driver, error) {
	db, err := sql.Open("sqlite", withPragmas(cfg.DSN))
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid DSN", err)
	}
	// One writer; a session holds the only connection for its duration.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	d := &Driver{SQLDB: &database.SQLDB{
		Pool:     db,
		MapError: mapError,
	}}

	if err := d.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

func withPragmas(dsn string) string {
	if strings.Contains(dsn, "_pragma=foreign_keys") {
		return dsn
	}
	if !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Dialect reports DialectSQLite.
func (d *Driver) Dialect() database.Dialect {
	return database.DialectSQLite
}

// SetIdentityInsert is not applicable: SQLite accepts explicit rowid values.
func (d *Driver) SetIdentityInsert(_ context.Context, _ database.Session, table string, _ bool) error {
	return errs.Newf(errs.ErrKindUnsupported, "identity insert not applicable to %s", table)
}

// InspectSchema reflects every user table through the pragma table functions.
func (d *Driver) InspectSchema(ctx context.Context) (*database.Schema, error) {
	tables, err := d.listTables(ctx)
	if err != nil {
		return nil, err
	}

	schema := &database.Schema{
		Tables: make(map[string]*database.TableInfo, len(tables)),
	}
	for _, name := range tables {
		info, err := d.inspectTable(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("inspecting table %q: %w", name, err)
		}
		schema.Tables[name] = info
	}

	// A reference without a column list targets the parent's primary key.
	for _, t := range schema.Tables {
		for _, fk := range t.ForeignKeys {
			if fk.RefColumn != "" {
				continue
			}
			if ref, ok := schema.Tables[fk.RefTable]; ok && len(ref.PrimaryKey) > 0 {
				fk.RefColumn = ref.PrimaryKey[0]
			}
		}
	}
	return schema, nil
}

func (d *Driver) listTables(ctx context.Context) ([]string, error) {
	const q = `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table'
		  AND name NOT LIKE 'sqlite_%'
		ORDER BY name`

	rows, err := d.Pool.QueryContext(ctx, q)
	if err != nil {
		return nil, mapError(err, "failed to list tables")
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, mapError(err, "failed to scan table name")
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func (d *Driver) inspectTable(ctx context.Context, table string) (*database.TableInfo, error) {
	const colQ = `
		SELECT name, type, "notnull", dflt_value, pk
		FROM pragma_table_info(?)
		ORDER BY cid`

	rows, err := d.Pool.QueryContext(ctx, colQ, table)
	if err != nil {
		return nil, mapError(err, "failed to fetch columns")
	}
	defer rows.Close()

	info := &database.TableInfo{Name: table}
	pkPos := map[int]string{}
	for rows.Next() {
		var c database.ColumnInfo
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&c.Name, &c.DataType, &notNull, &dflt, &pk); err != nil {
			return nil, mapError(err, "failed to scan column info")
		}
		c.Nullable = notNull == 0
		if dflt.Valid {
			c.Default = &dflt.String
		}
		if pk > 0 {
			pkPos[pk] = c.Name
		}
		info.Columns = append(info.Columns, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "error iterating columns")
	}

	for i := 1; i <= len(pkPos); i++ {
		info.PrimaryKey = append(info.PrimaryKey, pkPos[i])
	}
	info.MarkKeys()
	// A lone INTEGER PRIMARY KEY aliases the rowid.
	if len(info.PrimaryKey) == 1 {
		if c := info.Column(info.PrimaryKey[0]); c != nil && strings.EqualFold(c.DataType, "INTEGER") {
			c.IsIdentity = true
		}
	}

	fks, err := d.fetchForeignKeys(ctx, table)
	if err != nil {
		return nil, err
	}
	info.ForeignKeys = fks
	return info, nil
}

func (d *Driver) fetchForeignKeys(ctx context.Context, table string) ([]*database.ForeignKey, error) {
	const q = `
		SELECT "from", "table", "to"
		FROM pragma_foreign_key_list(?)
		ORDER BY id, seq`

	rows, err := d.Pool.QueryContext(ctx, q, table)
	if err != nil {
		return nil, mapError(err, "failed to fetch foreign keys")
	}
	defer rows.Close()

	var fks []*database.ForeignKey
	for rows.Next() {
		fk := &database.ForeignKey{}
		var to sql.NullString
		if err := rows.Scan(&fk.Column, &fk.RefTable, &to); err != nil {
			return nil, mapError(err, "failed to scan foreign key")
		}
		fk.RefColumn = to.String
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}
