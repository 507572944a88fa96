package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/koustreak/ffiload/internal/database"
	"github.com/koustreak/ffiload/internal/errs"
	gomssql "github.com/microsoft/go-mssqldb"
)

const (
	defaultMaxOpenConns    = 4
	defaultMaxIdleConns    = 1
	defaultConnMaxLifetime = 30 * time.Minute
)

// Driver is a SQL Server implementation of database.DB backed by
// database/sql and go-mssqldb. FFI's native store; the only driver that
// supports identity-insert mode.
type Driver struct {
	*database.SQLDB
}

// New opens a SQL Server pool from a sqlserver:// DSN and pings it.
func New(ctx context.Context, cfg *database.Config) (*Driver, error) {
	connector, err := gomssql.NewConnector(cfg.DSN)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid DSN", err)
	}
	db := sql.OpenDB(connector)

	maxOpen := int(cfg.MaxConns)
	if maxOpen == 0 {
		maxOpen = defaultMaxOpenConns
	}
	maxIdle := int(cfg.MinConns)
	if maxIdle == 0 {
		maxIdle = defaultMaxIdleConns
	}
	lifetime := cfg.MaxConnLifetime
	if lifetime == 0 {
		lifetime = defaultConnMaxLifetime
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(lifetime)
	db.SetConnMaxIdleTime(cfg.MaxConnIdleTime)

	d := &Driver{SQLDB: &database.SQLDB{
		Pool:     db,
		MapError: mapError,
		Convert:  convertValue,
	}}

	pingCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	if err := d.Ping(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return d, nil
}

// Dialect reports DialectSQLServer.
func (d *Driver) Dialect() database.Dialect {
	return database.DialectSQLServer
}

// SetIdentityInsert issues SET IDENTITY_INSERT on the session's connection.
// Tables without an identity column yield errs.ErrKindUnsupported, probed
// up front so the enclosing transaction is not disturbed.
func (d *Driver) SetIdentityInsert(ctx context.Context, sess database.Session, table string, on bool) error {
	rows, err := sess.Query(ctx,
		"SELECT OBJECTPROPERTY(OBJECT_ID(@p1), 'TableHasIdentity')",
		database.DialectSQLServer.QuoteIdent(table))
	if err != nil {
		return err
	}
	res, err := database.ScanRows(rows)
	if err != nil {
		return err
	}

	hasIdentity := false
	if len(res) == 1 {
		for _, v := range res[0] {
			hasIdentity = database.KeyString(v) == "1"
		}
	}
	if !hasIdentity {
		return errs.Newf(errs.ErrKindUnsupported, "table %s has no identity column", table)
	}

	state := "OFF"
	if on {
		state = "ON"
	}
	stmt := fmt.Sprintf("SET IDENTITY_INSERT %s %s", database.DialectSQLServer.QuoteIdent(table), state)
	if _, err := sess.Exec(ctx, stmt); err != nil {
		return err
	}
	return nil
}

// InspectSchema reflects every user table in the dbo schema from sys.* views.
func (d *Driver) InspectSchema(ctx context.Context) (*database.Schema, error) {
	tables, err := d.listTables(ctx)
	if err != nil {
		return nil, err
	}

	schema := &database.Schema{
		Tables: make(map[string]*database.TableInfo, len(tables)),
	}
	for _, name := range tables {
		cols, err := d.fetchColumns(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("inspecting table %q: %w", name, err)
		}
		schema.Tables[name] = &database.TableInfo{Name: name, Columns: cols}
	}

	if err := d.fetchPrimaryKeys(ctx, schema); err != nil {
		return nil, err
	}
	if err := d.fetchForeignKeys(ctx, schema); err != nil {
		return nil, err
	}
	for _, t := range schema.Tables {
		t.MarkKeys()
	}
	return schema, nil
}

func (d *Driver) listTables(ctx context.Context) ([]string, error) {
	const q = `
	SET NOCOUNT ON;
	SELECT t.name
	FROM sys.tables t
	WHERE t.is_ms_shipped = 0
	  AND SCHEMA_NAME(t.schema_id) = 'dbo'
	ORDER BY t.name`

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
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "error iterating tables")
	}
	return tables, nil
}

func (d *Driver) fetchColumns(ctx context.Context, table string) ([]*database.ColumnInfo, error) {
	const q = `
	SET NOCOUNT ON;
	SELECT c.name,
	       tp.name,
	       CASE WHEN c.is_nullable = 1 THEN 1 ELSE 0 END,
	       CASE WHEN c.is_identity = 1 THEN 1 ELSE 0 END
	FROM sys.columns c
	INNER JOIN sys.types tp ON c.user_type_id = tp.user_type_id
	WHERE c.object_id = OBJECT_ID(N'dbo.' + QUOTENAME(@table))
	ORDER BY c.column_id`

	rows, err := d.Pool.QueryContext(ctx, q, sql.Named("table", table))
	if err != nil {
		return nil, mapError(err, "failed to fetch columns")
	}
	defer rows.Close()

	var cols []*database.ColumnInfo
	for rows.Next() {
		var c database.ColumnInfo
		var nullable, identity int
		if err := rows.Scan(&c.Name, &c.DataType, &nullable, &identity); err != nil {
			return nil, mapError(err, "failed to scan column info")
		}
		c.Nullable = nullable == 1
		c.IsIdentity = identity == 1
		cols = append(cols, &c)
	}
	return cols, rows.Err()
}

func (d *Driver) fetchPrimaryKeys(ctx context.Context, schema *database.Schema) error {
	const q = `
	SET NOCOUNT ON;
	SELECT OBJECT_NAME(ic.object_id),
	       COL_NAME(ic.object_id, ic.column_id)
	FROM sys.index_columns ic
	INNER JOIN sys.indexes i ON ic.object_id = i.object_id AND ic.index_id = i.index_id
	WHERE i.is_primary_key = 1
	  AND OBJECT_SCHEMA_NAME(ic.object_id) = 'dbo'
	ORDER BY OBJECT_NAME(ic.object_id), ic.key_ordinal`

	rows, err := d.Pool.QueryContext(ctx, q)
	if err != nil {
		return mapError(err, "failed to fetch primary keys")
	}
	defer rows.Close()

	for rows.Next() {
		var table, column string
		if err := rows.Scan(&table, &column); err != nil {
			return mapError(err, "failed to scan primary key")
		}
		if t, ok := schema.Tables[table]; ok {
			t.PrimaryKey = append(t.PrimaryKey, column)
		}
	}
	return rows.Err()
}

func (d *Driver) fetchForeignKeys(ctx context.Context, schema *database.Schema) error {
	const q = `
	SET NOCOUNT ON;
	SELECT OBJECT_NAME(fk.parent_object_id),
	       COL_NAME(fkc.parent_object_id, fkc.parent_column_id),
	       OBJECT_NAME(fk.referenced_object_id),
	       COL_NAME(fkc.referenced_object_id, fkc.referenced_column_id)
	FROM sys.foreign_keys fk
	INNER JOIN sys.foreign_key_columns fkc ON fk.object_id = fkc.constraint_object_id
	WHERE fk.is_ms_shipped = 0
	ORDER BY OBJECT_NAME(fk.parent_object_id), fk.name, fkc.constraint_column_id`

	rows, err := d.Pool.QueryContext(ctx, q)
	if err != nil {
		return mapError(err, "failed to fetch foreign keys")
	}
	defer rows.Close()

	for rows.Next() {
		var table string
		fk := &database.ForeignKey{}
		if err := rows.Scan(&table, &fk.Column, &fk.RefTable, &fk.RefColumn); err != nil {
			return mapError(err, "failed to scan foreign key")
		}
		if t, ok := schema.Tables[table]; ok {
			t.ForeignKeys = append(t.ForeignKeys, fk)
		}
	}
	return rows.Err()
}

// convertValue renders UNIQUEIDENTIFIER columns, which arrive as 16 bytes in
// SQL Server's mixed-endian layout, as canonical upper-case GUID text.
func convertValue(dbType string, v any) any {
	b, ok := v.([]byte)
	if !ok || !strings.EqualFold(dbType, "UNIQUEIDENTIFIER") {
		return v
	}
	var id gomssql.UniqueIdentifier
	if err := id.Scan(b); err != nil {
		return v
	}
	return id.String()
}
