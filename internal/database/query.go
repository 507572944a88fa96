package database

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/koustreak/ffiload/internal/errs"
)

// Dialect controls which SQL placeholder and quoting style the builders emit.
type Dialect int

const (
	// DialectPostgres uses $1, $2, … placeholders and "ident" quoting.
	DialectPostgres Dialect = iota

	// DialectMySQL uses ? placeholders and `ident` quoting.
	DialectMySQL

	// DialectSQLServer uses @p1, @p2, … placeholders and [ident] quoting.
	DialectSQLServer

	// DialectSQLite uses ? placeholders and "ident" quoting.
	DialectSQLite
)

func (d Dialect) String() string {
	switch d {
	case DialectPostgres:
		return "postgres"
	case DialectMySQL:
		return "mysql"
	case DialectSQLServer:
		return "sqlserver"
	case DialectSQLite:
		return "sqlite"
	default:
		return "unknown"
	}
}

// Placeholder returns the bind parameter for the idx-th argument (1-based).
func (d Dialect) Placeholder(idx int) string {
	switch d {
	case DialectPostgres:
		return "$" + strconv.Itoa(idx)
	case DialectSQLServer:
		return "@p" + strconv.Itoa(idx)
	default:
		return "?"
	}
}

// QuoteIdent wraps a SQL identifier in the dialect's quote characters.
func (d Dialect) QuoteIdent(name string) string {
	switch d {
	case DialectMySQL:
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	case DialectSQLServer:
		return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
	default:
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
}

// MaxParams is the number of bind parameters one statement may carry.
// SQL Server caps at 2100 and SQLite builds commonly at 999; both are kept
// below their hard limits.
func (d Dialect) MaxParams() int {
	switch d {
	case DialectSQLServer:
		return 2000
	case DialectSQLite:
		return 999
	default:
		return 65535
	}
}

// validOps is the allowlist of comparison operators for WHERE clauses.
// Any operator not in this list is rejected to prevent SQL injection
// through the operator position (which cannot be parameterized).
var validOps = map[string]bool{
	"=":    true,
	"!=":   true,
	"<>":   true,
	"<":    true,
	">":    true,
	"<=":   true,
	">=":   true,
	"LIKE": true,
}

type condition interface {
	render(d Dialect, next func(any) string) (string, error)
}

type compareCond struct {
	column string
	op     string
	value  any
}

func (c compareCond) render(d Dialect, next func(any) string) (string, error) {
	op := strings.ToUpper(c.op)
	if !validOps[op] {
		return "", errs.Newf(errs.ErrKindInvalidInput, "unsupported WHERE operator: %q", c.op)
	}
	return fmt.Sprintf("%s %s %s", d.QuoteIdent(c.column), op, next(c.value)), nil
}

type inCond struct {
	column string
	values []any
}

func (c inCond) render(d Dialect, next func(any) string) (string, error) {
	if len(c.values) == 0 {
		return "1 = 0", nil
	}
	ph := make([]string, len(c.values))
	for i, v := range c.values {
		ph[i] = next(v)
	}
	return fmt.Sprintf("%s IN (%s)", d.QuoteIdent(c.column), strings.Join(ph, ", ")), nil
}

// tupleCond matches rows whose columns equal any one of the tuples:
// (a = ? AND b = ?) OR (a = ? AND b = ?) …
type tupleCond struct {
	columns []string
	tuples  [][]any
}

func (c tupleCond) render(d Dialect, next func(any) string) (string, error) {
	if len(c.tuples) == 0 {
		return "1 = 0", nil
	}
	alts := make([]string, len(c.tuples))
	for i, tuple := range c.tuples {
		if len(tuple) != len(c.columns) {
			return "", errs.Newf(errs.ErrKindInvalidInput,
				"key tuple has %d values for %d columns", len(tuple), len(c.columns))
		}
		parts := make([]string, len(c.columns))
		for j, col := range c.columns {
			parts[j] = fmt.Sprintf("%s = %s", d.QuoteIdent(col), next(tuple[j]))
		}
		alts[i] = "(" + strings.Join(parts, " AND ") + ")"
	}
	return "(" + strings.Join(alts, " OR ") + ")", nil
}

// SelectBuilder constructs a parameterized SELECT query using a fluent API.
// Values are never interpolated into the SQL string, only passed as args.
//
// Usage:
//
//	sql, args, err := Select("MacroPlot", DialectSQLServer).
//	    Columns("MacroPlot_GUID").
//	    WhereIn("MacroPlot_GUID", guids).
//	    Build()
type SelectBuilder struct {
	table   string
	dialect Dialect
	columns []string
	where   []condition
	orderBy []orderClause
}

// SortDirection controls the ORDER BY direction.
type SortDirection bool

const (
	Asc  SortDirection = false
	Desc SortDirection = true
)

type orderClause struct {
	column string
	dir    SortDirection
}

// Select starts a new SelectBuilder for the given table and dialect.
func Select(table string, d Dialect) *SelectBuilder {
	return &SelectBuilder{table: table, dialect: d}
}

// Columns restricts the SELECT to the specified columns.
// If not called, SELECT * is used.
func (b *SelectBuilder) Columns(cols ...string) *SelectBuilder {
	b.columns = cols
	return b
}

// Where adds a WHERE comparison. Multiple conditions are combined with AND.
func (b *SelectBuilder) Where(column, op string, value any) *SelectBuilder {
	b.where = append(b.where, compareCond{column, op, value})
	return b
}

// WhereIn adds `column IN (values…)`. An empty list matches nothing.
func (b *SelectBuilder) WhereIn(column string, values []any) *SelectBuilder {
	b.where = append(b.where, inCond{column, values})
	return b
}

// WhereAnyTuple matches rows whose columns equal any of the given tuples.
// Composite keys are compared column by column with AND. An empty list
// matches nothing.
func (b *SelectBuilder) WhereAnyTuple(columns []string, tuples [][]any) *SelectBuilder {
	b.where = append(b.where, tupleCond{columns, tuples})
	return b
}

// OrderBy appends an ORDER BY clause for the given column and direction.
func (b *SelectBuilder) OrderBy(column string, dir SortDirection) *SelectBuilder {
	b.orderBy = append(b.orderBy, orderClause{column, dir})
	return b
}

// Build produces the final SQL string and argument slice.
func (b *SelectBuilder) Build() (string, []any, error) {
	d := b.dialect

	cols := "*"
	if len(b.columns) > 0 {
		quoted := make([]string, len(b.columns))
		for i, c := range b.columns {
			quoted[i] = d.QuoteIdent(c)
		}
		cols = strings.Join(quoted, ", ")
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(cols)
	sb.WriteString(" FROM ")
	sb.WriteString(d.QuoteIdent(b.table))

	where, args, err := renderWhere(d, b.where, nil)
	if err != nil {
		return "", nil, err
	}
	sb.WriteString(where)

	if len(b.orderBy) > 0 {
		parts := make([]string, len(b.orderBy))
		for i, o := range b.orderBy {
			dir := "ASC"
			if o.dir == Desc {
				dir = "DESC"
			}
			parts[i] = fmt.Sprintf("%s %s", d.QuoteIdent(o.column), dir)
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(parts, ", "))
	}

	return sb.String(), args, nil
}

// InsertBuilder constructs a parameterized multi-row INSERT.
type InsertBuilder struct {
	table   string
	dialect Dialect
	columns []string
	rows    [][]any
}

// Insert starts a new InsertBuilder for the given table and dialect.
func Insert(table string, d Dialect) *InsertBuilder {
	return &InsertBuilder{table: table, dialect: d}
}

// Columns sets the target column list.
func (b *InsertBuilder) Columns(cols ...string) *InsertBuilder {
	b.columns = cols
	return b
}

// Values appends one row; its length must match Columns.
func (b *InsertBuilder) Values(vals ...any) *InsertBuilder {
	b.rows = append(b.rows, vals)
	return b
}

// Build produces the INSERT statement and its arguments.
func (b *InsertBuilder) Build() (string, []any, error) {
	d := b.dialect
	if len(b.columns) == 0 {
		return "", nil, errs.New(errs.ErrKindInvalidInput, "insert requires at least one column")
	}
	if len(b.rows) == 0 {
		return "", nil, errs.New(errs.ErrKindInvalidInput, "insert requires at least one row")
	}

	quoted := make([]string, len(b.columns))
	for i, c := range b.columns {
		quoted[i] = d.QuoteIdent(c)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", d.QuoteIdent(b.table), strings.Join(quoted, ", "))

	args := make([]any, 0, len(b.rows)*len(b.columns))
	for i, row := range b.rows {
		if len(row) != len(b.columns) {
			return "", nil, errs.Newf(errs.ErrKindInvalidInput,
				"row %d has %d values for %d columns", i, len(row), len(b.columns))
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j, v := range row {
			if j > 0 {
				sb.WriteString(", ")
			}
			args = append(args, v)
			sb.WriteString(d.Placeholder(len(args)))
		}
		sb.WriteString(")")
	}

	return sb.String(), args, nil
}

// DeleteBuilder constructs a parameterized DELETE.
type DeleteBuilder struct {
	table   string
	dialect Dialect
	where   []condition
}

// Delete starts a new DeleteBuilder. Without conditions it empties the table.
func Delete(table string, d Dialect) *DeleteBuilder {
	return &DeleteBuilder{table: table, dialect: d}
}

// Where adds a WHERE comparison. Multiple conditions are combined with AND.
func (b *DeleteBuilder) Where(column, op string, value any) *DeleteBuilder {
	b.where = append(b.where, compareCond{column, op, value})
	return b
}

// Build produces the DELETE statement and its arguments.
func (b *DeleteBuilder) Build() (string, []any, error) {
	where, args, err := renderWhere(b.dialect, b.where, nil)
	if err != nil {
		return "", nil, err
	}
	return "DELETE FROM " + b.dialect.QuoteIdent(b.table) + where, args, nil
}

func renderWhere(d Dialect, conds []condition, args []any) (string, []any, error) {
	if len(conds) == 0 {
		return "", args, nil
	}
	next := func(v any) string {
		args = append(args, v)
		return d.Placeholder(len(args))
	}
	parts := make([]string, 0, len(conds))
	for _, c := range conds {
		s, err := c.render(d, next)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, s)
	}
	return " WHERE " + strings.Join(parts, " AND "), args, nil
}
