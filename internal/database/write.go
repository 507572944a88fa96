package database

import (
	"context"
	"fmt"

	"github.com/koustreak/ffiload/internal/errs"
)

// WriteMode selects how WriteRows treats rows already in the table.
type WriteMode int

const (
	// WriteAppend adds rows and leaves existing content untouched.
	WriteAppend WriteMode = iota

	// WriteReplace empties the table before adding rows.
	WriteReplace
)

func (m WriteMode) String() string {
	if m == WriteReplace {
		return "replace"
	}
	return "append"
}

// maxRowsPerInsert is SQL Server's ceiling on a VALUES list; it is applied to
// every dialect so statement shapes stay comparable.
const maxRowsPerInsert = 1000

// WriteRows inserts rows into table through q, splitting the rows so that no
// statement exceeds the dialect's parameter ceiling. Each row must carry one
// value per column, in column order. It returns the number of rows written.
func WriteRows(ctx context.Context, q Querier, d Dialect, table string, columns []string, rows [][]any, mode WriteMode) (int64, error) {
	if len(columns) == 0 {
		return 0, errs.Newf(errs.ErrKindInvalidInput, "write to %s: no columns", table)
	}

	if mode == WriteReplace {
		sql, args, err := Delete(table, d).Build()
		if err != nil {
			return 0, err
		}
		if _, err := q.Exec(ctx, sql, args...); err != nil {
			return 0, fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	perStmt := max(1, min(d.MaxParams()/len(columns), maxRowsPerInsert))

	var written int64
	for _, chunk := range Chunk(rows, perStmt) {
		b := Insert(table, d).Columns(columns...)
		for _, row := range chunk {
			b.Values(row...)
		}
		sql, args, err := b.Build()
		if err != nil {
			return written, err
		}
		if _, err := q.Exec(ctx, sql, args...); err != nil {
			return written, fmt.Errorf("writing %s: %w", table, err)
		}
		written += int64(len(chunk))
	}
	return written, nil
}
