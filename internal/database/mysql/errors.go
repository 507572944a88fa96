package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/koustreak/ffiload/internal/errs"
)

// MySQL error numbers
// Full list: https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	errAccessDeniedDB   = 1044
	errAccessDenied     = 1045
	errNoDatabase       = 1046
	errUnknownDatabase  = 1049
	errTooManyConns     = 1040
	errUserConnLimit    = 1203
	errBadField         = 1054
	errDuplicateEntry   = 1062
	errSyntax           = 1064
	errNoSuchTable      = 1146
	errTableAccess      = 1142
	errNotNull          = 1048
	errOutOfRange       = 1264
	errTruncatedValue   = 1292
	errDataTooLong      = 1406
	errIncorrectValue   = 1366
	errRowIsReferenced  = 1451
	errNoReferencedRow  = 1452
	errNoDefaultValue   = 1364
	errTruncatedWrongVl = 1265
)

// mapError translates go-sql-driver/mysql errors into *errs.Error.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	if errors.Is(err, sql.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return errs.Wrap(
			classifyMySQLCode(mysqlErr.Number),
			fmt.Sprintf("%s: %s", msg, mysqlErr.Message),
			err,
		)
	}

	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}

// classifyMySQLCode maps MySQL error numbers to ErrKind.
func classifyMySQLCode(code uint16) errs.ErrKind {
	switch code {
	case errAccessDeniedDB, errAccessDenied, errNoDatabase, errUnknownDatabase,
		errTooManyConns, errUserConnLimit:
		return errs.ErrKindConnectionFailed
	case errTableAccess:
		return errs.ErrKindPermissionDenied
	case errNoSuchTable:
		return errs.ErrKindNotFound
	case errDuplicateEntry, errNotNull, errOutOfRange, errTruncatedValue, errDataTooLong,
		errIncorrectValue, errRowIsReferenced, errNoReferencedRow, errNoDefaultValue,
		errTruncatedWrongVl:
		return errs.ErrKindTypeMismatch
	case errBadField, errSyntax:
		return errs.ErrKindQueryFailed
	default:
		return errs.ErrKindQueryFailed
	}
}
