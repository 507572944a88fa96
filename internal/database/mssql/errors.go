package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/koustreak/ffiload/internal/errs"
	gomssql "github.com/microsoft/go-mssqldb"
)

// SQL Server error numbers
// Full list: https://learn.microsoft.com/sql/relational-databases/errors-events/database-engine-events-and-errors
const (
	errInvalidColumn       = 207
	errInvalidObject       = 208
	errPermissionDenied    = 229
	errColumnPermission    = 230
	errDateConversion      = 241
	errDateOutOfRange      = 242
	errConversionFailed    = 245
	errNullInsert          = 515
	errExplicitIdentity    = 544
	errConstraintViolation = 547
	errDuplicateIndex      = 2601
	errDuplicateKey        = 2627
	errTruncatedNew        = 2628
	errCannotOpenDatabase  = 4060
	errNoIdentityProperty  = 8106
	errConvertDataType     = 8114
	errArithmeticOverflow  = 8115
	errTruncated           = 8152
	errLoginFailed         = 18456
)

// mapError translates go-mssqldb errors into *errs.Error.
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

	var msErr gomssql.Error
	if errors.As(err, &msErr) {
		return errs.Wrap(
			classifyNumber(msErr.Number),
			fmt.Sprintf("%s: %s", msg, msErr.Message),
			err,
		)
	}

	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}

func classifyNumber(n int32) errs.ErrKind {
	switch n {
	case errInvalidObject:
		return errs.ErrKindNotFound
	case errInvalidColumn:
		return errs.ErrKindQueryFailed
	case errPermissionDenied, errColumnPermission:
		return errs.ErrKindPermissionDenied
	case errLoginFailed, errCannotOpenDatabase:
		return errs.ErrKindConnectionFailed
	case errNoIdentityProperty:
		return errs.ErrKindUnsupported
	case errDateConversion, errDateOutOfRange, errConversionFailed, errNullInsert,
		errExplicitIdentity, errConstraintViolation, errDuplicateIndex, errDuplicateKey,
		errTruncatedNew, errConvertDataType, errArithmeticOverflow, errTruncated:
		return errs.ErrKindTypeMismatch
	default:
		return errs.ErrKindQueryFailed
	}
}
