package errors

// SQLite helpers for the file-backed registry

import (
	stderrs "errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// ExtractSQLiteError returns (sqlite3.Error, true) if err wraps a driver error
func ExtractSQLiteError(err error) (sqlite3.Error, bool) {
	var se sqlite3.Error
	if stderrs.As(err, &se) {
		return se, true
	}
	return sqlite3.Error{}, false
}

// IsSQLiteRetryable reports SQLITE_BUSY and SQLITE_LOCKED, the two lock-contention results
func IsSQLiteRetryable(err error) bool {
	se, ok := ExtractSQLiteError(err)
	if !ok {
		return false
	}
	return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
}

// SQLiteErrorCode maps a sqlite3 error to an ErrorCode
// !ok means err wasn't a sqlite3.Error
func SQLiteErrorCode(err error) (ErrorCode, bool) {
	se, ok := ExtractSQLiteError(err)
	if !ok {
		return ErrorCodeUnknown, false
	}
	switch se.Code {
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		return ErrorCodeUnavailable, true
	case sqlite3.ErrConstraint:
		if se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return ErrorCodeDuplicateKey, true
		}
		return ErrorCodeValidation, true
	case sqlite3.ErrCantOpen, sqlite3.ErrIoErr, sqlite3.ErrFull, sqlite3.ErrReadonly:
		return ErrorCodeIO, true
	}
	return ErrorCodeDB, true
}

// FromDB wraps a driver error from either SQL backend with a mapped ErrorCode.
// nil in, nil out
func FromDB(err error, format string, a ...any) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, a...)
	if code, ok := DBErrorCode(err); ok {
		return Wrap(err, code, msg)
	}
	if code, ok := SQLiteErrorCode(err); ok {
		return Wrap(err, code, msg)
	}
	return Wrap(err, ErrorCodeDB, msg)
}
