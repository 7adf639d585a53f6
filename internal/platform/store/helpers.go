package store

import (
	"context"
	"errors"

	perr "sarbatch/internal/platform/errors"
)

// ErrNoRows is returned by Row.Scan on both backends when the query matched nothing
var ErrNoRows = perr.New(perr.ErrorCodeNotFound, "store: no rows")

// Scalar queries the first row, first column into T
func Scalar[T any](ctx context.Context, q RowQuerier, sql string, args ...any) (T, error) {
	var v T
	if err := q.QueryRow(ctx, sql, args...).Scan(&v); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

// Many maps all rows into []T with a custom scanner
func Many[T any](ctx context.Context, q RowQuerier, scan func(Row) (T, error), sql string, args ...any) ([]T, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// IsNoRows reports whether err is (or wraps) ErrNoRows
func IsNoRows(err error) bool { return errors.Is(err, ErrNoRows) }
