package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// sqliteAdapter wraps database/sql over go-sqlite3 and implements RowQuerier + TxRunner.
// Statements use $N placeholders like the Postgres side; they are rewritten to ?N
type sqliteAdapter struct {
	db    *sql.DB
	trace *queryTrace
}

func newSQLiteAdapter(db *sql.DB, tr *queryTrace) *sqliteAdapter {
	return &sqliteAdapter{db: db, trace: tr}
}

// NewSQLiteRunner wraps an already opened sqlite pool; used by tests and tools
func NewSQLiteRunner(db *sql.DB) TxRunner { return newSQLiteAdapter(db, nil) }

func (a *sqliteAdapter) Ping(ctx context.Context) error {
	if a == nil || a.db == nil {
		return errors.New("sqlite: nil adapter")
	}
	return a.db.PingContext(ctx)
}

func (a *sqliteAdapter) Close() error { return a.db.Close() }

func (a *sqliteAdapter) Exec(ctx context.Context, q string, args ...any) (CommandTag, error) {
	return execSQL(ctx, a.db, a.trace, q, args)
}

func (a *sqliteAdapter) Query(ctx context.Context, q string, args ...any) (Rows, error) {
	return querySQL(ctx, a.db, a.trace, q, args)
}

func (a *sqliteAdapter) QueryRow(ctx context.Context, q string, args ...any) Row {
	return queryRowSQL(ctx, a.db, a.trace, q, args)
}

func (a *sqliteAdapter) Tx(ctx context.Context, fn func(q RowQuerier) error) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(sqliteTx{tx: tx, trace: a.trace}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

type sqliteTx struct {
	tx    *sql.Tx
	trace *queryTrace
}

func (t sqliteTx) Exec(ctx context.Context, q string, args ...any) (CommandTag, error) {
	return execSQL(ctx, t.tx, t.trace, q, args)
}

func (t sqliteTx) Query(ctx context.Context, q string, args ...any) (Rows, error) {
	return querySQL(ctx, t.tx, t.trace, q, args)
}

func (t sqliteTx) QueryRow(ctx context.Context, q string, args ...any) Row {
	return queryRowSQL(ctx, t.tx, t.trace, q, args)
}

// sqlConn is the shared surface of *sql.DB and *sql.Tx
type sqlConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func execSQL(ctx context.Context, c sqlConn, tr *queryTrace, q string, args []any) (CommandTag, error) {
	start := time.Now()
	res, err := c.ExecContext(ctx, Rebind(q), args...)
	tr.emit(ctx, BackendSQLite, q, args, start, err)
	if err != nil {
		return sqlTag{}, err
	}
	n, _ := res.RowsAffected()
	return sqlTag{verb: verbOf(q), n: n}, nil
}

func querySQL(ctx context.Context, c sqlConn, tr *queryTrace, q string, args []any) (Rows, error) {
	start := time.Now()
	rs, err := c.QueryContext(ctx, Rebind(q), args...)
	tr.emit(ctx, BackendSQLite, q, args, start, err)
	if err != nil {
		return nil, err
	}
	return &sqlRows{r: rs}, nil
}

func queryRowSQL(ctx context.Context, c sqlConn, tr *queryTrace, q string, args []any) Row {
	start := time.Now()
	r := c.QueryRowContext(ctx, Rebind(q), args...)
	return sqlRow{r: r, after: func(err error) { tr.emit(ctx, BackendSQLite, q, args, start, err) }}
}

type sqlRow struct {
	r     *sql.Row
	after func(error)
}

// Scan maps sql.ErrNoRows to ErrNoRows so repos test one sentinel for both backends
func (x sqlRow) Scan(dst ...any) error {
	err := x.r.Scan(dst...)
	if x.after != nil {
		x.after(err)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNoRows
	}
	return err
}

type sqlRows struct{ r *sql.Rows }

func (x *sqlRows) Next() bool            { return x.r.Next() }
func (x *sqlRows) Scan(dst ...any) error { return x.r.Scan(dst...) }
func (x *sqlRows) Err() error            { return x.r.Err() }
func (x *sqlRows) Close()                { _ = x.r.Close() }
func (x *sqlRows) Columns() []string {
	cols, _ := x.r.Columns()
	return cols
}

type sqlTag struct {
	verb string
	n    int64
}

func (t sqlTag) String() string      { return fmt.Sprintf("%s %d", t.verb, t.n) }
func (t sqlTag) RowsAffected() int64 { return t.n }

func verbOf(q string) string {
	f := strings.Fields(q)
	if len(f) == 0 {
		return ""
	}
	return strings.ToUpper(f[0])
}

// Rebind rewrites $N placeholders to ?N, leaving quoted literals and identifiers untouched
func Rebind(q string) string {
	if !strings.Contains(q, "$") {
		return q
	}
	var b strings.Builder
	b.Grow(len(q))
	var quote byte
	for i := 0; i < len(q); i++ {
		c := q[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '$' && i+1 < len(q) && q[i+1] >= '0' && q[i+1] <= '9':
			c = '?'
		}
		b.WriteByte(c)
	}
	return b.String()
}
