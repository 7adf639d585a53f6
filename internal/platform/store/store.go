// Package store provides the storage seams used by repos: one SQL backend
// (Postgres or SQLite) and an optional ClickHouse sink for reports
package store

import (
	"context"
	"errors"
	"fmt"

	"sarbatch/internal/platform/logger"
)

// Backend names accepted by Config.Backend
const (
	BackendPG     = "pg"
	BackendSQLite = "sqlite"
)

// Store is the facade for the configured backends
// zero value is safe but does nothing
type Store struct {
	// Log is the logger used by subclients
	Log logger.Logger

	// DB is the SQL seam (pgx pool or sqlite file), nil when disabled
	DB TxRunner

	// Backend is BackendPG or BackendSQLite when DB is set
	Backend string

	// CH is the clickhouse seam, nil when disabled
	CH Clickhouse
}

// Row exposes the minimal scan contract a single row needs
type Row interface {
	Scan(dest ...any) error
}

// Rows exposes the minimal iteration and scan for a result set
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
	Columns() []string
}

// CommandTag reports the outcome of a write
type CommandTag interface {
	String() string
	RowsAffected() int64
}

// RowQuerier is the read and write surface repos use for sql.
// SQL is written with $N placeholders for both backends
type RowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

// TxRunner wraps transaction execution around a function.
// fn's error rolls the transaction back; the transaction never outlives Tx
type TxRunner interface {
	RowQuerier
	Tx(ctx context.Context, fn func(q RowQuerier) error) error
}

// Clickhouse is a tiny seam for columnar writes and queries
type Clickhouse interface {
	Insert(ctx context.Context, table string, data any) error
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	Close() error
}

// Pinger is any seam that can report readiness
type Pinger interface{ Ping(context.Context) error }

// Open constructs a Store with the requested backends and applies the schema
// to the SQL backend. Backends not enabled in cfg remain nil
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	s := &Store{}
	for _, o := range opts {
		if err := o(s); err != nil {
			return nil, err
		}
	}
	s.Log = s.Log.With().Logger()

	switch cfg.Backend {
	case "":
	case BackendPG:
		db, err := openPG(ctx, cfg, s)
		if err != nil {
			return nil, err
		}
		s.DB, s.Backend = db, BackendPG
	case BackendSQLite:
		db, err := openSQLite(ctx, cfg, s)
		if err != nil {
			return nil, err
		}
		s.DB, s.Backend = db, BackendSQLite
	default:
		return nil, fmt.Errorf("store: unknown backend %q", cfg.Backend)
	}

	if s.DB != nil && !cfg.SkipMigrate {
		if err := Migrate(ctx, s.DB); err != nil {
			_ = s.Close(ctx)
			return nil, err
		}
	}

	if cfg.CH.Enabled {
		chClient, err := openCH(ctx, cfg, s)
		if err != nil {
			_ = s.Close(ctx)
			return nil, err
		}
		s.CH = chClient
	}

	return s, nil
}

// Guard verifies every configured seam that can Ping
func (s *Store) Guard(ctx context.Context) error {
	if s == nil {
		return errors.New("nil store")
	}
	var errs []error
	if p, ok := s.DB.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Backend, err))
		}
	}
	if p, ok := s.CH.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("clickhouse: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Close closes all initialized backends; nil backends are ignored
func (s *Store) Close(_ context.Context) error {
	var errs []error
	if s.CH != nil {
		if e := s.CH.Close(); e != nil {
			errs = append(errs, e)
		}
	}
	if c, ok := s.DB.(interface{ Close() error }); ok {
		if e := c.Close(); e != nil {
			errs = append(errs, e)
		}
	}
	return errors.Join(errs...)
}
