package store

import (
	"context"
	"fmt"
	"time"

	chx "sarbatch/internal/platform/store/ch"
	"sarbatch/internal/platform/store/pg"
	"sarbatch/internal/platform/store/sqlite"
)

// openPG opens the pgx pool, pings it with backoff and wraps it with our adapter
func openPG(ctx context.Context, cfg Config, s *Store) (TxRunner, error) {
	p, err := pg.Open(ctx, pg.Config{
		URL:      cfg.PG.URL,
		MaxConns: cfg.PG.MaxConns,
		AppName:  cfg.AppName,
	}, nil)
	if err != nil {
		return nil, err
	}

	maxAttempts := cfg.PG.ConnectRetries
	if maxAttempts <= 0 {
		maxAttempts = 20
	}
	pingTimeout := cfg.PG.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 3 * time.Second
	}
	const (
		backoffStart   = 150 * time.Millisecond
		backoffCeiling = 2 * time.Second
	)

	var lastErr error
	backoff := backoffStart
	for range maxAttempts {
		toCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		lastErr = p.Pool.Ping(toCtx)
		cancel()
		if lastErr == nil {
			return newPGAdapter(p, tracerFor(s, BackendPG, cfg.PG.LogSQL, cfg.PG.SlowQueryMs)), nil
		}
		if ctx.Err() != nil {
			p.Close()
			return nil, ctx.Err()
		}
		time.Sleep(backoff)
		backoff = min(backoff*2, backoffCeiling)
	}

	p.Close()
	return nil, fmt.Errorf("postgres ping failed after %d attempts: %w", maxAttempts, lastErr)
}

// openSQLite opens the registry file with WAL pragmas
func openSQLite(ctx context.Context, cfg Config, s *Store) (TxRunner, error) {
	db, err := sqlite.Open(ctx, sqlite.Config{
		Path:        cfg.SQLite.Path,
		BusyTimeout: cfg.SQLite.BusyTimeout,
	})
	if err != nil {
		return nil, err
	}
	if mode, err := sqlite.JournalMode(ctx, db); err == nil {
		s.Log.Debug().Str("path", cfg.SQLite.Path).Str("journal_mode", mode).Msg("sqlite opened")
	}
	return newSQLiteAdapter(db, tracerFor(s, BackendSQLite, cfg.SQLite.LogSQL, cfg.SQLite.SlowQueryMs)), nil
}

func openCH(ctx context.Context, cfg Config, _ *Store) (Clickhouse, error) {
	c, err := chx.Open(ctx, chx.Config{
		URL:        cfg.CH.URL,
		ClientInfo: chx.BuildClientInfo(cfg.CH.ClientName, cfg.CH.ClientTag),
	})
	if err != nil {
		return nil, err
	}
	return newCHAdapter(c), nil
}

func tracerFor(s *Store, backend string, logSQL bool, slowMs int) *queryTrace {
	if !logSQL {
		return nil
	}
	return &queryTrace{tracer: Tracer(s.Log, backend), slowUS: int64(slowMs) * 1000}
}
