// Package sqlite opens the file-backed registry database
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Config configures the sqlite database
type Config struct {
	// Path is the database file; ":memory:" keeps everything on one private connection
	Path string

	// BusyTimeout is how long a writer waits on a locked database; default 5s
	BusyTimeout time.Duration

	// MaxOpenConns bounds the pool; WAL allows concurrent readers. default 4
	MaxOpenConns int
}

// DSN renders the go-sqlite3 connection string. Pragmas are carried as DSN
// parameters so every pooled connection gets them, not only the first
func (c Config) DSN() string {
	busy := c.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	q := url.Values{}
	q.Set("_busy_timeout", fmt.Sprint(busy.Milliseconds()))
	q.Set("_foreign_keys", "on")
	if c.Path != ":memory:" {
		q.Set("_journal_mode", "WAL")
		q.Set("_synchronous", "NORMAL")
	}
	return "file:" + c.Path + "?" + q.Encode()
}

// Open creates or opens the database, verifies it answers and returns the pool
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite: empty path")
	}
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", cfg.Path, err)
	}

	conns := cfg.MaxOpenConns
	if conns <= 0 {
		conns = 4
	}
	if cfg.Path == ":memory:" {
		conns = 1
	}
	db.SetMaxOpenConns(conns)
	db.SetMaxIdleConns(conns)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: connect %s: %w", cfg.Path, err)
	}
	return db, nil
}

// JournalMode reports the journal mode of the open database, e.g. "wal"
func JournalMode(ctx context.Context, db *sql.DB) (string, error) {
	var mode string
	err := db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode)
	return mode, err
}
