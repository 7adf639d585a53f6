package store

import "time"

// Config aggregates per backend configuration
type Config struct {
	AppName string

	// Backend selects the SQL backend: BackendPG, BackendSQLite or "" for none
	Backend string

	// SkipMigrate leaves the schema alone (read-only replicas, tests that seed their own)
	SkipMigrate bool

	PG     PGConfig
	SQLite SQLiteConfig
	CH     CHConfig
}

// PGConfig configures postgres connectivity and tracing
type PGConfig struct {
	URL         string
	MaxConns    int32
	LogSQL      bool
	SlowQueryMs int

	ConnectRetries int           // default 20
	PingTimeout    time.Duration // default 3s
}

// SQLiteConfig configures the file-backed registry
type SQLiteConfig struct {
	Path        string
	BusyTimeout time.Duration // default 5s
	LogSQL      bool
	SlowQueryMs int
}

// CHConfig configures clickhouse connectivity
type CHConfig struct {
	Enabled    bool
	URL        string
	ClientName string
	ClientTag  string
}
