package store

import (
	"sarbatch/internal/core/version"
	"sarbatch/internal/platform/config"
)

// FromConfig builds a Config from the environment. CORE_REGISTRY_BACKEND picks
// the SQL backend (default sqlite); ClickHouse is enabled by SERVICE_CLICKHOUSE_DBURL.
// tag names the binary; it is the ClickHouse client role
func FromConfig(root config.Conf, tag string) Config {
	pgCfg := root.Prefix("SERVICE_PGSQL_")
	liteCfg := root.Prefix("SERVICE_SQLITE_")
	chCfg := root.Prefix("SERVICE_CLICKHOUSE_")

	cfg := Config{
		AppName: "sarbatch-" + tag,
		Backend: root.Prefix("CORE_REGISTRY_").MayEnum("BACKEND", BackendSQLite, BackendPG, BackendSQLite),
	}
	switch cfg.Backend {
	case BackendPG:
		cfg.PG = PGConfig{
			URL:         pgCfg.MustString("DBURL"),
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 8)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", false),
		}
	case BackendSQLite:
		cfg.SQLite = SQLiteConfig{
			Path:        liteCfg.MayPath("PATH", "sarbatch.db"),
			BusyTimeout: liteCfg.MayDuration("BUSY_TIMEOUT", 0),
			SlowQueryMs: liteCfg.MayInt("SLOW_MS", 500),
			LogSQL:      liteCfg.MayBool("LOG_SQL", false),
		}
	}
	if url := chCfg.MayString("DBURL", ""); url != "" {
		cfg.CH = CHConfig{Enabled: true, URL: url, ClientName: tag, ClientTag: version.Tag()}
	}
	return cfg
}
