// Package modkit provides module wiring and core deps
package modkit

import (
	"sarbatch/internal/modkit/repokit"
	"sarbatch/internal/platform/config"
	"sarbatch/internal/platform/logger"
	"sarbatch/internal/platform/store"
)

// Deps holds core dependencies passed to modules
type Deps struct {
	Log logger.Logger
	Cfg config.Conf

	// DB is the SQL backend (Postgres or SQLite); modules that need it panic when nil
	DB repokit.TxRunner

	// CH is optional; nil disables the ClickHouse report export
	CH store.Clickhouse
}

// FromStore fills the storage fields of d from an opened store
func (d Deps) FromStore(s *store.Store) Deps {
	if s == nil {
		return d
	}
	d.DB, d.CH = s.DB, s.CH
	return d
}
