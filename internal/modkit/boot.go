package modkit

import (
	"context"
	"time"

	"sarbatch/internal/modkit/repokit"
	"sarbatch/internal/platform/config"
	"sarbatch/internal/platform/logger"
	"sarbatch/internal/platform/store"
)

// Boot opens the store a binary needs, checks every backend answers and
// returns deps over it. On Postgres each transaction gets a statement timeout
// from SERVICE_PGSQL_STATEMENT_TIMEOUT (default 30s, 0 disables)
func Boot(ctx context.Context, root config.Conf, tag string, log logger.Logger) (*store.Store, Deps, error) {
	st, err := store.Open(ctx, store.FromConfig(root, tag), store.WithLogger(log))
	if err != nil {
		return nil, Deps{}, err
	}

	gctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := st.Guard(gctx); err != nil {
		_ = st.Close(ctx)
		return nil, Deps{}, err
	}

	deps := Deps{Cfg: root, Log: log}.FromStore(st)
	if st.Backend == store.BackendPG {
		if d := root.Prefix("SERVICE_PGSQL_").MayDuration("STATEMENT_TIMEOUT", 30*time.Second); d > 0 {
			deps.DB = repokit.WithBeginHooks(deps.DB, repokit.StatementTimeout(d))
		}
	}
	log.Info().Str("backend", st.Backend).Bool("clickhouse", st.CH != nil).Msg("store ready")
	return st, deps, nil
}
