package service

import (
	"context"
	"time"

	perr "sarbatch/internal/platform/errors"
	"sarbatch/internal/platform/logger"
	"sarbatch/internal/platform/store"
	"sarbatch/internal/services/scheduler/domain"
)

// DefaultTable receives one row per site and run
const DefaultTable = "site_results"

// Columns is the insert order for DefaultTable
var Columns = []string{
	"run_id", "site_id", "status", "cutoff", "candidates", "unprocessed",
	"accepted", "failed", "attempts", "elapsed_ms", "error", "finished",
}

// Rows flattens a report in Columns order. cutoff is the unix epoch when unknown
func Rows(r domain.Report) [][]any {
	out := make([][]any, 0, len(r.Results))
	for _, res := range r.Results {
		errText := ""
		if res.Err != nil {
			errText = res.Err.Error()
		} else if res.Skipped {
			errText = res.SkipReason
		}
		cutoff := res.Cutoff.UTC()
		if res.Cutoff.IsZero() {
			cutoff = time.Unix(0, 0).UTC()
		}
		out = append(out, []any{
			r.RunID,
			res.SiteID,
			res.Status(),
			cutoff,
			uint32(res.Candidates),
			uint32(res.Unprocessed),
			uint32(res.Accepted),
			uint32(res.Failed),
			uint8(min(res.Attempts, 255)),
			uint64(res.Elapsed.Milliseconds()),
			errText,
			r.Finished.UTC(),
		})
	}
	return out
}

// Export writes the report to ClickHouse. A nil client is a no-op
func Export(ctx context.Context, ch store.Clickhouse, table string, r domain.Report) error {
	if ch == nil || len(r.Results) == 0 {
		return nil
	}
	if table == "" {
		table = DefaultTable
	}
	if err := ch.Insert(ctx, table, Rows(r)); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "report: export %s", table)
	}
	logger.C(ctx).Info().Str("table", table).Int("rows", len(r.Results)).Msg("report: exported")
	return nil
}
