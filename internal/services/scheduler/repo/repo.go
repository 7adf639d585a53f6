// Package repo provides SQL access for the run ledger and site leases.
// Statements are portable between Postgres and SQLite
package repo

import (
	"context"
	"time"

	"sarbatch/internal/modkit/repokit"
	"sarbatch/internal/platform/store"
	ptime "sarbatch/internal/platform/time"
	"sarbatch/internal/services/scheduler/domain"
)

type (
	// PG is a SQL binder for domain.RunRepo. It serves both backends
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG returns a binder for domain.RunRepo
func NewPG() repokit.Binder[domain.RunRepo] { return PG{} }

// Bind implements repokit.Binder
func (PG) Bind(q repokit.Queryer) domain.RunRepo { return &queries{q: q} }

// StartSite marks a site as running within a run (idempotent)
func (r *queries) StartSite(ctx context.Context, runID, siteID string, at time.Time) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO site_runs (run_id, site_id, started_unix, status)
		VALUES ($1, $2, $3, 'running')
		ON CONFLICT (run_id, site_id) DO UPDATE
		SET started_unix = excluded.started_unix, status = 'running', finished_unix = NULL, error = NULL
	`, runID, siteID, at.Unix())
	return err
}

// FinishSite records the outcome of a site
func (r *queries) FinishSite(ctx context.Context, runID, siteID string, at time.Time, fin domain.SiteFinish) error {
	cutoff := ptime.Unix(fin.Cutoff)
	var errText any
	if fin.ErrText != "" {
		errText = fin.ErrText
	}
	_, err := r.q.Exec(ctx, `
		UPDATE site_runs SET
			finished_unix = $3,
			status = $4,
			cutoff_unix = $5,
			candidates = $6,
			unprocessed = $7,
			accepted = $8,
			failed = $9,
			elapsed_ms = $10,
			error = $11
		WHERE run_id = $1 AND site_id = $2
	`,
		runID, siteID, at.Unix(), fin.Status, cutoff,
		fin.Candidates, fin.Unprocessed, fin.Accepted, fin.Failed, fin.ElapsedMS, errText,
	)
	return err
}

// SiteRuns lists the ledger rows of one run
func (r *queries) SiteRuns(ctx context.Context, runID string) ([]domain.SiteRun, error) {
	return store.Many(ctx, r.q, scanRun, `
		SELECT run_id, site_id, started_unix, COALESCE(finished_unix, 0), status,
			COALESCE(cutoff_unix, 0), candidates, unprocessed, accepted, failed,
			elapsed_ms, COALESCE(error, '')
		FROM site_runs
		WHERE run_id = $1
		ORDER BY started_unix, site_id
	`, runID)
}

func scanRun(row store.Row) (domain.SiteRun, error) {
	var (
		sr                      domain.SiteRun
		started, finished, cut int64
	)
	err := row.Scan(&sr.RunID, &sr.SiteID, &started, &finished, &sr.Status,
		&cut, &sr.Candidates, &sr.Unprocessed, &sr.Accepted, &sr.Failed,
		&sr.ElapsedMS, &sr.Error)
	if err != nil {
		return sr, err
	}
	sr.Started = time.Unix(started, 0).UTC()
	if finished != 0 {
		sr.Finished = time.Unix(finished, 0).UTC()
	}
	if cut != 0 {
		sr.Cutoff = time.Unix(cut, 0).UTC()
	}
	return sr, nil
}

// LatestRunID returns the run with the most recent site start; store.ErrNoRows when empty
func (r *queries) LatestRunID(ctx context.Context) (string, error) {
	return store.Scalar[string](ctx, r.q, `
		SELECT run_id FROM site_runs
		GROUP BY run_id
		ORDER BY MAX(started_unix) DESC, run_id DESC
		LIMIT 1
	`)
}

// ClaimSite takes the lease when it is free, expired or already held by owner
func (r *queries) ClaimSite(ctx context.Context, siteID, owner string, now time.Time, ttl time.Duration) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		INSERT INTO site_leases (site_id, owner, claimed_unix, expires_unix)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (site_id) DO UPDATE
		SET owner = excluded.owner, claimed_unix = excluded.claimed_unix, expires_unix = excluded.expires_unix
		WHERE site_leases.expires_unix <= $3 OR site_leases.owner = $2
	`, siteID, owner, now.Unix(), now.Add(ttl).Unix())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ReleaseSite drops the lease if owner still holds it
func (r *queries) ReleaseSite(ctx context.Context, siteID, owner string) error {
	_, err := r.q.Exec(ctx, `DELETE FROM site_leases WHERE site_id = $1 AND owner = $2`, siteID, owner)
	return err
}
