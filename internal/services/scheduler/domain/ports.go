package domain

import (
	"context"
	"time"
)

// ReferenceStore enumerates local orbit files
type ReferenceStore interface {
	Files(ctx context.Context) ([]ReferenceFile, error)
}

// Catalog resolves a site by its folded key
type Catalog interface {
	Lookup(ctx context.Context, key string) (Site, error)
}

// KeyMapper maps a site id to its catalog key
type KeyMapper interface {
	Key(siteID string) string
}

// Registry selects scenes
type Registry interface {
	Select(ctx context.Context, c Criteria) ([]Scene, error)
}

// Sink processes one scene and returns the materialized artifact path
type Sink interface {
	Process(ctx context.Context, job SinkJob) (string, error)
}

// Artifacts answers whether an artifact is already materialized
type Artifacts interface {
	Exists(ctx context.Context, dir, name string) (bool, error)
}

// Layout places per-site output and staging directories. Check rejects ids
// that cannot name a directory below the layout root
type Layout interface {
	Check(siteID string) error
	OutDir(siteID string) string
	StagingDir(siteID string) string
	Ensure(siteID string) error
}

// SiteFinish is what the ledger records when a site ends
type SiteFinish struct {
	Status      string
	Cutoff      time.Time
	Candidates  int
	Unprocessed int
	Accepted    int
	Failed      int
	ElapsedMS   int64
	ErrText     string
}

// RunRepo is the SQL side of the scheduler: the run ledger and site leases
type RunRepo interface {
	StartSite(ctx context.Context, runID, siteID string, at time.Time) error
	FinishSite(ctx context.Context, runID, siteID string, at time.Time, fin SiteFinish) error
	SiteRuns(ctx context.Context, runID string) ([]SiteRun, error)
	LatestRunID(ctx context.Context) (string, error)

	// ClaimSite takes or renews the lease when free, expired or already ours
	ClaimSite(ctx context.Context, siteID, owner string, now time.Time, ttl time.Duration) (bool, error)
	ReleaseSite(ctx context.Context, siteID, owner string) error
}

// WorkerPort processes a single site once
type WorkerPort interface {
	ProcessSite(ctx context.Context, siteID string) SiteResult
}

// DispatcherPort runs many sites on a fixed pool
type DispatcherPort interface {
	Run(ctx context.Context, siteIDs []string) Report
}

// LedgerPort reads the run ledger
type LedgerPort interface {
	SiteRuns(ctx context.Context, runID string) ([]SiteRun, error)
	LatestRunID(ctx context.Context) (string, error)
}
