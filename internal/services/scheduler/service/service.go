// Package service runs the per-site pipeline (cutoff, selection, dedup, sink)
// and dispatches many sites over a fixed worker pool
package service

import (
	"time"

	"sarbatch/internal/core/scene"
	"sarbatch/internal/modkit/repokit"
	"sarbatch/internal/services/scheduler/domain"
	"sarbatch/internal/services/scheduler/guardrails"
)

// Config is the immutable processing configuration, built once and passed by value
type Config struct {
	// Site pool size, independent of the number of sites; <=0 -> 1
	Workers int

	// SceneWorkers bounds concurrent sink calls inside one site; <=0 -> 1
	SceneWorkers int

	// SceneTimeout caps one sink call; SiteTimeout caps a site attempt. Zero disables
	SceneTimeout time.Duration
	SiteTimeout  time.Duration

	// SiteRetries is the number of attempts for a site whose failure is retryable; <=0 -> 1
	SiteRetries int
	// RetryBase is the backoff base between attempts; <=0 -> 500ms
	RetryBase time.Duration

	// Processing parameters; they also name the artifacts
	Resolution int
	Scaling    scene.Scaling

	// Selection constraints shared by every site
	Sensors       []string
	Product       string
	Mode          string
	Polarizations scene.Polarization

	// Leases enables cross-host site claims with the given TTL
	Leases   bool
	LeaseTTL time.Duration
}

// Ports are the collaborators of the scheduler
type Ports struct {
	Reference domain.ReferenceStore
	Catalog   domain.Catalog
	Keys      domain.KeyMapper
	Registry  domain.Registry
	Sink      domain.Sink
	Artifacts domain.Artifacts
	Layout    domain.Layout
}

// Service implements domain.WorkerPort and domain.DispatcherPort
type Service struct {
	Ports
	Cfg Config

	// DB and Runs back the run ledger and leases; both nil disables them
	DB   repokit.TxRunner
	Runs repokit.Binder[domain.RunRepo]

	Metrics *Metrics

	now   func() time.Time
	newID func() string
	sleep func(d time.Duration)
}

// New constructs the scheduler service. It panics on missing collaborators
func New(p Ports, cfg Config, db repokit.TxRunner, runs repokit.Binder[domain.RunRepo], m *Metrics) *Service {
	switch {
	case p.Reference == nil:
		panic("scheduler.Service requires a reference store")
	case p.Catalog == nil:
		panic("scheduler.Service requires a site catalog")
	case p.Registry == nil:
		panic("scheduler.Service requires a registry")
	case p.Sink == nil:
		panic("scheduler.Service requires a sink")
	case p.Artifacts == nil || p.Layout == nil:
		panic("scheduler.Service requires artifacts and a layout")
	}
	if (db == nil) != (runs == nil) {
		panic("scheduler.Service needs both DB and Runs or neither")
	}
	if m == nil {
		m = NewMetrics(nil)
	}
	return &Service{
		Ports: p, Cfg: cfg, DB: db, Runs: runs, Metrics: m,
		now: time.Now, newID: newRunID,
	}
}

func (s *Service) timeouts() guardrails.Timeouts {
	return guardrails.Timeouts{
		Site:  s.Cfg.SiteTimeout,
		Scene: s.Cfg.SceneTimeout,
		DB:    10 * time.Second,
	}
}

func (s *Service) siteKey(siteID string) string {
	if s.Keys == nil {
		return siteID
	}
	return s.Keys.Key(siteID)
}
