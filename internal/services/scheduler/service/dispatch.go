package service

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"sarbatch/internal/modkit/repokit"
	perr "sarbatch/internal/platform/errors"
	"sarbatch/internal/platform/logger"
	"sarbatch/internal/platform/store"
	"sarbatch/internal/services/scheduler/domain"
	"sarbatch/internal/services/scheduler/guardrails"

	"github.com/google/uuid"
)

func newRunID() string { return uuid.NewString() }

type task struct {
	idx    int
	siteID string
}

// Run processes siteIDs on a pool of Workers goroutines. One site's failure never
// affects another, and Results[i] always belongs to siteIDs[i]
func (s *Service) Run(ctx context.Context, siteIDs []string) domain.Report {
	runID := s.newID()
	ctx = logger.WithRun(ctx, runID)
	log := logger.C(ctx)

	rep := domain.Report{
		RunID:   runID,
		Started: s.now().UTC(),
		Results: make([]domain.SiteResult, len(siteIDs)),
	}
	workers := max(s.Cfg.Workers, 1)
	log.Info().Int("sites", len(siteIDs)).Int("workers", workers).Msg("scheduler: run start")

	tasks := make(chan task)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				rep.Results[t.idx] = s.runSite(ctx, runID, t.siteID)
			}
		}()
	}
	for i, id := range siteIDs {
		tasks <- task{idx: i, siteID: id}
	}
	close(tasks)
	wg.Wait()

	rep.Finished = s.now().UTC()
	t := rep.Totals()
	log.Info().
		Int("ok", t.OK).
		Int("skipped", t.Skipped).
		Int("failed", t.Failed).
		Int("accepted", t.Accepted).
		Int("scene_failures", t.SceneFailures).
		Dur("elapsed", rep.Finished.Sub(rep.Started)).
		Msg("scheduler: run done")
	return rep
}

// runSite wraps one site with the ledger, the optional lease and the retry loop
func (s *Service) runSite(ctx context.Context, runID, siteID string) (res domain.SiteResult) {
	ctx = logger.WithSite(ctx, siteID)
	t0 := time.Now()

	if err := ctx.Err(); err != nil {
		res = domain.SiteResult{SiteID: siteID, Err: perr.Wrapf(err, perr.CodeOf(err), "scheduler: run stopped before %s", siteID)}
		s.Metrics.site(res)
		return res
	}

	s.ledgerStart(ctx, runID, siteID)
	defer func() {
		res.Elapsed = time.Since(t0)
		s.ledgerFinish(ctx, runID, res)
		s.Metrics.site(res)
	}()

	work := func(ctx context.Context) error {
		res = s.processWithRetry(ctx, siteID)
		return nil
	}
	if !s.Cfg.Leases || s.DB == nil {
		_ = work(ctx)
		return res
	}

	l := &guardrails.Lease{DB: s.DB, Binder: s.Runs, Owner: guardrails.Owner(runID), TTL: s.Cfg.LeaseTTL, Now: s.now}
	switch err := l.Do(ctx, siteID, work); {
	case errors.Is(err, domain.ErrLeaseHeld):
		logger.C(ctx).Info().Msg("scheduler: site claimed elsewhere")
		res = domain.SiteResult{SiteID: siteID, Skipped: true, SkipReason: domain.ErrLeaseHeld.Error()}
	case errors.Is(err, domain.ErrLeaseLost):
		res.SiteID = siteID
		res.Err = domain.Classify(domain.ErrLeaseLost, perr.ErrorCodeConflict, res.Err,
			"scheduler: site %s stopped, lease taken over", siteID)
	case err != nil:
		res = domain.SiteResult{SiteID: siteID, Err: perr.FromDB(err, "scheduler: lease %s", siteID)}
	}
	return res
}

// processWithRetry repeats ProcessSite while the failure is retryable, with
// exponential backoff and jitter capped at 30s
func (s *Service) processWithRetry(ctx context.Context, siteID string) domain.SiteResult {
	attempts := max(s.Cfg.SiteRetries, 1)
	base := s.Cfg.RetryBase
	if base <= 0 {
		base = 500 * time.Millisecond
	}

	var res domain.SiteResult
	for i := range attempts {
		res = s.ProcessSite(ctx, siteID)
		res.Attempts = i + 1
		if res.Err == nil || !perr.Retryable(res.Err) || i == attempts-1 {
			return res
		}

		d := min(base<<i, 30*time.Second)
		j := d / 2
		if half := int64(d / 2); half > 0 {
			j += time.Duration(rand.Int63n(half))
		}
		logger.C(ctx).Warn().Err(res.Err).Int("attempt", i+1).Dur("backoff", j).Msg("scheduler: retrying site")
		if err := sleepCtx(ctx, j); err != nil {
			return res
		}
	}
	return res
}

func (s *Service) ledgerStart(ctx context.Context, runID, siteID string) {
	if s.DB == nil {
		return
	}
	dbCtx, cancel := guardrails.ForDB(ctx, s.timeouts())
	defer cancel()
	err := repokit.WithTx(dbCtx, s.DB, func(q repokit.Queryer) error {
		return s.Runs.Bind(q).StartSite(dbCtx, runID, siteID, s.now().UTC())
	})
	if err != nil {
		logger.C(ctx).Warn().Err(err).Msg("scheduler: ledger start")
	}
}

func (s *Service) ledgerFinish(ctx context.Context, runID string, res domain.SiteResult) {
	if s.DB == nil {
		return
	}
	fin := domain.SiteFinish{
		Status:      res.Status(),
		Cutoff:      res.Cutoff,
		Candidates:  res.Candidates,
		Unprocessed: res.Unprocessed,
		Accepted:    res.Accepted,
		Failed:      res.Failed,
		ElapsedMS:   res.Elapsed.Milliseconds(),
	}
	switch {
	case res.Err != nil:
		fin.ErrText = res.Err.Error()
	case res.Skipped:
		fin.ErrText = res.SkipReason
	}

	// the outcome is recorded even when the run was canceled
	dbCtx, cancel := guardrails.ForDB(context.WithoutCancel(ctx), s.timeouts())
	defer cancel()
	err := repokit.WithTx(dbCtx, s.DB, func(q repokit.Queryer) error {
		return s.Runs.Bind(q).FinishSite(dbCtx, runID, res.SiteID, s.now().UTC(), fin)
	})
	if err != nil {
		logger.C(ctx).Warn().Err(err).Msg("scheduler: ledger finish")
	}
}

// SiteRuns reads the ledger rows of a run
func (s *Service) SiteRuns(ctx context.Context, runID string) ([]domain.SiteRun, error) {
	if s.DB == nil {
		return nil, perr.Validationf("scheduler: run ledger is disabled")
	}
	out, err := repokit.MustBind(s.Runs, s.DB).SiteRuns(ctx, runID)
	if err != nil {
		return nil, perr.FromDB(err, "scheduler: site runs %s", runID)
	}
	return out, nil
}

// LatestRunID returns the most recent run in the ledger
func (s *Service) LatestRunID(ctx context.Context) (string, error) {
	if s.DB == nil {
		return "", perr.Validationf("scheduler: run ledger is disabled")
	}
	id, err := repokit.MustBind(s.Runs, s.DB).LatestRunID(ctx)
	if err != nil {
		if store.IsNoRows(err) {
			return "", perr.NotFoundf("scheduler: no runs recorded")
		}
		return "", perr.FromDB(err, "scheduler: latest run")
	}
	return id, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
