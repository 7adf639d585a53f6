package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"sarbatch/internal/adapters/orbits"
	perr "sarbatch/internal/platform/errors"
	"sarbatch/internal/services/scheduler/domain"
	"sarbatch/internal/services/scheduler/repo"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var allSites = []string{"Alpha", "Bravo", "Charlie", "Delta", "Echo"}

// flakyRef fails exactly one call, whichever site makes it
type flakyRef struct {
	inner *fakeRef
	calls atomic.Int32
	failN int32
}

func (f *flakyRef) Files(ctx context.Context) ([]orbits.File, error) {
	if f.calls.Add(1) == f.failN {
		return nil, nil
	}
	return f.inner.Files(ctx)
}

func TestRun_OneCutoffFailureLeavesOthers(t *testing.T) {
	t.Parallel()
	e := newEnv(t, baseConfig(), false)
	e.seed(t, "s", 3, square(1, 1, 3, 3))
	e.svc.Reference = &flakyRef{inner: e.ref, failN: 3}

	rep := e.svc.Run(context.Background(), allSites)
	tot := rep.Totals()
	if tot.Sites != 5 || tot.OK != 4 || tot.Failed != 1 {
		t.Fatalf("totals = %+v", tot)
	}
	for _, r := range rep.Results {
		if r.Err != nil && !errors.Is(r.Err, domain.ErrMissingReferenceData) {
			t.Fatalf("unexpected failure: %v", r.Err)
		}
	}
	if rep.AllFailed() {
		t.Fatalf("AllFailed should be false")
	}
}

func TestRun_ResultsFollowInputOrder(t *testing.T) {
	t.Parallel()
	cfg := baseConfig()
	cfg.Workers = 5
	e := newEnv(t, cfg, false)
	// earlier sites finish last
	e.svc.Registry = &slowRegistry{inner: e.reg, delay: map[string]time.Duration{
		"Alpha":   80 * time.Millisecond,
		"Bravo":   60 * time.Millisecond,
		"Charlie": 40 * time.Millisecond,
		"Delta":   20 * time.Millisecond,
	}}

	rep := e.svc.Run(context.Background(), allSites)
	if len(rep.Results) != len(allSites) {
		t.Fatalf("results = %d", len(rep.Results))
	}
	for i, r := range rep.Results {
		if r.SiteID != allSites[i] {
			t.Fatalf("Results[%d] = %s, want %s", i, r.SiteID, allSites[i])
		}
	}
	if rep.RunID == "" || rep.Finished.Before(rep.Started) {
		t.Fatalf("report header = %+v", rep)
	}
}

func TestRun_PoolSmallerThanSites(t *testing.T) {
	t.Parallel()
	cfg := baseConfig()
	cfg.Workers = 1
	e := newEnv(t, cfg, false)
	rep := e.svc.Run(context.Background(), append(allSites, "Zulu"))
	tot := rep.Totals()
	if tot.OK != 5 || tot.Failed != 1 || !errors.Is(rep.Results[5].Err, domain.ErrUnknownSite) {
		t.Fatalf("totals = %+v", tot)
	}
}

func TestRun_RetriesTransientRegistryFailures(t *testing.T) {
	t.Parallel()
	cfg := baseConfig()
	cfg.SiteRetries = 3
	e := newEnv(t, cfg, false)
	e.seed(t, "s", 2, square(1, 1, 3, 3))

	var n atomic.Int32
	sr := &slowRegistry{inner: e.reg, failFn: func(domain.Criteria) error {
		if n.Add(1) == 1 {
			return perr.Wrap(errTransient, perr.ErrorCodeUnavailable, "db busy")
		}
		return nil
	}}
	e.svc.Registry = sr

	rep := e.svc.Run(context.Background(), []string{"Alpha"})
	r := rep.Results[0]
	if r.Err != nil || r.Attempts != 2 || r.Accepted != 2 {
		t.Fatalf("result = %+v", r)
	}
}

func TestRun_DoesNotRetryPermanentFailures(t *testing.T) {
	t.Parallel()
	cfg := baseConfig()
	cfg.SiteRetries = 3
	e := newEnv(t, cfg, false)
	rep := e.svc.Run(context.Background(), []string{"Zulu"})
	if r := rep.Results[0]; r.Attempts != 1 || r.Err == nil {
		t.Fatalf("result = %+v", r)
	}
	if !rep.AllFailed() {
		t.Fatalf("AllFailed should be true")
	}
}

func TestRun_CanceledContextStillReportsEverySite(t *testing.T) {
	t.Parallel()
	e := newEnv(t, baseConfig(), false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep := e.svc.Run(ctx, allSites)
	for i, r := range rep.Results {
		if r.SiteID != allSites[i] || r.Err == nil {
			t.Fatalf("Results[%d] = %+v", i, r)
		}
	}
}

func TestRun_LedgerAndLeases(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cfg := baseConfig()
	cfg.Leases = true
	cfg.LeaseTTL = time.Hour
	e := newEnv(t, cfg, true)
	e.seed(t, "s", 2, square(1, 1, 3, 3))

	// another host holds Bravo
	now := time.Now().UTC()
	ok, err := repo.NewPG().Bind(e.db).ClaimSite(ctx, "Bravo", "other-host:1:abc", now, time.Hour)
	if err != nil || !ok {
		t.Fatalf("pre-claim = %v, %v", ok, err)
	}

	rep := e.svc.Run(ctx, []string{"Alpha", "Bravo"})
	if a := rep.Results[0]; a.Err != nil || a.Accepted != 2 {
		t.Fatalf("Alpha = %+v", a)
	}
	if b := rep.Results[1]; !b.Skipped || b.SkipReason != domain.ErrLeaseHeld.Error() {
		t.Fatalf("Bravo = %+v", b)
	}

	latest, err := e.svc.LatestRunID(ctx)
	if err != nil || latest != rep.RunID {
		t.Fatalf("latest = %q, %v; want %q", latest, err, rep.RunID)
	}
	runs, err := e.svc.SiteRuns(ctx, rep.RunID)
	if err != nil || len(runs) != 2 {
		t.Fatalf("site runs = %+v, %v", runs, err)
	}
	byID := map[string]domain.SiteRun{}
	for _, r := range runs {
		byID[r.SiteID] = r
	}
	if a := byID["Alpha"]; a.Status != domain.StatusOK || a.Accepted != 2 || a.Cutoff.IsZero() || a.Finished.IsZero() {
		t.Fatalf("Alpha ledger = %+v", a)
	}
	if b := byID["Bravo"]; b.Status != domain.StatusSkipped || b.Error == "" {
		t.Fatalf("Bravo ledger = %+v", b)
	}

	// Alpha was released after the run
	ok, err = repo.NewPG().Bind(e.db).ClaimSite(ctx, "Alpha", "other-host:1:abc", now, time.Hour)
	if err != nil || !ok {
		t.Fatalf("Alpha should be free: %v, %v", ok, err)
	}
}

func TestLedger_DisabledAndEmpty(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	off := newEnv(t, baseConfig(), false)
	if _, err := off.svc.LatestRunID(ctx); perr.CodeOf(err) != perr.ErrorCodeValidation {
		t.Fatalf("disabled ledger err = %v", err)
	}

	on := newEnv(t, baseConfig(), true)
	if _, err := on.svc.LatestRunID(ctx); perr.CodeOf(err) != perr.ErrorCodeNotFound {
		t.Fatalf("empty ledger err = %v", err)
	}
}

func TestMetrics_CountSitesAndScenes(t *testing.T) {
	t.Parallel()
	e := newEnv(t, baseConfig(), false)
	reg := prometheus.NewRegistry()
	e.svc.Metrics = NewMetrics(reg)
	e.seed(t, "s", 3, square(1, 1, 3, 3))

	e.svc.Run(context.Background(), []string{"Alpha", "Bravo", "Zulu"})

	if got := testutil.ToFloat64(e.svc.Metrics.Sites.WithLabelValues(domain.StatusOK)); got != 2 {
		t.Fatalf("ok sites = %v", got)
	}
	if got := testutil.ToFloat64(e.svc.Metrics.Sites.WithLabelValues(domain.StatusError)); got != 1 {
		t.Fatalf("error sites = %v", got)
	}
	if got := testutil.ToFloat64(e.svc.Metrics.Scenes.WithLabelValues("done")); got != 3 {
		t.Fatalf("scenes done = %v", got)
	}
	if n, err := testutil.GatherAndCount(reg, "sarbatch_sites_total"); err != nil || n != 2 {
		t.Fatalf("gathered series = %d, %v", n, err)
	}
}
