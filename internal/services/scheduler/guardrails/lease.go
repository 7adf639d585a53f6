package guardrails

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"sarbatch/internal/modkit/repokit"
	"sarbatch/internal/platform/logger"
	"sarbatch/internal/services/scheduler/domain"
)

// Lease claims sites in the site_leases table so several dispatcher hosts can
// share one site list. A claim expires after TTL, so a crashed host only
// blocks a site until then. A live holder refreshes its claim every Renew
type Lease struct {
	DB     repokit.TxRunner
	Binder repokit.Binder[domain.RunRepo]
	Owner  string
	TTL    time.Duration
	Now    func() time.Time

	// Renew is the refresh interval; default TTL/3
	Renew time.Duration
}

// Owner builds a lease owner id from the host name, pid and run id
func Owner(runID string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	if len(runID) > 8 {
		runID = runID[:8]
	}
	return fmt.Sprintf("%s:%d:%s", host, os.Getpid(), runID)
}

// Do runs fn while holding the site lease. It returns domain.ErrLeaseHeld
// without calling fn when another owner holds an unexpired claim. The claim is
// refreshed while fn runs; if another owner takes it anyway, fn's context is
// canceled and Do returns domain.ErrLeaseLost
func (l *Lease) Do(ctx context.Context, siteID string, fn func(context.Context) error) error {
	now := time.Now
	if l.Now != nil {
		now = l.Now
	}
	ttl := l.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	every := l.Renew
	if every <= 0 {
		every = ttl / 3
	}

	claimed, err := l.claim(ctx, siteID, now, ttl)
	if err != nil {
		return fmt.Errorf("claim site %s: %w", siteID, err)
	}
	if !claimed {
		return domain.ErrLeaseHeld
	}

	defer func() {
		// release on a fresh budget so a canceled run still frees the site
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := l.Binder.Bind(l.DB).ReleaseSite(rctx, siteID, l.Owner); err != nil {
			logger.C(ctx).Warn().Err(err).Str("site", siteID).Msg("scheduler: release lease failed")
		}
	}()

	lctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	stop, done := make(chan struct{}), make(chan struct{})
	go func() {
		defer close(done)
		l.keep(lctx, siteID, now, ttl, every, stop, cancel)
	}()

	err = fn(lctx)
	close(stop)
	<-done

	if errors.Is(context.Cause(lctx), domain.ErrLeaseLost) {
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrLeaseLost, err)
		}
		return domain.ErrLeaseLost
	}
	return err
}

func (l *Lease) claim(ctx context.Context, siteID string, now func() time.Time, ttl time.Duration) (bool, error) {
	return repokit.InTx(ctx, l.DB, l.Binder, func(r domain.RunRepo) (bool, error) {
		return r.ClaimSite(ctx, siteID, l.Owner, now().UTC(), ttl)
	})
}

// keep refreshes the claim until stop closes. A refused refresh means another
// owner took the site; lost cancels the holder with domain.ErrLeaseLost.
// Refresh errors are logged and retried on the next tick, the claim stands until it expires
func (l *Lease) keep(
	ctx context.Context,
	siteID string,
	now func() time.Time,
	ttl, every time.Duration,
	stop <-chan struct{},
	lost context.CancelCauseFunc,
) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-t.C:
		}
		ok, err := l.claim(ctx, siteID, now, ttl)
		switch {
		case err != nil:
			logger.C(ctx).Warn().Err(err).Str("site", siteID).Msg("scheduler: renew lease failed")
		case !ok:
			logger.C(ctx).Error().Str("site", siteID).Msg("scheduler: lease taken by another owner")
			lost(domain.ErrLeaseLost)
			return
		}
	}
}
