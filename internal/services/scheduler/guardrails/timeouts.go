// Package guardrails holds time budgets and cross-host claims for site work
package guardrails

import (
	"context"
	"time"
)

// Timeouts bounds one site attempt. Zero values mean no extra limit at that level
type Timeouts struct {
	// Site caps a whole site attempt, scene processing included
	Site time.Duration

	// Scene caps one sink invocation
	Scene time.Duration

	// DB caps each ledger or lease statement
	DB time.Duration
}

// ForSite returns a context limited by the site budget without extending any parent deadline
func ForSite(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	return withChildTimeout(parent, t.Site)
}

// ForScene returns a sub context for one sink call bounded by Scene and the parent remainder
func ForScene(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	return withChildTimeout(parent, t.Scene)
}

// ForDB returns a sub context for a bookkeeping statement
func ForDB(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	return withChildTimeout(parent, t.DB)
}

// Remaining returns the time until the deadline on ctx or zero when none is set or already expired
func Remaining(ctx context.Context) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			return d
		}
	}
	return 0
}

// withChildTimeout picks the tighter of d and the parent remainder and never
// extends the parent deadline. d <= 0 yields a plain cancelable child
func withChildTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	if rem := Remaining(parent); rem > 0 && rem < d {
		return context.WithTimeout(parent, rem)
	}
	return context.WithTimeout(parent, d)
}
