package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"sarbatch/internal/adapters/orbits"
	perr "sarbatch/internal/platform/errors"
	"sarbatch/internal/services/scheduler/domain"
)

func TestResolveCutoff(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ref := &fakeRef{files: []orbits.File{
		poe(t0),
		res(t0.Add(72 * time.Hour)),
		poe(t0.Add(24 * time.Hour)),
		poe(t0.Add(12 * time.Hour)),
	}}
	cut, err := ResolveCutoff(ctx, ref)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !cut.At.Equal(t0.Add(24*time.Hour)) || cut.Tier != orbits.TierPOE || cut.Files != 3 {
		t.Fatalf("cutoff = %+v", cut)
	}
}

func TestResolveCutoff_MissingPreciseTier(t *testing.T) {
	t.Parallel()
	cases := map[string]*fakeRef{
		"empty":    {},
		"res only": {files: []orbits.File{res(t0)}},
	}
	for name, ref := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ResolveCutoff(context.Background(), ref)
			if !errors.Is(err, domain.ErrMissingReferenceData) {
				t.Fatalf("err = %v, want ErrMissingReferenceData", err)
			}
			if perr.CodeOf(err) != perr.ErrorCodeNotFound {
				t.Fatalf("code = %v", perr.CodeOf(err))
			}
		})
	}
}

func TestResolveCutoff_StoreError(t *testing.T) {
	t.Parallel()
	cause := errors.New("permission denied")
	_, err := ResolveCutoff(context.Background(), &fakeRef{err: cause})
	if !errors.Is(err, domain.ErrMissingReferenceData) || !errors.Is(err, cause) {
		t.Fatalf("err = %v", err)
	}
	if perr.Retryable(err) {
		t.Fatalf("store errors are not retried")
	}
}
