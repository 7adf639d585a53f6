package service

import (
	"context"

	perr "sarbatch/internal/platform/errors"
	"sarbatch/internal/services/scheduler/domain"
)

// ResolveCutoff returns the latest validity end among the precise (POE) orbit
// files. Scenes acquired after it cannot be processed with precise orbits yet
func ResolveCutoff(ctx context.Context, ref domain.ReferenceStore) (domain.Cutoff, error) {
	files, err := ref.Files(ctx)
	if err != nil {
		return domain.Cutoff{}, domain.Classify(domain.ErrMissingReferenceData, perr.ErrorCodeIO, err,
			"scheduler: read reference store")
	}
	at, n, ok := domain.MaxValidityEnd(files, domain.TierPOE)
	if !ok {
		return domain.Cutoff{}, domain.Classify(domain.ErrMissingReferenceData, perr.ErrorCodeNotFound, nil,
			"scheduler: no %s orbit files among %d", domain.TierPOE, len(files))
	}
	return domain.Cutoff{At: at, Tier: domain.TierPOE, Files: n}, nil
}
