package service

import (
	"context"
	"fmt"

	"sarbatch/internal/core/scene"
	"sarbatch/internal/services/scheduler/domain"
)

// Unprocessed drops the candidates whose artifact already exists in outDir.
// Order is preserved; nothing is cached between calls
func Unprocessed(
	ctx context.Context,
	fs domain.Artifacts,
	candidates []domain.Scene,
	outDir string,
	resolution int,
	scaling scene.Scaling,
) ([]domain.Scene, error) {
	out := make([]domain.Scene, 0, len(candidates))
	for _, c := range candidates {
		name := scene.ArtifactName(c, resolution, scaling)
		ok, err := fs.Exists(ctx, outDir, name)
		if err != nil {
			return nil, fmt.Errorf("check artifact %s: %w", name, err)
		}
		if !ok {
			out = append(out, c)
		}
	}
	return out, nil
}
