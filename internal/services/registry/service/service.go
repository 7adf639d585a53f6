// Package service provides the scene registry: idempotent upsert, criteria
// selection and filesystem ingestion
package service

import (
	"context"
	"time"

	"sarbatch/internal/core/geom"
	"sarbatch/internal/modkit/repokit"
	perr "sarbatch/internal/platform/errors"
	"sarbatch/internal/platform/logger"
	"sarbatch/internal/services/registry/domain"
)

// Config holds registry tuning
type Config struct {
	// InsertChunk is the number of scenes written per transaction; <=0 -> 500
	InsertChunk int
}

// Service implements domain.RegistryPort and domain.IngesterPort
type Service struct {
	DB       repokit.TxRunner
	Binder   repokit.Binder[domain.StorageRepo]
	Find     domain.Finder
	Identify domain.Identifier
	Cfg      Config

	now func() time.Time
}

// New constructs the registry service. find and identify may be nil when
// ingestion is not used
func New(
	db repokit.TxRunner,
	binder repokit.Binder[domain.StorageRepo],
	find domain.Finder,
	identify domain.Identifier,
	cfg Config,
) *Service {
	if db == nil {
		panic("registry.Service requires a non nil TxRunner")
	}
	if binder == nil {
		panic("registry.Service requires a non nil Repo binder")
	}
	if cfg.InsertChunk <= 0 {
		cfg.InsertChunk = 500
	}
	return &Service{DB: db, Binder: binder, Find: find, Identify: identify, Cfg: cfg, now: time.Now}
}

// Upsert writes scenes in chunks, one transaction per chunk. Scenes whose id is
// already registered count as duplicates and are not modified
func (s *Service) Upsert(ctx context.Context, scenes []domain.Scene) (domain.UpsertStats, error) {
	st := domain.UpsertStats{Submitted: len(scenes)}
	for _, sc := range scenes {
		if sc.ID == "" {
			return st, perr.InvalidArgf("registry: scene without id")
		}
		if len(sc.Footprint) == 0 || len(sc.Footprint[0]) < 4 {
			return st, perr.WithField(perr.InvalidArgf("registry: scene %s has no footprint", sc.ID), "footprint")
		}
	}

	ingestedAt := s.now().UTC()
	for start := 0; start < len(scenes); start += s.Cfg.InsertChunk {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		chunk := scenes[start:min(start+s.Cfg.InsertChunk, len(scenes))]
		n, err := repokit.InTx(ctx, s.DB, s.Binder, func(r domain.StorageRepo) (int, error) {
			return r.InsertScenes(ctx, chunk, ingestedAt)
		})
		if err != nil {
			return st, perr.FromDB(err, "registry: upsert chunk at %d", start)
		}
		st.Inserted += n
	}
	st.Duplicates = st.Submitted - st.Inserted
	return st, nil
}

// Select returns the scenes matching c ordered by acquisition time then id.
// The repo narrows by attributes and bounding box; footprints are then tested exactly
func (s *Service) Select(ctx context.Context, c domain.Criteria) ([]domain.Scene, error) {
	if c.Geometry == nil || len(geom.Polygons(c.Geometry)) == 0 {
		return nil, perr.WithField(perr.InvalidArgf("registry: criteria need an areal geometry"), "geometry")
	}

	candidates, err := repokit.InTx(ctx, s.DB, s.Binder, func(r domain.StorageRepo) ([]domain.Scene, error) {
		return r.Candidates(ctx, c)
	})
	if err != nil {
		return nil, perr.FromDB(err, "registry: select")
	}

	out := candidates[:0]
	for _, sc := range candidates {
		if geom.Intersects(sc.Footprint, c.Geometry) {
			out = append(out, sc)
		}
	}
	return out, nil
}

// Count returns the registry size
func (s *Service) Count(ctx context.Context) (int, error) {
	n, err := repokit.MustBind(s.Binder, s.DB).CountScenes(ctx)
	if err != nil {
		return 0, perr.FromDB(err, "registry: count")
	}
	return n, nil
}

// Ingest discovers product paths, identifies each and upserts the identified
// scenes. Unidentifiable paths are logged and counted, never fatal
func (s *Service) Ingest(ctx context.Context, req domain.IngestRequest) (domain.IngestStats, error) {
	var st domain.IngestStats
	if s.Find == nil || s.Identify == nil {
		return st, perr.Validationf("registry: ingestion is not configured")
	}
	if req.Root == "" {
		return st, perr.WithField(perr.InvalidArgf("registry: ingest root is required"), "root")
	}

	log := logger.C(ctx).With().Str("component", "registry").Str("root", req.Root).Logger()
	t0 := time.Now()

	paths, err := s.Find(ctx, req)
	if err != nil {
		return st, perr.Wrapf(err, perr.ErrorCodeIO, "registry: discover %s", req.Root)
	}
	st.Found = len(paths)

	seen := make(map[string]struct{}, len(paths))
	scenes := make([]domain.Scene, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		sc, err := s.Identify(p)
		if err != nil {
			st.Unidentified++
			log.Warn().Err(err).Str("path", p).Msg("registry: skip unidentified product")
			continue
		}
		// the same product may sit on disk both zipped and unpacked
		if _, dup := seen[sc.ID]; dup {
			continue
		}
		seen[sc.ID] = struct{}{}
		scenes = append(scenes, sc)
	}

	up, err := s.Upsert(ctx, scenes)
	st.UpsertStats = up
	if err != nil {
		st.Failed = len(scenes) - up.Inserted
		return st, err
	}
	st.Duplicates += st.Found - st.Unidentified - len(scenes)

	log.Info().
		Int("found", st.Found).
		Int("unidentified", st.Unidentified).
		Int("inserted", st.Inserted).
		Int("duplicates", st.Duplicates).
		Int64("elapsed_ms", time.Since(t0).Milliseconds()).
		Msg("registry: ingest done")
	return st, nil
}
