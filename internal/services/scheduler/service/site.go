package service

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"sarbatch/internal/core/scene"
	perr "sarbatch/internal/platform/errors"
	"sarbatch/internal/platform/logger"
	"sarbatch/internal/services/scheduler/domain"
	"sarbatch/internal/services/scheduler/guardrails"

	"golang.org/x/sync/errgroup"
)

// SkipSingleScene is the skip reason when exactly one scene is pending for a site.
// Such a site is left for a later run instead of being submitted alone
const SkipSingleScene = "single scene pending"

// ProcessSite runs one attempt of the site pipeline: resolve the cutoff, look up
// the site, select from the registry, drop already materialized scenes and submit
// the rest to the sink. Per-scene failures are counted and never abort the site
func (s *Service) ProcessSite(ctx context.Context, siteID string) (res domain.SiteResult) {
	res.SiteID = siteID
	t0 := time.Now()
	defer func() { res.Elapsed = time.Since(t0) }()

	ctx, cancel := guardrails.ForSite(logger.WithSite(ctx, siteID), s.timeouts())
	defer cancel()
	log := logger.C(ctx)

	if err := s.Layout.Check(siteID); err != nil {
		res.Err = domain.Classify(domain.ErrUnknownSite, perr.ErrorCodeInvalidArgument, err, "scheduler: site %q", siteID)
		log.Error().Err(res.Err).Msg("scheduler: site id")
		return res
	}

	cut, err := ResolveCutoff(ctx, s.Reference)
	if err != nil {
		res.Err = err
		log.Error().Err(err).Msg("scheduler: cutoff")
		return res
	}
	res.Cutoff = cut.At

	key := s.siteKey(siteID)
	site, err := s.Catalog.Lookup(ctx, key)
	if err != nil {
		res.Err = domain.Classify(domain.ErrUnknownSite, perr.ErrorCodeNotFound, err,
			"scheduler: site %s (key %q)", siteID, key)
		log.Error().Err(res.Err).Msg("scheduler: lookup")
		return res
	}

	outDir := s.Layout.OutDir(siteID)
	candidates, err := s.Registry.Select(ctx, s.criteria(site, outDir, cut))
	if err != nil {
		code := perr.ErrorCodeDB
		if perr.Retryable(err) {
			code = perr.ErrorCodeUnavailable
		}
		res.Err = domain.Classify(domain.ErrRegistryQuery, code, err, "scheduler: select for %s", siteID)
		log.Error().Err(res.Err).Msg("scheduler: registry")
		return res
	}
	res.Candidates = len(candidates)

	todo, err := Unprocessed(ctx, s.Artifacts, candidates, outDir, s.Cfg.Resolution, s.Cfg.Scaling)
	if err != nil {
		res.Err = perr.Wrapf(err, perr.ErrorCodeIO, "scheduler: dedup for %s", siteID)
		log.Error().Err(res.Err).Msg("scheduler: dedup")
		return res
	}
	res.Unprocessed = len(todo)

	ev := log.Info().
		Time("cutoff", cut.At).
		Int("candidates", res.Candidates).
		Int("unprocessed", res.Unprocessed)
	if len(todo) <= 1 {
		if len(todo) == 1 {
			res.Skipped, res.SkipReason = true, SkipSingleScene
		}
		ev.Msg("scheduler: nothing to submit")
		return res
	}
	ev.Msg("scheduler: submitting")

	if err := s.Layout.Ensure(siteID); err != nil {
		res.Err = perr.Wrapf(err, perr.ErrorCodeIO, "scheduler: layout for %s", siteID)
		log.Error().Err(res.Err).Msg("scheduler: layout")
		return res
	}
	res.Accepted, res.Failed = s.submit(ctx, siteID, todo)
	if err := ctx.Err(); err != nil && res.Accepted < len(todo) {
		res.Err = perr.Wrapf(err, perr.CodeOf(err), "scheduler: site %s stopped after %d of %d scenes",
			siteID, res.Accepted, len(todo))
	}
	return res
}

func (s *Service) criteria(site domain.Site, outDir string, cut domain.Cutoff) domain.Criteria {
	return domain.Criteria{
		Geometry:      site.Geometry,
		OutputDir:     outDir,
		MaxAcquired:   cut.At,
		Sensors:       append([]string(nil), s.Cfg.Sensors...),
		Product:       s.Cfg.Product,
		Mode:          s.Cfg.Mode,
		Polarizations: s.Cfg.Polarizations,
	}
}

// submit hands scenes to the sink in registry order with at most SceneWorkers in
// flight. It returns how many were submitted and how many of those failed
func (s *Service) submit(ctx context.Context, siteID string, todo []domain.Scene) (submitted, failed int) {
	tos := s.timeouts()
	outDir, staging := s.Layout.OutDir(siteID), s.Layout.StagingDir(siteID)
	log := logger.C(ctx)

	var g errgroup.Group
	g.SetLimit(max(s.Cfg.SceneWorkers, 1))
	var nFailed atomic.Int64

	for _, sc := range todo {
		if ctx.Err() != nil {
			break
		}
		submitted++
		g.Go(func() error {
			sctx, cancel := guardrails.ForScene(ctx, tos)
			defer cancel()

			t0 := time.Now()
			path, err := s.Sink.Process(sctx, domain.SinkJob{
				Scene:      sc,
				OutputDir:  outDir,
				StagingDir: staging,
				Artifact:   scene.ArtifactName(sc, s.Cfg.Resolution, s.Cfg.Scaling),
				Resolution: s.Cfg.Resolution,
				Scaling:    s.Cfg.Scaling,
			})
			ms := time.Since(t0).Milliseconds()
			if err != nil {
				nFailed.Add(1)
				code := perr.ErrorCodeUnknown
				if errors.Is(err, context.DeadlineExceeded) {
					code = perr.ErrorCodeUnavailable
				}
				e := domain.Classify(domain.ErrSceneProcessing, code, err, "scheduler: scene %s", sc.ID)
				s.Metrics.scene(false)
				log.Error().Err(e).Str("scene", sc.ID).Int64("elapsed_ms", ms).Msg("scheduler: scene failed")
				return nil
			}
			s.Metrics.scene(true)
			log.Info().Str("scene", sc.ID).Str("artifact", path).Int64("elapsed_ms", ms).Msg("scheduler: scene done")
			return nil
		})
	}
	_ = g.Wait()
	return submitted, int(nFailed.Load())
}
