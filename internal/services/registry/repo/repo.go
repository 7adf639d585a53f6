// Package repo provides SQL access for the scene registry.
// Statements are portable between Postgres and SQLite
package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sarbatch/internal/core/geom"
	"sarbatch/internal/core/scene"
	"sarbatch/internal/modkit/repokit"
	"sarbatch/internal/platform/store"
	"sarbatch/internal/services/registry/domain"
)

type (
	// PG is a SQL binder for domain.StorageRepo. It serves both backends
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG returns a binder for domain.StorageRepo
func NewPG() repokit.Binder[domain.StorageRepo] { return PG{} }

// Bind implements repokit.Binder
func (PG) Bind(q repokit.Queryer) domain.StorageRepo { return &queries{q: q} }

const insertSceneSQL = `
	INSERT INTO scenes (
		id, sensor, product, acquisition_mode, orbit_direction, absolute_orbit,
		vv, vh, hh, hv, acquired_ms, stop_ms,
		min_x, min_y, max_x, max_y, footprint_wkt, path, ingested_unix
	) VALUES (
		$1, $2, $3, $4, $5, $6,
		$7, $8, $9, $10, $11, $12,
		$13, $14, $15, $16, $17, $18, $19
	)
	ON CONFLICT (id) DO NOTHING
`

// InsertScenes inserts each scene; existing ids are left untouched
func (r *queries) InsertScenes(ctx context.Context, scenes []domain.Scene, ingestedAt time.Time) (int, error) {
	inserted := 0
	for _, s := range scenes {
		b := s.Footprint.Bound()
		p := s.Polarizations
		tag, err := r.q.Exec(ctx, insertSceneSQL,
			s.ID, s.Sensor, s.Product, s.Mode, s.Orbit, s.AbsoluteOrbit,
			p.Has(scene.VV), p.Has(scene.VH), p.Has(scene.HH), p.Has(scene.HV),
			s.AcquiredAt.UnixMilli(), s.StoppedAt.UnixMilli(),
			b.Min[0], b.Min[1], b.Max[0], b.Max[1],
			geom.WKT(s.Footprint), s.Path, ingestedAt.Unix(),
		)
		if err != nil {
			return inserted, fmt.Errorf("insert scene %s: %w", s.ID, err)
		}
		if tag.RowsAffected() > 0 {
			inserted++
		}
	}
	return inserted, nil
}

const selectScenesSQL = `
	SELECT id, sensor, product, acquisition_mode, orbit_direction, absolute_orbit,
		vv, vh, hh, hv, acquired_ms, stop_ms, footprint_wkt, path
	FROM scenes
	WHERE max_x >= $1 AND min_x <= $2 AND max_y >= $3 AND min_y <= $4`

// Candidates applies every attribute filter plus the bounding box prefilter.
// The exact footprint test is left to the caller
func (r *queries) Candidates(ctx context.Context, c domain.Criteria) ([]domain.Scene, error) {
	b := c.Geometry.Bound()
	var sb strings.Builder
	sb.WriteString(selectScenesSQL)
	args := []any{b.Min[0], b.Max[0], b.Min[1], b.Max[1]}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !c.MaxAcquired.IsZero() {
		sb.WriteString(" AND acquired_ms <= " + arg(c.MaxAcquired.UnixMilli()))
	}
	if len(c.Sensors) > 0 {
		ph := make([]string, 0, len(c.Sensors))
		for _, s := range c.Sensors {
			ph = append(ph, arg(s))
		}
		sb.WriteString(" AND sensor IN (" + strings.Join(ph, ", ") + ")")
	}
	if c.Product != "" {
		sb.WriteString(" AND product = " + arg(c.Product))
	}
	if c.Mode != "" {
		sb.WriteString(" AND acquisition_mode = " + arg(c.Mode))
	}
	for _, ch := range []struct {
		p   scene.Polarization
		col string
	}{{scene.VV, "vv"}, {scene.VH, "vh"}, {scene.HH, "hh"}, {scene.HV, "hv"}} {
		if c.Polarizations.Has(ch.p) {
			sb.WriteString(" AND " + ch.col + " = " + arg(true))
		}
	}
	sb.WriteString(" ORDER BY acquired_ms, id")

	return store.Many(ctx, r.q, scanScene, sb.String(), args...)
}

func scanScene(row store.Row) (domain.Scene, error) {
	var (
		s              domain.Scene
		vv, vh, hh, hv bool
		acq, stop      int64
		wktText        string
	)
	if err := row.Scan(
		&s.ID, &s.Sensor, &s.Product, &s.Mode, &s.Orbit, &s.AbsoluteOrbit,
		&vv, &vh, &hh, &hv, &acq, &stop, &wktText, &s.Path,
	); err != nil {
		return s, err
	}
	for _, f := range []struct {
		on bool
		p  scene.Polarization
	}{{vv, scene.VV}, {vh, scene.VH}, {hh, scene.HH}, {hv, scene.HV}} {
		if f.on {
			s.Polarizations |= f.p
		}
	}
	s.AcquiredAt = time.UnixMilli(acq).UTC()
	s.StoppedAt = time.UnixMilli(stop).UTC()
	fp, err := geom.ParsePolygonWKT(wktText)
	if err != nil {
		return s, fmt.Errorf("scene %s footprint: %w", s.ID, err)
	}
	s.Footprint = fp
	return s, nil
}

// CountScenes returns the number of registered scenes
func (r *queries) CountScenes(ctx context.Context) (int, error) {
	return store.Scalar[int](ctx, r.q, `SELECT COUNT(*) FROM scenes`)
}
