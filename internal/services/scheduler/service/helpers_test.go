package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"sarbatch/internal/adapters/artifacts"
	"sarbatch/internal/adapters/orbits"
	"sarbatch/internal/adapters/sites"
	"sarbatch/internal/core/scene"
	"sarbatch/internal/platform/store"
	"sarbatch/internal/platform/store/storetest"
	regrepo "sarbatch/internal/services/registry/repo"
	regsvc "sarbatch/internal/services/registry/service"
	"sarbatch/internal/services/scheduler/domain"
	"sarbatch/internal/services/scheduler/repo"

	"github.com/paulmach/orb"
)

var t0 = time.Date(2021, 6, 1, 5, 0, 0, 0, time.UTC)

type fakeRef struct {
	files []orbits.File
	err   error
}

func (f *fakeRef) Files(context.Context) ([]orbits.File, error) { return f.files, f.err }

func poe(end time.Time) orbits.File {
	return orbits.File{Name: "poe", Tier: orbits.TierPOE, ValidityStart: end.Add(-26 * time.Hour), ValidityEnd: end}
}

func res(end time.Time) orbits.File {
	return orbits.File{Name: "res", Tier: orbits.TierRES, ValidityStart: end.Add(-3 * time.Hour), ValidityEnd: end}
}

// fileSink materializes the artifact like the real sink does
type fileSink struct {
	mu    sync.Mutex
	calls []string
	jobs  []domain.SinkJob
	fail  map[string]error
	block map[string]bool
}

func (f *fileSink) Process(ctx context.Context, job domain.SinkJob) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, job.Scene.ID)
	f.jobs = append(f.jobs, job)
	f.mu.Unlock()

	if f.block[job.Scene.ID] {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if err := f.fail[job.Scene.ID]; err != nil {
		return "", err
	}
	if err := os.MkdirAll(job.OutputDir, 0o755); err != nil {
		return "", err
	}
	p := filepath.Join(job.OutputDir, job.Artifact)
	return p, os.WriteFile(p, []byte("tif"), 0o644)
}

func (f *fileSink) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// slowRegistry delays or fails Select per site, keyed by the output dir
type slowRegistry struct {
	inner  domain.Registry
	delay  map[string]time.Duration
	mu     sync.Mutex
	fails  int
	failFn func(c domain.Criteria) error
}

func (r *slowRegistry) Select(ctx context.Context, c domain.Criteria) ([]domain.Scene, error) {
	if d := r.delay[filepath.Base(filepath.Dir(c.OutputDir))]; d > 0 {
		time.Sleep(d)
	}
	if r.failFn != nil {
		if err := r.failFn(c); err != nil {
			r.mu.Lock()
			r.fails++
			r.mu.Unlock()
			return nil, err
		}
	}
	return r.inner.Select(ctx, c)
}

type env struct {
	svc    *Service
	sink   *fileSink
	ref    *fakeRef
	layout artifacts.Layout
	reg    *regsvc.Service
	db     store.TxRunner
}

const catalogYAML = `
sites:
  - name: Alpha
    bbox: [0, 0, 10, 10]
  - name: Bravo
    bbox: [20, 20, 30, 30]
  - name: Charlie
    bbox: [40, 40, 50, 50]
  - name: Delta
    bbox: [60, 60, 70, 70]
  - name: Echo
    bbox: [80, 80, 90, 89]
`

func baseConfig() Config {
	return Config{
		Workers:       3,
		SceneWorkers:  1,
		SiteRetries:   1,
		RetryBase:     time.Millisecond,
		Resolution:    20,
		Scaling:       scene.ScalingDB,
		Sensors:       []string{"S1A", "S1B"},
		Product:       "GRD",
		Mode:          "IW",
		Polarizations: scene.VV,
	}
}

// newEnv wires a scheduler over a real sqlite registry and the real artifact
// filesystem. ledger also enables the run ledger on the same database
func newEnv(t *testing.T, cfg Config, ledger bool) *env {
	t.Helper()
	catalog, err := sites.FromYAML([]byte(catalogYAML))
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	db := storetest.SQLite(t)
	reg := regsvc.New(db, regrepo.NewPG(), nil, nil, regsvc.Config{})
	e := &env{
		sink:   &fileSink{},
		ref:    &fakeRef{files: []orbits.File{poe(t0.Add(3*time.Hour + 30*time.Minute)), res(t0.Add(48 * time.Hour))}},
		layout: artifacts.Layout{MainDir: t.TempDir()},
		reg:    reg,
		db:     db,
	}
	p := Ports{
		Reference: e.ref,
		Catalog:   catalog,
		Keys:      sites.Lookup{},
		Registry:  reg,
		Sink:      e.sink,
		Artifacts: artifacts.FS{},
		Layout:    e.layout,
	}
	if ledger {
		e.svc = New(p, cfg, db, repo.NewPG(), nil)
	} else {
		e.svc = New(p, cfg, nil, nil, nil)
	}
	return e
}

func square(x0, y0, x1, y1 float64) orb.Polygon {
	return orb.Polygon{{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}}}
}

// seed registers n scenes inside the Alpha site, one hour apart from t0
func (e *env) seed(t *testing.T, prefix string, n int, fp orb.Polygon) []domain.Scene {
	t.Helper()
	out := make([]domain.Scene, 0, n)
	for i := range n {
		at := t0.Add(time.Duration(i) * time.Hour)
		out = append(out, domain.Scene{
			ID:            fmt.Sprintf("%s%d", prefix, i),
			Sensor:        "S1A",
			Product:       "GRD",
			Mode:          "IW",
			Polarizations: scene.VV | scene.VH,
			AcquiredAt:    at,
			StoppedAt:     at.Add(25 * time.Second),
			Footprint:     fp,
		})
	}
	if _, err := e.reg.Upsert(context.Background(), out); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return out
}

// materialize writes the artifact of sc into the site's output dir
func (e *env) materialize(t *testing.T, siteID string, sc domain.Scene) {
	t.Helper()
	dir := e.layout.OutDir(siteID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	name := scene.ArtifactName(sc, e.svc.Cfg.Resolution, e.svc.Cfg.Scaling)
	if err := os.WriteFile(filepath.Join(dir, name), []byte("done"), 0o644); err != nil {
		t.Fatal(err)
	}
}

var errTransient = errors.New("connection reset")
