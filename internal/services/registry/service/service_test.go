package service

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"sarbatch/internal/core/scene"
	perr "sarbatch/internal/platform/errors"
	"sarbatch/internal/platform/store/storetest"
	"sarbatch/internal/services/registry/domain"
	"sarbatch/internal/services/registry/repo"

	"github.com/paulmach/orb"
)

var t0 = time.Date(2015, 3, 9, 17, 30, 17, 0, time.UTC)

func square(x0, y0, x1, y1 float64) orb.Polygon {
	return orb.Polygon{{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}}}
}

func mk(id string, hours int, fp orb.Polygon) domain.Scene {
	return domain.Scene{
		ID:            id,
		Sensor:        "S1A",
		Product:       "GRD",
		Mode:          "IW",
		Orbit:         "A",
		AbsoluteOrbit: 4972,
		Polarizations: scene.VV | scene.VH,
		AcquiredAt:    t0.Add(time.Duration(hours) * time.Hour),
		StoppedAt:     t0.Add(time.Duration(hours)*time.Hour + 25*time.Second),
		Footprint:     fp,
		Path:          "/archive/" + id + ".zip",
	}
}

func newSvc(t *testing.T, chunk int) *Service {
	t.Helper()
	return New(storetest.SQLite(t), repo.NewPG(), nil, nil, Config{InsertChunk: chunk})
}

func ids(ss []domain.Scene) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		out = append(out, s.ID)
	}
	return out
}

func TestUpsert_IdempotentByID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newSvc(t, 2)

	scenes := []domain.Scene{
		mk("a", 0, square(1, 1, 3, 3)),
		mk("b", 1, square(2, 2, 4, 4)),
		mk("c", 2, square(5, 5, 6, 6)),
	}
	st, err := svc.Upsert(ctx, scenes)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if st.Inserted != 3 || st.Duplicates != 0 {
		t.Fatalf("first upsert = %+v", st)
	}

	crit := domain.Criteria{Geometry: square(0, 0, 10, 10)}
	before, err := svc.Select(ctx, crit)
	if err != nil {
		t.Fatalf("select: %v", err)
	}

	changed := scenes[0]
	changed.Sensor = "S1B"
	st, err = svc.Upsert(ctx, []domain.Scene{changed, scenes[1], scenes[2]})
	if err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	if st.Inserted != 0 || st.Duplicates != 3 {
		t.Fatalf("re-upsert = %+v", st)
	}
	n, err := svc.Count(ctx)
	if err != nil || n != 3 {
		t.Fatalf("count = %d, %v", n, err)
	}

	after, err := svc.Select(ctx, crit)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("re-ingest changed results:\n%+v\n%+v", before, after)
	}
	if after[0].Sensor != "S1A" {
		t.Fatalf("existing row was modified: %+v", after[0])
	}
}

func TestUpsert_RoundTripsFields(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newSvc(t, 0)

	in := mk("rt", 0, square(1, 1, 3, 3))
	if _, err := svc.Upsert(ctx, []domain.Scene{in}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := svc.Select(ctx, domain.Criteria{Geometry: square(0, 0, 10, 10)})
	if err != nil || len(got) != 1 {
		t.Fatalf("select = %v, %v", got, err)
	}
	if !reflect.DeepEqual(got[0], in) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got[0], in)
	}
}

func TestUpsert_RejectsInvalid(t *testing.T) {
	t.Parallel()
	svc := newSvc(t, 0)

	_, err := svc.Upsert(context.Background(), []domain.Scene{{ID: ""}})
	if perr.CodeOf(err) != perr.ErrorCodeInvalidArgument {
		t.Fatalf("empty id: %v", err)
	}
	_, err = svc.Upsert(context.Background(), []domain.Scene{{ID: "x"}})
	if perr.CodeOf(err) != perr.ErrorCodeInvalidArgument {
		t.Fatalf("no footprint: %v", err)
	}
}

func TestSelect_Filters(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newSvc(t, 0)

	inside := square(1, 1, 2, 2)
	b := mk("b", 1, inside)
	a := mk("a", 1, inside) // same time as b, id breaks the tie
	early := mk("early", 0, inside)
	late := mk("late", 5, inside)
	s1b := mk("s1b", 2, inside)
	s1b.Sensor = "S1B"
	slc := mk("slc", 2, inside)
	slc.Product = "SLC"
	ew := mk("ew", 2, inside)
	ew.Mode = "EW"
	hh := mk("hh", 2, inside)
	hh.Polarizations = scene.HH | scene.HV
	far := mk("far", 2, square(20, 20, 21, 21))
	// bbox overlaps the site but the triangle stays outside it
	skew := mk("skew", 2, orb.Polygon{{{9, 12}, {12, 9}, {12, 12}, {9, 12}}})

	if _, err := svc.Upsert(ctx, []domain.Scene{late, b, a, early, s1b, slc, ew, hh, far, skew}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	site := square(0, 0, 10, 10)
	cases := []struct {
		name string
		crit domain.Criteria
		want []string
	}{
		{"geometry only", domain.Criteria{Geometry: site},
			[]string{"early", "a", "b", "ew", "hh", "s1b", "slc", "late"}},
		{"cutoff inclusive", domain.Criteria{Geometry: site, MaxAcquired: t0.Add(time.Hour)},
			[]string{"early", "a", "b"}},
		{"sensors", domain.Criteria{Geometry: site, Sensors: []string{"S1B"}},
			[]string{"s1b"}},
		{"full criteria", domain.Criteria{
			Geometry: site, MaxAcquired: t0.Add(3 * time.Hour),
			Sensors: []string{"S1A", "S1B"}, Product: "GRD", Mode: "IW", Polarizations: scene.VV,
		}, []string{"early", "a", "b", "s1b"}},
		{"dual pol", domain.Criteria{Geometry: site, Polarizations: scene.HH | scene.HV},
			[]string{"hh"}},
		{"multipolygon site", domain.Criteria{Geometry: orb.MultiPolygon{square(19, 19, 22, 22)}},
			[]string{"far"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := svc.Select(ctx, c.crit)
			if err != nil {
				t.Fatalf("select: %v", err)
			}
			if !reflect.DeepEqual(ids(got), c.want) {
				t.Fatalf("got %v, want %v", ids(got), c.want)
			}
		})
	}
}

func TestSelect_CutoffKeepsSubSecondPrecision(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newSvc(t, 0)

	fp := square(1, 1, 2, 2)
	on := mk("on", 0, fp)
	on.AcquiredAt = t0.Add(500 * time.Millisecond)
	after := mk("after", 0, fp)
	after.AcquiredAt = t0.Add(700 * time.Millisecond)
	if _, err := svc.Upsert(ctx, []domain.Scene{on, after}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := svc.Select(ctx, domain.Criteria{Geometry: square(0, 0, 10, 10), MaxAcquired: t0.Add(500 * time.Millisecond)})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if !reflect.DeepEqual(ids(got), []string{"on"}) {
		t.Fatalf("got %v, want [on]", ids(got))
	}
	if !got[0].AcquiredAt.Equal(on.AcquiredAt) {
		t.Fatalf("AcquiredAt = %v, want %v", got[0].AcquiredAt, on.AcquiredAt)
	}
}

func TestSelect_RequiresArealGeometry(t *testing.T) {
	t.Parallel()
	svc := newSvc(t, 0)
	for _, g := range []orb.Geometry{nil, orb.Point{1, 1}} {
		if _, err := svc.Select(context.Background(), domain.Criteria{Geometry: g}); perr.CodeOf(err) != perr.ErrorCodeInvalidArgument {
			t.Fatalf("geometry %v: err = %v", g, err)
		}
	}
}

func TestSelect_CanceledContextIsNotRetryable(t *testing.T) {
	t.Parallel()
	svc := newSvc(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Select(ctx, domain.Criteria{Geometry: square(0, 0, 1, 1)})
	if err == nil {
		t.Fatalf("expected error on canceled ctx")
	}
	if perr.Retryable(err) {
		t.Fatalf("cancellation must not be retryable: %v", err)
	}
}

func TestIngest_CountsAndUpserts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newSvc(t, 0)

	paths := []string{"/a.zip", "/a.SAFE", "/junk.zip", "/b.zip"}
	svc.Find = func(_ context.Context, req domain.IngestRequest) ([]string, error) {
		if req.Root != "/archive" || !req.Recursive {
			t.Errorf("unexpected request %+v", req)
		}
		return paths, nil
	}
	svc.Identify = func(p string) (domain.Scene, error) {
		switch p {
		case "/a.zip", "/a.SAFE":
			return mk("a", 0, square(1, 1, 2, 2)), nil
		case "/b.zip":
			return mk("b", 1, square(1, 1, 2, 2)), nil
		}
		return domain.Scene{}, errors.New("not a product")
	}

	req := domain.IngestRequest{Root: "/archive", Recursive: true}
	st, err := svc.Ingest(ctx, req)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if st.Found != 4 || st.Unidentified != 1 || st.Inserted != 2 || st.Duplicates != 1 {
		t.Fatalf("stats = %+v", st)
	}

	st, err = svc.Ingest(ctx, req)
	if err != nil {
		t.Fatalf("re-ingest: %v", err)
	}
	if st.Inserted != 0 || st.Duplicates != 3 {
		t.Fatalf("re-ingest stats = %+v", st)
	}
}

func TestIngest_NotConfigured(t *testing.T) {
	t.Parallel()
	svc := newSvc(t, 0)
	if _, err := svc.Ingest(context.Background(), domain.IngestRequest{Root: "/x"}); perr.CodeOf(err) != perr.ErrorCodeValidation {
		t.Fatalf("err = %v", err)
	}
}

func TestNew_PanicsOnNil(t *testing.T) {
	t.Parallel()
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	New(nil, repo.NewPG(), nil, nil, Config{})
}
