//go:build integration_pg

package service

import (
	"context"
	"reflect"
	"testing"
	"time"

	"sarbatch/internal/modkit/repokit"
	"sarbatch/internal/platform/store"
	"sarbatch/internal/platform/store/pg/pgtest"
	"sarbatch/internal/services/registry/domain"
	"sarbatch/internal/services/registry/repo"

	"github.com/rs/zerolog"
)

func TestRegistry_Postgres_Integration(t *testing.T) {
	dsn := pgtest.Start(t)

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	st, err := store.Open(ctx, store.Config{
		AppName: "sarbatch-test",
		Backend: store.BackendPG,
		PG:      store.PGConfig{URL: dsn, MaxConns: 4},
	}, store.WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close(context.Background()) })

	db := repokit.WithBeginHooks(st.DB, repokit.StatementTimeout(5*time.Second))
	svc := New(db, repo.NewPG(), nil, nil, Config{InsertChunk: 2})

	scenes := []domain.Scene{
		mk("late", 5, square(1, 1, 3, 3)),
		mk("early", 1, square(2, 2, 4, 4)),
		mk("far", 2, square(50, 50, 51, 51)),
	}
	up, err := svc.Upsert(ctx, scenes)
	if err != nil || up.Inserted != 3 {
		t.Fatalf("upsert = %+v, %v", up, err)
	}
	up, err = svc.Upsert(ctx, scenes)
	if err != nil || up.Inserted != 0 || up.Duplicates != 3 {
		t.Fatalf("re-upsert = %+v, %v", up, err)
	}

	got, err := svc.Select(ctx, domain.Criteria{
		Geometry:    square(0, 0, 10, 10),
		MaxAcquired: t0.Add(5 * time.Hour),
		Sensors:     []string{"S1A"},
	})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if want := []string{"early", "late"}; !reflect.DeepEqual(ids(got), want) {
		t.Fatalf("select = %v, want %v", ids(got), want)
	}
	if !reflect.DeepEqual(got[0], scenes[1]) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got[0], scenes[1])
	}

	n, err := svc.Count(ctx)
	if err != nil || n != 3 {
		t.Fatalf("count = %d, %v", n, err)
	}
}
