package store

import (
	"context"
	"errors"
	"testing"

	"sarbatch/internal/platform/store/sqlite"
)

func openMem(t *testing.T) TxRunner {
	t.Helper()
	db, err := sqlite.Open(context.Background(), sqlite.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("sqlite open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLiteRunner(db)
}

func TestRebind(t *testing.T) {
	t.Parallel()

	cases := []struct{ in, want string }{
		{"SELECT 1", "SELECT 1"},
		{"SELECT * FROM scenes WHERE id = $1 AND acquired_ms <= $2", "SELECT * FROM scenes WHERE id = ?1 AND acquired_ms <= ?2"},
		{"SELECT '$1' , $1", "SELECT '$1' , ?1"},
		{`SELECT "a$1" FROM t WHERE x = $12`, `SELECT "a$1" FROM t WHERE x = ?12`},
		{"SELECT $ FROM t", "SELECT $ FROM t"},
	}
	for _, c := range cases {
		if got := Rebind(c.in); got != c.want {
			t.Fatalf("Rebind(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestStatements_SkipsComments(t *testing.T) {
	t.Parallel()

	got := statements("-- header\nCREATE TABLE a (x INT);\n\n-- only a comment\n;CREATE INDEX i ON a (x);\n")
	if len(got) != 2 {
		t.Fatalf("statements = %d, want 2: %q", len(got), got)
	}
	if got[0] != "CREATE TABLE a (x INT)" {
		t.Fatalf("first statement = %q", got[0])
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openMem(t)
	for i := range 2 {
		if err := Migrate(ctx, db); err != nil {
			t.Fatalf("Migrate pass %d: %v", i+1, err)
		}
	}

	n, err := Scalar[int64](ctx, db, `SELECT COUNT(*) FROM schema_migrations WHERE version = $1`, SchemaVersion)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("schema_migrations rows = %d, want 1", n)
	}
	for _, table := range []string{"scenes", "site_runs", "site_leases"} {
		if _, err := Scalar[int64](ctx, db, `SELECT COUNT(*) FROM `+table); err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}
}

func TestSQLiteTx_RollbackAndCommit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openMem(t)
	if err := Migrate(ctx, db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	boom := errors.New("boom")
	err := db.Tx(ctx, func(q RowQuerier) error {
		if _, err := q.Exec(ctx, `INSERT INTO site_leases (site_id, owner, claimed_unix, expires_unix) VALUES ($1, $2, $3, $4)`, "Mantaro", "a:1", 10, 20); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Tx error = %v, want boom", err)
	}
	if n, _ := Scalar[int64](ctx, db, `SELECT COUNT(*) FROM site_leases`); n != 0 {
		t.Fatalf("rollback left %d rows", n)
	}

	err = db.Tx(ctx, func(q RowQuerier) error {
		tag, err := q.Exec(ctx, `INSERT INTO site_leases (site_id, owner, claimed_unix, expires_unix) VALUES ($1, $2, $3, $4)`, "Mantaro", "a:1", 10, 20)
		if err != nil {
			return err
		}
		if tag.RowsAffected() != 1 || tag.String() != "INSERT 1" {
			t.Errorf("tag = %q/%d", tag.String(), tag.RowsAffected())
		}
		return nil
	})
	if err != nil {
		t.Fatalf("commit Tx: %v", err)
	}
	owner, err := Scalar[string](ctx, db, `SELECT owner FROM site_leases WHERE site_id = $1`, "Mantaro")
	if err != nil || owner != "a:1" {
		t.Fatalf("owner = %q, err = %v", owner, err)
	}
}

func TestHelpers_NoRowsAndMany(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openMem(t)
	if err := Migrate(ctx, db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	_, err := Scalar[string](ctx, db, `SELECT owner FROM site_leases WHERE site_id = $1`, "nope")
	if !IsNoRows(err) {
		t.Fatalf("want ErrNoRows, got %v", err)
	}

	scan := func(r Row) (string, error) {
		var s string
		return s, r.Scan(&s)
	}
	if got, err := Many(ctx, db, scan, `SELECT site_id FROM site_leases`); err != nil || len(got) != 0 {
		t.Fatalf("Many on empty = %v, %v", got, err)
	}

	for _, id := range []string{"A", "B"} {
		if _, err := db.Exec(ctx, `INSERT INTO site_leases (site_id, owner, claimed_unix, expires_unix) VALUES ($1, 'x', 0, 0)`, id); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	got, err := Many(ctx, db, scan, `SELECT site_id FROM site_leases ORDER BY site_id`)
	if err != nil || len(got) != 2 || got[0] != "A" {
		t.Fatalf("Many = %v, %v", got, err)
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), Config{Backend: "mysql"}); err == nil {
		t.Fatalf("expected unknown backend error")
	}
}

func TestOpen_SQLiteMigratesAndGuards(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, err := Open(ctx, Config{Backend: BackendSQLite, SQLite: SQLiteConfig{Path: t.TempDir() + "/reg.db"}})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(ctx) })

	if s.Backend != BackendSQLite || s.CH != nil {
		t.Fatalf("unexpected store: %+v", s)
	}
	if err := s.Guard(ctx); err != nil {
		t.Fatalf("Guard: %v", err)
	}
	if _, err := Scalar[int64](ctx, s.DB, `SELECT COUNT(*) FROM scenes`); err != nil {
		t.Fatalf("schema not applied: %v", err)
	}
}

func TestGuard_NilStore(t *testing.T) {
	t.Parallel()

	var s *Store
	if err := s.Guard(context.Background()); err == nil {
		t.Fatalf("nil store Guard should fail")
	}
}
