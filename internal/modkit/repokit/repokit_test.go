package repokit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"sarbatch/internal/platform/store"
	kit "sarbatch/internal/platform/testkit"
)

type fakeQ struct {
	sqls []string
	err  error
}

type fakeTag struct{}

func (fakeTag) String() string      { return "OK" }
func (fakeTag) RowsAffected() int64 { return 0 }

func (f *fakeQ) Exec(_ context.Context, sql string, _ ...any) (store.CommandTag, error) {
	f.sqls = append(f.sqls, sql)
	return fakeTag{}, f.err
}

func (f *fakeQ) Query(_ context.Context, sql string, _ ...any) (store.Rows, error) {
	f.sqls = append(f.sqls, sql)
	return nil, f.err
}

func (f *fakeQ) QueryRow(_ context.Context, sql string, _ ...any) store.Row {
	f.sqls = append(f.sqls, sql)
	return nil
}

type fakeTx struct {
	fakeQ
	txCalls int
	closed  bool
	pingErr error
}

func (f *fakeTx) Tx(_ context.Context, fn func(q Queryer) error) error {
	f.txCalls++
	return fn(&f.fakeQ)
}

func (f *fakeTx) Close() error                 { f.closed = true; return nil }
func (f *fakeTx) Ping(_ context.Context) error { return f.pingErr }

// passBinder hands back the Queryer it is bound to
type passBinder struct{}

func (passBinder) Bind(q Queryer) Queryer { return q }

func TestMustBind(t *testing.T) {
	t.Parallel()
	q := &fakeQ{}
	if got := MustBind[Queryer](passBinder{}, q); got != Queryer(q) {
		t.Fatalf("MustBind returned a different Queryer")
	}
	kit.MustPanic(t, func() { _ = MustBind[Queryer](passBinder{}, nil) })
}

func TestWithTx_PropagatesFnError(t *testing.T) {
	t.Parallel()
	tx := &fakeTx{}
	want := errors.New("boom")
	if err := WithTx(context.Background(), tx, func(Queryer) error { return want }); !errors.Is(err, want) {
		t.Fatalf("err = %v, want boom", err)
	}
	if tx.txCalls != 1 {
		t.Fatalf("tx calls = %d", tx.txCalls)
	}
}

func TestInTx_ReturnsValue(t *testing.T) {
	t.Parallel()
	tx := &fakeTx{}
	got, err := InTx(context.Background(), tx, passBinder{}, func(q Queryer) (int, error) {
		_, _ = q.Exec(context.Background(), "SELECT 1")
		return 7, nil
	})
	if err != nil || got != 7 {
		t.Fatalf("InTx = %d, %v", got, err)
	}
	if len(tx.sqls) != 1 {
		t.Fatalf("expected the statement to run on the tx queryer")
	}
}

func TestWithBeginHooks_RunsBeforeFn(t *testing.T) {
	t.Parallel()
	inner := &fakeTx{}
	tx := WithBeginHooks(inner, StatementTimeout(1500*time.Millisecond))

	err := tx.Tx(context.Background(), func(q Queryer) error {
		_, err := q.Exec(context.Background(), "SELECT 2")
		return err
	})
	if err != nil {
		t.Fatalf("Tx: %v", err)
	}
	if len(inner.sqls) != 2 || !strings.Contains(inner.sqls[0], "statement_timeout = 1500") || inner.sqls[1] != "SELECT 2" {
		t.Fatalf("statements = %q", inner.sqls)
	}

	c, ok := tx.(interface{ Close() error })
	if !ok {
		t.Fatalf("hooked runner should be closable")
	}
	_ = c.Close()
	if !inner.closed {
		t.Fatalf("Close should reach the inner runner")
	}
}

func TestWithBeginHooks_HookErrorAbortsFn(t *testing.T) {
	t.Parallel()
	inner := &fakeTx{fakeQ: fakeQ{err: errors.New("not postgres")}}
	tx := WithBeginHooks(inner, StatementTimeout(time.Second))
	ran := false
	err := tx.Tx(context.Background(), func(Queryer) error { ran = true; return nil })
	if err == nil || ran {
		t.Fatalf("hook failure should abort: err=%v ran=%v", err, ran)
	}
}

func TestWithBeginHooks_NoHooksIsIdentity(t *testing.T) {
	t.Parallel()
	inner := &fakeTx{}
	if WithBeginHooks(inner) != TxRunner(inner) {
		t.Fatalf("no hooks should return inner")
	}
}
