package store

import (
	"context"
	"strings"
	"time"

	"sarbatch/internal/platform/logger"

	"github.com/rs/zerolog"
)

// QueryEvent describes one statement run through an adapter
type QueryEvent struct {
	Backend   string
	SQL       string
	Args      any
	ElapsedUS int64
	Err       error
	Slow      bool
}

// QueryTracer receives a QueryEvent after every statement
type QueryTracer interface {
	OnQuery(ctx context.Context, ev QueryEvent)
}

// Tracer returns a zerolog tracer that prints every statement when SQL logging is on,
// independent of the process-wide root level
func Tracer(root logger.Logger, backend string) QueryTracer {
	ll := root.Level(zerolog.DebugLevel).With().Str("component", "sql").Str("backend", backend).Logger()
	return &zlTracer{log: ll, backend: backend}
}

type zlTracer struct {
	log     logger.Logger
	backend string
}

func (z *zlTracer) OnQuery(_ context.Context, ev QueryEvent) {
	evt := z.log.Debug()
	if ev.Slow {
		evt = z.log.Warn()
	}
	if ev.Err != nil {
		evt = z.log.Error()
	}
	evt.Float64("elapsed_ms", float64(ev.ElapsedUS)/1000.0).
		Bool("slow", ev.Slow).
		Str("sql", compact(ev.SQL)).
		Interface("args", ev.Args).
		Err(ev.Err).
		Msg("sql query")
}

// queryTrace is the per-adapter emit helper; nil disables tracing
type queryTrace struct {
	tracer QueryTracer
	slowUS int64
}

func (t *queryTrace) emit(ctx context.Context, backend, sql string, args []any, start time.Time, err error) {
	if t == nil || t.tracer == nil {
		return
	}
	elapsedUS := time.Since(start).Microseconds()
	t.tracer.OnQuery(ctx, QueryEvent{
		Backend:   backend,
		SQL:       sql,
		Args:      args,
		ElapsedUS: elapsedUS,
		Err:       err,
		Slow:      t.slowUS > 0 && elapsedUS >= t.slowUS,
	})
}

// compact folds runs of whitespace into single spaces so multi-line SQL logs on one line
func compact(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
