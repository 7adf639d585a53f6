package http

import (
	"context"
	stdhttp "net/http"
	"time"

	perr "sarbatch/internal/platform/errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthFunc reports readiness of a backing store
type HealthFunc func(context.Context) error

// MountOps mounts /healthz and /metrics. A nil gatherer serves the default registry
func MountOps(r Router, g prometheus.Gatherer, health HealthFunc) {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	GetJSON(r, "/healthz", func(req *stdhttp.Request) (any, error) {
		if health != nil {
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()
			if err := health(ctx); err != nil {
				return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "not ready")
			}
		}
		return map[string]string{"status": "ok"}, nil
	})
}
