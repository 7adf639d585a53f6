package service

import (
	"sarbatch/internal/services/scheduler/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the scheduler collectors
type Metrics struct {
	Sites        *prometheus.CounterVec
	Scenes       *prometheus.CounterVec
	SiteDuration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Sites: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sarbatch",
			Name:      "sites_total",
			Help:      "Sites processed by outcome.",
		}, []string{"status"}),
		Scenes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sarbatch",
			Name:      "scenes_total",
			Help:      "Scenes handed to the sink by outcome.",
		}, []string{"outcome"}),
		SiteDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sarbatch",
			Name:      "site_duration_seconds",
			Help:      "Wall time per site including retries.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		}),
	}
}

func (m *Metrics) site(r domain.SiteResult) {
	m.Sites.WithLabelValues(r.Status()).Inc()
	m.SiteDuration.Observe(r.Elapsed.Seconds())
}

func (m *Metrics) scene(ok bool) {
	outcome := "failed"
	if ok {
		outcome = "done"
	}
	m.Scenes.WithLabelValues(outcome).Inc()
}
