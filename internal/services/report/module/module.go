// Package module wires run reports: text rendering, ClickHouse export and
// the read-only report routes of the ops server
package module

import (
	"context"
	"io"
	"net/http"

	"sarbatch/internal/modkit"
	phttp "sarbatch/internal/platform/net/http"
	"sarbatch/internal/platform/validate"
	"sarbatch/internal/services/report/service"
	"sarbatch/internal/services/scheduler/domain"
)

// Module implements the report module
type Module struct {
	deps modkit.Deps
	opts Options
	svc  *service.Service
}

// New constructs the report module. ledger may be nil when no database is configured
func New(deps modkit.Deps, ledger domain.LedgerPort) *Module {
	opts := FromConfig(deps.Cfg)
	validate.MustStruct("report", opts)
	return &Module{deps: deps, opts: opts, svc: service.New(ledger)}
}

// Name returns the module name
func (m *Module) Name() string { return "report" }

// Ports returns the report service
func (m *Module) Ports() any { return m.svc }

// MountRoutes mounts GET /v1/report and GET /v1/runs/{runID}
func (m *Module) MountRoutes(r phttp.Router) {
	r.Route("/v1", func(v1 phttp.Router) {
		phttp.GetJSON(v1, "/report", func(req *http.Request) (any, error) {
			return m.svc.Latest(req.Context())
		})
		phttp.GetJSON(v1, "/runs/{runID}", func(req *http.Request) (any, error) {
			return m.svc.Run(req.Context(), phttp.URLParam(req, "runID"))
		})
	})
}

// Finish publishes r, prints it to w when enabled and exports it to ClickHouse.
// An export failure is returned but the report stays published
func (m *Module) Finish(ctx context.Context, w io.Writer, r domain.Report) error {
	m.svc.Publish(r)
	if m.opts.Print && w != nil {
		if err := service.Render(w, r); err != nil {
			return err
		}
	}
	return service.Export(ctx, m.deps.CH, m.opts.Table, r)
}
