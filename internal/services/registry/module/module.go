// Package module wires the scene registry
package module

import (
	"context"

	"sarbatch/internal/adapters/discovery"
	"sarbatch/internal/modkit"
	"sarbatch/internal/platform/validate"
	"sarbatch/internal/services/registry/domain"
	"sarbatch/internal/services/registry/repo"
	"sarbatch/internal/services/registry/service"
)

// Ports defines the registry module ports
type Ports struct {
	Registry domain.RegistryPort
	Ingester domain.IngesterPort
}

// Module implements the registry module
type Module struct {
	deps  modkit.Deps
	ports Ports
	svc   *service.Service
}

// New constructs the registry module from deps. It panics when options are
// invalid or no SQL backend is configured
func New(deps modkit.Deps) *Module {
	opts := FromConfig(deps.Cfg)
	validate.MustStruct("registry", opts)
	if deps.DB == nil {
		panic("registry: module requires a SQL backend")
	}

	svc := service.New(deps.DB, repo.NewPG(), find, discovery.Identify, service.Config{
		InsertChunk: opts.InsertChunk,
	})

	return &Module{deps: deps, svc: svc, ports: Ports{Registry: svc, Ingester: svc}}
}

func find(ctx context.Context, req domain.IngestRequest) ([]string, error) {
	return discovery.Find(ctx, discovery.Query{
		Root:      req.Root,
		Patterns:  req.Patterns,
		Regex:     req.Regex,
		Recursive: req.Recursive,
	})
}

// Name returns the module name
func (m *Module) Name() string { return "registry" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Registry returns the typed registry port
func (m *Module) Registry() domain.RegistryPort { return m.ports.Registry }

// Ingester returns the typed ingestion port
func (m *Module) Ingester() domain.IngesterPort { return m.ports.Ingester }

// Count returns the number of scenes in the registry
func (m *Module) Count(ctx context.Context) (int, error) { return m.svc.Count(ctx) }
