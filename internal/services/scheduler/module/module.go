// Package module wires the scheduler from configuration
package module

import (
	"fmt"

	"sarbatch/internal/adapters/artifacts"
	"sarbatch/internal/adapters/geocode"
	"sarbatch/internal/adapters/orbits"
	"sarbatch/internal/adapters/sites"
	"sarbatch/internal/core/scene"
	"sarbatch/internal/modkit"
	"sarbatch/internal/modkit/repokit"
	"sarbatch/internal/platform/validate"
	"sarbatch/internal/services/scheduler/domain"
	"sarbatch/internal/services/scheduler/repo"
	"sarbatch/internal/services/scheduler/service"

	"github.com/prometheus/client_golang/prometheus"
)

// Ports defines the scheduler module ports
type Ports struct {
	Worker     domain.WorkerPort
	Dispatcher domain.DispatcherPort
	Ledger     domain.LedgerPort
}

// Module implements the scheduler module
type Module struct {
	deps    modkit.Deps
	ports   Ports
	catalog *sites.Catalog
	svc     *service.Service
}

// New builds the scheduler. registry is the selection port of the registry
// module; reg receives the metrics and may be nil
func New(deps modkit.Deps, registry domain.Registry, reg prometheus.Registerer) (*Module, error) {
	opts := FromConfig(deps.Cfg)
	if err := validate.Struct(opts); err != nil {
		return nil, fmt.Errorf("scheduler: options: %w", err)
	}

	cfg, err := opts.serviceConfig()
	if err != nil {
		return nil, err
	}

	catalog, err := sites.Load(opts.Catalog, opts.NameField)
	if err != nil {
		return nil, err
	}
	lookup, err := sites.LoadLookup(opts.Lookup)
	if err != nil {
		return nil, err
	}
	sink, err := geocode.New(geocode.Config{Command: opts.SinkCommand, Threads: opts.SinkThreads})
	if err != nil {
		return nil, err
	}

	var runs repokit.Binder[domain.RunRepo]
	if deps.DB != nil {
		runs = repo.NewPG()
	}

	svc := service.New(service.Ports{
		Reference: orbits.New(opts.POEDir, opts.RESDir),
		Catalog:   catalog,
		Keys:      lookup,
		Registry:  registry,
		Sink:      sink,
		Artifacts: artifacts.FS{},
		Layout:    artifacts.Layout{MainDir: opts.MainDir},
	}, cfg, deps.DB, runs, service.NewMetrics(reg))

	m := &Module{deps: deps, catalog: catalog, svc: svc}
	m.ports = Ports{Worker: svc, Dispatcher: svc, Ledger: svc}
	return m, nil
}

func (o Options) serviceConfig() (service.Config, error) {
	pols, err := scene.ParsePolarizations(o.Polarizations)
	if err != nil {
		return service.Config{}, err
	}
	return service.Config{
		Workers:       o.Workers,
		SceneWorkers:  o.SceneWorkers,
		SceneTimeout:  o.SceneTimeout,
		SiteTimeout:   o.SiteTimeout,
		SiteRetries:   o.SiteRetries,
		RetryBase:     o.RetryBase,
		Resolution:    o.Resolution,
		Scaling:       scene.Scaling(o.Scaling),
		Sensors:       o.Sensors,
		Product:       o.Product,
		Mode:          o.Mode,
		Polarizations: pols,
		Leases:        o.Leases,
		LeaseTTL:      o.LeaseTTL,
	}, nil
}

// Name returns the module name
func (m *Module) Name() string { return "scheduler" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Dispatcher returns the typed dispatcher port
func (m *Module) Dispatcher() domain.DispatcherPort { return m.ports.Dispatcher }

// Ledger returns the typed ledger port
func (m *Module) Ledger() domain.LedgerPort { return m.ports.Ledger }

// SiteIDs lists every catalog site, the default when no sites are requested
func (m *Module) SiteIDs() []string { return m.catalog.Names() }
