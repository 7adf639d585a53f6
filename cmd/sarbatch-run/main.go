// Command sarbatch-run dispatches study sites to a worker pool: each worker
// resolves the orbit cutoff, selects unprocessed scenes from the registry
// and hands them to the geocoding sink. It exits non-zero only when every
// site failed
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"sarbatch/internal/core/version"
	"sarbatch/internal/modkit"
	"sarbatch/internal/platform/config"
	"sarbatch/internal/platform/logger"
	phttp "sarbatch/internal/platform/net/http"
	regdom "sarbatch/internal/services/registry/domain"
	registrymod "sarbatch/internal/services/registry/module"
	reportmod "sarbatch/internal/services/report/module"
	schedmod "sarbatch/internal/services/scheduler/module"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

var errAllFailed = errors.New("every site failed")

type flags struct {
	sites     []string
	ingest    regdom.IngestRequest
	holdOps   bool
	pprofOpen bool
}

func main() {
	_ = godotenv.Load()

	var (
		fSites     = flag.String("sites", "", "comma separated site ids (default: every catalog site)")
		fRoot      = flag.String("ingest-root", "", "ingest products below this directory before dispatching")
		fPattern   = flag.String("ingest-pattern", "S1*.zip,S1*.SAFE", "comma separated name patterns for -ingest-root")
		fRegex     = flag.Bool("regex", false, "treat -ingest-pattern as regular expressions")
		fRecursive = flag.Bool("recursive", false, "descend into subdirectories of -ingest-root")
		fHold      = flag.Bool("hold", false, "keep the ops server up after the run until interrupted")
	)
	flag.Parse()

	root := config.New()
	f := flags{
		sites: config.SplitCSV(*fSites),
		ingest: regdom.IngestRequest{
			Root:      *fRoot,
			Patterns:  config.SplitCSV(*fPattern),
			Regex:     *fRegex,
			Recursive: *fRecursive,
		},
		holdOps:   *fHold,
		pprofOpen: root.MayBool("OPS_PPROF", false),
	}

	l := logger.Named("run")
	if err := run(root, f); err != nil {
		l.Error().Err(err).Msg("run failed")
		os.Exit(1)
	}
}

func run(root config.Conf, f flags) error {
	l := logger.Named("run")
	l.Info().Str("version", version.Tag()).Int("sites", len(f.sites)).Msg("sarbatch-run starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, deps, err := modkit.Boot(ctx, root, "run", *l)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	reg := registrymod.New(deps)
	sched, err := schedmod.New(deps, reg.Registry(), promReg)
	if err != nil {
		return err
	}
	rep := reportmod.New(deps, sched.Ledger())

	ops := phttp.NewServer(root)
	phttp.MountOps(ops.Router(), promReg, st.Guard)
	phttp.MountProfiler(ops.Router(), "/debug", f.pprofOpen)
	phttp.GetJSON(ops.Router(), "/version", func(*http.Request) (any, error) {
		return version.Info("sarbatch-run"), nil
	})
	modkit.Mount(ops.Router(), reg, sched, rep)

	opsCtx, stopOps := context.WithCancel(ctx)
	defer stopOps()
	var g errgroup.Group
	g.Go(func() error { return ops.Run(opsCtx, nil) })

	if f.ingest.Root != "" {
		stats, err := reg.Ingester().Ingest(ctx, f.ingest)
		if err != nil {
			stopOps()
			_ = g.Wait()
			return err
		}
		l.Info().Int("found", stats.Found).Int("inserted", stats.Inserted).Int("duplicates", stats.Duplicates).Msg("ingest done")
	}

	sites := f.sites
	if len(sites) == 0 {
		sites = sched.SiteIDs()
	}
	report := sched.Dispatcher().Run(ctx, sites)

	if err := rep.Finish(ctx, os.Stdout, report); err != nil {
		l.Warn().Err(err).Msg("report export failed")
	}

	if f.holdOps && ops.Enabled() {
		l.Info().Str("addr", ops.Addr()).Msg("run finished; serving ops until interrupted")
		<-ctx.Done()
	}
	stopOps()
	if err := g.Wait(); err != nil {
		l.Warn().Err(err).Msg("ops server stopped with error")
	}

	if report.AllFailed() {
		return errAllFailed
	}
	return nil
}
