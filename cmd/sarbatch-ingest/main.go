// Command sarbatch-ingest scans a directory for Sentinel-1 products and
// upserts them into the scene registry
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sarbatch/internal/core/version"
	"sarbatch/internal/modkit"
	"sarbatch/internal/platform/config"
	"sarbatch/internal/platform/logger"
	regdom "sarbatch/internal/services/registry/domain"
	registrymod "sarbatch/internal/services/registry/module"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	var (
		fRoot      = flag.String("root", "", "directory holding .zip or .SAFE products")
		fPattern   = flag.String("pattern", "S1*.zip,S1*.SAFE", "comma separated name patterns (globs, or regexes with -regex)")
		fRegex     = flag.Bool("regex", false, "treat -pattern as regular expressions")
		fRecursive = flag.Bool("recursive", false, "descend into subdirectories")
	)
	flag.Parse()

	l := logger.Named("ingest")
	req := regdom.IngestRequest{
		Root:      *fRoot,
		Patterns:  config.SplitCSV(*fPattern),
		Regex:     *fRegex,
		Recursive: *fRecursive,
	}
	if err := run(req); err != nil {
		l.Error().Err(err).Msg("ingest failed")
		os.Exit(1)
	}
}

func run(req regdom.IngestRequest) error {
	if req.Root == "" {
		return errors.New("-root is required")
	}
	l := logger.Named("ingest")
	l.Info().Str("version", version.Tag()).Str("root", req.Root).Msg("sarbatch-ingest starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, deps, err := modkit.Boot(ctx, config.New(), "ingest", *l)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	reg := registrymod.New(deps)

	start := time.Now()
	stats, err := reg.Ingester().Ingest(ctx, req)
	if err != nil {
		return err
	}
	total, err := reg.Count(ctx)
	if err != nil {
		l.Warn().Err(err).Msg("registry count failed")
	}
	l.Info().
		Int("found", stats.Found).
		Int("unidentified", stats.Unidentified).
		Int("failed", stats.Failed).
		Int("inserted", stats.Inserted).
		Int("duplicates", stats.Duplicates).
		Int("registry_total", total).
		Dur("elapsed", time.Since(start)).
		Msg("ingest done")
	return nil
}
