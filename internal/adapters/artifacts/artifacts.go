// Package artifacts owns the per-site output layout and the existence checks
// the dedup step runs against it
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Layout maps a site to its directories below MainDir:
//
//	<MainDir>/<site>/proc_in   staging for in-flight outputs
//	<MainDir>/<site>/proc_out  finished artifacts
type Layout struct {
	MainDir string
}

// SiteDir is the root for one site
func (l Layout) SiteDir(siteID string) string { return filepath.Join(l.MainDir, siteID) }

// OutDir is where finished artifacts live
func (l Layout) OutDir(siteID string) string { return filepath.Join(l.SiteDir(siteID), "proc_out") }

// StagingDir is where the sink writes before promoting to OutDir
func (l Layout) StagingDir(siteID string) string { return filepath.Join(l.SiteDir(siteID), "proc_in") }

// Check rejects site ids that are not a single path element below MainDir
func (l Layout) Check(siteID string) error {
	if err := validName(siteID); err != nil {
		return fmt.Errorf("artifacts: invalid site id %q", siteID)
	}
	return nil
}

// Ensure creates the staging and output directories for a site
func (l Layout) Ensure(siteID string) error {
	if err := l.Check(siteID); err != nil {
		return err
	}
	for _, d := range []string{l.StagingDir(siteID), l.OutDir(siteID)} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("artifacts: mkdir %s: %w", d, err)
		}
	}
	return nil
}

// FS checks artifact presence on the local filesystem
type FS struct{}

// Exists reports whether name is a regular, non-empty file directly inside dir.
// Names with path separators or parent references are rejected. A missing dir means nothing exists yet
func (FS) Exists(ctx context.Context, dir, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := validName(name); err != nil {
		return false, err
	}
	info, err := os.Stat(filepath.Join(dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("artifacts: stat %s: %w", name, err)
	}
	return info.Mode().IsRegular() && info.Size() > 0, nil
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("artifacts: invalid artifact name %q", name)
	}
	return nil
}
