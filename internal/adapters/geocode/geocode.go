// Package geocode runs the external geocoding tool for one scene at a time.
//
// The tool is an argv template, e.g.
//
//	gpt-geocode --in {{.Input}} --out {{.Output}} --res {{.Resolution}} --scaling {{.Scaling}}
//
// Output is written to the site's staging directory and renamed into the output
// directory only when the tool exits cleanly and produced a non-empty file, so an
// interrupted run never leaves something the dedup step would count as done
package geocode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"
	"time"

	"sarbatch/internal/platform/logger"
	"sarbatch/internal/services/scheduler/domain"
)

// Job is one scene to geocode
type Job = domain.SinkJob

// Config configures the runner
type Config struct {
	// Command is the argv; every element is a text/template over templateData
	Command []string

	// Threads sets OMP_NUM_THREADS for the tool; 0 leaves the environment alone
	Threads int

	// Env is appended to the inherited environment
	Env []string

	// WaitDelay bounds how long a killed tool may hold its output pipes; default 5s
	WaitDelay time.Duration
}

type templateData struct {
	Input      string
	SceneID    string
	Output     string
	OutputDir  string
	StagingDir string
	Artifact   string
	Resolution int
	Scaling    string
}

// Runner executes Config.Command per job
type Runner struct {
	cfg  Config
	argv []*template.Template
}

// ErrToolFailed marks a non-zero exit or missing output
var ErrToolFailed = errors.New("geocode: tool failed")

// New parses the command templates
func New(cfg Config) (*Runner, error) {
	if len(cfg.Command) == 0 || strings.TrimSpace(cfg.Command[0]) == "" {
		return nil, errors.New("geocode: empty command")
	}
	if cfg.WaitDelay <= 0 {
		cfg.WaitDelay = 5 * time.Second
	}
	r := &Runner{cfg: cfg}
	for i, a := range cfg.Command {
		t, err := template.New(strconv.Itoa(i)).Option("missingkey=error").Parse(a)
		if err != nil {
			return nil, fmt.Errorf("geocode: argv[%d]: %w", i, err)
		}
		r.argv = append(r.argv, t)
	}
	return r, nil
}

// Process runs the tool for job and returns the final artifact path
func (r *Runner) Process(ctx context.Context, job Job) (string, error) {
	if job.Artifact == "" || job.OutputDir == "" {
		return "", errors.New("geocode: job needs artifact and output dir")
	}
	stage := job.StagingDir
	if stage == "" {
		stage = job.OutputDir
	}
	for _, d := range []string{stage, job.OutputDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return "", fmt.Errorf("geocode: mkdir %s: %w", d, err)
		}
	}

	staged := filepath.Join(stage, job.Artifact)
	final := filepath.Join(job.OutputDir, job.Artifact)
	_ = os.Remove(staged)

	argv, err := r.render(templateData{
		Input:      job.Scene.Path,
		SceneID:    job.Scene.ID,
		Output:     staged,
		OutputDir:  job.OutputDir,
		StagingDir: stage,
		Artifact:   job.Artifact,
		Resolution: job.Resolution,
		Scaling:    string(job.Scaling),
	})
	if err != nil {
		return "", err
	}

	log := logger.C(ctx).With().Str("scene", job.Scene.ID).Str("artifact", job.Artifact).Logger()
	start := time.Now()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = os.Environ()
	if r.cfg.Threads > 0 {
		cmd.Env = append(cmd.Env, "OMP_NUM_THREADS="+strconv.Itoa(r.cfg.Threads))
	}
	cmd.Env = append(cmd.Env, r.cfg.Env...)
	cmd.WaitDelay = r.cfg.WaitDelay
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	runErr := cmd.Run()
	elapsed := time.Since(start)
	if runErr != nil {
		_ = os.Remove(staged)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("geocode: %s: %w", job.Scene.ID, ctxErr)
		}
		log.Warn().Err(runErr).Dur("elapsed", elapsed).Str("output", tail(out.String(), 512)).Msg("geocode tool failed")
		return "", fmt.Errorf("%w: %s: %v: %s", ErrToolFailed, job.Scene.ID, runErr, tail(out.String(), 256))
	}

	info, err := os.Stat(staged)
	if err != nil || info.Size() == 0 {
		_ = os.Remove(staged)
		return "", fmt.Errorf("%w: %s: no output at %s", ErrToolFailed, job.Scene.ID, staged)
	}
	if staged != final {
		if err := os.Rename(staged, final); err != nil {
			return "", fmt.Errorf("geocode: promote %s: %w", job.Artifact, err)
		}
	}

	log.Debug().Dur("elapsed", elapsed).Int64("bytes", info.Size()).Msg("geocode done")
	return final, nil
}

func (r *Runner) render(d templateData) ([]string, error) {
	out := make([]string, len(r.argv))
	var b strings.Builder
	for i, t := range r.argv {
		b.Reset()
		if err := t.Execute(&b, d); err != nil {
			return nil, fmt.Errorf("geocode: render argv[%d]: %w", i, err)
		}
		out[i] = b.String()
	}
	return out, nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
