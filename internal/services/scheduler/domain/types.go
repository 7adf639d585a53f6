// Package domain holds the scheduler types, error taxonomy and ports
package domain

import (
	"time"

	"sarbatch/internal/core/scene"
	regdom "sarbatch/internal/services/registry/domain"

	"github.com/paulmach/orb"
)

type (
	// Scene is a registry record
	Scene = regdom.Scene

	// Criteria is the registry selection for one site
	Criteria = regdom.Criteria
)

// Site is an immutable catalog entry
type Site struct {
	// Name is the catalog spelling
	Name string
	// Key is the folded name
	Key      string
	Geometry orb.Geometry
}

// SinkJob is one scene handed to the processing sink
type SinkJob struct {
	Scene      Scene
	OutputDir  string
	StagingDir string
	Artifact   string
	Resolution int
	Scaling    scene.Scaling
}

// Tier is the orbit precision tier
type Tier string

// Known tiers
const (
	TierPOE Tier = "POE"
	TierRES Tier = "RES"
)

// ReferenceFile is one orbit file in the reference store
type ReferenceFile struct {
	Name          string
	Sensor        string
	Tier          Tier
	Published     time.Time
	ValidityStart time.Time
	ValidityEnd   time.Time
}

// MaxValidityEnd returns the latest validity end among files of tier and how
// many files of that tier there are. ok is false when there are none
func MaxValidityEnd(files []ReferenceFile, tier Tier) (end time.Time, n int, ok bool) {
	for _, f := range files {
		if f.Tier != tier {
			continue
		}
		n++
		if f.ValidityEnd.After(end) {
			end = f.ValidityEnd
		}
	}
	return end, n, n > 0
}

// Cutoff is the latest acquisition time the reference data can support
type Cutoff struct {
	At    time.Time
	Tier  Tier
	Files int // precise-tier files considered
}

// Result statuses
const (
	StatusOK      = "ok"
	StatusSkipped = "skipped"
	StatusError   = "error"
)

// SiteResult is the outcome of one site in one run
type SiteResult struct {
	SiteID string

	Cutoff time.Time

	// Candidates matched the registry; Unprocessed survived the dedup filter
	Candidates  int
	Unprocessed int

	// Accepted is the number of scenes submitted to the sink. Failed counts the
	// submitted scenes whose processing failed or timed out
	Accepted int
	Failed   int

	Skipped    bool
	SkipReason string

	Attempts int
	Elapsed  time.Duration

	// Err is set when the site aborted; per-scene failures never set it
	Err error
}

// Status is ok, skipped or error
func (r SiteResult) Status() string {
	switch {
	case r.Err != nil:
		return StatusError
	case r.Skipped:
		return StatusSkipped
	default:
		return StatusOK
	}
}

// Report is one dispatcher run. Results follow the input order
type Report struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Results  []SiteResult
}

// Totals aggregates a report
type Totals struct {
	Sites    int `json:"sites"`
	OK       int `json:"ok"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
	Accepted int `json:"accepted"`
	// SceneFailures sums per-scene sink failures across sites
	SceneFailures int `json:"scene_failures"`
}

// Totals sums the results
func (r Report) Totals() Totals {
	t := Totals{Sites: len(r.Results)}
	for _, res := range r.Results {
		switch res.Status() {
		case StatusOK:
			t.OK++
		case StatusSkipped:
			t.Skipped++
		case StatusError:
			t.Failed++
		}
		t.Accepted += res.Accepted
		t.SceneFailures += res.Failed
	}
	return t
}

// AllFailed reports whether every site in a non-empty report aborted
func (r Report) AllFailed() bool {
	t := r.Totals()
	return t.Sites > 0 && t.Failed == t.Sites
}

// SiteRun is one ledger row
type SiteRun struct {
	RunID       string
	SiteID      string
	Started     time.Time
	Finished    time.Time // zero while running
	Status      string
	Cutoff      time.Time
	Candidates  int
	Unprocessed int
	Accepted    int
	Failed      int
	ElapsedMS   int64
	Error       string
}
