// Package domain holds the scene registry types and ports
package domain

import (
	"time"

	"sarbatch/internal/core/scene"

	"github.com/paulmach/orb"
)

// Scene re-exports the shared scene record
type Scene = scene.Scene

// Criteria selects scenes for one site. The field set is closed; every field
// documents its effect and a zero value never filters
type Criteria struct {
	// Geometry is required; a scene matches when its footprint intersects it
	Geometry orb.Geometry

	// OutputDir is where the site's artifacts live. The registry does not read it;
	// the dedup step uses it after selection
	OutputDir string

	// MaxAcquired is an inclusive upper bound on AcquiredAt; zero means unbounded
	MaxAcquired time.Time

	// Sensors matches any of the listed sensors; empty means any
	Sensors []string

	// Product and Mode must match exactly when set
	Product string
	Mode    string

	// Polarizations lists channels that must all be present
	Polarizations scene.Polarization
}

// UpsertStats summarizes one Upsert call
type UpsertStats struct {
	Submitted  int
	Inserted   int
	Duplicates int
}

// IngestRequest describes one discovery pass
type IngestRequest struct {
	Root      string
	Patterns  []string
	Regex     bool
	Recursive bool
}

// IngestStats summarizes one ingestion
type IngestStats struct {
	Found        int
	Unidentified int
	Failed       int
	UpsertStats
}
