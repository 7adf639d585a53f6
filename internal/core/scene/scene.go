// Package scene defines the satellite scene record shared by the registry,
// the discovery adapter and the scheduler
package scene

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// Polarization is a set of polarization channels
type Polarization uint8

// Channels
const (
	VV Polarization = 1 << iota
	VH
	HH
	HV
)

var polNames = []struct {
	p    Polarization
	name string
}{{VV, "VV"}, {VH, "VH"}, {HH, "HH"}, {HV, "HV"}}

// ParsePolarizations builds a set from names like "VV", "vh". Unknown names are an error
func ParsePolarizations(names []string) (Polarization, error) {
	var out Polarization
	for _, n := range names {
		n = strings.ToUpper(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		found := false
		for _, pn := range polNames {
			if pn.name == n {
				out |= pn.p
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("scene: unknown polarization %q", n)
		}
	}
	return out, nil
}

// Has reports whether every channel in want is present
func (p Polarization) Has(want Polarization) bool { return p&want == want }

// Names lists the channels in VV, VH, HH, HV order
func (p Polarization) Names() []string {
	var out []string
	for _, pn := range polNames {
		if p&pn.p != 0 {
			out = append(out, pn.name)
		}
	}
	return out
}

func (p Polarization) String() string { return strings.Join(p.Names(), "+") }

// Scene is one acquisition product as stored in the registry
type Scene struct {
	// ID is the product identifier, e.g. the SAFE name without extension. Unique in the registry
	ID string

	Sensor  string // S1A, S1B ...
	Product string // GRD, SLC
	Mode    string // IW, EW, SM

	// Orbit is the pass direction, "A" or "D"; empty when unknown
	Orbit         string
	AbsoluteOrbit int

	Polarizations Polarization

	// AcquiredAt is the sensing start; StoppedAt the sensing stop
	AcquiredAt time.Time
	StoppedAt  time.Time

	Footprint orb.Polygon

	// Path is where the product was found on disk
	Path string
}

// Scaling selects the output backscatter scaling
type Scaling string

// Accepted scalings
const (
	ScalingDB     Scaling = "db"
	ScalingLinear Scaling = "linear"
)

// ArtifactName is the deterministic output file name for a scene processed at
// resolution metres with the given scaling, e.g.
// S1A_IW_GRDH_1SDV_20150309T173017_20150309T173042_004967_006385_D3B1_20m_db.tif.
// The scene id is the identity, so distinct products never share an artifact
func ArtifactName(s Scene, resolution int, scaling Scaling) string {
	return fmt.Sprintf("%s_%dm_%s.tif", fileSafe(s.ID), resolution, scaling)
}

// fileSafe keeps [A-Za-z0-9_-] and replaces anything else with '_'. A rewritten
// id gets a short hash of the original so two ids never fold onto one name
func fileSafe(id string) string {
	changed := id == ""
	b := []byte(id)
	for i, c := range b {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
		default:
			b[i] = '_'
			changed = true
		}
	}
	if !changed {
		return id
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return fmt.Sprintf("%s_%08x", b, h.Sum32())
}

// StampLayout is the compact UTC timestamp used in product and artifact names
const StampLayout = "20060102T150405"
