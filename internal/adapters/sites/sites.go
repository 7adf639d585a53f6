// Package sites loads the study-site catalog: named areas of interest whose
// geometry scenes are matched against. Two on-disk formats are accepted:
//
//   - GeoJSON FeatureCollection (.geojson, .json); the name comes from a feature property
//   - YAML (.yaml, .yml) with a list of {name, wkt} or {name, bbox} entries
//
// Names are compared after sitekey folding, so "Sweden_Store-Mosse" finds "sweden store mosse"
package sites

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"sarbatch/internal/core/geom"
	"sarbatch/internal/core/sitekey"
	"sarbatch/internal/services/scheduler/domain"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned by Lookup when no site folds to the key
var ErrNotFound = errors.New("sites: site not found")

// DefaultNameField is the GeoJSON property holding the site name
const DefaultNameField = "Site_Name"

// Site is an immutable catalog entry
type Site = domain.Site

// Catalog is an in-memory, read-only site index. Safe for concurrent use
type Catalog struct {
	byKey map[string]Site
	names []string
}

// Load reads a catalog file, picking the decoder by extension
func Load(path, nameField string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sites: read catalog: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return FromGeoJSON(data, nameField)
	case ".yaml", ".yml":
		return FromYAML(data)
	default:
		return nil, fmt.Errorf("sites: unsupported catalog format %q", filepath.Ext(path))
	}
}

// FromGeoJSON builds a catalog from a FeatureCollection
func FromGeoJSON(data []byte, nameField string) (*Catalog, error) {
	if nameField == "" {
		nameField = DefaultNameField
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("sites: geojson: %w", err)
	}
	entries := make([]Site, 0, len(fc.Features))
	for i, f := range fc.Features {
		name := strings.TrimSpace(f.Properties.MustString(nameField, ""))
		if name == "" {
			return nil, fmt.Errorf("sites: feature %d has no %q property", i, nameField)
		}
		entries = append(entries, Site{Name: name, Geometry: f.Geometry})
	}
	return build(entries)
}

type yamlCatalog struct {
	Sites []yamlSite `yaml:"sites"`
}

type yamlSite struct {
	Name string    `yaml:"name"`
	WKT  string    `yaml:"wkt"`
	BBox []float64 `yaml:"bbox"`
}

// FromYAML builds a catalog from the YAML form
func FromYAML(data []byte) (*Catalog, error) {
	var doc yamlCatalog
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("sites: yaml: %w", err)
	}
	entries := make([]Site, 0, len(doc.Sites))
	for i, ys := range doc.Sites {
		var g orb.Geometry
		switch {
		case ys.WKT != "":
			parsed, err := geom.ParseWKT(ys.WKT)
			if err != nil {
				return nil, fmt.Errorf("sites: site %d (%s): %w", i, ys.Name, err)
			}
			g = parsed
		case len(ys.BBox) == 4:
			g = orb.Bound{
				Min: orb.Point{ys.BBox[0], ys.BBox[1]},
				Max: orb.Point{ys.BBox[2], ys.BBox[3]},
			}.ToPolygon()
		default:
			return nil, fmt.Errorf("sites: site %d (%s) needs wkt or a 4-value bbox", i, ys.Name)
		}
		entries = append(entries, Site{Name: strings.TrimSpace(ys.Name), Geometry: g})
	}
	return build(entries)
}

func build(entries []Site) (*Catalog, error) {
	c := &Catalog{byKey: make(map[string]Site, len(entries))}
	for _, e := range entries {
		if e.Geometry == nil || len(geom.Polygons(e.Geometry)) == 0 {
			return nil, fmt.Errorf("sites: %q has no areal geometry", e.Name)
		}
		e.Key = sitekey.Fold(e.Name)
		if e.Key == "" {
			return nil, errors.New("sites: empty site name")
		}
		if prev, dup := c.byKey[e.Key]; dup {
			return nil, fmt.Errorf("sites: %q and %q fold to the same key", prev.Name, e.Name)
		}
		c.byKey[e.Key] = e
		c.names = append(c.names, e.Name)
	}
	sort.Strings(c.names)
	return c, nil
}

// Lookup returns the site whose folded name equals the folded key
func (c *Catalog) Lookup(_ context.Context, key string) (Site, error) {
	if c == nil {
		return Site{}, ErrNotFound
	}
	s, ok := c.byKey[sitekey.Fold(key)]
	if !ok {
		return Site{}, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	return s, nil
}

// Names lists catalog spellings in sorted order
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.names...)
}

// Len is the number of sites
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.byKey)
}
