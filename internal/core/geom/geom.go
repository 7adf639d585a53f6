// Package geom holds the planar geometry helpers used for site and footprint matching.
// Coordinates are lon/lat degrees; everything is evaluated on the plane
package geom

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/planar"
)

// Polygons flattens areal geometries into polygons. Points and lines yield none
func Polygons(g orb.Geometry) []orb.Polygon {
	switch v := g.(type) {
	case orb.Polygon:
		return []orb.Polygon{v}
	case orb.MultiPolygon:
		return []orb.Polygon(v)
	case orb.Ring:
		return []orb.Polygon{{v}}
	case orb.Bound:
		return []orb.Polygon{v.ToPolygon()}
	case orb.Collection:
		var out []orb.Polygon
		for _, c := range v {
			out = append(out, Polygons(c)...)
		}
		return out
	default:
		return nil
	}
}

// Intersects reports whether two geometries share at least one point.
// Touching boundaries count as intersecting
func Intersects(a, b orb.Geometry) bool {
	if a == nil || b == nil {
		return false
	}
	if !a.Bound().Intersects(b.Bound()) {
		return false
	}
	if p, ok := a.(orb.Point); ok {
		return containsPoint(Polygons(b), p)
	}
	if p, ok := b.(orb.Point); ok {
		return containsPoint(Polygons(a), p)
	}

	pa, pb := Polygons(a), Polygons(b)
	for _, x := range pa {
		for _, y := range pb {
			if polygonsIntersect(x, y) {
				return true
			}
		}
	}
	return false
}

func containsPoint(ps []orb.Polygon, p orb.Point) bool {
	for _, poly := range ps {
		if planar.PolygonContains(poly, p) || onBoundary(poly, p) {
			return true
		}
	}
	return false
}

func polygonsIntersect(a, b orb.Polygon) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	if !a.Bound().Intersects(b.Bound()) {
		return false
	}
	for _, p := range a[0] {
		if planar.PolygonContains(b, p) {
			return true
		}
	}
	for _, p := range b[0] {
		if planar.PolygonContains(a, p) {
			return true
		}
	}
	for _, ra := range a {
		for _, rb := range b {
			if ringsCross(ra, rb) {
				return true
			}
		}
	}
	return false
}

func ringsCross(a, b orb.Ring) bool {
	for i := 0; i+1 < len(a); i++ {
		for j := 0; j+1 < len(b); j++ {
			if segmentsIntersect(a[i], a[i+1], b[j], b[j+1]) {
				return true
			}
		}
	}
	return false
}

func onBoundary(poly orb.Polygon, p orb.Point) bool {
	for _, r := range poly {
		for i := 0; i+1 < len(r); i++ {
			if orientation(r[i], r[i+1], p) == 0 && onSegment(r[i], p, r[i+1]) {
				return true
			}
		}
	}
	return false
}

// orientation is the sign of the cross product (q-p)x(r-q)
func orientation(p, q, r orb.Point) int {
	v := (q[1]-p[1])*(r[0]-q[0]) - (q[0]-p[0])*(r[1]-q[1])
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// onSegment assumes p, q, r are collinear and checks q lies within the p..r box
func onSegment(p, q, r orb.Point) bool {
	return q[0] <= max(p[0], r[0]) && q[0] >= min(p[0], r[0]) &&
		q[1] <= max(p[1], r[1]) && q[1] >= min(p[1], r[1])
}

func segmentsIntersect(p1, q1, p2, q2 orb.Point) bool {
	o1 := orientation(p1, q1, p2)
	o2 := orientation(p1, q1, q2)
	o3 := orientation(p2, q2, p1)
	o4 := orientation(p2, q2, q1)

	if o1 != o2 && o3 != o4 {
		return true
	}
	switch {
	case o1 == 0 && onSegment(p1, p2, q1):
		return true
	case o2 == 0 && onSegment(p1, q2, q1):
		return true
	case o3 == 0 && onSegment(p2, p1, q2):
		return true
	case o4 == 0 && onSegment(p2, q1, q2):
		return true
	}
	return false
}

// ParseWKT decodes a WKT string
func ParseWKT(s string) (orb.Geometry, error) {
	g, err := wkt.Unmarshal(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("geom: wkt: %w", err)
	}
	return g, nil
}

// ParsePolygonWKT decodes a WKT string that must be a POLYGON
func ParsePolygonWKT(s string) (orb.Polygon, error) {
	g, err := ParseWKT(s)
	if err != nil {
		return nil, err
	}
	p, ok := g.(orb.Polygon)
	if !ok {
		return nil, fmt.Errorf("geom: want POLYGON, got %s", g.GeoJSONType())
	}
	return p, nil
}

// WKT encodes g as WKT text
func WKT(g orb.Geometry) string { return wkt.MarshalString(g) }

// ParseGMLCoordinates turns a GML coordinate list "lat,lon lat,lon ..." (the order
// used by Sentinel-1 manifests) into a closed lon/lat polygon
func ParseGMLCoordinates(s string) (orb.Polygon, error) {
	fields := strings.Fields(s)
	if len(fields) < 3 {
		return nil, fmt.Errorf("geom: need at least 3 coordinates, got %d", len(fields))
	}
	ring := make(orb.Ring, 0, len(fields)+1)
	for _, f := range fields {
		latS, lonS, ok := strings.Cut(f, ",")
		if !ok {
			return nil, fmt.Errorf("geom: bad coordinate %q", f)
		}
		lat, err := strconv.ParseFloat(latS, 64)
		if err != nil {
			return nil, fmt.Errorf("geom: bad latitude %q: %w", latS, err)
		}
		lon, err := strconv.ParseFloat(lonS, 64)
		if err != nil {
			return nil, fmt.Errorf("geom: bad longitude %q: %w", lonS, err)
		}
		ring = append(ring, orb.Point{lon, lat})
	}
	if !ring.Closed() {
		ring = append(ring, ring[0])
	}
	return orb.Polygon{ring}, nil
}
