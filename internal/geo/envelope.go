// Package geo holds the small amount of geometry the catalogs need:
// axis-aligned envelopes in EPSG:4326 and their scalar bounds.
package geo

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
)

// ErrInvalidInput marks geometry or asset collections that violate a
// non-emptiness precondition.
var ErrInvalidInput = errors.New("invalid input")

// SRID is the reference frame for every geometry in a catalog. Envelope
// never mixes frames because callers only ever hand it catalog geometries.
const SRID = "EPSG:4326"

// Envelope returns the smallest axis-aligned rectangle containing the union
// of all given geometries, as a closed polygon ring.
//
// Every geometry the pipeline stores is itself an envelope, and the bound of
// a union of rectangles equals the union of their bounds, so accumulating
// orb.Bound reproduces union-then-envelope exactly.
func Envelope(geoms []orb.Geometry) (orb.Polygon, error) {
	if len(geoms) == 0 {
		return nil, fmt.Errorf("envelope of empty geometry collection: %w", ErrInvalidInput)
	}
	var b orb.Bound
	for i, g := range geoms {
		if g == nil {
			return nil, fmt.Errorf("envelope over nil geometry: %w", ErrInvalidInput)
		}
		if i == 0 {
			b = g.Bound()
			continue
		}
		b = b.Union(g.Bound())
	}
	return b.ToPolygon(), nil
}

// BBox returns [minX, minY, maxX, maxY] for a geometry.
func BBox(g orb.Geometry) [4]float64 {
	b := g.Bound()
	return [4]float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]}
}

// Rect builds the envelope polygon for the given bounds.
func Rect(minX, minY, maxX, maxY float64) orb.Polygon {
	b := orb.Bound{Min: orb.Point{minX, minY}, Max: orb.Point{maxX, maxY}}
	return b.ToPolygon()
}
