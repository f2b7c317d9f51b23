// Package geometry implements the planar footprint operations: centroids,
// local-frame areas, circle synthesis, union and containment.
//
// Coordinates are lon/lat degrees. Every computation is a planar
// approximation valid at facility scale (tens to hundreds of meters).
package geometry

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// degenerateArea is the signed-area magnitude below which a ring is
// treated as having no area.
const degenerateArea = 1e-12

// ErrDegenerate is returned for geometries with no usable coordinates.
var ErrDegenerate = eris.New("geometry: degenerate geometry")

// RingCentroid returns the signed-area centroid of a ring. A ring whose
// area is below 1e-12 square degrees yields its first vertex.
func RingCentroid(ring []geom.Coord) (geom.Coord, error) {
	if len(ring) == 0 {
		return nil, ErrDegenerate
	}

	var a, cx, cy float64
	n := len(ring)
	for i := 0; i < n; i++ {
		p, q := ring[i], ring[(i+1)%n]
		cross := p.X()*q.Y() - q.X()*p.Y()
		a += cross
		cx += (p.X() + q.X()) * cross
		cy += (p.Y() + q.Y()) * cross
	}
	a /= 2

	if math.Abs(a) < degenerateArea {
		return geom.Coord{ring[0].X(), ring[0].Y()}, nil
	}
	return geom.Coord{cx / (6 * a), cy / (6 * a)}, nil
}

// Centroid returns the centroid of g. Polygons use the outer ring only and
// multipolygons use their first member. Points return themselves and lines
// their middle vertex.
func Centroid(g geom.T) (geom.Coord, error) {
	switch t := g.(type) {
	case *geom.Point:
		if t == nil || t.Empty() {
			return nil, ErrDegenerate
		}
		return geom.Coord{t.X(), t.Y()}, nil
	case *geom.Polygon:
		ring := OuterRing(t)
		if ring == nil {
			return nil, ErrDegenerate
		}
		return RingCentroid(ring)
	case *geom.MultiPolygon:
		if t == nil || t.NumPolygons() == 0 {
			return nil, ErrDegenerate
		}
		return Centroid(t.Polygon(0))
	case *geom.LineString, *geom.MultiLineString:
		c, ok := Representative(g)
		if !ok {
			return nil, ErrDegenerate
		}
		return c, nil
	default:
		return nil, eris.Wrapf(ErrDegenerate, "geometry: unsupported type %T", g)
	}
}

// OuterRing returns the outer ring coordinates of p, or nil when p is empty.
func OuterRing(p *geom.Polygon) []geom.Coord {
	if p == nil || p.NumLinearRings() == 0 {
		return nil
	}
	ring := p.LinearRing(0).Coords()
	if len(ring) == 0 {
		return nil
	}
	return ring
}

// MidVertex returns coords[floor(n/2)].
func MidVertex(coords []geom.Coord) (geom.Coord, bool) {
	if len(coords) == 0 {
		return nil, false
	}
	return coords[len(coords)/2], true
}

// Representative returns the coordinate used to stand for g when matching
// names against reference datasets: a point is itself, a polygon is the
// first vertex of its first ring, and a line is its middle vertex.
func Representative(g geom.T) (geom.Coord, bool) {
	switch t := g.(type) {
	case *geom.Point:
		if t == nil || t.Empty() {
			return nil, false
		}
		return geom.Coord{t.X(), t.Y()}, true
	case *geom.MultiPoint:
		if t == nil || t.NumPoints() == 0 {
			return nil, false
		}
		return Representative(t.Point(0))
	case *geom.Polygon:
		ring := OuterRing(t)
		if ring == nil {
			return nil, false
		}
		return ring[0], true
	case *geom.MultiPolygon:
		if t == nil || t.NumPolygons() == 0 {
			return nil, false
		}
		return Representative(t.Polygon(0))
	case *geom.LineString:
		if t == nil {
			return nil, false
		}
		return MidVertex(t.Coords())
	case *geom.MultiLineString:
		if t == nil || t.NumLineStrings() == 0 {
			return nil, false
		}
		return MidVertex(t.LineString(0).Coords())
	default:
		return nil, false
	}
}
