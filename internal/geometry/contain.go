package geometry

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Boundary is a polygonal region used for containment tests. It is
// read-only after construction and safe for concurrent use.
type Boundary struct {
	polys orb.MultiPolygon
	bound orb.Bound
}

// NewBoundary converts a polygon or multipolygon into a Boundary.
func NewBoundary(g geom.T) (*Boundary, error) {
	mp, err := ToOrb(g)
	if err != nil {
		return nil, err
	}
	if len(mp) == 0 {
		return nil, eris.Wrap(ErrDegenerate, "geometry: empty boundary")
	}
	return &Boundary{polys: mp, bound: mp.Bound()}, nil
}

// Contains reports whether lon/lat lies inside the boundary. Members are
// tested one at a time until one contains the point. A nil boundary
// contains nothing.
func (b *Boundary) Contains(lon, lat float64) bool {
	if b == nil {
		return false
	}
	pt := orb.Point{lon, lat}
	if !b.bound.Contains(pt) {
		return false
	}
	for _, p := range b.polys {
		if planar.PolygonContains(p, pt) {
			return true
		}
	}
	return false
}

// Parts returns the number of member polygons.
func (b *Boundary) Parts() int {
	if b == nil {
		return 0
	}
	return len(b.polys)
}

// Contains reports whether lon/lat lies inside the polygonal geometry g.
func Contains(g geom.T, lon, lat float64) bool {
	mp, err := ToOrb(g)
	if err != nil {
		return false
	}
	pt := orb.Point{lon, lat}
	for _, p := range mp {
		if planar.PolygonContains(p, pt) {
			return true
		}
	}
	return false
}

// ToOrb converts a go-geom polygon or multipolygon to an orb.MultiPolygon.
func ToOrb(g geom.T) (orb.MultiPolygon, error) {
	switch t := g.(type) {
	case *geom.Polygon:
		if t == nil {
			return nil, ErrDegenerate
		}
		return orb.MultiPolygon{orbPolygon(t)}, nil
	case *geom.MultiPolygon:
		if t == nil {
			return nil, ErrDegenerate
		}
		mp := make(orb.MultiPolygon, 0, t.NumPolygons())
		for i := 0; i < t.NumPolygons(); i++ {
			mp = append(mp, orbPolygon(t.Polygon(i)))
		}
		return mp, nil
	default:
		return nil, eris.Wrapf(ErrDegenerate, "geometry: %T is not polygonal", g)
	}
}

func orbPolygon(p *geom.Polygon) orb.Polygon {
	out := make(orb.Polygon, 0, p.NumLinearRings())
	for i := 0; i < p.NumLinearRings(); i++ {
		cs := p.LinearRing(i).Coords()
		ring := make(orb.Ring, len(cs))
		for j, c := range cs {
			ring[j] = orb.Point{c.X(), c.Y()}
		}
		out = append(out, ring)
	}
	return out
}
