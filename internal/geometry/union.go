package geometry

import (
	"fmt"
	"math"

	ctgeom "github.com/ctessum/geom"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// ErrUnionFailed is returned when two footprints cannot be combined. Callers
// keep the previously accumulated geometry.
var ErrUnionFailed = eris.New("geometry: union failed")

// Union combines two polygonal geometries. The result is a *geom.Polygon
// when the inputs merge into one piece and a *geom.MultiPolygon otherwise.
// Invalid inputs, a panic inside the clipper, or an empty result all yield
// ErrUnionFailed.
func Union(a, b geom.T) (out geom.T, err error) {
	pa, err := toPolygonal(a)
	if err != nil {
		return nil, err
	}
	pb, err := toPolygonal(b)
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = eris.Wrapf(ErrUnionFailed, "geometry: clipper panic: %v", r)
		}
	}()

	res := pa.Union(pb)
	if res == nil {
		return nil, ErrUnionFailed
	}
	return fromRings(res)
}

// Polygonal reports whether g is a non-empty polygon or multipolygon with
// valid rings.
func Polygonal(g geom.T) bool {
	_, err := toPolygonal(g)
	return err == nil
}

// ValidRing reports whether ring is closed and has at least four vertices.
func ValidRing(ring []geom.Coord) bool {
	if len(ring) < 4 {
		return false
	}
	first, last := ring[0], ring[len(ring)-1]
	return first.X() == last.X() && first.Y() == last.Y()
}

func toPolygonal(g geom.T) (ctgeom.Polygonal, error) {
	switch t := g.(type) {
	case *geom.Polygon:
		p, err := ctPolygon(t)
		if err != nil {
			return nil, err
		}
		return p, nil
	case *geom.MultiPolygon:
		if t == nil || t.NumPolygons() == 0 {
			return nil, eris.Wrap(ErrUnionFailed, "geometry: empty multipolygon")
		}
		mp := make(ctgeom.MultiPolygon, 0, t.NumPolygons())
		for i := 0; i < t.NumPolygons(); i++ {
			p, err := ctPolygon(t.Polygon(i))
			if err != nil {
				return nil, err
			}
			mp = append(mp, p)
		}
		return mp, nil
	default:
		return nil, eris.Wrapf(ErrUnionFailed, "geometry: %T is not polygonal", g)
	}
}

func ctPolygon(p *geom.Polygon) (ctgeom.Polygon, error) {
	if p == nil || p.NumLinearRings() == 0 {
		return nil, eris.Wrap(ErrUnionFailed, "geometry: empty polygon")
	}
	out := make(ctgeom.Polygon, 0, p.NumLinearRings())
	for i := 0; i < p.NumLinearRings(); i++ {
		ring := p.LinearRing(i).Coords()
		if !ValidRing(ring) {
			return nil, eris.Wrapf(ErrUnionFailed, "geometry: ring %d not closed", i)
		}
		path := make(ctgeom.Path, 0, len(ring))
		for _, c := range ring {
			if math.IsNaN(c.X()) || math.IsNaN(c.Y()) {
				return nil, eris.Wrap(ErrUnionFailed, "geometry: NaN coordinate")
			}
			path = append(path, ctgeom.Point{X: c.X(), Y: c.Y()})
		}
		out = append(out, path)
	}
	return out, nil
}

// fromRings rebuilds go-geom polygons from the clipper's flat ring list.
func fromRings(res ctgeom.Polygonal) (geom.T, error) {
	var rings []orb.Ring
	for _, p := range res.Polygons() {
		for _, path := range p {
			r := closeRing(path)
			if len(r) >= 4 {
				rings = append(rings, r)
			}
		}
	}
	if len(rings) == 0 {
		return nil, eris.Wrap(ErrUnionFailed, "geometry: empty union result")
	}
	return assemble(rings), nil
}

// FromRings builds a polygon or multipolygon from an unordered ring list,
// such as the parts of a shapefile polygon. Open rings are closed; rings
// with fewer than four vertices are dropped.
func FromRings(parts [][]geom.Coord) (geom.T, error) {
	var rings []orb.Ring
	for _, part := range parts {
		r := make(orb.Ring, 0, len(part)+1)
		for _, c := range part {
			r = append(r, orb.Point{c.X(), c.Y()})
		}
		if len(r) > 0 && !r.Closed() {
			r = append(r, r[0])
		}
		if len(r) >= 4 {
			rings = append(rings, r)
		}
	}
	if len(rings) == 0 {
		return nil, eris.Wrap(ErrDegenerate, "geometry: no usable rings")
	}
	return assemble(rings), nil
}

// assemble nests rings: a ring contained in an odd number of other rings is
// a hole and attaches to its smallest enclosing shell.
func assemble(rings []orb.Ring) geom.T {
	depth := make([]int, len(rings))
	parent := make([]int, len(rings))
	for i, r := range rings {
		parent[i] = -1
		pt := r[0]
		for j, other := range rings {
			if i == j || !planar.RingContains(other, pt) {
				continue
			}
			depth[i]++
			if parent[i] == -1 || math.Abs(planar.Area(other)) < math.Abs(planar.Area(rings[parent[i]])) {
				parent[i] = j
			}
		}
	}

	shells := make(map[int][][]geom.Coord)
	var order []int
	for i := range rings {
		if depth[i]%2 == 0 {
			shells[i] = [][]geom.Coord{coords(rings[i])}
			order = append(order, i)
		}
	}
	for i := range rings {
		if depth[i]%2 == 1 && parent[i] >= 0 {
			if _, ok := shells[parent[i]]; ok {
				shells[parent[i]] = append(shells[parent[i]], coords(rings[i]))
			}
		}
	}

	if len(order) == 1 {
		return geom.NewPolygon(geom.XY).MustSetCoords(shells[order[0]]).SetSRID(4326)
	}
	mp := make([][][]geom.Coord, 0, len(order))
	for _, i := range order {
		mp = append(mp, shells[i])
	}
	return geom.NewMultiPolygon(geom.XY).MustSetCoords(mp).SetSRID(4326)
}

func closeRing(path ctgeom.Path) orb.Ring {
	r := make(orb.Ring, 0, len(path)+1)
	for _, p := range path {
		r = append(r, orb.Point{p.X, p.Y})
	}
	if len(r) > 0 && !r.Closed() {
		r = append(r, r[0])
	}
	return r
}

func coords(r orb.Ring) []geom.Coord {
	out := make([]geom.Coord, len(r))
	for i, p := range r {
		out[i] = geom.Coord{p[0], p[1]}
	}
	return out
}

// Describe renders a short description of g for log fields.
func Describe(g geom.T) string {
	switch t := g.(type) {
	case *geom.Polygon:
		return fmt.Sprintf("Polygon(rings=%d)", t.NumLinearRings())
	case *geom.MultiPolygon:
		return fmt.Sprintf("MultiPolygon(parts=%d)", t.NumPolygons())
	case nil:
		return "nil"
	default:
		return fmt.Sprintf("%T", g)
	}
}
