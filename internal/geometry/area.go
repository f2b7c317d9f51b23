package geometry

import (
	"math"

	"github.com/twpayne/go-geom"
)

// MetersPerDegree is the constant latitude scale of the local frame.
const MetersPerDegree = 111320.0

// toLocal projects c into meters around refLat.
func toLocal(c geom.Coord, refLat float64) (x, y float64) {
	cos := math.Cos(refLat * math.Pi / 180)
	return c.X() * MetersPerDegree * cos, c.Y() * MetersPerDegree
}

// RingAreaM2 returns the unsigned shoelace area of ring in square meters,
// with longitudes scaled by cos(refLat).
func RingAreaM2(ring []geom.Coord, refLat float64) float64 {
	n := len(ring)
	if n < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		x1, y1 := toLocal(ring[i], refLat)
		x2, y2 := toLocal(ring[(i+1)%n], refLat)
		sum += x1*y2 - x2*y1
	}
	return math.Abs(sum) / 2
}

// PolygonAreaM2 returns the outer ring area minus hole areas. The reference
// latitude is the outer ring centroid latitude.
func PolygonAreaM2(p *geom.Polygon) float64 {
	outer := OuterRing(p)
	if outer == nil {
		return 0
	}
	c, err := RingCentroid(outer)
	if err != nil {
		return 0
	}
	refLat := c.Y()

	area := RingAreaM2(outer, refLat)
	for i := 1; i < p.NumLinearRings(); i++ {
		area -= RingAreaM2(p.LinearRing(i).Coords(), refLat)
	}
	return math.Max(area, 0)
}

// AreaM2 returns the local-frame area of a polygon or multipolygon in square
// meters. Other geometry types have no area.
func AreaM2(g geom.T) float64 {
	switch t := g.(type) {
	case *geom.Polygon:
		if t == nil {
			return 0
		}
		return PolygonAreaM2(t)
	case *geom.MultiPolygon:
		if t == nil {
			return 0
		}
		var total float64
		for i := 0; i < t.NumPolygons(); i++ {
			total += PolygonAreaM2(t.Polygon(i))
		}
		return total
	default:
		return 0
	}
}
