package geometry

import (
	"math"

	"github.com/twpayne/go-geom"
)

// MinSegments is the lowest segment count Circle will use.
const MinSegments = 24

// DefaultSegments is used when callers have no preference.
const DefaultSegments = 32

// Circle returns a closed polygon approximating a circle of radiusM meters
// around lon/lat. Offsets are converted to degrees with the same local frame
// as AreaM2. Segment counts below MinSegments are raised to it.
func Circle(lon, lat, radiusM float64, segments int) *geom.Polygon {
	if segments < MinSegments {
		segments = MinSegments
	}
	cos := math.Cos(lat * math.Pi / 180)
	if cos < 1e-9 {
		cos = 1e-9
	}

	ring := make([]geom.Coord, 0, segments+1)
	for i := 0; i < segments; i++ {
		theta := 2 * math.Pi * float64(i) / float64(segments)
		dx := radiusM * math.Cos(theta)
		dy := radiusM * math.Sin(theta)
		ring = append(ring, geom.Coord{
			lon + dx/(MetersPerDegree*cos),
			lat + dy/MetersPerDegree,
		})
	}
	ring = append(ring, geom.Coord{ring[0].X(), ring[0].Y()})

	return geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{ring}).SetSRID(4326)
}

// CircleAreaM2 returns π r² rounded to the nearest square meter.
func CircleAreaM2(radiusM float64) float64 {
	return math.Round(math.Pi * radiusM * radiusM)
}
