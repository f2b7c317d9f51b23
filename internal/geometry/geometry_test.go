package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func square(x0, y0, size float64) *geom.Polygon {
	return geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
		{x0, y0}, {x0, y0 + size}, {x0 + size, y0 + size}, {x0 + size, y0}, {x0, y0},
	}})
}

func TestRingCentroid_UnitSquare(t *testing.T) {
	t.Parallel()

	c, err := RingCentroid([]geom.Coord{{0, 0}, {0, 1}, {1, 1}, {1, 0}, {0, 0}})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, c.X(), 1e-12)
	assert.InDelta(t, 0.5, c.Y(), 1e-12)
}

func TestRingCentroid_DegenerateFallsBackToFirstVertex(t *testing.T) {
	t.Parallel()

	c, err := RingCentroid([]geom.Coord{{139.1, 35.2}, {139.2, 35.3}, {139.1, 35.2}})
	require.NoError(t, err)
	assert.InDelta(t, 139.1, c.X(), 1e-12)
	assert.InDelta(t, 35.2, c.Y(), 1e-12)

	_, err = RingCentroid(nil)
	assert.ErrorIs(t, err, ErrDegenerate)
}

func TestCentroid_IgnoresHoles(t *testing.T) {
	t.Parallel()

	p := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{
		{{0, 0}, {0, 4}, {4, 4}, {4, 0}, {0, 0}},
		{{0.5, 0.5}, {1.5, 0.5}, {1.5, 1.5}, {0.5, 1.5}, {0.5, 0.5}},
	})
	c, err := Centroid(p)
	require.NoError(t, err)
	assert.InDelta(t, 2, c.X(), 1e-12)
	assert.InDelta(t, 2, c.Y(), 1e-12)
}

func TestCentroid_MultiPolygonUsesFirstMember(t *testing.T) {
	t.Parallel()

	mp := geom.NewMultiPolygon(geom.XY).MustSetCoords([][][]geom.Coord{
		{{{10, 10}, {10, 12}, {12, 12}, {12, 10}, {10, 10}}},
		{{{0, 0}, {0, 1}, {1, 1}, {1, 0}, {0, 0}}},
	})
	c, err := Centroid(mp)
	require.NoError(t, err)
	assert.InDelta(t, 11, c.X(), 1e-12)
	assert.InDelta(t, 11, c.Y(), 1e-12)
}

func TestCentroid_Unsupported(t *testing.T) {
	t.Parallel()

	_, err := Centroid(geom.NewMultiPolygon(geom.XY))
	assert.Error(t, err)
}

func TestRepresentative(t *testing.T) {
	t.Parallel()

	c, ok := Representative(geom.NewPointFlat(geom.XY, []float64{139, 35}))
	require.True(t, ok)
	assert.Equal(t, geom.Coord{139, 35}, c)

	c, ok = Representative(square(1, 2, 1))
	require.True(t, ok)
	assert.Equal(t, geom.Coord{1, 2}, c)

	line := geom.NewLineString(geom.XY).MustSetCoords([]geom.Coord{{0, 0}, {1, 1}, {2, 2}, {3, 3}})
	c, ok = Representative(line)
	require.True(t, ok)
	assert.Equal(t, geom.Coord{2, 2}, c)

	mls := geom.NewMultiLineString(geom.XY).MustSetCoords([][]geom.Coord{{{0, 0}, {5, 5}, {9, 9}}})
	c, ok = Representative(mls)
	require.True(t, ok)
	assert.Equal(t, geom.Coord{5, 5}, c)

	_, ok = Representative(geom.NewLineString(geom.XY))
	assert.False(t, ok)
}

func TestAreaM2_Square(t *testing.T) {
	t.Parallel()

	// 0.001 degree square at the equator.
	p := square(0, 0, 0.001)
	want := (0.001 * MetersPerDegree) * (0.001 * MetersPerDegree) * math.Cos(0.0005*math.Pi/180)
	assert.InDelta(t, want, AreaM2(p), 1e-3)
}

func TestAreaM2_LatitudeScaling(t *testing.T) {
	t.Parallel()

	eq := AreaM2(square(139, 0, 0.001))
	north := AreaM2(square(139, 60, 0.001))
	assert.InDelta(t, 0.5, north/eq, 0.01)
}

func TestAreaM2_SubtractsHoles(t *testing.T) {
	t.Parallel()

	outer := square(0, 0, 0.002)
	holed := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{
		{{0, 0}, {0, 0.002}, {0.002, 0.002}, {0.002, 0}, {0, 0}},
		{{0.0005, 0.0005}, {0.0015, 0.0005}, {0.0015, 0.0015}, {0.0005, 0.0015}, {0.0005, 0.0005}},
	})
	assert.InDelta(t, AreaM2(outer)*0.75, AreaM2(holed), 1)
}

func TestAreaM2_MultiPolygonSumsMembers(t *testing.T) {
	t.Parallel()

	mp := geom.NewMultiPolygon(geom.XY)
	require.NoError(t, mp.Push(square(0, 0, 0.001)))
	require.NoError(t, mp.Push(square(1, 0, 0.001)))
	assert.InDelta(t, 2*AreaM2(square(0, 0, 0.001)), AreaM2(mp), 1)
	assert.Zero(t, AreaM2(geom.NewPointFlat(geom.XY, []float64{0, 0})))
}

func TestVoltageClass(t *testing.T) {
	t.Parallel()

	kv := func(v float64) *float64 { return &v }
	assert.Equal(t, 0, VoltageClass(kv(500)))
	assert.Equal(t, 0, VoltageClass(kv(1000)))
	assert.Equal(t, 1, VoltageClass(kv(275)))
	assert.Equal(t, 2, VoltageClass(kv(154)))
	assert.Equal(t, 2, VoltageClass(kv(187)))
	assert.Equal(t, 3, VoltageClass(kv(66)))
	assert.Equal(t, 4, VoltageClass(kv(22)))
	assert.Equal(t, 5, VoltageClass(kv(6.6)))
	assert.Equal(t, 5, VoltageClass(nil))
	assert.Equal(t, ">=500kV", ClassLabel(0))
	assert.Equal(t, "unknown", ClassLabel(9))
}

func TestDefaultRadii(t *testing.T) {
	t.Parallel()

	kv := 500.0
	assert.InDelta(t, 200, DefaultRadii.For(&kv), 1e-9)
	assert.InDelta(t, 40, DefaultRadii.For(nil), 1e-9)
}

func TestTuneRadii(t *testing.T) {
	t.Parallel()

	kv500, kv66 := 500.0, 66.0
	obs := []Observation{
		{VoltageKV: &kv500, AreaM2: math.Pi * 100 * 100},
		{VoltageKV: &kv66, AreaM2: 10},
		{VoltageKV: &kv66, AreaM2: 20},
		{VoltageKV: &kv66, AreaM2: 30},
		{VoltageKV: nil, AreaM2: math.Pi * 1000 * 1000},
		{VoltageKV: &kv500, AreaM2: 0},
	}
	tuned := TuneRadii(obs, DefaultRadii)

	assert.InDelta(t, 100, tuned[0], 1e-9)
	assert.InDelta(t, DefaultRadii[1], tuned[1], 1e-9, "no observations keeps default")
	assert.InDelta(t, MinTunedRadiusM, tuned[3], 1e-9, "clamped up")
	assert.InDelta(t, MaxTunedRadiusM, tuned[5], 1e-9, "clamped down")
}

func TestRadiusForArea(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 100, RadiusForArea(math.Pi*100*100), 1e-9)
	assert.InDelta(t, 30, RadiusForArea(1), 1e-9)
	assert.InDelta(t, 350, RadiusForArea(1e9), 1e-9)
}

func TestMedianEven(t *testing.T) {
	t.Parallel()
	assert.InDelta(t, 2.5, median([]float64{4, 1, 3, 2}), 1e-12)
}

func TestCircle(t *testing.T) {
	t.Parallel()

	c := Circle(139.7, 35.7, 100, 8)
	ring := c.LinearRing(0).Coords()
	require.Len(t, ring, MinSegments+1)
	assert.True(t, ValidRing(ring))
	assert.Equal(t, 4326, c.SRID())

	area := AreaM2(c)
	assert.InDelta(t, math.Pi*100*100, area, math.Pi*100*100*0.02)

	cen, err := Centroid(c)
	require.NoError(t, err)
	assert.InDelta(t, 139.7, cen.X(), 1e-6)
	assert.InDelta(t, 35.7, cen.Y(), 1e-6)
}

func TestCircle_DefaultSegments(t *testing.T) {
	t.Parallel()

	c := Circle(0, 0, 50, DefaultSegments)
	assert.Len(t, c.LinearRing(0).Coords(), DefaultSegments+1)
	assert.InDelta(t, 7854, CircleAreaM2(50), 0.5)
}

func TestValidRing(t *testing.T) {
	t.Parallel()

	assert.True(t, ValidRing([]geom.Coord{{0, 0}, {0, 1}, {1, 1}, {0, 0}}))
	assert.False(t, ValidRing([]geom.Coord{{0, 0}, {0, 1}, {1, 1}, {1, 0}}))
	assert.False(t, ValidRing([]geom.Coord{{0, 0}, {0, 1}, {0, 0}}))
}
