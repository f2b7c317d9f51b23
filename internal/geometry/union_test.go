package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

func TestUnion_OverlappingCircles(t *testing.T) {
	t.Parallel()

	a := Circle(139.70, 35.70, 100, 32)
	b := Circle(139.701, 35.70, 100, 32)

	u, err := Union(a, b)
	require.NoError(t, err)

	p, ok := u.(*geom.Polygon)
	require.True(t, ok, "overlapping inputs merge into one polygon, got %s", Describe(u))
	assert.True(t, ValidRing(p.LinearRing(0).Coords()))
	assert.Greater(t, AreaM2(u), AreaM2(a))
	assert.Less(t, AreaM2(u), AreaM2(a)+AreaM2(b))
}

func TestUnion_DisjointBecomesMultiPolygon(t *testing.T) {
	t.Parallel()

	a := square(0, 0, 1)
	b := square(5, 5, 1)

	u, err := Union(a, b)
	require.NoError(t, err)

	mp, ok := u.(*geom.MultiPolygon)
	require.True(t, ok, "got %s", Describe(u))
	assert.Equal(t, 2, mp.NumPolygons())
	assert.InDelta(t, AreaM2(a)+AreaM2(b), AreaM2(u), AreaM2(a)*0.01)
}

func TestUnion_Contained(t *testing.T) {
	t.Parallel()

	outer := square(0, 0, 4)
	inner := square(1, 1, 1)

	u, err := Union(outer, inner)
	require.NoError(t, err)
	assert.InDelta(t, AreaM2(outer), AreaM2(u), AreaM2(outer)*0.001)
}

func TestUnion_RejectsOpenRing(t *testing.T) {
	t.Parallel()

	open := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{{0, 0}, {0, 1}, {1, 1}, {1, 0}}})
	_, err := Union(square(0, 0, 1), open)
	assert.ErrorIs(t, err, ErrUnionFailed)
}

func TestUnion_RejectsNonPolygonal(t *testing.T) {
	t.Parallel()

	_, err := Union(square(0, 0, 1), geom.NewPointFlat(geom.XY, []float64{0, 0}))
	assert.ErrorIs(t, err, ErrUnionFailed)
	assert.False(t, Polygonal(geom.NewPointFlat(geom.XY, []float64{0, 0})))
	assert.True(t, Polygonal(square(0, 0, 1)))
}

func TestBoundaryContains(t *testing.T) {
	t.Parallel()

	mp := geom.NewMultiPolygon(geom.XY).MustSetCoords([][][]geom.Coord{
		{{{0, 0}, {0, 10}, {10, 10}, {10, 0}, {0, 0}}, {{4, 4}, {6, 4}, {6, 6}, {4, 6}, {4, 4}}},
		{{{20, 20}, {20, 22}, {22, 22}, {22, 20}, {20, 20}}},
	})
	b, err := NewBoundary(mp)
	require.NoError(t, err)
	assert.Equal(t, 2, b.Parts())

	assert.True(t, b.Contains(1, 1))
	assert.False(t, b.Contains(5, 5), "inside hole")
	assert.True(t, b.Contains(21, 21), "second member")
	assert.False(t, b.Contains(15, 15))
	assert.False(t, b.Contains(100, 100), "outside bbox")

	var nilB *Boundary
	assert.False(t, nilB.Contains(1, 1))
}

func TestNewBoundary_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewBoundary(geom.NewPointFlat(geom.XY, []float64{0, 0}))
	assert.Error(t, err)
	_, err = NewBoundary(geom.NewMultiPolygon(geom.XY))
	assert.Error(t, err)
}

func TestContains(t *testing.T) {
	t.Parallel()

	assert.True(t, Contains(square(0, 0, 1), 0.5, 0.5))
	assert.False(t, Contains(square(0, 0, 1), 1.5, 0.5))
	assert.False(t, Contains(geom.NewPointFlat(geom.XY, []float64{0, 0}), 0, 0))
}

func TestEncodeWKB(t *testing.T) {
	t.Parallel()

	data, err := EncodeWKB(square(139, 35, 0.001))
	require.NoError(t, err)
	require.NotEmpty(t, data)

	g, err := ewkb.Unmarshal(data)
	require.NoError(t, err)
	mp, ok := g.(*geom.MultiPolygon)
	require.True(t, ok)
	assert.Equal(t, 1, mp.NumPolygons())
	assert.Equal(t, 4326, mp.SRID())
}

func TestEncodeWKB_Unsupported(t *testing.T) {
	t.Parallel()

	data, err := EncodeWKB(geom.NewPointFlat(geom.XY, []float64{0, 0}))
	require.NoError(t, err)
	assert.Nil(t, data)

	data, err = EncodeWKB(nil)
	require.NoError(t, err)
	assert.Nil(t, data)
}
