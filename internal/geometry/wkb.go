package geometry

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"
)

// EncodeWKB converts a footprint geometry to EWKB bytes with SRID 4326.
// Polygons are promoted to single-member multipolygons so a geometry column
// holds one type. Returns nil, nil for nil or non-polygonal input.
func EncodeWKB(g geom.T) ([]byte, error) {
	var mp *geom.MultiPolygon

	switch t := g.(type) {
	case *geom.Polygon:
		mp = polygonToMultiPolygon(t)
	case *geom.MultiPolygon:
		mp = t
	default:
		return nil, nil
	}

	if mp == nil || mp.NumPolygons() == 0 {
		return nil, nil
	}

	data, err := ewkb.Marshal(mp.SetSRID(4326), ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "geometry: encode WKB")
	}
	return data, nil
}

// polygonToMultiPolygon wraps p in a multipolygon.
func polygonToMultiPolygon(p *geom.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumLinearRings() == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	if err := mp.Push(p); err != nil {
		zap.L().Debug("geometry: skipping malformed polygon", zap.Error(err))
		return nil
	}
	return mp
}
