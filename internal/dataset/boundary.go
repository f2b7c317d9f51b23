package dataset

import (
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/hazardmap/powergrid/internal/geometry"
)

// LoadBoundary reads the authoritative national boundary. GeoJSON files use
// their first polygonal feature; shapefiles contribute every polygon record.
// An empty path yields a nil boundary, which callers treat as "use the
// bounding box".
func LoadBoundary(path string) (*geometry.Boundary, error) {
	if path == "" {
		return nil, nil
	}
	var (
		g   geom.T
		err error
	)
	if strings.EqualFold(filepath.Ext(path), ".shp") {
		g, err = boundaryFromShapefile(path)
	} else {
		g, err = boundaryFromGeoJSON(path)
	}
	if err != nil {
		return nil, err
	}
	b, err := geometry.NewBoundary(g)
	if err != nil {
		return nil, eris.Wrapf(ErrDataIntegrity, "dataset: boundary %s: %v", path, err)
	}
	zap.L().Info("dataset: loaded boundary", zap.String("path", path), zap.Int("parts", b.Parts()))
	return b, nil
}

func boundaryFromGeoJSON(path string) (geom.T, error) {
	features, err := LoadFeatures(path)
	if err != nil {
		return nil, err
	}
	for _, f := range features {
		if geometry.Polygonal(f.Geometry) {
			return f.Geometry, nil
		}
	}
	return nil, eris.Wrapf(ErrDataIntegrity, "dataset: boundary %s has no polygon feature", path)
}

func boundaryFromShapefile(path string) (geom.T, error) {
	if !Exists(path) {
		return nil, eris.Wrapf(ErrDataIntegrity, "dataset: boundary %s not found", path)
	}
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(ErrDataIntegrity, "dataset: open shapefile %s: %v", path, err)
	}
	defer func() { _ = reader.Close() }()

	mp := geom.NewMultiPolygon(geom.XY)
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok || poly == nil {
			skipped++
			continue
		}
		g, err := geometry.FromRings(shapeRings(poly.Parts, poly.Points))
		if err != nil {
			skipped++
			continue
		}
		if err := appendPolygons(mp, g); err != nil {
			return nil, eris.Wrapf(err, "dataset: boundary %s", path)
		}
	}
	if skipped > 0 {
		zap.L().Debug("dataset: skipped shapefile records", zap.String("path", path), zap.Int("skipped", skipped))
	}
	if mp.NumPolygons() == 0 {
		return nil, eris.Wrapf(ErrDataIntegrity, "dataset: boundary %s has no polygon records", path)
	}
	return mp, nil
}

// shapeRings splits a shapefile point list into its parts.
func shapeRings(parts []int32, points []shp.Point) [][]geom.Coord {
	rings := make([][]geom.Coord, 0, len(parts))
	for i, start := range parts {
		end := len(points)
		if i+1 < len(parts) {
			end = int(parts[i+1])
		}
		if int(start) >= end || end > len(points) {
			continue
		}
		ring := make([]geom.Coord, 0, end-int(start))
		for _, p := range points[start:end] {
			ring = append(ring, geom.Coord{p.X, p.Y})
		}
		rings = append(rings, ring)
	}
	return rings
}

func appendPolygons(mp *geom.MultiPolygon, g geom.T) error {
	switch t := g.(type) {
	case *geom.Polygon:
		return mp.Push(t)
	case *geom.MultiPolygon:
		for i := 0; i < t.NumPolygons(); i++ {
			if err := mp.Push(t.Polygon(i)); err != nil {
				return err
			}
		}
	}
	return nil
}
