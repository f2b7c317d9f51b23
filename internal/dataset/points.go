package dataset

import (
	"strconv"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/hazardmap/powergrid/internal/geometry"
	"github.com/hazardmap/powergrid/internal/model"
	"github.com/hazardmap/powergrid/internal/normalize"
)

// Properties written on national points, besides name, id, operator,
// voltage_kv and utility.
const (
	propNameJA        = "name_ja"
	propAvailableKW   = "available_kw"
	propUpdatedAt     = "updated_at"
	propMatchedSource = "matched_source"
	propConfidence    = "confidence"
	propIsForeign     = "is_foreign"
)

// Matched sources for points without a located capacity record.
const (
	PointPolygonOnly = "polygon_only"
	PointCapacity    = "capacity"
)

// PointsSummary counts what NationalPoints produced.
type PointsSummary struct {
	Polygons int
	Points   int
	Matched  int
	Foreign  int
	Skipped  int
}

// DomesticFunc reports whether a facility at lat/lon named name is
// domestic.
type DomesticFunc func(lat, lon float64, name string) bool

// NationalPoints turns each footprint into a point at its centroid and
// joins the first capacity record whose name has the same key. Footprints
// without a usable centroid are skipped. isDomestic may be nil, in which
// case every point is domestic.
func NationalPoints(footprints []*geojson.Feature, records []model.CapacityRecord, isDomestic DomesticFunc) ([]*geojson.Feature, PointsSummary) {
	byKey := make(map[string]*model.CapacityRecord, len(records))
	for i := range records {
		k := normalize.Key(records[i].Name)
		if k == "" {
			continue
		}
		if _, seen := byKey[k]; !seen {
			byKey[k] = &records[i]
		}
	}

	sum := PointsSummary{Polygons: len(footprints)}
	out := make([]*geojson.Feature, 0, len(footprints))
	next := 1
	for _, f := range footprints {
		if f.Geometry == nil {
			sum.Skipped++
			continue
		}
		c, err := geometry.Centroid(f.Geometry)
		if err != nil {
			sum.Skipped++
			continue
		}
		props := f.Properties
		name := stringProp(props, propName, "name:ja", propOperator)
		operator := stringProp(props, propOperator)

		var rec *model.CapacityRecord
		if k := normalize.Key(name); k != "" {
			rec = byKey[k]
		}

		p := map[string]any{
			propName:          name,
			propNameJA:        stringProp(props, "name:ja"),
			propOperator:      operator,
			propVoltageKV:     nil,
			propAvailableKW:   nil,
			propUpdatedAt:     nil,
			propUtility:       operator,
			propMatchedSource: PointPolygonOnly,
			propConfidence:    1.0,
			propIsForeign:     false,
		}
		if v := model.EstimateVoltageKV(props); v != nil {
			p[propVoltageKV] = *v
		} else if v := floatProp(props, propVoltageKVEst); v > 0 {
			p[propVoltageKV] = v
		}

		var id string
		if rec != nil {
			sum.Matched++
			id = rec.ID
			if rec.VoltageKV != nil {
				p[propVoltageKV] = *rec.VoltageKV
			}
			if rec.AvailableKW != nil {
				p[propAvailableKW] = *rec.AvailableKW
			}
			if rec.UpdatedAt != "" {
				p[propUpdatedAt] = rec.UpdatedAt
			}
			if rec.Utility != "" {
				p[propUtility] = rec.Utility
			}
			p[propMatchedSource] = PointCapacity
			if rec.MatchedSource != "" {
				p[propMatchedSource] = string(rec.MatchedSource)
			}
			p[propConfidence] = rec.Confidence
		} else {
			id = strconv.Itoa(next)
			next++
		}
		p[propID] = id

		if isDomestic != nil && !isDomestic(c.Y(), c.X(), name) {
			p[propIsForeign] = true
			sum.Foreign++
		}

		out = append(out, &geojson.Feature{
			ID:         id,
			Geometry:   geom.NewPointFlat(geom.XY, []float64{c.X(), c.Y()}),
			Properties: p,
		})
	}
	sum.Points = len(out)
	return out, sum
}
