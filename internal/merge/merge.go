// Package merge folds capacity records, a previous geocoded snapshot and
// facility footprints into one canonical record list keyed by facility
// grouping key.
package merge

import (
	"fmt"
	"math"

	"github.com/golang/geo/s2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/hazardmap/powergrid/internal/footprint"
	"github.com/hazardmap/powergrid/internal/geofence"
	"github.com/hazardmap/powergrid/internal/model"
	"github.com/hazardmap/powergrid/internal/normalize"
)

const (
	// DefaultThreshold is the coordinate divergence, in degrees, above which
	// a record is moved to its footprint centroid. About 1 km at these
	// latitudes.
	DefaultThreshold = 0.01

	earthRadiusM = 6371008.8

	placeholderNotes   = "Generated from OSM polygon (no capacity data available)"
	placeholderUtility = "Unknown"
)

// Inputs are the collections to merge. Capacity records take precedence
// over the previous snapshot, which takes precedence over footprints.
type Inputs struct {
	Capacity   []model.CapacityRecord
	Previous   []model.CapacityRecord
	Footprints []model.Footprint
}

// Summary counts merge events.
type Summary struct {
	Input      int
	Duplicates int
	Carried    int
	Appended   int
	Filled     int
	Corrected  int
	Added      int
	Rejected   int
	Foreign    int
}

// Output is the merged record list and what happened to it.
type Output struct {
	Records []model.CapacityRecord
	Summary Summary
}

// Merger merges record collections. The zero value is usable and applies
// the bounding-box geofence.
type Merger struct {
	Geofence           *geofence.Filter
	Threshold          float64
	CentroidConfidence float64
	Clock              clockwork.Clock
}

func (m *Merger) defaults() Merger {
	out := *m
	if out.Geofence == nil {
		out.Geofence = geofence.New(nil)
	}
	if out.Threshold <= 0 {
		out.Threshold = DefaultThreshold
	}
	if out.CentroidConfidence <= 0 {
		out.CentroidConfidence = model.SourcePolygonCentroid.Tier()
	}
	if out.Clock == nil {
		out.Clock = clockwork.NewRealClock()
	}
	return out
}

// Key returns the grouping key of a record, preferring its display name.
func Key(r *model.CapacityRecord) string {
	if k := normalize.Key(r.Name); k != "" {
		return k
	}
	if k := normalize.Key(r.NameNormalized); k != "" {
		return k
	}
	return normalize.Key(r.NameOriginal)
}

type centroid struct {
	lon, lat float64
	fp       *model.Footprint
}

// Merge combines in. Inputs are not modified.
func (m *Merger) Merge(in Inputs) Output {
	cfg := m.defaults()
	log := zap.L().With(zap.String("stage", "merge"))
	sum := Summary{Input: len(in.Capacity)}

	records := make([]model.CapacityRecord, 0, len(in.Capacity)+len(in.Footprints))
	index := make(map[string]int)

	for i := range in.Capacity {
		r := in.Capacity[i]
		k := Key(&r)
		if k != "" {
			if _, dup := index[k]; dup {
				sum.Duplicates++
				log.Debug("dropping duplicate record", zap.String("id", r.ID), zap.String("key", k))
				continue
			}
			index[k] = len(records)
		}
		records = append(records, r)
	}

	for i := range in.Previous {
		p := in.Previous[i]
		k := Key(&p)
		if k == "" {
			continue
		}
		pos, ok := index[k]
		if !ok {
			index[k] = len(records)
			records = append(records, p)
			sum.Appended++
			continue
		}
		cur := &records[pos]
		if cur.HasCoords() || !p.HasCoords() || !p.MatchedSource.Located() {
			continue
		}
		if !cfg.accept(cur, *p.Lat, *p.Lon, "previous", &sum) {
			continue
		}
		cur.SetCoords(*p.Lat, *p.Lon)
		cur.MatchedSource = p.MatchedSource
		cur.Confidence = p.MatchedSource.Tier()
		cur.Notes = p.Notes
		cur.GeocodedFrom = p.GeocodedFrom
		sum.Carried++
	}

	centroids := make(map[string]centroid)
	var order []string
	for i := range in.Footprints {
		f := &in.Footprints[i]
		k := normalize.Key(f.Name)
		if k == "" {
			continue
		}
		if _, seen := centroids[k]; seen {
			continue
		}
		lon, lat, err := footprint.Centroid(*f)
		if err != nil {
			log.Warn("skipping footprint without centroid", zap.String("id", f.ID), zap.Error(err))
			continue
		}
		centroids[k] = centroid{lon: lon, lat: lat, fp: f}
		order = append(order, k)
	}

	for _, k := range order {
		c := centroids[k]
		pos, ok := index[k]
		if !ok {
			continue
		}
		r := &records[pos]
		if !r.HasCoords() {
			if !cfg.accept(r, c.lat, c.lon, model.FromPolygonCentroid, &sum) {
				continue
			}
			r.SetCoords(c.lat, c.lon)
			r.MatchedSource = model.SourcePolygonCentroid
			r.Confidence = cfg.CentroidConfidence
			r.GeocodedFrom = model.FromPolygonCentroid
			r.AppendNote(fmt.Sprintf("filled from polygon %s", c.fp.ID))
			sum.Filled++
			continue
		}

		oldLat, oldLon := *r.Lat, *r.Lon
		if math.Hypot(oldLat-c.lat, oldLon-c.lon) <= cfg.Threshold {
			continue
		}
		if !cfg.accept(r, c.lat, c.lon, model.FromPolygonCentroidCorrected, &sum) {
			continue
		}
		shift := distanceM(oldLat, oldLon, c.lat, c.lon)
		log.Info("correcting coordinate mismatch",
			zap.String("id", r.ID),
			zap.String("name", r.Name),
			zap.Float64("old_lat", oldLat),
			zap.Float64("old_lon", oldLon),
			zap.Float64("new_lat", c.lat),
			zap.Float64("new_lon", c.lon),
			zap.Float64("shift_m", math.Round(shift)),
		)
		r.SetCoords(c.lat, c.lon)
		r.MatchedSource = model.SourcePolygonCentroid
		r.Confidence = cfg.CentroidConfidence
		r.GeocodedFrom = model.FromPolygonCentroidCorrected
		r.AppendNote(fmt.Sprintf("corrected from (%.6f, %.6f) shift=%.0fm", oldLat, oldLon, shift))
		sum.Corrected++
	}

	today := cfg.Clock.Now().Format("2006-01-02")
	for _, k := range order {
		if _, ok := index[k]; ok {
			continue
		}
		c := centroids[k]
		r := placeholder(c, sum.Added, today)
		if v := cfg.Geofence.Tag(&r); !v.Domestic {
			sum.Foreign++
		}
		index[k] = len(records)
		records = append(records, r)
		sum.Added++
	}

	log.Info("merge complete",
		zap.Int("records", len(records)),
		zap.Int("duplicates", sum.Duplicates),
		zap.Int("carried", sum.Carried),
		zap.Int("filled", sum.Filled),
		zap.Int("corrected", sum.Corrected),
		zap.Int("added", sum.Added),
		zap.Int("rejected", sum.Rejected),
	)
	return Output{Records: records, Summary: sum}
}

// accept geofences a proposed coordinate for r. A foreign proposal leaves r
// unchanged apart from a note.
func (m *Merger) accept(r *model.CapacityRecord, lat, lon float64, what string, sum *Summary) bool {
	v := m.Geofence.Classify(lat, lon, r.Name)
	if v.Domestic {
		return true
	}
	r.AppendNote(fmt.Sprintf("rejected %s (%.6f, %.6f): %s", what, lat, lon, v.Reason))
	sum.Rejected++
	zap.L().Debug("rejected foreign coordinate",
		zap.String("id", r.ID),
		zap.String("source", what),
		zap.String("reason", v.Reason),
	)
	return false
}

func placeholder(c centroid, ordinal int, today string) model.CapacityRecord {
	f := c.fp
	id := f.ID
	if id == "" {
		id = fmt.Sprint(ordinal)
	}
	utility := f.Operator
	if utility == "" {
		utility = placeholderUtility
	}
	light := normalize.Light(f.Name)
	r := model.CapacityRecord{
		ID:             "polygon_" + id,
		Name:           light,
		NameOriginal:   f.Name,
		NameNormalized: light,
		Utility:        utility,
		VoltageKV:      f.VoltageKV,
		UpdatedAt:      today,
		GeocodedFrom:   model.FromPolygonCentroid,
	}
	r.Locate(c.lat, c.lon, model.SourcePolygonOnly, placeholderNotes)
	return r
}

func distanceM(lat1, lon1, lat2, lon2 float64) float64 {
	a := s2.LatLngFromDegrees(lat1, lon1)
	b := s2.LatLngFromDegrees(lat2, lon2)
	return a.Distance(b).Radians() * earthRadiusM
}
