// Package geofence decides whether a facility coordinate and name belong to
// Japan. Foreign records are tagged, never dropped.
package geofence

import (
	"strings"

	"github.com/paulmach/orb"

	"github.com/hazardmap/powergrid/internal/geometry"
	"github.com/hazardmap/powergrid/internal/model"
)

// Reasons reported for foreign verdicts.
const (
	ReasonHangul          = "hangul_name"
	ReasonCyrillic        = "cyrillic_name"
	ReasonMarker          = "foreign_marker"
	ReasonOutsideBBox     = "outside_bbox"
	ReasonOutsideBoundary = "outside_boundary"
	carveOutPrefix        = "carve_out:"
)

// foreignMarkers are lower-cased name fragments that identify facilities
// outside the country regardless of location.
var foreignMarkers = []string{"north korea uncovered"}

// Region is a named carve-out. Match returns true for coordinates inside it.
type Region struct {
	Name  string
	Match func(lat, lon float64) bool
}

// JapanBBox is the national bounding box in lon/lat order, edges inclusive.
var JapanBBox = orb.Bound{Min: orb.Point{123.0, 24.0}, Max: orb.Point{148.0, 45.5}}

// DefaultCarveOuts approximate the neighbouring territory that falls inside
// JapanBBox. The southern edge of the peninsula band sits above Okinawa and
// Amami, the coast band stops west of Hokkaido, and the island band only
// covers the southern Kurils east of Shiretoko and Nemuro.
var DefaultCarveOuts = []Region{
	{Name: "korean_peninsula", Match: func(lat, lon float64) bool { return lat > 32.9 && lat <= 38.0 && lon < 128.0 }},
	{Name: "primorsky_coast", Match: func(lat, lon float64) bool { return lat > 43.0 && lon > 131.0 && lon < 139.0 }},
	{Name: "sakhalin_kurils", Match: func(lat, lon float64) bool { return lon > 145.4 && lat > 43.6 }},
	{Name: "northeast_china", Match: func(lat, lon float64) bool { return lat > 41.0 && lon < 130.0 }},
}

// LegacyCarveOuts are the wider bands used by earlier data releases. They
// also exclude western Hokkaido, the Okhotsk coast and the Ryukyus west of
// 128°E, so only use them to reproduce old outputs.
var LegacyCarveOuts = []Region{
	{Name: "korean_peninsula", Match: func(lat, lon float64) bool { return lat <= 38.0 && lon < 128.0 }},
	{Name: "primorsky_coast", Match: func(lat, lon float64) bool { return lat > 43.0 && lon > 131.0 && lon < 142.0 }},
	{Name: "sakhalin_kurils", Match: func(lat, lon float64) bool { return lon > 142.0 && lat > 44.0 }},
	{Name: "northeast_china", Match: func(lat, lon float64) bool { return lat > 41.0 && lon < 130.0 }},
}

// Verdict is the outcome of a geofence check.
type Verdict struct {
	Domestic bool
	Reason   string
}

// Filter combines the name heuristics with either the authoritative
// boundary, when present, or the bounding box and carve-outs.
type Filter struct {
	BBox      orb.Bound
	CarveOuts []Region
	Boundary  *geometry.Boundary
}

// New returns a Filter with the default box and carve-outs. boundary may be
// nil.
func New(boundary *geometry.Boundary) *Filter {
	return &Filter{BBox: JapanBBox, CarveOuts: DefaultCarveOuts, Boundary: boundary}
}

// CarveOuts returns the named carve-out set: "default" or "legacy".
func CarveOuts(name string) ([]Region, bool) {
	switch name {
	case "", "default":
		return DefaultCarveOuts, true
	case "legacy":
		return LegacyCarveOuts, true
	default:
		return nil, false
	}
}

// Classify checks the name first, then the coordinate.
func (f *Filter) Classify(lat, lon float64, name string) Verdict {
	if v := f.ClassifyName(name); !v.Domestic {
		return v
	}
	if f.Boundary != nil {
		if !f.Boundary.Contains(lon, lat) {
			return Verdict{Reason: ReasonOutsideBoundary}
		}
		return Verdict{Domestic: true}
	}
	if !f.BBox.Contains(orb.Point{lon, lat}) {
		return Verdict{Reason: ReasonOutsideBBox}
	}
	for _, r := range f.CarveOuts {
		if r.Match(lat, lon) {
			return Verdict{Reason: carveOutPrefix + r.Name}
		}
	}
	return Verdict{Domestic: true}
}

// ClassifyName applies only the script and marker checks.
func (f *Filter) ClassifyName(name string) Verdict {
	for _, r := range name {
		switch {
		case isHangul(r):
			return Verdict{Reason: ReasonHangul}
		case isCyrillic(r):
			return Verdict{Reason: ReasonCyrillic}
		}
	}
	lower := strings.ToLower(name)
	for _, m := range foreignMarkers {
		if strings.Contains(lower, m) {
			return Verdict{Reason: ReasonMarker}
		}
	}
	return Verdict{Domestic: true}
}

// IsDomestic reports whether lat/lon/name passes every check.
func (f *Filter) IsDomestic(lat, lon float64, name string) bool {
	return f.Classify(lat, lon, name).Domestic
}

// Tag classifies r in place. Records without coordinates only get the name
// check. The return value is the verdict applied.
func (f *Filter) Tag(r *model.CapacityRecord) Verdict {
	var v Verdict
	if r.HasCoords() {
		v = f.Classify(*r.Lat, *r.Lon, r.Name)
	} else {
		v = f.ClassifyName(r.Name)
	}
	r.Foreign = !v.Domestic
	r.ForeignReason = v.Reason
	return v
}

// Counts tallies verdicts by reason.
type Counts struct {
	Domestic int
	Foreign  int
	Reasons  map[string]int
}

// TagRecords tags every record and returns the tallies.
func (f *Filter) TagRecords(records []model.CapacityRecord) Counts {
	c := Counts{Reasons: make(map[string]int)}
	for i := range records {
		v := f.Tag(&records[i])
		if v.Domestic {
			c.Domestic++
			continue
		}
		c.Foreign++
		c.Reasons[v.Reason]++
	}
	return c
}

// PartitionFootprints splits footprints by the verdict at their centroid.
// Footprints whose centroid cannot be computed are treated as foreign.
func (f *Filter) PartitionFootprints(fps []model.Footprint) (domestic, foreign []model.Footprint) {
	for _, fp := range fps {
		c, err := geometry.Centroid(fp.Geometry)
		if err != nil {
			foreign = append(foreign, fp)
			continue
		}
		if f.IsDomestic(c.Y(), c.X(), fp.Name) {
			domestic = append(domestic, fp)
		} else {
			foreign = append(foreign, fp)
		}
	}
	return domestic, foreign
}

func isHangul(r rune) bool {
	return r >= 0xAC00 && r <= 0xD7AF
}

func isCyrillic(r rune) bool {
	return r >= 0x0400 && r <= 0x04FF
}
