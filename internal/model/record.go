package model

// MatchSource identifies how a capacity record obtained its coordinates.
type MatchSource string

// Match sources, in the order the locator and merger assign them.
const (
	SourceUnmatched       MatchSource = "unmatched"
	SourceNominatim       MatchSource = "nominatim"
	SourceGSI             MatchSource = "gsi"
	SourceGridLines       MatchSource = "osm_grid_lines"
	SourceOCCTO           MatchSource = "occto_fuzzy"
	SourcePolygonCentroid MatchSource = "polygon_centroid"
	SourcePolygonOnly     MatchSource = "polygon_only"
	SourceError           MatchSource = "error"
)

// Geocoded-from markers set by the merger.
const (
	FromPolygonCentroid          = "polygon_centroid"
	FromPolygonCentroidCorrected = "polygon_centroid_corrected"
)

// Confidence tiers are fixed per source and never recomputed per record.
var tiers = map[MatchSource]float64{
	SourceUnmatched:       0.0,
	SourceNominatim:       0.75,
	SourceGSI:             0.55,
	SourceGridLines:       0.75,
	SourceOCCTO:           0.70,
	SourcePolygonCentroid: 0.90,
	SourcePolygonOnly:     1.0,
	SourceError:           0.0,
}

// Tier returns the default confidence of the source. Unknown sources score 0.
func (s MatchSource) Tier() float64 {
	return tiers[s]
}

// Valid reports whether s is one of the known sources.
func (s MatchSource) Valid() bool {
	_, ok := tiers[s]
	return ok
}

// Located reports whether a record carrying this source is expected to
// have coordinates.
func (s MatchSource) Located() bool {
	return s != SourceUnmatched && s != SourceError && s != ""
}

// CapacityRecord is one utility capacity entry for a facility or line segment.
type CapacityRecord struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	NameOriginal   string      `json:"name_original,omitempty"`
	NameNormalized string      `json:"name_normalized,omitempty"`
	Utility        string      `json:"utility"`
	Region         string      `json:"region,omitempty"`
	VoltageKV      *float64    `json:"voltage_kv"`
	AvailableKW    *float64    `json:"available_kw"`
	Lat            *float64    `json:"lat"`
	Lon            *float64    `json:"lon"`
	MatchedSource  MatchSource `json:"matched_source"`
	Confidence     float64     `json:"confidence"`
	Notes          string      `json:"notes"`
	UpdatedAt      string      `json:"updated_at,omitempty"`
	GeocodedFrom   string      `json:"geocoded_from,omitempty"`
	Foreign        bool        `json:"foreign,omitempty"`
	ForeignReason  string      `json:"foreign_reason,omitempty"`
}

// HasCoords reports whether both lat and lon are set.
func (r *CapacityRecord) HasCoords() bool {
	return r.Lat != nil && r.Lon != nil
}

// SetCoords assigns lat/lon.
func (r *CapacityRecord) SetCoords(lat, lon float64) {
	r.Lat = Float(lat)
	r.Lon = Float(lon)
}

// ClearCoords removes lat/lon.
func (r *CapacityRecord) ClearCoords() {
	r.Lat = nil
	r.Lon = nil
}

// Locate stamps a match onto the record using the source's tier.
func (r *CapacityRecord) Locate(lat, lon float64, src MatchSource, notes string) {
	r.SetCoords(lat, lon)
	r.MatchedSource = src
	r.Confidence = src.Tier()
	r.Notes = notes
}

// AppendNote adds a note, separated from existing text by "; ".
func (r *CapacityRecord) AppendNote(note string) {
	if note == "" {
		return
	}
	if r.Notes == "" {
		r.Notes = note
		return
	}
	r.Notes += "; " + note
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
