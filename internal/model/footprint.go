package model

import (
	"github.com/twpayne/go-geom"
)

// FootprintSource describes where a footprint geometry came from.
type FootprintSource string

// Footprint sources.
const (
	FootprintOSM       FootprintSource = "osm"
	FootprintFromPoint FootprintSource = "generated_from_points"
	FootprintSynthetic FootprintSource = "synthetic"
)

// Generation methods recorded on synthetic footprints.
const (
	MethodRadiusBuffer = "radius_buffer"
	MethodMedianArea   = "median_area"
)

// Footprint is a polygon or multipolygon approximating a facility site.
type Footprint struct {
	ID        string
	Name      string
	Operator  string
	VoltageKV *float64
	Source    FootprintSource

	// Geometry is a *geom.Polygon or *geom.MultiPolygon in lon/lat order.
	Geometry geom.T

	Generated        bool
	GenerationMethod string
	RadiusM          float64
	AreaEstM2        float64

	// Properties carries source tags not modelled above. They are written
	// back unchanged.
	Properties map[string]any
}

// Point is a raw point facility, typically an OSM node tagged power=substation.
type Point struct {
	ID         string
	Name       string
	Operator   string
	VoltageKV  *float64
	Lon, Lat   float64
	Properties map[string]any
}
