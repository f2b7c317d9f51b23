package geometry

import (
	"math"
	"sort"
)

// NumClasses is the number of voltage bins.
const NumClasses = 6

// Tuned radius bounds, in meters.
const (
	MinTunedRadiusM = 30.0
	MaxTunedRadiusM = 350.0
)

// classFloors are the lower kV bounds of bins 0..4. Bin 5 catches the rest,
// including unknown voltage.
var classFloors = [NumClasses - 1]float64{500, 275, 154, 66, 22}

var classLabels = [NumClasses]string{">=500kV", ">=275kV", ">=154kV", ">=66kV", ">=22kV", "<22kV"}

// RadiusTable holds one synthesis radius in meters per voltage bin.
type RadiusTable [NumClasses]float64

// DefaultRadii are the fixed per-bin radii.
var DefaultRadii = RadiusTable{200, 140, 100, 70, 50, 40}

// VoltageClass returns the bin index for kv. Unknown voltage falls in the
// lowest bin.
func VoltageClass(kv *float64) int {
	if kv == nil {
		return NumClasses - 1
	}
	for i, floor := range classFloors {
		if *kv >= floor {
			return i
		}
	}
	return NumClasses - 1
}

// ClassLabel returns a human-readable name for bin i.
func ClassLabel(i int) string {
	if i < 0 || i >= NumClasses {
		return "unknown"
	}
	return classLabels[i]
}

// For returns the radius for a facility of the given voltage.
func (t RadiusTable) For(kv *float64) float64 {
	return t[VoltageClass(kv)]
}

// Observation is one existing footprint's voltage and area.
type Observation struct {
	VoltageKV *float64
	AreaM2    float64
}

// TuneRadii derives per-bin radii from observed footprint areas. Each bin
// takes the median observed area, converts it to the radius of a circle of
// the same area and clamps it to [MinTunedRadiusM, MaxTunedRadiusM]. Bins
// without observations keep the fallback radius.
func TuneRadii(obs []Observation, fallback RadiusTable) RadiusTable {
	var bins [NumClasses][]float64
	for _, o := range obs {
		if o.AreaM2 <= 0 || math.IsNaN(o.AreaM2) || math.IsInf(o.AreaM2, 0) {
			continue
		}
		c := VoltageClass(o.VoltageKV)
		bins[c] = append(bins[c], o.AreaM2)
	}

	out := fallback
	for i, areas := range bins {
		if len(areas) == 0 {
			continue
		}
		out[i] = RadiusForArea(median(areas))
	}
	return out
}

// RadiusForArea returns sqrt(area/π) clamped to the tuned bounds.
func RadiusForArea(area float64) float64 {
	r := math.Sqrt(area / math.Pi)
	return math.Min(math.Max(r, MinTunedRadiusM), MaxTunedRadiusM)
}

func median(vals []float64) float64 {
	s := append([]float64(nil), vals...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
