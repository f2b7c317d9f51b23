package model

import (
	"strconv"
	"strings"
)

// voltageKeys are the property names consulted, in order, when estimating
// a facility's voltage.
var voltageKeys = []string{"voltage_kv", "voltage", "voltage:primary"}

// ParseVoltageKV parses an OSM-style voltage tag such as "275000;66000" or
// "154kV" and returns the highest value in kV. Values above 1000 are taken
// to be volts. Returns nil when nothing numeric is found.
func ParseVoltageKV(raw string) *float64 {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ';' || r == ',' || r == '/' || r == ' ' || r == '\t'
	})

	var best *float64
	for _, f := range fields {
		f = strings.TrimSpace(strings.ToLower(f))
		f = strings.TrimSuffix(f, "kv")
		f = strings.TrimSuffix(f, "v")
		v, err := strconv.ParseFloat(f, 64)
		if err != nil || v <= 0 {
			continue
		}
		if v > 1000 {
			v /= 1000
		}
		if best == nil || v > *best {
			best = Float(v)
		}
	}
	return best
}

// EstimateVoltageKV reads the voltage from feature properties. A numeric
// voltage_kv wins, then the voltage tags.
func EstimateVoltageKV(props map[string]any) *float64 {
	for _, k := range voltageKeys {
		raw, ok := props[k]
		if !ok || raw == nil {
			continue
		}
		switch v := raw.(type) {
		case float64:
			if k == "voltage_kv" {
				return Float(v)
			}
			if v > 1000 {
				return Float(v / 1000)
			}
			return Float(v)
		case int:
			return EstimateVoltageKV(map[string]any{k: float64(v)})
		case string:
			if kv := ParseVoltageKV(v); kv != nil {
				return kv
			}
		}
	}
	return nil
}
