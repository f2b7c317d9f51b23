package dataset

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/hazardmap/powergrid/internal/fuzzy"
	"github.com/hazardmap/powergrid/internal/geometry"
	"github.com/hazardmap/powergrid/internal/model"
	"github.com/hazardmap/powergrid/internal/normalize"
)

// Property names written for footprints. Everything else in a feature's
// properties passes through untouched.
const (
	propName             = "name"
	propOperator         = "operator"
	propID               = "id"
	propSource           = "source"
	propVoltageKV        = "voltage_kv"
	propVoltageKVEst     = "voltage_kv_est"
	propUtility          = "utility"
	propGenerated        = "generated"
	propGenerationMethod = "generation_method"
	propRadiusM          = "footprint_radius_m"
	propAreaEstM2        = "area_est_m2"
)

var modelledProps = []string{
	propName, propOperator, propID, propVoltageKV, propVoltageKVEst,
	propGenerated, propGenerationMethod, propRadiusM, propAreaEstM2,
}

type rawCollection struct {
	Type     string            `json:"type"`
	Features []json.RawMessage `json:"features"`
}

type rawFeature struct {
	ID         json.RawMessage `json:"id"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

// LoadFeatures reads a GeoJSON FeatureCollection. Feature ids may be strings
// or numbers. A feature whose geometry cannot be decoded is kept with a nil
// geometry and logged; malformed JSON fails the whole file.
func LoadFeatures(path string) ([]*geojson.Feature, error) {
	data, err := readFile(path, "features")
	if err != nil {
		return nil, err
	}
	var fc rawCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, malformed(err, "features", path)
	}
	if fc.Type != "FeatureCollection" {
		return nil, malformed(eris.Errorf("type %q is not FeatureCollection", fc.Type), "features", path)
	}

	out := make([]*geojson.Feature, 0, len(fc.Features))
	for i, raw := range fc.Features {
		var rf rawFeature
		if err := json.Unmarshal(raw, &rf); err != nil {
			return nil, malformed(eris.Wrapf(err, "feature %d", i), "features", path)
		}
		f := &geojson.Feature{ID: featureID(rf.ID), Properties: rf.Properties}
		if f.Properties == nil {
			f.Properties = map[string]any{}
		}
		if g := bytes.TrimSpace(rf.Geometry); len(g) > 0 && !bytes.Equal(g, []byte("null")) {
			if err := geojson.Unmarshal(g, &f.Geometry); err != nil {
				zap.L().Warn("dataset: undecodable geometry",
					zap.String("path", path),
					zap.Int("feature", i),
					zap.Error(err),
				)
				f.Geometry = nil
			}
		}
		out = append(out, f)
	}
	return out, nil
}

// LoadFeaturesOptional is LoadFeatures for inputs that may be absent.
func LoadFeaturesOptional(path string) ([]*geojson.Feature, error) {
	if !Exists(path) {
		return nil, nil
	}
	return LoadFeatures(path)
}

func featureID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// WriteFeatures writes features as a FeatureCollection.
func WriteFeatures(path string, features []*geojson.Feature) error {
	if features == nil {
		features = []*geojson.Feature{}
	}
	fc := &geojson.FeatureCollection{Features: features}
	data, err := json.Marshal(fc)
	if err != nil {
		return eris.Wrapf(err, "dataset: encode %s", path)
	}
	return WriteAtomic(path, append(data, '\n'))
}

// stringProp returns the first non-empty string property among keys.
func stringProp(props map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := props[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func floatProp(props map[string]any, key string) float64 {
	switch v := props[key].(type) {
	case float64:
		return v
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err == nil {
			return f
		}
	}
	return 0
}

func boolProp(props map[string]any, key string) bool {
	switch v := props[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

func featureName(props map[string]any) string {
	return stringProp(props, propName, "name:ja", "name:en")
}

func featureKey(f *geojson.Feature) string {
	if f.ID != "" {
		return f.ID
	}
	return stringProp(f.Properties, propID, "@id")
}

// passthrough copies props without the keys the model carries itself.
func passthrough(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v
	}
	for _, k := range modelledProps {
		delete(out, k)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// ToPoints converts point features into point facilities. Features that are
// not points are skipped and counted.
func ToPoints(features []*geojson.Feature) (points []model.Point, skipped int) {
	for _, f := range features {
		p, ok := f.Geometry.(*geom.Point)
		if !ok || p == nil || p.Empty() {
			skipped++
			continue
		}
		points = append(points, model.Point{
			ID:         featureKey(f),
			Name:       featureName(f.Properties),
			Operator:   stringProp(f.Properties, propOperator),
			VoltageKV:  model.EstimateVoltageKV(f.Properties),
			Lon:        p.X(),
			Lat:        p.Y(),
			Properties: passthrough(f.Properties),
		})
	}
	return points, skipped
}

// ToFootprints converts features into footprints. Geometry is not validated
// here; footprint.MergeByKey drops anything that is not polygonal.
func ToFootprints(features []*geojson.Feature) []model.Footprint {
	out := make([]model.Footprint, 0, len(features))
	for _, f := range features {
		props := f.Properties
		fp := model.Footprint{
			ID:               featureKey(f),
			Name:             featureName(props),
			Operator:         stringProp(props, propOperator, propUtility),
			VoltageKV:        model.EstimateVoltageKV(props),
			Source:           model.FootprintOSM,
			Geometry:         f.Geometry,
			Generated:        boolProp(props, propGenerated),
			GenerationMethod: stringProp(props, propGenerationMethod),
			RadiusM:          floatProp(props, propRadiusM),
			AreaEstM2:        floatProp(props, propAreaEstM2),
			Properties:       passthrough(props),
		}
		if fp.VoltageKV == nil {
			if v := floatProp(props, propVoltageKVEst); v > 0 {
				fp.VoltageKV = model.Float(v)
			}
		}
		switch src := model.FootprintSource(stringProp(props, propSource)); src {
		case model.FootprintFromPoint, model.FootprintSynthetic:
			fp.Source = src
		}
		out = append(out, fp)
	}
	return out
}

// FromFootprints converts footprints back into features, restoring the
// passthrough properties and writing the modelled ones.
func FromFootprints(fps []model.Footprint) []*geojson.Feature {
	out := make([]*geojson.Feature, 0, len(fps))
	for _, fp := range fps {
		props := make(map[string]any, len(fp.Properties)+8)
		for k, v := range fp.Properties {
			props[k] = v
		}
		props[propName] = fp.Name
		if _, tagged := props[propSource]; !tagged || fp.Source != model.FootprintOSM {
			props[propSource] = string(fp.Source)
		}
		if fp.ID != "" {
			props[propID] = fp.ID
		}

		var kv any
		if fp.VoltageKV != nil {
			kv = *fp.VoltageKV
		}
		switch fp.Source {
		case model.FootprintFromPoint:
			props[propOperator] = fp.Operator
			props[propVoltageKVEst] = kv
		case model.FootprintSynthetic:
			props[propUtility] = fp.Operator
			props[propVoltageKV] = kv
		default:
			if fp.Operator != "" {
				props[propOperator] = fp.Operator
			}
			if kv != nil {
				props[propVoltageKV] = kv
			}
		}
		if fp.Generated {
			props[propGenerated] = true
			props[propGenerationMethod] = fp.GenerationMethod
			props[propRadiusM] = fp.RadiusM
			props[propAreaEstM2] = math.Round(fp.AreaEstM2)
		}
		out = append(out, &geojson.Feature{ID: fp.ID, Geometry: fp.Geometry, Properties: props})
	}
	return out
}

// ToCandidates builds fuzzy-match candidates from named reference features.
// Names are light-normalized; each feature is represented by
// geometry.Representative. Features without a name or usable geometry are
// skipped.
func ToCandidates(features []*geojson.Feature) []fuzzy.Candidate {
	var out []fuzzy.Candidate
	for i, f := range features {
		label := featureName(f.Properties)
		name := normalize.Light(label)
		if name == "" || f.Geometry == nil {
			continue
		}
		c, ok := geometry.Representative(f.Geometry)
		if !ok {
			continue
		}
		out = append(out, fuzzy.Candidate{Name: name, Label: label, Lon: c.X(), Lat: c.Y(), Pos: i})
	}
	return out
}

// LoadIndex reads an optional reference dataset into a fuzzy index. A
// missing file yields an empty index; when path was set it is logged as a
// warning since the matching stage it feeds will never hit.
func LoadIndex(path string) (*fuzzy.Index, error) {
	if path != "" && !Exists(path) {
		zap.L().Warn("dataset: reference index not found, matching without it",
			zap.String("path", path))
	}
	features, err := LoadFeaturesOptional(path)
	if err != nil {
		return nil, err
	}
	idx := fuzzy.NewIndex(ToCandidates(features))
	zap.L().Debug("dataset: loaded reference index",
		zap.String("path", path),
		zap.Int("features", len(features)),
		zap.Int("candidates", idx.Len()),
	)
	return idx, nil
}
