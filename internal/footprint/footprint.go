// Package footprint builds facility site polygons: buffered circles from
// point facilities, merged OSM polygons, and synthetic circles for located
// capacity records that have no polygon at all.
package footprint

import (
	"context"
	"fmt"
	"math"

	"github.com/golang/geo/s2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hazardmap/powergrid/internal/geometry"
	"github.com/hazardmap/powergrid/internal/model"
	"github.com/hazardmap/powergrid/internal/normalize"
)

// cellLevel groups unnamed points that sit within roughly ten meters.
const cellLevel = 20

// Options controls footprint generation.
type Options struct {
	// Boundary limits which points contribute. Nil accepts every point.
	Boundary *geometry.Boundary
	// Radii maps voltage class to buffer radius.
	Radii geometry.RadiusTable
	// Segments is the circle resolution. Values below the minimum are raised.
	Segments int
	// Concurrency bounds the number of groups unioned at once.
	Concurrency int
}

func (o Options) withDefaults() Options {
	if o.Radii == (geometry.RadiusTable{}) {
		o.Radii = geometry.DefaultRadii
	}
	if o.Segments <= 0 {
		o.Segments = geometry.DefaultSegments
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	return o
}

// Summary counts what a footprint pass did.
type Summary struct {
	Input           int
	Generated       int
	Merged          int
	UnionConflicts  int
	SkippedOutside  int
	SkippedNoCoord  int
	SkippedInvalid  int
	SkippedForeign  int
	MatchedExisting int
}

// Add accumulates o into s.
func (s *Summary) Add(o Summary) {
	s.Input += o.Input
	s.Generated += o.Generated
	s.Merged += o.Merged
	s.UnionConflicts += o.UnionConflicts
	s.SkippedOutside += o.SkippedOutside
	s.SkippedNoCoord += o.SkippedNoCoord
	s.SkippedInvalid += o.SkippedInvalid
	s.SkippedForeign += o.SkippedForeign
	s.MatchedExisting += o.MatchedExisting
}

// GroupKey returns the grouping key for a named facility, or an S2 cell
// token for an unnamed one.
func GroupKey(name string, lon, lat float64) string {
	if k := normalize.Key(name); k != "" {
		return k
	}
	cell := s2.CellIDFromLatLng(s2.LatLngFromDegrees(lat, lon)).Parent(cellLevel)
	return "cell:" + cell.ToToken()
}

type group struct {
	key   string
	items []int
}

// groupBy buckets indexes by key, preserving first-seen order of keys and
// input order within a bucket.
func groupBy(n int, key func(i int) (string, bool)) []group {
	pos := make(map[string]int)
	var groups []group
	for i := 0; i < n; i++ {
		k, ok := key(i)
		if !ok {
			continue
		}
		gi, seen := pos[k]
		if !seen {
			gi = len(groups)
			pos[k] = gi
			groups = append(groups, group{key: k})
		}
		groups[gi].items = append(groups[gi].items, i)
	}
	return groups
}

// forEachGroup runs fn on every group with bounded parallelism. Each call
// writes only its own slot, so output order never depends on scheduling.
func forEachGroup(ctx context.Context, groups []group, concurrency int, fn func(i int, g group)) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(concurrency)
	for i, g := range groups {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fn(i, g)
			return nil
		})
	}
	return eg.Wait()
}

// FromPoints buffers each point facility by its voltage radius and unions
// the circles of points sharing a grouping key into one footprint. Points
// outside the boundary are skipped. When a union fails the footprint keeps
// the geometry accumulated so far.
func FromPoints(ctx context.Context, points []model.Point, opts Options) ([]model.Footprint, Summary, error) {
	opts = opts.withDefaults()
	log := zap.L().With(zap.String("stage", "footprints"))
	sum := Summary{Input: len(points)}

	groups := groupBy(len(points), func(i int) (string, bool) {
		p := points[i]
		if math.IsNaN(p.Lon) || math.IsNaN(p.Lat) {
			sum.SkippedNoCoord++
			return "", false
		}
		if opts.Boundary != nil && !opts.Boundary.Contains(p.Lon, p.Lat) {
			sum.SkippedOutside++
			return "", false
		}
		return GroupKey(p.Name, p.Lon, p.Lat), true
	})

	out := make([]model.Footprint, len(groups))
	conflicts := make([]int, len(groups))
	err := forEachGroup(ctx, groups, opts.Concurrency, func(gi int, g group) {
		var fp model.Footprint
		for n, idx := range g.items {
			p := points[idx]
			circle := geometry.Circle(p.Lon, p.Lat, opts.Radii.For(p.VoltageKV), opts.Segments)
			if n == 0 {
				fp = model.Footprint{
					ID:        p.ID,
					Name:      p.Name,
					Operator:  p.Operator,
					VoltageKV: p.VoltageKV,
					Source:    model.FootprintFromPoint,
					Geometry:  circle,
				}
				continue
			}

			merged, err := geometry.Union(fp.Geometry, circle)
			if err != nil {
				conflicts[gi]++
				log.Warn("union failed, keeping existing polygon",
					zap.String("key", g.key),
					zap.String("point", p.ID),
					zap.Error(err),
				)
				continue
			}
			fp.Geometry = merged
			if p.Name != "" {
				fp.Name = p.Name
			}
			if p.Operator != "" {
				fp.Operator = p.Operator
			}
			if p.VoltageKV != nil {
				fp.VoltageKV = p.VoltageKV
			}
		}
		out[gi] = fp
	})
	if err != nil {
		return nil, sum, err
	}

	for _, c := range conflicts {
		sum.UnionConflicts += c
	}
	sum.Generated = len(out)
	log.Info("generated footprints from points",
		zap.Int("points", sum.Input),
		zap.Int("footprints", sum.Generated),
		zap.Int("skipped_outside", sum.SkippedOutside),
		zap.Int("union_conflicts", sum.UnionConflicts),
	)
	return out, sum, nil
}

// MergeByKey unions footprints that share a grouping key. The first
// footprint of a group supplies the properties. Footprints without usable
// polygon geometry are dropped; unnamed footprints are kept as they are.
func MergeByKey(ctx context.Context, fps []model.Footprint, concurrency int) ([]model.Footprint, Summary, error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	log := zap.L().With(zap.String("stage", "footprints"))
	sum := Summary{Input: len(fps)}

	groups := groupBy(len(fps), func(i int) (string, bool) {
		f := fps[i]
		if !geometry.Polygonal(f.Geometry) {
			sum.SkippedInvalid++
			log.Warn("dropping footprint with invalid geometry",
				zap.String("id", f.ID),
				zap.String("name", f.Name),
				zap.String("geometry", geometry.Describe(f.Geometry)),
			)
			return "", false
		}
		if k := normalize.Key(f.Name); k != "" {
			return k, true
		}
		return fmt.Sprintf("unnamed:%d", i), true
	})

	out := make([]model.Footprint, len(groups))
	conflicts := make([]int, len(groups))
	err := forEachGroup(ctx, groups, concurrency, func(gi int, g group) {
		fp := fps[g.items[0]]
		for _, idx := range g.items[1:] {
			merged, err := geometry.Union(fp.Geometry, fps[idx].Geometry)
			if err != nil {
				conflicts[gi]++
				log.Warn("union failed, keeping existing polygon",
					zap.String("key", g.key),
					zap.String("id", fps[idx].ID),
					zap.Error(err),
				)
				continue
			}
			fp.Geometry = merged
		}
		out[gi] = fp
	})
	if err != nil {
		return nil, sum, err
	}

	for _, c := range conflicts {
		sum.UnionConflicts += c
	}
	for _, g := range groups {
		sum.Merged += len(g.items) - 1
	}
	return out, sum, nil
}

// Observations collects voltage/area pairs from observed footprints.
// Synthetic footprints are excluded so tuning never feeds on itself.
func Observations(fps []model.Footprint) []geometry.Observation {
	var obs []geometry.Observation
	for _, f := range fps {
		if f.Generated || f.Source == model.FootprintSynthetic {
			continue
		}
		a := geometry.AreaM2(f.Geometry)
		if a <= 0 {
			continue
		}
		obs = append(obs, geometry.Observation{VoltageKV: f.VoltageKV, AreaM2: a})
	}
	return obs
}

// TuneRadii derives per-class radii from observed footprints, falling back
// to fallback for classes without observations.
func TuneRadii(fps []model.Footprint, fallback geometry.RadiusTable) geometry.RadiusTable {
	return geometry.TuneRadii(Observations(fps), fallback)
}

// SynthOptions controls SynthesizeMissing.
type SynthOptions struct {
	Radii    geometry.RadiusTable
	Method   string
	Segments int
}

// SynthesizeMissing creates a circular footprint for every located,
// domestic capacity record whose grouping key matches no existing
// footprint. Records sharing a key produce one footprint, first seen wins.
func SynthesizeMissing(records []model.CapacityRecord, existing []model.Footprint, opts SynthOptions) ([]model.Footprint, Summary) {
	if opts.Radii == (geometry.RadiusTable{}) {
		opts.Radii = geometry.DefaultRadii
	}
	if opts.Method == "" {
		opts.Method = model.MethodRadiusBuffer
	}
	if opts.Segments <= 0 {
		opts.Segments = geometry.DefaultSegments
	}

	have := make(map[string]bool, len(existing))
	for _, f := range existing {
		if k := normalize.Key(f.Name); k != "" {
			have[k] = true
		}
	}

	sum := Summary{Input: len(records)}
	var out []model.Footprint
	for _, r := range records {
		if !r.HasCoords() {
			sum.SkippedNoCoord++
			continue
		}
		if r.Foreign {
			sum.SkippedForeign++
			continue
		}
		name := r.Name
		if name == "" {
			name = r.NameNormalized
		}
		key := normalize.Key(name)
		if key != "" && have[key] {
			sum.MatchedExisting++
			continue
		}
		if key != "" {
			have[key] = true
		}

		radius := opts.Radii.For(r.VoltageKV)
		out = append(out, model.Footprint{
			ID:               r.ID,
			Name:             r.Name,
			Operator:         r.Utility,
			VoltageKV:        r.VoltageKV,
			Source:           model.FootprintSynthetic,
			Geometry:         geometry.Circle(*r.Lon, *r.Lat, radius, opts.Segments),
			Generated:        true,
			GenerationMethod: opts.Method,
			RadiusM:          radius,
			AreaEstM2:        geometry.CircleAreaM2(radius),
		})
	}
	sum.Generated = len(out)
	return out, sum
}

// Centroid returns the representative lon/lat of a footprint.
func Centroid(f model.Footprint) (lon, lat float64, err error) {
	c, err := geometry.Centroid(f.Geometry)
	if err != nil {
		return 0, 0, err
	}
	return c.X(), c.Y(), nil
}
