// Package pipeline runs the batch: normalize capacity names, locate them,
// build footprints, geofence, merge and write the outputs.
package pipeline

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hazardmap/powergrid/internal/cascade"
	"github.com/hazardmap/powergrid/internal/config"
	"github.com/hazardmap/powergrid/internal/dataset"
	"github.com/hazardmap/powergrid/internal/footprint"
	"github.com/hazardmap/powergrid/internal/geofence"
	"github.com/hazardmap/powergrid/internal/geometry"
	"github.com/hazardmap/powergrid/internal/merge"
	"github.com/hazardmap/powergrid/internal/model"
	"github.com/hazardmap/powergrid/internal/monitoring"
	"github.com/hazardmap/powergrid/internal/normalize"
)

// Stage names used in logs and the stage duration metric.
const (
	StageNormalize  = "normalize"
	StageLocate     = "locate"
	StageFootprints = "footprints"
	StageGeofence   = "geofence"
	StageMerge      = "merge"
	StageSynthesize = "synthesize"
)

// Radius modes.
const (
	RadiusFixed = "fixed"
	RadiusTuned = "tuned"
)

// Inputs is everything a run reads. Only Capacity is required.
type Inputs struct {
	Capacity   []model.CapacityRecord
	Previous   []model.CapacityRecord
	Points     []model.Point
	Footprints []model.Footprint
	Aliases    *normalize.AliasTable
	Boundary   *geometry.Boundary
}

// Load reads the inputs named in cfg. Any missing required file or
// malformed optional file fails with dataset.ErrDataIntegrity before a
// single output is touched.
func Load(cfg config.InputConfig) (*Inputs, error) {
	capacity, err := dataset.LoadCapacity(cfg.Capacity)
	if err != nil {
		return nil, err
	}
	previous, err := dataset.LoadCapacityOptional(cfg.Previous)
	if err != nil {
		return nil, err
	}
	in := &Inputs{Capacity: capacity, Previous: previous}

	pointFeatures, err := dataset.LoadFeaturesOptional(cfg.Points)
	if err != nil {
		return nil, err
	}
	var skipped int
	in.Points, skipped = dataset.ToPoints(pointFeatures)

	footprintFeatures, err := dataset.LoadFeaturesOptional(cfg.Footprints)
	if err != nil {
		return nil, err
	}
	in.Footprints = dataset.ToFootprints(footprintFeatures)

	if in.Aliases, err = dataset.LoadAliases(cfg.Aliases); err != nil {
		return nil, err
	}
	if in.Boundary, err = dataset.LoadBoundary(cfg.Boundary); err != nil {
		return nil, err
	}

	zap.L().Info("pipeline: inputs loaded",
		zap.Int("capacity", len(in.Capacity)),
		zap.Int("previous", len(in.Previous)),
		zap.Int("points", len(in.Points)),
		zap.Int("points_skipped", skipped),
		zap.Int("footprints", len(in.Footprints)),
		zap.Int("aliases", in.Aliases.Len()),
		zap.Bool("boundary", in.Boundary != nil),
	)
	return in, nil
}

// Options controls a run.
type Options struct {
	// Locator resolves capacity names. Nil skips the locate stage and keeps
	// whatever coordinates the records already carry.
	Locator *cascade.Cascade
	// MaxRecords limits locating to the first n records. The output then
	// holds only that prefix.
	MaxRecords int
	// Region settings are passed to cascade.LocateOptions.
	ByRegion       bool
	RegionPriority []string
	Regions        []string
	MaxPerRegion   int
	RegionPause    time.Duration
	Concurrency    int
	RadiusMode  string
	Segments    int
	Synthesize  bool
	CarveOuts   string
	Threshold   float64
	// CentroidConfidence is the confidence given to centroid fills and
	// corrections.
	CentroidConfidence float64
	Metrics            *monitoring.Metrics
	Clock              clockwork.Clock
}

// OptionsFromConfig maps configuration onto run options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MaxRecords:         cfg.Pipeline.MaxRecords,
		ByRegion:           cfg.Pipeline.ByRegion,
		RegionPriority:     cfg.Pipeline.RegionPriority,
		Regions:            cfg.Pipeline.Regions,
		MaxPerRegion:       cfg.Pipeline.MaxPerRegion,
		RegionPause:        time.Duration(cfg.Pipeline.RegionPauseMs) * time.Millisecond,
		Concurrency:        cfg.Pipeline.Concurrency,
		RadiusMode:         cfg.Geometry.RadiusMode,
		Segments:           cfg.Geometry.Segments,
		Synthesize:         cfg.Geometry.Synthesize,
		CarveOuts:          cfg.Geofence.CarveOuts,
		Threshold:          cfg.Merge.MismatchThresholdDeg,
		CentroidConfidence: cfg.Merge.PolygonCentroidConfidence,
	}
}

// LocateOptions are the cascade settings of o.
func (o Options) LocateOptions() cascade.LocateOptions {
	return cascade.LocateOptions{
		MaxRecords:     o.MaxRecords,
		ByRegion:       o.ByRegion,
		RegionPriority: o.RegionPriority,
		Regions:        o.Regions,
		MaxPerRegion:   o.MaxPerRegion,
		RegionPause:    o.RegionPause,
	}
}

// Report counts what each stage did.
type Report struct {
	Records           int
	Footprints        int
	Locate            cascade.Summary
	Footprint         footprint.Summary
	Synthesis         footprint.Summary
	Geofence          geofence.Counts
	ForeignFootprints int
	Merge             merge.Summary
	Radii             geometry.RadiusTable
	Durations         map[string]time.Duration
}

// Output is the result of a run.
type Output struct {
	Records    []model.CapacityRecord
	Footprints []model.Footprint
	Report     Report
}

// NewFilter builds the geofence for a run. An unknown carve-out set is an
// error.
func NewFilter(boundary *geometry.Boundary, carveOuts string) (*geofence.Filter, error) {
	f := geofence.New(boundary)
	regions, ok := geofence.CarveOuts(carveOuts)
	if !ok {
		return nil, eris.Errorf("pipeline: unknown carve-out set %q", carveOuts)
	}
	f.CarveOuts = regions
	return f, nil
}

// Run executes every stage in memory. in is not modified.
func Run(ctx context.Context, in *Inputs, opts Options) (*Output, error) {
	if in == nil {
		return nil, eris.New("pipeline: nil inputs")
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	filter, err := NewFilter(in.Boundary, opts.CarveOuts)
	if err != nil {
		return nil, err
	}

	log := zap.L().With(zap.String("component", "pipeline"))
	rep := Report{Durations: make(map[string]time.Duration)}
	track := func(stage string, fn func() error) error {
		start := opts.Clock.Now()
		err := fn()
		d := opts.Clock.Since(start)
		rep.Durations[stage] = d
		opts.Metrics.ObserveStage(stage, d)
		if err != nil {
			log.Error("pipeline: stage failed", zap.String("stage", stage), zap.Error(err))
			return err
		}
		log.Info("pipeline: stage complete", zap.String("stage", stage), zap.Duration("duration", d))
		return nil
	}

	// Normalize
	var records []model.CapacityRecord
	_ = track(StageNormalize, func() error {
		records = NormalizeRecords(in.Capacity, in.Aliases, opts.Concurrency)
		return nil
	})

	// Locate
	if opts.Locator != nil {
		err := track(StageLocate, func() error {
			located, sum, err := opts.Locator.LocateAll(ctx, records, opts.LocateOptions())
			rep.Locate = sum
			records = located
			return err
		})
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: locate")
		}
	}

	// Footprints
	var fps []model.Footprint
	err = track(StageFootprints, func() error {
		var err error
		fps, rep.Radii, rep.Footprint, err = BuildFootprints(ctx, in, opts)
		return err
	})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: footprints")
	}

	// Geofence
	var domestic []model.Footprint
	_ = track(StageGeofence, func() error {
		var foreign []model.Footprint
		domestic, foreign = filter.PartitionFootprints(fps)
		rep.ForeignFootprints = len(foreign)
		filter.TagRecords(records)
		return nil
	})

	// Merge
	var merged merge.Output
	_ = track(StageMerge, func() error {
		m := merge.Merger{
			Geofence:           filter,
			Threshold:          opts.Threshold,
			CentroidConfidence: opts.CentroidConfidence,
			Clock:              opts.Clock,
		}
		merged = m.Merge(merge.Inputs{Capacity: records, Previous: in.Previous, Footprints: domestic})
		rep.Merge = merged.Summary
		// Coordinates may have moved, so the tags are recomputed.
		rep.Geofence = filter.TagRecords(merged.Records)
		return nil
	})

	out := &Output{Records: merged.Records, Footprints: domestic}

	if opts.Synthesize {
		_ = track(StageSynthesize, func() error {
			method := model.MethodRadiusBuffer
			if opts.RadiusMode == RadiusTuned {
				method = model.MethodMedianArea
			}
			synth, sum := footprint.SynthesizeMissing(out.Records, domestic, footprint.SynthOptions{
				Radii:    rep.Radii,
				Method:   method,
				Segments: opts.Segments,
			})
			rep.Synthesis = sum
			out.Footprints = append(out.Footprints, synth...)
			return nil
		})
	}

	rep.Records = len(out.Records)
	rep.Footprints = len(out.Footprints)
	out.Report = rep
	observe(opts.Metrics, out)

	log.Info("pipeline: run complete",
		zap.Int("records", rep.Records),
		zap.Int("footprints", rep.Footprints),
		zap.Int("foreign_records", rep.Geofence.Foreign),
		zap.Int("foreign_footprints", rep.ForeignFootprints),
	)
	return out, nil
}

// BuildFootprints unions the observed footprints by key, derives the radius
// table, and buffers point facilities whose key has no observed footprint.
func BuildFootprints(ctx context.Context, in *Inputs, opts Options) ([]model.Footprint, geometry.RadiusTable, footprint.Summary, error) {
	var sum footprint.Summary

	observed, s, err := footprint.MergeByKey(ctx, in.Footprints, opts.Concurrency)
	if err != nil {
		return nil, geometry.RadiusTable{}, sum, err
	}
	sum.Add(s)

	radii := geometry.DefaultRadii
	if opts.RadiusMode == RadiusTuned {
		radii = footprint.TuneRadii(observed, geometry.DefaultRadii)
	}

	generated, s, err := footprint.FromPoints(ctx, in.Points, footprint.Options{
		Boundary:    in.Boundary,
		Radii:       radii,
		Segments:    opts.Segments,
		Concurrency: opts.Concurrency,
	})
	if err != nil {
		return nil, radii, sum, err
	}
	sum.Add(s)

	have := make(map[string]bool, len(observed))
	for _, f := range observed {
		if k := normalize.Key(f.Name); k != "" {
			have[k] = true
		}
	}
	out := observed
	for _, f := range generated {
		if k := normalize.Key(f.Name); k != "" && have[k] {
			sum.MatchedExisting++
			continue
		}
		out = append(out, f)
	}
	return out, radii, sum, nil
}

func observe(m *monitoring.Metrics, out *Output) {
	if m == nil {
		return
	}
	m.ObserveRecords(out.Records)
	s := out.Report.Merge
	m.AddMergeEvents("duplicate", s.Duplicates)
	m.AddMergeEvents("carried", s.Carried)
	m.AddMergeEvents("filled", s.Filled)
	m.AddMergeEvents("corrected", s.Corrected)
	m.AddMergeEvents("added", s.Added)
	m.AddMergeEvents("rejected", s.Rejected)
	m.AddForeign(out.Report.Geofence.Reasons)
}
