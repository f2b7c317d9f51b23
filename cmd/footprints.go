package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/hazardmap/powergrid/internal/dataset"
	"github.com/hazardmap/powergrid/internal/footprint"
	"github.com/hazardmap/powergrid/internal/model"
	"github.com/hazardmap/powergrid/internal/pipeline"
)

var footprintsSynthesize bool

var footprintsCmd = &cobra.Command{
	Use:   "footprints",
	Short: "Build substation footprints from OSM polygons and points",
	Long: "Unions OSM polygons by name, buffers point substations by voltage class, drops foreign " +
		"footprints and, with --synthesize, adds circles for located capacity records that have none.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		applyInputFlags(cmd)
		applyOutputFlags(cmd)
		if err := cfg.Validate("footprints"); err != nil {
			return err
		}

		pointFeatures, err := dataset.LoadFeaturesOptional(cfg.Input.Points)
		if err != nil {
			return eris.Wrap(err, "load points")
		}
		polyFeatures, err := dataset.LoadFeaturesOptional(cfg.Input.Footprints)
		if err != nil {
			return eris.Wrap(err, "load footprints")
		}
		boundary, err := dataset.LoadBoundary(cfg.Input.Boundary)
		if err != nil {
			return eris.Wrap(err, "load boundary")
		}
		var capacity []model.CapacityRecord
		if footprintsSynthesize {
			if capacity, err = dataset.LoadCapacityOptional(cfg.Input.Capacity); err != nil {
				return eris.Wrap(err, "load capacity")
			}
		}

		points, _ := dataset.ToPoints(pointFeatures)
		in := &pipeline.Inputs{Points: points, Footprints: dataset.ToFootprints(polyFeatures), Boundary: boundary}
		opts := pipeline.OptionsFromConfig(cfg)

		fps, radii, sum, err := pipeline.BuildFootprints(ctx, in, opts)
		if err != nil {
			return eris.Wrap(err, "build footprints")
		}
		filter, err := pipeline.NewFilter(boundary, opts.CarveOuts)
		if err != nil {
			return err
		}
		domestic, foreign := filter.PartitionFootprints(fps)

		var synth footprint.Summary
		if footprintsSynthesize && len(capacity) > 0 {
			located := pipeline.NormalizeRecords(capacity, nil, opts.Concurrency)
			filter.TagRecords(located)
			method := model.MethodRadiusBuffer
			if opts.RadiusMode == pipeline.RadiusTuned {
				method = model.MethodMedianArea
			}
			var extra []model.Footprint
			extra, synth = footprint.SynthesizeMissing(located, domestic, footprint.SynthOptions{
				Radii:    radii,
				Method:   method,
				Segments: opts.Segments,
			})
			domestic = append(domestic, extra...)
		}

		if err := dataset.WriteFeatures(cfg.Output.Footprints, dataset.FromFootprints(domestic)); err != nil {
			return eris.Wrap(err, "write footprints")
		}

		printLine(cmd.OutOrStdout(),
			"footprints: input=%d generated=%d unioned=%d conflicts=%d foreign=%d synthesized=%d written=%d -> %s",
			sum.Input, sum.Generated, sum.Merged, sum.UnionConflicts, len(foreign), synth.Generated,
			len(domestic), cfg.Output.Footprints)
		return nil
	},
}

func init() {
	bindInputFlags(footprintsCmd, "points", "footprints", "boundary", "capacity")
	bindOutputFlags(footprintsCmd, "out-footprints")
	footprintsCmd.Flags().BoolVar(&footprintsSynthesize, "synthesize", false,
		"add circles for located capacity records without a footprint")
	rootCmd.AddCommand(footprintsCmd)
}
