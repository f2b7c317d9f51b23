package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/hazardmap/powergrid/internal/dataset"
	"github.com/hazardmap/powergrid/internal/model"
	"github.com/hazardmap/powergrid/internal/pipeline"
)

var pointsCmd = &cobra.Command{
	Use:   "points",
	Short: "Build a national point layer from substation polygons and capacity",
	Long: "Places one point at the centroid of every substation polygon, joins the first capacity record " +
		"with the same normalized name, and tags points that fall outside Japan.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		applyInputFlags(cmd)
		applyOutputFlags(cmd)
		if err := cfg.Validate("points"); err != nil {
			return err
		}

		footprints, err := dataset.LoadFeatures(cfg.Input.Footprints)
		if err != nil {
			return eris.Wrap(err, "load footprints")
		}
		var records []model.CapacityRecord
		if dataset.Exists(cfg.Input.Capacity) {
			if records, err = dataset.LoadCapacity(cfg.Input.Capacity); err != nil {
				return eris.Wrap(err, "load capacity")
			}
		}
		boundary, err := dataset.LoadBoundary(cfg.Input.Boundary)
		if err != nil {
			return eris.Wrap(err, "load boundary")
		}
		filter, err := pipeline.NewFilter(boundary, cfg.Geofence.CarveOuts)
		if err != nil {
			return err
		}

		pts, sum := dataset.NationalPoints(footprints, records, filter.IsDomestic)
		if err := dataset.WriteFeatures(cfg.Output.Points, pts); err != nil {
			return eris.Wrap(err, "write points")
		}
		printLine(cmd.OutOrStdout(), "points: polygons=%d points=%d matched=%d foreign=%d skipped=%d -> %s",
			sum.Polygons, sum.Points, sum.Matched, sum.Foreign, sum.Skipped, cfg.Output.Points)
		return nil
	},
}

func init() {
	bindInputFlags(pointsCmd, "capacity", "footprints", "boundary")
	bindOutputFlags(pointsCmd, "out-points")
	rootCmd.AddCommand(pointsCmd)
}
