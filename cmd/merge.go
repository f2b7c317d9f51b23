package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/hazardmap/powergrid/internal/pipeline"
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge footprint centroids and a previous snapshot into located capacity records",
	Long: "Runs every stage except locate: records keep the coordinates they already carry, missing ones " +
		"are filled from footprint centroids or the previous snapshot, and diverging ones are corrected.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		applyInputFlags(cmd)
		applyOutputFlags(cmd)
		if err := cfg.Validate("merge"); err != nil {
			return err
		}

		in, err := pipeline.Load(cfg.Input)
		if err != nil {
			return eris.Wrap(err, "load inputs")
		}
		rm := newRunMetrics()
		opts := pipeline.OptionsFromConfig(cfg)
		opts.Metrics = rm.metrics

		out, err := pipeline.Run(ctx, in, opts)
		if err != nil {
			return eris.Wrap(err, "merge")
		}

		st, err := openSnapshotStore(ctx)
		if err != nil {
			return eris.Wrap(err, "open snapshot store")
		}
		var exp pipeline.Exporter
		if st != nil {
			defer st.Close() //nolint:errcheck
			exp = st
		}
		if _, err := pipeline.Write(ctx, out, cfg.Output, exp); err != nil {
			return eris.Wrap(err, "write outputs")
		}
		rm.flush()

		m := out.Report.Merge
		printLine(cmd.OutOrStdout(),
			"merge: records=%d filled=%d corrected=%d carried=%d added=%d duplicates=%d rejected=%d -> %s",
			out.Report.Records, m.Filled, m.Corrected, m.Carried, m.Added, m.Duplicates, m.Rejected, cfg.Output.Capacity)
		return nil
	},
}

func init() {
	bindInputFlags(mergeCmd, "capacity", "previous", "points", "footprints", "aliases", "boundary")
	bindOutputFlags(mergeCmd, "out", "out-footprints", "sqlite", "metrics-file")
	rootCmd.AddCommand(mergeCmd)
}
