package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hazardmap/powergrid/internal/monitoring"
	"github.com/hazardmap/powergrid/internal/pipeline"
)

var (
	runReport    bool
	runNoLocate  bool
	runMaxRecord int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Locate, build footprints, geofence and merge in one pass",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		applyInputFlags(cmd)
		applyOutputFlags(cmd)
		if cmd.Flags().Changed("max-records") {
			cfg.Pipeline.MaxRecords = runMaxRecord
		}
		applyRegionFlags(cmd)
		if err := cfg.Validate("run"); err != nil {
			return err
		}

		in, err := pipeline.Load(cfg.Input)
		if err != nil {
			return eris.Wrap(err, "load inputs")
		}

		rm := newRunMetrics()
		opts := pipeline.OptionsFromConfig(cfg)
		opts.Metrics = rm.metrics

		if !runNoLocate {
			cache, err := openCache(ctx)
			if err != nil {
				return eris.Wrap(err, "open coordinate cache")
			}
			defer func() {
				if cerr := cache.Close(); cerr != nil {
					zap.L().Warn("close coordinate cache", zap.Error(cerr))
				}
			}()
			if opts.Locator, err = newLocator(cache, in, rm.metrics); err != nil {
				return eris.Wrap(err, "build locator")
			}
		}

		out, err := pipeline.Run(ctx, in, opts)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
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
		runID, err := pipeline.Write(ctx, out, cfg.Output, exp)
		if err != nil {
			return eris.Wrap(err, "write outputs")
		}
		rm.flush()

		alert(ctx, monitoring.RunSnapshot{
			Records:   out.Report.Locate.Processed,
			Unmatched: out.Report.Locate.Unmatched,
			Errors:    out.Report.Locate.Errors,
		})

		w := cmd.OutOrStdout()
		if runReport {
			printLine(w, "%s", pipeline.FormatReport(&out.Report))
		}
		if runID != "" {
			printLine(w, "run %s: %s", runID, out.Report.Line())
		} else {
			printLine(w, "run: %s", out.Report.Line())
		}
		return nil
	},
}

func init() {
	bindInputFlags(runCmd, "capacity", "previous", "points", "footprints", "aliases", "boundary", "grid-lines", "occto")
	bindOutputFlags(runCmd, "out", "out-footprints", "sqlite", "metrics-file")
	runCmd.Flags().BoolVar(&runReport, "report", false, "print the full run report")
	runCmd.Flags().BoolVar(&runNoLocate, "no-locate", false, "skip the locate stage and keep existing coordinates")
	runCmd.Flags().IntVar(&runMaxRecord, "max-records", 0, "locate at most this many records (0 = all)")
	bindRegionFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}
