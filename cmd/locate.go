package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hazardmap/powergrid/internal/cascade"
	"github.com/hazardmap/powergrid/internal/dataset"
	"github.com/hazardmap/powergrid/internal/model"
	"github.com/hazardmap/powergrid/internal/monitoring"
	"github.com/hazardmap/powergrid/internal/pipeline"
)

var locateMaxRecords int

var locateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Resolve capacity record names to coordinates",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		applyInputFlags(cmd)
		applyOutputFlags(cmd)
		if cmd.Flags().Changed("max-records") {
			cfg.Pipeline.MaxRecords = locateMaxRecords
		}
		applyRegionFlags(cmd)
		if err := cfg.Validate("locate"); err != nil {
			return err
		}

		records, err := dataset.LoadCapacity(cfg.Input.Capacity)
		if err != nil {
			return eris.Wrap(err, "load capacity")
		}
		aliases, err := dataset.LoadAliases(cfg.Input.Aliases)
		if err != nil {
			return eris.Wrap(err, "load aliases")
		}

		cache, err := openCache(ctx)
		if err != nil {
			return eris.Wrap(err, "open coordinate cache")
		}
		defer func() {
			if cerr := cache.Close(); cerr != nil {
				zap.L().Warn("close coordinate cache", zap.Error(cerr))
			}
		}()

		rm := newRunMetrics()
		loc, err := newLocator(cache, &pipeline.Inputs{Aliases: aliases}, rm.metrics)
		if err != nil {
			return eris.Wrap(err, "build locator")
		}

		log := zap.L().With(zap.String("stage", "locate"))
		lo := pipeline.OptionsFromConfig(cfg).LocateOptions()
		lo.OnRecord = func(i int, r *model.CapacityRecord, _ cascade.Result) {
			log.Debug("located",
				zap.Int("index", i),
				zap.String("id", r.ID),
				zap.String("name", r.Name),
				zap.String("region", r.Region),
				zap.String("source", string(r.MatchedSource)),
			)
		}
		located, sum, err := loc.LocateAll(ctx, records, lo)
		if err != nil {
			return eris.Wrap(err, "locate")
		}

		if err := dataset.WriteCapacity(cfg.Output.Capacity, located); err != nil {
			return eris.Wrap(err, "write capacity")
		}
		rm.metrics.ObserveRecords(located)
		rm.flush()

		alert(ctx, monitoring.RunSnapshot{Records: sum.Processed, Unmatched: sum.Unmatched, Errors: sum.Errors})

		printLine(cmd.OutOrStdout(), "locate: processed=%d matched=%d cached=%d unmatched=%d errors=%d -> %s",
			sum.Processed, sum.Matched, sum.Cached, sum.Unmatched, sum.Errors, cfg.Output.Capacity)
		printRegions(cmd.OutOrStdout(), sum.Regions)
		return nil
	},
}

func init() {
	bindInputFlags(locateCmd, "capacity", "aliases", "grid-lines", "occto")
	bindOutputFlags(locateCmd, "out", "metrics-file")
	locateCmd.Flags().IntVar(&locateMaxRecords, "max-records", 0, "locate at most this many records (0 = all)")
	bindRegionFlags(locateCmd)
	rootCmd.AddCommand(locateCmd)
}
