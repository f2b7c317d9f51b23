package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/hazardmap/powergrid/internal/cascade"
	"github.com/hazardmap/powergrid/internal/dataset"
	"github.com/hazardmap/powergrid/internal/fetcher"
	"github.com/hazardmap/powergrid/internal/monitoring"
	"github.com/hazardmap/powergrid/internal/resilience"
)

var (
	fetchRegions []string
	fetchFiles   []string
	fetchUtility string
	fetchOut     string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download utility capacity tables into a capacity JSON",
	Long: "Fetches the TEPCO regional capacity archives (all regions unless --region or fetch.tepco_regions " +
		"narrow them) and any local CSV/XLSX tables given with --file, and writes {metadata, entries}. " +
		"With --by-region the entries are ordered by region priority and capped per region.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if cmd.Flags().Changed("region") {
			cfg.Fetch.TEPCORegions = fetchRegions
		}
		applyRegionFlags(cmd)
		out := cfg.Input.Capacity
		if fetchOut != "" {
			out = fetchOut
		}
		cfg.Output.Capacity = out
		if err := cfg.Validate("fetch"); err != nil {
			return err
		}

		var sources []fetcher.Source
		if len(fetchFiles) == 0 || len(cfg.Fetch.TEPCORegions) > 0 {
			regions, err := fetcher.TEPCORegions(cfg.Fetch.TEPCORegions)
			if err != nil {
				return err
			}
			hf := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
				UserAgent:    cfg.Fetch.UserAgent,
				Timeout:      time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
				RateLimiters: fetcher.DefaultRateLimiters(),
			})
			sources = append(sources, fetcher.NewTEPCOSources(regions, hf, cfg.Fetch.TempDir, nil)...)
		}
		for _, path := range fetchFiles {
			sources = append(sources, &fetcher.LocalSource{Path: path, Utility: fetchUtility})
		}

		coll, err := fetcher.Collect(ctx, sources, fetcher.CollectOptions{
			Retry:  resilience.RetryFromConfig(cfg.Retry, nil),
			Pause:  time.Duration(cfg.Fetch.PauseMs) * time.Millisecond,
			Strict: cfg.Fetch.Strict,
		})
		if err != nil {
			return eris.Wrap(err, "fetch")
		}
		if cfg.Pipeline.ByRegion {
			coll.Entries = cascade.OrderByRegion(coll.Entries, cfg.Pipeline.RegionPriority,
				cfg.Pipeline.Regions, cfg.Pipeline.MaxPerRegion)
			coll.Metadata.TotalEntries = len(coll.Entries)
		}
		if err := dataset.WriteJSON(out, coll); err != nil {
			return eris.Wrap(err, "write capacity")
		}

		md := coll.Metadata
		alert(ctx, monitoring.RunSnapshot{TotalSources: md.TotalSources, FailedSources: md.FailedSources})

		printLine(cmd.OutOrStdout(), "fetch: sources=%d ok=%d failed=%d entries=%d -> %s",
			md.TotalSources, md.SuccessfulSources, md.FailedSources, md.TotalEntries, out)
		if md.SuccessfulSources == 0 && md.TotalSources > 0 {
			return eris.New("fetch: every source failed")
		}
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringSliceVar(&fetchRegions, "region", nil, "TEPCO region ids to fetch (default all)")
	fetchCmd.Flags().StringSliceVar(&fetchFiles, "file", nil, "local CSV or XLSX capacity table")
	fetchCmd.Flags().StringVar(&fetchUtility, "utility", "", "utility name for --file tables")
	fetchCmd.Flags().StringVar(&fetchOut, "out", "", "output capacity JSON (default input.capacity)")
	bindRegionFlags(fetchCmd)
	rootCmd.AddCommand(fetchCmd)
}
