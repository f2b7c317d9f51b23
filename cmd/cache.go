package main

import (
	"sort"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hazardmap/powergrid/internal/dataset"
	"github.com/hazardmap/powergrid/internal/store"
)

var cacheImportFrom string

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the coordinate cache",
}

var cacheImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Load a JSON coordinate cache file into the configured cache backend",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if !dataset.Exists(cacheImportFrom) {
			return eris.Wrapf(dataset.ErrDataIntegrity, "cache import: %s not found", cacheImportFrom)
		}
		src, err := store.LoadFileCache(cacheImportFrom)
		if err != nil {
			return err
		}
		entries := src.Snapshot()

		if cfg.Cache.Driver == store.DriverPostgres {
			pg, err := store.NewPostgresCache(ctx, cfg.Cache.DSN, nil)
			if err != nil {
				return err
			}
			defer pg.Close() //nolint:errcheck
			if err := pg.Migrate(ctx); err != nil {
				return err
			}
			n, err := pg.Import(ctx, entries)
			if err != nil {
				return eris.Wrap(err, "cache import")
			}
			printLine(cmd.OutOrStdout(), "cache import: %d entries -> postgres", n)
			return nil
		}

		dst, err := openCache(ctx)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := dst.Close(); cerr != nil {
				zap.L().Warn("close coordinate cache", zap.Error(cerr))
			}
		}()
		keys := make([]string, 0, len(entries))
		for k := range entries {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := dst.Put(ctx, k, entries[k]); err != nil {
				return eris.Wrapf(err, "cache import %s", k)
			}
		}
		printLine(cmd.OutOrStdout(), "cache import: %d entries -> %s", len(keys), cfg.Cache.Driver)
		return nil
	},
}

func init() {
	cacheImportCmd.Flags().StringVar(&cacheImportFrom, "from", "", "JSON cache file to import (required)")
	_ = cacheImportCmd.MarkFlagRequired("from")
	cacheCmd.AddCommand(cacheImportCmd)
	rootCmd.AddCommand(cacheCmd)
}
