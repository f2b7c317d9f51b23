package main

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hazardmap/powergrid/internal/cascade"
	"github.com/hazardmap/powergrid/internal/monitoring"
	"github.com/hazardmap/powergrid/internal/pipeline"
	"github.com/hazardmap/powergrid/internal/store"
)

// pathFlag overrides *target with the named flag when the user set it.
func pathFlag(cmd *cobra.Command, name string, target *string) {
	if !cmd.Flags().Changed(name) {
		return
	}
	v, err := cmd.Flags().GetString(name)
	if err == nil {
		*target = v
	}
}

// bindInputFlags registers the input path flags shared by several commands.
func bindInputFlags(cmd *cobra.Command, names ...string) {
	usage := map[string]string{
		"capacity":   "capacity JSON (array or {entries: [...]})",
		"previous":   "previously geocoded capacity JSON",
		"points":     "GeoJSON of point substations",
		"footprints": "GeoJSON of substation polygons",
		"aliases":    "alias table (JSON or YAML)",
		"boundary":   "national boundary (GeoJSON or .shp)",
		"grid-lines": "GeoJSON of transmission lines for fuzzy matching",
		"occto":      "GeoJSON of OCCTO facilities for fuzzy matching",
	}
	for _, n := range names {
		cmd.Flags().String(n, "", usage[n])
	}
}

// applyInputFlags copies set input flags onto cfg.Input.
func applyInputFlags(cmd *cobra.Command) {
	for name, target := range map[string]*string{
		"capacity":   &cfg.Input.Capacity,
		"previous":   &cfg.Input.Previous,
		"points":     &cfg.Input.Points,
		"footprints": &cfg.Input.Footprints,
		"aliases":    &cfg.Input.Aliases,
		"boundary":   &cfg.Input.Boundary,
		"grid-lines": &cfg.Input.GridLines,
		"occto":      &cfg.Input.OCCTO,
	} {
		if cmd.Flags().Lookup(name) != nil {
			pathFlag(cmd, name, target)
		}
	}
}

// bindOutputFlags registers output path flags.
func bindOutputFlags(cmd *cobra.Command, names ...string) {
	usage := map[string]string{
		"out":            "output capacity JSON",
		"out-footprints": "output footprint GeoJSON",
		"out-points":     "output national point GeoJSON",
		"sqlite":         "SQLite snapshot database",
		"metrics-file":   "Prometheus textfile to write run metrics to",
	}
	for _, n := range names {
		cmd.Flags().String(n, "", usage[n])
	}
}

// applyOutputFlags copies set output flags onto cfg.Output.
func applyOutputFlags(cmd *cobra.Command) {
	for name, target := range map[string]*string{
		"out":            &cfg.Output.Capacity,
		"out-footprints": &cfg.Output.Footprints,
		"out-points":     &cfg.Output.Points,
		"sqlite":         &cfg.Output.SQLite,
		"metrics-file":   &cfg.Output.MetricsFile,
	} {
		if cmd.Flags().Lookup(name) != nil {
			pathFlag(cmd, name, target)
		}
	}
}

// bindRegionFlags registers the regional ordering flags.
func bindRegionFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("by-region", false, "process records region by region, trunk network (kikan) last")
	cmd.Flags().StringSlice("regions", nil, "only these region ids; implies --by-region")
	cmd.Flags().Int("max-per-region", 0, "at most this many records per region; implies --by-region")
}

// applyRegionFlags copies set region flags onto cfg.Pipeline.
func applyRegionFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	if f.Changed("by-region") {
		cfg.Pipeline.ByRegion, _ = f.GetBool("by-region")
	}
	if f.Changed("regions") {
		cfg.Pipeline.Regions, _ = f.GetStringSlice("regions")
		cfg.Pipeline.ByRegion = true
	}
	if f.Changed("max-per-region") {
		cfg.Pipeline.MaxPerRegion, _ = f.GetInt("max-per-region")
		cfg.Pipeline.ByRegion = true
	}
}

// printRegions writes one line per region of a regional locate run.
func printRegions(w io.Writer, regions []cascade.RegionSummary) {
	for _, rs := range regions {
		name := rs.Region
		if name == "" {
			name = "(none)"
		}
		printLine(w, "  region %s: total=%d substations=%d lines=%d other=%d processed=%d matched=%d",
			name, rs.Total, rs.Substations, rs.Lines, rs.Other, rs.Processed, rs.Matched)
	}
}

// openCache opens the configured coordinate cache.
func openCache(ctx context.Context) (store.Cache, error) {
	return store.Open(ctx, cfg.Cache.Driver, cfg.Cache.DSN)
}

// newLocator builds the cascade over the configured cache.
func newLocator(cache cascade.Cache, in *pipeline.Inputs, metrics *monitoring.Metrics) (*cascade.Cascade, error) {
	return pipeline.NewLocator(cfg, pipeline.LocatorDeps{
		Cache:   cache,
		Aliases: in.Aliases,
		Metrics: metrics,
	})
}

// runMetrics is a fresh registry with the pipeline collectors.
type runMetrics struct {
	reg     *prometheus.Registry
	metrics *monitoring.Metrics
}

func newRunMetrics() *runMetrics {
	reg := prometheus.NewRegistry()
	return &runMetrics{reg: reg, metrics: monitoring.NewMetrics(reg)}
}

// flush writes the textfile when one is configured. Failure only logs.
func (m *runMetrics) flush() {
	if err := monitoring.WriteTextfile(cfg.Output.MetricsFile, m.reg); err != nil {
		zap.L().Warn("write metrics textfile", zap.Error(err))
	}
}

// alert evaluates the run against the monitoring thresholds, logs any
// alerts and posts them to the webhook.
func alert(ctx context.Context, snap monitoring.RunSnapshot) {
	a := monitoring.NewAlerter(cfg.Monitoring)
	a.SendAlerts(ctx, snap, a.Evaluate(snap))
}

// openSnapshotStore opens the SQLite snapshot archive when output.sqlite
// is set. A nil store means no archive.
func openSnapshotStore(ctx context.Context) (*store.SQLiteStore, error) {
	if cfg.Output.SQLite == "" {
		return nil, nil
	}
	st, err := store.NewSQLite(cfg.Output.SQLite)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func printLine(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format+"\n", args...)
}
