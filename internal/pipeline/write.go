package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/hazardmap/powergrid/internal/config"
	"github.com/hazardmap/powergrid/internal/dataset"
	"github.com/hazardmap/powergrid/internal/model"
)

// Exporter archives a run's output. store.SQLiteStore implements it.
type Exporter interface {
	Export(ctx context.Context, runID string, records []model.CapacityRecord, footprints []model.Footprint) (string, error)
}

// Write stores out at the paths in cfg. Empty paths are skipped. When
// exporter is non-nil the run is also archived and its id returned.
func Write(ctx context.Context, out *Output, cfg config.OutputConfig, exporter Exporter) (string, error) {
	log := zap.L().With(zap.String("component", "pipeline"))

	if cfg.Capacity != "" {
		if err := dataset.WriteCapacity(cfg.Capacity, out.Records); err != nil {
			return "", err
		}
		log.Info("pipeline: wrote capacity", zap.String("path", cfg.Capacity), zap.Int("records", len(out.Records)))
	}
	if cfg.Footprints != "" {
		if err := dataset.WriteFeatures(cfg.Footprints, dataset.FromFootprints(out.Footprints)); err != nil {
			return "", err
		}
		log.Info("pipeline: wrote footprints", zap.String("path", cfg.Footprints), zap.Int("footprints", len(out.Footprints)))
	}

	if exporter == nil {
		return "", nil
	}
	runID, err := exporter.Export(ctx, "", out.Records, out.Footprints)
	if err != nil {
		return "", err
	}
	log.Info("pipeline: exported snapshot", zap.String("run_id", runID))
	return runID, nil
}
