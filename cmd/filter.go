package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/hazardmap/powergrid/internal/dataset"
	"github.com/hazardmap/powergrid/internal/model"
	"github.com/hazardmap/powergrid/internal/pipeline"
)

var filterDrop bool

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Tag or drop capacity records and footprints outside Japan",
	RunE: func(cmd *cobra.Command, _ []string) error {
		applyInputFlags(cmd)
		applyOutputFlags(cmd)
		if err := cfg.Validate("filter"); err != nil {
			return err
		}

		boundary, err := dataset.LoadBoundary(cfg.Input.Boundary)
		if err != nil {
			return eris.Wrap(err, "load boundary")
		}
		filter, err := pipeline.NewFilter(boundary, cfg.Geofence.CarveOuts)
		if err != nil {
			return err
		}

		var (
			records  []model.CapacityRecord
			features []*geojson.Feature
		)
		hasCapacity := dataset.Exists(cfg.Input.Capacity)
		hasFootprints := dataset.Exists(cfg.Input.Footprints)
		if hasCapacity {
			if records, err = dataset.LoadCapacity(cfg.Input.Capacity); err != nil {
				return eris.Wrap(err, "load capacity")
			}
		}
		if hasFootprints {
			if features, err = dataset.LoadFeatures(cfg.Input.Footprints); err != nil {
				return eris.Wrap(err, "load footprints")
			}
		}

		var parts []string
		if hasCapacity {
			counts := filter.TagRecords(records)
			if filterDrop {
				kept := records[:0]
				for _, r := range records {
					if !r.Foreign {
						kept = append(kept, r)
					}
				}
				records = kept
			}
			if err := dataset.WriteCapacity(cfg.Output.Capacity, records); err != nil {
				return eris.Wrap(err, "write capacity")
			}
			parts = append(parts, fmt.Sprintf("records domestic=%d foreign=%d%s",
				counts.Domestic, counts.Foreign, reasonSuffix(counts.Reasons)))
		}

		if hasFootprints {
			domestic, foreign := filter.PartitionFootprints(dataset.ToFootprints(features))
			keep := domestic
			if !filterDrop {
				keep = append(keep, tagFootprints(foreign)...)
			}
			if err := dataset.WriteFeatures(cfg.Output.Footprints, dataset.FromFootprints(keep)); err != nil {
				return eris.Wrap(err, "write footprints")
			}
			parts = append(parts, fmt.Sprintf("footprints domestic=%d foreign=%d", len(domestic), len(foreign)))
		}

		if len(parts) == 0 {
			return eris.New("filter: neither capacity nor footprint input exists")
		}
		printLine(cmd.OutOrStdout(), "filter: %s", strings.Join(parts, "; "))
		return nil
	},
}

// tagFootprints marks foreign footprints in their passthrough properties.
func tagFootprints(fps []model.Footprint) []model.Footprint {
	out := make([]model.Footprint, len(fps))
	for i, f := range fps {
		props := make(map[string]any, len(f.Properties)+1)
		for k, v := range f.Properties {
			props[k] = v
		}
		props["foreign"] = true
		f.Properties = props
		out[i] = f
	}
	return out
}

func reasonSuffix(reasons map[string]int) string {
	if len(reasons) == 0 {
		return ""
	}
	keys := make([]string, 0, len(reasons))
	for k := range reasons {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(" (")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%d", k, reasons[k])
	}
	b.WriteString(")")
	return b.String()
}

func init() {
	bindInputFlags(filterCmd, "capacity", "footprints", "boundary")
	bindOutputFlags(filterCmd, "out", "out-footprints")
	filterCmd.Flags().BoolVar(&filterDrop, "drop", false, "remove foreign entries instead of tagging them")
	rootCmd.AddCommand(filterCmd)
}
