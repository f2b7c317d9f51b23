package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hazardmap/powergrid/internal/geometry"
	"github.com/hazardmap/powergrid/internal/model"
)

// Line returns a one-line summary of the run.
func (r *Report) Line() string {
	return fmt.Sprintf("records=%d footprints=%d located=%d unmatched=%d errors=%d filled=%d corrected=%d added=%d foreign=%d synthesized=%d",
		r.Records, r.Footprints, r.Locate.Matched, r.Locate.Unmatched, r.Locate.Errors,
		r.Merge.Filled, r.Merge.Corrected, r.Merge.Added, r.Geofence.Foreign, r.Synthesis.Generated)
}

// FormatReport renders a human-readable run report.
func FormatReport(r *Report) string {
	var b strings.Builder

	b.WriteString("# Run Report\n\n")
	b.WriteString("## Summary\n")
	fmt.Fprintf(&b, "- Records: %d\n", r.Records)
	fmt.Fprintf(&b, "- Footprints: %d\n", r.Footprints)
	fmt.Fprintf(&b, "- Foreign records: %d\n", r.Geofence.Foreign)
	fmt.Fprintf(&b, "- Foreign footprints dropped: %d\n\n", r.ForeignFootprints)

	if r.Locate.Processed > 0 {
		b.WriteString("## Locate\n")
		fmt.Fprintf(&b, "- Processed: %d\n", r.Locate.Processed)
		fmt.Fprintf(&b, "- Matched: %d (cached %d)\n", r.Locate.Matched, r.Locate.Cached)
		fmt.Fprintf(&b, "- Unmatched: %d\n", r.Locate.Unmatched)
		fmt.Fprintf(&b, "- Errors: %d\n", r.Locate.Errors)
		sources := make([]string, 0, len(r.Locate.BySource))
		for s := range r.Locate.BySource {
			sources = append(sources, string(s))
		}
		sort.Strings(sources)
		for _, s := range sources {
			fmt.Fprintf(&b, "  - %s: %d\n", s, r.Locate.BySource[model.MatchSource(s)])
		}
		b.WriteString("\n")
	}

	if len(r.Locate.Regions) > 0 {
		b.WriteString("## Regions\n")
		for _, rs := range r.Locate.Regions {
			fmt.Fprintf(&b, "- %s: total=%d substations=%d lines=%d other=%d processed=%d matched=%d\n",
				regionLabel(rs.Region), rs.Total, rs.Substations, rs.Lines, rs.Other, rs.Processed, rs.Matched)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Footprints\n")
	fmt.Fprintf(&b, "- Input: %d\n", r.Footprint.Input)
	fmt.Fprintf(&b, "- Generated from points: %d\n", r.Footprint.Generated)
	fmt.Fprintf(&b, "- Unioned: %d\n", r.Footprint.Merged)
	fmt.Fprintf(&b, "- Union conflicts: %d\n", r.Footprint.UnionConflicts)
	fmt.Fprintf(&b, "- Synthesized: %d\n", r.Synthesis.Generated)
	b.WriteString("- Radii:")
	for i := 0; i < geometry.NumClasses; i++ {
		fmt.Fprintf(&b, " %s=%.0fm", geometry.ClassLabel(i), r.Radii[i])
	}
	b.WriteString("\n\n")

	b.WriteString("## Merge\n")
	fmt.Fprintf(&b, "- Duplicates dropped: %d\n", r.Merge.Duplicates)
	fmt.Fprintf(&b, "- Carried from previous: %d\n", r.Merge.Carried)
	fmt.Fprintf(&b, "- Filled: %d\n", r.Merge.Filled)
	fmt.Fprintf(&b, "- Corrected: %d\n", r.Merge.Corrected)
	fmt.Fprintf(&b, "- Placeholders added: %d\n", r.Merge.Added)
	fmt.Fprintf(&b, "- Foreign proposals rejected: %d\n", r.Merge.Rejected)

	if len(r.Geofence.Reasons) > 0 {
		b.WriteString("\n## Geofence\n")
		reasons := make([]string, 0, len(r.Geofence.Reasons))
		for k := range r.Geofence.Reasons {
			reasons = append(reasons, k)
		}
		sort.Strings(reasons)
		for _, k := range reasons {
			fmt.Fprintf(&b, "- %s: %d\n", k, r.Geofence.Reasons[k])
		}
	}

	if len(r.Durations) > 0 {
		b.WriteString("\n## Stages\n")
		for _, s := range []string{StageNormalize, StageLocate, StageFootprints, StageGeofence, StageMerge, StageSynthesize} {
			if d, ok := r.Durations[s]; ok {
				fmt.Fprintf(&b, "- %s: %dms\n", s, d.Milliseconds())
			}
		}
	}

	return b.String()
}

func regionLabel(id string) string {
	if id == "" {
		return "(none)"
	}
	return id
}
