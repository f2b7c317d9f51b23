package cascade

import (
	"sort"
	"strings"

	"github.com/hazardmap/powergrid/internal/model"
	"github.com/hazardmap/powergrid/internal/normalize"
)

// RegionWildcard in a priority list stands for every region the list does
// not name.
const RegionWildcard = "*"

// DefaultRegionPriority locates the substation-heavy TEPCO regions first and
// the trunk network, which is mostly 275kV+ lines that only the grid-line
// layer can place, last.
var DefaultRegionPriority = []string{
	"tokyo23", "kanagawa", "saitama", "chiba", "ibaraki", "gunma", "tochigi",
	"tama", "shizuoka", "yamanashi", "nagano", "fukushima", "niigata",
	RegionWildcard,
	"kikan",
}

// RegionStats describes a region's records before any cap.
type RegionStats struct {
	Total       int
	Substations int
	Lines       int
	Other       int
}

// RegionBatch is one region's share of a regional locate run.
type RegionBatch struct {
	Region string
	// Indexes point into the planned slice, in input order, after the cap.
	Indexes []int
	Stats   RegionStats
}

// PlanRegions groups records by Region and orders the groups by priority,
// DefaultRegionPriority when empty. Unnamed regions take the wildcard's
// slot, or go last without one, in first-seen order. A non-empty only keeps
// just those regions, and maxPerRegion > 0 keeps the first n records of
// each.
func PlanRegions(records []model.CapacityRecord, priority, only []string, maxPerRegion int) []RegionBatch {
	if len(priority) == 0 {
		priority = DefaultRegionPriority
	}
	rank := make(map[string]int, len(priority))
	wildcard := len(priority)
	for i, id := range priority {
		if id == RegionWildcard {
			wildcard = i
			continue
		}
		if _, dup := rank[id]; !dup {
			rank[id] = i
		}
	}
	keep := make(map[string]bool, len(only))
	for _, id := range only {
		keep[strings.TrimSpace(id)] = true
	}

	var batches []*RegionBatch
	byRegion := make(map[string]*RegionBatch)
	for i := range records {
		r := &records[i]
		if len(keep) > 0 && !keep[r.Region] {
			continue
		}
		b, ok := byRegion[r.Region]
		if !ok {
			b = &RegionBatch{Region: r.Region}
			byRegion[r.Region] = b
			batches = append(batches, b)
		}
		b.Stats.add(r.Name)
		if maxPerRegion <= 0 || len(b.Indexes) < maxPerRegion {
			b.Indexes = append(b.Indexes, i)
		}
	}

	rankOf := func(region string) int {
		if n, ok := rank[region]; ok {
			return n
		}
		return wildcard
	}
	sort.SliceStable(batches, func(i, j int) bool {
		return rankOf(batches[i].Region) < rankOf(batches[j].Region)
	})

	out := make([]RegionBatch, len(batches))
	for i, b := range batches {
		out[i] = *b
	}
	return out
}

// OrderByRegion returns the records PlanRegions keeps, region by region.
func OrderByRegion(records []model.CapacityRecord, priority, only []string, maxPerRegion int) []model.CapacityRecord {
	var out []model.CapacityRecord
	for _, b := range PlanRegions(records, priority, only, maxPerRegion) {
		for _, i := range b.Indexes {
			out = append(out, records[i])
		}
	}
	return out
}

func (s *RegionStats) add(name string) {
	s.Total++
	switch {
	case strings.Contains(name, normalize.Suffix) || strings.Contains(name, "変圧器"):
		s.Substations++
	case normalize.IsLine(name):
		s.Lines++
	default:
		s.Other++
	}
}
