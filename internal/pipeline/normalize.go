package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/hazardmap/powergrid/internal/model"
	"github.com/hazardmap/powergrid/internal/normalize"
)

// normalizeChunk is the number of records one worker handles at a time.
const normalizeChunk = 256

// NormalizeRecords returns a copy of records with NameOriginal preserved
// and Name rewritten to its aliased light form. Workers own disjoint
// slices of the output, so the result is identical for any concurrency.
func NormalizeRecords(records []model.CapacityRecord, aliases *normalize.AliasTable, concurrency int) []model.CapacityRecord {
	if concurrency < 1 {
		concurrency = 1
	}
	out := make([]model.CapacityRecord, len(records))
	copy(out, records)

	eg, _ := errgroup.WithContext(context.Background())
	eg.SetLimit(concurrency)
	for start := 0; start < len(out); start += normalizeChunk {
		end := min(start+normalizeChunk, len(out))
		eg.Go(func() error {
			for i := start; i < end; i++ {
				normalizeRecord(&out[i], aliases)
			}
			return nil
		})
	}
	_ = eg.Wait()
	return out
}

func normalizeRecord(r *model.CapacityRecord, aliases *normalize.AliasTable) {
	if r.NameOriginal == "" {
		r.NameOriginal = r.Name
	}
	canonical := aliases.Canonical(r.NameOriginal)
	r.NameNormalized = canonical
	if canonical != "" {
		r.Name = canonical
	}
}
