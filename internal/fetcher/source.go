package fetcher

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hazardmap/powergrid/internal/model"
	"github.com/hazardmap/powergrid/internal/resilience"
)

// Format is the encoding of a raw capacity table.
type Format string

// Raw table formats.
const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// RawData is an undecoded capacity table.
type RawData struct {
	Format Format
	Data   []byte
	Origin string
	// Sheet names the XLSX sheet to read; empty picks one by header.
	Sheet string
}

// Source is one capacity data provider. FetchRaw does the I/O and may be
// retried; Parse is pure.
type Source interface {
	Name() string
	Label() string
	FetchRaw(ctx context.Context) (RawData, error)
	Parse(ctx context.Context, raw RawData) ([]model.CapacityRecord, error)
}

// ParseRaw decodes a raw table of either format into rows and records.
func ParseRaw(ctx context.Context, raw RawData, spec TableSpec) ([]model.CapacityRecord, error) {
	var (
		rows [][]string
		err  error
	)
	switch raw.Format {
	case FormatXLSX:
		rows, err = ReadXLSX(raw.Data, raw.Sheet)
	case FormatCSV, "":
		rows, err = ReadCSV(ctx, raw.Data)
	default:
		return nil, eris.Errorf("fetcher: unsupported format %q", raw.Format)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: read %s", raw.Origin)
	}
	records, err := ParseTable(rows, spec)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse %s", raw.Origin)
	}
	return records, nil
}

// CollectOptions controls Collect.
type CollectOptions struct {
	Retry resilience.RetryConfig
	// Pause separates consecutive sources.
	Pause time.Duration
	// Strict fails the collection on any invalid record instead of dropping it.
	Strict bool
	Clock  clockwork.Clock
}

// SourceReport is the outcome of one source.
type SourceReport struct {
	Source     string `json:"source"`
	Label      string `json:"label"`
	EntryCount int    `json:"entry_count"`
	Invalid    int    `json:"invalid"`
	FetchedAt  string `json:"fetched_at"`
	Error      string `json:"error,omitempty"`
}

// Metadata summarises a collection run.
type Metadata struct {
	FetchedAt         string         `json:"fetched_at"`
	TotalSources      int            `json:"total_sources"`
	SuccessfulSources int            `json:"successful_sources"`
	FailedSources     int            `json:"failed_sources"`
	TotalEntries      int            `json:"total_entries"`
	Sources           []SourceReport `json:"sources"`
}

// Collection is the combined output of Collect.
type Collection struct {
	Metadata Metadata               `json:"metadata"`
	Entries  []model.CapacityRecord `json:"entries"`
}

// Collect fetches sources one after another. Each source is retried as a
// unit; a source that still fails is reported and skipped. Only context
// cancellation and strict validation failures abort the run.
func Collect(ctx context.Context, sources []Source, opts CollectOptions) (*Collection, error) {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	log := zap.L().With(zap.String("stage", "fetch"))

	out := &Collection{Entries: []model.CapacityRecord{}}
	for i, src := range sources {
		if i > 0 && opts.Pause > 0 {
			select {
			case <-ctx.Done():
				return out, eris.Wrap(ctx.Err(), "fetcher: collect cancelled")
			case <-clock.After(opts.Pause):
			}
		}

		rep := SourceReport{Source: src.Name(), Label: src.Label()}
		records, err := fetchOne(ctx, src, opts.Retry)
		rep.FetchedAt = clock.Now().UTC().Format(time.RFC3339)
		if err != nil {
			if ctx.Err() != nil {
				return out, eris.Wrap(ctx.Err(), "fetcher: collect cancelled")
			}
			rep.Error = err.Error()
			out.Metadata.FailedSources++
			out.Metadata.Sources = append(out.Metadata.Sources, rep)
			log.Error("source failed", zap.String("source", src.Name()), zap.Error(err))
			continue
		}

		for _, r := range records {
			if verr := Validate(r); verr != nil {
				if opts.Strict {
					return out, eris.Wrapf(verr, "fetcher: %s", src.Name())
				}
				rep.Invalid++
				log.Warn("dropping invalid record", zap.String("source", src.Name()), zap.Error(verr))
				continue
			}
			out.Entries = append(out.Entries, r)
			rep.EntryCount++
		}
		out.Metadata.SuccessfulSources++
		out.Metadata.Sources = append(out.Metadata.Sources, rep)
		log.Info("source fetched",
			zap.String("source", src.Name()),
			zap.Int("entries", rep.EntryCount),
			zap.Int("invalid", rep.Invalid),
		)
	}

	out.Metadata.FetchedAt = clock.Now().UTC().Format(time.RFC3339)
	out.Metadata.TotalSources = len(sources)
	out.Metadata.TotalEntries = len(out.Entries)
	return out, nil
}

func fetchOne(ctx context.Context, src Source, retry resilience.RetryConfig) ([]model.CapacityRecord, error) {
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger(src.Name(), "fetch")
	}
	raw, err := resilience.DoVal(ctx, retry, src.FetchRaw)
	if err != nil {
		return nil, err
	}
	return src.Parse(ctx, raw)
}
