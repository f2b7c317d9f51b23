package fetcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"

	"github.com/hazardmap/powergrid/internal/model"
)

// LocalSource reads a capacity table from a CSV or XLSX file on disk.
type LocalSource struct {
	Path    string
	Utility string
	Region  string
	// Sheet selects an XLSX sheet. Empty picks the first one with a
	// capacity header.
	Sheet string
	Clock clockwork.Clock
}

// Name implements Source.
func (s *LocalSource) Name() string {
	return "local_" + strings.TrimSuffix(filepath.Base(s.Path), filepath.Ext(s.Path))
}

// Label implements Source.
func (s *LocalSource) Label() string { return s.Path }

// FetchRaw implements Source.
func (s *LocalSource) FetchRaw(_ context.Context) (RawData, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return RawData{}, eris.Wrapf(err, "fetcher: read %s", s.Path)
	}
	format := FormatCSV
	if strings.EqualFold(filepath.Ext(s.Path), ".xlsx") {
		format = FormatXLSX
	}
	return RawData{Format: format, Data: data, Origin: s.Path, Sheet: s.Sheet}, nil
}

// Parse implements Source.
func (s *LocalSource) Parse(ctx context.Context, raw RawData) ([]model.CapacityRecord, error) {
	utility := s.Utility
	if utility == "" {
		utility = TEPCOUtility
	}
	prefix := strings.ToLower(utility)
	if s.Region != "" {
		prefix += "_" + s.Region
	}
	return ParseRaw(ctx, raw, TableSpec{
		Utility:  utility,
		Region:   s.Region,
		IDPrefix: prefix,
		Today:    today(s.Clock),
	})
}
