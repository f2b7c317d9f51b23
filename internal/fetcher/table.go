package fetcher

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/width"

	"github.com/hazardmap/powergrid/internal/model"
	"github.com/hazardmap/powergrid/internal/normalize"
)

// headerScanRows bounds how far down a sheet the header row may sit. Utility
// exports often open with a title block.
const headerScanRows = 10

type column int

const (
	colName column = iota
	colVoltage
	colAvailable
	colDate
	numColumns
)

// columnNames lists accepted header spellings per column, compared after
// width folding, lower-casing and dropping any bracketed unit.
var columnNames = [numColumns][]string{
	colName:      {"name", "施設名", "変電所名", "設備名"},
	colVoltage:   {"voltage_kv", "電圧", "電圧階級"},
	colAvailable: {"available_kw", "空き容量", "空容量"},
	colDate:      {"date", "更新日", "updated_at"},
}

// TableSpec describes how rows of one source become records.
type TableSpec struct {
	Utility  string
	Region   string
	IDPrefix string
	// Today is the updated_at value for rows without a date.
	Today string
}

func headerKey(cell string) string {
	s := strings.ToLower(width.Fold.String(strings.TrimSpace(cell)))
	if i := strings.IndexAny(s, "([【"); i > 0 {
		s = s[:i]
	}
	return strings.Join(strings.Fields(s), "")
}

// findHeader locates the header row and maps columns to cell indexes.
func findHeader(rows [][]string) (int, [numColumns]int, error) {
	var idx [numColumns]int
	for r := 0; r < len(rows) && r < headerScanRows; r++ {
		for c := range idx {
			idx[c] = -1
		}
		for i, cell := range rows[r] {
			k := headerKey(cell)
			for col, names := range columnNames {
				if idx[col] >= 0 {
					continue
				}
				for _, n := range names {
					if k == n {
						idx[col] = i
					}
				}
			}
		}
		if idx[colName] >= 0 {
			return r, idx, nil
		}
	}
	return 0, idx, eris.New("fetcher: no header row with a name column")
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// parseQuantity reads a number such as "1,500" or "66kV". Dashes and empty
// cells mean unknown.
func parseQuantity(s string) *float64 {
	s = strings.ToLower(width.Fold.String(s))
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSuffix(s, "kw")
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return model.Float(v)
}

// ParseTable converts a sheet into unmatched capacity records. Rows before
// the header and blank rows are skipped; ids number the data rows from 1.
func ParseTable(rows [][]string, spec TableSpec) ([]model.CapacityRecord, error) {
	start, idx, err := findHeader(rows)
	if err != nil {
		return nil, err
	}

	var out []model.CapacityRecord
	n := 0
	for _, row := range rows[start+1:] {
		if blank(row) {
			continue
		}
		n++
		original := cell(row, idx[colName])
		light := normalize.Light(original)
		updated := cell(row, idx[colDate])
		if updated == "" {
			updated = spec.Today
		}
		out = append(out, model.CapacityRecord{
			ID:             fmt.Sprintf("%s_%d", spec.IDPrefix, n),
			Name:           light,
			NameOriginal:   original,
			NameNormalized: light,
			Utility:        spec.Utility,
			Region:         spec.Region,
			VoltageKV:      model.ParseVoltageKV(strings.ReplaceAll(width.Fold.String(cell(row, idx[colVoltage])), ",", "")),
			AvailableKW:    parseQuantity(cell(row, idx[colAvailable])),
			UpdatedAt:      updated,
			MatchedSource:  model.SourceUnmatched,
		})
	}
	return out, nil
}

// Validate checks the fields every capacity record must carry.
func Validate(r model.CapacityRecord) error {
	switch {
	case r.ID == "":
		return eris.New("missing id")
	case r.Name == "":
		return eris.Errorf("%s: missing name", r.ID)
	case r.VoltageKV != nil && *r.VoltageKV < 0:
		return eris.Errorf("%s: negative voltage", r.ID)
	}
	return nil
}
