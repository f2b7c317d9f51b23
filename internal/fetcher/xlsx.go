package fetcher

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ReadXLSX returns the trimmed rows of one sheet of an XLSX workbook. With
// an empty sheet name it picks the first sheet, in workbook order, that has
// a recognizable capacity header, falling back to the first sheet.
func ReadXLSX(data []byte, sheet string) ([][]string, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open workbook")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("xlsx: workbook has no sheets")
	}

	if sheet != "" {
		s, ok := f.Sheet[sheet]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", sheet)
		}
		return sheetRows(s), nil
	}

	for _, s := range f.Sheets {
		rows := sheetRows(s)
		if _, _, err := findHeader(rows); err == nil {
			return rows, nil
		}
	}
	return sheetRows(f.Sheets[0]), nil
}

func sheetRows(s *xlsx.Sheet) [][]string {
	rows := make([][]string, 0, len(s.Rows))
	for _, row := range s.Rows {
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, len(row.Cells))
		for j, c := range row.Cells {
			cells[j] = strings.TrimSpace(c.String())
		}
		rows = append(rows, cells)
	}
	return rows
}
