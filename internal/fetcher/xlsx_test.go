package fetcher

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func createTestXLSX(t *testing.T, sheets map[string][][]string) []byte {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				row.AddCell().SetString(cellData)
			}
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestReadXLSX_PicksSheetWithHeader(t *testing.T) {
	data := createTestXLSX(t, map[string][][]string{
		"表紙": {{"東京電力パワーグリッド"}},
		"空き容量": {
			{"施設名", "電圧(kV)"},
			{" 新富士変電所 ", "154"},
		},
	})

	rows, err := ReadXLSX(data, "")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"新富士変電所", "154"}, rows[1])
}

func TestReadXLSX_NamedSheet(t *testing.T) {
	data := createTestXLSX(t, map[string][][]string{"kikan": {{"name"}}})

	rows, err := ReadXLSX(data, "kikan")
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = ReadXLSX(data, "missing")
	assert.Error(t, err)
}

func TestReadXLSX_FallsBackToFirstSheet(t *testing.T) {
	data := createTestXLSX(t, map[string][][]string{"notes": {{"no header here"}}})
	rows, err := ReadXLSX(data, "")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"no header here"}}, rows)

	_, err = ReadXLSX([]byte("not a workbook"), "")
	assert.Error(t, err)
}
