package fetcher

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ctxCheckRows is how often ReadCSV looks at ctx.
const ctxCheckRows = 512

// DecodeText returns data as UTF-8. A leading BOM is dropped; input that is
// not valid UTF-8 is decoded as Shift_JIS, which is what Japanese utility
// exports use.
func DecodeText(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data, nil
	}
	out, _, err := transform.Bytes(japanese.ShiftJIS.NewDecoder(), data)
	if err != nil {
		return nil, eris.Wrap(err, "csv: decode shift_jis")
	}
	return out, nil
}

// ReadCSV decodes data (UTF-8 or Shift_JIS) and returns every row with its
// cells trimmed. Rows may have different lengths, stray quotes inside
// fields are kept, and lines starting with '#' are skipped.
func ReadCSV(ctx context.Context, data []byte) ([][]string, error) {
	text, err := DecodeText(data)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(text))
	reader.Comment = '#'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	var rows [][]string
	for {
		if len(rows)%ctxCheckRows == 0 && ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "csv: context cancelled")
		}
		record, err := reader.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "csv: read row")
		}
		for i, field := range record {
			record[i] = strings.TrimSpace(field)
		}
		rows = append(rows, record)
	}
}
