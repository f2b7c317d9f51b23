package fetcher

import (
	"archive/zip"
	"io"
	"path"
	"strings"

	"github.com/rotisserie/eris"
)

// maxEntryBytes caps a decompressed table. The largest TEPCO regional CSV is
// well under 1 MiB.
const maxEntryBytes = 64 << 20

// ReadZIPTable returns the name and contents of the single table in the
// archive at zipPath whose extension matches ext (case-insensitive).
// Directories and macOS resource forks are ignored. An empty ext matches
// every file.
func ReadZIPTable(zipPath, ext string) (string, []byte, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", nil, eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	var match *zip.File
	n := 0
	for _, f := range r.File {
		if f.FileInfo().IsDir() || strings.HasPrefix(f.Name, "__MACOSX/") {
			continue
		}
		if ext != "" && !strings.EqualFold(path.Ext(f.Name), ext) {
			continue
		}
		match = f
		n++
	}
	if n != 1 {
		return "", nil, eris.Errorf("zip: expected exactly 1 %s table, got %d", ext, n)
	}
	if match.UncompressedSize64 > maxEntryBytes {
		return "", nil, eris.Errorf("zip: %s is %d bytes, limit %d", match.Name, match.UncompressedSize64, maxEntryBytes)
	}

	rc, err := match.Open()
	if err != nil {
		return "", nil, eris.Wrapf(err, "zip: open %s", match.Name)
	}
	defer rc.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(rc, maxEntryBytes+1))
	if err != nil {
		return "", nil, eris.Wrapf(err, "zip: read %s", match.Name)
	}
	if len(data) > maxEntryBytes {
		return "", nil, eris.Errorf("zip: %s exceeds %d bytes", match.Name, maxEntryBytes)
	}
	return path.Base(match.Name), data, nil
}
