// Package dataset reads and writes the pipeline's file inputs and outputs:
// capacity JSON, GeoJSON feature collections, alias tables and boundaries.
//
// Readers fail with ErrDataIntegrity when a required input is missing or
// malformed. Writers replace their target atomically.
package dataset

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// ErrDataIntegrity marks an input that is missing, unreadable or malformed.
// It is fatal: the pipeline aborts before writing any output.
var ErrDataIntegrity = eris.New("dataset: data integrity")

// Exists reports whether path names a readable regular file.
func Exists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func readFile(path, what string) ([]byte, error) {
	if path == "" {
		return nil, eris.Wrapf(ErrDataIntegrity, "dataset: %s path is empty", what)
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrapf(ErrDataIntegrity, "dataset: %s %s not found", what, path)
	}
	if err != nil {
		return nil, eris.Wrapf(ErrDataIntegrity, "dataset: read %s %s: %v", what, path, err)
	}
	return data, nil
}

func malformed(err error, what, path string) error {
	return eris.Wrapf(ErrDataIntegrity, "dataset: parse %s %s: %v", what, path, err)
}

// WriteJSON encodes v with two-space indentation and replaces path.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "dataset: encode %s", path)
	}
	return WriteAtomic(path, append(data, '\n'))
}

// WriteAtomic writes data to a temporary file next to path and renames it
// into place, so readers never observe a partial file.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "dataset: create directory %s", dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return eris.Wrapf(err, "dataset: create temp file for %s", path)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return eris.Wrapf(err, "dataset: write %s", tmpName)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return eris.Wrapf(err, "dataset: sync %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "dataset: close %s", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return eris.Wrapf(err, "dataset: rename into %s", path)
	}
	return nil
}
