package store

import (
	"encoding/json"
	"errors"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hazardmap/powergrid/internal/cascade"
	"github.com/hazardmap/powergrid/internal/dataset"
)

// FileCache is the JSON coordinate cache file: an object mapping names to
// {lat, lon, source, confidence, display_name, last_verified}. Entries live
// in memory and are written back on Close.
type FileCache struct {
	*cascade.MemoryCache
	path string
}

// LoadFileCache reads the cache at path. A missing file yields an empty
// cache that will be created on Close.
func LoadFileCache(path string) (*FileCache, error) {
	if path == "" {
		return nil, eris.New("store: empty cache file path")
	}
	seed := map[string]cascade.CacheEntry{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		zap.L().Info("coordinate cache file not found, starting empty", zap.String("path", path))
	case err != nil:
		return nil, eris.Wrapf(err, "store: read cache %s", path)
	default:
		if err := json.Unmarshal(data, &seed); err != nil {
			return nil, eris.Wrapf(dataset.ErrDataIntegrity, "store: malformed cache %s: %v", path, err)
		}
	}
	return &FileCache{MemoryCache: cascade.NewMemoryCache(seed), path: path}, nil
}

// Save writes the cache atomically.
func (c *FileCache) Save() error {
	return dataset.WriteJSON(c.path, c.Snapshot())
}

// Close implements Cache by saving.
func (c *FileCache) Close() error {
	return c.Save()
}

func sortedKeys(m map[string]cascade.CacheEntry) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
