package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazardmap/powergrid/internal/cascade"
	"github.com/hazardmap/powergrid/internal/dataset"
	"github.com/hazardmap/powergrid/internal/model"
)

func TestFileCache_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "coordinate_cache.json")
	ctx := context.Background()

	c, err := LoadFileCache(path)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())

	require.NoError(t, c.Put(ctx, "新宿変電所", cascade.CacheEntry{
		Lat: 35.69, Lon: 139.70, Source: model.SourceNominatim, Confidence: 0.75, LastVerified: "2025-04-01",
	}))
	require.NoError(t, c.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"新宿変電所": {`)
	assert.Contains(t, string(data), `"last_verified": "2025-04-01"`)

	again, err := LoadFileCache(path)
	require.NoError(t, err)
	e, err := again.Get(ctx, "新宿変電所")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, model.SourceNominatim, e.Source)
}

func TestFileCache_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := LoadFileCache(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, dataset.ErrDataIntegrity)
}

func TestOpen_Drivers(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	c, err := Open(ctx, DriverSQLite, filepath.Join(dir, "cache.db"))
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, "k", cascade.CacheEntry{Lat: 1, Lon: 2, Source: model.SourceGSI}))
	require.NoError(t, c.Close())

	c, err = Open(ctx, DriverFile, filepath.Join(dir, "cache.json"))
	require.NoError(t, err)
	require.NoError(t, c.Close())
	assert.FileExists(t, filepath.Join(dir, "cache.json"))

	c, err = Open(ctx, DriverNone, "")
	require.NoError(t, err)
	e, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, e)
	require.NoError(t, c.Close())

	_, err = Open(ctx, "redis", "")
	assert.Error(t, err)
}
