package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazardmap/powergrid/internal/dataset"
	"github.com/hazardmap/powergrid/internal/geometry"
	"github.com/hazardmap/powergrid/internal/model"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"locate", "footprints", "merge", "filter", "fetch", "points", "run", "cache"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "powergrid", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.Contains(t, rootCmd.Long, "POWERGRID_")
	for _, f := range []string{"config", "log-level", "log-format"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(f), "--%s", f)
	}
}

// resetRootFlags clears persistent flags a test set, since rootCmd is shared.
func resetRootFlags(t *testing.T) {
	t.Cleanup(func() {
		configPath, logLevel, logFormat = "", "", ""
		for _, f := range []string{"config", "log-level", "log-format"} {
			rootCmd.PersistentFlags().Lookup(f).Changed = false
		}
	})
}

func TestRootCommand_ConfigFlag(t *testing.T) {
	dir, _, fpPath := workspace(t)
	resetRootFlags(t)
	out := filepath.Join(dir, "from-config.geojson")
	conf := filepath.Join(dir, "alt.yaml")
	require.NoError(t, os.WriteFile(conf, []byte("output:\n  points: "+out+"\n"), 0o644))

	stdout, err := execute(t, "--config", conf, "--log-level", "error", "points", "--footprints", fpPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "-> "+out)
	assert.FileExists(t, out)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestRootCommand_MissingConfigFile(t *testing.T) {
	dir, _, fpPath := workspace(t)
	resetRootFlags(t)

	_, err := execute(t, "--config", filepath.Join(dir, "absent.yaml"), "points", "--footprints", fpPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestCommandFlags(t *testing.T) {
	for cmd, flags := range map[string][]string{
		"run":        {"capacity", "previous", "points", "footprints", "aliases", "boundary", "grid-lines", "occto", "out", "out-footprints", "sqlite", "metrics-file", "report", "no-locate", "max-records"},
		"locate":     {"capacity", "aliases", "out", "max-records", "by-region", "regions", "max-per-region"},
		"footprints": {"points", "footprints", "boundary", "out-footprints", "synthesize"},
		"merge":      {"capacity", "previous", "footprints", "out", "sqlite"},
		"filter":     {"capacity", "footprints", "out", "out-footprints", "drop"},
		"fetch":      {"region", "file", "utility", "out", "by-region", "regions", "max-per-region"},
		"points":     {"capacity", "footprints", "boundary", "out-points"},
	} {
		c, _, err := rootCmd.Find([]string{cmd})
		require.NoError(t, err)
		for _, f := range flags {
			assert.NotNil(t, c.Flags().Lookup(f), "%s should have --%s", cmd, f)
		}
	}
}

// workspace changes into a temp dir with no config.yaml and an in-memory
// coordinate cache, and writes a small capacity and footprint dataset.
func workspace(t *testing.T) (dir, capPath, fpPath string) {
	t.Helper()
	dir = t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	t.Setenv("POWERGRID_CACHE_DRIVER", "none")
	t.Setenv("POWERGRID_NOMINATIM_ENABLED", "false")
	t.Setenv("POWERGRID_LOG_LEVEL", "error")

	capPath = filepath.Join(dir, "capacity.json")
	fpPath = filepath.Join(dir, "substations.geojson")
	require.NoError(t, dataset.WriteCapacity(capPath, []model.CapacityRecord{
		{ID: "tepco_1", Name: "大井変電所", Utility: "TEPCO", VoltageKV: model.Float(154)},
		{ID: "kepco_1", Name: "서울변전소", Utility: "?", Lat: model.Float(37.56), Lon: model.Float(126.97), MatchedSource: model.SourceNominatim},
	}))
	require.NoError(t, dataset.WriteFeatures(fpPath, dataset.FromFootprints([]model.Footprint{
		{ID: "way/1", Name: "大井変電所", Source: model.FootprintOSM, Geometry: geometry.Circle(139.74, 35.60, 120, 32)},
		{ID: "way/2", Name: "川崎変電所", Source: model.FootprintOSM, Geometry: geometry.Circle(139.70, 35.53, 90, 32)},
	})))
	return dir, capPath, fpPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestMergeCommand(t *testing.T) {
	dir, capPath, fpPath := workspace(t)
	out := filepath.Join(dir, "merged.json")
	outFp := filepath.Join(dir, "merged.geojson")
	db := filepath.Join(dir, "snapshots.db")

	stdout, err := execute(t, "merge", "--capacity", capPath, "--footprints", fpPath,
		"--out", out, "--out-footprints", outFp, "--sqlite", db)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "merge: records=3 filled=1"), stdout)

	records, err := dataset.LoadCapacity(out)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, model.SourcePolygonCentroid, records[0].MatchedSource)
	assert.True(t, records[1].Foreign)
	assert.Equal(t, "hangul_name", records[1].ForeignReason)
	assert.FileExists(t, outFp)
	assert.FileExists(t, db)
}

func TestRunCommand_NoLocate(t *testing.T) {
	dir, capPath, fpPath := workspace(t)
	out := filepath.Join(dir, "run.json")

	stdout, err := execute(t, "run", "--no-locate", "--report", "--capacity", capPath, "--footprints", fpPath,
		"--out", out, "--out-footprints", filepath.Join(dir, "run.geojson"))
	require.NoError(t, err)
	assert.Contains(t, stdout, "# Run Report")
	assert.Contains(t, stdout, "run: records=3")
}

func TestRunCommand_MissingCapacityWritesNothing(t *testing.T) {
	dir, _, fpPath := workspace(t)
	out := filepath.Join(dir, "never.json")

	_, err := execute(t, "run", "--no-locate", "--capacity", filepath.Join(dir, "absent.json"),
		"--footprints", fpPath, "--out", out)
	require.Error(t, err)
	assert.ErrorIs(t, err, dataset.ErrDataIntegrity)
	assert.NoFileExists(t, out)
}

func TestFilterCommand_Drop(t *testing.T) {
	dir, capPath, _ := workspace(t)
	out := filepath.Join(dir, "domestic.json")

	stdout, err := execute(t, "filter", "--drop", "--capacity", capPath, "--footprints", filepath.Join(dir, "none.geojson"),
		"--out", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "records domestic=1 foreign=1 (hangul_name=1)")

	records, err := dataset.LoadCapacity(out)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "tepco_1", records[0].ID)
}

func TestFilterCommand_BadFootprintsWritesNothing(t *testing.T) {
	dir, capPath, _ := workspace(t)
	truncated := filepath.Join(dir, "truncated.geojson")
	require.NoError(t, os.WriteFile(truncated, []byte(`{"type":"FeatureCollection","features":[`), 0o644))
	out := filepath.Join(dir, "domestic.json")
	outFp := filepath.Join(dir, "domestic.geojson")

	_, err := execute(t, "filter", "--drop=false", "--capacity", capPath, "--footprints", truncated,
		"--out", out, "--out-footprints", outFp)
	require.Error(t, err)
	assert.ErrorIs(t, err, dataset.ErrDataIntegrity)
	assert.NoFileExists(t, out)
	assert.NoFileExists(t, outFp)
}

func TestPointsCommand(t *testing.T) {
	dir, capPath, fpPath := workspace(t)
	out := filepath.Join(dir, "national.geojson")

	stdout, err := execute(t, "points", "--capacity", capPath, "--footprints", fpPath, "--out-points", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "points: polygons=2 points=2 matched=1 foreign=0 skipped=0")

	pts, err := dataset.LoadFeatures(out)
	require.NoError(t, err)
	require.Len(t, pts, 2)
	assert.Equal(t, "tepco_1", pts[0].ID)
	assert.Equal(t, "TEPCO", pts[0].Properties["utility"])
	assert.Equal(t, dataset.PointPolygonOnly, pts[1].Properties["matched_source"])
}

func TestPointsCommand_MissingFootprints(t *testing.T) {
	dir, capPath, _ := workspace(t)
	out := filepath.Join(dir, "national.geojson")

	_, err := execute(t, "points", "--capacity", capPath, "--footprints", filepath.Join(dir, "absent.geojson"), "--out-points", out)
	require.Error(t, err)
	assert.ErrorIs(t, err, dataset.ErrDataIntegrity)
	assert.NoFileExists(t, out)
}

func TestFetchCommand_LocalFile(t *testing.T) {
	dir, _, _ := workspace(t)
	csvPath := filepath.Join(dir, "chuden.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("変電所名,電圧[kV],空き容量（kW）\n大井変電所,154,1200\n"), 0o644))
	out := filepath.Join(dir, "fetched.json")

	stdout, err := execute(t, "fetch", "--file", csvPath, "--utility", "CHUDEN", "--out", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "fetch: sources=1 ok=1 failed=0 entries=1")

	records, err := dataset.LoadCapacity(out)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "CHUDEN", records[0].Utility)
}
