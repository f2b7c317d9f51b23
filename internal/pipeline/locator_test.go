package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazardmap/powergrid/internal/cascade"
	"github.com/hazardmap/powergrid/internal/config"
	"github.com/hazardmap/powergrid/internal/model"
	"github.com/hazardmap/powergrid/internal/monitoring"
)

func locatorConfig(baseURL string) *config.Config {
	cfg := &config.Config{}
	cfg.Nominatim.Enabled = true
	cfg.Nominatim.BaseURL = baseURL
	cfg.Nominatim.CountryCodes = "jp"
	cfg.Nominatim.Limit = 1
	cfg.Nominatim.TimeoutSecs = 5
	cfg.Retry.MaxAttempts = 1
	cfg.Retry.Multiplier = 2
	cfg.Circuit.FailureThreshold = 5
	cfg.Circuit.ResetTimeoutSecs = 60
	return cfg
}

func TestNewLocator_Nominatim(t *testing.T) {
	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.Query().Get("q"))
		assert.Equal(t, "jp", r.URL.Query().Get("countrycodes"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"lat":"35.6","lon":"139.74","display_name":"大井, 品川区"}]`))
	}))
	defer srv.Close()

	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	cache := cascade.NewMemoryCache(nil)
	loc, err := NewLocator(locatorConfig(srv.URL), LocatorDeps{
		Cache:      cache,
		Metrics:    metrics,
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)

	res := loc.Resolve(context.Background(), "大井変電所")
	require.NotNil(t, res.Match)
	assert.Equal(t, model.SourceNominatim, res.Match.Source)
	assert.InDelta(t, 35.6, res.Match.Lat, 1e-9)
	assert.Equal(t, []string{"大井変電所"}, queries)
	assert.Equal(t, 1, cache.Len())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.RemoteRequests.WithLabelValues("nominatim", "ok")), 0)

	// Second lookup is served from the cache.
	res = loc.Resolve(context.Background(), "大井変電所")
	assert.True(t, res.Cached)
	assert.Len(t, queries, 1)
}

func TestNewLocator_ServerErrorDegradesRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	loc, err := NewLocator(locatorConfig(srv.URL), LocatorDeps{Metrics: metrics, HTTPClient: srv.Client()})
	require.NoError(t, err)

	out, sum, err := loc.LocateAll(context.Background(), []model.CapacityRecord{
		{ID: "a", Name: "大井変電所"},
		{ID: "b", Name: "新北上線"},
	}, cascade.LocateOptions{})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, model.SourceError, out[0].MatchedSource)
	// Lines never reach address search.
	assert.Equal(t, model.SourceUnmatched, out[1].MatchedSource)
	assert.Equal(t, 1, sum.Errors)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.RemoteRequests.WithLabelValues("nominatim", "transient")), 0)
	assert.Contains(t, sum.Breakers, "nominatim")
}

func TestNewLocator_DisabledRemoteAndMissingReferences(t *testing.T) {
	cfg := locatorConfig("")
	cfg.Nominatim.Enabled = false
	cfg.Input.GridLines = filepath.Join(t.TempDir(), "missing_lines.geojson")

	loc, err := NewLocator(cfg, LocatorDeps{})
	require.NoError(t, err)
	res := loc.Resolve(context.Background(), "大井変電所")
	assert.Nil(t, res.Match)
	assert.NoError(t, res.Err)
}
