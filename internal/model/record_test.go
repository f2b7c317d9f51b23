package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchSourceTier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		src  MatchSource
		want float64
	}{
		{SourceNominatim, 0.75},
		{SourceGSI, 0.55},
		{SourceGridLines, 0.75},
		{SourceOCCTO, 0.70},
		{SourcePolygonCentroid, 0.90},
		{SourcePolygonOnly, 1.0},
		{SourceUnmatched, 0.0},
		{SourceError, 0.0},
		{MatchSource("bogus"), 0.0},
	}
	for _, tt := range tests {
		t.Run(string(tt.src), func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, tt.src.Tier(), 1e-9)
		})
	}
}

func TestMatchSourceLocated(t *testing.T) {
	t.Parallel()
	assert.True(t, SourceNominatim.Located())
	assert.True(t, SourcePolygonOnly.Located())
	assert.False(t, SourceUnmatched.Located())
	assert.False(t, SourceError.Located())
	assert.False(t, MatchSource("").Located())
	assert.False(t, MatchSource("bogus").Valid())
}

func TestCapacityRecordLocate(t *testing.T) {
	t.Parallel()

	var r CapacityRecord
	assert.False(t, r.HasCoords())

	r.Locate(35.6, 139.7, SourceOCCTO, "lev=1 name='x'")
	require.True(t, r.HasCoords())
	assert.InDelta(t, 35.6, *r.Lat, 1e-9)
	assert.InDelta(t, 139.7, *r.Lon, 1e-9)
	assert.Equal(t, SourceOCCTO, r.MatchedSource)
	assert.InDelta(t, 0.70, r.Confidence, 1e-9)

	r.ClearCoords()
	assert.False(t, r.HasCoords())
}

func TestCapacityRecordAppendNote(t *testing.T) {
	t.Parallel()

	var r CapacityRecord
	r.AppendNote("")
	assert.Empty(t, r.Notes)
	r.AppendNote("first")
	r.AppendNote("second")
	assert.Equal(t, "first; second", r.Notes)
}

func TestCapacityRecordJSONNulls(t *testing.T) {
	t.Parallel()

	r := CapacityRecord{ID: "a", Name: "n", MatchedSource: SourcePolygonOnly, Confidence: 1}
	data, err := json.Marshal(r)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Contains(t, m, "available_kw")
	assert.Nil(t, m["available_kw"])
	assert.Nil(t, m["lat"])
	assert.NotContains(t, m, "foreign")
	assert.Equal(t, "polygon_only", m["matched_source"])
}
