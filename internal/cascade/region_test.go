package cascade

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazardmap/powergrid/internal/model"
	"github.com/hazardmap/powergrid/internal/resilience"
	"github.com/hazardmap/powergrid/pkg/geocode"
)

func regionalRecords() []model.CapacityRecord {
	return []model.CapacityRecord{
		{ID: "tepco_kikan_1", Region: "kikan", Name: "新北上線"},
		{ID: "tepco_gunma_1", Region: "gunma", Name: "西群馬変電所"},
		{ID: "chuden_1", Region: "", Name: "名古屋変電所"},
		{ID: "tepco_tokyo23_1", Region: "tokyo23", Name: "新宿変電所"},
		{ID: "tepco_gunma_2", Region: "gunma", Name: "東群馬幹線"},
		{ID: "tepco_tokyo23_2", Region: "tokyo23", Name: "大井変圧器"},
		{ID: "tepco_tokyo23_3", Region: "tokyo23", Name: "品川開閉所"},
	}
}

func regionOrder(batches []RegionBatch) []string {
	out := make([]string, len(batches))
	for i, b := range batches {
		out[i] = b.Region
	}
	return out
}

func TestPlanRegions_PriorityWithTrunkLast(t *testing.T) {
	batches := PlanRegions(regionalRecords(), DefaultRegionPriority, nil, 0)
	assert.Equal(t, []string{"tokyo23", "gunma", "", "kikan"}, regionOrder(batches))

	tokyo := batches[0]
	assert.Equal(t, []int{3, 5, 6}, tokyo.Indexes)
	assert.Equal(t, RegionStats{Total: 3, Substations: 2, Other: 1}, tokyo.Stats)

	gunma := batches[1]
	assert.Equal(t, RegionStats{Total: 2, Substations: 1, Lines: 1}, gunma.Stats)
}

func TestPlanRegions_NoWildcardPutsUnnamedLast(t *testing.T) {
	batches := PlanRegions(regionalRecords(), []string{"kikan", "gunma"}, nil, 0)
	assert.Equal(t, []string{"kikan", "gunma", "", "tokyo23"}, regionOrder(batches))
}

func TestPlanRegions_OnlyAndCap(t *testing.T) {
	batches := PlanRegions(regionalRecords(), DefaultRegionPriority, []string{"tokyo23", " kikan"}, 2)
	require.Equal(t, []string{"tokyo23", "kikan"}, regionOrder(batches))
	assert.Equal(t, []int{3, 5}, batches[0].Indexes)
	assert.Equal(t, 3, batches[0].Stats.Total, "stats count the region before the cap")
	assert.Equal(t, []int{0}, batches[1].Indexes)
}

func TestOrderByRegion(t *testing.T) {
	got := OrderByRegion(regionalRecords(), nil, nil, 1)
	ids := make([]string, len(got))
	for i, r := range got {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"tepco_tokyo23_1", "tepco_gunma_1", "chuden_1", "tepco_kikan_1"}, ids)
}

func TestLocateAll_ByRegion(t *testing.T) {
	f := &fakeSearcher{name: "nominatim", results: map[string][]geocode.Candidate{
		"新宿変電所": {{Lat: 35.69, Lon: 139.70, Display: "新宿"}},
	}}
	c := New(WithRemote(newNominatim(f)), WithFallback(NewGridLineStrategy(gridIndex())))

	var seen []string
	out, sum, err := c.LocateAll(context.Background(), regionalRecords(), LocateOptions{
		ByRegion:     true,
		MaxPerRegion: 1,
		OnRecord:     func(_ int, r *model.CapacityRecord, _ Result) { seen = append(seen, r.ID) },
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"tepco_tokyo23_1", "tepco_gunma_1", "chuden_1", "tepco_kikan_1"}, seen)
	require.Len(t, out, 4)
	assert.Equal(t, "tepco_tokyo23_1", out[0].ID)
	assert.Equal(t, model.SourceNominatim, out[0].MatchedSource)
	assert.Equal(t, model.SourceGridLines, out[3].MatchedSource)

	require.Len(t, sum.Regions, 4)
	assert.Equal(t, RegionSummary{
		Region:      "tokyo23",
		RegionStats: RegionStats{Total: 3, Substations: 2, Other: 1},
		Processed:   1,
		Matched:     1,
	}, sum.Regions[0])
	assert.Equal(t, 1, sum.Regions[3].Matched)
	assert.Equal(t, 4, sum.Processed)
	assert.Equal(t, 2, sum.Matched)
}

func TestLocateAll_PausesBetweenRegions(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := New(WithClock(clock))
	records := []model.CapacityRecord{
		{ID: "a", Region: "tokyo23", Name: "甲"},
		{ID: "b", Region: "kikan", Name: "乙"},
	}

	type result struct {
		out []model.CapacityRecord
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, _, err := c.LocateAll(context.Background(), records, LocateOptions{ByRegion: true, RegionPause: 3 * time.Second})
		done <- result{out, err}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	select {
	case <-done:
		t.Fatal("second region started before the pause elapsed")
	default:
	}

	clock.Advance(3 * time.Second)
	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Len(t, r.out, 2)
	case <-time.After(5 * time.Second):
		t.Fatal("locate never finished")
	}
}

func TestLocateAll_ReportsBreakerStates(t *testing.T) {
	f := &fakeSearcher{name: "nominatim", err: resilience.NewTransientError(assert.AnError, 503)}
	breakers := resilience.NewServiceBreakers(resilience.CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Hour,
		ShouldTrip:       resilience.IsTransient,
	})
	s := NewSearchStrategy(f, model.SourceNominatim, fastRetry(), breakers.Get(f.Name()))
	c := New(WithRemote(s), WithBreakers(breakers))

	_, sum, err := c.LocateAll(context.Background(), []model.CapacityRecord{
		{ID: "1", Name: "一"},
		{ID: "2", Name: "二"},
	}, LocateOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Errors)
	assert.Equal(t, map[string]resilience.CircuitState{"nominatim": resilience.CircuitOpen}, sum.Breakers)
}
