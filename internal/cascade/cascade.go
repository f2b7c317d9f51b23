// Package cascade locates capacity records by running an ordered list of
// strategies (coordinate cache, remote address search, fuzzy reference
// matching) and keeping the first hit.
package cascade

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hazardmap/powergrid/internal/model"
	"github.com/hazardmap/powergrid/internal/normalize"
	"github.com/hazardmap/powergrid/internal/resilience"
)

const (
	notesNoMatch = "no_match"
	dateLayout   = "2006-01-02"
)

// Result is the outcome of resolving one name.
type Result struct {
	Original  string
	Light     string
	Canonical string
	Match     *Match
	Cached    bool
	// Err is set when a remote strategy failed and nothing else matched.
	Err error
}

// Cascade runs strategies in order. It is safe for sequential use; remote
// strategies assume one request in flight per service.
type Cascade struct {
	aliases  *normalize.AliasTable
	cache    Cache
	remote   []Strategy
	fallback []Strategy
	clock    clockwork.Clock
	breakers *resilience.ServiceBreakers
	log      *zap.Logger
}

// Option configures a Cascade.
type Option func(*Cascade)

// WithAliases sets the alias table applied after the cache lookup.
func WithAliases(t *normalize.AliasTable) Option {
	return func(c *Cascade) { c.aliases = t }
}

// WithCache sets the coordinate cache.
func WithCache(cache Cache) Option {
	return func(c *Cascade) { c.cache = cache }
}

// WithRemote appends remote strategies. They are skipped for line names.
func WithRemote(s ...Strategy) Option {
	return func(c *Cascade) { c.remote = append(c.remote, s...) }
}

// WithFallback appends local strategies tried after the remote ones.
func WithFallback(s ...Strategy) Option {
	return func(c *Cascade) { c.fallback = append(c.fallback, s...) }
}

// WithClock sets the clock used for cache verification dates.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Cascade) { c.clock = clock }
}

// WithBreakers sets the breakers whose states are reported at the end of
// LocateAll.
func WithBreakers(sb *resilience.ServiceBreakers) Option {
	return func(c *Cascade) { c.breakers = sb }
}

// New builds a Cascade.
func New(opts ...Option) *Cascade {
	c := &Cascade{
		clock: clockwork.NewRealClock(),
		log:   zap.L().With(zap.String("stage", "locate")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve locates a raw facility name.
func (c *Cascade) Resolve(ctx context.Context, raw string) Result {
	light := normalize.Light(raw)
	res := Result{Original: raw, Light: light, Canonical: c.aliases.Apply(light)}
	if light == "" {
		return res
	}

	if m := c.lookup(ctx, light); m != nil {
		res.Match = m
		res.Cached = true
		return res
	}

	q := Query{Light: res.Canonical, IsLine: normalize.IsLine(res.Canonical)}

	var remoteErr error
	for _, s := range c.remote {
		if q.IsLine {
			break
		}
		m, err := s.Resolve(ctx, q)
		if err != nil {
			c.log.Warn("remote strategy failed",
				zap.String("source", string(s.Source())),
				zap.String("name", res.Canonical),
				zap.Error(err),
			)
			if remoteErr == nil {
				remoteErr = err
			}
			continue
		}
		if m != nil {
			res.Match = m
			c.store(ctx, light, m)
			return res
		}
	}

	for _, s := range c.fallback {
		m, err := s.Resolve(ctx, q)
		if err != nil {
			c.log.Warn("strategy failed", zap.String("source", string(s.Source())), zap.Error(err))
			continue
		}
		if m != nil {
			res.Match = m
			c.store(ctx, light, m)
			return res
		}
	}

	res.Err = remoteErr
	return res
}

// lookup returns the cached match for key. Entries naming a source the
// cascade does not produce are treated as misses so they get refreshed.
func (c *Cascade) lookup(ctx context.Context, key string) *Match {
	if c.cache == nil {
		return nil
	}
	e, err := c.cache.Get(ctx, key)
	if err != nil {
		c.log.Warn("coordinate cache read failed", zap.String("key", key), zap.Error(err))
		return nil
	}
	if e == nil {
		return nil
	}
	if !e.Source.Located() || !e.Source.Valid() {
		c.log.Debug("ignoring cache entry with unknown source",
			zap.String("key", key), zap.String("source", string(e.Source)))
		return nil
	}

	verified := e.LastVerified
	if verified == "" {
		verified = "unknown"
	}
	return &Match{
		Lat:     e.Lat,
		Lon:     e.Lon,
		Source:  e.Source,
		Notes:   fmt.Sprintf("cached source=%s verified=%s display='%s'", e.Source, verified, e.DisplayName),
		Display: e.DisplayName,
	}
}

func (c *Cascade) store(ctx context.Context, key string, m *Match) {
	if c.cache == nil {
		return
	}
	e := CacheEntry{
		Lat:          m.Lat,
		Lon:          m.Lon,
		Source:       m.Source,
		Confidence:   m.Source.Tier(),
		DisplayName:  m.Display,
		LastVerified: c.clock.Now().Format(dateLayout),
	}
	if err := c.cache.Put(ctx, key, e); err != nil {
		c.log.Warn("coordinate cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Apply stamps res onto r. Name fields are rewritten to the canonical form
// and the original is preserved.
func Apply(r *model.CapacityRecord, res Result) {
	r.NameOriginal = res.Original
	r.NameNormalized = res.Canonical
	r.Name = res.Canonical

	switch {
	case res.Match != nil:
		r.Locate(res.Match.Lat, res.Match.Lon, res.Match.Source, res.Match.Notes)
	case res.Err != nil:
		r.ClearCoords()
		r.MatchedSource = model.SourceError
		r.Confidence = 0
		r.Notes = res.Err.Error()
	default:
		r.ClearCoords()
		r.MatchedSource = model.SourceUnmatched
		r.Confidence = 0
		r.Notes = notesNoMatch
	}
}

// Summary counts locate outcomes.
type Summary struct {
	Processed int
	Matched   int
	Cached    int
	Unmatched int
	Errors    int
	BySource  map[model.MatchSource]int
	// Regions is filled by regional runs, in processing order.
	Regions []RegionSummary
	// Breakers holds the circuit state of every remote service used.
	Breakers map[string]resilience.CircuitState
}

// RegionSummary reports one region of a regional run.
type RegionSummary struct {
	Region string
	RegionStats
	Processed int
	Matched   int
}

// LocateOptions controls LocateAll.
type LocateOptions struct {
	// MaxRecords stops after this many records. Zero means all.
	MaxRecords int
	// ByRegion locates region by region in RegionPriority order instead of
	// input order. See PlanRegions.
	ByRegion       bool
	RegionPriority []string
	// Regions restricts a regional run to these region ids.
	Regions []string
	// MaxPerRegion caps each region of a regional run. Zero means all.
	MaxPerRegion int
	// RegionPause is waited between two regions.
	RegionPause time.Duration
	// OnRecord observes each located record.
	OnRecord func(i int, r *model.CapacityRecord, res Result)
}

func (o LocateOptions) batches(records []model.CapacityRecord) []RegionBatch {
	if !o.ByRegion {
		all := make([]int, len(records))
		for i := range all {
			all[i] = i
		}
		return []RegionBatch{{Indexes: all}}
	}
	return PlanRegions(records, o.RegionPriority, o.Regions, o.MaxPerRegion)
}

// LocateAll resolves records and returns them in processing order: input
// order, or region by region when opts.ByRegion is set. Cancellation is
// checked between records; the records finished so far are returned with
// the context error.
func (c *Cascade) LocateAll(ctx context.Context, records []model.CapacityRecord, opts LocateOptions) ([]model.CapacityRecord, Summary, error) {
	batches := opts.batches(records)
	limit := 0
	for _, b := range batches {
		limit += len(b.Indexes)
	}
	if opts.MaxRecords > 0 && opts.MaxRecords < limit {
		limit = opts.MaxRecords
	}

	out := make([]model.CapacityRecord, 0, limit)
	sum := Summary{BySource: make(map[model.MatchSource]int)}
	for bi, b := range batches {
		if len(out) >= limit {
			break
		}
		if opts.ByRegion && bi > 0 && opts.RegionPause > 0 {
			if err := c.pause(ctx, opts.RegionPause); err != nil {
				return out, sum, err
			}
		}

		rs := RegionSummary{Region: b.Region, RegionStats: b.Stats}
		for _, i := range b.Indexes {
			if len(out) >= limit {
				break
			}
			if err := ctx.Err(); err != nil {
				return out, sum, eris.Wrap(err, "cascade: locate cancelled")
			}

			r := records[i]
			raw := r.NameOriginal
			if raw == "" {
				raw = r.Name
			}
			res := c.Resolve(ctx, raw)
			Apply(&r, res)
			sum.add(r, res)
			rs.Processed++
			if res.Match != nil {
				rs.Matched++
			}

			if opts.OnRecord != nil {
				opts.OnRecord(i, &r, res)
			}
			out = append(out, r)
		}

		if opts.ByRegion {
			sum.Regions = append(sum.Regions, rs)
			c.log.Info("region complete",
				zap.String("region", rs.Region),
				zap.Int("total", rs.Total),
				zap.Int("substations", rs.Substations),
				zap.Int("lines", rs.Lines),
				zap.Int("other", rs.Other),
				zap.Int("processed", rs.Processed),
				zap.Int("matched", rs.Matched),
			)
		}
	}

	fields := []zap.Field{
		zap.Int("processed", sum.Processed),
		zap.Int("matched", sum.Matched),
		zap.Int("cached", sum.Cached),
		zap.Int("unmatched", sum.Unmatched),
		zap.Int("errors", sum.Errors),
	}
	if c.breakers != nil {
		sum.Breakers = c.breakers.States()
		for name, state := range sum.Breakers {
			fields = append(fields, zap.Stringer("breaker_"+name, state))
		}
	}
	c.log.Info("locate complete", fields...)
	return out, sum, nil
}

func (s *Summary) add(r model.CapacityRecord, res Result) {
	s.Processed++
	s.BySource[r.MatchedSource]++
	switch {
	case res.Cached:
		s.Cached++
		s.Matched++
	case res.Match != nil:
		s.Matched++
	case r.MatchedSource == model.SourceError:
		s.Errors++
	default:
		s.Unmatched++
	}
}

func (c *Cascade) pause(ctx context.Context, d time.Duration) error {
	timer := c.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "cascade: locate cancelled")
	case <-timer.Chan():
		return nil
	}
}
