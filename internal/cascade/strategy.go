package cascade

import (
	"context"
	"fmt"

	"github.com/hazardmap/powergrid/internal/fuzzy"
	"github.com/hazardmap/powergrid/internal/model"
	"github.com/hazardmap/powergrid/internal/normalize"
	"github.com/hazardmap/powergrid/internal/resilience"
	"github.com/hazardmap/powergrid/pkg/geocode"
)

// Query is the name being located, already light-normalized and aliased.
type Query struct {
	Light  string
	IsLine bool
}

// Match is a strategy's answer.
type Match struct {
	Lat     float64
	Lon     float64
	Source  model.MatchSource
	Notes   string
	// Display is what the coordinate cache remembers about the hit.
	Display string
}

// Strategy is one step of the cascade. A nil match with a nil error means
// the strategy did not find the name and the next one should run.
type Strategy interface {
	Source() model.MatchSource
	Resolve(ctx context.Context, q Query) (*Match, error)
}

// RemoteHook observes the outcome of each remote call, labelled by
// resilience.Classify.
type RemoteHook func(service, outcome string)

// SearchStrategy resolves names through a remote Searcher, retrying
// transient failures and short-circuiting a service that keeps failing.
type SearchStrategy struct {
	searcher geocode.Searcher
	source   model.MatchSource
	retry    resilience.RetryConfig
	breaker  *resilience.CircuitBreaker
	hook     RemoteHook
}

// NewSearchStrategy wraps s. breaker may be nil.
func NewSearchStrategy(s geocode.Searcher, source model.MatchSource, retry resilience.RetryConfig, breaker *resilience.CircuitBreaker) *SearchStrategy {
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger(s.Name(), "search")
	}
	return &SearchStrategy{searcher: s, source: source, retry: retry, breaker: breaker}
}

// WithHook sets the remote outcome observer.
func (s *SearchStrategy) WithHook(h RemoteHook) *SearchStrategy {
	s.hook = h
	return s
}

// Source implements Strategy.
func (s *SearchStrategy) Source() model.MatchSource { return s.source }

// Resolve implements Strategy. Lines are never sent to address search.
func (s *SearchStrategy) Resolve(ctx context.Context, q Query) (*Match, error) {
	if q.IsLine || q.Light == "" {
		return nil, nil
	}
	query := normalize.Query(q.Light)

	search := func(ctx context.Context) ([]geocode.Candidate, error) {
		return resilience.DoVal(ctx, s.retry, func(ctx context.Context) ([]geocode.Candidate, error) {
			return s.searcher.Search(ctx, query)
		})
	}

	var (
		cands []geocode.Candidate
		err   error
	)
	if s.breaker != nil {
		cands, err = resilience.ExecuteVal(ctx, s.breaker, search)
	} else {
		cands, err = search(ctx)
	}
	if s.hook != nil {
		s.hook(s.searcher.Name(), resilience.Classify(err))
	}
	if err != nil {
		return nil, err
	}
	if len(cands) == 0 {
		return nil, nil
	}

	top := cands[0]
	return &Match{
		Lat:     top.Lat,
		Lon:     top.Lon,
		Source:  s.source,
		Notes:   fmt.Sprintf("query='%s' display='%s'", query, top.Display),
		Display: top.Display,
	}, nil
}

// FuzzyStrategy resolves names against a reference dataset by edit
// distance.
type FuzzyStrategy struct {
	index    *fuzzy.Index
	source   model.MatchSource
	showName bool
}

// NewGridLineStrategy matches against named OSM grid line features.
func NewGridLineStrategy(idx *fuzzy.Index) *FuzzyStrategy {
	return &FuzzyStrategy{index: idx, source: model.SourceGridLines, showName: true}
}

// NewOCCTOStrategy matches against the OCCTO facility layer.
func NewOCCTOStrategy(idx *fuzzy.Index) *FuzzyStrategy {
	return &FuzzyStrategy{index: idx, source: model.SourceOCCTO}
}

// Source implements Strategy.
func (f *FuzzyStrategy) Source() model.MatchSource { return f.source }

// Resolve implements Strategy.
func (f *FuzzyStrategy) Resolve(_ context.Context, q Query) (*Match, error) {
	m, ok := f.index.Best(q.Light)
	if !ok {
		return nil, nil
	}
	notes := fmt.Sprintf("lev=%d", m.Distance)
	if f.showName {
		notes = fmt.Sprintf("lev=%d name='%s'", m.Distance, m.Label)
	}
	return &Match{Lat: m.Lat, Lon: m.Lon, Source: f.source, Notes: notes, Display: notes}, nil
}
