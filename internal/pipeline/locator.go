package pipeline

import (
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/hazardmap/powergrid/internal/cascade"
	"github.com/hazardmap/powergrid/internal/config"
	"github.com/hazardmap/powergrid/internal/dataset"
	"github.com/hazardmap/powergrid/internal/model"
	"github.com/hazardmap/powergrid/internal/monitoring"
	"github.com/hazardmap/powergrid/internal/normalize"
	"github.com/hazardmap/powergrid/internal/resilience"
	"github.com/hazardmap/powergrid/pkg/geocode"
)

// LocatorDeps are the collaborators of a locator that do not come from
// configuration.
type LocatorDeps struct {
	Cache      cascade.Cache
	Aliases    *normalize.AliasTable
	Metrics    *monitoring.Metrics
	HTTPClient *http.Client
	Clock      clockwork.Clock
}

// NewLocator builds the match cascade described by cfg: coordinate cache,
// then the enabled address-search services, then the grid-line and OCCTO
// reference layers when their files are configured.
func NewLocator(cfg *config.Config, deps LocatorDeps) (*cascade.Cascade, error) {
	log := zap.L().With(zap.String("stage", "locate"))

	hc := deps.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: time.Duration(cfg.Nominatim.TimeoutSecs) * time.Second}
	}
	retry := resilience.RetryFromConfig(cfg.Retry, deps.Clock)
	breakers := resilience.BreakersFromConfig(cfg.Circuit, deps.Clock)

	var remote []cascade.Strategy
	if cfg.Nominatim.Enabled {
		opts := []geocode.Option{
			geocode.WithHTTPClient(hc),
			geocode.WithBaseURL(cfg.Nominatim.BaseURL),
			geocode.WithLimit(cfg.Nominatim.Limit),
			geocode.WithCountryCodes(cfg.Nominatim.CountryCodes),
			geocode.WithMinInterval(time.Duration(cfg.Nominatim.MinIntervalMs) * time.Millisecond),
			geocode.WithClock(deps.Clock),
		}
		if cfg.Nominatim.Email == "" {
			opts = append(opts, geocode.WithUserAgent(cfg.Nominatim.UserAgent))
		}
		s := geocode.NewNominatim(cfg.Nominatim.Email, opts...)
		remote = append(remote, cascade.NewSearchStrategy(s, model.SourceNominatim, retry, breakers.Get(s.Name())).
			WithHook(deps.Metrics.RemoteRequest))
	}
	if cfg.GSI.Enabled {
		s := geocode.NewGSI(
			geocode.WithHTTPClient(hc),
			geocode.WithBaseURL(cfg.GSI.BaseURL),
			geocode.WithMinInterval(time.Duration(cfg.GSI.MinIntervalMs)*time.Millisecond),
			geocode.WithClock(deps.Clock),
		)
		remote = append(remote, cascade.NewSearchStrategy(s, model.SourceGSI, retry, breakers.Get(s.Name())).
			WithHook(deps.Metrics.RemoteRequest))
	}

	var fallback []cascade.Strategy
	if cfg.Input.GridLines != "" {
		idx, err := dataset.LoadIndex(cfg.Input.GridLines)
		if err != nil {
			return nil, err
		}
		fallback = append(fallback, cascade.NewGridLineStrategy(idx))
	}
	if cfg.Input.OCCTO != "" {
		idx, err := dataset.LoadIndex(cfg.Input.OCCTO)
		if err != nil {
			return nil, err
		}
		fallback = append(fallback, cascade.NewOCCTOStrategy(idx))
	}

	log.Info("locator ready",
		zap.Int("remote_strategies", len(remote)),
		zap.Int("fallback_strategies", len(fallback)),
		zap.Int("aliases", deps.Aliases.Len()),
		zap.Bool("cache", deps.Cache != nil),
	)

	opts := []cascade.Option{
		cascade.WithAliases(deps.Aliases),
		cascade.WithRemote(remote...),
		cascade.WithFallback(fallback...),
		cascade.WithBreakers(breakers),
	}
	if deps.Cache != nil {
		opts = append(opts, cascade.WithCache(deps.Cache))
	}
	if deps.Clock != nil {
		opts = append(opts, cascade.WithClock(deps.Clock))
	}
	return cascade.New(opts...), nil
}
