// Package geocode provides place-name search against public Japanese
// geocoding services (OSM Nominatim and the GSI address search).
package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/hazardmap/powergrid/internal/resilience"
)

// Candidate is one search hit.
type Candidate struct {
	Lat     float64
	Lon     float64
	Display string
	Source  string
}

// Searcher resolves a free-text query to candidates, best first. An empty
// result is a nil slice and a nil error.
type Searcher interface {
	Name() string
	Search(ctx context.Context, query string) ([]Candidate, error)
}

// Option configures a searcher.
type Option func(*client)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.httpClient = hc
	}
}

// WithBaseURL overrides the service endpoint.
func WithBaseURL(u string) Option {
	return func(c *client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithMinInterval sets the minimum delay between two requests to the
// service. Zero disables throttling.
func WithMinInterval(d time.Duration) Option {
	return func(c *client) {
		if d <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithLimiter sets the limiter directly.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *client) {
		c.limiter = l
	}
}

// WithClock sets the clock the limiter waits on.
func WithClock(clock clockwork.Clock) Option {
	return func(c *client) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithLimit sets the maximum number of candidates requested.
func WithLimit(n int) Option {
	return func(c *client) {
		if n > 0 {
			c.limit = n
		}
	}
}

// WithCountryCodes restricts results to the given ISO country codes.
func WithCountryCodes(cc string) Option {
	return func(c *client) {
		if cc != "" {
			c.countryCodes = cc
		}
	}
}

type client struct {
	service      string
	httpClient   *http.Client
	baseURL      string
	userAgent    string
	limiter      *rate.Limiter
	clock        clockwork.Clock
	limit        int
	countryCodes string
}

func newClient(service, baseURL string, interval time.Duration, opts []Option) *client {
	c := &client{
		service:      service,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		baseURL:      baseURL,
		userAgent:    "powergrid/1.0",
		limiter:      rate.NewLimiter(rate.Every(interval), 1),
		clock:        clockwork.NewRealClock(),
		limit:        3,
		countryCodes: "jp",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// wait blocks until the limiter allows the next request, measuring time on
// c.clock. A cancelled wait gives its reservation back.
func (c *client) wait(ctx context.Context) error {
	now := c.clock.Now()
	r := c.limiter.ReserveN(now, 1)
	if !r.OK() {
		return eris.Errorf("%s: rate limiter: burst exceeded", c.service)
	}
	d := r.DelayFrom(now)
	if d <= 0 {
		return nil
	}
	timer := c.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		r.CancelAt(c.clock.Now())
		return eris.Wrapf(ctx.Err(), "%s: rate limiter", c.service)
	case <-timer.Chan():
		return nil
	}
}

// getJSON waits for the limiter, fetches url and decodes the body into out.
// Retryable statuses and undecodable bodies come back as
// *resilience.TransientError so callers can wrap the call in
// resilience.DoVal.
func (c *client) getJSON(ctx context.Context, url string, out any) error {
	if err := c.wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return eris.Wrapf(err, "%s: create request", c.service)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return eris.Wrapf(err, "%s: request", c.service)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resilience.ResponseError(c.service, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resilience.NewTransientError(eris.Wrapf(err, "%s: decode response", c.service), resp.StatusCode)
	}
	return nil
}
