package geocode

import (
	"context"
	"net/url"
	"time"
)

const (
	// GSIService is the service name used for logging and breakers.
	GSIService = "gsi"

	gsiBaseURL  = "https://msearch.gsi.go.jp/address-search/AddressSearch"
	gsiInterval = 500 * time.Millisecond
)

type gsiResult struct {
	Geometry struct {
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
	Properties struct {
		Title string `json:"title"`
	} `json:"properties"`
}

// GSI searches the Geospatial Information Authority address search. It
// returns GeoJSON-like features with [lon, lat] coordinates.
type GSI struct {
	c *client
}

// NewGSI returns a GSI searcher.
func NewGSI(opts ...Option) *GSI {
	return &GSI{c: newClient(GSIService, gsiBaseURL, gsiInterval, opts)}
}

// Name implements Searcher.
func (g *GSI) Name() string { return GSIService }

// Search implements Searcher. At most the configured limit of candidates is
// returned.
func (g *GSI) Search(ctx context.Context, query string) ([]Candidate, error) {
	var results []gsiResult
	if err := g.c.getJSON(ctx, g.c.baseURL+"?q="+url.QueryEscape(query), &results); err != nil {
		return nil, err
	}

	var out []Candidate
	for _, r := range results {
		if len(r.Geometry.Coordinates) < 2 {
			continue
		}
		out = append(out, Candidate{
			Lon:     r.Geometry.Coordinates[0],
			Lat:     r.Geometry.Coordinates[1],
			Display: r.Properties.Title,
			Source:  GSIService,
		})
		if len(out) >= g.c.limit {
			break
		}
	}
	return out, nil
}
