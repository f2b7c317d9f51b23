package geocode

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

const (
	// NominatimService is the service name used for logging and breakers.
	NominatimService = "nominatim"

	nominatimBaseURL = "https://nominatim.openstreetmap.org/search"

	// NominatimInterval is the public usage policy's one request per second,
	// plus headroom.
	NominatimInterval = 1100 * time.Millisecond
)

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Nominatim searches OpenStreetMap Nominatim.
type Nominatim struct {
	c *client
}

// NewNominatim returns a Nominatim searcher. email, when set, is added to
// the User-Agent as the usage policy asks.
func NewNominatim(email string, opts ...Option) *Nominatim {
	ua := "powergrid/1.0"
	if email != "" {
		ua = fmt.Sprintf("powergrid/1.0 (%s)", email)
	}
	opts = append([]Option{WithUserAgent(ua)}, opts...)
	return &Nominatim{c: newClient(NominatimService, nominatimBaseURL, NominatimInterval, opts)}
}

// Name implements Searcher.
func (n *Nominatim) Name() string { return NominatimService }

// Search implements Searcher. Results with unparseable coordinates are
// skipped.
func (n *Nominatim) Search(ctx context.Context, query string) ([]Candidate, error) {
	params := url.Values{
		"format":       {"json"},
		"limit":        {strconv.Itoa(n.c.limit)},
		"countrycodes": {n.c.countryCodes},
		"q":            {query},
	}

	var results []nominatimResult
	if err := n.c.getJSON(ctx, n.c.baseURL+"?"+params.Encode(), &results); err != nil {
		return nil, err
	}

	var out []Candidate
	for _, r := range results {
		lat, err := strconv.ParseFloat(r.Lat, 64)
		if err != nil {
			continue
		}
		lon, err := strconv.ParseFloat(r.Lon, 64)
		if err != nil {
			continue
		}
		out = append(out, Candidate{Lat: lat, Lon: lon, Display: r.DisplayName, Source: NominatimService})
	}
	return out, nil
}
