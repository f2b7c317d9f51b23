package geocode

import (
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"
)

func newTestLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Inf, 1)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

// newRewriteClient sends requests for the production endpoint under prefix
// to the test server, keeping path and query so the client's default URL is
// exercised.
func newRewriteClient(testServerURL, prefix string) *http.Client {
	target, err := url.Parse(testServerURL)
	if err != nil {
		panic(err)
	}
	return &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if !strings.HasPrefix(req.URL.String(), prefix) {
			return http.DefaultTransport.RoundTrip(req)
		}
		out := req.Clone(req.Context())
		out.URL.Scheme = target.Scheme
		out.URL.Host = target.Host
		out.Host = target.Host
		return http.DefaultTransport.RoundTrip(out)
	})}
}
