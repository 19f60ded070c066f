// Package attom provides a client for the ATTOM property data API: address
// search, AVM estimates, area statistics, sales trends, and v4 geography
// lookup. All non-200 responses surface as typed errors and the client
// rate-limits itself with a minimum spacing between requests.
package attom

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.gateway.attomdata.com/propertyapi/v1.0.0"
	defaultV4URL   = "https://api.gateway.attomdata.com/v4"

	// Minimum inter-request spacing. Free-tier keys are throttled hard, so
	// the limiter is owned by the client rather than left to callers.
	minRequestSpacing = 500 * time.Millisecond
)

// Client defines the ATTOM operations used by the pipeline.
type Client interface {
	// SearchProperty looks up a property by street address.
	SearchProperty(ctx context.Context, street, city, state, zip string) (*Property, error)
	// GetAVM fetches the automated valuation estimate for an address.
	GetAVM(ctx context.Context, street, city, state, zip string) (*AVM, error)
	// GetAreaStats fetches neighborhood statistics for a ZIP code.
	GetAreaStats(ctx context.Context, zip string) (*AreaStats, error)
	// GetComparables fetches nearby sold properties around an address.
	GetComparables(ctx context.Context, street, city, state string, maxResults int) ([]Comparable, error)
	// LookupGeography resolves a free-text area name to v4 geography
	// entries. An empty list is a valid, non-error response.
	LookupGeography(ctx context.Context, name, typeAbbreviation, state string) ([]Geography, error)
	// GetSalesTrends fetches the v4 sales-trend series for a geography.
	GetSalesTrends(ctx context.Context, geoID, interval string) (*SalesTrends, error)
	// GetSalesTrendsByZip fetches legacy zip-level trends.
	GetSalesTrendsByZip(ctx context.Context, zip, interval string) (*SalesTrends, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default v1 API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithV4URL overrides the default v4 API base URL.
func WithV4URL(u string) Option {
	return func(c *httpClient) {
		c.v4URL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRequestSpacing overrides the minimum inter-request spacing.
func WithRequestSpacing(d time.Duration) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	v4URL   string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates an ATTOM client. A missing API key is the one fatal
// configuration error in the pipeline: it fails here, at construction,
// rather than on every call.
func NewClient(apiKey string, opts ...Option) (Client, error) {
	if apiKey == "" {
		return nil, eris.New("attom: api key is required")
	}
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		v4URL:   defaultV4URL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Every(minRequestSpacing), 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// getJSON issues a rate-limited GET and decodes the JSON body into out.
// Non-200 statuses become typed errors via statusError.
func (c *httpClient) getJSON(ctx context.Context, rawURL string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "attom: rate limiter")
	}

	reqURL := rawURL
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return eris.Wrap(err, "attom: create request")
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "attom: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "attom: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return statusError(resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "attom: unmarshal response")
	}
	return nil
}
