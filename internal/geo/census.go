// Package geo derives county hints for addresses. The Census geographies
// endpoint is the primary source; a local TIGER county shapefile can serve
// as an offline fallback when one is configured.
package geo

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/valuation-cli/internal/resilience"
)

const (
	censusGeographiesURL = "https://geocoding.geo.census.gov/geocoder/geographies/onelineaddress"
	censusBenchmark      = "Public_AR_Current"
	censusVintage        = "Current_Current"
)

// County identifies the county containing an address.
type County struct {
	Name  string `json:"name"`
	FIPS  string `json:"fips"`
	State string `json:"state,omitempty"`
}

// Locator resolves an address or coordinate to a county.
type Locator interface {
	// LocateCounty resolves the county for a street address. A nil County
	// with nil error means no match; callers treat that as a soft miss.
	LocateCounty(ctx context.Context, street, city, state, zip string) (*County, error)
}

// Option configures the census locator.
type Option func(*censusLocator)

// WithBaseURL sets a custom geographies endpoint (for testing).
func WithBaseURL(u string) Option {
	return func(l *censusLocator) {
		l.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(l *censusLocator) {
		l.http = hc
	}
}

// WithShapefileFallback consults a local county shapefile when the geocoder
// matches the address but returns no county layer.
func WithShapefileFallback(sf *ShapefileLocator) Option {
	return func(l *censusLocator) {
		l.fallback = sf
	}
}

type censusLocator struct {
	baseURL  string
	http     *http.Client
	fallback *ShapefileLocator
}

// NewCensusLocator creates a Locator backed by the free Census geocoder.
func NewCensusLocator(opts ...Option) Locator {
	l := &censusLocator{
		baseURL: censusGeographiesURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

type censusGeographiesResponse struct {
	Result struct {
		AddressMatches []struct {
			Coordinates struct {
				X float64 `json:"x"`
				Y float64 `json:"y"`
			} `json:"coordinates"`
			Geographies struct {
				Counties []struct {
					Name   string `json:"NAME"`
					GeoID  string `json:"GEOID"`
					State  string `json:"STATE"`
					County string `json:"COUNTY"`
				} `json:"Counties"`
			} `json:"geographies"`
		} `json:"addressMatches"`
	} `json:"result"`
}

func (l *censusLocator) LocateCounty(ctx context.Context, street, city, state, zip string) (*County, error) {
	params := url.Values{
		"address":   {formatOneLine(street, city, state, zip)},
		"benchmark": {censusBenchmark},
		"vintage":   {censusVintage},
		"layers":    {"Counties"},
		"format":    {"json"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geo: census build request")
	}

	resp, err := l.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geo: census request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(
				eris.Errorf("geo: census returned status %d", resp.StatusCode), resp.StatusCode)
		}
		return nil, eris.Errorf("geo: census returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geo: census read body")
	}

	var parsed censusGeographiesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "geo: census parse response")
	}

	if len(parsed.Result.AddressMatches) == 0 {
		return nil, nil
	}
	match := parsed.Result.AddressMatches[0]
	counties := match.Geographies.Counties
	if len(counties) == 0 {
		if l.fallback != nil {
			return l.fallback.Locate(match.Coordinates.Y, match.Coordinates.X), nil
		}
		return nil, nil
	}

	c := counties[0]
	return &County{
		Name:  c.Name,
		FIPS:  c.GeoID,
		State: c.State,
	}, nil
}

// formatOneLine joins the non-empty address parts for the Census API.
func formatOneLine(street, city, state, zip string) string {
	var nonEmpty []string
	for _, p := range []string{street, city, state, zip} {
		p = strings.TrimSpace(p)
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ", ")
}
