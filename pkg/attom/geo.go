package attom

import (
	"context"
	"net/url"

	"github.com/rotisserie/eris"
)

// Geography is one entry from the v4 location lookup, keyed by the
// geoIdV4 identifier that the sales-trend endpoints take.
type Geography struct {
	GeoIDV4 string `json:"geo_id_v4"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	State   string `json:"state,omitempty"`
}

// SalesTrends is a series of periodic market aggregates for an area.
type SalesTrends struct {
	GeoID    string       `json:"geo_id,omitempty"`
	Interval string       `json:"interval,omitempty"`
	Points   []TrendPoint `json:"points"`
}

// TrendPoint is one period of sales activity.
type TrendPoint struct {
	Period       string `json:"period"`
	HomeSales    *int   `json:"home_sales,omitempty"`
	AveragePrice *int   `json:"average_price,omitempty"`
	MedianPrice  *int   `json:"median_price,omitempty"`
}

type geoEnvelope struct {
	Status struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	} `json:"status"`
	Geographies []struct {
		GeoIDV4                   string `json:"geoIdV4"`
		Name                      string `json:"name"`
		GeographyTypeAbbreviation string `json:"geographyTypeAbbreviation"`
		StateAbbreviation         string `json:"stateAbbreviation"`
	} `json:"geographies"`
}

type trendEnvelope struct {
	Status struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	} `json:"status"`
	SalesTrends []struct {
		DateRange struct {
			Start string `json:"start"`
			End   string `json:"end"`
		} `json:"dateRange"`
		SalesTrend struct {
			HomeSaleCount *int `json:"homeSaleCount"`
			AvgSalePrice  *int `json:"avgSalePrice"`
			MedSalePrice  *int `json:"medSalePrice"`
		} `json:"salesTrend"`
	} `json:"salesTrends"`
}

// LookupGeography resolves an area name to candidate geoIdV4 entries.
// An empty result is a valid answer, not an error.
func (c *httpClient) LookupGeography(ctx context.Context, name, typeAbbreviation, state string) ([]Geography, error) {
	params := url.Values{
		"name":                      {name},
		"geographyTypeAbbreviation": {typeAbbreviation},
	}
	if state != "" {
		params.Set("stateAbbreviation", state)
	}

	var env geoEnvelope
	err := c.getJSON(ctx, c.v4URL+"/location/lookup", params, &env)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if env.Status.Code != 0 {
		return nil, eris.Errorf("attom: geography lookup failed: %s", env.Status.Msg)
	}

	geos := make([]Geography, 0, len(env.Geographies))
	for _, g := range env.Geographies {
		geos = append(geos, Geography{
			GeoIDV4: g.GeoIDV4,
			Name:    g.Name,
			Type:    g.GeographyTypeAbbreviation,
			State:   g.StateAbbreviation,
		})
	}
	return geos, nil
}

// GetSalesTrends fetches periodic sales aggregates for a geoIdV4 area.
func (c *httpClient) GetSalesTrends(ctx context.Context, geoID, interval string) (*SalesTrends, error) {
	if interval == "" {
		interval = "yearly"
	}
	params := url.Values{
		"geoIdV4":  {geoID},
		"interval": {interval},
	}
	var env trendEnvelope
	err := c.getJSON(ctx, c.v4URL+"/transaction/salestrend", params, &env)
	if err != nil {
		return nil, err
	}
	if env.Status.Code != 0 {
		return nil, eris.Errorf("attom: sales trends failed: %s", env.Status.Msg)
	}
	return env.toTrends(geoID, interval), nil
}

// GetSalesTrendsByZip fetches sales aggregates keyed by postal code, as a
// fallback when no geoIdV4 could be resolved.
func (c *httpClient) GetSalesTrendsByZip(ctx context.Context, zip, interval string) (*SalesTrends, error) {
	if interval == "" {
		interval = "yearly"
	}
	params := url.Values{
		"postalcode": {zip},
		"interval":   {interval},
	}
	var env trendEnvelope
	err := c.getJSON(ctx, c.v4URL+"/transaction/salestrend/snapshot", params, &env)
	if err != nil {
		return nil, err
	}
	if env.Status.Code != 0 {
		return nil, eris.Errorf("attom: sales trends failed: %s", env.Status.Msg)
	}
	return env.toTrends(zip, interval), nil
}

func (env *trendEnvelope) toTrends(geoID, interval string) *SalesTrends {
	out := &SalesTrends{GeoID: geoID, Interval: interval}
	for _, t := range env.SalesTrends {
		period := t.DateRange.Start
		if t.DateRange.End != "" {
			period = t.DateRange.End
		}
		out.Points = append(out.Points, TrendPoint{
			Period:       period,
			HomeSales:    t.SalesTrend.HomeSaleCount,
			AveragePrice: t.SalesTrend.AvgSalePrice,
			MedianPrice:  t.SalesTrend.MedSalePrice,
		})
	}
	return out
}
