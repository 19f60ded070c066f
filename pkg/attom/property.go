package attom

import (
	"context"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"
)

// Property is the normalized authoritative view of one parcel.
type Property struct {
	AttomID       int64    `json:"attom_id,omitempty"`
	APN           string   `json:"apn,omitempty"`
	FIPS          string   `json:"fips,omitempty"`
	Address       string   `json:"address,omitempty"`
	City          string   `json:"city,omitempty"`
	State         string   `json:"state,omitempty"`
	Zip           string   `json:"zip,omitempty"`
	County        string   `json:"county,omitempty"`
	PropertyType  string   `json:"property_type,omitempty"`
	YearBuilt     *int     `json:"year_built,omitempty"`
	Bedrooms      *int     `json:"bedrooms,omitempty"`
	Bathrooms     *float64 `json:"bathrooms,omitempty"`
	SquareFeet    *int     `json:"square_feet,omitempty"`
	LotSize       *float64 `json:"lot_size,omitempty"`
	LastSaleDate  string   `json:"last_sale_date,omitempty"`
	LastSalePrice *int     `json:"last_sale_price,omitempty"`
	AssessedValue *int     `json:"assessed_value,omitempty"`
}

// AVM is an automated valuation estimate with confidence and range.
type AVM struct {
	EstimatedValue  *int     `json:"estimated_value,omitempty"`
	ConfidenceScore *float64 `json:"confidence_score,omitempty"`
	ValueLow        *int     `json:"value_range_low,omitempty"`
	ValueHigh       *int     `json:"value_range_high,omitempty"`
	FSD             *float64 `json:"fsd,omitempty"`
	AsOfDate        string   `json:"as_of_date,omitempty"`
}

// AreaStats holds neighborhood statistics for a ZIP code.
type AreaStats struct {
	Zip                   string `json:"zip"`
	MedianHomeValue       *int   `json:"median_home_value,omitempty"`
	MedianHouseholdIncome *int   `json:"median_household_income,omitempty"`
	Population            *int   `json:"population,omitempty"`
}

// Comparable is a nearby sold property usable as a valuation comp.
type Comparable struct {
	AttomID       int64    `json:"attom_id,omitempty"`
	Address       string   `json:"address,omitempty"`
	Bedrooms      *int     `json:"bedrooms,omitempty"`
	Bathrooms     *float64 `json:"bathrooms,omitempty"`
	SquareFeet    *int     `json:"square_feet,omitempty"`
	YearBuilt     *int     `json:"year_built,omitempty"`
	LastSaleDate  string   `json:"last_sale_date,omitempty"`
	LastSalePrice *int     `json:"last_sale_price,omitempty"`
}

// Wire-format structs. ATTOM nests heavily; only the fields the pipeline
// consumes are mapped.

type envelope struct {
	Status struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	} `json:"status"`
	Property []rawProperty `json:"property"`
	Area     []rawArea     `json:"area"`
}

type rawProperty struct {
	Identifier struct {
		AttomID int64  `json:"attomId"`
		APN     string `json:"apn"`
		FIPS    string `json:"fips"`
	} `json:"identifier"`
	Address struct {
		Line1       string `json:"line1"`
		OneLine     string `json:"oneLine"`
		Locality    string `json:"locality"`
		CountrySubd string `json:"countrySubd"`
		Postal1     string `json:"postal1"`
		County      string `json:"county"`
	} `json:"address"`
	Summary struct {
		PropType string `json:"proptype"`
	} `json:"summary"`
	Building struct {
		Summary struct {
			YearBuilt *int `json:"yearbuilt"`
		} `json:"summary"`
		Rooms struct {
			Beds       *int     `json:"beds"`
			BathsTotal *float64 `json:"bathstotal"`
		} `json:"rooms"`
		Size struct {
			UniversalSize *int `json:"universalsize"`
		} `json:"size"`
	} `json:"building"`
	Lot struct {
		LotSize1 *float64 `json:"lotsize1"`
	} `json:"lot"`
	Sale struct {
		SaleTransDate   string `json:"saleTransDate"`
		SaleAmtStndUnit *int   `json:"saleAmtStndUnit"`
	} `json:"sale"`
	Assessment struct {
		Assessed struct {
			AssdTtlValue *int `json:"assdttlvalue"`
		} `json:"assessed"`
	} `json:"assessment"`
	AVM struct {
		Amount struct {
			Value *int `json:"value"`
			Low   *int `json:"low"`
			High  *int `json:"high"`
		} `json:"amount"`
		ConfidenceScore struct {
			Score *float64 `json:"score"`
		} `json:"confidenceScore"`
		FSD       *float64 `json:"fsd"`
		EventDate string   `json:"eventDate"`
	} `json:"avm"`
}

type rawArea struct {
	MedianHomeValue       *int `json:"medianHomeValue"`
	MedianHouseholdIncome *int `json:"medianHouseholdIncome"`
	Population            *int `json:"population"`
}

func (p rawProperty) toProperty() *Property {
	addr := p.Address.Line1
	if addr == "" {
		addr = p.Address.OneLine
	}
	return &Property{
		AttomID:       p.Identifier.AttomID,
		APN:           p.Identifier.APN,
		FIPS:          p.Identifier.FIPS,
		Address:       addr,
		City:          p.Address.Locality,
		State:         p.Address.CountrySubd,
		Zip:           p.Address.Postal1,
		County:        p.Address.County,
		PropertyType:  p.Summary.PropType,
		YearBuilt:     p.Building.Summary.YearBuilt,
		Bedrooms:      p.Building.Rooms.Beds,
		Bathrooms:     p.Building.Rooms.BathsTotal,
		SquareFeet:    p.Building.Size.UniversalSize,
		LotSize:       p.Lot.LotSize1,
		LastSaleDate:  p.Sale.SaleTransDate,
		LastSalePrice: p.Sale.SaleAmtStndUnit,
		AssessedValue: p.Assessment.Assessed.AssdTtlValue,
	}
}

// addressParams builds the address1/address2 query shape the API expects.
func addressParams(street, city, state, zip string) url.Values {
	params := url.Values{"address1": {street}}
	address2 := city
	if state != "" {
		if address2 != "" {
			address2 += ", " + state
		} else {
			address2 = state
		}
	}
	if address2 != "" {
		params.Set("address2", address2)
	}
	if zip != "" {
		params.Set("postalcode", zip)
	}
	return params
}

func (c *httpClient) SearchProperty(ctx context.Context, street, city, state, zip string) (*Property, error) {
	var env envelope
	err := c.getJSON(ctx, c.baseURL+"/property/basicprofile", addressParams(street, city, state, zip), &env)
	if err != nil {
		return nil, err
	}
	if env.Status.Code != 0 {
		return nil, eris.Errorf("attom: search failed: %s", env.Status.Msg)
	}
	if len(env.Property) == 0 {
		return nil, ErrNotFound
	}
	return env.Property[0].toProperty(), nil
}

func (c *httpClient) GetAVM(ctx context.Context, street, city, state, zip string) (*AVM, error) {
	var env envelope
	err := c.getJSON(ctx, c.baseURL+"/property/avm", addressParams(street, city, state, zip), &env)
	if err != nil {
		return nil, err
	}
	if env.Status.Code != 0 {
		return nil, eris.Errorf("attom: avm failed: %s", env.Status.Msg)
	}
	if len(env.Property) == 0 {
		return nil, ErrNotFound
	}
	raw := env.Property[0].AVM
	return &AVM{
		EstimatedValue:  raw.Amount.Value,
		ConfidenceScore: raw.ConfidenceScore.Score,
		ValueLow:        raw.Amount.Low,
		ValueHigh:       raw.Amount.High,
		FSD:             raw.FSD,
		AsOfDate:        raw.EventDate,
	}, nil
}

func (c *httpClient) GetAreaStats(ctx context.Context, zip string) (*AreaStats, error) {
	var env envelope
	err := c.getJSON(ctx, c.baseURL+"/area/full", url.Values{"postalcode": {zip}}, &env)
	if err != nil {
		return nil, err
	}
	if env.Status.Code != 0 {
		return nil, eris.Errorf("attom: area stats failed: %s", env.Status.Msg)
	}
	if len(env.Area) == 0 {
		return nil, ErrNotFound
	}
	a := env.Area[0]
	return &AreaStats{
		Zip:                   zip,
		MedianHomeValue:       a.MedianHomeValue,
		MedianHouseholdIncome: a.MedianHouseholdIncome,
		Population:            a.Population,
	}, nil
}

func (c *httpClient) GetComparables(ctx context.Context, street, city, state string, maxResults int) ([]Comparable, error) {
	if maxResults <= 0 {
		maxResults = 10
	}
	params := addressParams(street, city, state, "")
	params.Set("radius", "0.5")
	params.Set("orderby", "distance")
	params.Set("pagesize", strconv.Itoa(maxResults))

	var env envelope
	err := c.getJSON(ctx, c.baseURL+"/property/expandedprofile", params, &env)
	if err != nil {
		return nil, err
	}
	if env.Status.Code != 0 {
		return nil, eris.Errorf("attom: comparables failed: %s", env.Status.Msg)
	}

	comps := make([]Comparable, 0, len(env.Property))
	for i, p := range env.Property {
		if i >= maxResults {
			break
		}
		addr := p.Address.OneLine
		if addr == "" {
			addr = p.Address.Line1
		}
		comps = append(comps, Comparable{
			AttomID:       p.Identifier.AttomID,
			Address:       addr,
			Bedrooms:      p.Building.Rooms.Beds,
			Bathrooms:     p.Building.Rooms.BathsTotal,
			SquareFeet:    p.Building.Size.UniversalSize,
			YearBuilt:     p.Building.Summary.YearBuilt,
			LastSaleDate:  p.Sale.SaleTransDate,
			LastSalePrice: p.Sale.SaleAmtStndUnit,
		})
	}
	return comps, nil
}
