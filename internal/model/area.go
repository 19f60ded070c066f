package model

// Granularity is the geographic specificity of a resolved area identifier.
type Granularity string

const (
	GranularityCity   Granularity = "city"
	GranularityCounty Granularity = "county"
	GranularityPostal Granularity = "postal"
)

// AreaIdentifier is a resolved geographic key used to query area-scoped
// trend data. It lives for a single enrichment run and is never persisted.
type AreaIdentifier struct {
	Granularity Granularity `json:"granularity"`
	ID          string      `json:"id"`
	Name        string      `json:"name,omitempty"`
}

// AVM is an automated valuation estimate from the authoritative source.
type AVM struct {
	EstimatedValue  *int     `json:"estimated_value,omitempty"`
	ConfidenceScore *float64 `json:"confidence_score,omitempty"`
	ValueLow        *int     `json:"value_range_low,omitempty"`
	ValueHigh       *int     `json:"value_range_high,omitempty"`
	AsOfDate        string   `json:"as_of_date,omitempty"`
}

// AreaStats holds neighborhood-level statistics for the subject's area.
type AreaStats struct {
	Zip                   string `json:"zip,omitempty"`
	MedianHomeValue       *int   `json:"median_home_value,omitempty"`
	MedianHouseholdIncome *int   `json:"median_household_income,omitempty"`
	Population            *int   `json:"population,omitempty"`
}

// TrendPoint is one interval of area sales-trend data.
type TrendPoint struct {
	Period      string `json:"period,omitempty"`
	MedianPrice *int   `json:"median_price,omitempty"`
	AvgPrice    *int   `json:"avg_price,omitempty"`
	SaleCount   *int   `json:"sale_count,omitempty"`
}

// AreaTrends holds the sales-trend series for a resolved area.
type AreaTrends struct {
	Area     *AreaIdentifier `json:"area,omitempty"`
	Interval string          `json:"interval,omitempty"`
	Points   []TrendPoint    `json:"points,omitempty"`
}
