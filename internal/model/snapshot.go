// Package model defines the core domain types shared across the valuation
// enrichment pipeline: per-source property snapshots, the aggregated
// consensus record, comparable sales, and the final enrichment bundle.
package model

import "time"

// Source identifiers for the three listing-site adapters. Priority order is
// zillow > redfin > streeteasy; consensus tie-breaks follow this order.
const (
	SourceZillow     = "zillow"
	SourceRedfin     = "redfin"
	SourceStreetEasy = "streeteasy"
)

// PropertySnapshot is one source's normalized view of a property. Every
// field except Source is optional: absence means "unknown", never zero,
// which is why the numeric fields are pointers.
type PropertySnapshot struct {
	Source       string   `json:"source"`
	Address      string   `json:"address,omitempty"`
	City         string   `json:"city,omitempty"`
	State        string   `json:"state,omitempty"`
	Zip          string   `json:"zip,omitempty"`
	Bedrooms     *int     `json:"bedrooms,omitempty"`
	Bathrooms    *float64 `json:"bathrooms,omitempty"`
	SquareFeet   *int     `json:"square_feet,omitempty"`
	YearBuilt    *int     `json:"year_built,omitempty"`
	PropertyType string   `json:"property_type,omitempty"`
	Price        *int     `json:"price,omitempty"`
	ListingURL   string   `json:"listing_url,omitempty"`
}

// HasSignal reports whether the snapshot carries at least one strong signal
// (price, listing URL, or address). Snapshots without a signal are treated
// as noise and excluded from aggregation.
func (s PropertySnapshot) HasSignal() bool {
	return s.Price != nil || s.ListingURL != "" || s.Address != ""
}

// Completeness returns the fraction of the four core fields (price,
// bedrooms, bathrooms, square feet) that are populated.
func (s PropertySnapshot) Completeness() float64 {
	n := 0
	if s.Price != nil {
		n++
	}
	if s.Bedrooms != nil {
		n++
	}
	if s.Bathrooms != nil {
		n++
	}
	if s.SquareFeet != nil {
		n++
	}
	return float64(n) / 4.0
}

// ConsensusRecord is the coordinator's merged view across all contributing
// snapshots. Categorical fields carry the mode, numeric fields the median.
// SourceCount always equals len(SourcesAvailable); QualityScore is
// deterministic for a given snapshot set.
type ConsensusRecord struct {
	Address      string   `json:"address,omitempty"`
	City         string   `json:"city,omitempty"`
	State        string   `json:"state,omitempty"`
	Zip          string   `json:"zip,omitempty"`
	Bedrooms     *int     `json:"bedrooms,omitempty"`
	Bathrooms    *float64 `json:"bathrooms,omitempty"`
	SquareFeet   *int     `json:"square_feet,omitempty"`
	YearBuilt    *int     `json:"year_built,omitempty"`
	PropertyType string   `json:"property_type,omitempty"`

	PriceConsensus *int `json:"price_consensus,omitempty"`
	PriceLow       *int `json:"price_low,omitempty"`
	PriceHigh      *int `json:"price_high,omitempty"`
	PriceAverage   *int `json:"price_average,omitempty"`

	Snapshots        []PropertySnapshot `json:"snapshots,omitempty"`
	SourceCount      int                `json:"source_count"`
	SourcesAvailable []string           `json:"sources_available,omitempty"`
	QualityScore     int                `json:"quality_score"`
	ScrapedAt        time.Time          `json:"scraped_at"`
}
