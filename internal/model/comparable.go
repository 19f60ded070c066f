package model

// Provenance tags where a comparable sale was recovered from.
type Provenance string

const (
	ProvenanceAuthoritative Provenance = "authoritative"
	ProvenanceAdapter       Provenance = "adapter"
	ProvenanceTextMined     Provenance = "text-mined"
)

// ComparableSale is one recently sold property used to estimate the
// subject's value.
type ComparableSale struct {
	Address    string     `json:"address"`
	Bedrooms   *int       `json:"bedrooms,omitempty"`
	Bathrooms  *float64   `json:"bathrooms,omitempty"`
	SquareFeet *int       `json:"square_feet,omitempty"`
	SalePrice  *int       `json:"sale_price,omitempty"`
	SaleDate   string     `json:"sale_date,omitempty"`
	ListingURL string     `json:"listing_url,omitempty"`
	Provenance Provenance `json:"provenance"`
}

// Valid reports whether the record meets the minimum bar for a usable comp:
// an address plus at least one of price, date, URL, or square footage.
// Invalid records are discarded, never stored.
func (c ComparableSale) Valid() bool {
	if c.Address == "" {
		return false
	}
	return c.SalePrice != nil || c.SaleDate != "" || c.ListingURL != "" || c.SquareFeet != nil
}
