// Package sites holds the listing-site adapters and the shared fetch and
// extraction machinery they are built on. Adapters are tolerant by
// contract: total failure yields an empty snapshot carrying only the
// source tag, never an error.
package sites

import (
	"context"

	"github.com/sells-group/valuation-cli/internal/model"
)

// Query identifies the subject property for a site lookup. Borough serves
// the NYC sites, where the "city" is often a neighborhood.
type Query struct {
	Street  string
	City    string
	State   string
	Zip     string
	Borough string
}

// Adapter is one listing site. Priority orders consensus tie-breaks;
// lower wins.
type Adapter interface {
	Name() string
	Priority() int
	Fetch(ctx context.Context, q Query) model.PropertySnapshot
}

// DefaultAdapters builds the standard three-site adapter set sharing one
// tolerant fetcher, with any YAML overrides applied.
func DefaultAdapters(f *Fetcher, cfg SiteConfig) []Adapter {
	all := []Adapter{
		NewZillow(f, cfg.ForSite("zillow")),
		NewRedfin(f, cfg.ForSite("redfin")),
		NewStreetEasy(f, cfg.ForSite("streeteasy")),
	}
	enabled := make([]Adapter, 0, len(all))
	for _, a := range all {
		if ov := cfg.ForSite(a.Name()); ov.Enabled != nil && !*ov.Enabled {
			continue
		}
		enabled = append(enabled, a)
	}
	return enabled
}
