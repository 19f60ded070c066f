package model

import "time"

// StageFlags records which pipeline stages produced data for a run. Absent
// data is reported here, never synthesized into the bundle.
type StageFlags struct {
	AuthoritativeProperty bool `json:"authoritative_property"`
	AuthoritativeAVM      bool `json:"authoritative_avm"`
	AuthoritativeArea     bool `json:"authoritative_area"`
	AreaResolved          bool `json:"area_resolved"`
	SalesTrends           bool `json:"sales_trends"`
	ScrapeAttempted       bool `json:"scrape_attempted"`
	WebSearch             bool `json:"web_search"`
	TextFallback          bool `json:"text_fallback"`
}

// EnrichmentRequest is the caller-supplied input to one pipeline run.
type EnrichmentRequest struct {
	Address    string `json:"address"`
	CityHint   string `json:"city,omitempty"`
	CountyHint string `json:"county,omitempty"`
	StateHint  string `json:"state,omitempty"`
	ZipHint    string `json:"zip,omitempty"`
}

// EnrichmentBundle is the pipeline's final output for one property. It is
// created fresh per run and not mutated after the pipeline returns. A
// bundle is always valid; degraded results are visible through the quality
// score and stage flags rather than through errors.
type EnrichmentBundle struct {
	RunID   string            `json:"run_id"`
	Request EnrichmentRequest `json:"request"`

	Authoritative *PropertySnapshot `json:"authoritative,omitempty"`
	AVM           *AVM              `json:"avm,omitempty"`
	AreaStats     *AreaStats        `json:"area_stats,omitempty"`
	Area          *AreaIdentifier   `json:"area,omitempty"`
	Trends        *AreaTrends       `json:"trends,omitempty"`

	Consensus   ConsensusRecord  `json:"consensus"`
	Comparables []ComparableSale `json:"comparables,omitempty"`

	Stages     StageFlags `json:"stages"`
	CreatedAt  time.Time  `json:"created_at"`
	DurationMS int64      `json:"duration_ms"`
}
