// Package enrich orchestrates a full valuation enrichment run: the
// authoritative lookup, area resolution, the multi-source scrape, and the
// text-mining fallback. Every stage is best-effort; a run always produces
// a bundle, and missing data shows up as cleared stage flags rather than
// errors.
package enrich

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/valuation-cli/internal/geo"
	"github.com/sells-group/valuation-cli/internal/model"
	"github.com/sells-group/valuation-cli/internal/resilience"
	"github.com/sells-group/valuation-cli/internal/sites"
	"github.com/sells-group/valuation-cli/internal/textmine"
	"github.com/sells-group/valuation-cli/pkg/attom"
	"github.com/sells-group/valuation-cli/pkg/search"
)

// Defaults for orchestration knobs; all overridable through options.
const (
	defaultRunTimeout     = 120 * time.Second
	defaultStageTimeout   = 15 * time.Second
	defaultMinComparables = 3
	defaultMaxComparables = 5
)

// Unit and suite designators are stripped before the authoritative lookup;
// the APIs match on the base street address.
var unitRe = regexp.MustCompile(`(?i)\s+(apt|unit|ste|suite|bldg|fl|floor|#)\b.*$`)

// AreaResolver resolves location hints to an area identifier.
type AreaResolver interface {
	Resolve(ctx context.Context, city, county, state, zip string) (model.AreaIdentifier, error)
}

// Aggregator runs the multi-source scrape and merges the snapshots.
type Aggregator interface {
	Aggregate(ctx context.Context, q sites.Query) model.ConsensusRecord
}

// Pipeline wires the stages together. Collaborators beyond the
// authoritative client are optional; a nil collaborator disables its
// stage silently.
type Pipeline struct {
	attom      attom.Client
	resolver   AreaResolver
	aggregator Aggregator
	searcher   search.Client
	extractor  *textmine.LLMExtractor
	county     geo.Locator

	runTimeout   time.Duration
	stageTimeout time.Duration
	minComps     int
	maxComps     int
}

// PipelineOption configures optional collaborators and knobs.
type PipelineOption func(*Pipeline)

// WithSearch enables the web-search fallback stage.
func WithSearch(c search.Client) PipelineOption {
	return func(p *Pipeline) { p.searcher = c }
}

// WithExtractor sets the comp extractor used on fallback text.
func WithExtractor(e *textmine.LLMExtractor) PipelineOption {
	return func(p *Pipeline) { p.extractor = e }
}

// WithCountyLocator enables county derivation when the caller supplied none.
func WithCountyLocator(l geo.Locator) PipelineOption {
	return func(p *Pipeline) { p.county = l }
}

// WithRunTimeout bounds a whole run.
func WithRunTimeout(d time.Duration) PipelineOption {
	return func(p *Pipeline) {
		if d > 0 {
			p.runTimeout = d
		}
	}
}

// WithStageTimeout bounds each authoritative call.
func WithStageTimeout(d time.Duration) PipelineOption {
	return func(p *Pipeline) {
		if d > 0 {
			p.stageTimeout = d
		}
	}
}

// WithComparableBounds sets the fallback trigger and the output cap.
func WithComparableBounds(minComps, maxComps int) PipelineOption {
	return func(p *Pipeline) {
		if minComps > 0 {
			p.minComps = minComps
		}
		if maxComps > 0 {
			p.maxComps = maxComps
		}
	}
}

// NewPipeline builds a pipeline around the required collaborators.
func NewPipeline(client attom.Client, resolver AreaResolver, aggregator Aggregator, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		attom:        client,
		resolver:     resolver,
		aggregator:   aggregator,
		extractor:    textmine.NewLLMExtractor(nil, ""),
		runTimeout:   defaultRunTimeout,
		stageTimeout: defaultStageTimeout,
		minComps:     defaultMinComparables,
		maxComps:     defaultMaxComparables,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one enrichment pass for the request. The returned bundle
// is always non-nil; an error is returned only when the run deadline or
// the caller's context expired before any stage could complete.
func (p *Pipeline) Run(ctx context.Context, req model.EnrichmentRequest) (*model.EnrichmentBundle, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, p.runTimeout)
	defer cancel()

	bundle := &model.EnrichmentBundle{
		RunID:     uuid.NewString(),
		Request:   req,
		CreatedAt: start.UTC(),
	}
	log := zap.L().With(zap.String("run_id", bundle.RunID), zap.String("address", req.Address))
	log.Info("enrichment run started")

	street := StripUnit(req.Address)
	city, county, state, zip := req.CityHint, req.CountyHint, req.StateHint, req.ZipHint

	p.authoritative(ctx, bundle, street, &city, &county, &state, &zip)
	if ctx.Err() != nil {
		return p.finish(bundle, start, log), ctx.Err()
	}

	if county == "" && p.county != nil {
		if c, err := p.county.LocateCounty(ctx, street, city, state, zip); err != nil {
			log.Warn("county derivation failed", zap.Error(err))
		} else if c != nil {
			county = c.Name
		}
	}

	p.resolveArea(ctx, bundle, city, county, state, zip)
	if ctx.Err() != nil {
		return p.finish(bundle, start, log), ctx.Err()
	}

	bundle.Stages.ScrapeAttempted = true
	bundle.Consensus = p.aggregator.Aggregate(ctx, sites.Query{
		Street: street,
		City:   city,
		State:  state,
		Zip:    zip,
	})

	if len(bundle.Comparables) < p.minComps {
		p.textFallback(ctx, bundle, street, city, state, zip, log)
	}

	return p.finish(bundle, start, log), nil
}

func (p *Pipeline) finish(bundle *model.EnrichmentBundle, start time.Time, log *zap.Logger) *model.EnrichmentBundle {
	bundle.DurationMS = time.Since(start).Milliseconds()
	log.Info("enrichment run finished",
		zap.Int("quality_score", bundle.Consensus.QualityScore),
		zap.Int("comparables", len(bundle.Comparables)),
		zap.Int64("duration_ms", bundle.DurationMS),
	)
	return bundle
}

// authoritative runs the property, AVM, area-stats, and comparables
// lookups. Identity fields confirmed by the property record backfill the
// location hints for the later stages.
func (p *Pipeline) authoritative(ctx context.Context, bundle *model.EnrichmentBundle, street string, city, county, state, zip *string) {
	prop, err := p.stageProperty(ctx, street, *city, *state, *zip)
	switch {
	case err != nil:
		zap.L().Warn("authoritative property lookup failed", zap.Error(err))
	case prop != nil:
		bundle.Stages.AuthoritativeProperty = true
		bundle.Authoritative = snapshotFromProperty(prop)
		if *city == "" {
			*city = prop.City
		}
		if *county == "" {
			*county = prop.County
		}
		if *state == "" {
			*state = prop.State
		}
		if *zip == "" {
			*zip = prop.Zip
		}
	}

	if avm, err := p.stageAVM(ctx, street, *city, *state, *zip); err != nil {
		zap.L().Warn("avm lookup failed", zap.Error(err))
	} else if avm != nil {
		bundle.Stages.AuthoritativeAVM = true
		bundle.AVM = &model.AVM{
			EstimatedValue:  avm.EstimatedValue,
			ConfidenceScore: avm.ConfidenceScore,
			ValueLow:        avm.ValueLow,
			ValueHigh:       avm.ValueHigh,
			AsOfDate:        avm.AsOfDate,
		}
	}

	if *zip != "" {
		if stats, err := p.stageAreaStats(ctx, *zip); err != nil {
			zap.L().Warn("area stats lookup failed", zap.Error(err))
		} else if stats != nil {
			bundle.Stages.AuthoritativeArea = true
			bundle.AreaStats = &model.AreaStats{
				Zip:                   stats.Zip,
				MedianHomeValue:       stats.MedianHomeValue,
				MedianHouseholdIncome: stats.MedianHouseholdIncome,
				Population:            stats.Population,
			}
		}
	}

	if comps, err := p.stageComparables(ctx, street, *city, *state); err != nil {
		zap.L().Warn("comparables lookup failed", zap.Error(err))
	} else {
		bundle.Comparables = appendComparables(bundle.Comparables, authoritativeComps(comps, street), p.maxComps)
	}
}

// resolveArea resolves the area identifier and fetches the trend series
// for it, falling back to zip-level trends when the resolved area has no
// v4 geography.
func (p *Pipeline) resolveArea(ctx context.Context, bundle *model.EnrichmentBundle, city, county, state, zip string) {
	id, err := p.resolver.Resolve(ctx, city, county, state, zip)
	if err != nil {
		zap.L().Warn("area resolution failed", zap.Error(err))
		return
	}
	bundle.Stages.AreaResolved = true
	bundle.Area = &id

	var trends *attom.SalesTrends
	if id.Granularity != model.GranularityPostal {
		trends, err = p.stageTrends(ctx, func(ctx context.Context) (*attom.SalesTrends, error) {
			return p.attom.GetSalesTrends(ctx, id.ID, "")
		})
		if err != nil {
			zap.L().Warn("sales trends lookup failed", zap.Error(err))
		}
	}
	if trends == nil && zip != "" {
		trends, err = p.stageTrends(ctx, func(ctx context.Context) (*attom.SalesTrends, error) {
			return p.attom.GetSalesTrendsByZip(ctx, zip, "")
		})
		if err != nil {
			zap.L().Warn("zip sales trends lookup failed", zap.Error(err))
		}
	}
	if trends == nil || len(trends.Points) == 0 {
		return
	}

	bundle.Stages.SalesTrends = true
	points := make([]model.TrendPoint, len(trends.Points))
	for i, tp := range trends.Points {
		points[i] = model.TrendPoint{
			Period:      tp.Period,
			MedianPrice: tp.MedianPrice,
			AvgPrice:    tp.AveragePrice,
			SaleCount:   tp.HomeSales,
		}
	}
	bundle.Trends = &model.AreaTrends{
		Area:     bundle.Area,
		Interval: trends.Interval,
		Points:   points,
	}
}

// textFallback mines comparables out of web-search snippets when the
// structured sources came up short. Skipped silently without a search
// client.
func (p *Pipeline) textFallback(ctx context.Context, bundle *model.EnrichmentBundle, street, city, state, zip string, log *zap.Logger) {
	if p.searcher == nil {
		log.Debug("web search not configured, skipping text fallback")
		return
	}

	query := strings.TrimSpace(strings.Join([]string{street, city, state, zip}, " ")) +
		" recently sold homes comparable sales prices"
	bundle.Stages.WebSearch = true
	results, err := p.searcher.Search(ctx, query)
	if err != nil {
		log.Warn("fallback web search failed", zap.Error(err))
		return
	}
	text := search.FormatSnippets(results)
	if text == "" {
		return
	}

	bundle.Stages.TextFallback = true
	mined := p.extractor.Extract(ctx, textmine.Subject{
		Address: street,
		City:    city,
		State:   state,
		Zip:     zip,
	}, text)
	bundle.Comparables = appendComparables(bundle.Comparables, mined, p.maxComps)
}

// Per-call helpers: each authoritative call gets its own deadline and one
// immediate retry on transient failure.

func (p *Pipeline) stageProperty(ctx context.Context, street, city, state, zip string) (*attom.Property, error) {
	ctx, cancel := context.WithTimeout(ctx, p.stageTimeout)
	defer cancel()
	cfg := resilience.Once()
	cfg.OnRetry = resilience.RetryLogger("attom", "property search")
	prop, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*attom.Property, error) {
		return p.attom.SearchProperty(ctx, street, city, state, zip)
	})
	if attom.IsNotFound(err) {
		return nil, nil
	}
	return prop, err
}

func (p *Pipeline) stageAVM(ctx context.Context, street, city, state, zip string) (*attom.AVM, error) {
	ctx, cancel := context.WithTimeout(ctx, p.stageTimeout)
	defer cancel()
	cfg := resilience.Once()
	cfg.OnRetry = resilience.RetryLogger("attom", "avm")
	avm, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*attom.AVM, error) {
		return p.attom.GetAVM(ctx, street, city, state, zip)
	})
	if attom.IsNotFound(err) {
		return nil, nil
	}
	return avm, err
}

func (p *Pipeline) stageAreaStats(ctx context.Context, zip string) (*attom.AreaStats, error) {
	ctx, cancel := context.WithTimeout(ctx, p.stageTimeout)
	defer cancel()
	cfg := resilience.Once()
	cfg.OnRetry = resilience.RetryLogger("attom", "area stats")
	stats, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*attom.AreaStats, error) {
		return p.attom.GetAreaStats(ctx, zip)
	})
	if attom.IsNotFound(err) {
		return nil, nil
	}
	return stats, err
}

func (p *Pipeline) stageComparables(ctx context.Context, street, city, state string) ([]attom.Comparable, error) {
	ctx, cancel := context.WithTimeout(ctx, p.stageTimeout)
	defer cancel()
	cfg := resilience.Once()
	cfg.OnRetry = resilience.RetryLogger("attom", "comparables")
	comps, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]attom.Comparable, error) {
		return p.attom.GetComparables(ctx, street, city, state, p.maxComps)
	})
	if attom.IsNotFound(err) {
		return nil, nil
	}
	return comps, err
}

func (p *Pipeline) stageTrends(ctx context.Context, fetch func(ctx context.Context) (*attom.SalesTrends, error)) (*attom.SalesTrends, error) {
	ctx, cancel := context.WithTimeout(ctx, p.stageTimeout)
	defer cancel()
	cfg := resilience.Once()
	cfg.OnRetry = resilience.RetryLogger("attom", "sales trends")
	trends, err := resilience.DoVal(ctx, cfg, fetch)
	if attom.IsNotFound(err) {
		return nil, nil
	}
	return trends, err
}

// StripUnit removes a trailing unit or suite designator from a street
// address.
func StripUnit(address string) string {
	return strings.TrimSpace(unitRe.ReplaceAllString(address, ""))
}

func snapshotFromProperty(p *attom.Property) *model.PropertySnapshot {
	return &model.PropertySnapshot{
		Source:       "attom",
		Address:      p.Address,
		City:         p.City,
		State:        p.State,
		Zip:          p.Zip,
		Bedrooms:     p.Bedrooms,
		Bathrooms:    p.Bathrooms,
		SquareFeet:   p.SquareFeet,
		YearBuilt:    p.YearBuilt,
		PropertyType: p.PropertyType,
		Price:        p.LastSalePrice,
	}
}

// authoritativeComps converts API comparables, dropping the subject
// property itself and anything that fails the minimum-signal bar.
func authoritativeComps(comps []attom.Comparable, subjectStreet string) []model.ComparableSale {
	subject := strings.ToLower(strings.TrimSpace(subjectStreet))
	out := make([]model.ComparableSale, 0, len(comps))
	for _, c := range comps {
		if subject != "" && strings.HasPrefix(strings.ToLower(c.Address), subject) {
			continue
		}
		comp := model.ComparableSale{
			Address:    c.Address,
			Bedrooms:   c.Bedrooms,
			Bathrooms:  c.Bathrooms,
			SquareFeet: c.SquareFeet,
			SalePrice:  c.LastSalePrice,
			SaleDate:   c.LastSaleDate,
			Provenance: model.ProvenanceAuthoritative,
		}
		if !comp.Valid() {
			continue
		}
		out = append(out, comp)
	}
	return out
}

// appendComparables merges new comps into the existing set, deduplicating
// case-insensitively by address and capping the result.
func appendComparables(existing, incoming []model.ComparableSale, limit int) []model.ComparableSale {
	seen := make(map[string]bool, len(existing))
	for _, c := range existing {
		seen[strings.ToLower(strings.TrimSpace(c.Address))] = true
	}
	for _, c := range incoming {
		if len(existing) >= limit {
			break
		}
		key := strings.ToLower(strings.TrimSpace(c.Address))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		existing = append(existing, c)
	}
	return existing
}
