package enrich

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/valuation-cli/internal/consensus"
	"github.com/sells-group/valuation-cli/internal/geo"
	"github.com/sells-group/valuation-cli/internal/model"
	"github.com/sells-group/valuation-cli/internal/sites"
	"github.com/sells-group/valuation-cli/pkg/attom"
	"github.com/sells-group/valuation-cli/pkg/search"
)

func intp(v int) *int           { return &v }
func floatp(v float64) *float64 { return &v }

// mockAttom lets each test program only the calls it cares about; the
// rest answer not-found.
type mockAttom struct {
	property    func(street, city, state, zip string) (*attom.Property, error)
	avm         func() (*attom.AVM, error)
	areaStats   func(zip string) (*attom.AreaStats, error)
	comparables func() ([]attom.Comparable, error)
	geography   func(name, typeAbbr, state string) ([]attom.Geography, error)
	trends      func(geoID string) (*attom.SalesTrends, error)
	trendsByZip func(zip string) (*attom.SalesTrends, error)
}

func (m *mockAttom) SearchProperty(_ context.Context, street, city, state, zip string) (*attom.Property, error) {
	if m.property == nil {
		return nil, attom.ErrNotFound
	}
	return m.property(street, city, state, zip)
}

func (m *mockAttom) GetAVM(context.Context, string, string, string, string) (*attom.AVM, error) {
	if m.avm == nil {
		return nil, attom.ErrNotFound
	}
	return m.avm()
}

func (m *mockAttom) GetAreaStats(_ context.Context, zip string) (*attom.AreaStats, error) {
	if m.areaStats == nil {
		return nil, attom.ErrNotFound
	}
	return m.areaStats(zip)
}

func (m *mockAttom) GetComparables(context.Context, string, string, string, int) ([]attom.Comparable, error) {
	if m.comparables == nil {
		return nil, attom.ErrNotFound
	}
	return m.comparables()
}

func (m *mockAttom) LookupGeography(_ context.Context, name, typeAbbr, state string) ([]attom.Geography, error) {
	if m.geography == nil {
		return nil, nil
	}
	return m.geography(name, typeAbbr, state)
}

func (m *mockAttom) GetSalesTrends(_ context.Context, geoID, _ string) (*attom.SalesTrends, error) {
	if m.trends == nil {
		return nil, attom.ErrNotFound
	}
	return m.trends(geoID)
}

func (m *mockAttom) GetSalesTrendsByZip(_ context.Context, zip, _ string) (*attom.SalesTrends, error) {
	if m.trendsByZip == nil {
		return nil, attom.ErrNotFound
	}
	return m.trendsByZip(zip)
}

type stubResolver struct {
	id     model.AreaIdentifier
	err    error
	city   string
	county string
}

func (s *stubResolver) Resolve(_ context.Context, city, county, _, _ string) (model.AreaIdentifier, error) {
	s.city, s.county = city, county
	return s.id, s.err
}

type stubAggregator struct {
	record model.ConsensusRecord
}

func (s *stubAggregator) Aggregate(context.Context, sites.Query) model.ConsensusRecord {
	return s.record
}

type stubSearcher struct {
	results []search.Result
	err     error
	queries []string
}

func (s *stubSearcher) Search(_ context.Context, query string, _ ...search.SearchOption) ([]search.Result, error) {
	s.queries = append(s.queries, query)
	return s.results, s.err
}

type stubLocator struct {
	county *geo.County
	err    error
	called bool
}

func (s *stubLocator) LocateCounty(context.Context, string, string, string, string) (*geo.County, error) {
	s.called = true
	return s.county, s.err
}

type fakeAdapter struct {
	name     string
	priority int
	snap     model.PropertySnapshot
}

func (f *fakeAdapter) Name() string  { return f.name }
func (f *fakeAdapter) Priority() int { return f.priority }
func (f *fakeAdapter) Fetch(context.Context, sites.Query) model.PropertySnapshot {
	return f.snap
}

func TestStripUnit(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"123 Main St Apt 4B", "123 Main St"},
		{"123 Main St Unit 12", "123 Main St"},
		{"123 Main St #3A", "123 Main St"},
		{"123 Main St Suite 200", "123 Main St"},
		{"123 Main St Fl 2", "123 Main St"},
		{"123 Main St", "123 Main St"},
		// A bldg token is always treated as a designator, even mid-name.
		{"45 Bldg Rd", "45"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripUnit(tt.in), tt.in)
	}
}

func TestRunFullPipeline(t *testing.T) {
	client := &mockAttom{
		property: func(street, city, state, zip string) (*attom.Property, error) {
			assert.Equal(t, "123 Main St", street)
			return &attom.Property{
				Address:    "123 Main St",
				City:       "Austin",
				State:      "TX",
				Zip:        "78701",
				County:     "Travis",
				Bedrooms:   intp(3),
				Bathrooms:  floatp(2),
				SquareFeet: intp(1500),
			}, nil
		},
		avm: func() (*attom.AVM, error) {
			return &attom.AVM{EstimatedValue: intp(425000), ConfidenceScore: floatp(92)}, nil
		},
		areaStats: func(zip string) (*attom.AreaStats, error) {
			assert.Equal(t, "78701", zip)
			return &attom.AreaStats{Zip: zip, MedianHomeValue: intp(450000)}, nil
		},
		comparables: func() ([]attom.Comparable, error) {
			return []attom.Comparable{
				{Address: "123 Main St, Austin, TX 78701", LastSalePrice: intp(420000)}, // subject, dropped
				{Address: "200 Pine St, Austin, TX 78701", LastSalePrice: intp(430000)},
			}, nil
		},
		trends: func(geoID string) (*attom.SalesTrends, error) {
			assert.Equal(t, "geo-austin", geoID)
			return &attom.SalesTrends{
				Interval: "yearly",
				Points:   []attom.TrendPoint{{Period: "2024", MedianPrice: intp(455000)}},
			}, nil
		},
	}
	resolver := &stubResolver{
		id: model.AreaIdentifier{Granularity: model.GranularityCity, ID: "geo-austin", Name: "Austin"},
	}
	agg := &stubAggregator{record: model.ConsensusRecord{SourceCount: 1, QualityScore: 40}}
	searcher := &stubSearcher{results: []search.Result{
		{
			Title:   "Recently sold homes | Redfin",
			URL:     "https://www.redfin.com/456-oak",
			Content: "456 Oak Avenue, sold for $300,000 in June 2023. 2 beds.",
		},
		{
			Title:   "200 Pine St, Austin, TX 78701 | Zillow",
			URL:     "https://www.zillow.com/200-pine",
			Content: "Sold for $430,000 on March 5, 2024. 3 beds.",
		},
	}}

	p := NewPipeline(client, resolver, agg, WithSearch(searcher))
	bundle, err := p.Run(context.Background(), model.EnrichmentRequest{Address: "123 Main St Apt 4B"})
	require.NoError(t, err)
	require.NotNil(t, bundle)

	assert.NotEmpty(t, bundle.RunID)
	assert.True(t, bundle.Stages.AuthoritativeProperty)
	assert.True(t, bundle.Stages.AuthoritativeAVM)
	assert.True(t, bundle.Stages.AuthoritativeArea)
	assert.True(t, bundle.Stages.AreaResolved)
	assert.True(t, bundle.Stages.SalesTrends)
	assert.True(t, bundle.Stages.ScrapeAttempted)
	assert.True(t, bundle.Stages.WebSearch)
	assert.True(t, bundle.Stages.TextFallback)

	require.NotNil(t, bundle.Authoritative)
	assert.Equal(t, "attom", bundle.Authoritative.Source)
	require.NotNil(t, bundle.AVM)
	assert.Equal(t, 425000, *bundle.AVM.EstimatedValue)
	require.NotNil(t, bundle.AreaStats)
	require.NotNil(t, bundle.Trends)
	assert.Equal(t, "yearly", bundle.Trends.Interval)

	// Property record backfilled the hints the caller never supplied.
	assert.Equal(t, "Austin", resolver.city)
	assert.Equal(t, "Travis", resolver.county)

	// One authoritative comp (subject dropped) plus the mined ones, with
	// the duplicate Pine St address collapsing.
	require.Len(t, bundle.Comparables, 2)
	assert.Equal(t, "200 Pine St, Austin, TX 78701", bundle.Comparables[0].Address)
	assert.Equal(t, model.ProvenanceAuthoritative, bundle.Comparables[0].Provenance)
	assert.Equal(t, "456 Oak Avenue", bundle.Comparables[1].Address)
	assert.Equal(t, model.ProvenanceTextMined, bundle.Comparables[1].Provenance)

	assert.Equal(t, 1, bundle.Consensus.SourceCount)
	assert.GreaterOrEqual(t, bundle.DurationMS, int64(0))
}

func TestRunEndToEndTwoAdapters(t *testing.T) {
	coordinator := consensus.NewCoordinator([]sites.Adapter{
		&fakeAdapter{name: model.SourceZillow, priority: 0, snap: model.PropertySnapshot{
			Source: model.SourceZillow, Address: "123 Main St", Price: intp(400000), Bedrooms: intp(3),
		}},
		&fakeAdapter{name: model.SourceRedfin, priority: 1, snap: model.PropertySnapshot{
			Source: model.SourceRedfin, Address: "123 Main St", Price: intp(420000), Bathrooms: floatp(2),
		}},
	})

	p := NewPipeline(&mockAttom{}, &stubResolver{err: eris.New("no identifier")}, coordinator)
	bundle, err := p.Run(context.Background(), model.EnrichmentRequest{
		Address: "123 Main St", CityHint: "Austin", StateHint: "TX",
	})
	require.NoError(t, err)

	rec := bundle.Consensus
	assert.Equal(t, 2, rec.SourceCount)
	assert.Equal(t, []string{model.SourceZillow, model.SourceRedfin}, rec.SourcesAvailable)
	require.NotNil(t, rec.PriceConsensus)
	assert.Equal(t, 410000, *rec.PriceConsensus)
	assert.GreaterOrEqual(t, rec.QualityScore, 40)
	assert.LessOrEqual(t, rec.QualityScore, 70)
}

func TestRunDegradedStillReturnsBundle(t *testing.T) {
	failing := &mockAttom{
		property: func(string, string, string, string) (*attom.Property, error) {
			return nil, eris.New("upstream broken")
		},
	}
	p := NewPipeline(failing, &stubResolver{err: eris.New("nothing resolved")},
		&stubAggregator{record: model.ConsensusRecord{}})

	bundle, err := p.Run(context.Background(), model.EnrichmentRequest{Address: "1 Nowhere Rd"})
	require.NoError(t, err)
	require.NotNil(t, bundle)

	assert.False(t, bundle.Stages.AuthoritativeProperty)
	assert.False(t, bundle.Stages.AreaResolved)
	assert.True(t, bundle.Stages.ScrapeAttempted)
	assert.Nil(t, bundle.Authoritative)
	assert.Empty(t, bundle.Comparables)
}

func TestRunCountyLocatorFillsMissingHint(t *testing.T) {
	locator := &stubLocator{county: &geo.County{Name: "Travis County", FIPS: "48453"}}
	resolver := &stubResolver{err: eris.New("unused")}

	p := NewPipeline(&mockAttom{}, resolver, &stubAggregator{}, WithCountyLocator(locator))
	_, err := p.Run(context.Background(), model.EnrichmentRequest{
		Address: "123 Main St", CityHint: "Austin", StateHint: "TX", ZipHint: "78701",
	})
	require.NoError(t, err)

	assert.True(t, locator.called)
	assert.Equal(t, "Travis County", resolver.county)
}

func TestRunCountyLocatorSkippedWhenHintPresent(t *testing.T) {
	locator := &stubLocator{county: &geo.County{Name: "Wrong County"}}
	resolver := &stubResolver{err: eris.New("unused")}

	p := NewPipeline(&mockAttom{}, resolver, &stubAggregator{}, WithCountyLocator(locator))
	_, err := p.Run(context.Background(), model.EnrichmentRequest{
		Address: "123 Main St", CountyHint: "Harris",
	})
	require.NoError(t, err)

	assert.False(t, locator.called)
	assert.Equal(t, "Harris", resolver.county)
}

func TestRunTrendsFallBackToZip(t *testing.T) {
	var zipCalled bool
	client := &mockAttom{
		trendsByZip: func(zip string) (*attom.SalesTrends, error) {
			zipCalled = true
			assert.Equal(t, "11201", zip)
			return &attom.SalesTrends{Points: []attom.TrendPoint{{Period: "2024"}}}, nil
		},
	}
	resolver := &stubResolver{
		id: model.AreaIdentifier{Granularity: model.GranularityPostal, ID: "11201", Name: "11201"},
	}

	p := NewPipeline(client, resolver, &stubAggregator{})
	bundle, err := p.Run(context.Background(), model.EnrichmentRequest{
		Address: "45 Main St", ZipHint: "11201",
	})
	require.NoError(t, err)

	assert.True(t, zipCalled)
	assert.True(t, bundle.Stages.SalesTrends)
	require.NotNil(t, bundle.Trends)
}

func TestRunNoFallbackWhenEnoughComps(t *testing.T) {
	client := &mockAttom{
		comparables: func() ([]attom.Comparable, error) {
			return []attom.Comparable{
				{Address: "10 First St, Austin, TX", LastSalePrice: intp(400000)},
				{Address: "20 Second St, Austin, TX", LastSalePrice: intp(410000)},
				{Address: "30 Third St, Austin, TX", LastSalePrice: intp(420000)},
			}, nil
		},
	}
	searcher := &stubSearcher{}

	p := NewPipeline(client, &stubResolver{err: eris.New("unused")}, &stubAggregator{}, WithSearch(searcher))
	bundle, err := p.Run(context.Background(), model.EnrichmentRequest{Address: "123 Main St"})
	require.NoError(t, err)

	assert.Empty(t, searcher.queries)
	assert.False(t, bundle.Stages.WebSearch)
	assert.Len(t, bundle.Comparables, 3)
}

func TestRunFallbackSkippedWithoutSearcher(t *testing.T) {
	p := NewPipeline(&mockAttom{}, &stubResolver{err: eris.New("unused")}, &stubAggregator{})
	bundle, err := p.Run(context.Background(), model.EnrichmentRequest{Address: "123 Main St"})
	require.NoError(t, err)

	assert.False(t, bundle.Stages.WebSearch)
	assert.False(t, bundle.Stages.TextFallback)
}

func TestRunComparableCap(t *testing.T) {
	client := &mockAttom{
		comparables: func() ([]attom.Comparable, error) {
			comps := make([]attom.Comparable, 8)
			for i := range comps {
				comps[i] = attom.Comparable{
					Address:       fmt.Sprintf("%d Oak St, Austin, TX", 100+i),
					LastSalePrice: intp(400000 + i),
				}
			}
			return comps, nil
		},
	}
	p := NewPipeline(client, &stubResolver{err: eris.New("unused")}, &stubAggregator{})
	bundle, err := p.Run(context.Background(), model.EnrichmentRequest{Address: "123 Main St"})
	require.NoError(t, err)
	assert.Len(t, bundle.Comparables, defaultMaxComparables)
}

func TestRunDropsSignallessAuthoritativeComp(t *testing.T) {
	client := &mockAttom{
		comparables: func() ([]attom.Comparable, error) {
			return []attom.Comparable{
				{Address: "10 First St, Austin, TX"}, // address only, no signal
				{Address: "20 Second St, Austin, TX", LastSalePrice: intp(410000)},
				{LastSalePrice: intp(420000)}, // no address
			}, nil
		},
	}
	p := NewPipeline(client, &stubResolver{err: eris.New("unused")}, &stubAggregator{})
	bundle, err := p.Run(context.Background(), model.EnrichmentRequest{Address: "123 Main St"})
	require.NoError(t, err)

	require.Len(t, bundle.Comparables, 1)
	assert.Equal(t, "20 Second St, Austin, TX", bundle.Comparables[0].Address)
	for _, c := range bundle.Comparables {
		assert.True(t, c.Valid())
	}
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	failing := &mockAttom{
		property: func(string, string, string, string) (*attom.Property, error) {
			return nil, eris.New("never reached cleanly")
		},
	}
	p := NewPipeline(failing, &stubResolver{}, &stubAggregator{}, WithRunTimeout(time.Second))
	bundle, err := p.Run(ctx, model.EnrichmentRequest{Address: "123 Main St"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, bundle)
}
