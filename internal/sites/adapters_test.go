package sites

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/valuation-cli/internal/model"
)

func testFetcher(t *testing.T) *Fetcher {
	t.Helper()
	return NewFetcher(WithHostSpacing(0))
}

const zillowSearchFixture = `<html><body>
<article data-test="property-card">
  <span data-test="property-card-price">$415,000</span>
  <address data-test="property-card-addr">12 Oak St, Austin, TX 78701</address>
  <ul><li>3 bds</li><li>2 ba</li><li>1,400 sqft</li></ul>
  <a data-test="property-card-link" href="/homedetails/12-Oak-St-Austin-TX-78701/42_zpid/">listing</a>
</article>
</body></html>`

const zillowDetailFixture = `<html><head>
<script id="__NEXT_DATA__" type="application/json">
{"props":{"pageProps":{"home":{"unformattedPrice":410000,"beds":3,"baths":2,"livingArea":1380}}}}
</script>
</head><body>
<span data-test="zestimate-text">Zestimate: $410,000</span>
<div data-test="home-details">43-52 169th St, Flushing, NY 11358</div>
</body></html>`

func TestZillowSearchPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasPrefix(r.URL.Path, "/homes/"))
		w.Write([]byte(zillowSearchFixture))
	}))
	defer srv.Close()

	z := NewZillow(testFetcher(t), SiteOverride{BaseURL: srv.URL})
	snap := z.Fetch(context.Background(), Query{Street: "12 Oak St", City: "Austin", State: "TX", Zip: "78701"})

	assert.Equal(t, model.SourceZillow, snap.Source)
	require.NotNil(t, snap.Price)
	assert.Equal(t, 415000, *snap.Price)
	assert.Equal(t, "12 Oak St, Austin, TX 78701", snap.Address)
	require.NotNil(t, snap.Bedrooms)
	assert.Equal(t, 3, *snap.Bedrooms)
	require.NotNil(t, snap.Bathrooms)
	assert.Equal(t, 2.0, *snap.Bathrooms)
	require.NotNil(t, snap.SquareFeet)
	assert.Equal(t, 1400, *snap.SquareFeet)
	assert.Equal(t, srv.URL+"/homedetails/12-Oak-St-Austin-TX-78701/42_zpid/", snap.ListingURL)
}

func TestZillowDetailCandidates(t *testing.T) {
	z := NewZillow(testFetcher(t), SiteOverride{})
	cands := z.detailCandidates(Query{Street: "43-52 169 Street", City: "Flushing", State: "NY", Zip: "11358"})
	require.Len(t, cands, 2)
	assert.Equal(t, "https://www.zillow.com/homedetails/4352-169th-St-Flushing-NY-11358/", cands[0])
	assert.Equal(t, "https://www.zillow.com/homedetails/4352-169th-St-Flushing-NY/", cands[1])

	// Plain addresses produce no candidates.
	assert.Empty(t, z.detailCandidates(Query{Street: "12 Oak St", City: "Austin", State: "TX"}))
}

func TestZillowDetailPage(t *testing.T) {
	var detailHits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/homedetails/") {
			detailHits++
			w.Write([]byte(zillowDetailFixture))
			return
		}
		w.Write([]byte("<html><body>no cards</body></html>"))
	}))
	defer srv.Close()

	z := NewZillow(testFetcher(t), SiteOverride{BaseURL: srv.URL})
	snap := z.Fetch(context.Background(), Query{Street: "43-52 169 Street", City: "Flushing", State: "NY", Zip: "11358"})

	assert.Equal(t, 1, detailHits)
	require.NotNil(t, snap.Price)
	assert.Equal(t, 410000, *snap.Price)
	require.NotNil(t, snap.Bedrooms)
	assert.Equal(t, 3, *snap.Bedrooms)
	assert.NotEmpty(t, snap.ListingURL)
}

func TestZillowTotalFailureReturnsEmptySnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	z := NewZillow(testFetcher(t), SiteOverride{BaseURL: srv.URL})
	snap := z.Fetch(context.Background(), Query{Street: "1 Nowhere Rd", City: "Austin", State: "TX"})

	assert.Equal(t, model.SourceZillow, snap.Source)
	assert.False(t, snap.HasSignal())
}

const redfinDetailFixture = `<html><head>
<script type="application/ld+json">{
	"@type": "SingleFamilyResidence",
	"address": {"streetAddress": "12 Oak St", "addressLocality": "Austin", "addressRegion": "TX"},
	"offers": {"price": 405000},
	"numberOfRooms": 3,
	"numberOfBathroomsTotal": 2
}</script>
</head><body><div class="propertyDetails">detail page</div></body></html>`

func TestRedfinAutocomplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "location-autocomplete"):
			assert.Contains(t, r.URL.Query().Get("location"), "12 Oak St")
			w.Write([]byte(")]}'\n" + `{"payload":{"sections":[{"rows":[{"name":"12 Oak St","url":"/home/424242"}]}]}}`))
		case r.URL.Path == "/home/424242":
			w.Write([]byte(redfinDetailFixture))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	rf := NewRedfin(testFetcher(t), SiteOverride{BaseURL: srv.URL})
	snap := rf.Fetch(context.Background(), Query{Street: "12 Oak St", City: "Austin", State: "TX"})

	assert.Equal(t, model.SourceRedfin, snap.Source)
	require.NotNil(t, snap.Price)
	assert.Equal(t, 405000, *snap.Price)
	assert.Equal(t, "12 Oak St Austin TX", snap.Address)
	assert.Equal(t, srv.URL+"/home/424242", snap.ListingURL)
}

const redfinSearchFixture = `<html><body>
<div class="HomeCardContainer">
  <span class="homecard-price">$399,000</span>
  <div class="homeAddressV2 address">14 Elm St, Austin, TX</div>
</div>
</body></html>`

func TestRedfinSearchFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "location-autocomplete") {
			w.Write([]byte(")]}'\n{}"))
			return
		}
		require.True(t, strings.HasPrefix(r.URL.Path, "/search/"))
		w.Write([]byte(redfinSearchFixture))
	}))
	defer srv.Close()

	rf := NewRedfin(testFetcher(t), SiteOverride{BaseURL: srv.URL})
	snap := rf.Fetch(context.Background(), Query{Street: "14 Elm St", City: "Austin", State: "TX"})

	require.NotNil(t, snap.Price)
	assert.Equal(t, 399000, *snap.Price)
	assert.Equal(t, "14 Elm St, Austin, TX", snap.Address)
}

const streeteasySearchFixture = `<html><body>
<div class="listingCard-container listingCard">
  <span class="listingCard-price price">$999,000</span>
  <a class="listingCard-addressLabel address" href="/building/45-main/3a">45 Main St #3A</a>
  <span class="listingCard-detail">2 beds</span>
  <span class="listingCard-detail">1 bath</span>
</div>
</body></html>`

func TestStreetEasySearch(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		gotQuery = r.URL.Query().Get("search_string")
		w.Write([]byte(streeteasySearchFixture))
	}))
	defer srv.Close()

	se := NewStreetEasy(testFetcher(t), SiteOverride{BaseURL: srv.URL})
	snap := se.Fetch(context.Background(), Query{Street: "45 Main St", Borough: "Brooklyn", Zip: "11201"})

	assert.Equal(t, "45 Main St Brooklyn 11201", gotQuery)
	assert.Equal(t, model.SourceStreetEasy, snap.Source)
	require.NotNil(t, snap.Price)
	assert.Equal(t, 999000, *snap.Price)
	assert.Equal(t, "45 Main St #3A", snap.Address)
	require.NotNil(t, snap.Bedrooms)
	assert.Equal(t, 2, *snap.Bedrooms)
	require.NotNil(t, snap.Bathrooms)
	assert.Equal(t, 1.0, *snap.Bathrooms)
	assert.Equal(t, srv.URL+"/building/45-main/3a", snap.ListingURL)
}

func TestStreetEasyDefaultsToNewYork(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("search_string")
		w.Write([]byte("<html><body>nothing</body></html>"))
	}))
	defer srv.Close()

	se := NewStreetEasy(testFetcher(t), SiteOverride{BaseURL: srv.URL})
	snap := se.Fetch(context.Background(), Query{Street: "45 Main St"})

	assert.Equal(t, "45 Main St New York", gotQuery)
	assert.False(t, snap.HasSignal())
}

func TestDefaultAdapters(t *testing.T) {
	f := testFetcher(t)

	adapters := DefaultAdapters(f, SiteConfig{})
	require.Len(t, adapters, 3)
	assert.Equal(t, model.SourceZillow, adapters[0].Name())
	assert.Equal(t, 0, adapters[0].Priority())
	assert.Equal(t, 1, adapters[1].Priority())
	assert.Equal(t, 2, adapters[2].Priority())

	off := false
	adapters = DefaultAdapters(f, SiteConfig{Sites: map[string]SiteOverride{
		"streeteasy": {Enabled: &off},
	}})
	require.Len(t, adapters, 2)
}
