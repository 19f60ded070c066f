package sites

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentCanonicalURL(t *testing.T) {
	doc, err := ParseDocument([]byte(`<html><head>
		<link rel="canonical" href="https://www.zillow.com/homedetails/4352-169th-St/123_zpid/">
	</head><body></body></html>`))
	require.NoError(t, err)
	assert.Equal(t, "https://www.zillow.com/homedetails/4352-169th-St/123_zpid/", doc.CanonicalURL())

	doc, err = ParseDocument([]byte(`<html><head><link rel="canonical" href="/relative"></head></html>`))
	require.NoError(t, err)
	assert.Equal(t, "", doc.CanonicalURL())
}

func TestDocumentJSONLD(t *testing.T) {
	doc, err := ParseDocument([]byte(`<html><head>
		<script type="application/ld+json">{"@type": "Place", "name": "one"}</script>
		<script type="application/ld+json">[{"name": "two"}, {"name": "three"}]</script>
		<script type="application/ld+json">not json</script>
	</head></html>`))
	require.NoError(t, err)

	blocks := doc.JSONLD()
	require.Len(t, blocks, 3)
	assert.Equal(t, "one", blocks[0]["name"])
	assert.Equal(t, "three", blocks[2]["name"])
}

func TestDocumentEmbeddedState(t *testing.T) {
	doc, err := ParseDocument([]byte(`<html><body>
		<script id="__NEXT_DATA__" type="application/json">{"props": {"price": 100}}</script>
	</body></html>`))
	require.NoError(t, err)

	state := doc.EmbeddedState("__NEXT_DATA__")
	require.NotNil(t, state)
	assert.NotNil(t, state["props"])

	assert.Nil(t, doc.EmbeddedState("absent"))
}

func TestFindClassContains(t *testing.T) {
	doc, err := ParseDocument([]byte(`<html><body>
		<div class="HomeCardContainer-abc123">card</div>
		<span class="homecard-price-xyz">$500,000</span>
		<div class="unrelated">no</div>
	</body></html>`))
	require.NoError(t, err)

	assert.Equal(t, 1, doc.FindClassContains("div", "homecard").Length())
	assert.Equal(t, "$500,000", doc.FindClassContains("span", "price").First().Text())
	assert.Equal(t, 0, doc.FindClassContains("span", "address").Length())
}

func TestDeepFind(t *testing.T) {
	obj := map[string]any{
		"a": map[string]any{"beds": float64(3)},
		"b": []any{map[string]any{"price": "412000"}},
	}
	assert.Equal(t, float64(3), deepFind(obj, "beds"))
	assert.Equal(t, "412000", deepFind(obj, "price"))
	assert.Nil(t, deepFind(obj, "missing"))
}
