package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/valuation-cli/internal/model"
)

func intp(v int) *int           { return &v }
func floatp(v float64) *float64 { return &v }

func TestMedianInt(t *testing.T) {
	got := medianInt([]int{200000, 250000})
	require.NotNil(t, got)
	assert.Equal(t, 225000, *got)

	got = medianInt([]int{200000})
	require.NotNil(t, got)
	assert.Equal(t, 200000, *got)

	assert.Nil(t, medianInt(nil))

	got = medianInt([]int{300000, 100000, 200000})
	require.NotNil(t, got)
	assert.Equal(t, 200000, *got)
}

func TestModeTieBreaksTowardPriority(t *testing.T) {
	// Values arrive in priority order; a tie resolves to the earliest.
	got, ok := mode([]string{"B", "A"})
	require.True(t, ok)
	assert.Equal(t, "B", got)

	// A genuine majority beats priority.
	got, ok = mode([]string{"B", "A", "A"})
	require.True(t, ok)
	assert.Equal(t, "A", got)

	_, ok = mode[string](nil)
	assert.False(t, ok)
}

func TestMergeEmptySet(t *testing.T) {
	rec := Merge(nil)
	assert.Equal(t, 0, rec.SourceCount)
	assert.Equal(t, 0, rec.QualityScore)
	assert.Nil(t, rec.PriceConsensus)
	assert.False(t, rec.ScrapedAt.IsZero())

	// Snapshots without a signal are noise, not contributors.
	rec = Merge([]model.PropertySnapshot{{Source: model.SourceZillow}})
	assert.Equal(t, 0, rec.SourceCount)
	assert.Equal(t, 0, rec.QualityScore)
}

func TestMergeTwoSources(t *testing.T) {
	rec := Merge([]model.PropertySnapshot{
		{
			Source:     model.SourceZillow,
			Address:    "12 Oak St, Austin, TX",
			Price:      intp(400000),
			Bedrooms:   intp(3),
			Bathrooms:  floatp(2),
			SquareFeet: intp(1500),
		},
		{
			Source:     model.SourceRedfin,
			Address:    "12 Oak Street, Austin, TX",
			Price:      intp(420000),
			Bedrooms:   intp(3),
			SquareFeet: intp(1520),
		},
	})

	assert.Equal(t, 2, rec.SourceCount)
	assert.Equal(t, []string{model.SourceZillow, model.SourceRedfin}, rec.SourcesAvailable)

	require.NotNil(t, rec.PriceConsensus)
	assert.Equal(t, 410000, *rec.PriceConsensus)
	require.NotNil(t, rec.PriceLow)
	assert.Equal(t, 400000, *rec.PriceLow)
	require.NotNil(t, rec.PriceHigh)
	assert.Equal(t, 420000, *rec.PriceHigh)
	require.NotNil(t, rec.PriceAverage)
	assert.Equal(t, 410000, *rec.PriceAverage)

	// Address tie (1 vote each) breaks toward the higher-priority source.
	assert.Equal(t, "12 Oak St, Austin, TX", rec.Address)
	require.NotNil(t, rec.Bedrooms)
	assert.Equal(t, 3, *rec.Bedrooms)
	require.NotNil(t, rec.SquareFeet)
	assert.Equal(t, 1510, *rec.SquareFeet)

	// 2 sources: 40 base + completeness (4/4 and 3/4) x 20 each = 75.
	assert.Equal(t, 75, rec.QualityScore)
	assert.GreaterOrEqual(t, rec.QualityScore, 40)
}

func TestMergeIntegerFloorAverage(t *testing.T) {
	rec := Merge([]model.PropertySnapshot{
		{Source: model.SourceZillow, Price: intp(100)},
		{Source: model.SourceRedfin, Price: intp(101)},
	})
	require.NotNil(t, rec.PriceAverage)
	assert.Equal(t, 100, *rec.PriceAverage)
}

func TestQualityScoreMonotonicInSourceCount(t *testing.T) {
	full := func(source string) model.PropertySnapshot {
		return model.PropertySnapshot{
			Source:     source,
			Price:      intp(400000),
			Bedrooms:   intp(3),
			Bathrooms:  floatp(2),
			SquareFeet: intp(1500),
		}
	}

	one := qualityScore([]model.PropertySnapshot{full("a")})
	two := qualityScore([]model.PropertySnapshot{full("a"), full("b")})
	three := qualityScore([]model.PropertySnapshot{full("a"), full("b"), full("c")})

	assert.Equal(t, 60, one) // 20 + 40
	assert.Equal(t, 80, two) // 40 + 40
	// 60 + 3*(40/3) accumulates to 99.999... and truncates.
	assert.Equal(t, 99, three)
	assert.LessOrEqual(t, one, two)
	assert.LessOrEqual(t, two, three)
}

func TestQualityScoreDeterministic(t *testing.T) {
	snaps := []model.PropertySnapshot{
		{Source: model.SourceZillow, Price: intp(400000), Bedrooms: intp(3)},
		{Source: model.SourceRedfin, Address: "somewhere"},
	}
	assert.Equal(t, qualityScore(snaps), qualityScore(snaps))
}
