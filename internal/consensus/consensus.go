// Package consensus runs the site adapters concurrently and merges their
// snapshots into a single consensus record with a quality score.
package consensus

import (
	"sort"
	"time"

	"github.com/sells-group/valuation-cli/internal/model"
)

// Merge folds snapshots into a consensus record. Snapshots must be in
// adapter-priority order: mode ties break toward the earliest entry.
// Snapshots without a strong signal are discarded first. An empty set
// yields a zero-valued record with score 0, never a nil.
func Merge(snapshots []model.PropertySnapshot) model.ConsensusRecord {
	contributing := make([]model.PropertySnapshot, 0, len(snapshots))
	for _, s := range snapshots {
		if s.HasSignal() {
			contributing = append(contributing, s)
		}
	}

	rec := model.ConsensusRecord{
		SourceCount: len(contributing),
		ScrapedAt:   time.Now().UTC(),
	}
	if len(contributing) == 0 {
		return rec
	}

	var (
		addresses, cities, states, zips, types []string
		beds, years                            []int
		baths                                  []float64
		prices, sqfts                          []int
	)
	for _, s := range contributing {
		rec.SourcesAvailable = append(rec.SourcesAvailable, s.Source)
		if s.Address != "" {
			addresses = append(addresses, s.Address)
		}
		if s.City != "" {
			cities = append(cities, s.City)
		}
		if s.State != "" {
			states = append(states, s.State)
		}
		if s.Zip != "" {
			zips = append(zips, s.Zip)
		}
		if s.PropertyType != "" {
			types = append(types, s.PropertyType)
		}
		if s.Bedrooms != nil {
			beds = append(beds, *s.Bedrooms)
		}
		if s.YearBuilt != nil {
			years = append(years, *s.YearBuilt)
		}
		if s.Bathrooms != nil {
			baths = append(baths, *s.Bathrooms)
		}
		if s.Price != nil {
			prices = append(prices, *s.Price)
		}
		if s.SquareFeet != nil {
			sqfts = append(sqfts, *s.SquareFeet)
		}
	}

	rec.Address, _ = mode(addresses)
	rec.City, _ = mode(cities)
	rec.State, _ = mode(states)
	rec.Zip, _ = mode(zips)
	rec.PropertyType, _ = mode(types)
	if v, ok := mode(beds); ok {
		rec.Bedrooms = &v
	}
	if v, ok := mode(years); ok {
		rec.YearBuilt = &v
	}
	if v, ok := mode(baths); ok {
		rec.Bathrooms = &v
	}

	rec.SquareFeet = medianInt(sqfts)
	rec.PriceConsensus = medianInt(prices)
	if len(prices) > 0 {
		low, high, sum := prices[0], prices[0], 0
		for _, p := range prices {
			if p < low {
				low = p
			}
			if p > high {
				high = p
			}
			sum += p
		}
		avg := sum / len(prices)
		rec.PriceLow = &low
		rec.PriceHigh = &high
		rec.PriceAverage = &avg
	}

	rec.Snapshots = contributing
	rec.QualityScore = qualityScore(contributing)
	return rec
}

// mode returns the most common value; ties break toward the value seen
// first, which in priority-ordered input means the higher-priority source.
func mode[T comparable](vals []T) (T, bool) {
	var zero T
	if len(vals) == 0 {
		return zero, false
	}

	counts := make(map[T]int, len(vals))
	firstIdx := make(map[T]int, len(vals))
	for i, v := range vals {
		counts[v]++
		if _, seen := firstIdx[v]; !seen {
			firstIdx[v] = i
		}
	}

	best := vals[0]
	for _, v := range vals {
		if counts[v] > counts[best] ||
			(counts[v] == counts[best] && firstIdx[v] < firstIdx[best]) {
			best = v
		}
	}
	return best, true
}

// medianInt returns the median, averaging the two middle values (floor)
// for even-sized input. Nil for an empty slice.
func medianInt(vals []int) *int {
	if len(vals) == 0 {
		return nil
	}
	sorted := make([]int, len(vals))
	copy(sorted, vals)
	sort.Ints(sorted)

	n := len(sorted)
	var m int
	if n%2 == 0 {
		m = (sorted[n/2-1] + sorted[n/2]) / 2
	} else {
		m = sorted[n/2]
	}
	return &m
}

// qualityScore is 20 points per contributing source (max 60 from count)
// plus each source's completeness share of a 40-point pool, capped at 100.
func qualityScore(sources []model.PropertySnapshot) int {
	score := float64(len(sources) * 20)
	if score > 60 {
		score = 60
	}
	for _, s := range sources {
		score += s.Completeness() * (40.0 / float64(len(sources)))
	}
	if score > 100 {
		return 100
	}
	return int(score)
}
