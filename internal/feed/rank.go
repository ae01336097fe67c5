package feed

import "sort"

// Sort presets accepted on the feed endpoint. An empty preset selects the
// seeded diversity ranking.
const (
	SortCheapest = "cheapest"
	SortTrending = "trending"
	SortTopRated = "topRated"
)

// Diversity scoring weights. Price and rating pull items up, repeating a
// region or vibe bucket inside the 4-slot recency window pushes them down.
const (
	weightPrice  = 0.25
	weightRating = 0.20
	weightRegion = 0.30
	weightVibe   = 0.15
	jitterScale  = 0.15

	windowSize    = 4
	shuffleRadius = 5
)

// Rank returns a diversity-aware permutation of items, deterministic for a
// fixed seed and input order. The input slice is not modified.
func Rank(items []MergedDestination, seed string) []MergedDestination {
	if len(items) <= 1 {
		out := make([]MergedDestination, len(items))
		copy(out, items)
		return out
	}

	r := newRNG(seed)
	ranked := rankCore(items, r)
	softShuffle(ranked, r)
	return ranked
}

// rankCore runs the greedy diversity selection without the trailing
// shuffle pass.
func rankCore(items []MergedDestination, r *rng) []MergedDestination {
	remaining := make([]MergedDestination, len(items))
	copy(remaining, items)

	minPrice, maxPrice := priceBounds(remaining)
	priceRange := maxPrice - minPrice
	if priceRange == 0 {
		priceRange = 1
	}

	// Seed pick: best rating per thousand dollars of flight.
	sort.SliceStable(remaining, func(i, j int) bool {
		return valueScore(remaining[i]) > valueScore(remaining[j])
	})

	result := make([]MergedDestination, 0, len(remaining))
	var recentRegions, recentVibes []string

	push := func(m MergedDestination) {
		result = append(result, m)
		recentRegions = pushWindow(recentRegions, RegionBucket(m.Destination))
		recentVibes = pushWindow(recentVibes, VibeBucket(m.Destination))
	}

	push(remaining[0])
	remaining = remaining[1:]

	for len(remaining) > 0 {
		bestIdx := 0
		bestScore := 0.0
		for i, cand := range remaining {
			priceScore := 1 - (cand.EffectivePrice()-minPrice)/priceRange
			ratingScore := cand.Rating - 4.0
			score := weightPrice*priceScore +
				weightRating*ratingScore -
				weightRegion*windowPenalty(recentRegions, RegionBucket(cand.Destination)) -
				weightVibe*windowPenalty(recentVibes, VibeBucket(cand.Destination)) +
				r.Float64()*jitterScale
			if i == 0 || score > bestScore {
				bestIdx, bestScore = i, score
			}
		}

		push(remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return result
}

// softShuffle swaps each index with a random neighbour within
// shuffleRadius, one left-to-right pass. Coarse order survives, exact
// order does not.
func softShuffle(items []MergedDestination, r *rng) {
	n := len(items)
	for i := 0; i < n; i++ {
		lo := i - shuffleRadius
		if lo < 0 {
			lo = 0
		}
		hi := i + shuffleRadius
		if hi > n-1 {
			hi = n - 1
		}
		j := lo + r.Intn(hi-lo+1)
		items[i], items[j] = items[j], items[i]
	}
}

// ApplyPreset sorts items by the named preset. Stable: ties keep their
// input order. Unknown presets return false and leave items untouched.
func ApplyPreset(items []MergedDestination, preset string) bool {
	switch preset {
	case SortCheapest:
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].EffectivePrice() < items[j].EffectivePrice()
		})
	case SortTrending:
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].Popularity > items[j].Popularity
		})
	case SortTopRated:
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].Rating > items[j].Rating
		})
	default:
		return false
	}
	return true
}

func valueScore(m MergedDestination) float64 {
	price := m.EffectivePrice()
	if price <= 0 {
		price = 1
	}
	return m.Rating / (price / 1000)
}

func priceBounds(items []MergedDestination) (min, max float64) {
	min, max = items[0].EffectivePrice(), items[0].EffectivePrice()
	for _, m := range items[1:] {
		p := m.EffectivePrice()
		if p < min {
			min = p
		}
		if p > max {
			max = p
		}
	}
	return min, max
}

// pushWindow prepends bucket, evicting beyond windowSize. Most recent
// entry sits at index 0.
func pushWindow(window []string, bucket string) []string {
	window = append([]string{bucket}, window...)
	if len(window) > windowSize {
		window = window[:windowSize]
	}
	return window
}

// windowPenalty sums 1 - j/windowSize over window positions j holding the
// candidate's bucket. A repeat of the immediately previous pick costs the
// full unit.
func windowPenalty(window []string, bucket string) float64 {
	p := 0.0
	for j, b := range window {
		if b == bucket {
			p += 1 - float64(j)/windowSize
		}
	}
	return p
}
