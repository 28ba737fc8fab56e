package playlist

import (
	"context"
	"slices"
)

// Ranker orders candidate tracks. target holds optional audio-feature
// targets in [0,1]; rankers that do not use features ignore it.
type Ranker interface {
	Rank(ctx context.Context, tracks []Track, target map[string]float64) ([]Track, error)
}

// PopularityRanker sorts by descending popularity. Ties keep discovery order.
type PopularityRanker struct{}

func (PopularityRanker) Rank(_ context.Context, tracks []Track, _ map[string]float64) ([]Track, error) {
	return SortByPopularity(tracks), nil
}

// SortByPopularity returns a copy of tracks sorted by descending popularity.
func SortByPopularity(tracks []Track) []Track {
	out := slices.Clone(tracks)
	slices.SortStableFunc(out, func(a, b Track) int {
		return b.Popularity - a.Popularity
	})
	return out
}
