// Package ranking provides audio-feature based alternatives to the default
// popularity ordering.
package ranking

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/justestif/spotify-taste-mixer/internal/playlist"
)

const (
	// DefaultThreshold is the minimum mean similarity a track needs to be kept.
	DefaultThreshold = 0.3

	// DefaultFallbackSize is how many tracks are returned unscored when none
	// reach the threshold.
	DefaultFallbackSize = 20
)

// featureNames defines the audio features used for scoring and clustering.
var featureNames = []string{"energy", "valence", "danceability", "acousticness"}

// FeatureSource looks up audio features by track ID.
type FeatureSource interface {
	AudioFeatures(ctx context.Context, trackIDs []string) (map[string]playlist.AudioFeatures, error)
}

// FeatureRanker orders tracks by closeness to target audio features.
type FeatureRanker struct {
	source       FeatureSource
	threshold    float64
	fallbackSize int
}

// NewFeatureRanker creates a FeatureRanker using the default threshold.
func NewFeatureRanker(source FeatureSource) *FeatureRanker {
	return &FeatureRanker{
		source:       source,
		threshold:    DefaultThreshold,
		fallbackSize: DefaultFallbackSize,
	}
}

// Rank scores each track as the mean of 1-|feature-target| over the
// targeted features, drops tracks scoring at or below the threshold and sorts
// the rest by descending score. If nothing passes, the first tracks are
// returned unscored. Without targets it sorts by popularity.
func (r *FeatureRanker) Rank(ctx context.Context, tracks []playlist.Track, target map[string]float64) ([]playlist.Track, error) {
	if len(targetDims(target)) == 0 || len(tracks) == 0 {
		return playlist.SortByPopularity(tracks), nil
	}

	features, err := r.source.AudioFeatures(ctx, trackIDs(tracks))
	if err != nil {
		return nil, fmt.Errorf("fetching audio features: %w", err)
	}
	if len(features) == 0 {
		return playlist.SortByPopularity(tracks), nil
	}

	type scored struct {
		track playlist.Track
		score float64
	}
	var kept []scored
	for _, t := range tracks {
		f, ok := features[t.ID]
		if !ok {
			continue
		}
		if s := Score(f, target); s > r.threshold {
			kept = append(kept, scored{t, s})
		}
	}

	if len(kept) == 0 {
		return slices.Clone(tracks[:min(r.fallbackSize, len(tracks))]), nil
	}

	slices.SortStableFunc(kept, func(a, b scored) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		}
		return 0
	})

	out := make([]playlist.Track, len(kept))
	for i, s := range kept {
		out[i] = s.track
	}
	return out, nil
}

// Score is the mean similarity of f to target over the targeted features,
// in [0,1]. It is 0 when target names no known feature.
func Score(f playlist.AudioFeatures, target map[string]float64) float64 {
	var sum float64
	var n int
	for _, name := range featureNames {
		want, ok := target[name]
		if !ok {
			continue
		}
		got, _ := f.Value(name)
		sum += 1 - math.Abs(got-want)
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// targetDims returns the known feature names present in target, in canonical order.
func targetDims(target map[string]float64) []string {
	var dims []string
	for _, name := range featureNames {
		if _, ok := target[name]; ok {
			dims = append(dims, name)
		}
	}
	return dims
}

func trackIDs(tracks []playlist.Track) []string {
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}
	return ids
}
