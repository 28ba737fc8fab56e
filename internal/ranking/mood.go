package ranking

import (
	"context"
	"fmt"
	"slices"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
	"go.uber.org/zap"

	"github.com/justestif/spotify-taste-mixer/internal/playlist"
)

// MoodConfig holds mood-based clustering parameters.
type MoodConfig struct {
	NumClusters int // Number of clusters to create (default: 3)
}

// DefaultMoodConfig returns the recommended default configuration.
func DefaultMoodConfig() MoodConfig {
	return MoodConfig{NumClusters: 3}
}

// trackObservation wraps a Track to implement clusters.Observation interface.
type trackObservation struct {
	track  *playlist.Track
	coords clusters.Coordinates
}

func (o trackObservation) Coordinates() clusters.Coordinates {
	return o.coords
}

func (o trackObservation) Distance(point clusters.Coordinates) float64 {
	return o.coords.Distance(point)
}

// MoodRanker groups tracks into mood clusters with k-means and puts the
// cluster nearest the target first. Within each group tracks are ordered by
// distance to the target; tracks without features come last by popularity.
type MoodRanker struct {
	source FeatureSource
	cfg    MoodConfig
	logger *zap.Logger
}

// NewMoodRanker creates a MoodRanker.
func NewMoodRanker(source FeatureSource, cfg MoodConfig, logger *zap.Logger) *MoodRanker {
	if cfg.NumClusters <= 0 {
		cfg.NumClusters = DefaultMoodConfig().NumClusters
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MoodRanker{source: source, cfg: cfg, logger: logger}
}

func (r *MoodRanker) Rank(ctx context.Context, tracks []playlist.Track, target map[string]float64) ([]playlist.Track, error) {
	dims := targetDims(target)
	if len(dims) == 0 || len(tracks) == 0 {
		return playlist.SortByPopularity(tracks), nil
	}

	features, err := r.source.AudioFeatures(ctx, trackIDs(tracks))
	if err != nil {
		return nil, fmt.Errorf("fetching audio features: %w", err)
	}

	var (
		obs     clusters.Observations
		missing []playlist.Track
	)
	for i := range tracks {
		f, ok := features[tracks[i].ID]
		if !ok {
			missing = append(missing, tracks[i])
			continue
		}
		obs = append(obs, trackObservation{track: &tracks[i], coords: extractFeatures(f, dims)})
	}

	goal := targetCoordinates(target, dims)
	byDistance := func(a, b trackObservation) int {
		da, db := a.Distance(goal), b.Distance(goal)
		switch {
		case da < db:
			return -1
		case da > db:
			return 1
		}
		return 0
	}

	first, rest := r.partition(obs, goal)
	slices.SortStableFunc(first, byDistance)
	slices.SortStableFunc(rest, byDistance)
	ordered := append(first, rest...)

	out := make([]playlist.Track, 0, len(tracks))
	for _, o := range ordered {
		out = append(out, *o.track)
	}
	return append(out, playlist.SortByPopularity(missing)...), nil
}

// partition splits obs into the cluster nearest goal and everything else.
// When clustering is not possible all observations end up in rest.
func (r *MoodRanker) partition(obs clusters.Observations, goal clusters.Coordinates) (first, rest []trackObservation) {
	k := min(r.cfg.NumClusters, len(obs))
	if k == 0 {
		return nil, nil
	}

	result, err := kmeans.New().Partition(obs, k)
	if err != nil {
		r.logger.Warn("k-means clustering failed, ranking by distance", zap.Error(err))
		return nil, toTrackObservations(obs)
	}

	nearest := result.Nearest(goal)
	for i, cluster := range result {
		if i == nearest {
			first = toTrackObservations(cluster.Observations)
			continue
		}
		rest = append(rest, toTrackObservations(cluster.Observations)...)
	}
	r.logger.Debug("clustered candidates",
		zap.Int("clusters", len(result)),
		zap.Int("nearest_size", len(first)),
	)
	return first, rest
}

func toTrackObservations(obs clusters.Observations) []trackObservation {
	out := make([]trackObservation, 0, len(obs))
	for _, o := range obs {
		if to, ok := o.(trackObservation); ok {
			out = append(out, to)
		}
	}
	return out
}

// extractFeatures returns the feature vector for dims.
func extractFeatures(f playlist.AudioFeatures, dims []string) clusters.Coordinates {
	coords := make(clusters.Coordinates, len(dims))
	for i, name := range dims {
		coords[i], _ = f.Value(name)
	}
	return coords
}

func targetCoordinates(target map[string]float64, dims []string) clusters.Coordinates {
	coords := make(clusters.Coordinates, len(dims))
	for i, name := range dims {
		coords[i] = target[name]
	}
	return coords
}
