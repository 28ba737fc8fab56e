package ranking

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/justestif/spotify-taste-mixer/internal/playlist"
)

// Ranker kinds accepted by New.
const (
	KindPopularity = "popularity"
	KindFeatures   = "features"
	KindMood       = "mood"
)

// ErrUnknownRanker is returned by New for an unrecognized kind.
var ErrUnknownRanker = errors.New("unknown ranker")

// New returns the ranker named by kind. An empty kind selects
// KindPopularity; the feature-based rankers are opt-in.
func New(kind string, source FeatureSource, logger *zap.Logger) (playlist.Ranker, error) {
	switch kind {
	case "", KindPopularity:
		return playlist.PopularityRanker{}, nil
	case KindFeatures:
		return NewFeatureRanker(source), nil
	case KindMood:
		return NewMoodRanker(source, DefaultMoodConfig(), logger), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownRanker, kind)
}
