package spotify

import (
	"context"
	"fmt"

	"github.com/zmb3/spotify/v2"

	"github.com/justestif/spotify-taste-mixer/internal/playlist"
)

// AudioFeatures retrieves audio features for trackIDs.
// Batches requests to max 100 tracks per request per Spotify API limits.
// Results are keyed by track ID; tracks without features are absent.
func (c *Client) AudioFeatures(ctx context.Context, trackIDs []string) (map[string]playlist.AudioFeatures, error) {
	out := make(map[string]playlist.AudioFeatures, len(trackIDs))
	if len(trackIDs) == 0 {
		return out, nil
	}

	ids := make([]spotify.ID, len(trackIDs))
	for i, id := range trackIDs {
		ids[i] = spotify.ID(id)
	}

	for _, b := range batches(len(ids), maxTracksPerRequest) {
		features, err := c.api.GetAudioFeatures(ctx, ids[b.start:b.end]...)
		if err != nil {
			return nil, fmt.Errorf("fetching audio features (batch %d-%d): %w", b.start+1, b.end, err)
		}

		// The response is index-aligned with the batch; null entries mark
		// tracks without features.
		for j, f := range features {
			if f == nil {
				continue
			}
			id := f.ID.String()
			if id == "" && b.start+j < b.end {
				id = trackIDs[b.start+j]
			}
			out[id] = convertAudioFeatures(id, f)
		}
	}

	return out, nil
}

// convertAudioFeatures copies the feature values used for ranking.
func convertAudioFeatures(id string, f *spotify.AudioFeatures) playlist.AudioFeatures {
	return playlist.AudioFeatures{
		TrackID:      id,
		Energy:       float64(f.Energy),
		Valence:      float64(f.Valence),
		Danceability: float64(f.Danceability),
		Acousticness: float64(f.Acousticness),
	}
}
