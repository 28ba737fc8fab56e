package spotify

import (
	"context"
	"fmt"

	"github.com/zmb3/spotify/v2"

	"github.com/justestif/spotify-taste-mixer/internal/playlist"
)

const maxTracksPerRequest = 100

// CreatePlaylist creates a new playlist owned by userID.
func (c *Client) CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (*playlist.RemotePlaylist, error) {
	pl, err := c.api.CreatePlaylistForUser(ctx, userID, name, description, public, false)
	if err != nil {
		return nil, fmt.Errorf("creating playlist: %w", err)
	}

	return &playlist.RemotePlaylist{
		ID:          pl.ID.String(),
		ExternalURL: pl.ExternalURLs["spotify"],
	}, nil
}

// AddTracks appends tracks to a playlist in order, handling batching for large sets.
// Spotify allows max 100 tracks per request.
func (c *Client) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	if len(trackIDs) == 0 {
		return nil
	}

	ids := make([]spotify.ID, len(trackIDs))
	for i, id := range trackIDs {
		ids[i] = spotify.ID(id)
	}

	for _, b := range batches(len(ids), maxTracksPerRequest) {
		_, err := c.api.AddTracksToPlaylist(ctx, spotify.ID(playlistID), ids[b.start:b.end]...)
		if err != nil {
			return fmt.Errorf("adding tracks (batch %d-%d): %w", b.start+1, b.end, err)
		}
	}

	return nil
}

// UnfollowPlaylist removes the playlist from the user's library. Spotify has
// no playlist delete; unfollowing is how an owner discards one.
func (c *Client) UnfollowPlaylist(ctx context.Context, playlistID string) error {
	if err := c.api.UnfollowPlaylist(ctx, spotify.ID(playlistID)); err != nil {
		return fmt.Errorf("unfollowing playlist %s: %w", playlistID, err)
	}
	return nil
}

type batch struct{ start, end int }

// batches splits n items into consecutive chunks of at most size.
func batches(n, size int) []batch {
	var out []batch
	for i := 0; i < n; i += size {
		out = append(out, batch{i, min(i+size, n)})
	}
	return out
}
