package spotify

import (
	"context"
	"fmt"

	"github.com/zmb3/spotify/v2"

	"github.com/justestif/spotify-taste-mixer/internal/playlist"
)

// ArtistTopTracks returns an artist's top tracks in market.
func (c *Client) ArtistTopTracks(ctx context.Context, artistID, market string) ([]playlist.Track, error) {
	tracks, err := c.api.GetArtistsTopTracks(ctx, spotify.ID(artistID), market)
	if err != nil {
		return nil, fmt.Errorf("fetching top tracks for %s: %w", artistID, err)
	}
	return convertTracks(tracks), nil
}

// RelatedArtists returns artists Spotify considers similar to artistID.
// The endpoint is unavailable to some applications; callers should expect errors.
func (c *Client) RelatedArtists(ctx context.Context, artistID string) ([]playlist.Artist, error) {
	artists, err := c.api.GetRelatedArtists(ctx, spotify.ID(artistID))
	if err != nil {
		return nil, fmt.Errorf("fetching related artists for %s: %w", artistID, err)
	}
	return convertFullArtists(artists), nil
}

// SearchTracks runs a track search. query may use Spotify field filters
// such as genre:"jazz" or year:2020-2024.
func (c *Client) SearchTracks(ctx context.Context, query string, limit, offset int) ([]playlist.Track, error) {
	result, err := c.api.Search(ctx, query, spotify.SearchTypeTrack,
		spotify.Limit(limit),
		spotify.Offset(offset),
	)
	if err != nil {
		return nil, fmt.Errorf("searching tracks %q: %w", query, err)
	}
	if result.Tracks == nil {
		return nil, nil
	}
	return convertTracks(result.Tracks.Tracks), nil
}
