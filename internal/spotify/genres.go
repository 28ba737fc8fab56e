package spotify

import (
	"context"
	"slices"
	"strings"

	"github.com/zmb3/spotify/v2"
	"go.uber.org/zap"

	"github.com/justestif/spotify-taste-mixer/internal/cache"
	"github.com/justestif/spotify-taste-mixer/internal/playlist"
)

const (
	minArtistQueryLen = 2
	artistSearchLimit = 10
	genresCacheKey    = "available_genres"
)

// FallbackGenres is served when the genre-seed endpoint is unavailable.
var FallbackGenres = []string{
	"acoustic", "afrobeat", "alt-rock", "alternative", "ambient", "anime", "black-metal",
	"bluegrass", "blues", "bossanova", "brazil", "breakbeat", "british", "cantopop",
	"chicago-house", "children", "chill", "classical", "club", "comedy", "country", "dance",
	"dancehall", "death-metal", "deep-house", "detroit-techno", "disco", "disney",
	"drum-and-bass", "dub", "dubstep", "edm", "electro", "electronic", "emo", "folk",
	"forro", "french", "funk", "garage", "german", "gospel", "goth", "grindcore", "groove",
	"grunge", "guitar", "happy", "hard-rock", "hardcore", "hardstyle", "heavy-metal",
	"hip-hop", "house", "idm", "indian", "indie", "indie-pop", "industrial", "iranian",
	"j-dance", "j-idol", "j-pop", "j-rock", "jazz", "k-pop", "kids", "latin", "latino",
	"malay", "mandopop", "metal", "metal-misc", "metalcore", "minimal-techno", "movies",
	"mpb", "new-age", "new-release", "opera", "pagode", "party", "philippines-opm", "piano",
	"pop", "pop-film", "post-dubstep", "power-pop", "progressive-house", "psych-rock",
	"punk", "punk-rock", "r-n-b", "rainy-day", "reggae", "reggaeton", "road-trip", "rock",
	"rock-n-roll", "rockabilly", "romance", "sad", "salsa", "samba", "sertanejo",
	"show-tunes", "singer-songwriter", "ska", "sleep", "songwriter", "soul", "soundtracks",
	"spanish", "study", "summer", "swedish", "synth-pop", "tango", "techno", "trance",
	"trip-hop", "turkish", "work-out", "world-music",
}

// AvailableGenres lists genres usable as filters. Spotify has deprecated the
// seed endpoint, so any failure falls back to FallbackGenres.
func (c *Client) AvailableGenres(ctx context.Context) []string {
	if genres, ok := c.genres.Get(genresCacheKey); ok {
		return genres
	}

	genres, err := c.api.GetAvailableGenreSeeds(ctx)
	if err != nil || len(genres) == 0 {
		if err != nil {
			c.logger.Debug("genre seeds unavailable, using built-in list", zap.Error(err))
		}
		return slices.Clone(FallbackGenres)
	}

	c.genres.Set(genresCacheKey, genres)
	return genres
}

// SearchArtists finds artists by name. Queries shorter than two characters
// return nothing. Failures are logged and yield an empty result.
func (c *Client) SearchArtists(ctx context.Context, query string) []playlist.Artist {
	query = strings.TrimSpace(query)
	if len(query) < minArtistQueryLen {
		return nil
	}

	key := cache.Key("search_artists", strings.ToLower(query))
	if artists, ok := c.artists.Get(key); ok {
		return artists
	}

	result, err := c.api.Search(ctx, query, spotify.SearchTypeArtist, spotify.Limit(artistSearchLimit))
	if err != nil {
		c.logger.Warn("artist search failed", zap.String("query", query), zap.Error(err))
		return nil
	}
	if result.Artists == nil {
		return nil
	}

	artists := convertFullArtists(result.Artists.Artists)
	c.artists.Set(key, artists)
	return artists
}
