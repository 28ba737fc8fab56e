package playlist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var errCatalog = errors.New("catalog unavailable")

// fakeCatalog serves canned responses and records queries.
type fakeCatalog struct {
	market    string
	marketErr error

	topTracks  map[string][]Track // by artist ID
	topErr     map[string]error
	related    map[string][]Artist
	relatedErr error
	search     map[string][]Track // by query
	searchErr  map[string]error

	topCalls    atomic.Int32
	searchCalls atomic.Int32

	mu      sync.Mutex
	queries []string
	offsets []int
}

func (f *fakeCatalog) Market(context.Context) (string, error) {
	return f.market, f.marketErr
}

func (f *fakeCatalog) ArtistTopTracks(_ context.Context, artistID, market string) ([]Track, error) {
	f.topCalls.Add(1)
	if err := f.topErr[artistID]; err != nil {
		return nil, err
	}
	return f.topTracks[artistID], nil
}

func (f *fakeCatalog) RelatedArtists(_ context.Context, artistID string) ([]Artist, error) {
	if f.relatedErr != nil {
		return nil, f.relatedErr
	}
	return f.related[artistID], nil
}

func (f *fakeCatalog) SearchTracks(_ context.Context, query string, limit, offset int) ([]Track, error) {
	f.searchCalls.Add(1)
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.offsets = append(f.offsets, offset)
	f.mu.Unlock()

	if err := f.searchErr[query]; err != nil {
		return nil, err
	}
	tracks := f.search[query]
	if len(tracks) > limit {
		tracks = tracks[:limit]
	}
	return tracks, nil
}

func (f *fakeCatalog) recordedQueries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

func track(id string, popularity int, releaseDate string) Track {
	return Track{
		ID:         id,
		Name:       "Track " + id,
		URI:        "spotify:track:" + id,
		Popularity: popularity,
		Album:      Album{Name: "Album", ReleaseDate: releaseDate},
		DurationMs: 180000,
	}
}

func tracksWithPrefix(prefix string, n, popularity int) []Track {
	out := make([]Track, n)
	for i := range out {
		out[i] = track(fmt.Sprintf("%s%d", prefix, i), popularity, "2015-01-01")
	}
	return out
}

func ids(tracks []Track) []string {
	out := make([]string, len(tracks))
	for i, t := range tracks {
		out[i] = t.ID
	}
	return out
}
