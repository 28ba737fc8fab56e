// Package playlist generates ranked, deduplicated track lists from taste
// filters and persists them as Spotify playlists.
package playlist

import (
	"strconv"
	"strings"
)

// Artist is a catalog artist as selected by the user or returned by discovery.
type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Image is album artwork.
type Image struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Album holds the album fields the generator needs.
type Album struct {
	Name        string  `json:"name"`
	ReleaseDate string  `json:"release_date"` // "2006", "2006-05" or "2006-05-17"
	Images      []Image `json:"images,omitempty"`
}

// Track is a catalog track. Two tracks with the same ID are the same track,
// even if other fields differ by market or endpoint.
type Track struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	URI         string   `json:"uri"`
	Artists     []Artist `json:"artists"`
	Album       Album    `json:"album"`
	DurationMs  int      `json:"duration_ms"`
	Popularity  int      `json:"popularity"`
	Explicit    bool     `json:"explicit"`
	PreviewURL  string   `json:"preview_url,omitempty"`
	ExternalURL string   `json:"external_url,omitempty"`
}

// ReleaseYear returns the album release year, or false if the track has no
// parseable release date.
func (t Track) ReleaseYear() (int, bool) {
	date := strings.TrimSpace(t.Album.ReleaseDate)
	if len(date) < 4 {
		return 0, false
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0, false
	}
	return year, true
}

// ArtistNames joins the track's artist names with ", ".
func (t Track) ArtistNames() string {
	names := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		names[i] = a.Name
	}
	return strings.Join(names, ", ")
}

// PopularityRange is an inclusive popularity window in [0,100].
type PopularityRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Contains reports whether p lies within the range, bounds included.
func (r PopularityRange) Contains(p int) bool {
	return p >= r.Min && p <= r.Max
}

// PopularityAround builds the window used by the popularity slider: the
// target plus or minus spread, clamped to [0,100].
func PopularityAround(target, spread int) PopularityRange {
	return PopularityRange{
		Min: max(0, target-spread),
		Max: min(100, target+spread),
	}
}

// Preferences are the user's taste filters. They are rebuilt on every filter
// change and never persisted.
type Preferences struct {
	Artists       []Artist           `json:"artists"`
	Genres        []string           `json:"genres"`
	Decades       []int              `json:"decades"`
	Popularity    *PopularityRange   `json:"popularity,omitempty"`
	AudioFeatures map[string]float64 `json:"audio_features,omitempty"`
}

// AudioFeatures are provider-computed descriptors for a track, each in [0,1].
type AudioFeatures struct {
	TrackID      string  `json:"id"`
	Energy       float64 `json:"energy"`
	Valence      float64 `json:"valence"`
	Danceability float64 `json:"danceability"`
	Acousticness float64 `json:"acousticness"`
}

// Value returns the named feature, or false for an unknown name.
func (f AudioFeatures) Value(name string) (float64, bool) {
	switch name {
	case "energy":
		return f.Energy, true
	case "valence":
		return f.Valence, true
	case "danceability":
		return f.Danceability, true
	case "acousticness":
		return f.Acousticness, true
	}
	return 0, false
}

// RemotePlaylist identifies a playlist created on the provider.
type RemotePlaylist struct {
	ID          string `json:"id"`
	ExternalURL string `json:"external_url"`
}

// User is the authenticated provider account.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Country     string `json:"country"`
}
