package spotify

import (
	"github.com/zmb3/spotify/v2"

	"github.com/justestif/spotify-taste-mixer/internal/playlist"
)

// convertTrack converts a Spotify FullTrack to playlist.Track.
func convertTrack(t spotify.FullTrack) playlist.Track {
	artists := make([]playlist.Artist, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = convertArtist(a)
	}

	images := make([]playlist.Image, len(t.Album.Images))
	for i, img := range t.Album.Images {
		images[i] = playlist.Image{URL: img.URL, Width: int(img.Width), Height: int(img.Height)}
	}

	return playlist.Track{
		ID:      t.ID.String(),
		Name:    t.Name,
		URI:     string(t.URI),
		Artists: artists,
		Album: playlist.Album{
			Name:        t.Album.Name,
			ReleaseDate: t.Album.ReleaseDate,
			Images:      images,
		},
		DurationMs:  int(t.Duration),
		Popularity:  int(t.Popularity),
		Explicit:    t.Explicit,
		PreviewURL:  t.PreviewURL,
		ExternalURL: t.ExternalURLs["spotify"],
	}
}

func convertTracks(tracks []spotify.FullTrack) []playlist.Track {
	out := make([]playlist.Track, 0, len(tracks))
	for _, t := range tracks {
		if t.ID == "" {
			continue
		}
		out = append(out, convertTrack(t))
	}
	return out
}

func convertArtist(a spotify.SimpleArtist) playlist.Artist {
	return playlist.Artist{ID: a.ID.String(), Name: a.Name}
}

func convertFullArtists(artists []spotify.FullArtist) []playlist.Artist {
	out := make([]playlist.Artist, 0, len(artists))
	for _, a := range artists {
		out = append(out, convertArtist(a.SimpleArtist))
	}
	return out
}
