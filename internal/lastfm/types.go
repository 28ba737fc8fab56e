package lastfm

// SimilarArtist is one entry of artist.getSimilar. Match is a string-encoded
// float in [0,1].
type SimilarArtist struct {
	Name  string `json:"name"`
	MBID  string `json:"mbid,omitempty"`
	Match string `json:"match"`
	URL   string `json:"url"`
}

// similarArtistsResponse is the JSON response for artist.getSimilar.
type similarArtistsResponse struct {
	SimilarArtists struct {
		Artist []SimilarArtist `json:"artist"`
		Attr   struct {
			Artist string `json:"artist"`
		} `json:"@attr"`
	} `json:"similarartists"`
}

// apiError represents a Last.fm API error response.
type apiError struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}
