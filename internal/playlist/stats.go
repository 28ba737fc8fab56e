package playlist

// Stats summarizes a track list.
type Stats struct {
	Tracks         int     `json:"tracks"`
	TotalMinutes   int     `json:"total_minutes"`
	UniqueArtists  int     `json:"unique_artists"`
	AvgPopularity  float64 `json:"avg_popularity"`
	ExplicitTracks int     `json:"explicit_tracks"`
}

// Summarize computes Stats for tracks. Artists are counted by ID, or by
// name when the ID is missing.
func Summarize(tracks []Track) Stats {
	s := Stats{Tracks: len(tracks)}
	if len(tracks) == 0 {
		return s
	}

	artists := make(map[string]struct{})
	var totalMs, totalPop int
	for _, t := range tracks {
		totalMs += t.DurationMs
		totalPop += t.Popularity
		if t.Explicit {
			s.ExplicitTracks++
		}
		for _, a := range t.Artists {
			key := a.ID
			if key == "" {
				key = "name:" + a.Name
			}
			artists[key] = struct{}{}
		}
	}

	s.TotalMinutes = totalMs / 60000
	s.UniqueArtists = len(artists)
	s.AvgPopularity = float64(totalPop) / float64(len(tracks))
	return s
}
