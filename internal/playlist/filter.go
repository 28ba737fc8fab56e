package playlist

// FilterByDecades keeps tracks released in [d, d+10) for at least one of
// decades. Tracks without a release year are dropped. An empty decades list
// keeps everything.
func FilterByDecades(tracks []Track, decades []int) []Track {
	if len(decades) == 0 {
		return tracks
	}

	out := make([]Track, 0, len(tracks))
	for _, t := range tracks {
		year, ok := t.ReleaseYear()
		if !ok {
			continue
		}
		for _, d := range decades {
			if year >= d && year < d+10 {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

// FilterByPopularity keeps tracks whose popularity lies in r, bounds
// included. A nil range keeps everything.
func FilterByPopularity(tracks []Track, r *PopularityRange) []Track {
	if r == nil {
		return tracks
	}

	out := make([]Track, 0, len(tracks))
	for _, t := range tracks {
		if r.Contains(t.Popularity) {
			out = append(out, t)
		}
	}
	return out
}

// Dedup keeps the first occurrence of each track ID, dropping any ID in
// exclude. Order is preserved.
func Dedup(tracks []Track, exclude []string) []Track {
	seen := make(map[string]struct{}, len(exclude)+len(tracks))
	for _, id := range exclude {
		seen[id] = struct{}{}
	}

	out := make([]Track, 0, len(tracks))
	for _, t := range tracks {
		if t.ID == "" {
			continue
		}
		if _, ok := seen[t.ID]; ok {
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out
}

// applyFilters runs the decade, popularity and dedup stages in order.
func applyFilters(tracks []Track, prefs Preferences, exclude []string) []Track {
	tracks = FilterByDecades(tracks, prefs.Decades)
	tracks = FilterByPopularity(tracks, prefs.Popularity)
	return Dedup(tracks, exclude)
}
