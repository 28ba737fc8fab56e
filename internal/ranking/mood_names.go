package ranking

// MoodName creates a descriptive name for a set of target audio features.
// Uses a 2x2 energy/valence quadrant system with acousticness modifier.
//
// Quadrants:
//   - High Energy + High Valence = "Upbeat Party"
//   - High Energy + Low Valence  = "Intense & Dark"
//   - Low Energy  + High Valence = "Chill & Happy"
//   - Low Energy  + Low Valence  = "Reflective & Melancholy"
//
// Missing features are treated as 0.5. If acousticness > 0.6, "(Acoustic)"
// is appended to the name.
func MoodName(target map[string]float64) string {
	energy := valueOr(target, "energy", 0.5)
	valence := valueOr(target, "valence", 0.5)

	var baseName string
	switch {
	case energy > 0.6 && valence > 0.5:
		baseName = "Upbeat Party"
	case energy > 0.6:
		baseName = "Intense & Dark"
	case valence > 0.5:
		baseName = "Chill & Happy"
	default:
		baseName = "Reflective & Melancholy"
	}

	if valueOr(target, "acousticness", 0) > 0.6 {
		return baseName + " (Acoustic)"
	}
	return baseName
}

// MoodCategory represents a mood classification for display purposes.
type MoodCategory struct {
	Name        string  // Display name
	Energy      float64 // Target energy level
	Valence     float64 // Target positivity
	Description string  // Brief description of the mood
}

// GetMoodCategory returns a detailed mood category for a feature target.
func GetMoodCategory(target map[string]float64) MoodCategory {
	energy := valueOr(target, "energy", 0.5)
	valence := valueOr(target, "valence", 0.5)

	var description string
	switch {
	case energy > 0.6 && valence > 0.5:
		description = "High-energy, positive vibes - perfect for dancing and celebrations"
	case energy > 0.6:
		description = "Intense, driving energy with darker emotional tones"
	case valence > 0.5:
		description = "Relaxed and uplifting - great for unwinding"
	default:
		description = "Contemplative and introspective - ideal for quiet moments"
	}

	return MoodCategory{
		Name:        MoodName(target),
		Energy:      energy,
		Valence:     valence,
		Description: description,
	}
}

func valueOr(m map[string]float64, key string, def float64) float64 {
	if v, ok := m[key]; ok {
		return v
	}
	return def
}
