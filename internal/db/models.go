package db

import (
	"time"

	"github.com/google/uuid"

	"github.com/justestif/spotify-taste-mixer/internal/playlist"
)

// User represents a Spotify user profile.
type User struct {
	ID          string    `db:"id"`
	DisplayName string    `db:"display_name"`
	Country     string    `db:"country"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Session is an authenticated web session. Token is nil once a refresh
// has failed.
type Session struct {
	ID        string
	UserID    string
	Token     *Token
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Token is the OAuth credential stored with a session.
type Token struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// Favorite is a track a user starred, stored with its display fields.
type Favorite struct {
	UserID    string
	Track     playlist.Track
	CreatedAt time.Time
}

// SavedPlaylist records a playlist created on the user's account.
type SavedPlaylist struct {
	ID        uuid.UUID
	UserID    string
	SpotifyID string
	Name      string
	URL       string
	TrackIDs  []string
	CreatedAt time.Time
}
