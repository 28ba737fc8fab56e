// Package config loads command configuration from the environment,
// optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

const (
	// DefaultAddr is the default server address.
	DefaultAddr = "127.0.0.1:8080"

	// DefaultServerRedirectURI must match the Spotify app configuration.
	DefaultServerRedirectURI = "http://127.0.0.1:8080/callback"

	// DefaultIntermediaryURL is where the CLI expects the server.
	DefaultIntermediaryURL = "http://127.0.0.1:8080"

	// DefaultRanker orders generated playlists by popularity.
	DefaultRanker = "popularity"

	appDirName = "spotify-taste-mixer"
)

// ErrMissingCredentials is returned when SPOTIFY_ID or SPOTIFY_SECRET is not set.
var ErrMissingCredentials = errors.New("missing SPOTIFY_ID or SPOTIFY_SECRET environment variable")

// Server holds the intermediary/API server configuration.
type Server struct {
	Addr          string
	ClientID      string
	ClientSecret  string
	RedirectURI   string
	DatabaseURL   string // empty means in-memory sessions
	SessionSecret string // empty means a random per-process secret
	LastFMAPIKey  string // empty disables similar-artist discovery
	Ranker        string // popularity (default), features or mood
}

// Client holds the CLI configuration.
type Client struct {
	ClientID        string
	RedirectURI     string // empty means auth.DefaultRedirectURI
	IntermediaryURL string
	StateDir        string
	LastFMAPIKey    string // optional; enables similar-artist discovery
}

// LoadDotEnv loads variables from path (default ".env") without overriding
// ones already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// LoadServer reads server configuration from environment variables.
// Returns ErrMissingCredentials if the Spotify app credentials are not set.
func LoadServer() (*Server, error) {
	cfg := &Server{
		Addr:          getEnv("TASTEMIXER_ADDR", DefaultAddr),
		ClientID:      os.Getenv("SPOTIFY_ID"),
		ClientSecret:  os.Getenv("SPOTIFY_SECRET"),
		RedirectURI:   getEnv("TASTEMIXER_REDIRECT_URI", DefaultServerRedirectURI),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		SessionSecret: os.Getenv("TASTEMIXER_SESSION_SECRET"),
		LastFMAPIKey:  os.Getenv("LASTFM_API_KEY"),
		Ranker:        getEnv("TASTEMIXER_RANKER", DefaultRanker),
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrMissingCredentials
	}
	return cfg, nil
}

// LoadClient reads CLI configuration from environment variables.
func LoadClient() (*Client, error) {
	stateDir := os.Getenv("TASTEMIXER_STATE_DIR")
	if stateDir == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("getting user config dir: %w", err)
		}
		stateDir = filepath.Join(configDir, appDirName)
	}

	return &Client{
		ClientID:        os.Getenv("SPOTIFY_ID"),
		RedirectURI:     os.Getenv("TASTEMIXER_CLI_REDIRECT_URI"),
		IntermediaryURL: getEnv("TASTEMIXER_INTERMEDIARY_URL", DefaultIntermediaryURL),
		StateDir:        stateDir,
		LastFMAPIKey:    os.Getenv("LASTFM_API_KEY"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
