package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/justestif/spotify-taste-mixer/internal/playlist"
)

const lastPlaylistFileName = "last_playlist.json"

// lastPlaylist is the most recent generation, kept so later commands can
// extend or save it.
type lastPlaylist struct {
	Preferences playlist.Preferences `json:"preferences"`
	Ranker      string               `json:"ranker,omitempty"`
	Tracks      []playlist.Track     `json:"tracks"`
}

func (l *lastPlaylist) TrackIDs() []string {
	ids := make([]string, len(l.Tracks))
	for i, t := range l.Tracks {
		ids[i] = t.ID
	}
	return ids
}

type lastPlaylistFile struct {
	path string
}

func newLastPlaylistFile(dir string) *lastPlaylistFile {
	return &lastPlaylistFile{path: filepath.Join(dir, lastPlaylistFileName)}
}

// Load returns the saved playlist, or nil if none exists.
func (f *lastPlaylistFile) Load() (*lastPlaylist, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading last playlist: %w", err)
	}

	var l lastPlaylist
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parsing last playlist: %w", err)
	}
	return &l, nil
}

func (f *lastPlaylistFile) Save(l *lastPlaylist) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding last playlist: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("writing last playlist: %w", err)
	}
	return nil
}
