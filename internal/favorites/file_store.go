package favorites

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/justestif/spotify-taste-mixer/internal/playlist"
)

const fileName = "favorites.json"

// FileStore keeps favorites in a JSON file keyed by user ID.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a FileStore at dir/favorites.json.
func NewFileStore(dir string) *FileStore {
	return &FileStore{path: filepath.Join(dir, fileName)}
}

// Path returns the file path where favorites are stored.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) List(_ context.Context, userID string) ([]playlist.Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.read()
	if err != nil {
		return nil, err
	}
	return all[userID], nil
}

func (s *FileStore) Add(_ context.Context, userID string, track playlist.Track) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.read()
	if err != nil {
		return err
	}
	all[userID] = addTrack(all[userID], track)
	return s.write(all)
}

func (s *FileStore) Remove(_ context.Context, userID, trackID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.read()
	if err != nil {
		return err
	}
	tracks, ok := removeTrack(all[userID], trackID)
	if !ok {
		return ErrNotFavorite
	}
	all[userID] = tracks
	return s.write(all)
}

func (s *FileStore) read() (map[string][]playlist.Track, error) {
	all := make(map[string][]playlist.Track)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return all, nil
		}
		return nil, fmt.Errorf("reading favorites file: %w", err)
	}

	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("parsing favorites file: %w", err)
	}
	return all, nil
}

func (s *FileStore) write(all map[string][]playlist.Track) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("creating favorites directory: %w", err)
	}

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding favorites: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("writing favorites file: %w", err)
	}
	return nil
}
