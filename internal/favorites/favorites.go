// Package favorites keeps the tracks a user has starred.
package favorites

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/justestif/spotify-taste-mixer/internal/playlist"
)

// ErrNotFavorite is returned when removing a track that is not starred.
var ErrNotFavorite = errors.New("track is not a favorite")

// Store persists favorites per user. List returns the most recently starred
// track first.
type Store interface {
	List(ctx context.Context, userID string) ([]playlist.Track, error)
	Add(ctx context.Context, userID string, track playlist.Track) error
	Remove(ctx context.Context, userID, trackID string) error
}

// Toggle stars the track if it is not a favorite and unstars it otherwise.
// It reports whether the track is a favorite afterwards.
func Toggle(ctx context.Context, s Store, userID string, track playlist.Track) (bool, error) {
	if track.ID == "" {
		return false, errors.New("track has no id")
	}

	current, err := s.List(ctx, userID)
	if err != nil {
		return false, err
	}

	if contains(current, track.ID) {
		return false, s.Remove(ctx, userID, track.ID)
	}
	return true, s.Add(ctx, userID, track)
}

func contains(tracks []playlist.Track, id string) bool {
	return slices.ContainsFunc(tracks, func(t playlist.Track) bool { return t.ID == id })
}

// MemoryStore is a Store held in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string][]playlist.Track
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string][]playlist.Track)}
}

func (s *MemoryStore) List(_ context.Context, userID string) ([]playlist.Track, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.users[userID]), nil
}

func (s *MemoryStore) Add(_ context.Context, userID string, track playlist.Track) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = addTrack(s.users[userID], track)
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, userID, trackID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tracks, ok := removeTrack(s.users[userID], trackID)
	if !ok {
		return ErrNotFavorite
	}
	s.users[userID] = tracks
	return nil
}

// addTrack puts track first, ignoring it if already present.
func addTrack(tracks []playlist.Track, track playlist.Track) []playlist.Track {
	if contains(tracks, track.ID) {
		return tracks
	}
	return append([]playlist.Track{track}, tracks...)
}

func removeTrack(tracks []playlist.Track, trackID string) ([]playlist.Track, bool) {
	i := slices.IndexFunc(tracks, func(t playlist.Track) bool { return t.ID == trackID })
	if i < 0 {
		return tracks, false
	}
	return slices.Delete(tracks, i, i+1), true
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*FileStore)(nil)
	_ Store = (*DBStore)(nil)
)
