package favorites

import (
	"context"
	"errors"

	"github.com/justestif/spotify-taste-mixer/internal/db"
	"github.com/justestif/spotify-taste-mixer/internal/playlist"
)

// DBStore keeps favorites in PostgreSQL.
type DBStore struct {
	repo *db.FavoriteRepository
}

// NewDBStore creates a DBStore.
func NewDBStore(database *db.DB) *DBStore {
	return &DBStore{repo: database.Favorites()}
}

func (s *DBStore) List(ctx context.Context, userID string) ([]playlist.Track, error) {
	rows, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	tracks := make([]playlist.Track, len(rows))
	for i, f := range rows {
		tracks[i] = f.Track
	}
	return tracks, nil
}

func (s *DBStore) Add(ctx context.Context, userID string, track playlist.Track) error {
	return s.repo.Add(ctx, userID, track)
}

func (s *DBStore) Remove(ctx context.Context, userID, trackID string) error {
	err := s.repo.Remove(ctx, userID, trackID)
	if errors.Is(err, db.ErrNotFound) {
		return ErrNotFavorite
	}
	return err
}
