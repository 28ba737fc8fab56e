package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/justestif/spotify-taste-mixer/internal/playlist"
)

// FavoriteRepository handles favorite track operations.
type FavoriteRepository struct {
	pool *pgxpool.Pool
}

// Add stars a track for a user. Adding an existing favorite is a no-op.
func (r *FavoriteRepository) Add(ctx context.Context, userID string, track playlist.Track) error {
	query := `
		INSERT INTO favorites (user_id, track_id, track, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, track_id) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query, userID, track.ID, track)
	if err != nil {
		return fmt.Errorf("inserting favorite: %w", err)
	}
	return nil
}

// Remove unstars a track. Returns ErrNotFound if it was not a favorite.
func (r *FavoriteRepository) Remove(ctx context.Context, userID, trackID string) error {
	query := `DELETE FROM favorites WHERE user_id = $1 AND track_id = $2`
	result, err := r.pool.Exec(ctx, query, userID, trackID)
	if err != nil {
		return fmt.Errorf("deleting favorite: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns a user's favorites, most recent first.
func (r *FavoriteRepository) List(ctx context.Context, userID string) ([]Favorite, error) {
	query := `
		SELECT user_id, track, created_at
		FROM favorites
		WHERE user_id = $1
		ORDER BY created_at DESC, track_id
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying favorites: %w", err)
	}

	favorites, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Favorite, error) {
		var f Favorite
		err := row.Scan(&f.UserID, &f.Track, &f.CreatedAt)
		return f, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning favorites: %w", err)
	}
	return favorites, nil
}
