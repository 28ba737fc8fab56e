package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PlaylistRepository records playlists created through the server.
type PlaylistRepository struct {
	pool *pgxpool.Pool
}

// Create inserts a saved playlist, assigning its ID and creation time.
func (r *PlaylistRepository) Create(ctx context.Context, p *SavedPlaylist) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()

	query := `
		INSERT INTO saved_playlists (id, user_id, spotify_id, name, url, track_ids, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		p.ID,
		p.UserID,
		p.SpotifyID,
		p.Name,
		p.URL,
		p.TrackIDs,
		p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting playlist: %w", err)
	}
	return nil
}

// ListForUser returns the user's saved playlists, newest first.
func (r *PlaylistRepository) ListForUser(ctx context.Context, userID string, limit int) ([]SavedPlaylist, error) {
	query := `
		SELECT id, user_id, spotify_id, name, url, track_ids, created_at
		FROM saved_playlists
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying playlists: %w", err)
	}

	playlists, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (SavedPlaylist, error) {
		var p SavedPlaylist
		err := row.Scan(&p.ID, &p.UserID, &p.SpotifyID, &p.Name, &p.URL, &p.TrackIDs, &p.CreatedAt)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning playlists: %w", err)
	}
	return playlists, nil
}
