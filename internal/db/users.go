package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const upsertUserSQL = `
	INSERT INTO users (id, display_name, country)
	VALUES (@id, @display_name, @country)
	ON CONFLICT (id) DO UPDATE SET
		display_name = EXCLUDED.display_name,
		country = EXCLUDED.country,
		updated_at = NOW()
	RETURNING created_at, updated_at
`

// querier is satisfied by both the pool and a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserRepository handles user database operations.
type UserRepository struct {
	pool *pgxpool.Pool
}

// Get retrieves a user by ID.
func (r *UserRepository) Get(ctx context.Context, id string) (*User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, display_name, country, created_at, updated_at FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	user, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[User])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	return user, nil
}

// Upsert creates or updates a user, filling in its timestamps.
func (r *UserRepository) Upsert(ctx context.Context, user *User) error {
	return upsertUser(ctx, r.pool, user)
}

func upsertUser(ctx context.Context, q querier, user *User) error {
	err := q.QueryRow(ctx, upsertUserSQL, pgx.NamedArgs{
		"id":           user.ID,
		"display_name": user.DisplayName,
		"country":      user.Country,
	}).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting user %s: %w", user.ID, err)
	}
	return nil
}
