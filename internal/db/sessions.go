package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionRepository handles session database operations.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// Open records a login: the user profile is upserted and the session
// inserted in one transaction.
func (r *SessionRepository) Open(ctx context.Context, user *User, session *Session) error {
	session.UserID = user.ID
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := upsertUser(ctx, tx, user); err != nil {
			return err
		}

		args := pgx.NamedArgs{
			"id":         session.ID,
			"user_id":    session.UserID,
			"created_at": session.CreatedAt,
			"expires_at": session.ExpiresAt,
		}
		setTokenArgs(args, session.Token)

		_, err := tx.Exec(ctx, `
			INSERT INTO sessions (id, user_id, access_token, refresh_token, token_expiry, created_at, expires_at)
			VALUES (@id, @user_id, @access_token, @refresh_token, @token_expiry, @created_at, @expires_at)
		`, args)
		if err != nil {
			return fmt.Errorf("inserting session: %w", err)
		}
		return nil
	})
}

// Get retrieves an unexpired session together with its user.
func (r *SessionRepository) Get(ctx context.Context, id string) (*Session, *User, error) {
	var (
		session Session
		user    User
		access  string
		refresh string
		expiry  *time.Time
	)
	err := r.pool.QueryRow(ctx, `
		SELECT s.id, s.access_token, s.refresh_token, s.token_expiry, s.created_at, s.expires_at,
		       u.id, u.display_name, u.country, u.created_at, u.updated_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.id = $1 AND s.expires_at > NOW()
	`, id).Scan(
		&session.ID, &access, &refresh, &expiry, &session.CreatedAt, &session.ExpiresAt,
		&user.ID, &user.DisplayName, &user.Country, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("querying session: %w", err)
	}

	session.UserID = user.ID
	if access != "" && expiry != nil {
		session.Token = &Token{AccessToken: access, RefreshToken: refresh, Expiry: *expiry}
	}
	return &session, &user, nil
}

// SetToken replaces the session's OAuth token. nil clears it.
func (r *SessionRepository) SetToken(ctx context.Context, id string, token *Token) error {
	args := pgx.NamedArgs{"id": id}
	setTokenArgs(args, token)

	result, err := r.pool.Exec(ctx, `
		UPDATE sessions
		SET access_token = @access_token, refresh_token = @refresh_token, token_expiry = @token_expiry
		WHERE id = @id
	`, args)
	if err != nil {
		return fmt.Errorf("updating session token: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a session by ID.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// DeleteExpired removes all expired sessions.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}
	return result.RowsAffected(), nil
}

func setTokenArgs(args pgx.NamedArgs, token *Token) {
	if token == nil {
		args["access_token"] = ""
		args["refresh_token"] = ""
		args["token_expiry"] = nil
		return
	}
	args["access_token"] = token.AccessToken
	args["refresh_token"] = token.RefreshToken
	args["token_expiry"] = token.Expiry
}
