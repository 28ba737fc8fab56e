package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/justestif/spotify-taste-mixer/internal/auth"
	"github.com/justestif/spotify-taste-mixer/internal/db"
	"github.com/justestif/spotify-taste-mixer/internal/playlist"
)

const sessionTTL = 7 * 24 * time.Hour

// Session represents an authenticated user session. Credential is nil once a
// refresh has failed and the user must log in again.
type Session struct {
	ID         string
	User       playlist.User
	Credential *auth.Credential
	CreatedAt  time.Time
}

// SessionManager defines the interface for session storage.
type SessionManager interface {
	Create(ctx context.Context, cred *auth.Credential, user playlist.User) (*Session, error)
	Get(ctx context.Context, id string) *Session
	Delete(ctx context.Context, id string)
	UpdateCredential(ctx context.Context, id string, cred *auth.Credential) error
}

var errSessionNotFound = errors.New("session not found")

// ============================================================================
// In-Memory Session Store (for development/testing)
// ============================================================================

// SessionStore manages user sessions in memory.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Create generates a new session with the given credential and user.
func (s *SessionStore) Create(_ context.Context, cred *auth.Credential, user playlist.User) (*Session, error) {
	id, err := generateSessionID()
	if err != nil {
		return nil, err
	}

	session := &Session{
		ID:         id,
		User:       user,
		Credential: cloneCredential(cred),
		CreatedAt:  s.now(),
	}

	s.mu.Lock()
	s.sessions[id] = session
	s.mu.Unlock()

	return copySession(session), nil
}

// Get retrieves a session by ID, or nil if it is missing or expired.
func (s *SessionStore) Get(_ context.Context, id string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil
	}

	// Check if session has expired
	if s.now().Sub(session.CreatedAt) > sessionTTL {
		return nil
	}

	return copySession(session)
}

// Delete removes a session by ID.
func (s *SessionStore) Delete(_ context.Context, id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// UpdateCredential replaces the session credential. nil clears it.
func (s *SessionStore) UpdateCredential(_ context.Context, id string, cred *auth.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return errSessionNotFound
	}
	session.Credential = cloneCredential(cred)
	return nil
}

// ============================================================================
// Database-Backed Session Store
// ============================================================================

// DBSessionStore manages user sessions in PostgreSQL.
type DBSessionStore struct {
	database *db.DB
}

// NewDBSessionStore creates a new database-backed session store.
func NewDBSessionStore(database *db.DB) *DBSessionStore {
	return &DBSessionStore{database: database}
}

// Create upserts the user and stores a new session in the database.
func (s *DBSessionStore) Create(ctx context.Context, cred *auth.Credential, user playlist.User) (*Session, error) {
	id, err := generateSessionID()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	dbSession := &db.Session{
		ID:        id,
		Token:     toDBToken(cred),
		CreatedAt: now,
		ExpiresAt: now.Add(sessionTTL),
	}
	dbUser := &db.User{ID: user.ID, DisplayName: user.DisplayName, Country: user.Country}
	if err := s.database.Sessions().Open(ctx, dbUser, dbSession); err != nil {
		return nil, err
	}

	return &Session{
		ID:         id,
		User:       user,
		Credential: cloneCredential(cred),
		CreatedAt:  now,
	}, nil
}

// Get retrieves a session by ID from the database.
func (s *DBSessionStore) Get(ctx context.Context, id string) *Session {
	dbSession, user, err := s.database.Sessions().Get(ctx, id)
	if err != nil {
		return nil
	}

	session := &Session{
		ID: dbSession.ID,
		User: playlist.User{
			ID:          user.ID,
			DisplayName: user.DisplayName,
			Country:     user.Country,
		},
		CreatedAt: dbSession.CreatedAt,
	}
	if t := dbSession.Token; t != nil {
		session.Credential = &auth.Credential{
			AccessToken:  t.AccessToken,
			RefreshToken: t.RefreshToken,
			ExpiresAt:    t.Expiry,
		}
	}
	return session
}

// Delete removes a session from the database.
func (s *DBSessionStore) Delete(ctx context.Context, id string) {
	_ = s.database.Sessions().Delete(ctx, id)
}

// UpdateCredential stores the refreshed credential. nil clears it.
func (s *DBSessionStore) UpdateCredential(ctx context.Context, id string, cred *auth.Credential) error {
	return s.database.Sessions().SetToken(ctx, id, toDBToken(cred))
}

func toDBToken(cred *auth.Credential) *db.Token {
	if cred == nil {
		return nil
	}
	return &db.Token{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		Expiry:       cred.ExpiresAt,
	}
}

// ============================================================================
// Credential Store Adapter
// ============================================================================

// sessionCredentials exposes one session's credential as an auth.Store so a
// Refresher can keep it valid.
type sessionCredentials struct {
	sessions SessionManager
	id       string
}

func (c *sessionCredentials) Load(ctx context.Context) (*auth.Credential, error) {
	session := c.sessions.Get(ctx, c.id)
	if session == nil {
		return nil, nil
	}
	return session.Credential, nil
}

func (c *sessionCredentials) Save(ctx context.Context, cred *auth.Credential) error {
	return c.sessions.UpdateCredential(ctx, c.id, cred)
}

func (c *sessionCredentials) Clear(ctx context.Context) error {
	return c.sessions.UpdateCredential(ctx, c.id, nil)
}

// ============================================================================
// Helper Functions
// ============================================================================

// generateSessionID creates a cryptographically random session ID.
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func cloneCredential(c *auth.Credential) *auth.Credential {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

func copySession(s *Session) *Session {
	cp := *s
	cp.Credential = cloneCredential(s.Credential)
	return &cp
}

// Ensure both stores implement SessionManager.
var (
	_ SessionManager = (*SessionStore)(nil)
	_ SessionManager = (*DBSessionStore)(nil)
	_ auth.Store     = (*sessionCredentials)(nil)
)
