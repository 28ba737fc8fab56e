package auth

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"
)

var (
	// ErrNoCredential is returned when no credential is stored.
	ErrNoCredential = errors.New("not authenticated")

	// ErrRefreshFailed is returned when the refresh exchange fails. The stored
	// credential has been cleared and the user must log in again.
	ErrRefreshFailed = errors.New("token refresh failed")
)

// Credential is an access/refresh token pair with its absolute expiry.
type Credential struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// NewCredential derives the absolute expiry from the provider's expires_in.
// The expiry is computed once here and never recomputed.
func NewCredential(accessToken, refreshToken string, expiresIn int, issuedAt time.Time) *Credential {
	return &Credential{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    issuedAt.Add(time.Duration(expiresIn) * time.Second),
	}
}

// ExpiresWithin reports whether the credential expires within d of now.
func (c *Credential) ExpiresWithin(d time.Duration, now time.Time) bool {
	return c.ExpiresAt.Sub(now) <= d
}

type credentialJSON struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAtMs  int64  `json:"expires_at_ms"`
}

// MarshalJSON encodes the expiry as epoch milliseconds.
func (c Credential) MarshalJSON() ([]byte, error) {
	return json.Marshal(credentialJSON{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		ExpiresAtMs:  c.ExpiresAt.UnixMilli(),
	})
}

// UnmarshalJSON decodes a credential written by MarshalJSON.
func (c *Credential) UnmarshalJSON(data []byte) error {
	var raw credentialJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.AccessToken = raw.AccessToken
	c.RefreshToken = raw.RefreshToken
	c.ExpiresAt = time.UnixMilli(raw.ExpiresAtMs)
	return nil
}

// Store persists the current credential.
// Load returns (nil, nil) when nothing is stored.
type Store interface {
	Load(ctx context.Context) (*Credential, error)
	Save(ctx context.Context, cred *Credential) error
	Clear(ctx context.Context) error
}

// MemoryStore is a Store held in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	cred *Credential
}

// NewMemoryStore creates a MemoryStore, optionally seeded with cred.
func NewMemoryStore(cred *Credential) *MemoryStore {
	return &MemoryStore{cred: cloneCredential(cred)}
}

func (s *MemoryStore) Load(_ context.Context) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneCredential(s.cred), nil
}

func (s *MemoryStore) Save(_ context.Context, cred *Credential) error {
	if cred == nil {
		return errors.New("cannot save nil credential")
	}
	s.mu.Lock()
	s.cred = cloneCredential(cred)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.cred = nil
	s.mu.Unlock()
	return nil
}

func cloneCredential(c *Credential) *Credential {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}
