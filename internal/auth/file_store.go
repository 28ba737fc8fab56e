// Package auth keeps a Spotify credential valid: persistent storage,
// single-flight refresh through the token intermediary, and the login handshake.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	configDirName = "spotify-taste-mixer"
	stateFileName = "session.json"
)

// fileState is the on-disk layout of the client session file.
type fileState struct {
	Credential *Credential `json:"credential,omitempty"`
	OAuthState string      `json:"oauth_state,omitempty"`
}

// FileStore persists the credential and the pending OAuth state nonce in a
// single JSON file readable only by the owner.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// DefaultFileStore returns a FileStore at
// ~/.config/spotify-taste-mixer/session.json
func DefaultFileStore() (*FileStore, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("getting user config dir: %w", err)
	}
	return NewFileStore(filepath.Join(configDir, configDirName, stateFileName)), nil
}

// NewFileStore creates a FileStore with a custom path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the file path where the session is stored.
func (s *FileStore) Path() string {
	return s.path
}

// Load returns the stored credential, or (nil, nil) if there is none.
func (s *FileStore) Load(_ context.Context) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.read()
	if err != nil {
		return nil, err
	}
	return st.Credential, nil
}

// Save replaces the stored credential, keeping any pending state nonce.
func (s *FileStore) Save(_ context.Context, cred *Credential) error {
	if cred == nil {
		return errors.New("cannot save nil credential")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.read()
	if err != nil {
		return err
	}
	st.Credential = cred
	return s.write(st)
}

// Clear removes the credential and the state nonce.
// Returns nil if nothing was stored.
func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing session file: %w", err)
	}
	return nil
}

// SaveState records the CSRF nonce of an in-progress login.
func (s *FileStore) SaveState(_ context.Context, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.read()
	if err != nil {
		return err
	}
	st.OAuthState = state
	return s.write(st)
}

// TakeState returns the pending nonce and removes it, so each nonce
// validates at most one callback.
func (s *FileStore) TakeState(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.read()
	if err != nil {
		return "", err
	}
	state := st.OAuthState
	if state == "" {
		return "", nil
	}
	st.OAuthState = ""
	return state, s.write(st)
}

func (s *FileStore) read() (fileState, error) {
	var st fileState

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return st, nil
		}
		return st, fmt.Errorf("reading session file: %w", err)
	}

	if err := json.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("parsing session file: %w", err)
	}
	return st, nil
}

func (s *FileStore) write(st fileState) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("writing session file: %w", err)
	}
	return nil
}
