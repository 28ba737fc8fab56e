package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
)

const (
	// DefaultRedirectURI is the CLI callback. It uses explicit IPv4 loopback as required by Spotify for local development.
	// See: https://developer.spotify.com/documentation/web-api/concepts/redirect-uri
	DefaultRedirectURI = "http://127.0.0.1:8888/callback"
	callbackTimeout    = 2 * time.Minute
)

var (
	// ErrAuthTimeout is returned when the OAuth callback is not received in time.
	ErrAuthTimeout = errors.New("authentication timed out waiting for callback")

	// ErrStateMismatch is returned when the OAuth state parameter doesn't match.
	ErrStateMismatch = errors.New("OAuth state mismatch")
)

// Scopes are the permissions requested at login.
var Scopes = []string{
	spotifyauth.ScopeUserReadPrivate,
	spotifyauth.ScopeUserReadEmail,
	spotifyauth.ScopeUserTopRead,
	spotifyauth.ScopePlaylistModifyPublic,
	spotifyauth.ScopePlaylistModifyPrivate,
}

// NewAuthenticator builds an authenticator for the given client. The secret
// may be empty on the client side, where only AuthURL is used.
func NewAuthenticator(clientID, clientSecret, redirectURI string) *spotifyauth.Authenticator {
	opts := []spotifyauth.AuthenticatorOption{
		spotifyauth.WithClientID(clientID),
		spotifyauth.WithRedirectURL(redirectURI),
		spotifyauth.WithScopes(Scopes...),
	}
	if clientSecret != "" {
		opts = append(opts, spotifyauth.WithClientSecret(clientSecret))
	}
	return spotifyauth.New(opts...)
}

// StateStore keeps the CSRF nonce of a login in progress.
type StateStore interface {
	SaveState(ctx context.Context, state string) error
	TakeState(ctx context.Context) (string, error)
}

// LoginStore is the client-side persistence a Login needs.
type LoginStore interface {
	Store
	StateStore
}

// Login runs the authorization-code handshake from a terminal: it prints the
// authorize URL, waits for the browser redirect on a loopback listener, and
// trades the code through the intermediary.
type Login struct {
	auth        *spotifyauth.Authenticator
	redirectURI string
	store       LoginStore
	exchanger   Exchanger
	out         io.Writer
	timeout     time.Duration
	logger      *zap.Logger
}

// NewLogin creates a Login. Prompts are written to out.
func NewLogin(clientID, redirectURI string, store LoginStore, exchanger Exchanger, out io.Writer, logger *zap.Logger) *Login {
	if redirectURI == "" {
		redirectURI = DefaultRedirectURI
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Login{
		auth:        NewAuthenticator(clientID, "", redirectURI),
		redirectURI: redirectURI,
		store:       store,
		exchanger:   exchanger,
		out:         out,
		timeout:     callbackTimeout,
		logger:      logger,
	}
}

type callbackResult struct {
	code string
	err  error
}

// Run performs the handshake and stores the resulting credential.
func (l *Login) Run(ctx context.Context) (*Credential, error) {
	redirect, err := url.Parse(l.redirectURI)
	if err != nil {
		return nil, fmt.Errorf("parsing redirect URI: %w", err)
	}

	state, err := GenerateState()
	if err != nil {
		return nil, fmt.Errorf("generating state: %w", err)
	}
	if err := l.store.SaveState(ctx, state); err != nil {
		return nil, fmt.Errorf("saving state: %w", err)
	}

	listener, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return nil, fmt.Errorf("listening for callback: %w", err)
	}

	resultCh := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.HandleFunc(redirect.Path, func(w http.ResponseWriter, r *http.Request) {
		l.handleCallback(w, r, resultCh)
	})
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case resultCh <- callbackResult{err: fmt.Errorf("callback server error: %w", err)}:
			default:
			}
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	fmt.Fprintln(l.out, "\nTo authenticate, open this URL in your browser:")
	fmt.Fprintln(l.out, l.auth.AuthURL(state))
	fmt.Fprintln(l.out, "\nWaiting for authentication...")

	var res callbackResult
	select {
	case res = <-resultCh:
	case <-time.After(l.timeout):
		return nil, ErrAuthTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.err != nil {
		return nil, res.err
	}

	tok, err := l.exchanger.Exchange(ctx, res.code, l.redirectURI)
	if err != nil {
		return nil, fmt.Errorf("exchanging code for token: %w", err)
	}

	cred := NewCredential(tok.AccessToken, tok.RefreshToken, tok.ExpiresIn, time.Now())
	if err := l.store.Save(ctx, cred); err != nil {
		return nil, fmt.Errorf("saving credential: %w", err)
	}

	l.logger.Info("logged in", zap.Time("expires_at", cred.ExpiresAt))
	return cred, nil
}

// handleCallback validates the redirect and hands the code back to Run.
func (l *Login) handleCallback(w http.ResponseWriter, r *http.Request, resultCh chan<- callbackResult) {
	send := func(res callbackResult) {
		select {
		case resultCh <- res:
		default:
		}
	}

	expected, err := l.store.TakeState(r.Context())
	if err != nil {
		http.Error(w, "Failed to read login state", http.StatusInternalServerError)
		send(callbackResult{err: fmt.Errorf("reading state: %w", err)})
		return
	}
	if expected == "" || r.URL.Query().Get("state") != expected {
		http.Error(w, "State mismatch", http.StatusBadRequest)
		send(callbackResult{err: ErrStateMismatch})
		return
	}

	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		http.Error(w, "Authentication failed: "+errMsg, http.StatusBadRequest)
		send(callbackResult{err: fmt.Errorf("spotify auth error: %s", errMsg)})
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "Missing code", http.StatusBadRequest)
		send(callbackResult{err: errors.New("callback has no code")})
		return
	}

	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>Taste Mixer</title></head>
<body>
<h1>Logged in</h1>
<p>You can close this window and return to the terminal.</p>
</body>
</html>`)

	send(callbackResult{code: code})
}

// Logout removes the stored credential and any pending state.
func Logout(ctx context.Context, store Store) error {
	return store.Clear(ctx)
}

// GenerateState creates a random state string for OAuth.
func GenerateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
