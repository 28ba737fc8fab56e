package web

import (
	"context"
	"net/http"
	"time"

	spotifyapi "github.com/zmb3/spotify/v2"
	"go.uber.org/zap"

	"github.com/justestif/spotify-taste-mixer/internal/auth"
	"github.com/justestif/spotify-taste-mixer/internal/favorites"
	"github.com/justestif/spotify-taste-mixer/internal/gateway"
	"github.com/justestif/spotify-taste-mixer/internal/playlist"
	"github.com/justestif/spotify-taste-mixer/internal/spotify"
)

type contextKey string

const sessionKey contextKey = "session"

// Handlers contains HTTP handlers for the server.
type Handlers struct {
	provider   OAuthProvider
	exchanger  *providerExchanger
	sessions   SessionManager
	codec      *sessionCodec
	clients    *clientPool
	favorites  favorites.Store
	history    PlaylistHistory
	apiBaseURL string
	now        func() time.Time
	logger     *zap.Logger
}

// Health reports liveness (GET /healthz).
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Login initiates the Spotify OAuth flow (GET /login).
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	// Generate state for CSRF protection
	state, err := auth.GenerateState()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate state")
		return
	}

	// Store state in cookie for validation on callback
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   stateCookieMaxAge,
	})

	http.Redirect(w, r, h.provider.AuthURL(state), http.StatusTemporaryRedirect)
}

// Callback handles the OAuth callback from Spotify (GET /callback).
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	// Verify state
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing state cookie")
		return
	}

	query := r.URL.Query()
	if query.Get("state") == "" || query.Get("state") != stateCookie.Value {
		writeError(w, http.StatusBadRequest, "state mismatch")
		return
	}
	clearCookie(w, stateCookieName)

	// Check for error from Spotify
	if errMsg := query.Get("error"); errMsg != "" {
		writeError(w, http.StatusBadRequest, "spotify auth error: "+errMsg)
		return
	}

	code := query.Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing code")
		return
	}

	tok, err := h.exchanger.Exchange(r.Context(), code, "")
	if err != nil {
		h.logger.Warn("callback exchange failed", zap.Error(err))
		writeProviderError(w, err, "failed to get token")
		return
	}
	cred := auth.NewCredential(tok.AccessToken, tok.RefreshToken, tok.ExpiresIn, h.now())

	user, err := h.lookupUser(r.Context(), cred.AccessToken)
	if err != nil {
		h.logger.Warn("fetching user after login", zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to get user info")
		return
	}

	session, err := h.sessions.Create(r.Context(), cred, *user)
	if err != nil {
		h.logger.Error("creating session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	if err := h.codec.setCookie(w, session); err != nil {
		h.logger.Error("setting session cookie", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	h.logger.Info("user logged in", zap.String("user", user.ID))
	http.Redirect(w, r, "/api/me", http.StatusFound)
}

// Logout deletes the session (POST /logout).
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if id, err := h.codec.sessionID(r); err == nil {
		h.sessions.Delete(r.Context(), id)
		h.clients.forget(id)
	}
	clearCookie(w, sessionCookieName)
	w.WriteHeader(http.StatusNoContent)
}

// RequireSession rejects requests without a valid session cookie and puts
// the session in the request context.
func (h *Handlers) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := h.codec.sessionID(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		session := h.sessions.Get(r.Context(), id)
		if session == nil {
			clearCookie(w, sessionCookieName)
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey).(*Session)
	return s
}

// lookupUser fetches the profile for a freshly issued access token.
func (h *Handlers) lookupUser(ctx context.Context, accessToken string) (*playlist.User, error) {
	tokens := gateway.TokenSourceFunc(func(context.Context) (string, error) { return accessToken, nil })
	transport := gateway.New(tokens, gateway.WithLogger(h.logger))

	var opts []spotifyapi.ClientOption
	if h.apiBaseURL != "" {
		opts = append(opts, spotifyapi.WithBaseURL(h.apiBaseURL))
	}
	return spotify.New(spotifyapi.New(transport.Client(), opts...)).CurrentUser(ctx)
}
