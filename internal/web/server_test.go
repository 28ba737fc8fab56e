package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/justestif/spotify-taste-mixer/internal/auth"
	"github.com/justestif/spotify-taste-mixer/internal/playlist"
)

// fakeProvider stands in for the Spotify accounts service.
type fakeProvider struct {
	mu           sync.Mutex
	exchangeTok  *oauth2.Token
	exchangeErr  error
	exchangeOpts int
	refreshTok   *oauth2.Token
	refreshErr   error
	refreshed    []string
}

func (p *fakeProvider) AuthURL(state string, _ ...oauth2.AuthCodeOption) string {
	return "https://accounts.example/authorize?state=" + url.QueryEscape(state)
}

func (p *fakeProvider) Exchange(_ context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exchangeOpts = len(opts)
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	return p.exchangeTok, nil
}

func (p *fakeProvider) RefreshToken(_ context.Context, tok *oauth2.Token) (*oauth2.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshed = append(p.refreshed, tok.RefreshToken)
	if p.refreshErr != nil {
		return nil, p.refreshErr
	}
	return p.refreshTok, nil
}

// fakeAPI is a minimal Spotify Web API.
type fakeAPI struct {
	server   *httptest.Server
	bearers  sync.Map // access tokens seen
	searches atomic.Int32
	created  atomic.Int32
	added    atomic.Int32
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /me", func(w http.ResponseWriter, r *http.Request) {
		writeRaw(w, `{"id": "user1", "display_name": "Ana", "country": "MX"}`)
	})
	mux.HandleFunc("GET /search", func(w http.ResponseWriter, r *http.Request) {
		api.searches.Add(1)
		writeRaw(w, `{"tracks": {"items": [
			{"id": "t1", "name": "So What", "popularity": 40, "artists": [{"id": "a1", "name": "Miles Davis"}], "album": {"name": "Kind of Blue", "release_date": "1959-08-17"}, "duration_ms": 545000},
			{"id": "t2", "name": "Take Five", "popularity": 80, "artists": [{"id": "a2", "name": "Dave Brubeck"}], "album": {"name": "Time Out", "release_date": "1959-12-14"}, "duration_ms": 324000},
			{"id": "t3", "name": "Blue in Green", "popularity": 60, "artists": [{"id": "a1", "name": "Miles Davis"}], "album": {"name": "Kind of Blue", "release_date": "1959-08-17"}, "duration_ms": 337000}
		], "total": 3}}`)
	})
	mux.HandleFunc("POST /users/user1/playlists", func(w http.ResponseWriter, r *http.Request) {
		api.created.Add(1)
		writeRaw(w, `{"id": "pl1", "external_urls": {"spotify": "https://open.spotify.com/playlist/pl1"}}`)
	})
	mux.HandleFunc("POST /playlists/pl1/tracks", func(w http.ResponseWriter, r *http.Request) {
		api.added.Add(1)
		writeRaw(w, `{"snapshot_id": "s"}`)
	})

	api.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		api.bearers.Store(token, true)
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(api.server.Close)
	return api
}

func (a *fakeAPI) sawToken(token string) bool {
	_, ok := a.bearers.Load(token)
	return ok
}

func writeRaw(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, body)
}

type testEnv struct {
	server   *Server
	provider *fakeProvider
	api      *fakeAPI
	sessions *SessionStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	api := newFakeAPI(t)
	provider := &fakeProvider{
		exchangeTok: &oauth2.Token{
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
			Expiry:       time.Now().Add(time.Hour),
		},
	}
	sessions := NewSessionStore()

	s, err := NewServer(ServerConfig{
		Provider:      provider,
		SessionSecret: []byte("test-secret"),
		Sessions:      sessions,
		Ranker:        "popularity",
		APIBaseURL:    api.server.URL + "/",
	})
	require.NoError(t, err)

	return &testEnv{server: s, provider: provider, api: api, sessions: sessions}
}

func (e *testEnv) do(t *testing.T, method, target string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, r)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

// login runs the browser login flow and returns the session cookie.
func (e *testEnv) login(t *testing.T) *http.Cookie {
	t.Helper()

	rec := e.do(t, http.MethodGet, "/login", nil)
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	state := findCookie(rec.Result().Cookies(), stateCookieName)
	require.NotNil(t, state)
	assert.Contains(t, rec.Header().Get("Location"), "state="+state.Value)

	rec = e.do(t, http.MethodGet, "/callback?code=abc&state="+state.Value, nil, state)
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
	session := findCookie(rec.Result().Cookies(), sessionCookieName)
	require.NotNil(t, session)
	return session
}

// sessionWith creates a session directly and returns its cookie.
func (e *testEnv) sessionWith(t *testing.T, cred *auth.Credential) (*Session, *http.Cookie) {
	t.Helper()
	session, err := e.sessions.Create(context.Background(), cred, playlist.User{ID: "user1", Country: "MX"})
	require.NoError(t, err)
	value, err := e.server.handlers.codec.sign(session)
	require.NoError(t, err)
	return session, &http.Cookie{Name: sessionCookieName, Value: value}
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewServer_RequiresProviderAndSecret(t *testing.T) {
	_, err := NewServer(ServerConfig{SessionSecret: []byte("x")})
	assert.Error(t, err)

	_, err = NewServer(ServerConfig{Provider: &fakeProvider{}})
	assert.Error(t, err)
}

func TestTokenExchange(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/token-exchange", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/token-exchange", map[string]string{
		"code":         "abc",
		"redirect_uri": auth.DefaultRedirectURI,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decode[auth.TokenResponse](t, rec)
	assert.Equal(t, "access-1", got.AccessToken)
	assert.Equal(t, "refresh-1", got.RefreshToken)
	assert.InDelta(t, 3600, got.ExpiresIn, 2)
	assert.Equal(t, 1, env.provider.exchangeOpts, "redirect_uri override is forwarded")
}

func TestTokenRefresh(t *testing.T) {
	tests := []struct {
		name        string
		body        map[string]string
		token       *oauth2.Token
		err         error
		wantStatus  int
		wantRefresh string
		wantError   string
	}{
		{
			name:       "missing refresh token",
			body:       map[string]string{},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:        "keeps refresh token when provider omits it",
			body:        map[string]string{"refresh_token": "old"},
			token:       &oauth2.Token{AccessToken: "new", Expiry: time.Now().Add(time.Hour)},
			wantStatus:  http.StatusOK,
			wantRefresh: "old",
		},
		{
			name:        "rotated refresh token",
			body:        map[string]string{"refresh_token": "old"},
			token:       &oauth2.Token{AccessToken: "new", RefreshToken: "rotated"},
			wantStatus:  http.StatusOK,
			wantRefresh: "rotated",
		},
		{
			name: "provider rejects",
			body: map[string]string{"refresh_token": "revoked"},
			err: &oauth2.RetrieveError{
				Response:         &http.Response{StatusCode: http.StatusBadRequest},
				ErrorDescription: "Invalid refresh token",
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid refresh token",
		},
		{
			name:       "provider unreachable",
			body:       map[string]string{"refresh_token": "old"},
			err:        errors.New("dial tcp: connection refused"),
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.provider.refreshTok = tt.token
			env.provider.refreshErr = tt.err

			rec := env.do(t, http.MethodPost, "/token-refresh", tt.body)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			if tt.wantRefresh != "" {
				got := decode[auth.TokenResponse](t, rec)
				assert.Equal(t, "new", got.AccessToken)
				assert.Equal(t, tt.wantRefresh, got.RefreshToken)
			}
			if tt.wantError != "" {
				got := decode[errorResponse](t, rec)
				assert.Equal(t, tt.wantError, got.Error)
			}
		})
	}
}

func TestCallback_StateMismatch(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/callback?code=abc&state=forged", nil,
		&http.Cookie{Name: stateCookieName, Value: "expected"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, findCookie(rec.Result().Cookies(), sessionCookieName))

	rec = env.do(t, http.MethodGet, "/callback?code=abc&state=expected", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing state cookie")
}

func TestLoginAndMe(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)

	rec := env.do(t, http.MethodGet, "/api/me", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		User          playlist.User `json:"user"`
		Authenticated bool          `json:"authenticated"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "user1", got.User.ID)
	assert.Equal(t, "MX", got.User.Country)
	assert.True(t, got.Authenticated)
	assert.True(t, env.api.sawToken("access-1"))
}

func TestAPI_RequiresSession(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		cookie *http.Cookie
	}{
		{"no cookie", nil},
		{"garbage cookie", &http.Cookie{Name: sessionCookieName, Value: "not-a-jwt"}},
		{"unknown session", func() *http.Cookie {
			codec := &sessionCodec{secret: []byte("test-secret"), now: time.Now}
			v, _ := codec.sign(&Session{ID: "gone", User: playlist.User{ID: "user1"}})
			return &http.Cookie{Name: sessionCookieName, Value: v}
		}()},
		{"wrong secret", func() *http.Cookie {
			codec := &sessionCodec{secret: []byte("other"), now: time.Now}
			session, _ := env.sessions.Create(context.Background(), nil, playlist.User{ID: "user1"})
			v, _ := codec.sign(session)
			return &http.Cookie{Name: sessionCookieName, Value: v}
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cookies []*http.Cookie
			if tt.cookie != nil {
				cookies = append(cookies, tt.cookie)
			}
			rec := env.do(t, http.MethodPost, "/api/playlist/generate", generateRequest{}, cookies...)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestGenerate(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)

	rec := env.do(t, http.MethodPost, "/api/playlist/generate", generateRequest{
		Preferences: playlist.Preferences{
			Genres:        []string{"jazz"},
			AudioFeatures: map[string]float64{"energy": 0.3, "valence": 0.3},
		},
		ExcludeIDs: []string{"t3"},
	}, cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decode[generateResponse](t, rec)
	require.Len(t, got.Tracks, 2)
	assert.Equal(t, "t2", got.Tracks[0].ID, "sorted by popularity")
	assert.Equal(t, "t1", got.Tracks[1].ID)
	assert.Equal(t, 2, got.Stats.Tracks)
	assert.Equal(t, 2, got.Stats.UniqueArtists)
	assert.Equal(t, "Reflective & Melancholy", got.Mood)
}

func TestGenerate_RefreshesExpiredCredential(t *testing.T) {
	env := newTestEnv(t)
	env.provider.refreshTok = &oauth2.Token{AccessToken: "access-2", Expiry: time.Now().Add(time.Hour)}

	session, cookie := env.sessionWith(t, &auth.Credential{
		AccessToken:  "stale",
		RefreshToken: "refresh-0",
		ExpiresAt:    time.Now().Add(time.Minute),
	})

	rec := env.do(t, http.MethodPost, "/api/playlist/generate",
		generateRequest{Preferences: playlist.Preferences{Genres: []string{"jazz"}}}, cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.True(t, env.api.sawToken("access-2"))
	assert.False(t, env.api.sawToken("stale"))
	assert.Equal(t, []string{"refresh-0"}, env.provider.refreshed)

	stored := env.sessions.Get(context.Background(), session.ID)
	require.NotNil(t, stored.Credential)
	assert.Equal(t, "access-2", stored.Credential.AccessToken)
	assert.Equal(t, "refresh-0", stored.Credential.RefreshToken)
}

func TestGenerate_RefreshFailureIsUnauthorized(t *testing.T) {
	env := newTestEnv(t)
	env.provider.refreshErr = errors.New("invalid_grant")

	session, cookie := env.sessionWith(t, &auth.Credential{
		AccessToken:  "stale",
		RefreshToken: "revoked",
		ExpiresAt:    time.Now().Add(-time.Minute),
	})

	rec := env.do(t, http.MethodPost, "/api/playlist/generate",
		generateRequest{Preferences: playlist.Preferences{Genres: []string{"jazz"}}}, cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, rec.Body.String())
	assert.Zero(t, env.api.searches.Load())

	stored := env.sessions.Get(context.Background(), session.ID)
	require.NotNil(t, stored)
	assert.Nil(t, stored.Credential, "failed refresh clears the credential")
}

func TestGenerateMore(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)

	rec := env.do(t, http.MethodPost, "/api/playlist/more", generateRequest{
		Preferences: playlist.Preferences{Genres: []string{"jazz"}},
		ExcludeIDs:  []string{"t1"},
		Count:       5,
	}, cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got struct {
		Tracks []playlist.Track `json:"tracks"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Len(t, got.Tracks, 2)
	for _, tr := range got.Tracks {
		assert.NotEqual(t, "t1", tr.ID)
	}
}

func TestCreatePlaylist(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)

	rec := env.do(t, http.MethodPost, "/api/playlists", createPlaylistRequest{}, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/playlists", createPlaylistRequest{
		Name:   "Late Night",
		Tracks: []playlist.Track{{ID: "t1"}, {ID: "t2"}},
	}, cookie)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	got := decode[savedPlaylistResponse](t, rec)
	assert.Equal(t, "pl1", got.SpotifyID)
	assert.Equal(t, "https://open.spotify.com/playlist/pl1", got.URL)
	assert.Equal(t, 2, got.Tracks)
	assert.EqualValues(t, 1, env.api.created.Load())
	assert.EqualValues(t, 1, env.api.added.Load())

	rec = env.do(t, http.MethodGet, "/api/playlists", nil, cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestFavorites(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)
	track := playlist.Track{ID: "t9", Name: "Naima"}

	rec := env.do(t, http.MethodPost, "/api/favorites", favoriteRequest{Track: track}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode[map[string]any](t, rec)["favorite"])

	rec = env.do(t, http.MethodGet, "/api/favorites", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Tracks []playlist.Track `json:"tracks"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Equal(t, []playlist.Track{track}, list.Tracks)

	rec = env.do(t, http.MethodDelete, "/api/favorites/t9", nil, cookie)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/favorites/t9", nil, cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/favorites", map[string]any{}, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)

	rec := env.do(t, http.MethodPost, "/logout", nil, cookie)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/me", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// sweepingSource is a similar-artist source that owns a cache.
type sweepingSource struct {
	started chan struct{}
	stopped chan struct{}
}

func (s *sweepingSource) SimilarArtists(context.Context, string, int) ([]string, error) {
	return nil, nil
}

func (s *sweepingSource) Run(ctx context.Context) {
	close(s.started)
	<-ctx.Done()
	close(s.stopped)
}

func TestRun_StartsSimilarArtistSweeper(t *testing.T) {
	source := &sweepingSource{started: make(chan struct{}), stopped: make(chan struct{})}
	server, err := NewServer(ServerConfig{
		Addr:           "127.0.0.1:0",
		Provider:       &fakeProvider{},
		SessionSecret:  []byte("test-secret"),
		SimilarArtists: source,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- server.Run(ctx) }()

	select {
	case <-source.started:
	case <-time.After(2 * time.Second):
		t.Fatal("similar-artist sweeper was not started")
	}

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	select {
	case <-source.stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("similar-artist sweeper was not stopped")
	}
}
