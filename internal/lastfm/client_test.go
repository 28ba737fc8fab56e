package lastfm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/justestif/spotify-taste-mixer/internal/cache"
)

func newTestClient(t *testing.T, h http.Handler, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)

	opts = append([]Option{WithBaseURL(server.URL), WithRetryWait(time.Millisecond, 5*time.Millisecond)}, opts...)
	return NewClient("test-api-key", opts...)
}

func similarResponse(names ...string) similarArtistsResponse {
	var resp similarArtistsResponse
	for _, n := range names {
		resp.SimilarArtists.Artist = append(resp.SimilarArtists.Artist, SimilarArtist{Name: n, Match: "0.5"})
	}
	return resp
}

func TestSimilarArtists(t *testing.T) {
	tests := []struct {
		name     string
		response any
		limit    int
		want     []string
		wantErr  error
	}{
		{
			name:     "returns names in order",
			response: similarResponse("Bill Evans", "Herbie Hancock", "Wayne Shorter"),
			limit:    3,
			want:     []string{"Bill Evans", "Herbie Hancock", "Wayne Shorter"},
		},
		{
			name:     "truncates to limit",
			response: similarResponse("a", "b", "c", "d"),
			limit:    2,
			want:     []string{"a", "b"},
		},
		{
			name:     "empty list",
			response: similarResponse(),
			limit:    3,
			want:     []string{},
		},
		{
			name:     "invalid API key",
			response: apiError{Error: 10, Message: "Invalid API key"},
			limit:    3,
			wantErr:  ErrInvalidAPIKey,
		},
		{
			name:     "unknown artist",
			response: apiError{Error: 6, Message: "The artist you supplied could not be found"},
			limit:    3,
			wantErr:  ErrArtistNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				q := r.URL.Query()
				if q.Get("method") != "artist.getSimilar" {
					t.Errorf("method = %q, want artist.getSimilar", q.Get("method"))
				}
				if q.Get("api_key") != "test-api-key" {
					t.Errorf("api_key = %q, want test-api-key", q.Get("api_key"))
				}
				if q.Get("artist") != "Miles Davis" {
					t.Errorf("artist = %q, want Miles Davis", q.Get("artist"))
				}
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(tt.response)
			}))

			got, err := client.SimilarArtists(context.Background(), "Miles Davis", tt.limit)

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("SimilarArtists() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("SimilarArtists() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("SimilarArtists()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSimilarArtists_Caching(t *testing.T) {
	var requestCount atomic.Int32

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(similarResponse("Radiohead"))
	}))

	for range 2 {
		got, err := client.SimilarArtists(context.Background(), "Muse", 3)
		if err != nil {
			t.Fatalf("SimilarArtists() error = %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("SimilarArtists() got %d names, want 1", len(got))
		}
	}

	// Should only have made one request
	if count := requestCount.Load(); count != 1 {
		t.Errorf("Expected 1 request, got %d", count)
	}
}

func TestSimilarArtists_RateLimitRetry(t *testing.T) {
	var requestCount atomic.Int32

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count := requestCount.Add(1)
		w.Header().Set("Content-Type", "application/json")

		// Fail first 2 requests with rate limit, succeed on 3rd
		if count < 3 {
			json.NewEncoder(w).Encode(apiError{Error: 29, Message: "Rate limit exceeded"})
			return
		}
		json.NewEncoder(w).Encode(similarResponse("Portishead"))
	}))

	got, err := client.SimilarArtists(context.Background(), "Massive Attack", 3)
	if err != nil {
		t.Fatalf("SimilarArtists() error = %v", err)
	}
	if len(got) != 1 || got[0] != "Portishead" {
		t.Errorf("SimilarArtists() got unexpected names: %v", got)
	}

	// Should have made 3 requests (2 rate limited + 1 success)
	if count := requestCount.Load(); count != 3 {
		t.Errorf("Expected 3 requests, got %d", count)
	}
}

func TestSimilarArtists_RateLimitExhausted(t *testing.T) {
	var requestCount atomic.Int32

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(apiError{Error: 29, Message: "Rate limit exceeded"})
	}))

	_, err := client.SimilarArtists(context.Background(), "Artist", 3)

	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("SimilarArtists() error = %v, want ErrRateLimited", err)
	}

	// Should have made 4 requests (1 initial + 3 retries)
	if count := requestCount.Load(); count != 4 {
		t.Errorf("Expected 4 requests, got %d", count)
	}
}

func TestSimilarArtists_NoRetryOnOtherErrors(t *testing.T) {
	var requestCount atomic.Int32

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(apiError{Error: 10, Message: "Invalid API key"})
	}))

	_, err := client.SimilarArtists(context.Background(), "Artist", 3)
	if !errors.Is(err, ErrInvalidAPIKey) {
		t.Errorf("SimilarArtists() error = %v, want ErrInvalidAPIKey", err)
	}
	if count := requestCount.Load(); count != 1 {
		t.Errorf("Expected 1 request, got %d", count)
	}
}

func TestClient_RunSweepsCache(t *testing.T) {
	store := cache.New[[]string](cache.WithTTL(10 * time.Millisecond))
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(similarResponse("Radiohead"))
	}), WithCache(store))

	if _, err := client.SimilarArtists(context.Background(), "Muse", 3); err != nil {
		t.Fatalf("SimilarArtists() error = %v", err)
	}
	if n := store.Len(); n != 1 {
		t.Fatalf("cache Len() = %d, want 1", n)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		client.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for store.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("expired entry was never swept")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSimilarArtists_EmptyName(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected request for empty artist")
	}))

	got, err := client.SimilarArtists(context.Background(), "  ", 3)
	if err != nil || got != nil {
		t.Errorf("SimilarArtists(\"  \") = %v, %v; want nil, nil", got, err)
	}
}

func TestNewClient(t *testing.T) {
	client := NewClient("test-key")

	if client.apiKey != "test-key" {
		t.Errorf("NewClient() apiKey = %s, want test-key", client.apiKey)
	}
	if client.http == nil {
		t.Error("NewClient() http is nil")
	}
	if client.cache == nil {
		t.Error("NewClient() cache is nil")
	}
	if client.http.BaseURL != baseURL {
		t.Errorf("NewClient() BaseURL = %s, want %s", client.http.BaseURL, baseURL)
	}
}
