package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/justestif/spotify-taste-mixer/internal/db"
	"github.com/justestif/spotify-taste-mixer/internal/favorites"
	"github.com/justestif/spotify-taste-mixer/internal/playlist"
	"github.com/justestif/spotify-taste-mixer/internal/ranking"
)

const historyLimit = 50

// PlaylistHistory records playlists created through the API.
// *db.PlaylistRepository satisfies it.
type PlaylistHistory interface {
	Create(ctx context.Context, p *db.SavedPlaylist) error
	ListForUser(ctx context.Context, userID string, limit int) ([]db.SavedPlaylist, error)
}

type generateRequest struct {
	Preferences playlist.Preferences `json:"preferences"`
	ExcludeIDs  []string             `json:"exclude_ids,omitempty"`
	Count       int                  `json:"count,omitempty"`
}

type generateResponse struct {
	Tracks []playlist.Track `json:"tracks"`
	Stats  playlist.Stats   `json:"stats"`
	Mood   string           `json:"mood,omitempty"`
}

type createPlaylistRequest struct {
	Name   string           `json:"name,omitempty"`
	Tracks []playlist.Track `json:"tracks"`
}

type savedPlaylistResponse struct {
	ID        string `json:"id,omitempty"`
	SpotifyID string `json:"spotify_id"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	Tracks    int    `json:"tracks"`
}

type favoriteRequest struct {
	Track playlist.Track `json:"track"`
}

// Me returns the session user (GET /api/me).
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"user":          session.User,
		"authenticated": session.Credential != nil,
	})
}

// Genres lists selectable genres (GET /api/genres).
func (h *Handlers) Genres(w http.ResponseWriter, r *http.Request) {
	c, ok := h.client(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"genres": c.catalog.AvailableGenres(r.Context())})
}

// Artists searches artists by name (GET /api/artists?q=).
func (h *Handlers) Artists(w http.ResponseWriter, r *http.Request) {
	c, ok := h.client(w, r)
	if !ok {
		return
	}
	artists := c.catalog.SearchArtists(r.Context(), r.URL.Query().Get("q"))
	if artists == nil {
		artists = []playlist.Artist{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"artists": artists})
}

// Generate builds a playlist (POST /api/playlist/generate). A newer request
// from the same session supersedes one still running.
func (h *Handlers) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	c, ok := h.client(w, r)
	if !ok {
		return
	}

	tracks, err := c.latest.Do(r.Context(), func(ctx context.Context) ([]playlist.Track, error) {
		return c.generator.Generate(ctx, req.Preferences, req.ExcludeIDs)
	})
	if err != nil {
		h.pipelineError(w, r, "generate", err)
		return
	}

	resp := generateResponse{Tracks: tracks, Stats: playlist.Summarize(tracks)}
	if len(req.Preferences.AudioFeatures) > 0 {
		resp.Mood = ranking.MoodName(req.Preferences.AudioFeatures)
	}
	writeJSON(w, http.StatusOK, resp)
}

// More returns extra tracks for the current playlist (POST /api/playlist/more).
func (h *Handlers) More(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	c, ok := h.client(w, r)
	if !ok {
		return
	}

	tracks, err := c.generator.GenerateMore(r.Context(), req.Preferences, req.ExcludeIDs, req.Count)
	if err != nil {
		h.pipelineError(w, r, "generate more", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tracks": tracks})
}

// CreatePlaylist saves tracks as a playlist on the user's account
// (POST /api/playlists).
func (h *Handlers) CreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var req createPlaylistRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Tracks) == 0 {
		writeError(w, http.StatusBadRequest, "no tracks")
		return
	}
	c, ok := h.client(w, r)
	if !ok {
		return
	}

	session := sessionFrom(r.Context())
	name := req.Name
	if name == "" {
		name = playlist.DefaultName(h.now())
	}

	pl, err := c.mutator.CreateRemotePlaylist(r.Context(), session.User.ID, req.Tracks, name)
	if err != nil {
		h.pipelineError(w, r, "create playlist", err)
		return
	}

	saved := &db.SavedPlaylist{
		UserID:    session.User.ID,
		SpotifyID: pl.ID,
		Name:      name,
		URL:       pl.ExternalURL,
		TrackIDs:  trackIDs(req.Tracks),
	}
	if h.history != nil {
		if err := h.history.Create(r.Context(), saved); err != nil {
			h.logger.Warn("recording playlist", zap.String("playlist", pl.ID), zap.Error(err))
		}
	}

	writeJSON(w, http.StatusCreated, toSavedPlaylistResponse(*saved))
}

// ListPlaylists returns playlists created through the API (GET /api/playlists).
func (h *Handlers) ListPlaylists(w http.ResponseWriter, r *http.Request) {
	out := []savedPlaylistResponse{}
	if h.history != nil {
		saved, err := h.history.ListForUser(r.Context(), sessionFrom(r.Context()).User.ID, historyLimit)
		if err != nil {
			h.logger.Error("listing playlists", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to list playlists")
			return
		}
		for _, p := range saved {
			out = append(out, toSavedPlaylistResponse(p))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"playlists": out})
}

// ListFavorites returns the user's favorites (GET /api/favorites).
func (h *Handlers) ListFavorites(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.favorites.List(r.Context(), sessionFrom(r.Context()).User.ID)
	if err != nil {
		h.logger.Error("listing favorites", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list favorites")
		return
	}
	if tracks == nil {
		tracks = []playlist.Track{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tracks": tracks})
}

// ToggleFavorite stars or unstars a track (POST /api/favorites).
func (h *Handlers) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	var req favoriteRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Track.ID == "" {
		writeError(w, http.StatusBadRequest, "track with id is required")
		return
	}

	on, err := favorites.Toggle(r.Context(), h.favorites, sessionFrom(r.Context()).User.ID, req.Track)
	if err != nil {
		h.logger.Error("toggling favorite", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update favorites")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": req.Track.ID, "favorite": on})
}

// RemoveFavorite unstars a track (DELETE /api/favorites/{trackID}).
func (h *Handlers) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	trackID := chi.URLParam(r, "trackID")
	err := h.favorites.Remove(r.Context(), sessionFrom(r.Context()).User.ID, trackID)
	switch {
	case errors.Is(err, favorites.ErrNotFavorite):
		writeError(w, http.StatusNotFound, "not a favorite")
	case err != nil:
		h.logger.Error("removing favorite", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update favorites")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// client returns the session's pipeline, writing an error if it cannot be built.
func (h *Handlers) client(w http.ResponseWriter, r *http.Request) (*sessionClient, bool) {
	c, err := h.clients.get(sessionFrom(r.Context()).ID)
	if err != nil {
		h.logger.Error("building session client", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "server misconfigured")
		return nil, false
	}
	return c, true
}

func (h *Handlers) pipelineError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Warn(op+" failed", zap.Error(err))
	}
	if status == http.StatusUnauthorized {
		h.clients.forget(sessionFrom(r.Context()).ID)
	}
	writePipelineError(w, err)
}

func toSavedPlaylistResponse(p db.SavedPlaylist) savedPlaylistResponse {
	resp := savedPlaylistResponse{
		SpotifyID: p.SpotifyID,
		Name:      p.Name,
		URL:       p.URL,
		Tracks:    len(p.TrackIDs),
	}
	if p.ID != uuid.Nil {
		resp.ID = p.ID.String()
	}
	return resp
}

func trackIDs(tracks []playlist.Track) []string {
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}
	return ids
}
