package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/justestif/spotify-taste-mixer/internal/auth"
	"github.com/justestif/spotify-taste-mixer/internal/favorites"
	"github.com/justestif/spotify-taste-mixer/internal/gateway"
	"github.com/justestif/spotify-taste-mixer/internal/playlist"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

// statusFor maps pipeline errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrNoCredential),
		errors.Is(err, auth.ErrRefreshFailed),
		errors.Is(err, gateway.ErrNoToken),
		errors.Is(err, gateway.ErrAuthFailed):
		return http.StatusUnauthorized
	case errors.Is(err, playlist.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, favorites.ErrNotFavorite):
		return http.StatusNotFound
	case errors.Is(err, gateway.ErrRateLimited):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

// writePipelineError writes err with its mapped status. The message is
// generic for upstream failures.
func writePipelineError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	message := http.StatusText(status)
	if status == http.StatusUnauthorized {
		message = "not authenticated"
	}
	writeError(w, status, message)
}
