package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/justestif/spotify-taste-mixer/internal/auth"
)

// defaultExpiresIn is reported when the provider's token carries no expiry.
const defaultExpiresIn = 3600

// OAuthProvider performs the confidential half of the authorization-code
// flow. *spotifyauth.Authenticator satisfies it.
type OAuthProvider interface {
	AuthURL(state string, opts ...oauth2.AuthCodeOption) string
	Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)
	RefreshToken(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error)
}

type exchangeRequest struct {
	Code        string `json:"code"`
	RedirectURI string `json:"redirect_uri,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenExchange trades an authorization code for tokens (POST /token-exchange).
func (h *Handlers) TokenExchange(w http.ResponseWriter, r *http.Request) {
	var req exchangeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	resp, err := h.exchanger.Exchange(r.Context(), req.Code, req.RedirectURI)
	if err != nil {
		h.logger.Warn("token exchange failed", zap.Error(err))
		writeProviderError(w, err, "failed to exchange code")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// TokenRefresh trades a refresh token for a new access token
// (POST /token-refresh). The caller's refresh token is echoed back when the
// provider does not rotate it.
func (h *Handlers) TokenRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refresh token is required")
		return
	}

	resp, err := h.exchanger.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.logger.Warn("token refresh failed", zap.Error(err))
		writeProviderError(w, err, "failed to refresh token")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeProviderError passes the provider's status through, as the token
// endpoint's 4xx answers are meaningful to the caller.
func writeProviderError(w http.ResponseWriter, err error, message string) {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) && rerr.Response != nil {
		if rerr.ErrorDescription != "" {
			message = rerr.ErrorDescription
		}
		writeError(w, rerr.Response.StatusCode, message)
		return
	}
	writeError(w, http.StatusBadGateway, message)
}

// providerExchanger implements auth.Exchanger directly against the provider,
// holding the client secret. The server uses it both for the intermediary
// endpoints and to refresh its own sessions.
type providerExchanger struct {
	provider OAuthProvider
	now      func() time.Time
}

func (e *providerExchanger) Exchange(ctx context.Context, code, redirectURI string) (*auth.TokenResponse, error) {
	var opts []oauth2.AuthCodeOption
	if redirectURI != "" {
		opts = append(opts, oauth2.SetAuthURLParam("redirect_uri", redirectURI))
	}
	tok, err := e.provider.Exchange(ctx, code, opts...)
	if err != nil {
		return nil, err
	}
	return e.response(tok, ""), nil
}

func (e *providerExchanger) Refresh(ctx context.Context, refreshToken string) (*auth.TokenResponse, error) {
	tok, err := e.provider.RefreshToken(ctx, &oauth2.Token{RefreshToken: refreshToken})
	if err != nil {
		return nil, err
	}
	return e.response(tok, refreshToken), nil
}

func (e *providerExchanger) response(tok *oauth2.Token, previousRefresh string) *auth.TokenResponse {
	resp := &auth.TokenResponse{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresIn:    defaultExpiresIn,
	}
	if resp.RefreshToken == "" {
		resp.RefreshToken = previousRefresh
	}
	if !tok.Expiry.IsZero() {
		resp.ExpiresIn = max(0, int(tok.Expiry.Sub(e.now()).Round(time.Second).Seconds()))
	}
	return resp
}

var _ auth.Exchanger = (*providerExchanger)(nil)
