package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const intermediaryTimeout = 15 * time.Second

// TokenResponse is the intermediary's reply to an exchange or refresh.
// RefreshToken may be empty on refresh when the provider keeps the old one.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in"`
}

// Exchanger trades an authorization code or a refresh token for a new
// access token. The client secret stays on the other side.
type Exchanger interface {
	Exchange(ctx context.Context, code, redirectURI string) (*TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error)
}

// IntermediaryError is a non-2xx reply from the token intermediary.
type IntermediaryError struct {
	StatusCode int
	Message    string
}

func (e *IntermediaryError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("intermediary returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("intermediary returned status %d: %s", e.StatusCode, e.Message)
}

type errorBody struct {
	Error string `json:"error"`
}

// IntermediaryClient talks to the token intermediary over HTTP.
type IntermediaryClient struct {
	http *resty.Client
}

// NewIntermediaryClient creates a client for the intermediary at baseURL.
func NewIntermediaryClient(baseURL string) *IntermediaryClient {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(intermediaryTimeout).
		SetHeader("Content-Type", "application/json")
	return &IntermediaryClient{http: c}
}

// Exchange trades an authorization code via POST /token-exchange.
// redirectURI must match the one the code was issued for; empty means the
// intermediary's own.
func (c *IntermediaryClient) Exchange(ctx context.Context, code, redirectURI string) (*TokenResponse, error) {
	if code == "" {
		return nil, errors.New("missing authorization code")
	}
	body := map[string]string{"code": code}
	if redirectURI != "" {
		body["redirect_uri"] = redirectURI
	}
	return c.post(ctx, "/token-exchange", body)
}

// Refresh trades a refresh token via POST /token-refresh.
func (c *IntermediaryClient) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	if refreshToken == "" {
		return nil, errors.New("missing refresh token")
	}
	return c.post(ctx, "/token-refresh", map[string]string{"refresh_token": refreshToken})
}

func (c *IntermediaryClient) post(ctx context.Context, path string, body any) (*TokenResponse, error) {
	var (
		result TokenResponse
		failed errorBody
	)

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		SetError(&failed).
		Post(path)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", path, err)
	}

	if resp.IsError() {
		return nil, &IntermediaryError{StatusCode: resp.StatusCode(), Message: failed.Error}
	}
	if result.AccessToken == "" {
		return nil, fmt.Errorf("%s: response has no access_token", path)
	}

	return &result, nil
}
