package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// DefaultRefreshPath is the refresh endpoint, relative to the API base URL
const DefaultRefreshPath = "/auth/refresh"

// Refresher exchanges a refresh token for a new token pair
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*Credentials, error)
}

// RefreshFunc adapts a function to the Refresher interface
type RefreshFunc func(ctx context.Context, refreshToken string) (*Credentials, error)

// Refresh calls f
func (f RefreshFunc) Refresh(ctx context.Context, refreshToken string) (*Credentials, error) {
	return f(ctx, refreshToken)
}

// HTTPRefresher calls the backend refresh endpoint directly on the base transport,
// outside the auth chain, so a failed refresh can never trigger another refresh.
type HTTPRefresher struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPRefresher creates a refresher for baseURL + refreshPath.
// base is the untouched transport; nil means http.DefaultTransport.
func NewHTTPRefresher(baseURL, refreshPath string, base http.RoundTripper) *HTTPRefresher {
	if refreshPath == "" {
		refreshPath = DefaultRefreshPath
	}
	if base == nil {
		base = http.DefaultTransport
	}
	return &HTTPRefresher{
		endpoint:   strings.TrimRight(baseURL, "/") + refreshPath,
		httpClient: &http.Client{Transport: base},
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Refresh posts the refresh token and returns the rotated pair
func (r *HTTPRefresher) Refresh(ctx context.Context, refreshToken string) (*Credentials, error) {
	payload, err := json.Marshal(refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return nil, fmt.Errorf("failed to encode refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, &RefreshError{Err: err}
	}
	defer resp.Body.Close()

	var tokens TokenResponse
	if err := decodeEnvelope(resp, &tokens); err != nil {
		return nil, &RefreshError{Err: err}
	}

	if tokens.AccessToken == "" {
		return nil, &RefreshError{Err: errors.New("refresh response did not include an access token")}
	}

	return &Credentials{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}, nil
}
