package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/devilmonastery/openfolio/internal/pkg/logger"
	"github.com/devilmonastery/openfolio/internal/pkg/metrics"
)

// retriedKey marks a request as the one-time replay of a request rejected with 401
type retriedKey struct{}

func withRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, retriedKey{}, true)
}

func isRetried(req *http.Request) bool {
	retried, _ := req.Context().Value(retriedKey{}).(bool)
	return retried
}

// authTransport wraps an http.RoundTripper with bearer attachment and
// coordinated token refresh on 401 responses
type authTransport struct {
	base        http.RoundTripper
	coord       *AuthCoordinator
	refreshPath string
	logger      *slog.Logger
}

// NewAuthTransport creates the auth interceptor chain around base.
// Requests to refreshPath pass through untouched.
func NewAuthTransport(base http.RoundTripper, coord *AuthCoordinator, refreshPath string) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if refreshPath == "" {
		refreshPath = DefaultRefreshPath
	}
	return &authTransport{
		base:        base,
		coord:       coord,
		refreshPath: refreshPath,
		logger:      slog.Default().With(slog.String("component", "auth-transport")),
	}
}

// RoundTrip implements http.RoundTripper
func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// The refresh endpoint never carries a bearer and never triggers a refresh
	if strings.HasSuffix(req.URL.Path, t.refreshPath) {
		return t.base.RoundTrip(req)
	}

	out, err := cloneWithBody(req)
	if err != nil {
		return nil, err
	}

	retried := isRetried(out)
	var token string
	if !retried {
		token = t.coord.Authorize(out)
	}

	resp, err := t.base.RoundTrip(out)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	discard(resp)

	if retried {
		logger.WithHTTPRequest(t.logger, out.Method, out.URL.Path).Debug("replayed request still unauthorized")
		return nil, ErrRetryExhausted
	}

	newToken, err := t.coord.HandleUnauthorized(out.Context(), token)
	if err != nil {
		return nil, err
	}
	return t.replay(out, newToken)
}

// replay re-issues req once with the refreshed token
func (t *authTransport) replay(req *http.Request, token string) (*http.Response, error) {
	r := req.Clone(withRetried(req.Context()))
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("failed to rewind request body for replay: %w", err)
		}
		r.Body = body
	}
	r.Header.Set("Authorization", "Bearer "+token)

	logger.WithHTTPRequest(t.logger, r.Method, r.URL.Path).Debug("retrying request with refreshed token")

	resp, err := t.RoundTrip(r)
	switch {
	case errors.Is(err, ErrRetryExhausted):
		metrics.RecordReplay(nil, http.StatusUnauthorized)
	case err != nil:
		metrics.RecordReplay(err, 0)
	default:
		metrics.RecordReplay(nil, resp.StatusCode)
	}
	return resp, err
}

// cloneWithBody copies req so headers can be set without touching the caller's
// request, and makes the body re-readable for a possible replay
func cloneWithBody(req *http.Request) (*http.Request, error) {
	out := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return out, nil
	}

	data, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to buffer request body: %w", err)
	}
	out.Body = io.NopCloser(bytes.NewReader(data))
	out.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	out.ContentLength = int64(len(data))
	return out, nil
}

// discard drains and closes a response that is not handed back to the caller
func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
}
