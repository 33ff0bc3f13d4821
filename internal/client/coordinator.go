package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/devilmonastery/openfolio/internal/pkg/metrics"
)

const defaultRefreshTimeout = 15 * time.Second

// refreshResult settles one parked request.
type refreshResult struct {
	token string
	err   error
}

// AuthCoordinator attaches credentials to outbound requests and makes sure that
// at most one token refresh is in flight at a time. Requests that hit a 401 while
// a refresh is running wait for its outcome instead of starting their own.
type AuthCoordinator struct {
	tokens    TokenManager
	refresher Refresher
	logger    *slog.Logger

	refreshTimeout time.Duration
	strictRotation bool
	onExpired      func()

	mu         sync.Mutex
	refreshing bool
	waiters    []chan refreshResult
}

// CoordinatorOption configures an AuthCoordinator
type CoordinatorOption func(*AuthCoordinator)

// WithRefreshTimeout bounds the refresh endpoint call
func WithRefreshTimeout(d time.Duration) CoordinatorOption {
	return func(c *AuthCoordinator) {
		if d > 0 {
			c.refreshTimeout = d
		}
	}
}

// WithStrictRotation treats a refresh response without a new refresh token as a failure.
// By default the previous refresh token is kept.
func WithStrictRotation() CoordinatorOption {
	return func(c *AuthCoordinator) {
		c.strictRotation = true
	}
}

// WithSessionExpiredHook registers a callback run after a failed refresh has cleared the stored tokens.
func WithSessionExpiredHook(fn func()) CoordinatorOption {
	return func(c *AuthCoordinator) {
		c.onExpired = fn
	}
}

// WithLogger sets the logger used by the coordinator
func WithLogger(logger *slog.Logger) CoordinatorOption {
	return func(c *AuthCoordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewAuthCoordinator creates a coordinator for one application session
func NewAuthCoordinator(tokens TokenManager, refresher Refresher, opts ...CoordinatorOption) *AuthCoordinator {
	c := &AuthCoordinator{
		tokens:         tokens,
		refresher:      refresher,
		logger:         slog.Default(),
		refreshTimeout: defaultRefreshTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("component", "auth-coordinator"))
	return c
}

// Authorize sets the bearer header from the stored access token.
// Without a stored session the request is left unauthenticated.
// It returns the token it attached, or "" if none.
func (c *AuthCoordinator) Authorize(req *http.Request) string {
	creds, err := loadCredentials(c.tokens)
	if err != nil {
		c.logger.Debug("failed to load credentials, sending unauthenticated",
			slog.String("error", err.Error()))
		return ""
	}
	if creds == nil || creds.AccessToken == "" {
		return ""
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	return creds.AccessToken
}

// Refreshing reports whether a refresh episode is currently open
func (c *AuthCoordinator) Refreshing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshing
}

// pending returns the number of parked requests
func (c *AuthCoordinator) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// HandleUnauthorized obtains a fresh access token after a request sent with
// staleToken was rejected. The first caller starts the refresh; callers arriving
// while it runs are parked and receive the same outcome. ctx only bounds how
// long this caller waits, never the shared refresh itself, so the leader may
// return early and the episode still settles everyone parked behind it.
func (c *AuthCoordinator) HandleUnauthorized(ctx context.Context, staleToken string) (string, error) {
	c.mu.Lock()
	if c.refreshing {
		ch := make(chan refreshResult, 1)
		c.waiters = append(c.waiters, ch)
		c.mu.Unlock()
		metrics.RefreshWaiters.Inc()
		c.logger.Debug("refresh in flight, parking request")

		select {
		case res := <-ch:
			return res.token, res.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	// A previous episode may already have replaced the token this request was sent with.
	creds, err := loadCredentials(c.tokens)
	if err == nil && creds != nil && creds.AccessToken != "" && creds.AccessToken != staleToken {
		c.mu.Unlock()
		c.logger.Debug("stale token already replaced, skipping refresh")
		return creds.AccessToken, nil
	}

	c.refreshing = true
	c.mu.Unlock()

	done := make(chan refreshResult, 1)
	go func() {
		token, err := c.runEpisode(ctx)
		done <- refreshResult{token: token, err: err}
	}()

	select {
	case res := <-done:
		return res.token, res.err
	case <-ctx.Done():
		c.logger.Debug("caller gone, refresh continues for parked requests")
		return "", ctx.Err()
	}
}

// runEpisode performs the single refresh of an episode and settles every waiter.
func (c *AuthCoordinator) runEpisode(ctx context.Context) (token string, err error) {
	defer func() {
		if r := recover(); r != nil {
			token, err = "", &RefreshError{Err: fmt.Errorf("refresh panicked: %v", r)}
			c.expire()
		}

		c.mu.Lock()
		waiters := c.waiters
		c.waiters = nil
		c.refreshing = false
		c.mu.Unlock()

		for _, w := range waiters {
			w <- refreshResult{token: token, err: err}
		}
		c.logger.Debug("refresh episode closed",
			slog.Int("waiters", len(waiters)),
			slog.Bool("success", err == nil))
	}()

	creds, loadErr := loadCredentials(c.tokens)
	if loadErr != nil || creds == nil || creds.RefreshToken == "" {
		c.logger.Info("no refresh token available, clearing session")
		metrics.RecordRefresh("missing_token", 0)
		c.expire()
		return "", ErrRefreshTokenMissing
	}

	refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
	defer cancel()

	c.logger.Info("access token rejected, refreshing")
	start := time.Now()
	fresh, refreshErr := c.refresher.Refresh(refreshCtx, creds.RefreshToken)
	duration := time.Since(start)

	if refreshErr == nil {
		refreshErr = c.validate(fresh, creds.RefreshToken)
	}
	if refreshErr == nil {
		if saveErr := c.tokens.SaveTokens(fresh.AccessToken, fresh.RefreshToken); saveErr != nil {
			refreshErr = fmt.Errorf("failed to save refreshed tokens: %w", saveErr)
		}
	}
	if refreshErr != nil {
		c.logger.Error("token refresh failed", slog.String("error", refreshErr.Error()))
		metrics.RecordRefresh("failed", duration)
		c.expire()
		var re *RefreshError
		if !errors.As(refreshErr, &re) {
			refreshErr = &RefreshError{Err: refreshErr}
		}
		return "", refreshErr
	}

	metrics.RecordRefresh("success", duration)
	c.logger.Info("successfully refreshed token", slog.Duration("duration", duration))
	return fresh.AccessToken, nil
}

// validate checks the refresh response and applies the rotation policy.
// A missing refresh token keeps the previous one unless strict rotation is on.
func (c *AuthCoordinator) validate(fresh *Credentials, previousRefresh string) error {
	if fresh == nil || fresh.AccessToken == "" {
		return errors.New("refresh response did not include an access token")
	}
	if fresh.RefreshToken == "" {
		if c.strictRotation {
			return errors.New("refresh response did not include a rotated refresh token")
		}
		fresh.RefreshToken = previousRefresh
	}
	return nil
}

// expire clears stored tokens after a failed refresh.
func (c *AuthCoordinator) expire() {
	if err := c.tokens.ClearTokens(); err != nil {
		c.logger.Warn("failed to clear tokens", slog.String("error", err.Error()))
	}
	if c.onExpired != nil {
		c.onExpired()
	}
}
