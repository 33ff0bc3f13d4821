package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/devilmonastery/openfolio/internal/api"
	"github.com/devilmonastery/openfolio/internal/client"
	"github.com/devilmonastery/openfolio/internal/pkg/metrics"
)

// WhoAmI fetches the identity behind the current access token
type WhoAmI interface {
	Me(ctx context.Context) (*api.User, error)
}

// State is a point-in-time copy of the session
type State struct {
	IsAuthenticated bool
	IsRestoring     bool
	UserID          int64
	Email           string
	DisplayName     string
	GitHubUsername  string
}

// Store tracks whether the application holds a usable session and who it belongs to.
// Tokens live in the TokenManager; Store only keeps identity and status.
type Store struct {
	tokens client.TokenManager
	whoami WhoAmI
	logger *slog.Logger

	mu    sync.RWMutex
	state State
}

// NewStore creates a session store. It starts unauthenticated and not restoring.
func NewStore(tokens client.TokenManager, whoami WhoAmI) *Store {
	return &Store{
		tokens: tokens,
		whoami: whoami,
		logger: slog.Default().With(slog.String("component", "session")),
	}
}

// SetWhoAmI sets the identity fetcher used by Restore
func (s *Store) SetWhoAmI(whoami WhoAmI) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.whoami = whoami
}

// Snapshot returns the current session state
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// IsAuthenticated reports whether the session is usable
func (s *Store) IsAuthenticated() bool {
	return s.Snapshot().IsAuthenticated
}

// IsRestoring reports whether Restore is still running
func (s *Store) IsRestoring() bool {
	return s.Snapshot().IsRestoring
}

// Restore validates stored credentials against the whoami endpoint once at startup.
// Any failure leaves the session unauthenticated; recovery is left to the next real request.
// The whoami call goes through the authenticated client, so an expired access token is
// refreshed by the interceptor like any other request; Restore itself never retries.
func (s *Store) Restore(ctx context.Context) State {
	s.mu.Lock()
	s.state.IsRestoring = true
	whoami := s.whoami
	s.mu.Unlock()

	creds, err := s.tokens.LoadTokens()
	if err != nil && !errors.Is(err, client.ErrNoCredentials) {
		s.logger.Warn("failed to load stored credentials", slog.String("error", err.Error()))
	}
	if err != nil || creds == nil || creds.AccessToken == "" {
		metrics.SessionRestores.WithLabelValues("no_session").Inc()
		return s.finishRestore(nil)
	}

	if whoami == nil {
		s.logger.Warn("no whoami endpoint configured, cannot validate session")
		metrics.SessionRestores.WithLabelValues("failed").Inc()
		return s.finishRestore(nil)
	}

	user, err := whoami.Me(ctx)
	if err != nil {
		s.logger.Info("stored session could not be validated", slog.String("error", err.Error()))
		metrics.SessionRestores.WithLabelValues("failed").Inc()
		return s.finishRestore(nil)
	}

	s.logger.Debug("session restored", slog.Int64("user_id", user.ID))
	metrics.SessionRestores.WithLabelValues("restored").Inc()
	return s.finishRestore(user)
}

func (s *Store) finishRestore(user *api.User) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user == nil {
		s.state = State{}
		return s.state
	}
	s.state = State{
		IsAuthenticated: true,
		UserID:          user.ID,
		Email:           user.Email,
		DisplayName:     user.DisplayName,
		GitHubUsername:  user.GitHubUsername,
	}
	return s.state
}

// SetAuthenticated stores a token pair from login or registration and records the identity.
// Identity fields the response omits are read from the access token claims.
func (s *Store) SetAuthenticated(tokens *client.TokenResponse) error {
	if tokens == nil || tokens.AccessToken == "" {
		return fmt.Errorf("no access token in login response")
	}
	if err := s.tokens.SaveTokens(tokens.AccessToken, tokens.RefreshToken); err != nil {
		return fmt.Errorf("failed to save tokens: %w", err)
	}

	next := State{
		IsAuthenticated: true,
		Email:           tokens.Email,
		DisplayName:     tokens.DisplayName,
		GitHubUsername:  tokens.GitHubUsername,
	}
	if tokens.UserID != nil {
		next.UserID = *tokens.UserID
	}
	if next.UserID == 0 || next.Email == "" {
		if claims, err := parseIdentityClaims(tokens.AccessToken); err != nil {
			s.logger.Debug("access token has no readable identity claims", slog.String("error", err.Error()))
		} else {
			if next.UserID == 0 {
				if id, err := strconv.ParseInt(claims.Subject, 10, 64); err == nil {
					next.UserID = id
				}
			}
			if next.Email == "" {
				next.Email = claims.Email
			}
		}
	}

	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
	return nil
}

// Logout clears stored tokens and identity
func (s *Store) Logout() error {
	s.MarkExpired()
	if err := s.tokens.ClearTokens(); err != nil {
		return fmt.Errorf("failed to clear tokens: %w", err)
	}
	return nil
}

// MarkExpired drops identity without touching the token store.
// It is registered as the coordinator's session-expired hook, which has already cleared the tokens.
func (s *Store) MarkExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = State{}
}
