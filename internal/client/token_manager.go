package client

import (
	"errors"
	"sync"
)

// ErrNoCredentials is returned by a TokenManager that has no stored session.
// The auth chain treats it the same as a nil result.
var ErrNoCredentials = errors.New("no stored credentials")

// Credentials is the access/refresh token pair issued by the backend.
type Credentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// TokenManager is an interface for managing authentication tokens.
// Different implementations can store tokens in files, memory, keychains, etc.
// Both tokens are always written and cleared together.
type TokenManager interface {
	// LoadTokens returns the stored pair, or nil when there is no session.
	LoadTokens() (*Credentials, error)

	// SaveTokens stores the access and refresh token as one unit
	SaveTokens(accessToken, refreshToken string) error

	// ClearTokens removes both stored tokens
	ClearTokens() error
}

// MemoryTokenManager keeps the token pair in process memory.
type MemoryTokenManager struct {
	mu    sync.RWMutex
	creds *Credentials
}

// NewMemoryTokenManager creates an in-memory token manager seeded with the given pair.
// Pass empty strings to start logged out.
func NewMemoryTokenManager(accessToken, refreshToken string) *MemoryTokenManager {
	m := &MemoryTokenManager{}
	if accessToken != "" || refreshToken != "" {
		m.creds = &Credentials{AccessToken: accessToken, RefreshToken: refreshToken}
	}
	return m
}

// LoadTokens returns a copy of the stored pair
func (m *MemoryTokenManager) LoadTokens() (*Credentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.creds == nil {
		return nil, nil
	}
	c := *m.creds
	return &c, nil
}

// SaveTokens replaces the stored pair
func (m *MemoryTokenManager) SaveTokens(accessToken, refreshToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = &Credentials{AccessToken: accessToken, RefreshToken: refreshToken}
	return nil
}

// ClearTokens drops the stored pair
func (m *MemoryTokenManager) ClearTokens() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = nil
	return nil
}

// loadCredentials normalizes "no session" results from a TokenManager to nil.
func loadCredentials(tm TokenManager) (*Credentials, error) {
	creds, err := tm.LoadTokens()
	if errors.Is(err, ErrNoCredentials) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return creds, nil
}
