package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"

	"github.com/devilmonastery/openfolio/internal/client"
)

// ErrNotLoggedIn is returned by Load when no credentials file exists
var ErrNotLoggedIn = errors.New("not logged in")

// Record is the on-disk credentials file
type Record struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	UserID       string    `json:"user_id,omitempty"`
	Email        string    `json:"email,omitempty"`
	Provider     string    `json:"provider,omitempty"` // OAuth provider (e.g., "github", "linkedin")
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
	SavedAt      time.Time `json:"saved_at"`
}

// IsExpired checks if the access token is expired at now
func (r *Record) IsExpired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// NeedsRefresh checks if the access token expires within 5 minutes of now
func (r *Record) NeedsRefresh(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.Add(5*time.Minute).After(r.ExpiresAt)
}

// FileStore implements client.TokenManager with a JSON file readable only by the owner.
// Writes replace the whole file through a rename, so both tokens change together.
type FileStore struct {
	path  string
	clock clockwork.Clock

	mu sync.Mutex
}

// Option configures a FileStore
type Option func(*FileStore)

// WithClock sets the clock used for timestamps and expiry checks
func WithClock(clock clockwork.Clock) Option {
	return func(f *FileStore) {
		f.clock = clock
	}
}

// NewFileStore creates a file-backed token manager at path
func NewFileStore(path string, opts ...Option) *FileStore {
	f := &FileStore{
		path:  path,
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

var _ client.TokenManager = (*FileStore)(nil)

// DefaultPath returns the credentials file for a named config context
func DefaultPath(contextName string) (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	if contextName == "" {
		contextName = "default"
	}
	return filepath.Join(homeDir, ".config", "openfolio", fmt.Sprintf("credentials-%s.json", contextName)), nil
}

// Path returns the credentials file location
func (f *FileStore) Path() string {
	return f.path
}

// Clock returns the store's clock
func (f *FileStore) Clock() clockwork.Clock {
	return f.clock
}

// LoadTokens returns the stored pair, or nil if not logged in
func (f *FileStore) LoadTokens() (*client.Credentials, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, err := f.read()
	if errors.Is(err, ErrNotLoggedIn) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &client.Credentials{AccessToken: rec.AccessToken, RefreshToken: rec.RefreshToken}, nil
}

// SaveTokens writes a new pair, keeping the identity fields of an existing record
func (f *FileStore) SaveTokens(accessToken, refreshToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, err := f.read()
	if err != nil {
		if !errors.Is(err, ErrNotLoggedIn) {
			slog.Debug("creating new credentials",
				slog.String("component", "credentials"),
				slog.String("load_error", err.Error()))
		}
		rec = &Record{}
	}

	rec.AccessToken = accessToken
	rec.RefreshToken = refreshToken
	rec.ExpiresAt = time.Time{}
	if expiresAt, decodeErr := ExtractExpiry(accessToken); decodeErr == nil {
		rec.ExpiresAt = expiresAt
	} else {
		slog.Debug("failed to decode token expiry",
			slog.String("component", "credentials"),
			slog.String("error", decodeErr.Error()))
	}

	return f.write(rec)
}

// ClearTokens removes the credentials file
func (f *FileStore) ClearTokens() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove credentials: %w", err)
	}
	return nil
}

// Load returns the full record, or ErrNotLoggedIn
func (f *FileStore) Load() (*Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read()
}

// SetIdentity records who the stored tokens belong to
func (f *FileStore) SetIdentity(userID, email, provider string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, err := f.read()
	if err != nil {
		return err
	}
	rec.UserID = userID
	rec.Email = email
	rec.Provider = provider
	return f.write(rec)
}

func (f *FileStore) read() (*Record, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotLoggedIn
		}
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	if rec.AccessToken == "" && rec.RefreshToken == "" {
		return nil, ErrNotLoggedIn
	}
	return &rec, nil
}

func (f *FileStore) write(rec *Record) error {
	rec.SavedAt = f.clock.Now().UTC()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return fmt.Errorf("failed to create temp credentials: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to restrict credentials permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("failed to replace credentials: %w", err)
	}
	return nil
}

// ExtractExpiry reads the exp claim of a JWT without verifying its signature
func ExtractExpiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("invalid JWT: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, err
	}
	if exp == nil {
		return time.Time{}, errors.New("exp claim not found")
	}
	return exp.Time, nil
}
