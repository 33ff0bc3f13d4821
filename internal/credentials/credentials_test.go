package credentials

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

func createTestToken(claims jwt.MapClaims) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	// ParseUnverified does not check signatures
	tokenString, _ := token.SigningString()
	return tokenString + ".fake_signature"
}

func newTestStore(t *testing.T) (*FileStore, clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	path := filepath.Join(t.TempDir(), "credentials-test.json")
	return NewFileStore(path, WithClock(clock)), clock
}

func TestLoadTokens_NotLoggedIn(t *testing.T) {
	store, _ := newTestStore(t)

	creds, err := store.LoadTokens()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if creds != nil {
		t.Errorf("expected nil credentials, got %+v", creds)
	}

	if _, err := store.Load(); err != ErrNotLoggedIn {
		t.Errorf("expected ErrNotLoggedIn, got %v", err)
	}
}

func TestSaveTokens_RoundTrip(t *testing.T) {
	store, clock := newTestStore(t)
	exp := clock.Now().Add(15 * time.Minute)
	access := createTestToken(jwt.MapClaims{"sub": "7", "email": "dev@example.com", "exp": float64(exp.Unix())})

	if err := store.SaveTokens(access, "R1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	creds, err := store.LoadTokens()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if creds.AccessToken != access || creds.RefreshToken != "R1" {
		t.Errorf("unexpected credentials %+v", creds)
	}

	rec, err := store.Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !rec.ExpiresAt.Equal(exp.Truncate(time.Second)) {
		t.Errorf("expected expiry %v, got %v", exp, rec.ExpiresAt)
	}
	if !rec.SavedAt.Equal(clock.Now()) {
		t.Errorf("expected saved_at %v, got %v", clock.Now(), rec.SavedAt)
	}

	info, err := os.Stat(store.Path())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("expected mode 0600, got %o", perm)
	}
}

func TestSaveTokens_KeepsIdentity(t *testing.T) {
	store, _ := newTestStore(t)

	if err := store.SaveTokens("A1", "R1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := store.SetIdentity("7", "dev@example.com", "github"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := store.SaveTokens("A2", "R2"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	rec, err := store.Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.AccessToken != "A2" || rec.RefreshToken != "R2" {
		t.Errorf("expected rotated pair, got %q/%q", rec.AccessToken, rec.RefreshToken)
	}
	if rec.Email != "dev@example.com" || rec.Provider != "github" {
		t.Errorf("expected identity to survive token rotation, got %+v", rec)
	}
	if !rec.ExpiresAt.IsZero() {
		t.Errorf("expected no expiry for opaque token, got %v", rec.ExpiresAt)
	}
}

func TestClearTokens(t *testing.T) {
	store, _ := newTestStore(t)

	// Clearing an empty store is a no-op
	if err := store.ClearTokens(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := store.SaveTokens("A1", "R1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := store.ClearTokens(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	creds, err := store.LoadTokens()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if creds != nil {
		t.Errorf("expected both tokens cleared, got %+v", creds)
	}
}

func TestRecordExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rec := &Record{ExpiresAt: clock.Now().Add(10 * time.Minute)}

	if rec.IsExpired(clock.Now()) {
		t.Error("expected token to not be expired")
	}
	if rec.NeedsRefresh(clock.Now()) {
		t.Error("expected token to not need refresh yet")
	}

	clock.Advance(6 * time.Minute)
	if !rec.NeedsRefresh(clock.Now()) {
		t.Error("expected token to need refresh within 5 minutes of expiry")
	}

	clock.Advance(5 * time.Minute)
	if !rec.IsExpired(clock.Now()) {
		t.Error("expected token to be expired")
	}

	if (&Record{}).IsExpired(clock.Now()) {
		t.Error("expected unknown expiry to be treated as not expired")
	}
}

func TestExtractExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	got, err := ExtractExpiry(createTestToken(jwt.MapClaims{"exp": float64(exp.Unix())}))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !got.Equal(exp) {
		t.Errorf("expected %v, got %v", exp, got)
	}

	if _, err := ExtractExpiry(createTestToken(jwt.MapClaims{"sub": "1"})); err == nil {
		t.Error("expected error for token without exp")
	}
	if _, err := ExtractExpiry("not-a-jwt"); err == nil {
		t.Error("expected error for malformed token")
	}
}
