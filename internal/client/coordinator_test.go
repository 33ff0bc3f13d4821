package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend is a minimal REST backend with a rotating token pair
type fakeBackend struct {
	mu           sync.Mutex
	validAccess  string
	validRefresh string
	nextAccess   string
	nextRefresh  string
	omitRefresh  bool
	rejectAll    bool
	seenAuth     []string
	seenBodies   []string

	refreshCalls atomic.Int32
	refreshGate  chan struct{}

	server *httptest.Server
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{
		validAccess:  "T2",
		validRefresh: "R1",
		nextAccess:   "T2",
		nextRefresh:  "R2",
	}

	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/auth/refresh", b.handleRefresh).Methods(http.MethodPost)
	api.HandleFunc("/users/me", b.protected(b.handleMe)).Methods(http.MethodGet)
	api.HandleFunc("/portfolios", b.protected(b.handleEcho)).Methods(http.MethodPost)

	b.server = httptest.NewServer(r)
	t.Cleanup(b.server.Close)
	return b
}

func (b *fakeBackend) baseURL() string {
	return b.server.URL + "/api/v1"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (b *fakeBackend) protected(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		b.mu.Lock()
		b.seenAuth = append(b.seenAuth, auth)
		ok := !b.rejectAll && auth == "Bearer "+b.validAccess
		b.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"error": map[string]string{"code": "UNAUTHORIZED", "message": "invalid token"},
			})
			return
		}
		next(w, r)
	}
}

func (b *fakeBackend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b.refreshCalls.Add(1)
	if b.refreshGate != nil {
		<-b.refreshGate
	}

	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": map[string]string{"code": "BAD_REQUEST", "message": err.Error()},
		})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if body.RefreshToken != b.validRefresh {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"error": map[string]string{"code": "UNAUTHORIZED", "message": "invalid refresh token"},
		})
		return
	}
	b.validAccess = b.nextAccess
	tokens := map[string]any{"accessToken": b.nextAccess, "expiresIn": 900}
	if !b.omitRefresh {
		b.validRefresh = b.nextRefresh
		tokens["refreshToken"] = b.nextRefresh
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": tokens})
}

func (b *fakeBackend) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{"id": 1, "email": "dev@example.com"},
	})
}

func (b *fakeBackend) handleEcho(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	b.mu.Lock()
	b.seenBodies = append(b.seenBodies, string(data))
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"data": json.RawMessage(data)})
}

func (b *fakeBackend) authHeaders() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.seenAuth...)
}

func newTestClient(t *testing.T, b *fakeBackend, tm TokenManager, opts ...Option) *Client {
	t.Helper()
	c, err := NewClient(Config{BaseURL: b.baseURL(), Timeout: 5 * time.Second}, tm, opts...)
	require.NoError(t, err)
	return c
}

type user struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

func TestAuthorize(t *testing.T) {
	t.Run("AttachesBearer", func(t *testing.T) {
		coord := NewAuthCoordinator(NewMemoryTokenManager("T1", "R1"), nil)
		req := httptest.NewRequest(http.MethodGet, "/users/me", nil)

		token := coord.Authorize(req)

		assert.Equal(t, "T1", token)
		assert.Equal(t, "Bearer T1", req.Header.Get("Authorization"))
	})

	t.Run("NoCredentials", func(t *testing.T) {
		coord := NewAuthCoordinator(NewMemoryTokenManager("", ""), nil)
		req := httptest.NewRequest(http.MethodGet, "/users/me", nil)

		assert.Empty(t, coord.Authorize(req))
		assert.Empty(t, req.Header.Get("Authorization"))
	})

	t.Run("StoreErrorMeansNoSession", func(t *testing.T) {
		coord := NewAuthCoordinator(failingTokenManager{}, nil)
		req := httptest.NewRequest(http.MethodGet, "/users/me", nil)

		assert.Empty(t, coord.Authorize(req))
		assert.Empty(t, req.Header.Get("Authorization"))
	})
}

type failingTokenManager struct{}

func (failingTokenManager) LoadTokens() (*Credentials, error) { return nil, ErrNoCredentials }
func (failingTokenManager) SaveTokens(string, string) error  { return nil }
func (failingTokenManager) ClearTokens() error               { return nil }

func TestConcurrentUnauthorizedSharesOneRefresh(t *testing.T) {
	const n = 5

	backend := newFakeBackend(t)
	backend.refreshGate = make(chan struct{})
	tm := NewMemoryTokenManager("T1", "R1")
	c := newTestClient(t, backend, tm)

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var u user
			errs[i] = c.Get(context.Background(), "/users/me", nil, &u)
		}(i)
	}

	// Everyone except the leader must be parked before the refresh may finish
	require.Eventually(t, func() bool {
		return c.Coordinator().pending() == n-1
	}, 5*time.Second, 5*time.Millisecond)
	close(backend.refreshGate)
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "request %d", i)
	}
	assert.Equal(t, int32(1), backend.refreshCalls.Load())
	assert.False(t, c.Coordinator().Refreshing())

	replays := 0
	for _, h := range backend.authHeaders() {
		if h == "Bearer T2" {
			replays++
		}
	}
	assert.Equal(t, n, replays)

	creds, err := tm.LoadTokens()
	require.NoError(t, err)
	assert.Equal(t, &Credentials{AccessToken: "T2", RefreshToken: "R2"}, creds)
}

func TestConcurrentUnauthorizedSharesRefreshFailure(t *testing.T) {
	const n = 4

	backend := newFakeBackend(t)
	backend.validRefresh = "other"
	backend.refreshGate = make(chan struct{})
	tm := NewMemoryTokenManager("T1", "R1")
	c := newTestClient(t, backend, tm)

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = c.Get(context.Background(), "/users/me", nil, nil)
		}(i)
	}

	require.Eventually(t, func() bool {
		return c.Coordinator().pending() == n-1
	}, 5*time.Second, 5*time.Millisecond)
	close(backend.refreshGate)
	wg.Wait()

	for i, err := range errs {
		require.Error(t, err, "request %d", i)
		assert.ErrorIs(t, err, ErrRefreshFailed)
		assert.True(t, IsAuthError(err))
	}
	assert.Equal(t, int32(1), backend.refreshCalls.Load())

	creds, err := tm.LoadTokens()
	require.NoError(t, err)
	assert.Nil(t, creds)
}

func TestReplayStillUnauthorized(t *testing.T) {
	backend := newFakeBackend(t)
	backend.rejectAll = true
	c := newTestClient(t, backend, NewMemoryTokenManager("T1", "R1"))

	err := c.Get(context.Background(), "/users/me", nil, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetryExhausted)
	assert.Equal(t, int32(1), backend.refreshCalls.Load())
	assert.Equal(t, []string{"Bearer T1", "Bearer T2"}, backend.authHeaders())
}

func TestRefreshEndpointNeverTriggersRefresh(t *testing.T) {
	backend := newFakeBackend(t)
	tm := NewMemoryTokenManager("T1", "R1")
	c := newTestClient(t, backend, tm)

	err := c.Post(context.Background(), "/auth/refresh", nil, map[string]string{"refreshToken": "bogus"}, nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", apiErr.Code)
	assert.Equal(t, int32(1), backend.refreshCalls.Load())

	creds, err := tm.LoadTokens()
	require.NoError(t, err)
	assert.Equal(t, &Credentials{AccessToken: "T1", RefreshToken: "R1"}, creds)
}

func TestRefreshedTokenUsedForNextRequest(t *testing.T) {
	backend := newFakeBackend(t)
	tm := NewMemoryTokenManager("T1", "R1")
	c := newTestClient(t, backend, tm)

	var u user
	require.NoError(t, c.Get(context.Background(), "/users/me", nil, &u))
	assert.Equal(t, "dev@example.com", u.Email)

	require.NoError(t, c.Get(context.Background(), "/users/me", nil, &u))

	assert.Equal(t, []string{"Bearer T1", "Bearer T2", "Bearer T2"}, backend.authHeaders())
	assert.Equal(t, int32(1), backend.refreshCalls.Load())
}

func TestRefreshNetworkErrorClearsTokens(t *testing.T) {
	backend := newFakeBackend(t)
	tm := NewMemoryTokenManager("T1", "R1")
	netErr := errors.New("connection refused")
	c := newTestClient(t, backend, tm, WithRefresher(RefreshFunc(func(ctx context.Context, refreshToken string) (*Credentials, error) {
		return nil, netErr
	})))

	err := c.Get(context.Background(), "/users/me", nil, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRefreshFailed)
	assert.ErrorIs(t, err, netErr)

	creds, err := tm.LoadTokens()
	require.NoError(t, err)
	assert.Nil(t, creds)
}

func TestNewEpisodeAfterFailure(t *testing.T) {
	backend := newFakeBackend(t)
	backend.validRefresh = "other"
	tm := NewMemoryTokenManager("T1", "R1")
	c := newTestClient(t, backend, tm)

	err := c.Get(context.Background(), "/users/me", nil, nil)
	require.ErrorIs(t, err, ErrRefreshFailed)
	assert.False(t, c.Coordinator().Refreshing())

	// Log in again with a stale access token and a refresh token the backend accepts
	require.NoError(t, tm.SaveTokens("T1", "other"))
	backend.mu.Lock()
	backend.nextRefresh = "R3"
	backend.mu.Unlock()

	require.NoError(t, c.Get(context.Background(), "/users/me", nil, nil))
	assert.Equal(t, int32(2), backend.refreshCalls.Load())

	creds, err := tm.LoadTokens()
	require.NoError(t, err)
	assert.Equal(t, &Credentials{AccessToken: "T2", RefreshToken: "R3"}, creds)
}

func TestMissingRefreshToken(t *testing.T) {
	backend := newFakeBackend(t)
	tm := NewMemoryTokenManager("T1", "")
	expired := false
	c := newTestClient(t, backend, tm, WithCoordinatorOptions(WithSessionExpiredHook(func() {
		expired = true
	})))

	err := c.Get(context.Background(), "/users/me", nil, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRefreshTokenMissing)
	assert.Equal(t, int32(0), backend.refreshCalls.Load())
	assert.True(t, expired)

	creds, err := tm.LoadTokens()
	require.NoError(t, err)
	assert.Nil(t, creds)
}

func TestRefreshRotation(t *testing.T) {
	t.Run("KeepsPreviousRefreshToken", func(t *testing.T) {
		backend := newFakeBackend(t)
		backend.omitRefresh = true
		tm := NewMemoryTokenManager("T1", "R1")
		c := newTestClient(t, backend, tm)

		require.NoError(t, c.Get(context.Background(), "/users/me", nil, nil))

		creds, err := tm.LoadTokens()
		require.NoError(t, err)
		assert.Equal(t, &Credentials{AccessToken: "T2", RefreshToken: "R1"}, creds)
	})

	t.Run("StrictRotationFails", func(t *testing.T) {
		backend := newFakeBackend(t)
		backend.omitRefresh = true
		tm := NewMemoryTokenManager("T1", "R1")
		c, err := NewClient(Config{BaseURL: backend.baseURL(), StrictRotation: true}, tm)
		require.NoError(t, err)

		err = c.Get(context.Background(), "/users/me", nil, nil)
		require.ErrorIs(t, err, ErrRefreshFailed)

		creds, err := tm.LoadTokens()
		require.NoError(t, err)
		assert.Nil(t, creds)
	})
}

func TestReplayResendsBody(t *testing.T) {
	backend := newFakeBackend(t)
	c := newTestClient(t, backend, NewMemoryTokenManager("T1", "R1"))

	var out map[string]string
	err := c.Post(context.Background(), "/portfolios", nil, map[string]string{"title": "Dev"}, &out)

	require.NoError(t, err)
	assert.Equal(t, "Dev", out["title"])
	assert.Equal(t, []string{`{"title":"Dev"}`}, backend.seenBodies)
}

func TestRefresherPanicReleasesEpisode(t *testing.T) {
	tm := NewMemoryTokenManager("T1", "R1")
	coord := NewAuthCoordinator(tm, RefreshFunc(func(ctx context.Context, refreshToken string) (*Credentials, error) {
		panic("boom")
	}))

	_, err := coord.HandleUnauthorized(context.Background(), "T1")

	require.ErrorIs(t, err, ErrRefreshFailed)
	assert.False(t, coord.Refreshing())
	assert.Zero(t, coord.pending())
}

func TestStaleTokenAlreadyReplaced(t *testing.T) {
	calls := 0
	tm := NewMemoryTokenManager("T2", "R2")
	coord := NewAuthCoordinator(tm, RefreshFunc(func(ctx context.Context, refreshToken string) (*Credentials, error) {
		calls++
		return &Credentials{AccessToken: "T3", RefreshToken: "R3"}, nil
	}))

	token, err := coord.HandleUnauthorized(context.Background(), "T1")

	require.NoError(t, err)
	assert.Equal(t, "T2", token)
	assert.Zero(t, calls)
}

func TestParkedRequestHonorsItsContext(t *testing.T) {
	release := make(chan struct{})
	tm := NewMemoryTokenManager("T1", "R1")
	coord := NewAuthCoordinator(tm, RefreshFunc(func(ctx context.Context, refreshToken string) (*Credentials, error) {
		<-release
		return &Credentials{AccessToken: "T2", RefreshToken: "R2"}, nil
	}))

	leaderDone := make(chan error, 1)
	go func() {
		_, err := coord.HandleUnauthorized(context.Background(), "T1")
		leaderDone <- err
	}()
	require.Eventually(t, coord.Refreshing, time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := coord.HandleUnauthorized(ctx, "T1")
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	require.NoError(t, <-leaderDone)
	assert.False(t, coord.Refreshing())
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestNonUnauthorizedPassesThrough(t *testing.T) {
	dialErr := errors.New("dial tcp: connection refused")

	tests := []struct {
		name       string
		respond    func() (*http.Response, error)
		wantStatus int
		wantCode   string
		wantErr    error
	}{
		{
			name: "Forbidden",
			respond: func() (*http.Response, error) {
				return newResponse(http.StatusForbidden, `{"error":{"code":"FORBIDDEN","message":"not your portfolio"}}`), nil
			},
			wantStatus: http.StatusForbidden,
			wantCode:   "FORBIDDEN",
		},
		{
			name: "ServerError",
			respond: func() (*http.Response, error) {
				return newResponse(http.StatusInternalServerError, `{"error":{"code":"INTERNAL","message":"boom"}}`), nil
			},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL",
		},
		{
			name: "TransportError",
			respond: func() (*http.Response, error) {
				return nil, dialErr
			},
			wantErr: dialErr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sent atomic.Int32
			var refreshCalls atomic.Int32
			tm := NewMemoryTokenManager("T1", "R1")
			base := roundTripFunc(func(r *http.Request) (*http.Response, error) {
				sent.Add(1)
				assert.Equal(t, "Bearer T1", r.Header.Get("Authorization"))
				return tt.respond()
			})
			refresher := RefreshFunc(func(ctx context.Context, refreshToken string) (*Credentials, error) {
				refreshCalls.Add(1)
				return &Credentials{AccessToken: "T2", RefreshToken: "R2"}, nil
			})
			c, err := NewClient(Config{BaseURL: "http://portfolio.test/api/v1"}, tm,
				WithBaseTransport(base), WithRefresher(refresher))
			require.NoError(t, err)

			err = c.Get(context.Background(), "/users/me", nil, nil)

			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, tt.wantStatus, apiErr.StatusCode)
				assert.Equal(t, tt.wantCode, apiErr.Code)
			}
			assert.False(t, IsAuthError(err))
			assert.Equal(t, int32(1), sent.Load(), "request must not be replayed")
			assert.Zero(t, refreshCalls.Load())
			assert.False(t, c.Coordinator().Refreshing())

			creds, err := tm.LoadTokens()
			require.NoError(t, err)
			assert.Equal(t, &Credentials{AccessToken: "T1", RefreshToken: "R1"}, creds)
		})
	}
}

// gatedTokenManager blocks the blockOn-th LoadTokens call until gate is closed
type gatedTokenManager struct {
	*MemoryTokenManager
	loads   atomic.Int32
	blockOn int32
	gate    chan struct{}
}

func (g *gatedTokenManager) LoadTokens() (*Credentials, error) {
	if g.loads.Add(1) == g.blockOn {
		<-g.gate
	}
	return g.MemoryTokenManager.LoadTokens()
}

func TestMissingRefreshTokenRejectsParkedRequests(t *testing.T) {
	const parked = 3

	// Load 1 is the stale-token check, load 2 is the episode reading the refresh token
	tm := &gatedTokenManager{
		MemoryTokenManager: NewMemoryTokenManager("T1", ""),
		blockOn:            2,
		gate:               make(chan struct{}),
	}
	var refreshCalls, expiredCalls atomic.Int32
	coord := NewAuthCoordinator(tm, RefreshFunc(func(ctx context.Context, refreshToken string) (*Credentials, error) {
		refreshCalls.Add(1)
		return nil, errors.New("unexpected refresh")
	}), WithSessionExpiredHook(func() {
		expiredCalls.Add(1)
	}))

	errs := make(chan error, parked+1)
	go func() {
		_, err := coord.HandleUnauthorized(context.Background(), "T1")
		errs <- err
	}()
	require.Eventually(t, coord.Refreshing, time.Second, time.Millisecond)

	for i := 0; i < parked; i++ {
		go func() {
			_, err := coord.HandleUnauthorized(context.Background(), "T1")
			errs <- err
		}()
	}
	require.Eventually(t, func() bool {
		return coord.pending() == parked
	}, time.Second, time.Millisecond)
	close(tm.gate)

	for i := 0; i < parked+1; i++ {
		assert.ErrorIs(t, <-errs, ErrRefreshTokenMissing)
	}
	assert.Zero(t, refreshCalls.Load())
	assert.Equal(t, int32(1), expiredCalls.Load())
	assert.False(t, coord.Refreshing())
	assert.Zero(t, coord.pending())

	creds, err := tm.MemoryTokenManager.LoadTokens()
	require.NoError(t, err)
	assert.Nil(t, creds)
}

func TestLeaderHonorsItsContext(t *testing.T) {
	release := make(chan struct{})
	tm := NewMemoryTokenManager("T1", "R1")
	coord := NewAuthCoordinator(tm, RefreshFunc(func(ctx context.Context, refreshToken string) (*Credentials, error) {
		<-release
		return &Credentials{AccessToken: "T2", RefreshToken: "R2"}, nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	leaderDone := make(chan error, 1)
	go func() {
		_, err := coord.HandleUnauthorized(ctx, "T1")
		leaderDone <- err
	}()
	require.Eventually(t, coord.Refreshing, time.Second, time.Millisecond)

	type result struct {
		token string
		err   error
	}
	parkedDone := make(chan result, 1)
	go func() {
		token, err := coord.HandleUnauthorized(context.Background(), "T1")
		parkedDone <- result{token, err}
	}()
	require.Eventually(t, func() bool { return coord.pending() == 1 }, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-leaderDone:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("leader did not return after its context was cancelled")
	}
	assert.True(t, coord.Refreshing(), "episode keeps running for parked requests")

	close(release)
	res := <-parkedDone
	require.NoError(t, res.err)
	assert.Equal(t, "T2", res.token)
	assert.False(t, coord.Refreshing())

	creds, err := tm.LoadTokens()
	require.NoError(t, err)
	assert.Equal(t, &Credentials{AccessToken: "T2", RefreshToken: "R2"}, creds)
}
