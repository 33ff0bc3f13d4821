package cli

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devilmonastery/openfolio/internal/api"
	"github.com/devilmonastery/openfolio/internal/config"
	"github.com/devilmonastery/openfolio/internal/credentials"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{"zero", 0, "0 seconds"},
		{"one second", time.Second, "1 second"},
		{"seconds only", 42 * time.Second, "42 seconds"},
		{"seconds dropped with minutes", 2*time.Minute + 5*time.Second, "2 minutes"},
		{"hour and minute", time.Hour + time.Minute, "1 hour and 1 minute"},
		{"three parts", 2*24*time.Hour + 3*time.Hour + 45*time.Minute, "2 days, 3 hours and 45 minutes"},
		{"negative", -90 * time.Minute, "1 hour and 30 minutes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatDuration(tt.d); got != tt.want {
				t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}

func TestExpiryMessage(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	rec := &credentials.Record{ExpiresAt: clock.Now().Add(10 * time.Minute)}

	assert.Equal(t, "✓  Valid for 10 minutes", expiryMessage(rec, clock.Now()))

	clock.Advance(70 * time.Minute)
	assert.Equal(t,
		"⚠  Token expired 1 hour ago - automatic refresh will be attempted on next request",
		expiryMessage(rec, clock.Now()))
}

func TestOAuthConfig(t *testing.T) {
	_, err := oauthConfig(api.ProviderGitHub, config.ProviderConfig{}, "http://127.0.0.1:8085/callback")
	assert.ErrorContains(t, err, "no client_id")

	_, err = oauthConfig("gitlab", config.ProviderConfig{ClientID: "x"}, "http://127.0.0.1:8085/callback")
	assert.Error(t, err)

	conf, err := oauthConfig(api.ProviderGitHub, config.ProviderConfig{ClientID: "gh-client"}, "http://127.0.0.1:8085/callback")
	require.NoError(t, err)
	assert.Equal(t, defaultScopes[api.ProviderGitHub], conf.Scopes)

	authURL := conf.AuthCodeURL("state-123")
	assert.True(t, strings.HasPrefix(authURL, "https://github.com/login/oauth/authorize?"), authURL)
	assert.Contains(t, authURL, "client_id=gh-client")
	assert.Contains(t, authURL, "state=state-123")
	assert.Contains(t, authURL, "redirect_uri=http%3A%2F%2F127.0.0.1%3A8085%2Fcallback")

	conf, err = oauthConfig(api.ProviderLinkedIn, config.ProviderConfig{ClientID: "li", Scopes: []string{"email"}}, "http://127.0.0.1:8085/callback")
	require.NoError(t, err)
	assert.Equal(t, []string{"email"}, conf.Scopes)
}

func TestCallbackRouter(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantCode   string
		wantErr    string
	}{
		{"success", "?code=abc&state=s1", http.StatusOK, "abc", ""},
		{"state mismatch", "?code=abc&state=other", http.StatusBadRequest, "", "state mismatch"},
		{"missing code", "?state=s1", http.StatusBadRequest, "", "no authorization code"},
		{"denied", "?error=access_denied&state=s1", http.StatusBadRequest, "", "access_denied"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := make(chan callbackResult, 1)
			router := newCallbackRouter(api.ProviderGitHub, "s1", results)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback"+tt.query, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			res := <-results
			assert.Equal(t, tt.wantCode, res.code)
			if tt.wantErr == "" {
				assert.NoError(t, res.err)
				assert.Contains(t, rec.Body.String(), "Signed in with github")
			} else {
				assert.ErrorContains(t, res.err, tt.wantErr)
			}
		})
	}
}

func TestPortfoliosMarkdown(t *testing.T) {
	assert.Contains(t, portfoliosMarkdown(nil), "No portfolios yet")

	md := portfoliosMarkdown([]api.Portfolio{
		{ID: 3, Title: "Go | Rust", Slug: "jane", ThemeKey: "dark", ProjectCount: 4, SkillCount: 9, Published: true, UpdatedAt: "2025-11-03T14:05:09"},
	})
	assert.Contains(t, md, `| 3 | Go \| Rust | jane | dark | 4 | 9 | ✓ | 2025-11-03 |`)
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{3 << 20, "3.0 MB"},
	}

	for _, tt := range tests {
		if got := formatBytes(tt.n); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestIsUnder(t *testing.T) {
	root := NewRootCommand()

	find := func(path ...string) *cobra.Command {
		cmd, _, err := root.Find(path)
		require.NoError(t, err)
		return cmd
	}

	assert.True(t, isUnder(find("auth", "login"), "auth"))
	assert.True(t, isUnder(find("config", "view"), "config"))
	assert.False(t, isUnder(find("portfolios", "list"), "auth"))
	assert.False(t, isUnder(find("whoami"), "config"))
}
