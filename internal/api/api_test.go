package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devilmonastery/openfolio/internal/client"
)

func TestResumeOptionsQuery(t *testing.T) {
	tests := []struct {
		name string
		opts ResumeOptions
		want string
	}{
		{
			name: "default template",
			opts: ResumeOptions{},
			want: "template=pdf",
		},
		{
			name: "ai rewrite",
			opts: ResumeOptions{Template: "dark", AIRewrite: true},
			want: "aiRewrite=true&template=dark",
		},
		{
			name: "phone without number is dropped",
			opts: ResumeOptions{Template: "minimal", IncludePhone: true},
			want: "template=minimal",
		},
		{
			name: "contact details",
			opts: ResumeOptions{
				Template:        "hacker",
				IncludePhone:    true,
				Phone:           "+1 555",
				IncludeLinkedIn: true,
				LinkedIn:        "in/dev",
			},
			want: "includeLinkedIn=true&includePhone=true&linkedIn=in%2Fdev&phone=%2B1+555&template=hacker",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.opts.Query().Encode(); got != tt.want {
				t.Errorf("Query() = %q, want %q", got, tt.want)
			}
		})
	}
}

func newTestServer(t *testing.T, register func(r *mux.Router)) *client.Client {
	t.Helper()
	r := mux.NewRouter()
	register(r.PathPrefix("/api/v1").Subrouter())
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	c, err := client.NewClient(client.Config{BaseURL: server.URL + "/api/v1"}, client.NewMemoryTokenManager("T1", "R1"))
	require.NoError(t, err)
	return c
}

func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestPortfolioServiceList(t *testing.T) {
	c := newTestServer(t, func(r *mux.Router) {
		r.HandleFunc("/portfolios", func(w http.ResponseWriter, r *http.Request) {
			respond(w, http.StatusOK, map[string]any{
				"data": []map[string]any{
					{"id": 1, "slug": "jane", "title": "Jane Doe", "published": true, "themeKey": "dark"},
				},
				"meta": map[string]any{"total": 1, "page": 0, "size": 20},
			})
		}).Methods(http.MethodGet)
	})

	portfolios, err := NewPortfolioService(c).List(context.Background())

	require.NoError(t, err)
	require.Len(t, portfolios, 1)
	assert.Equal(t, "jane", portfolios[0].Slug)
	assert.True(t, portfolios[0].Published)
}

func TestPublishServiceErrorEnvelope(t *testing.T) {
	c := newTestServer(t, func(r *mux.Router) {
		r.HandleFunc("/portfolios/{id}/publish", func(w http.ResponseWriter, r *http.Request) {
			respond(w, http.StatusNotFound, map[string]any{
				"error": map[string]string{"code": "NOT_FOUND", "message": "Portfolio not found"},
			})
		}).Methods(http.MethodPost)
	})

	_, err := NewPublishService(c).Publish(context.Background(), 9)

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "Portfolio not found", apiErr.Message)
}

func TestAuthServiceOAuth(t *testing.T) {
	bodies := make(chan oauthCallbackRequest, 1)
	c := newTestServer(t, func(r *mux.Router) {
		r.HandleFunc("/auth/oauth/{provider}", func(w http.ResponseWriter, r *http.Request) {
			if mux.Vars(r)["provider"] != ProviderGitHub {
				respond(w, http.StatusBadRequest, nil)
				return
			}
			var body oauthCallbackRequest
			_ = json.NewDecoder(r.Body).Decode(&body)
			bodies <- body
			respond(w, http.StatusOK, map[string]any{
				"data": map[string]any{"accessToken": "A", "refreshToken": "R", "expiresIn": 900, "userId": 7},
			})
		}).Methods(http.MethodPost)
	})
	svc := NewAuthService(c)

	tokens, err := svc.OAuth(context.Background(), ProviderGitHub, "code-123", "http://127.0.0.1:8085/callback")
	require.NoError(t, err)
	assert.Equal(t, "A", tokens.AccessToken)
	require.NotNil(t, tokens.UserID)
	assert.Equal(t, int64(7), *tokens.UserID)
	assert.Equal(t, "code-123", (<-bodies).Code)

	_, err = svc.OAuth(context.Background(), "gitlab", "code", "")
	assert.Error(t, err)
}

func TestExportServiceAIReady(t *testing.T) {
	c := newTestServer(t, func(r *mux.Router) {
		r.HandleFunc("/portfolios/1/export/ai-status", func(w http.ResponseWriter, r *http.Request) {
			respond(w, http.StatusOK, map[string]any{"data": map[string]bool{"ready": true}})
		}).Methods(http.MethodGet)
		r.HandleFunc("/portfolios/2/export/ai-status", func(w http.ResponseWriter, r *http.Request) {
			respond(w, http.StatusInternalServerError, nil)
		}).Methods(http.MethodGet)
	})
	svc := NewExportService(c)

	assert.True(t, svc.AIReady(context.Background(), 1))
	assert.False(t, svc.AIReady(context.Background(), 2))
}

func TestExportServiceDownload(t *testing.T) {
	c := newTestServer(t, func(r *mux.Router) {
		r.HandleFunc("/export/download/{token}", func(w http.ResponseWriter, r *http.Request) {
			if mux.Vars(r)["token"] != "abc" {
				respond(w, http.StatusNotFound, map[string]any{"error": map[string]string{"code": "NOT_FOUND", "message": "expired link"}})
				return
			}
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte("%PDF-1.7"))
		}).Methods(http.MethodGet)
	})
	svc := NewExportService(c)

	var buf bytes.Buffer
	n, err := svc.Download(context.Background(), "abc", &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)
	assert.Equal(t, "%PDF-1.7", buf.String())

	_, err = svc.Download(context.Background(), "gone", &buf)
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "expired link", apiErr.Message)
}
