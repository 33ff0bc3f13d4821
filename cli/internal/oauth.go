package cli

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/linkedin"

	"github.com/devilmonastery/openfolio/internal/api"
	"github.com/devilmonastery/openfolio/internal/config"
)

const oauthWaitTimeout = 5 * time.Minute

var defaultScopes = map[string][]string{
	api.ProviderGitHub:   {"read:user", "user:email", "repo"},
	api.ProviderLinkedIn: {"openid", "profile", "email"},
}

// oauthConfig builds the authorize URL settings for provider. The backend holds the
// client secret and performs the code exchange.
func oauthConfig(provider string, pc config.ProviderConfig, redirectURI string) (*oauth2.Config, error) {
	if pc.ClientID == "" {
		return nil, fmt.Errorf("no client_id configured for %s (set oauth.%s.client_id in the config)", provider, provider)
	}

	conf := &oauth2.Config{
		ClientID:    pc.ClientID,
		RedirectURL: redirectURI,
		Scopes:      pc.Scopes,
	}
	if len(conf.Scopes) == 0 {
		conf.Scopes = defaultScopes[provider]
	}

	switch provider {
	case api.ProviderGitHub:
		conf.Endpoint = github.Endpoint
	case api.ProviderLinkedIn:
		conf.Endpoint = linkedin.Endpoint
	default:
		return nil, fmt.Errorf("unsupported OAuth provider %q", provider)
	}
	return conf, nil
}

// callbackResult is what the loopback handler received from the provider redirect
type callbackResult struct {
	code string
	err  error
}

const successPage = `<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<title>Authentication Successful</title>
	<style>
		body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; text-align: center; padding: 50px; }
		h1 { color: #10b981; }
	</style>
</head>
<body>
	<h1>✓ Signed in with {{.Provider}}</h1>
	<p>You can close this window and return to the terminal.</p>
</body>
</html>`

var successTemplate = template.Must(template.New("success").Parse(successPage))

// newCallbackRouter handles the provider redirect. Exactly one result is sent on results.
func newCallbackRouter(provider, state string, results chan<- callbackResult) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/callback", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()

		var res callbackResult
		switch {
		case q.Get("error") != "":
			res.err = fmt.Errorf("authorization denied: %s", q.Get("error"))
		case q.Get("state") != state:
			res.err = errors.New("state mismatch in OAuth callback")
		case q.Get("code") == "":
			res.err = errors.New("no authorization code received")
		default:
			res.code = q.Get("code")
		}

		if res.err != nil {
			http.Error(w, "Authorization failed", http.StatusBadRequest)
		} else {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_ = successTemplate.Execute(w, struct{ Provider string }{provider})
		}

		select {
		case results <- res:
		default:
		}
	}).Methods(http.MethodGet)
	return r
}

// loginWithOAuthBrowser opens the provider's authorize page and waits for the redirect
// on a loopback listener, then hands the code to the backend
func loginWithOAuthBrowser(cmd *cobra.Command, c *CliContext, provider string) error {
	pc, err := c.Context.Provider(provider)
	if err != nil {
		return err
	}

	port := c.Context.OAuth.RedirectPort
	redirectURI := fmt.Sprintf("http://127.0.0.1:%d/callback", port)
	conf, err := oauthConfig(provider, pc, redirectURI)
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return fmt.Errorf("failed to start callback server on port %d: %w (is another instance running?)", port, err)
	}

	state := oauth2.GenerateVerifier()
	results := make(chan callbackResult, 1)
	server := &http.Server{
		Handler:           newCallbackRouter(provider, state, results),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.Logger.Debug("callback server stopped", slog.String("error", err.Error()))
		}
	}()
	defer server.Close()

	authURL := conf.AuthCodeURL(state)

	fmt.Println("\n🔐 Opening browser for authentication...")
	fmt.Printf("If the browser doesn't open automatically, visit:\n%s\n\n", authURL)
	if err := openBrowser(authURL); err != nil {
		fmt.Printf("Failed to open browser automatically: %v\n", err)
	}
	fmt.Println("Waiting for authentication...")

	ctx, cancel := context.WithTimeout(cmd.Context(), oauthWaitTimeout)
	defer cancel()

	var res callbackResult
	select {
	case res = <-results:
	case <-ctx.Done():
		return fmt.Errorf("authentication timeout")
	}
	if res.err != nil {
		return res.err
	}

	apiClient, err := newUnauthenticatedClient(c)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer apiClient.Close()

	tokens, err := api.NewAuthService(apiClient).OAuth(cmd.Context(), provider, res.code, redirectURI)
	if err != nil {
		return err
	}
	return completeLogin(c, tokens, provider)
}

// openBrowser tries to open the URL in a browser
func openBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform")
	}

	return cmd.Start()
}
