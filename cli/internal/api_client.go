package cli

import (
	"fmt"
	"log/slog"

	"github.com/devilmonastery/openfolio/internal/api"
	"github.com/devilmonastery/openfolio/internal/client"
	"github.com/devilmonastery/openfolio/internal/config"
)

const userAgent = "openfolio-cli"

func clientConfig(cctx *config.Context) client.Config {
	return client.Config{
		BaseURL:        cctx.Server.BaseURL,
		Timeout:        cctx.Server.Timeout,
		RefreshTimeout: cctx.Server.RefreshTimeout,
		StrictRotation: cctx.Auth.StrictRotation,
		UserAgent:      userAgent,
	}
}

// newAuthenticatedClient creates a client with automatic token refresh backed by the
// context's credentials file. A failed refresh logs the session out.
func newAuthenticatedClient(c *CliContext) (*client.Client, error) {
	apiClient, err := client.NewClient(clientConfig(c.Context), c.Tokens,
		client.WithCoordinatorOptions(
			client.WithLogger(c.Logger),
			client.WithSessionExpiredHook(func() {
				c.Session.MarkExpired()
				c.Logger.Warn("session expired", slog.String("hint", "run 'openfolio auth login'"))
			}),
		))
	if err != nil {
		return nil, err
	}
	c.Session.SetWhoAmI(api.NewUserService(apiClient))
	return apiClient, nil
}

// newUnauthenticatedClient creates a client without authentication (for login and register)
func newUnauthenticatedClient(c *CliContext) (*client.Client, error) {
	apiClient, err := client.NewClient(clientConfig(c.Context), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return apiClient, nil
}

// requireClient returns the authenticated client or an error explaining how to log in
func requireClient(c *CliContext) (*client.Client, error) {
	if c.Client == nil {
		return nil, fmt.Errorf("no API client configured")
	}
	if creds, err := c.Tokens.LoadTokens(); err != nil || creds == nil {
		return nil, fmt.Errorf("not logged in\nPlease run 'openfolio auth login' first")
	}
	return c.Client, nil
}
