package cli

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/devilmonastery/openfolio/internal/api"
	"github.com/devilmonastery/openfolio/internal/client"
	"github.com/devilmonastery/openfolio/internal/credentials"
)

// formatDuration formats a duration in a human-friendly way (e.g., "2 days, 3 hours, 45 minutes")
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}

	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	var parts []string
	if days > 0 {
		if days == 1 {
			parts = append(parts, "1 day")
		} else {
			parts = append(parts, fmt.Sprintf("%d days", days))
		}
	}
	if hours > 0 {
		if hours == 1 {
			parts = append(parts, "1 hour")
		} else {
			parts = append(parts, fmt.Sprintf("%d hours", hours))
		}
	}
	if minutes > 0 {
		if minutes == 1 {
			parts = append(parts, "1 minute")
		} else {
			parts = append(parts, fmt.Sprintf("%d minutes", minutes))
		}
	}
	if len(parts) == 0 && seconds > 0 {
		if seconds == 1 {
			parts = append(parts, "1 second")
		} else {
			parts = append(parts, fmt.Sprintf("%d seconds", seconds))
		}
	}
	if len(parts) == 0 {
		return "0 seconds"
	}

	// Join parts with commas and "and" for the last one
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	// For 3+ parts, join all but last with ", " and add "and" before last
	result := ""
	for i := 0; i < len(parts)-1; i++ {
		if i > 0 {
			result += ", "
		}
		result += parts[i]
	}
	result += " and " + parts[len(parts)-1]
	return result
}

func newAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authentication commands",
		Long:  `Manage authentication for the OpenFolio CLI`,
	}

	cmd.AddCommand(newAuthLoginCommand())
	cmd.AddCommand(newAuthRegisterCommand())
	cmd.AddCommand(newAuthLogoutCommand())
	cmd.AddCommand(newAuthStatusCommand())
	cmd.AddCommand(newAuthTokenCommand())

	return cmd
}

func newAuthLoginCommand() *cobra.Command {
	var (
		email    string
		password string
		provider string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login to the OpenFolio server",
		Long: `Authenticate with the OpenFolio server using email and password or an OAuth provider.

Examples:
  # Login with email and password (prompts for anything missing)
  openfolio auth login --email user@example.com

  # Login with GitHub (opens browser)
  openfolio auth login --provider github`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := getCliContext(cmd)
			c.Logger.Info("Starting login process", "provider", provider)

			if provider != "" {
				return loginWithOAuthBrowser(cmd, c, provider)
			}
			return loginLocal(cmd, c, email, password)
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "Email for password login (if not provided, will prompt)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password for password login (if not provided, will prompt)")
	cmd.Flags().StringVar(&provider, "provider", "", "OAuth provider (github, linkedin)")

	return cmd
}

// loginLocal handles email/password authentication
func loginLocal(cmd *cobra.Command, c *CliContext, email, password string) error {
	var err error
	if email == "" || password == "" {
		email, password, err = promptCredentials(email)
		if err != nil {
			return err
		}
	}

	apiClient, err := newUnauthenticatedClient(c)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer apiClient.Close()

	tokens, err := api.NewAuthService(apiClient).Login(cmd.Context(), email, password)
	if err != nil {
		return err
	}
	return completeLogin(c, tokens, "")
}

func newAuthRegisterCommand() *cobra.Command {
	var (
		email       string
		password    string
		displayName string
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := getCliContext(cmd)

			var err error
			if email == "" || password == "" {
				email, password, err = promptCredentials(email)
				if err != nil {
					return err
				}
			}

			apiClient, err := newUnauthenticatedClient(c)
			if err != nil {
				return fmt.Errorf("failed to connect to server: %w", err)
			}
			defer apiClient.Close()

			tokens, err := api.NewAuthService(apiClient).Register(cmd.Context(), email, password, displayName)
			if err != nil {
				return err
			}
			return completeLogin(c, tokens, "")
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "Email address")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (if not provided, will prompt)")
	cmd.Flags().StringVar(&displayName, "display-name", "", "Display name")

	return cmd
}

// completeLogin stores a fresh token pair and reports who is logged in
func completeLogin(c *CliContext, tokens *client.TokenResponse, provider string) error {
	if err := c.Session.SetAuthenticated(tokens); err != nil {
		return err
	}

	state := c.Session.Snapshot()
	userID := ""
	if state.UserID != 0 {
		userID = strconv.FormatInt(state.UserID, 10)
	}
	if err := c.Tokens.SetIdentity(userID, state.Email, provider); err != nil {
		c.Logger.Warn("failed to record identity", slog.String("error", err.Error()))
	}

	who := state.Email
	if state.DisplayName != "" {
		who = fmt.Sprintf("%s <%s>", state.DisplayName, state.Email)
	}
	fmt.Printf("✓ Successfully logged in as %s\n", who)
	if rec, err := c.Tokens.Load(); err == nil && !rec.ExpiresAt.IsZero() {
		fmt.Printf("  Token expires: %s\n", rec.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
	}
	return nil
}

func newAuthLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Logout from the OpenFolio server",
		Long:  `End the session on the server and remove stored credentials`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := getCliContext(cmd)

			if _, err := c.Tokens.Load(); err != nil {
				return fmt.Errorf("not logged in: %w", err)
			}

			// Best effort: the local session ends even if the server is unreachable
			if apiClient, err := newAuthenticatedClient(c); err == nil {
				if err := api.NewAuthService(apiClient).Logout(cmd.Context()); err != nil {
					c.Logger.Debug("server logout failed", slog.String("error", err.Error()))
				}
				apiClient.Close()
			}

			if err := c.Session.Logout(); err != nil {
				return fmt.Errorf("failed to remove credentials: %w", err)
			}

			fmt.Println("✓ Successfully logged out")
			return nil
		},
	}
}

func newAuthStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authentication status",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := getCliContext(cmd)
			rec, err := c.Tokens.Load()
			if err != nil {
				fmt.Println("Not logged in")
				return nil
			}
			printStatus(rec, c.Tokens.Clock().Now())
			return nil
		},
	}
}

func printStatus(rec *credentials.Record, now time.Time) {
	if rec.Email != "" {
		fmt.Printf("Logged in as: %s\n", rec.Email)
	}
	if rec.UserID != "" {
		fmt.Printf("User ID: %s\n", rec.UserID)
	}
	if rec.Provider != "" {
		fmt.Printf("Provider: %s\n", rec.Provider)
	}

	if rec.ExpiresAt.IsZero() {
		fmt.Println("Token expiry unknown")
		return
	}

	// Show expiry in local timezone
	fmt.Printf("Token expires: %s\n", rec.ExpiresAt.Local().Format("2006-01-02 15:04:05 MST"))

	fmt.Println(expiryMessage(rec, now))
}

// expiryMessage describes how long the access token remains valid
func expiryMessage(rec *credentials.Record, now time.Time) string {
	if rec.IsExpired(now) {
		return fmt.Sprintf("⚠  Token expired %s ago - automatic refresh will be attempted on next request", formatDuration(now.Sub(rec.ExpiresAt)))
	}
	return fmt.Sprintf("✓  Valid for %s", formatDuration(rec.ExpiresAt.Sub(now)))
}

func newAuthTokenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Display the current access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := getCliContext(cmd).Tokens.LoadTokens()
			if err != nil {
				return err
			}
			if creds == nil {
				return fmt.Errorf("not logged in")
			}

			fmt.Println(creds.AccessToken)
			return nil
		},
	}
}

func newWhoAmICommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Validate the stored session and show the current user",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := getCliContext(cmd)

			state := c.Session.Restore(cmd.Context())
			if !state.IsAuthenticated {
				return fmt.Errorf("not logged in\nPlease run 'openfolio auth login' first")
			}

			fmt.Printf("%s (id %d)\n", state.Email, state.UserID)
			if state.DisplayName != "" {
				fmt.Printf("  Name: %s\n", state.DisplayName)
			}
			if state.GitHubUsername != "" {
				fmt.Printf("  GitHub: %s\n", state.GitHubUsername)
			}
			return nil
		},
	}
}

func promptCredentials(email string) (string, string, error) {
	if email == "" {
		fmt.Print("Email: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return "", "", fmt.Errorf("failed to read email: %w", err)
		}
		email = strings.TrimSpace(line)
	}

	// Get password (hidden)
	fmt.Print("Password: ")
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println() // newline after password input
	if err != nil {
		return "", "", fmt.Errorf("failed to read password: %w", err)
	}

	return email, string(passwordBytes), nil
}
