package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/devilmonastery/openfolio/internal/config"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration and contexts",
		Long:  `Manage CLI configuration including server contexts, similar to kubectl contexts.`,
	}

	// Add subcommands
	cmd.AddCommand(newCurrentContextCommand())
	cmd.AddCommand(newUseContextCommand())
	cmd.AddCommand(newListContextsCommand())
	cmd.AddCommand(newSetContextCommand())
	cmd.AddCommand(newDeleteContextCommand())
	cmd.AddCommand(newConfigViewCommand())

	return cmd
}

// current-context command
func newCurrentContextCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "current-context",
		Short: "Display the current context",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			fmt.Println(cfg.CurrentContext)
			return nil
		},
	}
}

// use-context command
func newUseContextCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "use-context CONTEXT_NAME",
		Short: "Switch to a different context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			contextName := args[0]

			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if err := cfg.SetCurrentContext(contextName); err != nil {
				return err
			}

			if err := config.SaveConfig(cfg); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			fmt.Printf("Switched to context %q\n", contextName)
			return nil
		},
	}
}

// get-contexts command
func newListContextsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "get-contexts",
		Aliases: []string{"list-contexts"},
		Short:   "List all available contexts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if len(cfg.Contexts) == 0 {
				fmt.Println("No contexts configured")
				return nil
			}

			// Use tabwriter for aligned output
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "CURRENT\tNAME\tSERVER\tTHEME")

			for _, name := range cfg.ContextNames() {
				ctx := cfg.Contexts[name]
				current := " "
				if name == cfg.CurrentContext {
					current = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					current,
					name,
					ctx.Server.BaseURL,
					ctx.Rendering.Theme,
				)
			}
			w.Flush()

			return nil
		},
	}
}

// set-context command
func newSetContextCommand() *cobra.Command {
	var (
		baseURL        string
		timeout        time.Duration
		refreshTimeout time.Duration
		strictRotation bool
		githubClientID string
		linkedInID     string
		redirectPort   int
		theme          string
	)

	cmd := &cobra.Command{
		Use:     "set-context CONTEXT_NAME",
		Aliases: []string{"add-context"},
		Short:   "Add or update a context",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			contextName := args[0]

			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			// Start from the existing context so unset flags keep their values
			ctx, ok := cfg.Contexts[contextName]
			if !ok {
				ctx = config.NewContext(config.DefaultConfig().Contexts["dev"].Server.BaseURL)
			}
			flags := cmd.Flags()
			if flags.Changed("base-url") {
				ctx.Server.BaseURL = baseURL
			}
			if flags.Changed("timeout") {
				ctx.Server.Timeout = timeout
			}
			if flags.Changed("refresh-timeout") {
				ctx.Server.RefreshTimeout = refreshTimeout
			}
			if flags.Changed("strict-rotation") {
				ctx.Auth.StrictRotation = strictRotation
			}
			if flags.Changed("github-client-id") {
				ctx.OAuth.GitHub.ClientID = githubClientID
			}
			if flags.Changed("linkedin-client-id") {
				ctx.OAuth.LinkedIn.ClientID = linkedInID
			}
			if flags.Changed("redirect-port") {
				ctx.OAuth.RedirectPort = redirectPort
			}
			if flags.Changed("theme") {
				ctx.Rendering.Theme = theme
			}
			if err := ctx.Validate(); err != nil {
				return err
			}

			cfg.AddContext(contextName, ctx)

			// If this is the first context, make it current
			if len(cfg.Contexts) == 1 {
				cfg.CurrentContext = contextName
			}

			if err := config.SaveConfig(cfg); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			fmt.Printf("Context %q added/updated\n", contextName)
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "API base URL (e.g. https://openfolio.dev/api/v1)")
	cmd.Flags().DurationVar(&timeout, "timeout", config.DefaultTimeout, "Per-request timeout")
	cmd.Flags().DurationVar(&refreshTimeout, "refresh-timeout", config.DefaultRefreshTimeout, "Token refresh timeout")
	cmd.Flags().BoolVar(&strictRotation, "strict-rotation", false, "Fail refreshes that do not rotate the refresh token")
	cmd.Flags().StringVar(&githubClientID, "github-client-id", "", "GitHub OAuth client ID")
	cmd.Flags().StringVar(&linkedInID, "linkedin-client-id", "", "LinkedIn OAuth client ID")
	cmd.Flags().IntVar(&redirectPort, "redirect-port", config.DefaultRedirectPort, "Loopback port for OAuth callbacks")
	cmd.Flags().StringVar(&theme, "theme", config.DefaultTheme, "Rendering theme")

	return cmd
}

// delete-context command
func newDeleteContextCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-context CONTEXT_NAME",
		Short: "Delete a context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			contextName := args[0]

			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if err := cfg.DeleteContext(contextName); err != nil {
				return err
			}

			if err := config.SaveConfig(cfg); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			fmt.Printf("Context %q deleted\n", contextName)
			return nil
		},
	}
}

// view command shows the current context as YAML
func newConfigViewCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "view",
		Aliases: []string{"show"},
		Short:   "Show current context configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			ctx, err := cfg.GetCurrentContext()
			if err != nil {
				return fmt.Errorf("failed to get current context: %w", err)
			}

			data, err := yaml.Marshal(ctx)
			if err != nil {
				return fmt.Errorf("failed to render config: %w", err)
			}

			configPath, _ := config.GetConfigPath()
			fmt.Printf("# context: %s\n# file: %s\n", cfg.CurrentContext, configPath)
			fmt.Print(string(data))
			return nil
		},
	}
}
