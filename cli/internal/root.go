package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/devilmonastery/openfolio/internal/client"
	"github.com/devilmonastery/openfolio/internal/config"
	"github.com/devilmonastery/openfolio/internal/credentials"
	"github.com/devilmonastery/openfolio/internal/pkg/logger"
	"github.com/devilmonastery/openfolio/internal/pkg/metrics"
	"github.com/devilmonastery/openfolio/internal/session"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const cliContextKey contextKey = "cliContext"

// CliContext holds shared CLI context
type CliContext struct {
	Config      *config.Config
	ContextName string
	Context     *config.Context
	Tokens      *credentials.FileStore
	Session     *session.Store
	Client      *client.Client // nil for auth and config commands
	Logger      *slog.Logger
}

// Global flags
var (
	logLevel        string
	logFile         string
	logToStderr     bool
	alsoLogStderr   bool
	logFormat       string
	contextOverride string
	metricsTextfile string

	closeLog = func() error { return nil }
)

// NewRootCommand creates the root cobra command
func NewRootCommand() *cobra.Command {
	var ctx CliContext

	rootCmd := &cobra.Command{
		Use:           "openfolio",
		Short:         "CLI for managing portfolios with OpenFolio",
		Long:          `A command line interface for building, publishing and exporting portfolios via the OpenFolio REST API.`,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors (main.go handles it)
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Setup logging first
			if err := setupLogging(); err != nil {
				return fmt.Errorf("failed to setup logging: %w", err)
			}

			ctx.Logger = logger.WithCommand(slog.Default().With("component", "cli"), cmd.Name())
			ctx.Logger.Debug("CLI started")

			// Config commands manage the config file themselves
			if isUnder(cmd, "config") {
				return nil
			}

			if err := ctx.loadContext(); err != nil {
				return err
			}

			// Auth commands talk to the backend without a session
			if !isUnder(cmd, "auth") {
				apiClient, err := newAuthenticatedClient(&ctx)
				if err != nil {
					return fmt.Errorf("failed to create client: %w", err)
				}
				ctx.Client = apiClient
			}

			cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey, &ctx))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if metricsTextfile != "" {
				if err := metrics.WriteTextfile(metricsTextfile); err != nil {
					slog.Warn("failed to write metrics", slog.String("error", err.Error()))
				}
			}
			defer closeLog()
			// Clean up connections
			if ctx.Client != nil {
				return ctx.Client.Close()
			}
			return nil
		},
	}

	// Add subcommands
	rootCmd.AddCommand(newAuthCommand())
	rootCmd.AddCommand(newWhoAmICommand())
	rootCmd.AddCommand(newPortfoliosCommand())
	rootCmd.AddCommand(newExportsCommand())
	rootCmd.AddCommand(newConfigCommand())

	rootCmd.PersistentFlags().StringVar(&contextOverride, "context", "",
		"Config context to use (default: current-context)")
	rootCmd.PersistentFlags().StringVar(&metricsTextfile, "metrics-textfile", "",
		"Write client metrics in Prometheus text format to this file on exit")

	// Add logging flags
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn",
		"Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "",
		"Log file path, or \"default\" for the per-user log dir (if specified, logs to file instead of stderr)")
	rootCmd.PersistentFlags().BoolVar(&logToStderr, "logtostderr", false,
		"Log to stderr (default behavior unless --log-file specified)")
	rootCmd.PersistentFlags().BoolVar(&alsoLogStderr, "alsologtostderr", false,
		"Log to both file and stderr")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text",
		"Log format (text, json)")

	return rootCmd
}

// loadContext resolves the config context and its credential store
func (c *CliContext) loadContext() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	c.Config = cfg

	name := cfg.CurrentContext
	if contextOverride != "" {
		name = contextOverride
	}
	cctx, ok := cfg.Contexts[name]
	if !ok {
		return fmt.Errorf("context %q not found", name)
	}
	c.ContextName = name
	c.Context = cctx
	c.Logger = logger.WithContext(c.Logger, name)

	path, err := credentials.DefaultPath(name)
	if err != nil {
		return err
	}
	c.Tokens = credentials.NewFileStore(path)
	c.Session = session.NewStore(c.Tokens, nil)
	return nil
}

// isUnder reports whether cmd is name or one of its subcommands
func isUnder(cmd *cobra.Command, name string) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == name && c.HasParent() {
			return true
		}
	}
	return false
}

// setupLogging configures the global logger based on CLI flags
func setupLogging() error {
	if logFile == "default" {
		logFile = logger.DefaultLogFile("cli")
	}

	cfg := logger.Config{
		Level:  logger.ParseLevel(logLevel),
		File:   logFile,
		Stderr: logFile == "" || logToStderr || alsoLogStderr,
		Format: logFormat,
	}

	globalLogger, closeFn, err := logger.Setup(cfg)
	if err != nil {
		return err
	}
	closeLog = closeFn

	// Set as default logger
	slog.SetDefault(globalLogger)
	return nil
}

// getCliContext extracts the CLI context from the command context
func getCliContext(cmd *cobra.Command) *CliContext {
	return cmd.Context().Value(cliContextKey).(*CliContext)
}
