package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/devilmonastery/openfolio/internal/api"
	"github.com/devilmonastery/openfolio/internal/pkg/logger"
)

func newPortfoliosCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "portfolios",
		Aliases: []string{"portfolio", "pf"},
		Short:   "Manage portfolios",
	}

	cmd.AddCommand(newPortfoliosListCommand())
	cmd.AddCommand(newPortfoliosCreateCommand())
	cmd.AddCommand(newPortfoliosUpdateCommand())
	cmd.AddCommand(newPortfoliosDeleteCommand())
	cmd.AddCommand(newPortfoliosIngestCommand())
	cmd.AddCommand(newPortfoliosPublishCommand())
	cmd.AddCommand(newPortfoliosUnpublishCommand())
	cmd.AddCommand(newPortfoliosStatusCommand())

	return cmd
}

// portfolioService returns the portfolio API for an authenticated command
func portfolioService(cmd *cobra.Command) (*CliContext, *api.PortfolioService, error) {
	c := getCliContext(cmd)
	apiClient, err := requireClient(c)
	if err != nil {
		return nil, nil, err
	}
	return c, api.NewPortfolioService(apiClient), nil
}

func parseIDArg(arg string) (int64, error) {
	id, err := api.ParseID(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid ID %q: must be a number", arg)
	}
	return id, nil
}

func newPortfoliosListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List your portfolios",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, svc, err := portfolioService(cmd)
			if err != nil {
				return err
			}

			portfolios, err := svc.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list portfolios: %w", err)
			}
			return printMarkdown(c, portfoliosMarkdown(portfolios))
		},
	}
}

func newPortfoliosCreateCommand() *cobra.Command {
	var title, tagline string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an empty portfolio",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := portfolioService(cmd)
			if err != nil {
				return err
			}

			p, err := svc.Create(cmd.Context(), api.CreatePortfolioRequest{Title: title, Tagline: tagline})
			if err != nil {
				return fmt.Errorf("failed to create portfolio: %w", err)
			}
			fmt.Printf("✓ Created portfolio %d (%s)\n", p.ID, p.Slug)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Portfolio title")
	cmd.Flags().StringVar(&tagline, "tagline", "", "Short tagline")
	cmd.MarkFlagRequired("title")

	return cmd
}

func newPortfoliosUpdateCommand() *cobra.Command {
	var title, tagline, theme string

	cmd := &cobra.Command{
		Use:   "update PORTFOLIO_ID",
		Short: "Change a portfolio's title, tagline or theme",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			_, svc, err := portfolioService(cmd)
			if err != nil {
				return err
			}

			var req api.UpdatePortfolioRequest
			if cmd.Flags().Changed("title") {
				req.Title = &title
			}
			if cmd.Flags().Changed("tagline") {
				req.Tagline = &tagline
			}
			if cmd.Flags().Changed("theme") {
				req.ThemeKey = &theme
			}
			if req == (api.UpdatePortfolioRequest{}) {
				return fmt.Errorf("nothing to update: pass --title, --tagline or --theme")
			}

			p, err := svc.Update(cmd.Context(), id, req)
			if err != nil {
				return fmt.Errorf("failed to update portfolio: %w", err)
			}
			fmt.Printf("✓ Updated portfolio %d (%s)\n", p.ID, p.Title)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&tagline, "tagline", "", "New tagline")
	cmd.Flags().StringVar(&theme, "theme", "", "Theme key")

	return cmd
}

func newPortfoliosDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete PORTFOLIO_ID",
		Short: "Delete a portfolio",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			_, svc, err := portfolioService(cmd)
			if err != nil {
				return err
			}

			if err := svc.Delete(cmd.Context(), id); err != nil {
				return fmt.Errorf("failed to delete portfolio: %w", err)
			}
			fmt.Printf("✓ Deleted portfolio %d\n", id)
			return nil
		},
	}
}

func newPortfoliosIngestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest GITHUB_USERNAME",
		Short: "Build a portfolio from a GitHub profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, svc, err := portfolioService(cmd)
			if err != nil {
				return err
			}

			fmt.Printf("Importing GitHub profile %s (this can take a minute)...\n", args[0])
			start := time.Now()
			p, err := svc.IngestGitHub(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to ingest GitHub profile: %w", err)
			}
			logger.WithDuration(c.Logger, time.Since(start)).Info("GitHub ingestion finished",
				slog.Int64("portfolio_id", p.ID))

			fmt.Printf("✓ Created portfolio %d with %d projects and %d skills\n", p.ID, p.ProjectCount, p.SkillCount)
			return nil
		},
	}
}

func newPortfoliosPublishCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "publish PORTFOLIO_ID",
		Short: "Publish a portfolio to its public URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			c := getCliContext(cmd)
			apiClient, err := requireClient(c)
			if err != nil {
				return err
			}

			resp, err := api.NewPublishService(apiClient).Publish(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("failed to publish portfolio: %w", err)
			}
			fmt.Printf("✓ Published version %d\n", resp.Version)
			fmt.Printf("  %s\n", resp.PublicURL)
			return nil
		},
	}
}

func newPortfoliosUnpublishCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unpublish PORTFOLIO_ID",
		Short: "Take a portfolio offline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			c := getCliContext(cmd)
			apiClient, err := requireClient(c)
			if err != nil {
				return err
			}

			if err := api.NewPublishService(apiClient).Unpublish(cmd.Context(), id); err != nil {
				return fmt.Errorf("failed to unpublish portfolio: %w", err)
			}
			fmt.Printf("✓ Portfolio %d is no longer public\n", id)
			return nil
		},
	}
}

func newPortfoliosStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status PORTFOLIO_ID",
		Short: "Show publish status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			c := getCliContext(cmd)
			apiClient, err := requireClient(c)
			if err != nil {
				return err
			}

			status, err := api.NewPublishService(apiClient).Status(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("failed to get publish status: %w", err)
			}
			if status == nil || status.PublicURL == "" {
				fmt.Printf("Portfolio %d is not published\n", id)
				return nil
			}
			fmt.Printf("Portfolio %d: version %d, published %s\n", id, status.Version, status.PublishedAt)
			fmt.Printf("  %s\n", status.PublicURL)
			return nil
		},
	}
}
