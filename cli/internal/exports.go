package cli

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/devilmonastery/openfolio/internal/api"
)

func newExportsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "exports",
		Aliases: []string{"export", "resumes"},
		Short:   "Generate and manage PDF resumes",
	}

	cmd.AddCommand(newExportsGenerateCommand())
	cmd.AddCommand(newExportsListCommand())
	cmd.AddCommand(newExportsDeleteCommand())
	cmd.AddCommand(newExportsPublishCommand())
	cmd.AddCommand(newExportsUnpublishCommand())

	return cmd
}

// exportService returns the export API for an authenticated command
func exportService(cmd *cobra.Command) (*CliContext, *api.ExportService, error) {
	c := getCliContext(cmd)
	apiClient, err := requireClient(c)
	if err != nil {
		return nil, nil, err
	}
	return c, api.NewExportService(apiClient), nil
}

func newExportsGenerateCommand() *cobra.Command {
	var (
		opts   api.ResumeOptions
		output string
		save   bool
		title  string
	)

	cmd := &cobra.Command{
		Use:   "generate PORTFOLIO_ID",
		Short: "Render a portfolio as a PDF resume",
		Long: `Render a portfolio as a PDF resume.

Examples:
  # Download a resume with the dark template
  openfolio exports generate 12 --template dark --output resume.pdf

  # Keep a permanent copy with AI-polished bullet points
  openfolio exports generate 12 --ai-rewrite --save --title "Backend roles"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			if opts.Template != "" && !slices.Contains(api.Templates, opts.Template) {
				return fmt.Errorf("unknown template %q (available: %s)", opts.Template, strings.Join(api.Templates, ", "))
			}
			opts.IncludePhone = opts.Phone != ""
			opts.IncludeLinkedIn = opts.LinkedIn != ""
			opts.IncludeWebsite = opts.Website != ""

			_, svc, err := exportService(cmd)
			if err != nil {
				return err
			}

			if opts.AIRewrite && !svc.AIReady(cmd.Context(), id) {
				fmt.Println("Preparing AI rewrites (first run can be slow)...")
				svc.WarmAI(cmd.Context(), id)
			}

			if save {
				saved, err := svc.Save(cmd.Context(), id, opts, title)
				if err != nil {
					return fmt.Errorf("failed to save resume: %w", err)
				}
				fmt.Printf("✓ Saved resume %d (%s, %s)\n", saved.ID, saved.TemplateKey, formatBytes(saved.FileSizeBytes))
				return nil
			}

			resp, err := svc.GeneratePDF(cmd.Context(), id, opts)
			if err != nil {
				return fmt.Errorf("failed to generate resume: %w", err)
			}
			if output == "" {
				fmt.Printf("✓ Resume ready: %s\n", resp.DownloadURL)
				return nil
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", output, err)
			}
			n, err := svc.Download(cmd.Context(), resp.Token, f)
			if closeErr := f.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				return fmt.Errorf("failed to download resume: %w", err)
			}
			fmt.Printf("✓ Wrote %s (%s)\n", output, formatBytes(n))
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.Template, "template", "t", "pdf", "Resume template ("+strings.Join(api.Templates, ", ")+")")
	cmd.Flags().BoolVar(&opts.AIRewrite, "ai-rewrite", false, "Polish descriptions with AI")
	cmd.Flags().BoolVar(&opts.IncludePhoto, "include-photo", false, "Include the profile photo")
	cmd.Flags().StringVar(&opts.PhotoURL, "photo-url", "", "Photo URL to use instead of the profile avatar")
	cmd.Flags().StringVar(&opts.Phone, "phone", "", "Phone number to print")
	cmd.Flags().StringVar(&opts.LinkedIn, "linkedin", "", "LinkedIn profile to print")
	cmd.Flags().StringVar(&opts.Website, "website", "", "Website to print")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Download the PDF to this file")
	cmd.Flags().BoolVar(&save, "save", false, "Store the resume permanently instead of downloading")
	cmd.Flags().StringVar(&title, "title", "", "Title for a saved resume")
	cmd.MarkFlagsMutuallyExclusive("save", "output")

	return cmd
}

func newExportsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved resumes",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, svc, err := exportService(cmd)
			if err != nil {
				return err
			}

			saved, err := svc.ListSaved(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list saved resumes: %w", err)
			}
			return printMarkdown(c, savedResumesMarkdown(saved))
		},
	}
}

func newExportsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete RESUME_ID",
		Short: "Delete a saved resume",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			_, svc, err := exportService(cmd)
			if err != nil {
				return err
			}

			if err := svc.DeleteSaved(cmd.Context(), id); err != nil {
				return fmt.Errorf("failed to delete saved resume: %w", err)
			}
			fmt.Printf("✓ Deleted saved resume %d\n", id)
			return nil
		},
	}
}

func newExportsPublishCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "publish RESUME_ID",
		Short: "Give a saved resume a public link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			_, svc, err := exportService(cmd)
			if err != nil {
				return err
			}

			saved, err := svc.PublishSaved(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("failed to publish saved resume: %w", err)
			}
			fmt.Printf("✓ %s\n", saved.PublicURL)
			return nil
		},
	}
}

func newExportsUnpublishCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unpublish RESUME_ID",
		Short: "Remove a saved resume's public link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			_, svc, err := exportService(cmd)
			if err != nil {
				return err
			}

			if _, err := svc.UnpublishSaved(cmd.Context(), id); err != nil {
				return fmt.Errorf("failed to unpublish saved resume: %w", err)
			}
			fmt.Printf("✓ Saved resume %d is private\n", id)
			return nil
		},
	}
}
