package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"

	"github.com/devilmonastery/openfolio/internal/api"
	"github.com/devilmonastery/openfolio/internal/config"
	"github.com/devilmonastery/openfolio/internal/pkg/timeutil"
)

// renderMarkdown renders markdown content, using glamour for terminal output or plain text otherwise
func renderMarkdown(markdown string, theme string) (string, error) {
	// If stdout is a terminal, render styled markdown using glamour
	if term.IsTerminal(int(os.Stdout.Fd())) {
		rendered, err := glamour.Render(markdown, theme)
		if err != nil {
			// Fall back to plain markdown if rendering fails
			return markdown, nil
		}
		return rendered, nil
	}

	// For non-terminal output (pipes, redirects), return plain markdown
	return markdown, nil
}

// printMarkdown renders and prints markdown using the context's theme
func printMarkdown(c *CliContext, markdown string) error {
	rendered, err := renderMarkdown(markdown, getTheme(c.Context))
	if err != nil {
		return err
	}

	fmt.Print(rendered)
	return nil
}

// getTheme returns the theme from the context, or "auto" if unset
func getTheme(ctx *config.Context) string {
	if ctx == nil || ctx.Rendering.Theme == "" {
		return config.DefaultTheme
	}
	return ctx.Rendering.Theme
}

// escapeCell keeps user text from breaking a markdown table row
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

// portfoliosMarkdown formats portfolios as a markdown table
func portfoliosMarkdown(portfolios []api.Portfolio) string {
	if len(portfolios) == 0 {
		return "_No portfolios yet. Create one with `openfolio portfolios create` or `openfolio portfolios ingest`._\n"
	}

	var b strings.Builder
	b.WriteString("# Portfolios\n\n")
	b.WriteString("| ID | Title | Slug | Theme | Projects | Skills | Published | Updated |\n")
	b.WriteString("|---:|---|---|---|---:|---:|:---:|---|\n")
	for _, p := range portfolios {
		published := ""
		if p.Published {
			published = "✓"
		}
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %d | %d | %s | %s |\n",
			p.ID, escapeCell(p.Title), escapeCell(p.Slug), escapeCell(p.ThemeKey),
			p.ProjectCount, p.SkillCount, published, timeutil.FormatDate(p.UpdatedAt))
	}
	return b.String()
}

// savedResumesMarkdown formats saved resumes as a markdown table
func savedResumesMarkdown(saved []api.SavedResume) string {
	if len(saved) == 0 {
		return "_No saved resumes._\n"
	}

	var b strings.Builder
	b.WriteString("# Saved resumes\n\n")
	b.WriteString("| ID | Portfolio | Title | Template | Size | Created | Public URL |\n")
	b.WriteString("|---:|---:|---|---|---:|---|---|\n")
	for _, s := range saved {
		fmt.Fprintf(&b, "| %d | %d | %s | %s | %s | %s | %s |\n",
			s.ID, s.PortfolioID, escapeCell(s.Title), escapeCell(s.TemplateKey),
			formatBytes(s.FileSizeBytes), timeutil.FormatDate(s.CreatedAt), escapeCell(s.PublicURL))
	}
	return b.String()
}

// formatBytes formats a file size in KB or MB
func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
