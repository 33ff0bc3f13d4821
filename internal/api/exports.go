package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/devilmonastery/openfolio/internal/client"
)

const (
	exportTimeout = 120 * time.Second
	listTimeout   = 60 * time.Second
	shortTimeout  = 30 * time.Second
)

// Resume templates understood by the export endpoints
var Templates = []string{"pdf", "dark", "minimal", "hacker"}

// ResumeOptions selects the template and optional contact details of an export
type ResumeOptions struct {
	Template        string
	AIRewrite       bool
	IncludePhoto    bool
	PhotoURL        string
	IncludePhone    bool
	Phone           string
	IncludeLinkedIn bool
	LinkedIn        string
	IncludeWebsite  bool
	Website         string
}

// Query encodes the options as export query parameters.
// Contact fields are only sent when both the flag and the value are set.
func (o ResumeOptions) Query() url.Values {
	q := url.Values{}
	template := o.Template
	if template == "" {
		template = "pdf"
	}
	q.Set("template", template)
	if o.AIRewrite {
		q.Set("aiRewrite", "true")
	}
	if o.IncludePhoto {
		q.Set("includePhoto", "true")
	}
	if o.PhotoURL != "" {
		q.Set("photoUrl", o.PhotoURL)
	}
	if o.IncludePhone && o.Phone != "" {
		q.Set("includePhone", "true")
		q.Set("phone", o.Phone)
	}
	if o.IncludeLinkedIn && o.LinkedIn != "" {
		q.Set("includeLinkedIn", "true")
		q.Set("linkedIn", o.LinkedIn)
	}
	if o.IncludeWebsite && o.Website != "" {
		q.Set("includeWebsite", "true")
		q.Set("website", o.Website)
	}
	return q
}

// ExportService wraps resume generation and saved resumes
type ExportService struct {
	client *client.Client
}

// NewExportService creates an export service
func NewExportService(c *client.Client) *ExportService {
	return &ExportService{client: c}
}

// WarmAI asks the backend to pre-compute AI rewrites. Failures are only logged.
func (s *ExportService) WarmAI(ctx context.Context, portfolioID int64) {
	ctx, cancel := context.WithTimeout(ctx, shortTimeout)
	defer cancel()
	if err := s.client.Post(ctx, warmAIPath(portfolioID), nil, nil, nil); err != nil {
		slog.Debug("AI warm-up failed",
			slog.String("component", "export"),
			slog.Int64("portfolio_id", portfolioID),
			slog.String("error", err.Error()))
	}
}

// AIReady reports whether AI rewrites are cached. Errors count as not ready.
func (s *ExportService) AIReady(ctx context.Context, portfolioID int64) bool {
	ctx, cancel := context.WithTimeout(ctx, shortTimeout)
	defer cancel()
	var status struct {
		Ready bool `json:"ready"`
	}
	if err := s.client.Get(ctx, aiStatusPath(portfolioID), nil, &status); err != nil {
		return false
	}
	return status.Ready
}

// GeneratePDF renders a temporary PDF and returns its download link
func (s *ExportService) GeneratePDF(ctx context.Context, portfolioID int64, opts ResumeOptions) (*ExportResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, exportTimeout)
	defer cancel()
	var resp ExportResponse
	if err := s.client.Post(ctx, exportPDFPath(portfolioID), opts.Query(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Download streams a generated PDF to w and returns the number of bytes written
func (s *ExportService) Download(ctx context.Context, token string, w io.Writer) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, exportTimeout)
	defer cancel()
	resp, err := s.client.Raw(ctx, http.MethodGet, downloadPath(token), nil, nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return io.Copy(w, resp.Body)
}

// Save renders a PDF and stores it permanently
func (s *ExportService) Save(ctx context.Context, portfolioID int64, opts ResumeOptions, title string) (*SavedResume, error) {
	ctx, cancel := context.WithTimeout(ctx, exportTimeout)
	defer cancel()
	q := opts.Query()
	if title != "" {
		q.Set("title", title)
	}
	var saved SavedResume
	if err := s.client.Post(ctx, saveExportPath(portfolioID), q, nil, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// ListSaved returns all saved resumes of the user
func (s *ExportService) ListSaved(ctx context.Context) ([]SavedResume, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()
	var saved []SavedResume
	if err := s.client.Get(ctx, pathSavedResumes, nil, &saved); err != nil {
		return nil, err
	}
	return saved, nil
}

// DeleteSaved removes a saved resume
func (s *ExportService) DeleteSaved(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, shortTimeout)
	defer cancel()
	return s.client.Delete(ctx, savedResumePath(id), nil)
}

// PublishSaved gives a saved resume a public link
func (s *ExportService) PublishSaved(ctx context.Context, id int64) (*SavedResume, error) {
	ctx, cancel := context.WithTimeout(ctx, shortTimeout)
	defer cancel()
	var saved SavedResume
	if err := s.client.Post(ctx, savedResumePublishPath(id), nil, nil, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// UnpublishSaved removes the public link of a saved resume
func (s *ExportService) UnpublishSaved(ctx context.Context, id int64) (*SavedResume, error) {
	ctx, cancel := context.WithTimeout(ctx, shortTimeout)
	defer cancel()
	var saved SavedResume
	if err := s.client.Do(ctx, http.MethodDelete, savedResumePublishPath(id), nil, nil, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// ParseID parses a numeric resource ID from a command argument
func ParseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
