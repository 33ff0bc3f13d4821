package api

// User is the identity returned by the whoami endpoint
type User struct {
	ID             int64  `json:"id"`
	Email          string `json:"email"`
	DisplayName    string `json:"displayName,omitempty"`
	AvatarURL      string `json:"avatarUrl,omitempty"`
	GitHubUsername string `json:"githubUsername,omitempty"`
	CreatedAt      string `json:"createdAt,omitempty"`
}

// Portfolio is the summary view of a portfolio.
// Timestamps are kept as the backend's zoneless local date-time strings.
type Portfolio struct {
	ID           int64  `json:"id"`
	Slug         string `json:"slug"`
	Title        string `json:"title"`
	Tagline      string `json:"tagline,omitempty"`
	Published    bool   `json:"published"`
	ThemeKey     string `json:"themeKey"`
	ProjectCount int64  `json:"projectCount"`
	SkillCount   int64  `json:"skillCount"`
	CreatedAt    string `json:"createdAt"`
	UpdatedAt    string `json:"updatedAt"`
}

// CreatePortfolioRequest creates an empty portfolio
type CreatePortfolioRequest struct {
	Title   string `json:"title"`
	Tagline string `json:"tagline,omitempty"`
}

// UpdatePortfolioRequest patches portfolio fields; nil fields are left alone
type UpdatePortfolioRequest struct {
	Title     *string `json:"title,omitempty"`
	Tagline   *string `json:"tagline,omitempty"`
	ThemeKey  *string `json:"themeKey,omitempty"`
	Published *bool   `json:"published,omitempty"`
}

// PublishResponse describes a published portfolio version
type PublishResponse struct {
	PortfolioID int64  `json:"portfolioId"`
	Slug        string `json:"slug"`
	PublicURL   string `json:"publicUrl"`
	Version     int    `json:"version"`
	PublishedAt string `json:"publishedAt"`
}

// ExportResponse points at a generated PDF download
type ExportResponse struct {
	Token       string `json:"token"`
	DownloadURL string `json:"downloadUrl"`
	Template    string `json:"template"`
}

// SavedResume is a permanently stored PDF export
type SavedResume struct {
	ID            int64  `json:"id"`
	PortfolioID   int64  `json:"portfolioId"`
	Title         string `json:"title"`
	TemplateKey   string `json:"templateKey"`
	FileSizeBytes int64  `json:"fileSizeBytes"`
	CreatedAt     string `json:"createdAt"`
	PublicURL     string `json:"publicUrl,omitempty"`
}
