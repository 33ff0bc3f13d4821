package api

import (
	"fmt"
	"net/url"
)

// Backend paths, relative to the API base URL
const (
	pathRegister     = "/auth/register"
	pathLogin        = "/auth/login"
	pathLogout       = "/auth/logout"
	pathMe           = "/users/me"
	pathPortfolios   = "/portfolios"
	pathIngestGitHub = "/ingestion/github"
	pathSavedResumes = "/saved-resumes"
)

func oauthPath(provider string) string {
	return "/auth/oauth/" + provider
}

func portfolioPath(id int64) string {
	return fmt.Sprintf("/portfolios/%d", id)
}

func publishPath(id int64) string {
	return fmt.Sprintf("/portfolios/%d/publish", id)
}

func publishStatusPath(id int64) string {
	return fmt.Sprintf("/portfolios/%d/publish/status", id)
}

func exportPDFPath(id int64) string {
	return fmt.Sprintf("/portfolios/%d/export/pdf", id)
}

func aiStatusPath(id int64) string {
	return fmt.Sprintf("/portfolios/%d/export/ai-status", id)
}

func warmAIPath(id int64) string {
	return fmt.Sprintf("/portfolios/%d/export/warm-ai", id)
}

func saveExportPath(portfolioID int64) string {
	return fmt.Sprintf("/portfolios/%d/export/save", portfolioID)
}

func savedResumePath(id int64) string {
	return fmt.Sprintf("/saved-resumes/%d", id)
}

func savedResumePublishPath(id int64) string {
	return fmt.Sprintf("/saved-resumes/%d/publish", id)
}

func downloadPath(token string) string {
	return "/export/download/" + url.PathEscape(token)
}
