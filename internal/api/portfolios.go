package api

import (
	"context"
	"net/http"
	"time"

	"github.com/devilmonastery/openfolio/internal/client"
)

// ingestTimeout covers GitHub fetching plus AI enrichment on the backend
const ingestTimeout = 120 * time.Second

// PortfolioService wraps the portfolio endpoints
type PortfolioService struct {
	client *client.Client
}

// NewPortfolioService creates a portfolio service
func NewPortfolioService(c *client.Client) *PortfolioService {
	return &PortfolioService{client: c}
}

// List returns the user's portfolios
func (s *PortfolioService) List(ctx context.Context) ([]Portfolio, error) {
	var portfolios []Portfolio
	if err := s.client.Get(ctx, pathPortfolios, nil, &portfolios); err != nil {
		return nil, err
	}
	return portfolios, nil
}

// Create creates an empty portfolio
func (s *PortfolioService) Create(ctx context.Context, req CreatePortfolioRequest) (*Portfolio, error) {
	var p Portfolio
	if err := s.client.Post(ctx, pathPortfolios, nil, req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Update patches a portfolio
func (s *PortfolioService) Update(ctx context.Context, id int64, req UpdatePortfolioRequest) (*Portfolio, error) {
	var p Portfolio
	if err := s.client.Patch(ctx, portfolioPath(id), req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Delete removes a portfolio
func (s *PortfolioService) Delete(ctx context.Context, id int64) error {
	return s.client.Delete(ctx, portfolioPath(id), nil)
}

// IngestGitHub builds a portfolio from a GitHub profile
func (s *PortfolioService) IngestGitHub(ctx context.Context, githubUsername string) (*Portfolio, error) {
	ctx, cancel := context.WithTimeout(ctx, ingestTimeout)
	defer cancel()

	var p Portfolio
	body := map[string]string{"githubUsername": githubUsername}
	if err := s.client.Do(ctx, http.MethodPost, pathIngestGitHub, nil, body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
