package api

import (
	"context"

	"github.com/devilmonastery/openfolio/internal/client"
)

// PublishService wraps portfolio publishing
type PublishService struct {
	client *client.Client
}

// NewPublishService creates a publish service
func NewPublishService(c *client.Client) *PublishService {
	return &PublishService{client: c}
}

// Publish publishes the current portfolio content as a new version
func (s *PublishService) Publish(ctx context.Context, portfolioID int64) (*PublishResponse, error) {
	var resp PublishResponse
	if err := s.client.Post(ctx, publishPath(portfolioID), nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Unpublish takes the public page down
func (s *PublishService) Unpublish(ctx context.Context, portfolioID int64) error {
	return s.client.Delete(ctx, publishPath(portfolioID), nil)
}

// Status returns the latest published version
func (s *PublishService) Status(ctx context.Context, portfolioID int64) (*PublishResponse, error) {
	var resp PublishResponse
	if err := s.client.Get(ctx, publishStatusPath(portfolioID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
