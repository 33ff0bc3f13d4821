package api

import (
	"context"

	"github.com/devilmonastery/openfolio/internal/client"
)

// UserService wraps the user endpoints
type UserService struct {
	client *client.Client
}

// NewUserService creates a user service
func NewUserService(c *client.Client) *UserService {
	return &UserService{client: c}
}

// Me returns the authenticated user
func (s *UserService) Me(ctx context.Context) (*User, error) {
	var u User
	if err := s.client.Get(ctx, pathMe, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
