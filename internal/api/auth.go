package api

import (
	"context"
	"fmt"

	"github.com/devilmonastery/openfolio/internal/client"
)

// Supported OAuth providers
const (
	ProviderGitHub   = "github"
	ProviderLinkedIn = "linkedin"
)

// AuthService wraps the login and logout endpoints
type AuthService struct {
	client *client.Client
}

// NewAuthService creates an auth service. Login calls work on an unauthenticated client.
func NewAuthService(c *client.Client) *AuthService {
	return &AuthService{client: c}
}

type credentialsRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName,omitempty"`
}

type oauthCallbackRequest struct {
	Code        string `json:"code"`
	RedirectURI string `json:"redirectUri,omitempty"`
}

// Register creates an account and returns its first token pair
func (s *AuthService) Register(ctx context.Context, email, password, displayName string) (*client.TokenResponse, error) {
	var tokens client.TokenResponse
	err := s.client.Post(ctx, pathRegister, nil, credentialsRequest{
		Email:       email,
		Password:    password,
		DisplayName: displayName,
	}, &tokens)
	if err != nil {
		return nil, fmt.Errorf("registration failed: %w", err)
	}
	return &tokens, nil
}

// Login exchanges email and password for a token pair
func (s *AuthService) Login(ctx context.Context, email, password string) (*client.TokenResponse, error) {
	var tokens client.TokenResponse
	err := s.client.Post(ctx, pathLogin, nil, credentialsRequest{Email: email, Password: password}, &tokens)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	return &tokens, nil
}

// OAuth exchanges an authorization code from provider for a token pair
func (s *AuthService) OAuth(ctx context.Context, provider, code, redirectURI string) (*client.TokenResponse, error) {
	switch provider {
	case ProviderGitHub, ProviderLinkedIn:
	default:
		return nil, fmt.Errorf("unsupported OAuth provider %q", provider)
	}

	var tokens client.TokenResponse
	err := s.client.Post(ctx, oauthPath(provider), nil, oauthCallbackRequest{
		Code:        code,
		RedirectURI: redirectURI,
	}, &tokens)
	if err != nil {
		return nil, fmt.Errorf("%s sign in failed: %w", provider, err)
	}
	if tokens.AccessToken == "" {
		return nil, fmt.Errorf("%s sign in failed: no access token in response", provider)
	}
	return &tokens, nil
}

// Logout tells the backend the session is over. Tokens are discarded by the caller.
func (s *AuthService) Logout(ctx context.Context) error {
	return s.client.Post(ctx, pathLogout, nil, nil, nil)
}
