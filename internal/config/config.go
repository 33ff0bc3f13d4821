package config

import (
	"fmt"
	"net/url"
	"time"
)

// Context represents a named configuration context (like kubectl contexts)
type Context struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	OAuth     OAuthConfig     `yaml:"oauth"`
	Rendering RenderingConfig `yaml:"rendering"`
}

// ServerConfig points at the backend API
type ServerConfig struct {
	BaseURL        string        `yaml:"base_url"`
	Timeout        time.Duration `yaml:"timeout,omitempty"`         // Per-request timeout
	RefreshTimeout time.Duration `yaml:"refresh_timeout,omitempty"` // Bound on the token refresh call
}

// AuthConfig holds token handling settings
type AuthConfig struct {
	StrictRotation bool `yaml:"strict_rotation,omitempty"` // Fail a refresh that does not rotate the refresh token
}

// OAuthConfig holds browser sign-in settings
type OAuthConfig struct {
	GitHub       ProviderConfig `yaml:"github,omitempty"`
	LinkedIn     ProviderConfig `yaml:"linkedin,omitempty"`
	RedirectPort int            `yaml:"redirect_port,omitempty"` // Loopback port for the OAuth callback
}

// ProviderConfig holds one OAuth provider's public client settings
type ProviderConfig struct {
	ClientID string   `yaml:"client_id,omitempty"`
	Scopes   []string `yaml:"scopes,omitempty"`
}

// RenderingConfig controls terminal output
type RenderingConfig struct {
	Theme string `yaml:"theme"` // glamour style: auto, dark, light, notty
}

// Config represents the CLI configuration with multiple contexts
type Config struct {
	CurrentContext string              `yaml:"current-context"`
	Contexts       map[string]*Context `yaml:"contexts"`
}

// Defaults for context fields left empty
const (
	DefaultTimeout        = 15 * time.Second
	DefaultRefreshTimeout = 15 * time.Second
	DefaultRedirectPort   = 8085
	DefaultTheme          = "auto"
)

// NewContext returns a context for baseURL with defaults applied
func NewContext(baseURL string) *Context {
	ctx := &Context{}
	ctx.Server.BaseURL = baseURL
	ctx.applyDefaults()
	return ctx
}

// DefaultConfig returns the default configuration with "dev" and "prod" contexts
func DefaultConfig() *Config {
	return &Config{
		CurrentContext: "dev",
		Contexts: map[string]*Context{
			"dev":  NewContext("http://localhost:8080/api/v1"),
			"prod": NewContext("https://openfolio.dev/api/v1"),
		},
	}
}

func (ctx *Context) applyDefaults() {
	if ctx.Server.Timeout == 0 {
		ctx.Server.Timeout = DefaultTimeout
	}
	if ctx.Server.RefreshTimeout == 0 {
		ctx.Server.RefreshTimeout = DefaultRefreshTimeout
	}
	if ctx.OAuth.RedirectPort == 0 {
		ctx.OAuth.RedirectPort = DefaultRedirectPort
	}
	if ctx.Rendering.Theme == "" {
		ctx.Rendering.Theme = DefaultTheme
	}
}

// Validate checks a single context
func (ctx *Context) Validate() error {
	if ctx.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url is required")
	}
	u, err := url.Parse(ctx.Server.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid server.base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server.base_url must be http or https, got %q", u.Scheme)
	}
	if ctx.Server.Timeout < 0 || ctx.Server.RefreshTimeout < 0 {
		return fmt.Errorf("server timeouts must not be negative")
	}
	if p := ctx.OAuth.RedirectPort; p < 0 || p > 65535 {
		return fmt.Errorf("oauth.redirect_port out of range: %d", p)
	}
	return nil
}

// Provider returns the OAuth settings for a provider name
func (ctx *Context) Provider(name string) (ProviderConfig, error) {
	switch name {
	case "github":
		return ctx.OAuth.GitHub, nil
	case "linkedin":
		return ctx.OAuth.LinkedIn, nil
	default:
		return ProviderConfig{}, fmt.Errorf("unsupported OAuth provider %q", name)
	}
}

// GetCurrentContext returns the current active context
func (c *Config) GetCurrentContext() (*Context, error) {
	if c.CurrentContext == "" {
		return nil, fmt.Errorf("no current context set")
	}

	ctx, ok := c.Contexts[c.CurrentContext]
	if !ok {
		return nil, fmt.Errorf("current context %q not found", c.CurrentContext)
	}

	return ctx, nil
}

// SetCurrentContext sets the current active context
func (c *Config) SetCurrentContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q does not exist", name)
	}
	c.CurrentContext = name
	return nil
}

// AddContext adds or updates a context
func (c *Config) AddContext(name string, ctx *Context) {
	if c.Contexts == nil {
		c.Contexts = make(map[string]*Context)
	}
	ctx.applyDefaults()
	c.Contexts[name] = ctx
}

// DeleteContext removes a context
func (c *Config) DeleteContext(name string) error {
	if name == c.CurrentContext {
		return fmt.Errorf("cannot delete current context %q", name)
	}
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q does not exist", name)
	}
	delete(c.Contexts, name)
	return nil
}
