// Package generic implements a plain OAuth 2.0 upstream provider: an
// authorization code exchange followed by a userinfo lookup. Presets exist
// for Google and GitHub.
package generic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	"github.com/giantswarm/oauth2-core/providers"
)

const (
	// DefaultTimeout bounds every upstream call when the caller's context
	// carries no deadline.
	DefaultTimeout = 30 * time.Second

	googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
	githubUserInfoURL = "https://api.github.com/user"
)

// Config holds generic OAuth provider configuration
type Config struct {
	// Name is the provider name clients select it by.
	Name string

	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// Endpoint holds the upstream authorization and token URLs.
	Endpoint oauth2.Endpoint

	// UserInfoURL is queried with the upstream access token.
	UserInfoURL string

	// IDClaim, EmailClaim, NameClaim and LoginClaim name the userinfo fields
	// mapped onto providers.UserInfo. IDClaim defaults to "sub", EmailClaim
	// to "email" and NameClaim to "name".
	IDClaim    string
	EmailClaim string
	NameClaim  string
	LoginClaim string

	// HTTPClient is used for all upstream calls. Optional.
	HTTPClient *http.Client

	// Timeout applies when the context has no deadline. Defaults to
	// DefaultTimeout.
	Timeout time.Duration
}

// Provider implements providers.Provider over golang.org/x/oauth2.
type Provider struct {
	name        string
	config      *oauth2.Config
	userInfoURL string
	idClaim     string
	emailClaim  string
	nameClaim   string
	loginClaim  string
	httpClient  *http.Client
	timeout     time.Duration
}

var _ providers.Provider = (*Provider)(nil)

// NewProvider creates a new generic OAuth provider
func NewProvider(cfg *Config) (*Provider, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.Name == "" {
		return nil, errors.New("provider name is required")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if cfg.ClientSecret == "" {
		return nil, errors.New("client secret is required")
	}
	if cfg.Endpoint.AuthURL == "" || cfg.Endpoint.TokenURL == "" {
		return nil, errors.New("authorization and token endpoints are required")
	}
	if cfg.UserInfoURL == "" {
		return nil, errors.New("userinfo URL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &Provider{
		name: cfg.Name,
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     cfg.Endpoint,
		},
		userInfoURL: cfg.UserInfoURL,
		idClaim:     orDefault(cfg.IDClaim, "sub"),
		emailClaim:  orDefault(cfg.EmailClaim, "email"),
		nameClaim:   orDefault(cfg.NameClaim, "name"),
		loginClaim:  cfg.LoginClaim,
		httpClient:  httpClient,
		timeout:     timeout,
	}, nil
}

// Google returns a provider preconfigured for Google accounts.
func Google(cfg Config) (*Provider, error) {
	cfg.Name = orDefault(cfg.Name, "google")
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"openid", "email", "profile"}
	}
	if cfg.Endpoint.AuthURL == "" {
		cfg.Endpoint = google.Endpoint
	}
	cfg.UserInfoURL = orDefault(cfg.UserInfoURL, googleUserInfoURL)
	return NewProvider(&cfg)
}

// GitHub returns a provider preconfigured for GitHub accounts. GitHub user
// IDs are numeric and the login is used as the username.
func GitHub(cfg Config) (*Provider, error) {
	cfg.Name = orDefault(cfg.Name, "github")
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"read:user", "user:email"}
	}
	if cfg.Endpoint.AuthURL == "" {
		cfg.Endpoint = github.Endpoint
	}
	cfg.UserInfoURL = orDefault(cfg.UserInfoURL, githubUserInfoURL)
	cfg.IDClaim = orDefault(cfg.IDClaim, "id")
	cfg.LoginClaim = orDefault(cfg.LoginClaim, "login")
	return NewProvider(&cfg)
}

// Name returns the provider name
func (p *Provider) Name() string {
	return p.name
}

// AuthorizationURL generates the upstream authorization URL
func (p *Provider) AuthorizationURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// ExchangeCode exchanges an authorization code for tokens
func (p *Provider) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx, cancel := p.ensureContextTimeout(ctx)
	defer cancel()

	return providers.ExchangeCode(ctx, p.config, p.httpClient, code)
}

// UserInfo fetches the userinfo endpoint with the upstream token.
func (p *Provider) UserInfo(ctx context.Context, token *oauth2.Token) (*providers.UserInfo, error) {
	if token == nil || token.AccessToken == "" {
		return nil, errors.New("access token is required")
	}

	ctx, cancel := p.ensureContextTimeout(ctx)
	defer cancel()

	claims, err := providers.FetchClaims(ctx, p.httpClient, p.userInfoURL, token)
	if err != nil {
		return nil, err
	}

	info := &providers.UserInfo{
		ID:            providers.ClaimString(claims, p.idClaim),
		Email:         providers.ClaimString(claims, p.emailClaim),
		EmailVerified: providers.ClaimBool(claims, "email_verified"),
		Name:          providers.ClaimString(claims, p.nameClaim),
		Claims:        claims,
	}
	if p.loginClaim != "" {
		info.Login = providers.ClaimString(claims, p.loginClaim)
	}
	if info.ID == "" {
		return nil, fmt.Errorf("userinfo response has no %q claim", p.idClaim)
	}

	return info, nil
}

func (p *Provider) ensureContextTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, p.timeout)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
