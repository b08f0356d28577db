package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/giantswarm/oauth2-core/providers"
)

// DefaultTimeout bounds discovery and every upstream call when the caller's
// context carries no deadline.
const DefaultTimeout = 30 * time.Second

var defaultScopes = []string{gooidc.ScopeOpenID, "profile", "email"}

// Config holds OIDC provider configuration.
type Config struct {
	// Name is the provider name clients select it by. Defaults to "oidc".
	Name string

	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// Scopes defaults to openid, profile and email.
	Scopes []string

	// HTTPClient is used for discovery, key fetches and token calls.
	HTTPClient *http.Client

	// Timeout applies when the context has no deadline. Defaults to
	// DefaultTimeout.
	Timeout time.Duration

	// skipValidation skips SSRF protection for issuer URLs so tests can use
	// loopback servers.
	skipValidation bool
}

// Provider implements providers.Provider for an OpenID Connect issuer.
type Provider struct {
	name       string
	config     *oauth2.Config
	oidc       *gooidc.Provider
	verifier   *gooidc.IDTokenVerifier
	httpClient *http.Client
	timeout    time.Duration
}

var _ providers.Provider = (*Provider)(nil)

// NewProvider performs discovery against the issuer and returns a provider
// using the discovered endpoints.
func NewProvider(ctx context.Context, cfg *Config) (*Provider, error) {
	if err := validateRequiredConfig(cfg); err != nil {
		return nil, err
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = defaultScopes
	}
	if err := ValidateScopes(scopes); err != nil {
		return nil, fmt.Errorf("invalid scopes: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	name := cfg.Name
	if name == "" {
		name = "oidc"
	}

	p := &Provider{
		name:       name,
		httpClient: httpClient,
		timeout:    timeout,
	}

	discoveryCtx, cancel := p.ensureContextTimeout(ctx)
	defer cancel()
	upstream, err := gooidc.NewProvider(gooidc.ClientContext(discoveryCtx, httpClient), cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("OIDC discovery failed: %w", err)
	}

	p.oidc = upstream
	p.verifier = upstream.Verifier(&gooidc.Config{ClientID: cfg.ClientID})
	p.config = &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       scopes,
		Endpoint:     upstream.Endpoint(),
	}
	return p, nil
}

func validateRequiredConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if cfg.ClientID == "" {
		return errors.New("client ID is required")
	}
	if cfg.ClientSecret == "" {
		return errors.New("client secret is required")
	}
	if cfg.IssuerURL == "" {
		return errors.New("issuer URL is required")
	}
	if !cfg.skipValidation {
		if err := ValidateIssuerURL(cfg.IssuerURL); err != nil {
			return fmt.Errorf("invalid issuer URL: %w", err)
		}
	}
	return nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return p.name
}

// AuthorizationURL generates the issuer's authorization URL
func (p *Provider) AuthorizationURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// ExchangeCode redeems code and verifies the ID token when one is returned.
func (p *Provider) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx, cancel := p.ensureContextTimeout(ctx)
	defer cancel()

	token, err := providers.ExchangeCode(ctx, p.config, p.httpClient, code)
	if err != nil {
		return nil, err
	}

	if raw, ok := token.Extra("id_token").(string); ok && raw != "" {
		if _, err := p.verifier.Verify(gooidc.ClientContext(ctx, p.httpClient), raw); err != nil {
			return nil, fmt.Errorf("failed to verify ID token: %w", err)
		}
	}

	return token, nil
}

// UserInfo identifies the user from the ID token when present, or the
// issuer's userinfo endpoint otherwise.
func (p *Provider) UserInfo(ctx context.Context, token *oauth2.Token) (*providers.UserInfo, error) {
	if token == nil || token.AccessToken == "" {
		return nil, errors.New("access token is required")
	}

	ctx, cancel := p.ensureContextTimeout(ctx)
	defer cancel()
	ctx = gooidc.ClientContext(ctx, p.httpClient)

	var (
		subject string
		claims  map[string]any
	)
	if raw, ok := token.Extra("id_token").(string); ok && raw != "" {
		idToken, err := p.verifier.Verify(ctx, raw)
		if err != nil {
			return nil, fmt.Errorf("failed to verify ID token: %w", err)
		}
		if err := idToken.Claims(&claims); err != nil {
			return nil, fmt.Errorf("failed to decode ID token claims: %w", err)
		}
		subject = idToken.Subject
	} else {
		info, err := p.oidc.UserInfo(ctx, oauth2.StaticTokenSource(token))
		if err != nil {
			return nil, fmt.Errorf("failed to get user info: %w", err)
		}
		if err := info.Claims(&claims); err != nil {
			return nil, fmt.Errorf("failed to decode user info: %w", err)
		}
		subject = info.Subject
	}

	if subject == "" {
		return nil, errors.New("upstream identity has no subject")
	}
	if err := validateGroupsClaim(claims); err != nil {
		return nil, err
	}

	return &providers.UserInfo{
		ID:            subject,
		Email:         providers.ClaimString(claims, "email"),
		EmailVerified: providers.ClaimBool(claims, "email_verified"),
		Name:          providers.ClaimString(claims, "name"),
		Login:         providers.ClaimString(claims, "preferred_username"),
		Claims:        claims,
	}, nil
}

func validateGroupsClaim(claims map[string]any) error {
	raw, ok := claims["groups"].([]any)
	if !ok {
		return nil
	}
	groups := make([]string, 0, len(raw))
	for _, g := range raw {
		s, ok := g.(string)
		if !ok {
			return errors.New("invalid groups claim: non-string group")
		}
		groups = append(groups, s)
	}
	if err := ValidateGroups(groups); err != nil {
		return fmt.Errorf("invalid groups claim: %w", err)
	}
	return nil
}

func (p *Provider) ensureContextTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, p.timeout)
}
