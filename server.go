package oauth

import (
	"context"
	"log/slog"

	"github.com/giantswarm/oauth2-core/model"
	"github.com/giantswarm/oauth2-core/oautherr"
	"github.com/giantswarm/oauth2-core/security"
	"github.com/giantswarm/oauth2-core/server"
	"github.com/giantswarm/oauth2-core/service"
)

// Server is the entry point for embedding the authorization server. Each
// call builds a fresh flow handler from Config, so a Server is safe for
// concurrent use and keeps no per-request state.
type Server struct {
	Config      Config
	service     service.Service
	auditor     *security.Auditor
	rateLimiter *security.RateLimiter
	logger      *slog.Logger
}

// New creates a server backed by svc. Zero Config fields take their defaults.
func New(svc service.Service, cfg Config) (*Server, error) {
	if svc == nil {
		return nil, oautherr.ErrInvalidArgument("Missing parameter: `service`")
	}
	if cfg.AccessTokenLifetime < 0 || cfg.AuthorizationCodeLifetime < 0 {
		return nil, oautherr.ErrInvalidArgument("Invalid argument: lifetimes must not be negative")
	}
	cfg.applyDefaults()

	s := &Server{
		Config:  cfg,
		service: svc,
		auditor: security.NewAuditor(cfg.Logger, cfg.Security.EnableAuditLogging),
		logger:  cfg.Logger,
	}

	if cfg.RateLimit.Rate > 0 {
		s.rateLimiter = security.NewRateLimiter(security.RateLimiterConfig{
			Rate:            cfg.RateLimit.Rate,
			Burst:           cfg.RateLimit.Burst,
			CleanupInterval: cfg.RateLimit.CleanupInterval,
			Logger:          cfg.Logger,
		})
	}

	s.logger.Debug("OAuth server configured",
		"access_token_lifetime", cfg.AccessTokenLifetime,
		"refresh_token_lifetime", cfg.RefreshTokenLifetime,
		"authorization_code_lifetime", cfg.AuthorizationCodeLifetime,
		"refresh_token_rotation", !cfg.Security.DisableRefreshTokenRotation,
		"rate_limit", cfg.RateLimit.Rate)
	return s, nil
}

// Close stops background work such as rate limiter cleanup.
func (s *Server) Close() {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
}

// Authenticate validates the bearer token on a request. scope, when not
// empty, must be covered by the token.
func (s *Server) Authenticate(ctx context.Context, params *model.Params, result *model.Result, scope string, overrides ...func(*server.AuthenticateOptions)) (*model.Token, error) {
	opts := s.authenticateOptions(scope)
	for _, override := range overrides {
		override(&opts)
	}

	h, err := server.NewAuthenticateHandler(opts)
	if err != nil {
		return nil, err
	}
	return h.Handle(ctx, params, result)
}

// Authorize runs the authorization endpoint flow. On success result holds
// the redirect back to the client.
func (s *Server) Authorize(ctx context.Context, params *model.Params, result *model.Result, overrides ...func(*server.AuthorizeOptions)) (*model.AuthorizationCode, error) {
	opts := server.AuthorizeOptions{
		Service:                   s.service,
		AuthorizationCodeLifetime: s.Config.AuthorizationCodeLifetime,
		AllowEmptyState:           s.Config.Security.AllowEmptyState,
		UserResolver:              s.Config.UserResolver,
		ResponseTypes:             server.DefaultResponseTypes().With(s.Config.ResponseTypes),
		Logger:                    s.logger,
		Auditor:                   s.auditor,
		Instrumentation:           s.Config.Instrumentation,
		Now:                       s.Config.Now,
	}
	for _, override := range overrides {
		override(&opts)
	}

	if opts.UserResolver == nil {
		authenticate, err := server.NewAuthenticateHandler(s.authenticateOptions(""))
		if err != nil {
			return nil, err
		}
		opts.UserResolver = authenticate
	}

	h, err := server.NewAuthorizeHandler(opts)
	if err != nil {
		return nil, err
	}
	return h.Handle(ctx, params, result)
}

// Token runs the token endpoint flow. The response, including errors, is
// written into result.
func (s *Server) Token(ctx context.Context, params *model.Params, result *model.Result, overrides ...func(*server.TokenOptions)) (*model.Token, error) {
	opts := server.TokenOptions{
		Service:                      s.service,
		AccessTokenLifetime:          s.Config.AccessTokenLifetime,
		RefreshTokenLifetime:         s.Config.refreshTokenLifetime(),
		AllowExtendedTokenAttributes: s.Config.AllowExtendedTokenAttributes,
		RequireClientAuthentication:  s.Config.RequireClientAuthentication,
		PersistentRefreshTokens:      s.Config.Security.DisableRefreshTokenRotation,
		ExtendedGrantTypes:           s.Config.ExtendedGrantTypes,
		Logger:                       s.logger,
		Auditor:                      s.auditor,
		Instrumentation:              s.Config.Instrumentation,
		Now:                          s.Config.Now,
	}
	for _, override := range overrides {
		override(&opts)
	}

	h, err := server.NewTokenHandler(opts)
	if err != nil {
		return nil, err
	}
	return h.Handle(ctx, params, result)
}

func (s *Server) authenticateOptions(scope string) server.AuthenticateOptions {
	return server.AuthenticateOptions{
		Service:                        s.service,
		Scope:                          scope,
		AddAcceptedScopesHeader:        !s.Config.DisableAcceptedScopesHeader,
		AddAuthorizedScopesHeader:      !s.Config.DisableAuthorizedScopesHeader,
		AllowBearerTokensInQueryString: s.Config.AllowBearerTokensInQueryString,
		Logger:                         s.logger,
		Instrumentation:                s.Config.Instrumentation,
		Now:                            s.Config.Now,
	}
}
