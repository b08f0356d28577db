// Package grant implements the token endpoint grant types of RFC 6749 and the
// external identity proxy grant on top of a shared Base.
package grant

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/giantswarm/oauth2-core/model"
	"github.com/giantswarm/oauth2-core/oautherr"
	"github.com/giantswarm/oauth2-core/security"
	"github.com/giantswarm/oauth2-core/service"
	"github.com/giantswarm/oauth2-core/validation"
)

// Options configures a grant type. The token flow builds one per request.
type Options struct {
	// AccessTokenLifetime is required.
	AccessTokenLifetime time.Duration

	// RefreshTokenLifetime is the lifetime of issued refresh tokens; zero
	// issues refresh tokens without expiry.
	RefreshTokenLifetime time.Duration

	// PersistentRefreshTokens disables refresh token rotation: exchanged
	// refresh tokens stay valid and no new one is issued.
	PersistentRefreshTokens bool

	// Service is required. Each grant type asserts the additional
	// capabilities it needs.
	Service service.TokenSaver

	Logger  *slog.Logger
	Auditor *security.Auditor

	// Now defaults to time.Now.
	Now func() time.Time
}

// Base carries the behavior shared by every grant type.
type Base struct {
	accessTokenLifetime  time.Duration
	refreshTokenLifetime time.Duration
	rotateRefreshTokens  bool
	service              service.TokenSaver
	logger               *slog.Logger
	auditor              *security.Auditor
	now                  func() time.Time
}

// NewBase validates opts and returns the shared grant behavior.
func NewBase(opts Options) (*Base, error) {
	if opts.AccessTokenLifetime <= 0 {
		return nil, oautherr.ErrInvalidArgument("Missing parameter: `accessTokenLifetime`")
	}
	if opts.Service == nil {
		return nil, oautherr.ErrInvalidArgument("Missing parameter: `service`")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Base{
		accessTokenLifetime:  opts.AccessTokenLifetime,
		refreshTokenLifetime: opts.RefreshTokenLifetime,
		rotateRefreshTokens:  !opts.PersistentRefreshTokens,
		service:              opts.Service,
		logger:               logger,
		auditor:              opts.Auditor,
		now:                  now,
	}, nil
}

// requireService asserts that svc implements the capability set T.
func requireService[T any](svc service.TokenSaver, grantType string) (T, error) {
	s, ok := svc.(T)
	if !ok {
		var zero T
		return zero, oautherr.ErrInvalidArgument(fmt.Sprintf("Invalid argument: service does not implement the %s grant", grantType))
	}
	return s, nil
}

// GenerateAccessToken asks the service for a token when it implements
// service.AccessTokenGenerator and falls back to a random token.
func (b *Base) GenerateAccessToken(ctx context.Context, client *model.Client, user *model.User, scope string) (string, error) {
	if g, ok := b.service.(service.AccessTokenGenerator); ok {
		token, err := g.GenerateAccessToken(ctx, client, user, scope)
		if err != nil {
			return "", err
		}
		if token != "" {
			return token, nil
		}
	}
	return security.RandomToken(security.DefaultTokenBytes)
}

// GenerateRefreshToken asks the service for a token when it implements
// service.RefreshTokenGenerator and falls back to a random token.
func (b *Base) GenerateRefreshToken(ctx context.Context, client *model.Client, user *model.User, scope string) (string, error) {
	if g, ok := b.service.(service.RefreshTokenGenerator); ok {
		token, err := g.GenerateRefreshToken(ctx, client, user, scope)
		if err != nil {
			return "", err
		}
		if token != "" {
			return token, nil
		}
	}
	return security.RandomToken(security.DefaultTokenBytes)
}

// AccessTokenExpiresAt returns now plus the access token lifetime.
func (b *Base) AccessTokenExpiresAt() time.Time {
	return b.now().Add(b.accessTokenLifetime)
}

// RefreshTokenExpiresAt returns now plus the refresh token lifetime, or the
// zero time when refresh tokens do not expire.
func (b *Base) RefreshTokenExpiresAt() time.Time {
	if b.refreshTokenLifetime <= 0 {
		return time.Time{}
	}
	return b.now().Add(b.refreshTokenLifetime)
}

// ScopeFromParams returns the requested scope, which may be empty.
func (b *Base) ScopeFromParams(params *model.Params) (string, error) {
	scope := params.Body("scope")
	if scope != "" && !validation.IsNQSChar(scope) {
		return "", oautherr.ErrInvalidRequest("Invalid parameter: `scope`")
	}
	return scope, nil
}

// ValidateScope applies the service's scope policy when it has one.
func (b *Base) ValidateScope(ctx context.Context, user *model.User, client *model.Client, scope string) (string, error) {
	v, ok := b.service.(service.ScopeValidator)
	if !ok {
		return scope, nil
	}

	granted, ok, err := v.ValidateScope(ctx, user, client, scope)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", oautherr.ErrInvalidScope("Invalid scope: Requested scope is invalid")
	}
	return granted, nil
}

// SaveToken persists token and back-fills the client and user on the stored
// record when the service leaves them out.
func (b *Base) SaveToken(ctx context.Context, token *model.Token, client *model.Client, user *model.User) (*model.Token, error) {
	saved, err := b.service.SaveToken(ctx, token, client, user)
	if err != nil {
		return nil, err
	}
	if saved == nil {
		return nil, oautherr.ErrServerError("Server error: `saveToken()` did not return a token")
	}

	if saved.Client == nil || saved.User == nil {
		filled := *saved
		if filled.Client == nil {
			filled.Client = client
		}
		if filled.User == nil {
			filled.User = user
		}
		saved = &filled
	}
	return saved, nil
}

// issueRequest describes the token a grant wants to issue.
type issueRequest struct {
	client            *model.Client
	user              *model.User
	scope             string
	validateScope     bool
	withRefreshToken  bool
	authorizationCode string
}

// issue generates, timestamps and persists a token.
func (b *Base) issue(ctx context.Context, req issueRequest) (*model.Token, error) {
	scope := req.scope
	if req.validateScope {
		var err error
		scope, err = b.ValidateScope(ctx, req.user, req.client, scope)
		if err != nil {
			return nil, err
		}
	}

	accessToken, err := b.GenerateAccessToken(ctx, req.client, req.user, scope)
	if err != nil {
		return nil, err
	}

	token := &model.Token{
		AccessToken:          accessToken,
		AccessTokenExpiresAt: b.AccessTokenExpiresAt(),
		AuthorizationCode:    req.authorizationCode,
		Scope:                scope,
	}

	if req.withRefreshToken {
		refreshToken, err := b.GenerateRefreshToken(ctx, req.client, req.user, scope)
		if err != nil {
			return nil, err
		}
		token.RefreshToken = refreshToken
		token.RefreshTokenExpiresAt = b.RefreshTokenExpiresAt()
	}

	return b.SaveToken(ctx, token, req.client, req.user)
}

func requireHandleArgs(params *model.Params, client *model.Client) error {
	if params == nil {
		return oautherr.ErrInvalidArgument("Missing parameter: `request`")
	}
	if client == nil {
		return oautherr.ErrInvalidArgument("Missing parameter: `client`")
	}
	return nil
}
