package grant

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/giantswarm/oauth2-core/instrumentation"
	"github.com/giantswarm/oauth2-core/model"
	"github.com/giantswarm/oauth2-core/oautherr"
	"github.com/giantswarm/oauth2-core/service"
	"github.com/giantswarm/oauth2-core/validation"
)

// RefreshTokenGrant exchanges a refresh token (RFC 6749 section 6).
type RefreshTokenGrant struct {
	*Base
	service service.RefreshTokenService
}

// NewRefreshTokenGrant creates the refresh_token grant.
func NewRefreshTokenGrant(opts Options) (*RefreshTokenGrant, error) {
	base, err := NewBase(opts)
	if err != nil {
		return nil, err
	}
	svc, err := requireService[service.RefreshTokenService](opts.Service, TypeRefreshToken)
	if err != nil {
		return nil, err
	}
	return &RefreshTokenGrant{Base: base, service: svc}, nil
}

// Handle issues a new access token for the refresh token's scope. With
// rotation on, the presented refresh token is revoked first and a new one
// is issued.
func (g *RefreshTokenGrant) Handle(ctx context.Context, params *model.Params, client *model.Client) (*model.Token, error) {
	if err := requireHandleArgs(params, client); err != nil {
		return nil, err
	}

	refreshToken, err := g.getRefreshToken(ctx, params, client)
	if err != nil {
		return nil, err
	}

	if g.rotateRefreshTokens {
		revoked, err := g.service.RevokeToken(ctx, refreshToken)
		if err != nil {
			return nil, err
		}
		if !revoked {
			g.logger.Warn("Refresh token could not be revoked, possible replay", "client_id", client.ID)
			return nil, oautherr.ErrInvalidGrant("Invalid grant: refresh token is invalid")
		}
		g.auditor.LogTokenRevoked(refreshToken.User.ID, client.ID, TypeRefreshToken)
	}

	token, err := g.issue(ctx, issueRequest{
		client:           client,
		user:             refreshToken.User,
		scope:            refreshToken.Scope,
		withRefreshToken: g.rotateRefreshTokens,
	})
	if err != nil {
		return nil, err
	}

	trace.SpanFromContext(ctx).SetAttributes(attribute.Bool(instrumentation.AttrTokenRotated, g.rotateRefreshTokens))
	g.auditor.LogTokenRefreshed(refreshToken.User.ID, client.ID, g.rotateRefreshTokens)
	return token, nil
}

func (g *RefreshTokenGrant) getRefreshToken(ctx context.Context, params *model.Params, client *model.Client) (*model.RefreshToken, error) {
	value := params.Body("refresh_token")
	if value == "" {
		return nil, oautherr.ErrInvalidRequest("Missing parameter: `refresh_token`")
	}
	if !validation.IsVSChar(value) {
		return nil, oautherr.ErrInvalidRequest("Invalid parameter: `refresh_token`")
	}

	token, err := g.service.GetRefreshToken(ctx, value)
	if err != nil {
		return nil, err
	}

	switch {
	case token == nil:
		return nil, oautherr.ErrInvalidGrant("Invalid grant: refresh token is invalid")
	case token.Client == nil:
		return nil, oautherr.ErrServerError("Server error: `getRefreshToken()` did not return a `client` object")
	case token.User == nil:
		return nil, oautherr.ErrServerError("Server error: `getRefreshToken()` did not return a `user` object")
	case token.Client.ID != client.ID:
		return nil, oautherr.ErrInvalidGrant("Invalid grant: refresh token is invalid")
	case !token.ExpiresAt.IsZero() && token.ExpiresAt.Before(g.now()):
		return nil, oautherr.ErrInvalidGrant("Invalid grant: refresh token has expired")
	}

	return token, nil
}
