package grant

import (
	"context"

	"github.com/giantswarm/oauth2-core/model"
	"github.com/giantswarm/oauth2-core/oautherr"
	"github.com/giantswarm/oauth2-core/service"
	"github.com/giantswarm/oauth2-core/validation"
)

// AuthorizationCodeGrant exchanges an authorization code (RFC 6749 section 4.1.3).
type AuthorizationCodeGrant struct {
	*Base
	service service.AuthorizationCodeService
}

// NewAuthorizationCodeGrant creates the authorization_code grant.
func NewAuthorizationCodeGrant(opts Options) (*AuthorizationCodeGrant, error) {
	base, err := NewBase(opts)
	if err != nil {
		return nil, err
	}
	svc, err := requireService[service.AuthorizationCodeService](opts.Service, TypeAuthorizationCode)
	if err != nil {
		return nil, err
	}
	return &AuthorizationCodeGrant{Base: base, service: svc}, nil
}

// Handle redeems the code. The code is revoked before the token is issued so
// a code can only ever be exchanged once.
func (g *AuthorizationCodeGrant) Handle(ctx context.Context, params *model.Params, client *model.Client) (*model.Token, error) {
	if err := requireHandleArgs(params, client); err != nil {
		return nil, err
	}

	code, err := g.getAuthorizationCode(ctx, params, client)
	if err != nil {
		return nil, err
	}
	if err := validateRedirectURI(params, code); err != nil {
		return nil, err
	}
	if err := g.revokeAuthorizationCode(ctx, code); err != nil {
		return nil, err
	}

	token, err := g.issue(ctx, issueRequest{
		client:            client,
		user:              code.User,
		scope:             code.Scope,
		validateScope:     true,
		withRefreshToken:  true,
		authorizationCode: code.Code,
	})
	if err != nil {
		return nil, err
	}

	g.logger.Debug("Authorization code exchanged", "client_id", client.ID)
	return token, nil
}

func (g *AuthorizationCodeGrant) getAuthorizationCode(ctx context.Context, params *model.Params, client *model.Client) (*model.AuthorizationCode, error) {
	value := params.Body("code")
	if value == "" {
		return nil, oautherr.ErrInvalidRequest("Missing parameter: `code`")
	}
	if !validation.IsVSChar(value) {
		return nil, oautherr.ErrInvalidRequest("Invalid parameter: `code`")
	}

	code, err := g.service.GetAuthorizationCode(ctx, value)
	if err != nil {
		return nil, err
	}

	switch {
	case code == nil:
		return nil, oautherr.ErrInvalidGrant("Invalid grant: authorization code is invalid")
	case code.Client == nil:
		return nil, oautherr.ErrServerError("Server error: `getAuthorizationCode()` did not return a `client` object")
	case code.User == nil:
		return nil, oautherr.ErrServerError("Server error: `getAuthorizationCode()` did not return a `user` object")
	case code.ExpiresAt.IsZero():
		return nil, oautherr.ErrServerError("Server error: `expiresAt` must be a valid instant")
	case code.Client.ID != client.ID:
		return nil, oautherr.ErrInvalidGrant("Invalid grant: authorization code is invalid")
	case code.ExpiresAt.Before(g.now()):
		return nil, oautherr.ErrInvalidGrant("Invalid grant: authorization code has expired")
	}

	return code, nil
}

// validateRedirectURI enforces RFC 6749 section 4.1.3: when the code was
// issued for a redirect_uri, the same value must be presented again.
func validateRedirectURI(params *model.Params, code *model.AuthorizationCode) error {
	if code.RedirectURI == "" {
		return nil
	}

	redirectURI := params.Body("redirect_uri")
	if redirectURI == "" || !validation.IsURI(redirectURI) {
		return oautherr.ErrInvalidRequest("Invalid request: `redirect_uri` is not a valid URI")
	}
	if redirectURI != code.RedirectURI {
		return oautherr.ErrInvalidRequest("Invalid request: `redirect_uri` is invalid")
	}
	return nil
}

func (g *AuthorizationCodeGrant) revokeAuthorizationCode(ctx context.Context, code *model.AuthorizationCode) error {
	revoked, err := g.service.RevokeAuthorizationCode(ctx, code)
	if err != nil {
		return err
	}
	if !revoked {
		g.logger.Warn("Authorization code could not be revoked, possible replay", "client_id", code.Client.ID)
		return oautherr.ErrInvalidGrant("Invalid grant: authorization code is invalid")
	}
	g.auditor.LogTokenRevoked(code.User.ID, code.Client.ID, TypeAuthorizationCode)
	return nil
}
