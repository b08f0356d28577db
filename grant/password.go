package grant

import (
	"context"

	"github.com/giantswarm/oauth2-core/model"
	"github.com/giantswarm/oauth2-core/oautherr"
	"github.com/giantswarm/oauth2-core/service"
	"github.com/giantswarm/oauth2-core/validation"
)

// PasswordGrant exchanges resource owner credentials (RFC 6749 section 4.3).
type PasswordGrant struct {
	*Base
	service service.PasswordService
}

// NewPasswordGrant creates the password grant.
func NewPasswordGrant(opts Options) (*PasswordGrant, error) {
	base, err := NewBase(opts)
	if err != nil {
		return nil, err
	}
	svc, err := requireService[service.PasswordService](opts.Service, TypePassword)
	if err != nil {
		return nil, err
	}
	return &PasswordGrant{Base: base, service: svc}, nil
}

// Handle verifies the credentials and issues an access and refresh token.
func (g *PasswordGrant) Handle(ctx context.Context, params *model.Params, client *model.Client) (*model.Token, error) {
	if err := requireHandleArgs(params, client); err != nil {
		return nil, err
	}

	scope, err := g.ScopeFromParams(params)
	if err != nil {
		return nil, err
	}

	user, err := g.getUser(ctx, params)
	if err != nil {
		return nil, err
	}

	return g.issue(ctx, issueRequest{
		client:           client,
		user:             user,
		scope:            scope,
		validateScope:    true,
		withRefreshToken: true,
	})
}

// getUser only rejects control characters in the credentials; passwords
// may contain spaces and punctuation.
func (g *PasswordGrant) getUser(ctx context.Context, params *model.Params) (*model.User, error) {
	username := params.Body("username")
	if username == "" {
		return nil, oautherr.ErrInvalidRequest("Missing parameter: `username`")
	}
	password := params.Body("password")
	if password == "" {
		return nil, oautherr.ErrInvalidRequest("Missing parameter: `password`")
	}
	if !validation.IsUChar(username) {
		return nil, oautherr.ErrInvalidRequest("Invalid parameter: `username`")
	}
	if !validation.IsUChar(password) {
		return nil, oautherr.ErrInvalidRequest("Invalid parameter: `password`")
	}

	user, err := g.service.GetUser(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, oautherr.ErrInvalidGrant("Invalid grant: user credentials are invalid")
	}
	return user, nil
}
