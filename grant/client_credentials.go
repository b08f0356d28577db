package grant

import (
	"context"

	"github.com/giantswarm/oauth2-core/model"
	"github.com/giantswarm/oauth2-core/oautherr"
	"github.com/giantswarm/oauth2-core/service"
)

// ClientCredentialsGrant issues a token to a client acting on its own behalf
// (RFC 6749 section 4.4). No refresh token is issued.
type ClientCredentialsGrant struct {
	*Base
	service service.ClientCredentialsService
}

// NewClientCredentialsGrant creates the client_credentials grant.
func NewClientCredentialsGrant(opts Options) (*ClientCredentialsGrant, error) {
	base, err := NewBase(opts)
	if err != nil {
		return nil, err
	}
	svc, err := requireService[service.ClientCredentialsService](opts.Service, TypeClientCredentials)
	if err != nil {
		return nil, err
	}
	return &ClientCredentialsGrant{Base: base, service: svc}, nil
}

// Handle issues an access token for the client's service user.
func (g *ClientCredentialsGrant) Handle(ctx context.Context, params *model.Params, client *model.Client) (*model.Token, error) {
	if err := requireHandleArgs(params, client); err != nil {
		return nil, err
	}

	scope, err := g.ScopeFromParams(params)
	if err != nil {
		return nil, err
	}

	user, err := g.service.GetUserFromClient(ctx, client)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, oautherr.ErrInvalidGrant("Invalid grant: user credentials are invalid")
	}

	return g.issue(ctx, issueRequest{
		client:        client,
		user:          user,
		scope:         scope,
		validateScope: true,
	})
}
