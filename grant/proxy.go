package grant

import (
	"context"
	"fmt"

	"github.com/giantswarm/oauth2-core/model"
	"github.com/giantswarm/oauth2-core/oautherr"
	"github.com/giantswarm/oauth2-core/service"
	"github.com/giantswarm/oauth2-core/validation"
)

// ProxyGrant issues a local token for a user authenticated by an external
// identity provider. The client relays the provider's callback parameters
// (provider, code, state, or error) to the token endpoint.
type ProxyGrant struct {
	*Base
	service service.ProxyService
}

// NewProxyGrant creates the external identity proxy grant.
func NewProxyGrant(opts Options) (*ProxyGrant, error) {
	base, err := NewBase(opts)
	if err != nil {
		return nil, err
	}
	svc, err := requireService[service.ProxyService](opts.Service, TypeProxy)
	if err != nil {
		return nil, err
	}
	return &ProxyGrant{Base: base, service: svc}, nil
}

// Handle redeems the upstream code and issues an access and refresh token.
// Failing to resolve a local user is not an OAuth error and is returned
// unwrapped.
func (g *ProxyGrant) Handle(ctx context.Context, params *model.Params, client *model.Client) (*model.Token, error) {
	if err := requireHandleArgs(params, client); err != nil {
		return nil, err
	}

	user, err := g.getUser(ctx, params)
	if err != nil {
		return nil, err
	}

	scope, err := g.ScopeFromParams(params)
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

func (g *ProxyGrant) getUser(ctx context.Context, params *model.Params) (*model.User, error) {
	if upstreamErr := params.Body("error"); upstreamErr != "" {
		desc := params.Body("error_description")
		if desc == "" {
			desc = fmt.Sprintf("Access denied: external provider returned %q", upstreamErr)
		}
		return nil, oautherr.ErrAccessDenied(desc)
	}

	provider := params.Body("provider")
	if provider == "" {
		return nil, oautherr.ErrInvalidRequest("Missing parameter: `provider`")
	}
	if !validation.IsNChar(provider) {
		return nil, oautherr.ErrInvalidRequest("Invalid parameter: `provider`")
	}
	code := params.Body("code")
	if code == "" {
		return nil, oautherr.ErrInvalidRequest("Missing parameter: `code`")
	}
	if !validation.IsVSChar(code) {
		return nil, oautherr.ErrInvalidRequest("Invalid parameter: `code`")
	}
	state := params.Body("state")
	if state != "" && !validation.IsVSChar(state) {
		return nil, oautherr.ErrInvalidRequest("Invalid parameter: `state`")
	}

	upstreamToken, err := g.service.ExchangeAccessTokenByCode(ctx, provider, code, state)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code with provider %s: %w", provider, err)
	}
	if upstreamToken == nil {
		return nil, fmt.Errorf("provider %s returned no access token", provider)
	}

	user, err := g.service.GetUserByAccessToken(ctx, provider, upstreamToken)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user from provider %s: %w", provider, err)
	}
	if user == nil || user.ID == "" {
		return nil, fmt.Errorf("provider %s did not resolve a user", provider)
	}

	g.logger.Debug("External identity resolved", "provider", provider)
	return user, nil
}
