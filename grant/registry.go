package grant

import (
	"context"
	"maps"
	"slices"

	"github.com/giantswarm/oauth2-core/model"
)

// Built-in grant type names.
const (
	TypeAuthorizationCode = "authorization_code"
	TypeClientCredentials = "client_credentials"
	TypePassword          = "password"
	TypeRefreshToken      = "refresh_token"
	TypeProxy             = "proxy"
)

// Handler implements one grant type for one request.
type Handler interface {
	Handle(ctx context.Context, params *model.Params, client *model.Client) (*model.Token, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, params *model.Params, client *model.Client) (*model.Token, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, params *model.Params, client *model.Client) (*model.Token, error) {
	return f(ctx, params, client)
}

// Factory builds a Handler for one request.
type Factory func(opts Options) (Handler, error)

// Registry maps grant_type values to factories.
type Registry map[string]Factory

func factory[H Handler](newHandler func(Options) (H, error)) Factory {
	return func(opts Options) (Handler, error) {
		h, err := newHandler(opts)
		if err != nil {
			return nil, err
		}
		return h, nil
	}
}

// DefaultRegistry returns a new registry holding the built-in grant types.
func DefaultRegistry() Registry {
	return Registry{
		TypeAuthorizationCode: factory(NewAuthorizationCodeGrant),
		TypeClientCredentials: factory(NewClientCredentialsGrant),
		TypePassword:          factory(NewPasswordGrant),
		TypeRefreshToken:      factory(NewRefreshTokenGrant),
		TypeProxy:             factory(NewProxyGrant),
	}
}

// With returns a copy of r extended with ext. Entries in ext replace
// entries of the same name.
func (r Registry) With(ext Registry) Registry {
	out := maps.Clone(r)
	if out == nil {
		out = make(Registry, len(ext))
	}
	maps.Copy(out, ext)
	return out
}

// Names returns the registered grant types in sorted order.
func (r Registry) Names() []string {
	return slices.Sorted(maps.Keys(r))
}
