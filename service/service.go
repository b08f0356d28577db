// Package service declares the collaborator contract of the authorization
// server. Each flow and grant type depends only on the capabilities it uses,
// expressed as small interfaces; storage backends implement Service.
//
// Every method receives the request context. Methods that look something up
// return a nil record and a nil error when nothing matches; a non-nil error
// is reserved for infrastructure failures and surfaces as server_error.
package service

import (
	"context"

	"golang.org/x/oauth2"

	"github.com/giantswarm/oauth2-core/model"
)

// ClientGetter authenticates a client by identifier and secret. An empty
// secret is passed when the grant does not require client authentication.
type ClientGetter interface {
	GetClient(ctx context.Context, clientID, clientSecret string) (*model.Client, error)
}

// ClientByIDGetter looks a client up without authenticating it.
type ClientByIDGetter interface {
	GetClientByID(ctx context.Context, clientID string) (*model.Client, error)
}

// UserFromClientGetter resolves the user a client acts as in the
// client_credentials grant.
type UserFromClientGetter interface {
	GetUserFromClient(ctx context.Context, client *model.Client) (*model.User, error)
}

// UserGetter verifies resource owner credentials.
type UserGetter interface {
	GetUser(ctx context.Context, username, password string) (*model.User, error)
}

// AccessTokenGetter looks up an issued access token.
type AccessTokenGetter interface {
	GetAccessToken(ctx context.Context, accessToken string) (*model.Token, error)
}

// RefreshTokenGetter looks up an issued refresh token.
type RefreshTokenGetter interface {
	GetRefreshToken(ctx context.Context, refreshToken string) (*model.RefreshToken, error)
}

// AuthorizationCodeGetter looks up an issued authorization code.
type AuthorizationCodeGetter interface {
	GetAuthorizationCode(ctx context.Context, code string) (*model.AuthorizationCode, error)
}

// TokenSaver persists a newly issued token and returns the stored record.
type TokenSaver interface {
	SaveToken(ctx context.Context, token *model.Token, client *model.Client, user *model.User) (*model.Token, error)
}

// AuthorizationCodeSaver persists a newly issued authorization code.
type AuthorizationCodeSaver interface {
	SaveAuthorizationCode(ctx context.Context, code *model.AuthorizationCode, client *model.Client, user *model.User) (*model.AuthorizationCode, error)
}

// TokenRevoker revokes a refresh token. It must report false when the token
// was already revoked, so that concurrent exchanges succeed at most once.
type TokenRevoker interface {
	RevokeToken(ctx context.Context, token *model.RefreshToken) (bool, error)
}

// AuthorizationCodeRevoker revokes an authorization code. It must report
// false when the code was already revoked.
type AuthorizationCodeRevoker interface {
	RevokeAuthorizationCode(ctx context.Context, code *model.AuthorizationCode) (bool, error)
}

// ScopeVerifier decides whether a token covers a required scope. Required by
// the authenticate flow only when a scope is configured.
type ScopeVerifier interface {
	VerifyScope(ctx context.Context, token *model.Token, scope string) (bool, error)
}

// ScopeValidator is an optional policy hook. It returns the scope to grant;
// ok=false rejects the request with invalid_scope.
type ScopeValidator interface {
	ValidateScope(ctx context.Context, user *model.User, client *model.Client, scope string) (granted string, ok bool, err error)
}

// AccessTokenGenerator optionally replaces the built-in access token generator.
type AccessTokenGenerator interface {
	GenerateAccessToken(ctx context.Context, client *model.Client, user *model.User, scope string) (string, error)
}

// RefreshTokenGenerator optionally replaces the built-in refresh token generator.
type RefreshTokenGenerator interface {
	GenerateRefreshToken(ctx context.Context, client *model.Client, user *model.User, scope string) (string, error)
}

// AuthorizationCodeGenerator optionally replaces the built-in code generator.
type AuthorizationCodeGenerator interface {
	GenerateAuthorizationCode(ctx context.Context, client *model.Client, user *model.User, scope string) (string, error)
}

// ExternalIdentity backs the proxy grant: it redeems a code at an upstream
// identity provider and maps the upstream identity to a local user.
type ExternalIdentity interface {
	ExchangeAccessTokenByCode(ctx context.Context, provider, code, state string) (*oauth2.Token, error)
	GetUserByAccessToken(ctx context.Context, provider string, token *oauth2.Token) (*model.User, error)
}

// AuthorizationCodeService is required by the authorization_code grant.
type AuthorizationCodeService interface {
	AuthorizationCodeGetter
	AuthorizationCodeRevoker
	TokenSaver
}

// ClientCredentialsService is required by the client_credentials grant.
type ClientCredentialsService interface {
	UserFromClientGetter
	TokenSaver
}

// PasswordService is required by the password grant.
type PasswordService interface {
	UserGetter
	TokenSaver
}

// RefreshTokenService is required by the refresh_token grant.
type RefreshTokenService interface {
	RefreshTokenGetter
	TokenRevoker
	TokenSaver
}

// ProxyService is required by the external identity proxy grant.
type ProxyService interface {
	ExternalIdentity
	TokenSaver
}

// TokenEndpointService is required by the token flow itself; each grant
// asserts its own interface on top.
type TokenEndpointService interface {
	ClientGetter
	TokenSaver
}

// AuthorizeService is required by the authorize flow.
type AuthorizeService interface {
	ClientByIDGetter
	AuthorizationCodeSaver
}

// Service is the complete collaborator implemented by the storage backends.
type Service interface {
	ClientGetter
	ClientByIDGetter
	UserFromClientGetter
	UserGetter
	AccessTokenGetter
	RefreshTokenGetter
	AuthorizationCodeGetter
	TokenSaver
	AuthorizationCodeSaver
	TokenRevoker
	AuthorizationCodeRevoker
	ScopeVerifier
	ScopeValidator
	ExternalIdentity
}
