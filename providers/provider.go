package providers

import (
	"context"

	"golang.org/x/oauth2"
)

// Provider is an upstream identity provider the proxy grant can redeem
// authorization codes at.
type Provider interface {
	// Name returns the provider name clients send as the `provider`
	// parameter (e.g. "google", "github").
	Name() string

	// AuthorizationURL returns the upstream URL a user agent is sent to in
	// order to obtain the code later presented to the proxy grant.
	AuthorizationURL(state string) string

	// ExchangeCode redeems an upstream authorization code.
	ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error)

	// UserInfo resolves the identity behind an upstream token.
	UserInfo(ctx context.Context, token *oauth2.Token) (*UserInfo, error)
}

// UserInfo represents user information from a provider
type UserInfo struct {
	// ID is the unique user identifier from the provider
	ID string

	// Email is the user's email address
	Email string

	// EmailVerified indicates if the email is verified
	EmailVerified bool

	// Name is the user's full name
	Name string

	// Login is the provider username, when the provider has one
	Login string

	// Claims holds the raw userinfo response
	Claims map[string]any
}
