package model

import (
	"slices"
	"time"
)

// Client is a registered OAuth client as returned by the service collaborator.
type Client struct {
	// ID is the client identifier.
	ID string

	// Secret is the client secret. Collaborators normally leave it empty
	// once the secret has been verified.
	Secret string

	// Grants lists the grant types the client may use. It must never be nil.
	Grants []string

	// RedirectURIs lists the registered redirection endpoints. The first
	// entry is used when a request does not name one.
	RedirectURIs []string

	// AccessTokenLifetime overrides the server default when non-zero.
	AccessTokenLifetime time.Duration

	// RefreshTokenLifetime overrides the server default when non-zero.
	RefreshTokenLifetime time.Duration

	// Scope is the space-delimited scope the client may request. Only
	// consulted by collaborators that implement scope policy.
	Scope string
}

// HasGrant reports whether the client may use the named grant type.
func (c *Client) HasGrant(grantType string) bool {
	return slices.Contains(c.Grants, grantType)
}

// HasRedirectURI reports whether uri is registered for the client.
// Matching is exact; "https://a/cb" and "https://a/cb/" differ.
func (c *Client) HasRedirectURI(uri string) bool {
	return slices.Contains(c.RedirectURIs, uri)
}

// User is the resource owner resolved by the service collaborator.
// The flows only check that one is present.
type User struct {
	ID       string
	Username string
	Claims   map[string]any
}
