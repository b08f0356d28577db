package model

import "time"

// AuthorizationCode is issued by the authorization endpoint and consumed once
// by the authorization_code grant.
type AuthorizationCode struct {
	Code        string
	ExpiresAt   time.Time
	RedirectURI string
	Scope       string
	Client      *Client
	User        *User
}

// Token is an issued access token record, optionally paired with a refresh
// token. Records are never edited; a refresh produces a new one.
type Token struct {
	AccessToken           string
	AccessTokenExpiresAt  time.Time
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
	AuthorizationCode     string
	Scope                 string
	Client                *Client
	User                  *User

	// Extra carries collaborator-defined attributes. They are only returned
	// to clients when extended token attributes are enabled.
	Extra map[string]any
}

// RefreshToken is a stored refresh token as returned by the collaborator.
type RefreshToken struct {
	RefreshToken string
	// ExpiresAt is optional; the zero value means the token does not expire.
	ExpiresAt time.Time
	Scope     string
	Client    *Client
	User      *User
}
