package valkey

import (
	"time"

	"github.com/giantswarm/oauth2-core/storage"
)

// Timestamps are stored as Unix milliseconds so the Lua scripts can do
// arithmetic on them. Zero means unset.

func toUnixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromUnixMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// clientJSON is the JSON representation of a client
type clientJSON struct {
	ID                   string   `json:"id"`
	SecretHash           string   `json:"secret_hash,omitempty"`
	Grants               []string `json:"grants"`
	RedirectURIs         []string `json:"redirect_uris,omitempty"`
	Scope                string   `json:"scope,omitempty"`
	AccessTokenLifetime  int64    `json:"access_token_lifetime,omitempty"`
	RefreshTokenLifetime int64    `json:"refresh_token_lifetime,omitempty"`
	CreatedAt            int64    `json:"created_at"`
}

func toClientJSON(c *storage.Client) *clientJSON {
	return &clientJSON{
		ID:                   c.ID,
		SecretHash:           c.SecretHash,
		Grants:               c.Grants,
		RedirectURIs:         c.RedirectURIs,
		Scope:                c.Scope,
		AccessTokenLifetime:  int64(c.AccessTokenLifetime),
		RefreshTokenLifetime: int64(c.RefreshTokenLifetime),
		CreatedAt:            toUnixMilli(c.CreatedAt),
	}
}

func fromClientJSON(j *clientJSON) *storage.Client {
	return &storage.Client{
		ID:                   j.ID,
		SecretHash:           j.SecretHash,
		Grants:               j.Grants,
		RedirectURIs:         j.RedirectURIs,
		Scope:                j.Scope,
		AccessTokenLifetime:  time.Duration(j.AccessTokenLifetime),
		RefreshTokenLifetime: time.Duration(j.RefreshTokenLifetime),
		CreatedAt:            fromUnixMilli(j.CreatedAt),
	}
}

// userJSON is the JSON representation of a user
type userJSON struct {
	ID           string         `json:"id"`
	Username     string         `json:"username"`
	PasswordHash string         `json:"password_hash"`
	Claims       map[string]any `json:"claims,omitempty"`
	CreatedAt    int64          `json:"created_at"`
}

func toUserJSON(u *storage.User) *userJSON {
	return &userJSON{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Claims:       u.Claims,
		CreatedAt:    toUnixMilli(u.CreatedAt),
	}
}

func fromUserJSON(j *userJSON) *storage.User {
	return &storage.User{
		ID:           j.ID,
		Username:     j.Username,
		PasswordHash: j.PasswordHash,
		Claims:       j.Claims,
		CreatedAt:    fromUnixMilli(j.CreatedAt),
	}
}

// tokenJSON is the JSON representation of a token record. Field names are
// shared with luaDeleteRefreshToken.
type tokenJSON struct {
	AccessToken           string `json:"access_token"`
	AccessTokenExpiresAt  int64  `json:"access_token_expires_at"`
	RefreshToken          string `json:"refresh_token"`
	RefreshTokenExpiresAt int64  `json:"refresh_token_expires_at"`
	AuthorizationCode     string `json:"authorization_code"`
	Scope                 string `json:"scope"`
	ClientID              string `json:"client_id"`
	UserID                string `json:"user_id"`
	Username              string `json:"username"`
	CreatedAt             int64  `json:"created_at"`
}

func toTokenJSON(t *storage.Token) *tokenJSON {
	return &tokenJSON{
		AccessToken:           t.AccessToken,
		AccessTokenExpiresAt:  toUnixMilli(t.AccessTokenExpiresAt),
		RefreshToken:          t.RefreshToken,
		RefreshTokenExpiresAt: toUnixMilli(t.RefreshTokenExpiresAt),
		AuthorizationCode:     t.AuthorizationCode,
		Scope:                 t.Scope,
		ClientID:              t.ClientID,
		UserID:                t.UserID,
		Username:              t.Username,
		CreatedAt:             toUnixMilli(t.CreatedAt),
	}
}

func fromTokenJSON(j *tokenJSON) *storage.Token {
	return &storage.Token{
		AccessToken:           j.AccessToken,
		AccessTokenExpiresAt:  fromUnixMilli(j.AccessTokenExpiresAt),
		RefreshToken:          j.RefreshToken,
		RefreshTokenExpiresAt: fromUnixMilli(j.RefreshTokenExpiresAt),
		AuthorizationCode:     j.AuthorizationCode,
		Scope:                 j.Scope,
		ClientID:              j.ClientID,
		UserID:                j.UserID,
		Username:              j.Username,
		CreatedAt:             fromUnixMilli(j.CreatedAt),
	}
}

// authorizationCodeJSON is the JSON representation of an authorization code
type authorizationCodeJSON struct {
	Code        string `json:"code"`
	ExpiresAt   int64  `json:"expires_at"`
	RedirectURI string `json:"redirect_uri,omitempty"`
	Scope       string `json:"scope,omitempty"`
	ClientID    string `json:"client_id"`
	UserID      string `json:"user_id"`
	Username    string `json:"username,omitempty"`
	CreatedAt   int64  `json:"created_at"`
}

func toAuthorizationCodeJSON(c *storage.AuthorizationCode) *authorizationCodeJSON {
	return &authorizationCodeJSON{
		Code:        c.Code,
		ExpiresAt:   toUnixMilli(c.ExpiresAt),
		RedirectURI: c.RedirectURI,
		Scope:       c.Scope,
		ClientID:    c.ClientID,
		UserID:      c.UserID,
		Username:    c.Username,
		CreatedAt:   toUnixMilli(c.CreatedAt),
	}
}

func fromAuthorizationCodeJSON(j *authorizationCodeJSON) *storage.AuthorizationCode {
	return &storage.AuthorizationCode{
		Code:        j.Code,
		ExpiresAt:   fromUnixMilli(j.ExpiresAt),
		RedirectURI: j.RedirectURI,
		Scope:       j.Scope,
		ClientID:    j.ClientID,
		UserID:      j.UserID,
		Username:    j.Username,
		CreatedAt:   fromUnixMilli(j.CreatedAt),
	}
}
