package model

import (
	"encoding/json"
	"maps"
	"math"
	"time"

	"github.com/giantswarm/oauth2-core/oautherr"
)

// TokenTypeBearer is the token_type of every issued access token.
const TokenTypeBearer = "Bearer"

// TokenModel is a validated view of an issued Token, ready to be projected
// onto the wire.
type TokenModel struct {
	AccessToken           string
	AccessTokenExpiresAt  time.Time
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
	AuthorizationCode     string
	Scope                 string
	Client                *Client
	User                  *User

	// AccessTokenLifetime is the remaining lifetime in whole seconds at the
	// time the model was built; zero when the token has no expiry.
	AccessTokenLifetime int64

	// CustomAttributes holds the collaborator's extra attributes when
	// extended token attributes are allowed.
	CustomAttributes map[string]any
}

// NewTokenModel validates token and computes its remaining lifetime at now.
func NewTokenModel(token *Token, allowExtendedAttributes bool, now time.Time) (*TokenModel, error) {
	switch {
	case token == nil:
		return nil, oautherr.ErrInvalidArgument("Missing parameter: `token`")
	case token.AccessToken == "":
		return nil, oautherr.ErrInvalidArgument("Missing parameter: `accessToken`")
	case token.Client == nil:
		return nil, oautherr.ErrInvalidArgument("Missing parameter: `client`")
	case token.User == nil:
		return nil, oautherr.ErrInvalidArgument("Missing parameter: `user`")
	}

	m := &TokenModel{
		AccessToken:           token.AccessToken,
		AccessTokenExpiresAt:  token.AccessTokenExpiresAt,
		RefreshToken:          token.RefreshToken,
		RefreshTokenExpiresAt: token.RefreshTokenExpiresAt,
		AuthorizationCode:     token.AuthorizationCode,
		Scope:                 token.Scope,
		Client:                token.Client,
		User:                  token.User,
	}

	if !token.AccessTokenExpiresAt.IsZero() {
		m.AccessTokenLifetime = int64(math.Floor(token.AccessTokenExpiresAt.Sub(now).Seconds()))
	}

	if allowExtendedAttributes && len(token.Extra) > 0 {
		m.CustomAttributes = maps.Clone(token.Extra)
	}

	return m, nil
}

// Bearer projects the model onto an RFC 6750 bearer token response.
func (m *TokenModel) Bearer() *BearerToken {
	return &BearerToken{
		AccessToken:      m.AccessToken,
		ExpiresIn:        m.AccessTokenLifetime,
		RefreshToken:     m.RefreshToken,
		Scope:            m.Scope,
		CustomAttributes: m.CustomAttributes,
	}
}

// BearerToken is the successful token endpoint response.
type BearerToken struct {
	AccessToken      string
	ExpiresIn        int64
	RefreshToken     string
	Scope            string
	CustomAttributes map[string]any
}

// Fields returns the response body fields. Optional fields are omitted when
// empty, and custom attributes never replace a standard field.
func (b *BearerToken) Fields() map[string]any {
	fields := map[string]any{
		"access_token": b.AccessToken,
		"token_type":   TokenTypeBearer,
	}
	if b.ExpiresIn != 0 {
		fields["expires_in"] = b.ExpiresIn
	}
	if b.RefreshToken != "" {
		fields["refresh_token"] = b.RefreshToken
	}
	if b.Scope != "" {
		fields["scope"] = b.Scope
	}
	for k, v := range b.CustomAttributes {
		if _, reserved := fields[k]; reserved || isStandardField(k) {
			continue
		}
		fields[k] = v
	}
	return fields
}

func isStandardField(name string) bool {
	switch name {
	case "access_token", "token_type", "expires_in", "refresh_token", "scope":
		return true
	}
	return false
}

// MarshalJSON encodes the response body fields.
func (b *BearerToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Fields())
}
