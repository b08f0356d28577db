package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by a Store when a record does not exist.
	ErrNotFound = errors.New("storage: record not found")

	// ErrAlreadyExists is returned when creating a client or user whose ID
	// or username is taken.
	ErrAlreadyExists = errors.New("storage: record already exists")
)

// Store persists the records behind the OAuth service collaborator. Lookups
// return ErrNotFound for missing records. Deletes report whether a record
// was removed. Implementations must be safe for concurrent use.
type Store interface {
	CreateClient(ctx context.Context, client *Client) error
	Client(ctx context.Context, clientID string) (*Client, error)

	CreateUser(ctx context.Context, user *User) error
	UserByUsername(ctx context.Context, username string) (*User, error)

	SaveToken(ctx context.Context, token *Token) error
	TokenByAccessToken(ctx context.Context, accessToken string) (*Token, error)
	TokenByRefreshToken(ctx context.Context, refreshToken string) (*Token, error)
	DeleteRefreshToken(ctx context.Context, refreshToken string) (bool, error)

	SaveAuthorizationCode(ctx context.Context, code *AuthorizationCode) error
	AuthorizationCode(ctx context.Context, code string) (*AuthorizationCode, error)
	DeleteAuthorizationCode(ctx context.Context, code string) (bool, error)

	// Name identifies the backend in spans and logs ("memory", "valkey", ...).
	Name() string
}

// Client represents a registered OAuth client
type Client struct {
	ID                   string
	SecretHash           string // bcrypt hash; empty for public clients
	Grants               []string
	RedirectURIs         []string
	Scope                string
	AccessTokenLifetime  time.Duration
	RefreshTokenLifetime time.Duration
	CreatedAt            time.Time
}

// User represents a resource owner with password credentials.
type User struct {
	ID           string
	Username     string
	PasswordHash string // bcrypt hash
	Claims       map[string]any
	CreatedAt    time.Time
}

// Token is a stored access token, optionally paired with a refresh token.
// Revoking the refresh token clears RefreshToken on the stored record but
// leaves the access token valid until it expires.
type Token struct {
	AccessToken           string
	AccessTokenExpiresAt  time.Time
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
	AuthorizationCode     string
	Scope                 string
	ClientID              string
	UserID                string
	Username              string
	CreatedAt             time.Time
}

// AuthorizationCode represents an issued authorization code
type AuthorizationCode struct {
	Code        string
	ExpiresAt   time.Time
	RedirectURI string
	Scope       string
	ClientID    string
	UserID      string
	Username    string
	CreatedAt   time.Time
}

// Sizes is implemented by stores that can report record counts cheaply.
type Sizes interface {
	CountAccessTokens() int64
	CountRefreshTokens() int64
	CountAuthorizationCodes() int64
	CountClients() int64
	CountUsers() int64
}

// ExpiresAt returns when the record stops being useful. A refresh token
// without an expiry keeps the record forever, signalled by the zero time.
func (t *Token) ExpiresAt() time.Time {
	if t.RefreshToken == "" {
		return t.AccessTokenExpiresAt
	}
	if t.RefreshTokenExpiresAt.IsZero() {
		return time.Time{}
	}
	if t.RefreshTokenExpiresAt.After(t.AccessTokenExpiresAt) {
		return t.RefreshTokenExpiresAt
	}
	return t.AccessTokenExpiresAt
}

// TTL returns how long a record expiring at expiresAt should be kept, as
// seen at now. ok is false when the record has no expiry.
func TTL(expiresAt, now time.Time) (ttl time.Duration, ok bool) {
	if expiresAt.IsZero() {
		return 0, false
	}
	ttl = expiresAt.Sub(now)
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl, true
}
