package valkey

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	valkeygo "github.com/valkey-io/valkey-go"

	"github.com/giantswarm/oauth2-core/storage"
)

const (
	// DefaultKeyPrefix is the default prefix for all Valkey keys
	DefaultKeyPrefix = "oauth2:"

	// tokenIDLogLength is the number of characters to include when logging tokens
	tokenIDLogLength = 8

	// connectionVerifyTimeout is the timeout for initial connection verification
	connectionVerifyTimeout = 5 * time.Second
)

// Config holds configuration for the Valkey storage backend.
type Config struct {
	// Address is the Valkey server address (required), e.g., "localhost:6379"
	Address string

	// Password is the optional password for Valkey authentication
	Password string

	// DB is the optional database number (default 0)
	DB int

	// KeyPrefix is the prefix for all keys (default "oauth2:")
	KeyPrefix string

	// TLS is the optional TLS configuration for encrypted connections
	TLS *tls.Config

	// Logger is the optional structured logger (default: slog.Default())
	Logger *slog.Logger

	// Now is the clock expiries are measured against (default: time.Now)
	Now func() time.Time
}

// Store is a Valkey-backed implementation of storage.Store. Records are
// stored as JSON and expire through key TTLs.
type Store struct {
	client valkeygo.Client
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

var _ storage.Store = (*Store)(nil)

// New creates a new Valkey-backed storage instance.
// Returns an error if the connection cannot be established.
func New(cfg Config) (*Store, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("valkey address is required")
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	opts := valkeygo.ClientOption{
		InitAddress: []string{cfg.Address},
		SelectDB:    cfg.DB,
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.TLS != nil {
		opts.TLSConfig = cfg.TLS
	}

	client, err := valkeygo.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), connectionVerifyTimeout)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to valkey: %w", err)
	}

	logger.Info("Connected to Valkey storage",
		"address", cfg.Address,
		"db", cfg.DB,
		"prefix", prefix)

	return &Store{
		client: client,
		prefix: prefix,
		logger: logger,
		now:    now,
	}, nil
}

// Name implements storage.Store.
func (s *Store) Name() string { return "valkey" }

// Close closes the Valkey client connection.
func (s *Store) Close() {
	s.client.Close()
	s.logger.Info("Valkey storage connection closed")
}

// clientKey returns the key for a client: {prefix}client:{clientID}
func (s *Store) clientKey(clientID string) string {
	return fmt.Sprintf("%sclient:%s", s.prefix, clientID)
}

// userKey returns the key for a user: {prefix}user:{username}
func (s *Store) userKey(username string) string {
	return fmt.Sprintf("%suser:%s", s.prefix, username)
}

// tokenKey returns the key for a token record: {prefix}token:{accessToken}
func (s *Store) tokenKey(accessToken string) string {
	return fmt.Sprintf("%stoken:%s", s.prefix, accessToken)
}

// tokenKeyPrefix is tokenKey without the access token, for Lua scripts that
// only learn the access token from a refresh lookup.
func (s *Store) tokenKeyPrefix() string {
	return s.prefix + "token:"
}

// refreshTokenKey returns the key mapping a refresh token to its access token.
func (s *Store) refreshTokenKey(refreshToken string) string {
	return fmt.Sprintf("%srefresh:%s", s.prefix, refreshToken)
}

// codeKey returns the key for an authorization code: {prefix}code:{code}
func (s *Store) codeKey(code string) string {
	return fmt.Sprintf("%scode:%s", s.prefix, code)
}

// luaDeleteRefreshToken atomically removes a refresh token and clears it
// from the token record it belongs to. The record's TTL shrinks back to the
// access token's remaining lifetime.
//
// KEYS[1] = refresh token key
// ARGV[1] = token key prefix
// ARGV[2] = current time in Unix milliseconds
//
// Returns 1 if the refresh token existed, 0 otherwise.
const luaDeleteRefreshToken = `
local access = redis.call('GET', KEYS[1])
if not access then
    return 0
end
redis.call('DEL', KEYS[1])

local tokenKey = ARGV[1] .. access
local data = redis.call('GET', tokenKey)
if not data then
    return 1
end

local token = cjson.decode(data)
token.refresh_token = ''
token.refresh_token_expires_at = 0
redis.call('SET', tokenKey, cjson.encode(token), 'KEEPTTL')

local expiresAt = tonumber(token.access_token_expires_at)
if expiresAt and expiresAt > 0 then
    local ttl = expiresAt - tonumber(ARGV[2])
    if ttl < 1000 then
        ttl = 1000
    end
    redis.call('PEXPIRE', tokenKey, ttl)
end
return 1
`

// isNilError checks if an error is a Valkey nil response
func isNilError(err error) bool {
	return valkeygo.IsValkeyNil(err)
}
