package oauth

import (
	"log/slog"
	"time"

	"github.com/giantswarm/oauth2-core/grant"
	"github.com/giantswarm/oauth2-core/instrumentation"
	"github.com/giantswarm/oauth2-core/server"
)

// Config holds the server configuration.
// Structured using composition; zero values are replaced by defaults in New.
type Config struct {
	// Issuer is the server's base URL. It is advertised in the metadata
	// document and decides whether HSTS is sent.
	Issuer string

	// AccessTokenLifetime defaults to one hour. Client lifetimes take precedence.
	AccessTokenLifetime time.Duration

	// RefreshTokenLifetime defaults to two weeks. A negative value issues
	// refresh tokens that never expire.
	RefreshTokenLifetime time.Duration

	// AuthorizationCodeLifetime defaults to five minutes.
	AuthorizationCodeLifetime time.Duration

	// DisableAcceptedScopesHeader drops X-Accepted-OAuth-Scopes from
	// authenticated responses.
	DisableAcceptedScopesHeader bool

	// DisableAuthorizedScopesHeader drops X-OAuth-Scopes from authenticated responses.
	DisableAuthorizedScopesHeader bool

	// AllowBearerTokensInQueryString accepts access_token as a query parameter.
	// WARNING: Tokens in URLs end up in logs and browser history.
	AllowBearerTokensInQueryString bool

	// AllowExtendedTokenAttributes copies extra token attributes into the
	// token response.
	AllowExtendedTokenAttributes bool

	// RequireClientAuthentication overrides, per grant type, whether the
	// client secret is mandatory. Unlisted grant types require it.
	RequireClientAuthentication map[string]bool

	// ExtendedGrantTypes adds grant types on top of the five built-in ones.
	ExtendedGrantTypes grant.Registry

	// UserResolver resolves the resource owner at the authorization
	// endpoint. Nil authenticates the request by bearer token.
	UserResolver server.UserResolver

	// ResponseTypes adds response types on top of "code".
	ResponseTypes server.ResponseTypes

	// Rate limiting configuration
	RateLimit RateLimitConfig

	// Security settings (secure by default)
	Security SecurityConfig

	// Logger for structured logging (optional, uses default if not provided)
	Logger *slog.Logger

	// Instrumentation enables tracing and metrics. Nil disables both.
	Instrumentation *instrumentation.Instrumentation

	// Now is the clock used for expiry computation (default: time.Now).
	Now func() time.Time
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	// Rate is requests per second allowed per IP. Zero disables limiting.
	Rate float64

	// Burst is the maximum burst size allowed per IP.
	Burst int

	// CleanupInterval is how often to cleanup inactive rate limiters.
	CleanupInterval time.Duration

	// TrustProxy enables trusting X-Forwarded-For and X-Real-IP headers.
	// Only enable behind a trusted reverse proxy.
	TrustProxy bool

	// TrustedProxyCount is the number of proxies in front of the server.
	// Default: 1
	TrustedProxyCount int
}

// SecurityConfig holds OAuth security settings (secure by default)
type SecurityConfig struct {
	// AllowEmptyState permits authorization requests without a state parameter.
	// WARNING: Weakens CSRF protection. Only for legacy clients.
	AllowEmptyState bool

	// DisableRefreshTokenRotation keeps refresh tokens valid after use.
	// WARNING: Stolen tokens remain valid until they expire.
	DisableRefreshTokenRotation bool

	// EnableAuditLogging enables security audit logging.
	// Logs auth events and token operations (user identifiers hashed).
	EnableAuditLogging bool
}

// applyDefaults fills zero values with defaults.
func (c *Config) applyDefaults() {
	if c.AccessTokenLifetime == 0 {
		c.AccessTokenLifetime = DefaultAccessTokenLifetime
	}
	if c.RefreshTokenLifetime == 0 {
		c.RefreshTokenLifetime = DefaultRefreshTokenLifetime
	}
	if c.AuthorizationCodeLifetime == 0 {
		c.AuthorizationCodeLifetime = DefaultAuthorizationCodeLifetime
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}

	if c.RateLimit.Rate > 0 {
		if c.RateLimit.Burst <= 0 {
			c.RateLimit.Burst = DefaultRateLimitBurst
		}
		if c.RateLimit.CleanupInterval <= 0 {
			c.RateLimit.CleanupInterval = DefaultRateLimitCleanupInterval
		}
	}
	if c.RateLimit.TrustedProxyCount <= 0 {
		c.RateLimit.TrustedProxyCount = DefaultTrustedProxyCount
	}
}

// refreshTokenLifetime maps the negative "never expires" setting to the
// zero lifetime the token flow understands.
func (c *Config) refreshTokenLifetime() time.Duration {
	if c.RefreshTokenLifetime < 0 {
		return 0
	}
	return c.RefreshTokenLifetime
}
