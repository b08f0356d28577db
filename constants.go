package oauth

import "time"

// Default lifetimes applied by Config when a field is left at zero.
const (
	DefaultAccessTokenLifetime       = 1 * time.Hour
	DefaultRefreshTokenLifetime      = 14 * 24 * time.Hour
	DefaultAuthorizationCodeLifetime = 5 * time.Minute
)

// Rate limiting defaults, used when RateLimitConfig.Rate is set but the
// remaining fields are not.
const (
	DefaultRateLimitBurst           = 20
	DefaultRateLimitCleanupInterval = 5 * time.Minute
	DefaultTrustedProxyCount        = 1

	// rateLimitRetryAfter is the Retry-After value sent with 429 responses, in seconds.
	rateLimitRetryAfter = "60"
)

// Endpoint paths used by Handler.RegisterRoutes.
const (
	AuthorizePath = "/authorize"
	TokenPath     = "/token"
	MetadataPath  = "/.well-known/oauth-authorization-server"
)
