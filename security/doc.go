// Package security provides the security plumbing shared by the authorization
// server: opaque token generation, audit logging with hashed user identifiers,
// per-client-IP rate limiting, response security headers and request IDs.
//
// # Rate Limiting
//
// RateLimiter keeps one token bucket per identifier and evicts the least
// recently used identifiers once MaxEntries is reached, so a distributed
// flood cannot grow memory without bound.
//
//	limiter := security.NewRateLimiter(security.RateLimiterConfig{Rate: 10, Burst: 20})
//	defer limiter.Stop()
//
//	if !limiter.Allow(security.GetClientIP(r, false, 0)) {
//		// reject with 429
//	}
package security
