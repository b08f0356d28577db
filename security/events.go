package security

// Event type constants for security audit logging.
const (
	// EventTokenIssued is logged when the token endpoint issues an access token
	EventTokenIssued = "token_issued"

	// EventTokenRefreshed is logged when a refresh token is exchanged
	EventTokenRefreshed = "token_refreshed"

	// EventTokenRevoked is logged when a refresh token or authorization code is consumed
	EventTokenRevoked = "token_revoked"

	// EventAuthorizationCodeIssued is logged when the authorization endpoint issues a code
	EventAuthorizationCodeIssued = "authorization_code_issued"

	// EventAuthorizationDenied is logged when the end user denies an authorization request
	EventAuthorizationDenied = "authorization_denied"

	// EventAuthFailure is logged when client, user or bearer authentication fails
	EventAuthFailure = "auth_failure"

	// EventRateLimitExceeded is logged when a rate limit is exceeded
	EventRateLimitExceeded = "rate_limit_exceeded"
)
