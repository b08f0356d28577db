package security

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"
)

// Auditor handles security event logging with PII protection.
// A nil *Auditor is valid and discards every event.
type Auditor struct {
	logger  *slog.Logger
	enabled bool
	now     func() time.Time
}

// NewAuditor creates a new security auditor
func NewAuditor(logger *slog.Logger, enabled bool) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		logger:  logger,
		enabled: enabled,
		now:     time.Now,
	}
}

// Event represents a security audit event
type Event struct {
	Type      string
	UserID    string
	ClientID  string
	IPAddress string
	Details   map[string]any
	Timestamp time.Time
}

// LogEvent logs a security event with hashed PII
func (a *Auditor) LogEvent(event Event) {
	if a == nil || !a.enabled {
		return
	}

	event.Timestamp = a.now()

	a.logger.Info("security_audit",
		"event_type", event.Type,
		"user_id_hash", hashForLogging(event.UserID),
		"client_id", event.ClientID,
		"ip_address", event.IPAddress,
		"details", event.Details,
		"timestamp", event.Timestamp,
	)
}

// LogTokenIssued logs when the token endpoint issues a token
func (a *Auditor) LogTokenIssued(userID, clientID, grantType, scope string) {
	a.LogEvent(Event{
		Type:     EventTokenIssued,
		UserID:   userID,
		ClientID: clientID,
		Details: map[string]any{
			"grant_type": grantType,
			"scope":      scope,
		},
	})
}

// LogTokenRefreshed logs when a refresh token is exchanged
func (a *Auditor) LogTokenRefreshed(userID, clientID string, rotated bool) {
	a.LogEvent(Event{
		Type:     EventTokenRefreshed,
		UserID:   userID,
		ClientID: clientID,
		Details: map[string]any{
			"rotated": rotated,
		},
	})
}

// LogTokenRevoked logs when a refresh token or authorization code is revoked
func (a *Auditor) LogTokenRevoked(userID, clientID, tokenType string) {
	a.LogEvent(Event{
		Type:     EventTokenRevoked,
		UserID:   userID,
		ClientID: clientID,
		Details: map[string]any{
			"token_type": tokenType,
		},
	})
}

// LogAuthorizationCodeIssued logs when an authorization code is issued
func (a *Auditor) LogAuthorizationCodeIssued(userID, clientID, scope string) {
	a.LogEvent(Event{
		Type:     EventAuthorizationCodeIssued,
		UserID:   userID,
		ClientID: clientID,
		Details: map[string]any{
			"scope": scope,
		},
	})
}

// LogAuthorizationDenied logs when the end user denies an authorization request
func (a *Auditor) LogAuthorizationDenied(clientID string) {
	a.LogEvent(Event{
		Type:     EventAuthorizationDenied,
		ClientID: clientID,
	})
}

// LogAuthFailure logs an authentication failure
func (a *Auditor) LogAuthFailure(userID, clientID, ipAddress, reason string) {
	a.LogEvent(Event{
		Type:      EventAuthFailure,
		UserID:    userID,
		ClientID:  clientID,
		IPAddress: ipAddress,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogRateLimitExceeded logs a rate limit violation
func (a *Auditor) LogRateLimitExceeded(ipAddress, endpoint string) {
	a.LogEvent(Event{
		Type:      EventRateLimitExceeded,
		IPAddress: ipAddress,
		Details: map[string]any{
			"endpoint": endpoint,
		},
	})
}

// hashForLogging returns a short, stable hash of a value so that user
// identifiers can be correlated in logs without being disclosed.
func hashForLogging(value string) string {
	if value == "" {
		return "<empty>"
	}
	hash := sha256.Sum256([]byte(value))
	return hex.EncodeToString(hash[:])[:16]
}
