package oidc

import (
	"fmt"
	"net"
	"net/url"

	"github.com/giantswarm/oauth2-core/internal/helpers"
)

const (
	maxScopes      = 50
	maxGroups      = 100
	maxValueLength = 256
)

// ValidateIssuerURL validates an OIDC issuer URL with SSRF protection.
// It enforces HTTPS and rejects literal IPs that are not public.
func ValidateIssuerURL(issuerURL string) error {
	u, err := url.Parse(issuerURL)
	if err != nil {
		return fmt.Errorf("invalid issuer URL: %w", err)
	}

	if u.Scheme != "https" {
		return fmt.Errorf("issuer URL must use HTTPS, got %s", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("issuer URL must have a hostname")
	}

	// Hostnames are not resolved here; only literal IPs are checked.
	if ip := net.ParseIP(host); ip != nil {
		if class := helpers.ClassifyIP(ip); class != helpers.IPPublic {
			return fmt.Errorf("issuer URL must not point to %s addresses", class)
		}
	}

	return nil
}

// ValidateScopes validates the scopes requested upstream.
func ValidateScopes(scopes []string) error {
	if len(scopes) > maxScopes {
		return fmt.Errorf("too many scopes (max %d, got %d)", maxScopes, len(scopes))
	}

	for i, scope := range scopes {
		if scope == "" {
			return fmt.Errorf("scope at index %d is empty", i)
		}
		if len(scope) > maxValueLength {
			return fmt.Errorf("scope at index %d exceeds maximum length of %d characters", i, maxValueLength)
		}
	}

	return nil
}

// ValidateGroups validates a groups claim.
func ValidateGroups(groups []string) error {
	if len(groups) > maxGroups {
		return fmt.Errorf("groups claim exceeds maximum of %d groups (got %d)", maxGroups, len(groups))
	}

	for i, group := range groups {
		if len(group) > maxValueLength {
			return fmt.Errorf("group at index %d exceeds maximum length of %d characters", i, maxValueLength)
		}
	}

	return nil
}
