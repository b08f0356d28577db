package security

import (
	"net/http"
	"net/url"
)

// SetSecurityHeaders sets the response headers every authorization server
// endpoint should carry. issuerURL decides whether HSTS is sent.
func SetSecurityHeaders(w http.ResponseWriter, issuerURL string) {
	h := w.Header()
	h.Set("X-Frame-Options", "DENY")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
	h.Set("Referrer-Policy", "no-referrer")

	if parsed, err := url.Parse(issuerURL); err == nil && parsed.Scheme == "https" {
		h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	}
}
