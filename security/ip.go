package security

import (
	"net"
	"net/http"
	"strings"
)

// GetClientIP returns the caller's IP address. Forwarding headers are only
// consulted when trustProxy is set; trustedProxies is the number of proxies
// we run in front of the server (values below 1 are treated as 1).
func GetClientIP(r *http.Request, trustProxy bool, trustedProxies int) string {
	if trustProxy {
		if ip := forwardedFor(r.Header.Get("X-Forwarded-For"), trustedProxies); ip != "" {
			return ip
		}
		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(ip) != nil {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// forwardedFor picks the address added by the outermost trusted proxy.
// Anything to its left is client controlled.
func forwardedFor(header string, trustedProxies int) string {
	if header == "" {
		return ""
	}
	if trustedProxies < 1 {
		trustedProxies = 1
	}

	hops := strings.Split(header, ",")
	idx := len(hops) - trustedProxies - 1
	if idx < 0 {
		idx = 0
	}

	ip := strings.TrimSpace(hops[idx])
	if net.ParseIP(ip) == nil {
		return ""
	}
	return ip
}
