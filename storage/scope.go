package storage

import (
	"slices"
	"strings"
)

// GrantScope applies a client's allowed scope to a requested one. An empty
// allowed scope permits anything. An empty request is granted the full
// allowed scope. Otherwise every requested scope must be allowed and the
// request is granted as is.
func GrantScope(allowed, requested string) (string, bool) {
	if allowed == "" {
		return requested, true
	}
	if requested == "" {
		return allowed, true
	}

	permitted := strings.Fields(allowed)
	for _, s := range strings.Fields(requested) {
		if !slices.Contains(permitted, s) {
			return "", false
		}
	}
	return requested, true
}

// HasScopes reports whether a token scope covers every required scope.
func HasScopes(have, required string) bool {
	held := strings.Fields(have)
	for _, s := range strings.Fields(required) {
		if !slices.Contains(held, s) {
			return false
		}
	}
	return true
}
