// Package validation provides the character-class predicates of RFC 6749
// Appendix A used to validate request parameters before they reach storage.
package validation

import "regexp"

// Character classes from RFC 6749 Appendix A.
var (
	// NCHAR = %x2D / %x2E / %x5F / DIGIT / ALPHA
	ncharPattern = regexp.MustCompile(`^[\-._\w]+$`)

	// NQCHAR = %x21 / %x23-5B / %x5D-7E
	nqcharPattern = regexp.MustCompile(`^[\x21\x23-\x5B\x5D-\x7E]+$`)

	// NQSCHAR = %x20-21 / %x23-5B / %x5D-7E
	nqscharPattern = regexp.MustCompile(`^[\x20-\x21\x23-\x5B\x5D-\x7E]+$`)

	// UNICODECHARNOCRLF = %x09 / %x20-7E / %x80-D7FF / %xE000-FFFD / %x10000-10FFFF
	ucharPattern = regexp.MustCompile(`^[\x09\x20-\x7E\x{80}-\x{D7FF}\x{E000}-\x{FFFD}\x{10000}-\x{10FFFF}]+$`)

	// URI-reference with a scheme, as required for extension grant types.
	uriPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]+:`)

	// VSCHAR = %x20-7E
	vscharPattern = regexp.MustCompile(`^[\x20-\x7E]+$`)
)

// IsNChar reports whether s consists only of NCHAR characters.
// Used for grant_type and response_type names.
func IsNChar(s string) bool {
	return ncharPattern.MatchString(s)
}

// IsNQChar reports whether s consists only of NQCHAR characters.
func IsNQChar(s string) bool {
	return nqcharPattern.MatchString(s)
}

// IsNQSChar reports whether s consists only of NQSCHAR characters.
// Used for space-delimited scope lists.
func IsNQSChar(s string) bool {
	return nqscharPattern.MatchString(s)
}

// IsUChar reports whether s consists only of printable unicode characters,
// excluding CR and LF. Used for resource owner credentials.
func IsUChar(s string) bool {
	return ucharPattern.MatchString(s)
}

// IsURI reports whether s starts with a URI scheme.
func IsURI(s string) bool {
	return uriPattern.MatchString(s)
}

// IsVSChar reports whether s consists only of visible ASCII characters and
// spaces. Used for client credentials, codes, tokens and state.
func IsVSChar(s string) bool {
	return vscharPattern.MatchString(s)
}
