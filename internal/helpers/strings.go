package helpers

// SafeTruncate returns at most the first maxLen bytes of s. It is used to
// log a recognisable prefix of tokens and codes without leaking them.
// A negative maxLen yields "".
func SafeTruncate(s string, maxLen int) string {
	if maxLen < 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
