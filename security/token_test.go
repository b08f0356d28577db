package security

import (
	"regexp"
	"testing"

	"github.com/giantswarm/oauth2-core/oautherr"
)

var lowerHex64 = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestRandomToken_Format(t *testing.T) {
	for _, n := range []int{1, 16, 32, DefaultTokenBytes} {
		tok, err := RandomToken(n)
		if err != nil {
			t.Fatalf("RandomToken(%d) error = %v", n, err)
		}
		if !lowerHex64.MatchString(tok) {
			t.Errorf("RandomToken(%d) = %q, want 64 lowercase hex chars", n, tok)
		}
	}
}

func TestRandomToken_Unique(t *testing.T) {
	const iterations = 10000

	seen := make(map[string]struct{}, iterations)
	for i := 0; i < iterations; i++ {
		tok, err := RandomToken(DefaultTokenBytes)
		if err != nil {
			t.Fatalf("RandomToken() error = %v", err)
		}
		if _, dup := seen[tok]; dup {
			t.Fatalf("RandomToken() repeated %q after %d calls", tok, i)
		}
		seen[tok] = struct{}{}
	}
}

func TestRandomToken_InvalidLength(t *testing.T) {
	_, err := RandomToken(0)
	if !oautherr.Is(err, oautherr.KindInvalidArgument) {
		t.Errorf("RandomToken(0) error = %v, want invalid_argument", err)
	}
}
