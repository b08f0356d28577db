package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/giantswarm/oauth2-core/oautherr"
)

// DefaultTokenBytes is the amount of entropy fed into RandomToken by the
// grant types and the authorization endpoint.
const DefaultTokenBytes = 256

// RandomToken reads byteLength bytes from crypto/rand, hashes them with
// SHA-256 and returns the digest as lowercase hex. The result is always 64
// characters long. A failing randomness source is reported as server_error.
func RandomToken(byteLength int) (string, error) {
	if byteLength <= 0 {
		return "", oautherr.ErrInvalidArgument(fmt.Sprintf("token byte length must be positive, got %d", byteLength))
	}

	b := make([]byte, byteLength)
	if _, err := rand.Read(b); err != nil {
		return "", oautherr.ErrServerError("failed to read random bytes").WithCause(err)
	}

	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
