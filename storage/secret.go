package storage

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when a client or user does not exist so
// lookups of unknown and known identities take the same time.
// It is the bcrypt hash of "test".
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// HashSecret hashes a client secret or user password with bcrypt. A cost of
// zero selects bcrypt.DefaultCost.
func HashSecret(secret string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}
	return string(hash), nil
}

// CheckSecret reports whether secret matches hash. An empty hash always
// performs a comparison against a dummy hash and fails.
func CheckSecret(hash, secret string) (bool, error) {
	compareTo := hash
	if compareTo == "" {
		compareTo = dummyHash
	}

	err := bcrypt.CompareHashAndPassword([]byte(compareTo), []byte(secret))
	switch {
	case err == nil:
		return hash != "", nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword), errors.Is(err, bcrypt.ErrPasswordTooLong):
		return false, nil
	default:
		return false, fmt.Errorf("failed to compare secret: %w", err)
	}
}
