package storage

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	idOnce    sync.Once
	idMu      sync.Mutex
	idEntropy *ulid.MonotonicEntropy
)

// NewID returns a lexicographically sortable ULID for a record created at t.
// IDs generated within the same millisecond stay ordered.
func NewID(t time.Time) string {
	idOnce.Do(func() {
		idEntropy = ulid.Monotonic(rand.Reader, 0)
	})

	idMu.Lock()
	defer idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t.UTC()), idEntropy).String()
}

// IsID reports whether s is a well-formed ULID.
func IsID(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
