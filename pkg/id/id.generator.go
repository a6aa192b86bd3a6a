package id

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewULID returns a lexicographically sortable id, monotonic within the
// process: "<prefix>_<ulid>".
func NewULID(prefix string) string {
	entropyMu.Lock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	entropyMu.Unlock()

	if prefix == "" {
		return id.String()
	}
	return prefix + "_" + id.String()
}

// NewBatchID identifies one dispatch batch.
func NewBatchID() string {
	return uuid.NewString()
}
