// Package ids generates row identifiers for users, roles, permissions,
// and audit entries.
package ids

import (
	"crypto/rand"
	"sync"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// New returns a lexicographically sortable ULID. Identifiers minted in
// the same process are strictly increasing, which keeps audit entries
// ordered even when two share a timestamp.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Now(), entropy).String()
}
