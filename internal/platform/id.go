package platform

import (
	"crypto/rand"

	"github.com/google/uuid"
)

const (
	nameAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	nameLength   = 10
)

// NewID returns a random UUID. Rollouts, instance groups, and API keys all
// use these as primary keys.
func NewID() string {
	return uuid.New().String()
}

// NewName returns a short random identifier with the given prefix, for
// values that end up in logs and URLs where a full UUID is unwieldy, such
// as generated idempotency keys.
func NewName(prefix string) string {
	b := make([]byte, nameLength)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand: " + err.Error())
	}
	for i := range b {
		b[i] = nameAlphabet[b[i]%byte(len(nameAlphabet))]
	}
	return prefix + string(b)
}
