package fiatshamir

import (
	"crypto/rand"
	"io"

	"github.com/privacybydesign/fiatshamir/internal/common"
)

// SecureRandom returns the operating system's cryptographically secure random source. Challenges
// must always come from a source like this one.
func SecureRandom() io.Reader {
	return rand.Reader
}

// NewSeededRandomSource returns a deterministic random source: two sources with the same seed
// produce the same stream. Sessions driven by seeded sources replay exactly, which is useful in
// tests. A seed that others may know must never be used for challenges.
func NewSeededRandomSource(seed *[32]byte) (io.Reader, error) {
	return common.NewCPRNG(seed)
}
