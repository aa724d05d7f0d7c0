package random

import (
	"crypto/rand"
	"fmt"
)

// Source supplies cryptographically secure random bytes. It is injected
// into everything that mints bearer secrets so tests can substitute a
// deterministic source; production code must never use anything weaker
// than crypto/rand here.
type Source interface {
	Bytes(n int) ([]byte, error)
}

type cryptoSource struct{}

// NewSource returns a Source backed by crypto/rand.
func NewSource() Source { return cryptoSource{} }

func (cryptoSource) Bytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("read entropy: %w", err)
	}
	return buf, nil
}
