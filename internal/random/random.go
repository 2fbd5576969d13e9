// internal/random/random.go
package random

import (
	"crypto/rand"
	"math/big"
)

// Source yields uniform integers. Production code uses crypto/rand; tests queue values.
type Source interface {
	// Intn returns a uniform int in [0, n). n must be positive.
	Intn(n int) int
}

// CryptoSource implements Source on crypto/rand.
type CryptoSource struct{}

// New returns the crypto/rand backed source.
func New() *CryptoSource {
	return &CryptoSource{}
}

// Intn returns a uniform int in [0, n). rand.Int rejects samples internally, so there is no modulo bias.
func (CryptoSource) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// crypto/rand only fails if the OS entropy source is gone
		panic("random: crypto/rand failed: " + err.Error())
	}
	return int(v.Int64())
}

// Shuffle permutes s in place with Fisher-Yates, so every ordering is equally likely.
func Shuffle[T any](src Source, s []T) {
	for i := len(s) - 1; i > 0; i-- {
		j := src.Intn(i + 1)
		s[i], s[j] = s[j], s[i]
	}
}

// RollDie returns a fair six-sided die value in [1, 6].
func RollDie(src Source) int {
	return src.Intn(6) + 1
}
