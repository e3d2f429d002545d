package game

import (
	crand "crypto/rand"
	"fmt"
	"math/big"
)

var digitSet = [10]int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}

// SecretGenerator produz n dígitos distintos em [0,9].
type SecretGenerator interface {
	Generate(n int) ([]int, error)
}

// CryptoShuffler embaralha 0..9 com Fisher–Yates sobre crypto/rand e corta em n.
type CryptoShuffler struct{}

func (CryptoShuffler) Generate(n int) ([]int, error) {
	if n < 1 || n > len(digitSet) {
		return nil, fmt.Errorf("secret length %d out of range", n)
	}
	digits := digitSet
	for i := len(digits) - 1; i > 0; i-- {
		j, err := crand.Int(crand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return nil, fmt.Errorf("shuffle: %w", err)
		}
		k := int(j.Int64())
		digits[i], digits[k] = digits[k], digits[i]
	}
	out := make([]int, n)
	copy(out, digits[:n])
	return out, nil
}

// distinctDigits confere o invariante do segredo.
func distinctDigits(ds []int) bool {
	var seen [10]bool
	for _, d := range ds {
		if d < 0 || d > 9 || seen[d] {
			return false
		}
		seen[d] = true
	}
	return true
}
