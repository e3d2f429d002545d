package gameclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/number-guess-platform/internal/game"
)

func TestNewSolverCandidateSpace(t *testing.T) {
	for n, want := range map[int]int{1: 10, 2: 90, 3: 720, 4: 5040} {
		s, err := NewSolver(n, 1)
		require.NoError(t, err)
		assert.Equal(t, want, s.Remaining(), "n=%d", n)
	}

	_, err := NewSolver(0, 1)
	assert.Error(t, err)
	_, err = NewSolver(MaxSolverLength+1, 1)
	assert.Error(t, err)
}

func TestSolverKeepsSecretAmongCandidates(t *testing.T) {
	secret := []int{3, 1, 4, 7}
	s, err := NewSolver(4, 42)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		guess, ok := s.Next()
		require.True(t, ok)
		p, n := game.Score(secret, guess)
		if p == len(secret) {
			assert.Equal(t, secret, guess)
			return
		}
		before := s.Remaining()
		s.Observe(guess, p, n)
		assert.Less(t, s.Remaining(), before)

		found := false
		for _, c := range s.candidates {
			if assert.ObjectsAreEqual(secret, c) {
				found = true
				break
			}
		}
		require.True(t, found, "secret dropped after guess %v", guess)
	}
	t.Fatal("solver did not converge")
}

func TestSolverObserveFilters(t *testing.T) {
	s, err := NewSolver(2, 7)
	require.NoError(t, err)

	// nenhum dos dígitos 0 e 1 aparece
	s.Observe([]int{0, 1}, 0, 0)
	assert.Equal(t, 56, s.Remaining())
	for _, c := range s.candidates {
		assert.NotContains(t, c, 0)
		assert.NotContains(t, c, 1)
	}

	s.Observe([]int{2, 3}, 2, 2)
	require.Equal(t, 1, s.Remaining())
	g, ok := s.Next()
	require.True(t, ok)
	assert.Equal(t, []int{2, 3}, g)

	s.Observe([]int{2, 3}, 0, 0)
	_, ok = s.Next()
	assert.False(t, ok)
}
