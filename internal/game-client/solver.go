package gameclient

import (
	"fmt"
	"math/rand"

	"github.com/radieske/number-guess-platform/internal/game"
)

// MaxSolverLength limita o espaço de candidatos (10!/(10-n)!).
const MaxSolverLength = 6

// Solver mantém os segredos ainda consistentes com todo feedback recebido
// e sempre chuta um deles.
type Solver struct {
	n          int
	candidates [][]int
	rnd        *rand.Rand
}

func NewSolver(n int, seed int64) (*Solver, error) {
	if n < 1 || n > MaxSolverLength {
		return nil, fmt.Errorf("solver supports 1..%d digits, got %d", MaxSolverLength, n)
	}
	s := &Solver{n: n, rnd: rand.New(rand.NewSource(seed))}
	var used [10]bool
	cur := make([]int, 0, n)
	var gen func()
	gen = func() {
		if len(cur) == n {
			s.candidates = append(s.candidates, append([]int(nil), cur...))
			return
		}
		for d := 0; d < 10; d++ {
			if used[d] {
				continue
			}
			used[d] = true
			cur = append(cur, d)
			gen()
			cur = cur[:len(cur)-1]
			used[d] = false
		}
	}
	gen()
	return s, nil
}

func (s *Solver) Remaining() int { return len(s.candidates) }

// Next sorteia um candidato; false quando nenhum é consistente.
func (s *Solver) Next() ([]int, bool) {
	if len(s.candidates) == 0 {
		return nil, false
	}
	c := s.candidates[s.rnd.Intn(len(s.candidates))]
	return append([]int(nil), c...), true
}

// Observe descarta os candidatos que dariam feedback diferente para o palpite.
func (s *Solver) Observe(guess []int, positions, numbers int) {
	kept := s.candidates[:0]
	for _, c := range s.candidates {
		p, n := game.Score(c, guess)
		if p == positions && n == numbers {
			kept = append(kept, c)
		}
	}
	s.candidates = kept
}
