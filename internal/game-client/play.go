package gameclient

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/radieske/number-guess-platform/internal/game"
)

// Outcome resume uma partida jogada pelo robô.
type Outcome struct {
	GameID     string
	Won        bool
	Guesses    int
	Payout     decimal.Decimal
	NewBalance decimal.Decimal
	Secret     []int
}

// Play inicia uma partida, chuta com o Solver até o fim e arquiva o resultado.
// GameType zero usa o default do servidor.
func (c *Client) Play(ctx context.Context, p game.StartParams, seed int64) (*Outcome, error) {
	// valida antes do Start: a aposta é debitada na criação da partida
	if p.GameType < 0 || p.GameType > MaxSolverLength {
		return nil, fmt.Errorf("solver supports 1..%d digits, got %d", MaxSolverLength, p.GameType)
	}
	started, err := c.Start(ctx, p)
	if err != nil {
		return nil, err
	}
	solver, err := NewSolver(started.GameType, seed)
	if err != nil {
		return nil, err
	}

	out := &Outcome{GameID: started.GameID, NewBalance: started.NewBalance}
	for {
		guess, ok := solver.Next()
		if !ok {
			return nil, fmt.Errorf("game %s: no candidate left", started.GameID)
		}
		res, err := c.Guess(ctx, guess)
		if err != nil {
			return nil, err
		}
		out.Guesses++
		if res.GameWon || res.GameLost {
			out.Won = res.GameWon
			out.Secret = res.Numbers
			if res.NewBalance != nil {
				out.NewBalance = *res.NewBalance
			}
			if res.GameWon {
				out.Payout = started.BetAmount.Add(res.WinAmount)
			}
			break
		}
		solver.Observe(guess, res.CorrectPositions, res.CorrectNumbers)
	}

	if _, err := c.Archive(ctx); err != nil {
		return out, err
	}
	return out, nil
}
