package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// Evento emitido pelo game-service quando uma partida chega a um estado terminal.
// Consumido pelo settlement-worker (auditoria + notificação).
type GameSettled struct {
	GameID       string          `json:"game_id"`
	UserID       string          `json:"user_id"`
	Status       string          `json:"status"` // "won" | "lost"
	GameType     int             `json:"game_type"`
	AttemptsUsed int             `json:"attempts_used"`
	BetAmount    decimal.Decimal `json:"bet_amount"`
	Odds         decimal.Decimal `json:"odds"`
	WinAmount    decimal.Decimal `json:"win_amount"`
	Payout       decimal.Decimal `json:"payout"` // stake devolvido + ganho; zero quando perdida
	Balance      decimal.Decimal `json:"balance"`
	CreatedAt    int64           `json:"created_at"`
	EndedAt      int64           `json:"ended_at"`
	Ts           time.Time       `json:"ts"`
}
