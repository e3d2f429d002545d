package events

import "github.com/shopspring/decimal"

// Evento emitido pelo game-service quando uma partida é criada (aposta debitada).
type GameStarted struct {
	GameID    string          `json:"game_id"`
	UserID    string          `json:"user_id"`
	GameType  int             `json:"game_type"`
	Attempts  int             `json:"attempts"`
	BetAmount decimal.Decimal `json:"bet_amount"`
	Odds      decimal.Decimal `json:"odds"`
	TsUnixMs  int64           `json:"ts_unix_ms"`
}
