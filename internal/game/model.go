package game

import (
	"github.com/shopspring/decimal"
)

// Status é o estado da partida. won e lost são terminais.
type Status string

const (
	StatusActive Status = "active"
	StatusWon    Status = "won"
	StatusLost   Status = "lost"
)

func (s Status) Terminal() bool { return s == StatusWon || s == StatusLost }

// Session é a partida corrente do usuário, gravada em users/{id}/currentGame.
type Session struct {
	ID              string          `json:"id"`
	SecretDigits    []int           `json:"secretDigits"`
	GameType        int             `json:"gameType"`
	AttemptsAllowed int             `json:"attemptsAllowed"`
	AttemptsUsed    int             `json:"attemptsUsed"`
	BetAmount       decimal.Decimal `json:"betAmount"`
	Odds            decimal.Decimal `json:"odds"`
	Status          Status          `json:"status"`
	WinAmount       decimal.Decimal `json:"winAmount"`
	UserLastGuess   []int           `json:"userLastGuess,omitempty"`
	CreatedAt       int64           `json:"createdAt"`
	EndedAt         int64           `json:"endedAt,omitempty"`
}

// HistoryEntry é o snapshot de uma partida terminal arquivada.
type HistoryEntry struct {
	Session
	UserID      string `json:"userId"`
	CompletedAt int64  `json:"completedAt"`
}

// Rules são os parâmetros fixos do jogo.
type Rules struct {
	StartingBalance decimal.Decimal
	DefaultGameType int
	DefaultAttempts int
	DefaultOdds     decimal.Decimal
	MaxGameType     int
}

func DefaultRules() Rules {
	return Rules{
		StartingBalance: decimal.NewFromInt(40000),
		DefaultGameType: 4,
		DefaultAttempts: 3,
		DefaultOdds:     decimal.NewFromInt(8),
		MaxGameType:     len(digitSet),
	}
}

// StartParams são os parâmetros escolhidos pelo jogador.
// Zero em GameType/Attempts/Odds usa o default das Rules.
type StartParams struct {
	GameType  int
	BetAmount decimal.Decimal
	Attempts  int
	Odds      decimal.Decimal
}

type StartResult struct {
	GameID     string
	GameType   int
	Attempts   int
	Odds       decimal.Decimal
	BetAmount  decimal.Decimal
	NewBalance decimal.Decimal
}

// StatusView é a foto da partida corrente e do saldo. Nunca inclui o segredo.
type StatusView struct {
	HasActiveGame   bool
	HasGame         bool
	GameType        int
	AttemptsAllowed int
	AttemptsUsed    int
	BetAmount       decimal.Decimal
	Odds            decimal.Decimal
	Status          Status
	WinAmount       decimal.Decimal
	Balance         decimal.Decimal
}

type GuessResult struct {
	ExactMatch        bool
	CorrectPositions  int
	CorrectNumbers    int
	RemainingAttempts int
	GameWon           bool
	GameLost          bool
	WinAmount         decimal.Decimal
	NewBalance        *decimal.Decimal // só em vitória
	Secret            []int            // só em estado terminal
	Message           string
}

type ArchiveResult struct {
	Archived bool
	EntryID  string
}
