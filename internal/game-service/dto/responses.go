package dto

import (
	"github.com/shopspring/decimal"

	"github.com/radieske/number-guess-platform/internal/game"
)

type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Error   string `json:"error"`
}

type AuthResponse struct {
	Success bool             `json:"success"`
	Token   string           `json:"token,omitempty"`
	UserID  string           `json:"userId"`
	Email   string           `json:"email"`
	Pending bool             `json:"pending"`
	Balance *decimal.Decimal `json:"balance,omitempty"`
	Message string           `json:"message,omitempty"`

	// só com API.ExposeCodes (ambiente local e robô)
	VerificationCode string `json:"verificationCode,omitempty"`
}

type StartGameResponse struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	GameID     string          `json:"gameId"`
	GameType   int             `json:"gameType"`
	Attempts   int             `json:"attempts"`
	Odds       decimal.Decimal `json:"odds"`
	BetAmount  decimal.Decimal `json:"betAmount"`
	NewBalance decimal.Decimal `json:"newBalance"`
}

type StatusResponse struct {
	Success       bool            `json:"success"`
	HasActiveGame bool            `json:"hasActiveGame"`
	HasGame       bool            `json:"hasGame"`
	GameType      int             `json:"gameType,omitempty"`
	Attempts      int             `json:"attempts,omitempty"`
	AttemptsUsed  int             `json:"attemptsUsed"`
	BetAmount     decimal.Decimal `json:"betAmount"`
	Odds          decimal.Decimal `json:"odds"`
	Status        string          `json:"status,omitempty"`
	WinAmount     decimal.Decimal `json:"winAmount"`
	Balance       decimal.Decimal `json:"balance"`
}

type GuessResponse struct {
	Success           bool             `json:"success"`
	ExactMatch        bool             `json:"exactMatch"`
	CorrectPositions  int              `json:"correctPositions"`
	CorrectNumbers    int              `json:"correctNumbers"`
	RemainingAttempts int              `json:"remainingAttempts"`
	GameWon           bool             `json:"gameWon"`
	GameLost          bool             `json:"gameLost"`
	WinAmount         decimal.Decimal  `json:"winAmount"`
	NewBalance        *decimal.Decimal `json:"newBalance,omitempty"`
	Numbers           []int            `json:"numbers,omitempty"` // só em fim de jogo
	Message           string           `json:"message"`
}

type ArchiveResponse struct {
	Success  bool   `json:"success"`
	Archived bool   `json:"archived"`
	EntryID  string `json:"entryId,omitempty"`
	Message  string `json:"message"`
}

type HistoryResponse struct {
	Success bool                `json:"success"`
	History []game.HistoryEntry `json:"history"`
}

type LogoutResponse struct {
	Success bool `json:"success"`
}
