package dto

import (
	"github.com/shopspring/decimal"
)

type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

type VerifyRequest struct {
	Code string `json:"code"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// StartGameRequest aceita números ou strings numéricas (form do navegador).
// Campos zerados usam o default do jogo.
type StartGameRequest struct {
	GameType  decimal.Decimal `json:"gameType"`
	BetAmount decimal.Decimal `json:"betAmount"`
	Attempts  decimal.Decimal `json:"attempts"`
	Odds      decimal.Decimal `json:"odds"`
}

// GuessRequest traz o palpite como lista ("digits") ou por posição (guess1..guessN).
type GuessRequest struct {
	Digits []int
}
