package httpapi

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/number-guess-platform/internal/game-service/dto"
	"github.com/radieske/number-guess-platform/internal/session"
)

func (a *API) startGame(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r.Context())
	var req dto.StartGameRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	p, err := startParams(req, a.Engine.Rules().MaxGameType)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	res, err := a.Engine.Start(r.Context(), s.UserID, p)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.refreshBalance(r.Context(), s, res.NewBalance)

	writeJSON(w, http.StatusOK, dto.StartGameResponse{
		Success:    true,
		Message:    "Numbers generated successfully",
		GameID:     res.GameID,
		GameType:   res.GameType,
		Attempts:   res.Attempts,
		Odds:       res.Odds,
		BetAmount:  res.BetAmount,
		NewBalance: res.NewBalance,
	})
}

func (a *API) gameStatus(w http.ResponseWriter, r *http.Request) {
	v, err := a.Engine.Status(r.Context(), sessionFrom(r.Context()).UserID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.StatusResponse{
		Success:       true,
		HasActiveGame: v.HasActiveGame,
		HasGame:       v.HasGame,
		GameType:      v.GameType,
		Attempts:      v.AttemptsAllowed,
		AttemptsUsed:  v.AttemptsUsed,
		BetAmount:     v.BetAmount,
		Odds:          v.Odds,
		Status:        string(v.Status),
		WinAmount:     v.WinAmount,
		Balance:       v.Balance,
	})
}

func (a *API) guess(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r.Context())
	req, err := decodeGuess(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	res, err := a.Engine.Guess(r.Context(), s.UserID, req.Digits)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if res.NewBalance != nil {
		a.refreshBalance(r.Context(), s, *res.NewBalance)
	}

	writeJSON(w, http.StatusOK, dto.GuessResponse{
		Success:           true,
		ExactMatch:        res.ExactMatch,
		CorrectPositions:  res.CorrectPositions,
		CorrectNumbers:    res.CorrectNumbers,
		RemainingAttempts: res.RemainingAttempts,
		GameWon:           res.GameWon,
		GameLost:          res.GameLost,
		WinAmount:         res.WinAmount,
		NewBalance:        res.NewBalance,
		Numbers:           res.Secret,
		Message:           res.Message,
	})
}

func (a *API) archive(w http.ResponseWriter, r *http.Request) {
	res, err := a.Engine.Archive(r.Context(), sessionFrom(r.Context()).UserID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	msg := "No completed game to move"
	if res.Archived {
		msg = "Completed game moved to history"
	}
	writeJSON(w, http.StatusOK, dto.ArchiveResponse{Success: true, Archived: res.Archived, EntryID: res.EntryID, Message: msg})
}

func (a *API) history(w http.ResponseWriter, r *http.Request) {
	hs, err := a.Engine.History(r.Context(), sessionFrom(r.Context()).UserID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.HistoryResponse{Success: true, History: hs})
}

func (a *API) websocket(w http.ResponseWriter, r *http.Request) {
	a.Hub.HandleWS(w, r, sessionFrom(r.Context()).UserID)
}

// refreshBalance atualiza o cache da sessão; o saldo durável já foi gravado pelo motor.
func (a *API) refreshBalance(ctx context.Context, s *session.Session, bal decimal.Decimal) {
	if err := a.Ledger.RefreshBalance(ctx, s, bal); err != nil {
		a.Log.Warn("session balance refresh failed", zap.String("sessionId", s.ID), zap.Error(err))
	}
}
