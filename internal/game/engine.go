// Package game é o motor do jogo: cria partidas, avalia palpites, liquida
// apostas e arquiva partidas encerradas no histórico do usuário.
//
// Toda transição grava saldo e partida num único store.Update condicionado
// aos valores lidos; operações mutáveis do mesmo usuário são serializadas.
package game

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/number-guess-platform/internal/shared/apperr"
	"github.com/radieske/number-guess-platform/internal/store"
	"github.com/radieske/number-guess-platform/pkg/contracts/events"
)

// Publisher recebe os eventos de ciclo de vida da partida (best-effort).
type Publisher interface {
	PublishGameStarted(ctx context.Context, e events.GameStarted) error
	PublishGameSettled(ctx context.Context, e events.GameSettled) error
}

type Engine struct {
	log     *zap.Logger
	store   store.RecordStore
	rules   Rules
	secrets SecretGenerator
	publ    Publisher
	locks   *userLocks

	// callbacks opcionais (métricas)
	OnStarted  func()
	OnGuess    func(outcome string)
	OnSettled  func(status string, payout decimal.Decimal)
	OnArchived func()
	OnError    func(stage string)
}

type Option func(*Engine)

func WithRules(r Rules) Option { return func(e *Engine) { e.rules = r } }

func WithSecretGenerator(g SecretGenerator) Option { return func(e *Engine) { e.secrets = g } }

func WithPublisher(p Publisher) Option { return func(e *Engine) { e.publ = p } }

func NewEngine(log *zap.Logger, st store.RecordStore, opts ...Option) *Engine {
	e := &Engine{
		log:     log,
		store:   st,
		rules:   DefaultRules(),
		secrets: CryptoShuffler{},
		locks:   newUserLocks(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) Rules() Rules { return e.rules }

func balancePath(userID string) string { return store.Join("users", userID, "balance") }

func gamePath(userID string) string { return store.Join("users", userID, "currentGame") }

func historyPrefix(userID string) string { return store.Join("users", userID, "gameHistory") }

func historyPath(userID, entryID string) string {
	return store.Join("users", userID, "gameHistory", entryID)
}

// Start debita a aposta e cria a partida ativa numa única escrita atômica.
// Uma partida encerrada e ainda não arquivada vai para o histórico na mesma escrita.
func (e *Engine) Start(ctx context.Context, userID string, p StartParams) (*StartResult, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}
	p, err := e.normalize(p)
	if err != nil {
		return nil, err
	}

	unlock := e.locks.lock(userID)
	defer unlock()

	cur, gameRaw, err := e.readGame(ctx, userID)
	if err != nil {
		return nil, e.storageErr("start", err)
	}
	if cur != nil && cur.Status == StatusActive {
		return nil, apperr.New(apperr.CodeSessionAlreadyActive, "finish the current game before starting a new one")
	}

	bal, balRaw, err := e.readBalance(ctx, userID)
	if err != nil {
		return nil, e.storageErr("start", err)
	}
	granted := false
	if balRaw == nil || bal.IsZero() {
		bal, granted = e.rules.StartingBalance, true
	}
	if bal.LessThan(p.BetAmount) {
		if granted {
			e.persistGrant(ctx, userID, balRaw)
		}
		return nil, apperr.New(apperr.CodeInsufficientFunds, "insufficient balance for this bet")
	}

	secret, err := e.secrets.Generate(p.GameType)
	if err != nil || len(secret) != p.GameType || !distinctDigits(secret) {
		e.hookError("secret")
		e.log.Error("secret generation failed", zap.Error(err), zap.Int("gameType", p.GameType))
		return nil, apperr.Wrap(apperr.CodeUnknown, "could not start the game", err)
	}

	now, err := e.store.ServerTimestamp(ctx)
	if err != nil {
		return nil, e.storageErr("start", err)
	}

	sess := Session{
		ID:              uuid.NewString(),
		SecretDigits:    secret,
		GameType:        p.GameType,
		AttemptsAllowed: p.Attempts,
		AttemptsUsed:    0,
		BetAmount:       p.BetAmount,
		Odds:            p.Odds,
		Status:          StatusActive,
		WinAmount:       decimal.Zero,
		CreatedAt:       now,
	}
	newBal := bal.Sub(p.BetAmount)

	sessB, _ := json.Marshal(sess)
	balB, _ := json.Marshal(newBal)
	writes := []store.Write{
		store.Put(balancePath(userID), balB),
		store.Put(gamePath(userID), sessB),
	}
	archivedID := ""
	if cur != nil {
		entry := newHistoryEntry(userID, *cur, now)
		entryB, _ := json.Marshal(entry)
		archivedID = entry.ID
		writes = append(writes, store.Put(historyPath(userID, entry.ID), entryB))
	}
	conds := []store.Condition{
		store.Expect(balancePath(userID), balRaw),
		store.Expect(gamePath(userID), gameRaw),
	}
	if err := e.store.Update(ctx, conds, writes...); err != nil {
		return nil, e.storageErr("start", err)
	}

	if archivedID != "" {
		e.hookArchived()
		e.log.Info("previous game archived on start", zap.String("userId", userID), zap.String("entryId", archivedID))
	}
	e.hookStarted()
	e.log.Info("game started",
		zap.String("userId", userID),
		zap.String("gameId", sess.ID),
		zap.Int("gameType", sess.GameType),
		zap.Int("attempts", sess.AttemptsAllowed),
		zap.String("bet", sess.BetAmount.String()),
		zap.String("odds", sess.Odds.String()),
		zap.String("balance", newBal.String()),
	)

	if e.publ != nil {
		if err := e.publ.PublishGameStarted(ctx, events.GameStarted{
			GameID:    sess.ID,
			UserID:    userID,
			GameType:  sess.GameType,
			Attempts:  sess.AttemptsAllowed,
			BetAmount: sess.BetAmount,
			Odds:      sess.Odds,
		}); err != nil {
			e.hookError("publish")
			e.log.Warn("publish game_started failed", zap.String("gameId", sess.ID), zap.Error(err))
		}
	}

	return &StartResult{
		GameID:     sess.ID,
		GameType:   sess.GameType,
		Attempts:   sess.AttemptsAllowed,
		Odds:       sess.Odds,
		BetAmount:  sess.BetAmount,
		NewBalance: newBal,
	}, nil
}

// Status é somente leitura: o crédito inicial é reportado mas não gravado.
func (e *Engine) Status(ctx context.Context, userID string) (*StatusView, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}
	bal, balRaw, err := e.readBalance(ctx, userID)
	if err != nil {
		return nil, e.storageErr("status", err)
	}
	if balRaw == nil || bal.IsZero() {
		bal = e.rules.StartingBalance
	}
	cur, _, err := e.readGame(ctx, userID)
	if err != nil {
		return nil, e.storageErr("status", err)
	}

	v := &StatusView{Balance: bal}
	if cur == nil {
		return v, nil
	}
	v.HasGame = true
	v.HasActiveGame = cur.Status == StatusActive
	v.GameType = cur.GameType
	v.AttemptsAllowed = cur.AttemptsAllowed
	v.AttemptsUsed = cur.AttemptsUsed
	v.BetAmount = cur.BetAmount
	v.Odds = cur.Odds
	v.Status = cur.Status
	v.WinAmount = cur.WinAmount
	return v, nil
}

// Guess avalia um palpite. attemptsUsed e o desfecho (e o crédito em
// vitória) são gravados juntos.
func (e *Engine) Guess(ctx context.Context, userID string, guess []int) (*GuessResult, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}

	unlock := e.locks.lock(userID)
	defer unlock()

	cur, gameRaw, err := e.readGame(ctx, userID)
	if err != nil {
		return nil, e.storageErr("guess", err)
	}
	switch {
	case cur == nil:
		return nil, apperr.New(apperr.CodeNoActiveSession, "no active game found, start a new game")
	case cur.Status != StatusActive:
		return nil, apperr.New(apperr.CodeSessionNotActive, "this game is already over")
	case cur.AttemptsUsed >= cur.AttemptsAllowed:
		return nil, apperr.New(apperr.CodeNoAttemptsRemaining, "no attempts remaining")
	}
	n := len(cur.SecretDigits)
	if !validGuess(guess, n) {
		return nil, apperr.New(apperr.CodeInvalidGuess, "enter "+strconv.Itoa(n)+" digits between 0 and 9")
	}

	positions, numbers := Score(cur.SecretDigits, guess)
	next := *cur
	next.AttemptsUsed++
	remaining := next.AttemptsAllowed - next.AttemptsUsed

	res := &GuessResult{
		ExactMatch:        positions == n,
		CorrectPositions:  positions,
		CorrectNumbers:    numbers,
		RemainingAttempts: remaining,
		WinAmount:         decimal.Zero,
	}

	conds := []store.Condition{store.Expect(gamePath(userID), gameRaw)}
	var writes []store.Write
	payout := decimal.Zero
	var balance decimal.Decimal
	var balRaw []byte

	if res.ExactMatch || remaining <= 0 {
		now, err := e.store.ServerTimestamp(ctx)
		if err != nil {
			return nil, e.storageErr("guess", err)
		}
		next.EndedAt = now
		next.UserLastGuess = append([]int(nil), guess...)

		if balance, balRaw, err = e.readBalance(ctx, userID); err != nil {
			return nil, e.storageErr("guess", err)
		}
	}

	switch {
	case res.ExactMatch:
		next.Status = StatusWon
		next.WinAmount = next.BetAmount.Mul(next.Odds)
		payout = next.BetAmount.Add(next.WinAmount)
		balance = balance.Add(payout)

		balB, _ := json.Marshal(balance)
		conds = append(conds, store.Expect(balancePath(userID), balRaw))
		writes = append(writes, store.Put(balancePath(userID), balB))

		res.GameWon = true
		res.WinAmount = next.WinAmount
		res.NewBalance = &balance
		res.Secret = append([]int(nil), next.SecretDigits...)
		res.Message = wonMessage(next.SecretDigits, next.WinAmount)
	case remaining <= 0:
		next.Status = StatusLost
		res.GameLost = true
		res.Secret = append([]int(nil), next.SecretDigits...)
		res.Message = lostMessage(next.SecretDigits)
	default:
		res.Message = feedbackMessage(positions, numbers, remaining)
	}

	sessB, _ := json.Marshal(next)
	writes = append(writes, store.Put(gamePath(userID), sessB))
	if err := e.store.Update(ctx, conds, writes...); err != nil {
		return nil, e.storageErr("guess", err)
	}

	outcome := "continue"
	if next.Status.Terminal() {
		outcome = string(next.Status)
	}
	e.hookGuess(outcome)
	e.log.Info("guess evaluated",
		zap.String("userId", userID),
		zap.String("gameId", next.ID),
		zap.Int("positions", positions),
		zap.Int("numbers", numbers),
		zap.Int("remaining", remaining),
		zap.String("outcome", outcome),
	)

	if next.Status.Terminal() {
		e.hookSettled(string(next.Status), payout)
		e.publishSettled(ctx, userID, next, payout, balance)
	}
	return res, nil
}

// Archive move a partida encerrada para o histórico e libera o slot.
// Sem partida, ou com partida ativa, é no-op.
func (e *Engine) Archive(ctx context.Context, userID string) (*ArchiveResult, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}

	unlock := e.locks.lock(userID)
	defer unlock()

	cur, gameRaw, err := e.readGame(ctx, userID)
	if err != nil {
		return nil, e.storageErr("archive", err)
	}
	if cur == nil || !cur.Status.Terminal() {
		return &ArchiveResult{}, nil
	}

	now, err := e.store.ServerTimestamp(ctx)
	if err != nil {
		return nil, e.storageErr("archive", err)
	}
	entry := newHistoryEntry(userID, *cur, now)
	entryB, _ := json.Marshal(entry)

	err = e.store.Update(ctx,
		[]store.Condition{store.Expect(gamePath(userID), gameRaw)},
		store.Put(historyPath(userID, entry.ID), entryB),
		store.Remove(gamePath(userID)),
	)
	if err != nil {
		return nil, e.storageErr("archive", err)
	}

	e.hookArchived()
	e.log.Info("game archived", zap.String("userId", userID), zap.String("entryId", entry.ID))
	return &ArchiveResult{Archived: true, EntryID: entry.ID}, nil
}

// History lista as partidas arquivadas, mais recentes primeiro.
func (e *Engine) History(ctx context.Context, userID string) ([]HistoryEntry, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}
	raw, err := e.store.List(ctx, historyPrefix(userID))
	if err != nil {
		return nil, e.storageErr("history", err)
	}

	out := make([]HistoryEntry, 0, len(raw))
	for key, b := range raw {
		var h HistoryEntry
		if err := json.Unmarshal(b, &h); err != nil {
			e.hookError("history")
			e.log.Warn("skipping malformed history entry", zap.String("userId", userID), zap.String("key", key), zap.Error(err))
			continue
		}
		if h.ID == "" {
			h.ID = key
		}
		out = append(out, h)
	}
	SortHistory(out)
	return out, nil
}

// EnsureBalance grava o crédito inicial quando o saldo está ausente ou zerado
// e retorna o saldo efetivo. Usado no login.
func (e *Engine) EnsureBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	if err := checkUser(userID); err != nil {
		return decimal.Zero, err
	}

	unlock := e.locks.lock(userID)
	defer unlock()

	bal, balRaw, err := e.readBalance(ctx, userID)
	if err != nil {
		return decimal.Zero, e.storageErr("balance", err)
	}
	if balRaw != nil && !bal.IsZero() {
		return bal, nil
	}
	b, _ := json.Marshal(e.rules.StartingBalance)
	if err := e.store.Update(ctx, []store.Condition{store.Expect(balancePath(userID), balRaw)}, store.Put(balancePath(userID), b)); err != nil {
		return decimal.Zero, e.storageErr("balance", err)
	}
	e.log.Info("starting balance granted", zap.String("userId", userID), zap.String("balance", e.rules.StartingBalance.String()))
	return e.rules.StartingBalance, nil
}

// SortHistory ordena por completedAt desc, depois createdAt desc; id desempata.
// Timestamps ausentes contam como 0.
func SortHistory(hs []HistoryEntry) {
	sort.SliceStable(hs, func(i, j int) bool {
		a, b := hs[i], hs[j]
		if a.CompletedAt != b.CompletedAt {
			return a.CompletedAt > b.CompletedAt
		}
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt > b.CreatedAt
		}
		return a.ID > b.ID
	})
}

func newHistoryEntry(userID string, s Session, completedAt int64) HistoryEntry {
	switch {
	case store.ValidSegment(s.ID):
	case s.CreatedAt > 0:
		s.ID = strconv.FormatInt(s.CreatedAt, 10)
	default:
		s.ID = strconv.FormatInt(completedAt, 10)
	}
	return HistoryEntry{Session: s, UserID: userID, CompletedAt: completedAt}
}

func (e *Engine) normalize(p StartParams) (StartParams, error) {
	if p.GameType < 0 || p.Attempts < 0 || p.Odds.IsNegative() {
		return p, apperr.New(apperr.CodeInvalidRequest, "game type, attempts and odds must be positive")
	}
	if p.GameType == 0 {
		p.GameType = e.rules.DefaultGameType
	}
	if p.Attempts == 0 {
		p.Attempts = e.rules.DefaultAttempts
	}
	if p.Odds.IsZero() {
		p.Odds = e.rules.DefaultOdds
	}
	if p.GameType > e.rules.MaxGameType {
		return p, apperr.New(apperr.CodeInvalidRequest, "game type must be between 1 and "+strconv.Itoa(e.rules.MaxGameType))
	}
	if !p.BetAmount.IsPositive() {
		return p, apperr.New(apperr.CodeInvalidRequest, "bet amount must be greater than zero")
	}
	return p, nil
}

func checkUser(userID string) error {
	if !store.ValidSegment(userID) {
		return apperr.New(apperr.CodeNotAuthenticated, "please log in")
	}
	return nil
}

// readGame retorna a partida e o valor bruto lido (nil se ausente) para o CAS.
func (e *Engine) readGame(ctx context.Context, userID string) (*Session, []byte, error) {
	raw, err := e.store.Get(ctx, gamePath(userID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, nil, err
	}
	return &s, raw, nil
}

func (e *Engine) readBalance(ctx context.Context, userID string) (decimal.Decimal, []byte, error) {
	raw, err := e.store.Get(ctx, balancePath(userID))
	if errors.Is(err, store.ErrNotFound) {
		return decimal.Zero, nil, nil
	}
	if err != nil {
		return decimal.Zero, nil, err
	}
	var d decimal.Decimal
	if err := json.Unmarshal(raw, &d); err != nil {
		return decimal.Zero, nil, err
	}
	return d, raw, nil
}

// persistGrant grava o crédito inicial quando a partida é recusada por saldo;
// falha aqui só é logada.
func (e *Engine) persistGrant(ctx context.Context, userID string, balRaw []byte) {
	b, _ := json.Marshal(e.rules.StartingBalance)
	err := e.store.Update(ctx, []store.Condition{store.Expect(balancePath(userID), balRaw)}, store.Put(balancePath(userID), b))
	if err != nil {
		e.hookError("balance")
		e.log.Warn("persist starting balance failed", zap.String("userId", userID), zap.Error(err))
	}
}

func (e *Engine) publishSettled(ctx context.Context, userID string, s Session, payout, balance decimal.Decimal) {
	if e.publ == nil {
		return
	}
	err := e.publ.PublishGameSettled(ctx, events.GameSettled{
		GameID:       s.ID,
		UserID:       userID,
		Status:       string(s.Status),
		GameType:     s.GameType,
		AttemptsUsed: s.AttemptsUsed,
		BetAmount:    s.BetAmount,
		Odds:         s.Odds,
		WinAmount:    s.WinAmount,
		Payout:       payout,
		Balance:      balance,
		CreatedAt:    s.CreatedAt,
		EndedAt:      s.EndedAt,
		Ts:           time.Now().UTC(),
	})
	if err != nil {
		e.hookError("publish")
		e.log.Warn("publish game_settled failed", zap.String("gameId", s.ID), zap.Error(err))
	}
}

func (e *Engine) storageErr(stage string, err error) error {
	e.hookError(stage)
	if errors.Is(err, store.ErrConflict) {
		e.log.Warn("concurrent update", zap.String("stage", stage))
		return apperr.Wrap(apperr.CodeConcurrentUpdate, "the game changed concurrently, please retry", err)
	}
	e.log.Error("record store failure", zap.String("stage", stage), zap.Error(err))
	return apperr.Wrap(apperr.CodeStorageUnavailable, "storage unavailable, please try again", err)
}

func (e *Engine) hookStarted() {
	if e.OnStarted != nil {
		e.OnStarted()
	}
}

func (e *Engine) hookGuess(outcome string) {
	if e.OnGuess != nil {
		e.OnGuess(outcome)
	}
}

func (e *Engine) hookSettled(status string, payout decimal.Decimal) {
	if e.OnSettled != nil {
		e.OnSettled(status, payout)
	}
}

func (e *Engine) hookArchived() {
	if e.OnArchived != nil {
		e.OnArchived()
	}
}

func (e *Engine) hookError(stage string) {
	if e.OnError != nil {
		e.OnError(stage)
	}
}
