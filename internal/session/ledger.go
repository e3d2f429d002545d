// Package session mantém o ledger de sessões: quem é o usuário da requisição
// e o saldo em cache, que só é atualizado a partir do retorno do motor de jogo.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/radieske/number-guess-platform/internal/shared/apperr"
)

// Session é o estado de uma sessão autenticada.
// Pending marca a identidade criada e ainda não verificada; ela não pode jogar.
type Session struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Email     string          `json:"email"`
	Pending   bool            `json:"pending"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"createdAt"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

type Ledger struct {
	store  Store
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewLedger(st Store, secret string, ttl time.Duration) *Ledger {
	return &Ledger{store: st, secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Open cria a sessão e devolve o token assinado que a referencia.
func (l *Ledger) Open(ctx context.Context, userID, email string, pending bool, balance decimal.Decimal) (string, *Session, error) {
	now := l.now()
	s := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Email:     email,
		Pending:   pending,
		Balance:   balance,
		CreatedAt: now,
		ExpiresAt: now.Add(l.ttl),
	}
	if err := l.store.Save(ctx, s, l.ttl); err != nil {
		return "", nil, apperr.Wrap(apperr.CodeStorageUnavailable, "could not open session", err)
	}
	token, err := l.sign(s)
	if err != nil {
		return "", nil, apperr.Wrap(apperr.CodeUnknown, "could not open session", err)
	}
	return token, s, nil
}

// Resolve valida o token e carrega a sessão correspondente.
func (l *Ledger) Resolve(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, apperr.New(apperr.CodeNotAuthenticated, "please log in")
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return l.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(l.now))
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeNotAuthenticated, "session expired, please log in", err)
	}

	s, err := l.store.Load(ctx, claims.ID)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.New(apperr.CodeNotAuthenticated, "session expired, please log in")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorageUnavailable, "could not load session", err)
	}
	if s.UserID != claims.Subject {
		return nil, apperr.New(apperr.CodeNotAuthenticated, "please log in")
	}
	return s, nil
}

// RefreshBalance grava o saldo devolvido pelo motor de jogo no cache da sessão.
func (l *Ledger) RefreshBalance(ctx context.Context, s *Session, balance decimal.Decimal) error {
	s.Balance = balance
	return l.save(ctx, s)
}

// Promote finaliza a verificação: a sessão pendente vira sessão completa.
func (l *Ledger) Promote(ctx context.Context, s *Session, balance decimal.Decimal) error {
	s.Pending = false
	s.Balance = balance
	return l.save(ctx, s)
}

func (l *Ledger) Close(ctx context.Context, s *Session) error {
	if err := l.store.Delete(ctx, s.ID); err != nil {
		return apperr.Wrap(apperr.CodeStorageUnavailable, "could not close session", err)
	}
	return nil
}

// save mantém a expiração original da sessão.
func (l *Ledger) save(ctx context.Context, s *Session) error {
	ttl := s.ExpiresAt.Sub(l.now())
	if ttl <= 0 {
		return apperr.New(apperr.CodeNotAuthenticated, "session expired, please log in")
	}
	if err := l.store.Save(ctx, s, ttl); err != nil {
		return apperr.Wrap(apperr.CodeStorageUnavailable, "could not update session", err)
	}
	return nil
}

func (l *Ledger) sign(s *Session) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        s.ID,
		Subject:   s.UserID,
		IssuedAt:  jwt.NewNumericDate(s.CreatedAt),
		ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(l.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return tok, nil
}
