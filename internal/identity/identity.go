// Package identity é o provedor de identidade: cadastro, autenticação por
// email/senha e verificação da conta.
package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/radieske/number-guess-platform/internal/shared/apperr"
	"github.com/radieske/number-guess-platform/internal/store"
)

const MinPasswordLen = 8

// MaxCodeTries invalida o código pendente após esse número de erros;
// um novo código sai no próximo login.
const MaxCodeTries = 5

type Identity struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"createdAt"`

	// VerificationCode só é preenchido por Create e IssueCode; nunca é gravado.
	VerificationCode string `json:"-"`
}

// Profile são os dados opcionais do cadastro.
type Profile struct {
	Username  string `json:"username,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

type Provider interface {
	Create(ctx context.Context, email, password string, p Profile) (*Identity, error)
	Authenticate(ctx context.Context, email, password string) (*Identity, error)
	// IssueCode troca o código de verificação pendente; "" se a conta já está verificada.
	IssueCode(ctx context.Context, userID string) (string, error)
	Verify(ctx context.Context, userID, code string) error
}

type credential struct {
	Identity
	PasswordHash string `json:"passwordHash"`
}

type profileRecord struct {
	Identity
	Profile
	CodeHash  string `json:"codeHash,omitempty"`
	CodeTries int    `json:"codeTries,omitempty"`
}

// RecordProvider guarda as credenciais no record store:
// identities/{sha256(email)} aponta para o usuário e users/{id}/profile tem o perfil.
type RecordProvider struct {
	store store.RecordStore
	cost  int
	now   func() time.Time
}

func NewRecordProvider(st store.RecordStore, cost int) *RecordProvider {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &RecordProvider{store: st, cost: cost, now: time.Now}
}

func emailKey(email string) string {
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:])
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperr.New(apperr.CodeInvalidRequest, "invalid email address")
	}
	return email, nil
}

func credentialPath(email string) string { return store.Join("identities", emailKey(email)) }

func profilePath(userID string) string { return store.Join("users", userID, "profile") }

func (p *RecordProvider) Create(ctx context.Context, email, password string, prof Profile) (*Identity, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < MinPasswordLen {
		return nil, apperr.New(apperr.CodeInvalidRequest, "password must be at least 8 characters long")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInvalidRequest, "password is not acceptable", err)
	}

	code, err := newCode()
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeUnknown, "could not register, please try again", err)
	}

	id := Identity{UserID: uuid.NewString(), Email: email, CreatedAt: p.now().UTC()}
	credB, _ := json.Marshal(credential{Identity: id, PasswordHash: string(hash)})
	profB, _ := json.Marshal(profileRecord{Identity: id, Profile: prof, CodeHash: codeHash(code)})

	err = p.store.Update(ctx,
		[]store.Condition{store.Expect(credentialPath(email), nil)},
		store.Put(credentialPath(email), credB),
		store.Put(profilePath(id.UserID), profB),
	)
	if errors.Is(err, store.ErrConflict) {
		return nil, apperr.New(apperr.CodeIdentityExists, "this email is already registered, try logging in")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorageUnavailable, "could not register, please try again", err)
	}
	id.VerificationCode = code
	return &id, nil
}

func (p *RecordProvider) Authenticate(ctx context.Context, email, password string) (*Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperr.New(apperr.CodeInvalidRequest, "email and password are required")
	}
	cred, _, err := p.loadCredential(ctx, email)
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)) != nil {
		return nil, apperr.New(apperr.CodeInvalidCredentials, "invalid email or password")
	}
	id := cred.Identity
	return &id, nil
}

func (p *RecordProvider) IssueCode(ctx context.Context, userID string) (string, error) {
	prof, profRaw, err := p.loadProfile(ctx, userID)
	if err != nil {
		return "", err
	}
	if prof.Verified {
		return "", nil
	}
	code, err := newCode()
	if err != nil {
		return "", apperr.Wrap(apperr.CodeUnknown, "could not issue verification code", err)
	}
	prof.CodeHash, prof.CodeTries = codeHash(code), 0
	profB, _ := json.Marshal(prof)

	err = p.store.Update(ctx,
		[]store.Condition{store.Expect(profilePath(userID), profRaw)},
		store.Put(profilePath(userID), profB),
	)
	if errors.Is(err, store.ErrConflict) {
		return "", apperr.Wrap(apperr.CodeConcurrentUpdate, "account changed concurrently, please retry", err)
	}
	if err != nil {
		return "", apperr.Wrap(apperr.CodeStorageUnavailable, "could not issue verification code", err)
	}
	return code, nil
}

// Verify confere o código pendente e marca a conta como verificada nos dois registros.
// Conta já verificada é no-op.
func (p *RecordProvider) Verify(ctx context.Context, userID, code string) error {
	prof, profRaw, err := p.loadProfile(ctx, userID)
	if err != nil {
		return err
	}
	if prof.Verified {
		return nil
	}
	if prof.CodeHash == "" {
		return apperr.New(apperr.CodeInvalidCredentials, "verification code expired, log in to get a new one")
	}
	if subtle.ConstantTimeCompare([]byte(prof.CodeHash), []byte(codeHash(strings.TrimSpace(code)))) != 1 {
		p.failCode(ctx, userID, *prof, profRaw)
		return apperr.New(apperr.CodeInvalidCredentials, "invalid verification code")
	}

	cred, credRaw, err := p.loadCredential(ctx, prof.Email)
	if err != nil {
		return err
	}
	cred.Verified = true
	prof.Verified = true
	prof.CodeHash, prof.CodeTries = "", 0
	credB, _ := json.Marshal(cred)
	profB, _ := json.Marshal(prof)

	err = p.store.Update(ctx,
		[]store.Condition{
			store.Expect(credentialPath(prof.Email), credRaw),
			store.Expect(profilePath(userID), profRaw),
		},
		store.Put(credentialPath(prof.Email), credB),
		store.Put(profilePath(userID), profB),
	)
	if errors.Is(err, store.ErrConflict) {
		return apperr.Wrap(apperr.CodeConcurrentUpdate, "account changed concurrently, please retry", err)
	}
	if err != nil {
		return apperr.Wrap(apperr.CodeStorageUnavailable, "could not verify account", err)
	}
	return nil
}

// failCode conta a tentativa errada; na última o código é descartado.
// Falha de escrita aqui é ignorada: o erro devolvido já é de código inválido.
func (p *RecordProvider) failCode(ctx context.Context, userID string, prof profileRecord, profRaw []byte) {
	prof.CodeTries++
	if prof.CodeTries >= MaxCodeTries {
		prof.CodeHash, prof.CodeTries = "", 0
	}
	b, _ := json.Marshal(prof)
	_ = p.store.Update(ctx, []store.Condition{store.Expect(profilePath(userID), profRaw)}, store.Put(profilePath(userID), b))
}

func (p *RecordProvider) loadProfile(ctx context.Context, userID string) (*profileRecord, []byte, error) {
	if !store.ValidSegment(userID) {
		return nil, nil, apperr.New(apperr.CodeNotAuthenticated, "no pending verification found")
	}
	raw, err := p.store.Get(ctx, profilePath(userID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, apperr.New(apperr.CodeNotAuthenticated, "no pending verification found")
	}
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.CodeStorageUnavailable, "could not load account", err)
	}
	var prof profileRecord
	if err := json.Unmarshal(raw, &prof); err != nil {
		return nil, nil, apperr.Wrap(apperr.CodeStorageUnavailable, "could not load account", err)
	}
	return &prof, raw, nil
}

func (p *RecordProvider) loadCredential(ctx context.Context, email string) (*credential, []byte, error) {
	raw, err := p.store.Get(ctx, credentialPath(email))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, apperr.New(apperr.CodeInvalidCredentials, "invalid email or password")
	}
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.CodeStorageUnavailable, "could not sign in, please try again", err)
	}
	var c credential
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, nil, apperr.Wrap(apperr.CodeStorageUnavailable, "could not sign in, please try again", err)
	}
	return &c, raw, nil
}

// newCode gera um código numérico de 6 dígitos.
func newCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func codeHash(code string) string {
	sum := sha256.Sum256([]byte("verify:" + code))
	return hex.EncodeToString(sum[:])
}
