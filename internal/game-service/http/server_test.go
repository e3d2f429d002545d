package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/radieske/number-guess-platform/internal/game"
	"github.com/radieske/number-guess-platform/internal/game-service/dto"
	"github.com/radieske/number-guess-platform/internal/identity"
	"github.com/radieske/number-guess-platform/internal/session"
	"github.com/radieske/number-guess-platform/internal/shared/apperr"
	"github.com/radieske/number-guess-platform/internal/store"
)

type fixedSecret []int

func (f fixedSecret) Generate(n int) ([]int, error) { return append([]int(nil), f[:n]...), nil }

func newTestAPI(t *testing.T) http.Handler {
	t.Helper()
	st := store.NewMemory()
	api := &API{
		Log:         zap.NewNop(),
		Engine:      game.NewEngine(zap.NewNop(), st, game.WithSecretGenerator(fixedSecret{3, 1, 4, 7, 0, 2, 5, 6, 8, 9})),
		Ledger:      session.NewLedger(session.NewMemoryStore(), "test-secret", time.Hour),
		Identity:    identity.NewRecordProvider(st, bcrypt.MinCost),
		ExposeCodes: true,
	}
	return api.Router()
}

type resp struct {
	code int
	body map[string]any
	raw  *httptest.ResponseRecorder
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) resp {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return serve(t, h, req, token)
}

func doForm(t *testing.T, h http.Handler, path, token string, form url.Values) resp {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return serve(t, h, req, token)
}

func serve(t *testing.T, h http.Handler, req *http.Request, token string) resp {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	out := map[string]any{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return resp{code: rec.Code, body: out, raw: rec}
}

// registerVerified cria a conta, verifica e retorna o token.
func registerVerified(t *testing.T, h http.Handler, email string) string {
	t.Helper()
	r := doJSON(t, h, http.MethodPost, "/auth/register", "", map[string]string{"email": email, "password": "s3cret-pass"})
	require.Equal(t, http.StatusCreated, r.code, r.body)
	assert.Equal(t, true, r.body["pending"])
	token := r.body["token"].(string)
	code := r.body["verificationCode"].(string)

	r = doJSON(t, h, http.MethodPost, "/auth/verify", token, map[string]string{"code": code})
	require.Equal(t, http.StatusOK, r.code, r.body)
	assert.Equal(t, "40000", r.body["balance"])
	return token
}

func TestFullGameFlow(t *testing.T) {
	h := newTestAPI(t)
	token := registerVerified(t, h, "ana@example.com")

	r := doJSON(t, h, http.MethodPost, "/game/start", token, map[string]any{"gameType": 4, "betAmount": 100, "attempts": 3, "odds": 8})
	require.Equal(t, http.StatusOK, r.code, r.body)
	assert.Equal(t, "39900", r.body["newBalance"])
	assert.Equal(t, "Numbers generated successfully", r.body["message"])
	assert.NotContains(t, r.raw.Body.String(), "secret")

	r = doJSON(t, h, http.MethodGet, "/game/status", token, nil)
	require.Equal(t, http.StatusOK, r.code)
	assert.Equal(t, true, r.body["hasActiveGame"])
	assert.Equal(t, "active", r.body["status"])
	assert.Equal(t, float64(3), r.body["attempts"])

	r = doForm(t, h, "/game/guess", token, url.Values{"guess1": {"3"}, "guess2": {"1"}, "guess3": {"7"}, "guess4": {"4"}})
	require.Equal(t, http.StatusOK, r.code, r.body)
	assert.Equal(t, float64(2), r.body["correctPositions"])
	assert.Equal(t, float64(4), r.body["correctNumbers"])
	assert.Equal(t, float64(2), r.body["remainingAttempts"])
	assert.Nil(t, r.body["numbers"])

	r = doJSON(t, h, http.MethodPost, "/game/guess", token, map[string]any{"digits": []int{3, 1, 4, 7}})
	require.Equal(t, http.StatusOK, r.code, r.body)
	assert.Equal(t, true, r.body["gameWon"])
	assert.Equal(t, "800", r.body["winAmount"])
	assert.Equal(t, "40800", r.body["newBalance"])
	assert.Equal(t, []any{float64(3), float64(1), float64(4), float64(7)}, r.body["numbers"])

	r = doJSON(t, h, http.MethodPost, "/game/guess", token, map[string]any{"digits": []int{3, 1, 4, 7}})
	assert.Equal(t, http.StatusConflict, r.code)
	assert.Equal(t, "SESSION_NOT_ACTIVE", r.body["code"])

	r = doJSON(t, h, http.MethodPost, "/game/archive", token, nil)
	require.Equal(t, http.StatusOK, r.code)
	assert.Equal(t, true, r.body["archived"])
	assert.Equal(t, "Completed game moved to history", r.body["message"])

	r = doJSON(t, h, http.MethodPost, "/game/archive", token, nil)
	require.Equal(t, http.StatusOK, r.code)
	assert.Equal(t, false, r.body["archived"])

	r = doJSON(t, h, http.MethodGet, "/game/history", token, nil)
	require.Equal(t, http.StatusOK, r.code)
	hist := r.body["history"].([]any)
	require.Len(t, hist, 1)
	entry := hist[0].(map[string]any)
	assert.Equal(t, "won", entry["status"])
	assert.NotEmpty(t, entry["id"])
}

func TestFormStartUsesDefaults(t *testing.T) {
	h := newTestAPI(t)
	token := registerVerified(t, h, "bo@example.com")

	r := doForm(t, h, "/game/start", token, url.Values{"betAmount": {"250"}, "gameType": {""}})
	require.Equal(t, http.StatusOK, r.code, r.body)
	assert.Equal(t, float64(4), r.body["gameType"])
	assert.Equal(t, float64(3), r.body["attempts"])
	assert.Equal(t, "8", r.body["odds"])
	assert.Equal(t, "39750", r.body["newBalance"])
}

func TestErrorEnvelopes(t *testing.T) {
	h := newTestAPI(t)

	r := doJSON(t, h, http.MethodGet, "/game/status", "", nil)
	assert.Equal(t, http.StatusUnauthorized, r.code)
	assert.Equal(t, "NOT_AUTHENTICATED", r.body["code"])
	assert.Equal(t, false, r.body["success"])

	reg := doJSON(t, h, http.MethodPost, "/auth/register", "", map[string]string{"email": "cy@example.com", "password": "s3cret-pass"})
	pending := reg.body["token"].(string)
	r = doJSON(t, h, http.MethodPost, "/game/start", pending, map[string]any{"betAmount": 10})
	assert.Equal(t, http.StatusUnauthorized, r.code, "pending session must not play")

	token := registerVerified(t, h, "dee@example.com")

	r = doJSON(t, h, http.MethodPost, "/game/guess", token, map[string]any{"digits": []int{1, 2, 3, 4}})
	assert.Equal(t, http.StatusNotFound, r.code)
	assert.Equal(t, "NO_ACTIVE_SESSION", r.body["code"])

	r = doJSON(t, h, http.MethodPost, "/game/start", token, map[string]any{"betAmount": 999999})
	assert.Equal(t, http.StatusPaymentRequired, r.code)
	assert.Equal(t, "INSUFFICIENT_FUNDS", r.body["code"])

	r = doJSON(t, h, http.MethodPost, "/game/start", token, map[string]any{"betAmount": 0})
	assert.Equal(t, http.StatusBadRequest, r.code)

	r = doJSON(t, h, http.MethodPost, "/game/start", token, map[string]any{"betAmount": 10})
	require.Equal(t, http.StatusOK, r.code)
	r = doJSON(t, h, http.MethodPost, "/game/start", token, map[string]any{"betAmount": 10})
	assert.Equal(t, http.StatusConflict, r.code)
	assert.Equal(t, "SESSION_ALREADY_ACTIVE", r.body["code"])

	r = doForm(t, h, "/game/guess", token, url.Values{"guess1": {"1"}, "guess2": {"x"}})
	assert.Equal(t, http.StatusBadRequest, r.code)
	assert.Equal(t, "INVALID_GUESS", r.body["code"])

	r = doJSON(t, h, http.MethodPost, "/game/guess", token, map[string]any{"digits": []int{1, 2}})
	assert.Equal(t, http.StatusBadRequest, r.code)
	assert.Equal(t, "INVALID_GUESS", r.body["code"])

	r = doJSON(t, h, http.MethodPost, "/auth/register", "", map[string]string{"email": "dee@example.com", "password": "s3cret-pass"})
	assert.Equal(t, http.StatusConflict, r.code)
	assert.Equal(t, "IDENTITY_EXISTS", r.body["code"])
}

func TestLoginAndLogout(t *testing.T) {
	h := newTestAPI(t)
	registerVerified(t, h, "eve@example.com")

	r := doJSON(t, h, http.MethodPost, "/auth/login", "", map[string]string{"email": "eve@example.com", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, r.code)
	assert.Equal(t, "INVALID_CREDENTIALS", r.body["code"])

	r = doForm(t, h, "/auth/login", "", url.Values{"email": {"eve@example.com"}, "password": {"s3cret-pass"}})
	require.Equal(t, http.StatusOK, r.code, r.body)
	assert.Equal(t, "40000", r.body["balance"])
	assert.Equal(t, false, r.body["pending"])
	token := r.body["token"].(string)

	var cookie *http.Cookie
	for _, c := range r.raw.Result().Cookies() {
		if c.Name == sessionCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)

	req := httptest.NewRequest(http.MethodGet, "/game/status", nil)
	req.AddCookie(cookie)
	r = serve(t, h, req, "")
	assert.Equal(t, http.StatusOK, r.code)

	r = doJSON(t, h, http.MethodPost, "/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, r.code)

	r = doJSON(t, h, http.MethodGet, "/game/status", token, nil)
	assert.Equal(t, http.StatusUnauthorized, r.code)
}

func TestGuessChecksGameBeforeDigits(t *testing.T) {
	h := newTestAPI(t)
	token := registerVerified(t, h, "fay@example.com")

	empty := httptest.NewRequest(http.MethodPost, "/game/guess", nil)
	empty.Header.Set("Content-Type", "application/json")
	bad := []resp{
		doForm(t, h, "/game/guess", token, url.Values{"guess1": {"x"}}),
		serve(t, h, empty, token),
		doJSON(t, h, http.MethodPost, "/game/guess", token, map[string]any{"digits": "nope"}),
	}
	for _, r := range bad {
		assert.Equal(t, http.StatusNotFound, r.code, r.body)
		assert.Equal(t, "NO_ACTIVE_SESSION", r.body["code"])
	}

	r := doJSON(t, h, http.MethodPost, "/game/start", token, map[string]any{"betAmount": 10})
	require.Equal(t, http.StatusOK, r.code, r.body)
	r = doJSON(t, h, http.MethodPost, "/game/guess", token, map[string]any{"digits": []any{3, "1", 4, 7}})
	require.Equal(t, http.StatusOK, r.code, r.body)
	require.Equal(t, true, r.body["gameWon"])

	r = doForm(t, h, "/game/guess", token, url.Values{"guess1": {"x"}})
	assert.Equal(t, http.StatusConflict, r.code)
	assert.Equal(t, "SESSION_NOT_ACTIVE", r.body["code"])

	r = doJSON(t, h, http.MethodPost, "/game/guess", token, map[string]any{})
	assert.Equal(t, "SESSION_NOT_ACTIVE", r.body["code"])
}

func TestGuessInvalidDigitsWithActiveGame(t *testing.T) {
	h := newTestAPI(t)
	token := registerVerified(t, h, "gus@example.com")
	r := doJSON(t, h, http.MethodPost, "/game/start", token, map[string]any{"betAmount": 10})
	require.Equal(t, http.StatusOK, r.code, r.body)

	for _, body := range []map[string]any{
		{},
		{"digits": []any{1, 2, 3, 12}},
		{"digits": []any{1, "two", 3, 4}},
	} {
		r = doJSON(t, h, http.MethodPost, "/game/guess", token, body)
		assert.Equal(t, http.StatusBadRequest, r.code, body)
		assert.Equal(t, "INVALID_GUESS", r.body["code"])
	}

	r = doJSON(t, h, http.MethodGet, "/game/status", token, nil)
	assert.Equal(t, float64(0), r.body["attemptsUsed"])
}

func TestStartRejectsOutOfRangeParams(t *testing.T) {
	h := newTestAPI(t)
	token := registerVerified(t, h, "hal@example.com")

	for _, body := range []string{
		`{"gameType":18446744073709551620,"attempts":3,"betAmount":100}`,
		`{"gameType":4,"attempts":18446744073709551619,"betAmount":100}`,
		`{"gameType":"11","betAmount":100}`,
		`{"gameType":-1,"betAmount":100}`,
		`{"attempts":2147483648,"betAmount":100}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/game/start", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r := serve(t, h, req, token)
		assert.Equal(t, http.StatusBadRequest, r.code, body)
		assert.Equal(t, "INVALID_REQUEST", r.body["code"], body)
	}

	r := doJSON(t, h, http.MethodGet, "/game/status", token, nil)
	assert.Equal(t, false, r.body["hasGame"])
	assert.Equal(t, "40000", r.body["balance"])
}

func TestStartParamsBounds(t *testing.T) {
	huge, err := decimal.NewFromString("18446744073709551620")
	require.NoError(t, err)

	_, err = startParams(dto.StartGameRequest{GameType: huge, BetAmount: decimal.NewFromInt(1)}, 10)
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidRequest))

	_, err = startParams(dto.StartGameRequest{Attempts: huge, BetAmount: decimal.NewFromInt(1)}, 10)
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidRequest))

	p, err := startParams(dto.StartGameRequest{
		GameType:  decimal.NewFromInt(10),
		Attempts:  decimal.NewFromInt(math.MaxInt32),
		BetAmount: decimal.NewFromInt(1),
	}, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, p.GameType)
	assert.Equal(t, math.MaxInt32, p.Attempts)
}

func TestVerifyRequiresIssuedCode(t *testing.T) {
	h := newTestAPI(t)

	r := doJSON(t, h, http.MethodPost, "/auth/register", "", map[string]string{"email": "ivy@example.com", "password": "s3cret-pass"})
	require.Equal(t, http.StatusCreated, r.code, r.body)
	token := r.body["token"].(string)
	first := r.body["verificationCode"].(string)
	require.Len(t, first, 6)

	r = doJSON(t, h, http.MethodPost, "/auth/verify", token, nil)
	assert.Equal(t, http.StatusUnauthorized, r.code)
	assert.Equal(t, "INVALID_CREDENTIALS", r.body["code"])

	r = doJSON(t, h, http.MethodPost, "/game/start", token, map[string]any{"betAmount": 10})
	assert.Equal(t, http.StatusUnauthorized, r.code, "still pending after a failed verify")

	// login sem verificação gera um novo código
	r = doJSON(t, h, http.MethodPost, "/auth/login", "", map[string]string{"email": "ivy@example.com", "password": "s3cret-pass"})
	require.Equal(t, http.StatusOK, r.code, r.body)
	assert.Equal(t, true, r.body["pending"])
	token = r.body["token"].(string)
	fresh := r.body["verificationCode"].(string)

	r = doForm(t, h, "/auth/verify", token, url.Values{"code": {fresh}})
	require.Equal(t, http.StatusOK, r.code, r.body)
	assert.Equal(t, "40000", r.body["balance"])

	r = doJSON(t, h, http.MethodPost, "/game/start", token, map[string]any{"betAmount": 10})
	assert.Equal(t, http.StatusOK, r.code, r.body)
}

type captureSender struct{ codes map[string]string }

func (c *captureSender) SendVerificationCode(_ context.Context, email, code string) error {
	c.codes[email] = code
	return nil
}

func TestCodesAreDeliveredNotExposed(t *testing.T) {
	st := store.NewMemory()
	sender := &captureSender{codes: map[string]string{}}
	h := (&API{
		Log:      zap.NewNop(),
		Engine:   game.NewEngine(zap.NewNop(), st),
		Ledger:   session.NewLedger(session.NewMemoryStore(), "test-secret", time.Hour),
		Identity: identity.NewRecordProvider(st, bcrypt.MinCost),
		Codes:    sender,
	}).Router()

	r := doJSON(t, h, http.MethodPost, "/auth/register", "", map[string]string{"email": "jo@example.com", "password": "s3cret-pass"})
	require.Equal(t, http.StatusCreated, r.code, r.body)
	assert.NotContains(t, r.body, "verificationCode")
	require.Len(t, sender.codes["jo@example.com"], 6)

	r = doJSON(t, h, http.MethodPost, "/auth/verify", r.body["token"].(string), map[string]string{"code": sender.codes["jo@example.com"]})
	assert.Equal(t, http.StatusOK, r.code, r.body)
}
