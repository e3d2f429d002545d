package gameclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/radieske/number-guess-platform/internal/game"
	httpapi "github.com/radieske/number-guess-platform/internal/game-service/http"
	"github.com/radieske/number-guess-platform/internal/identity"
	"github.com/radieske/number-guess-platform/internal/session"
	"github.com/radieske/number-guess-platform/internal/store"
)

type fixedSecret []int

func (f fixedSecret) Generate(n int) ([]int, error) { return append([]int(nil), f[:n]...), nil }

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	st := store.NewMemory()
	api := &httpapi.API{
		Log:         zap.NewNop(),
		Engine:      game.NewEngine(zap.NewNop(), st, game.WithSecretGenerator(fixedSecret{3, 1, 4, 7, 0, 2, 5, 6, 8, 9})),
		Ledger:      session.NewLedger(session.NewMemoryStore(), "test-secret", time.Hour),
		Identity:    identity.NewRecordProvider(st, bcrypt.MinCost),
		ExposeCodes: true,
	}
	srv := httptest.NewServer(api.Router())
	t.Cleanup(srv.Close)
	return srv
}

func apiCode(t *testing.T, err error) string {
	t.Helper()
	var ae *APIError
	require.True(t, errors.As(err, &ae), "expected APIError, got %v", err)
	return ae.Code
}

func TestClientPlaysFullGame(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()
	c := New(srv.URL)

	code, err := c.Register(ctx, "robot@example.com", "supersecret")
	require.NoError(t, err)

	_, err = c.Status(ctx)
	assert.Equal(t, "NOT_AUTHENTICATED", apiCode(t, err))

	_, err = c.Verify(ctx, "")
	assert.Equal(t, "INVALID_CREDENTIALS", apiCode(t, err))

	bal, err := c.Verify(ctx, code)
	require.NoError(t, err)
	assert.True(t, bal.Equal(decimal.NewFromInt(40000)))

	out, err := c.Play(ctx, game.StartParams{GameType: 2, Attempts: 20, BetAmount: decimal.NewFromInt(100)}, 3)
	require.NoError(t, err)
	assert.True(t, out.Won)
	assert.Equal(t, []int{3, 1}, out.Secret)
	assert.True(t, out.Payout.Equal(decimal.NewFromInt(900)))
	assert.True(t, out.NewBalance.Equal(decimal.NewFromInt(40800)))

	hist, err := c.History(ctx)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, out.GameID, hist[0].ID)
	assert.Equal(t, game.StatusWon, hist[0].Status)

	st, err := c.Status(ctx)
	require.NoError(t, err)
	assert.False(t, st.HasGame)
	assert.True(t, st.Balance.Equal(decimal.NewFromInt(40800)))
}

func TestClientLoginAndErrors(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()

	c := New(srv.URL)
	code, err := c.Register(ctx, "robot@example.com", "supersecret")
	require.NoError(t, err)
	_, err = c.Verify(ctx, code)
	require.NoError(t, err)

	dup := New(srv.URL)
	_, err = dup.Register(ctx, "robot@example.com", "supersecret")
	assert.Equal(t, "IDENTITY_EXISTS", apiCode(t, err))

	_, err = dup.Login(ctx, "robot@example.com", "wrong-password")
	assert.Equal(t, "INVALID_CREDENTIALS", apiCode(t, err))

	res, err := dup.Login(ctx, "robot@example.com", "supersecret")
	require.NoError(t, err)
	assert.False(t, res.Pending)
	require.NotNil(t, res.Balance)
	assert.NotEmpty(t, dup.Token)

	_, err = dup.Guess(ctx, []int{1, 2, 3, 4})
	assert.Equal(t, "NO_ACTIVE_SESSION", apiCode(t, err))

	_, err = dup.Start(ctx, game.StartParams{BetAmount: decimal.NewFromInt(50000)})
	var ae *APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusPaymentRequired, ae.Status)
	assert.Equal(t, "INSUFFICIENT_FUNDS", ae.Code)

	started, err := dup.Start(ctx, game.StartParams{BetAmount: decimal.NewFromInt(10)})
	require.NoError(t, err)
	assert.Equal(t, 4, started.GameType)
	assert.Equal(t, 3, started.Attempts)

	arch, err := dup.Archive(ctx)
	require.NoError(t, err)
	assert.False(t, arch.Archived)
}

func TestPlayRejectsUnsupportedLengthBeforeBetting(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()
	c := New(srv.URL)

	code, err := c.Register(ctx, "wide@example.com", "supersecret")
	require.NoError(t, err)
	_, err = c.Verify(ctx, code)
	require.NoError(t, err)

	_, err = c.Play(ctx, game.StartParams{GameType: MaxSolverLength + 1, BetAmount: decimal.NewFromInt(100)}, 1)
	require.Error(t, err)

	st, err := c.Status(ctx)
	require.NoError(t, err)
	assert.False(t, st.HasGame)
	assert.True(t, st.Balance.Equal(decimal.NewFromInt(40000)))
}
