package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/number-guess-platform/pkg/contracts/events"
)

func TestInsertSettlement(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRepo(db)

	ev := events.GameSettled{
		GameID: "g1", UserID: "u1", Status: "won", GameType: 4, AttemptsUsed: 1,
		BetAmount: decimal.NewFromInt(100), Odds: decimal.NewFromInt(8),
		WinAmount: decimal.NewFromInt(800), Payout: decimal.NewFromInt(900), Balance: decimal.NewFromInt(40800),
		CreatedAt: 10, EndedAt: 20, Ts: time.Unix(30, 0).UTC(),
	}
	insert := regexp.QuoteMeta("INSERT INTO game_settlements")

	mock.ExpectExec(insert).
		WithArgs("g1", "u1", "won", 4, 1, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), int64(10), int64(20), ev.Ts).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insert).
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := repo.InsertSettlement(context.Background(), ev)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.InsertSettlement(context.Background(), ev)
	require.NoError(t, err)
	assert.False(t, inserted, "replayed message must not insert twice")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS game_settlements")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, NewPostgresRepo(db).EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
