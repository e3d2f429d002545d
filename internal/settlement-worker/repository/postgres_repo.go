package repository

import (
	"context"
	"database/sql"

	"github.com/radieske/number-guess-platform/pkg/contracts/events"
)

const schema = `
CREATE TABLE IF NOT EXISTS game_settlements (
  game_id       TEXT PRIMARY KEY,
  user_id       TEXT NOT NULL,
  status        TEXT NOT NULL,
  game_type     INT NOT NULL,
  attempts_used INT NOT NULL,
  bet_amount    NUMERIC NOT NULL,
  odds          NUMERIC NOT NULL,
  win_amount    NUMERIC NOT NULL,
  payout        NUMERIC NOT NULL,
  balance_after NUMERIC NOT NULL,
  created_at_ms BIGINT NOT NULL,
  ended_at_ms   BIGINT NOT NULL,
  settled_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_game_settlements_user ON game_settlements (user_id, ended_at_ms DESC);
`

// PostgresRepo grava a trilha de auditoria das partidas liquidadas.
type PostgresRepo struct {
	DB *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{DB: db}
}

func (r *PostgresRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, schema)
	return err
}

// InsertSettlement é idempotente por game_id: reentregas do Kafka retornam inserted=false.
func (r *PostgresRepo) InsertSettlement(ctx context.Context, e events.GameSettled) (inserted bool, err error) {
	const q = `
		INSERT INTO game_settlements
		  (game_id, user_id, status, game_type, attempts_used, bet_amount, odds,
		   win_amount, payout, balance_after, created_at_ms, ended_at_ms, settled_at)
		VALUES
		  ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (game_id) DO NOTHING
	`
	res, err := r.DB.ExecContext(ctx, q,
		e.GameID, e.UserID, e.Status, e.GameType, e.AttemptsUsed,
		e.BetAmount, e.Odds, e.WinAmount, e.Payout, e.Balance,
		e.CreatedAt, e.EndedAt, e.Ts,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
