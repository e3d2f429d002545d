package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
)

// Postgres implementa o record store numa tabela única (path -> BYTEA).
// BYTEA preserva os bytes exatos, necessário para o compare-and-set.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

const schema = `
CREATE TABLE IF NOT EXISTS records (
	path       TEXT PRIMARY KEY,
	parent     TEXT NOT NULL,
	value      BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS records_parent_idx ON records (parent);
CREATE TABLE IF NOT EXISTS record_clock (
	id      INT PRIMARY KEY,
	last_ms BIGINT NOT NULL
);
INSERT INTO record_clock (id, last_ms) VALUES (1, 0) ON CONFLICT (id) DO NOTHING;
`

// EnsureSchema cria as tabelas se ainda não existirem
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("records schema: %w", err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, path string) ([]byte, error) {
	if err := validPath(path); err != nil {
		return nil, err
	}
	var v []byte
	err := p.db.QueryRowContext(ctx, `SELECT value FROM records WHERE path = $1`, path).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pg get %s: %w", path, err)
	}
	return v, nil
}

func (p *Postgres) Set(ctx context.Context, path string, value []byte) error {
	return p.Update(ctx, nil, Put(path, value))
}

func (p *Postgres) Delete(ctx context.Context, path string) error {
	return p.Update(ctx, nil, Remove(path))
}

func (p *Postgres) List(ctx context.Context, prefix string) (map[string][]byte, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT path, value FROM records WHERE parent = $1 ORDER BY path`, prefix)
	if err != nil {
		return nil, fmt.Errorf("pg list %s: %w", prefix, err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var path string
		var v []byte
		if err := rows.Scan(&path, &v); err != nil {
			return nil, fmt.Errorf("pg list scan: %w", err)
		}
		_, key := Split(path)
		out[key] = v
	}
	return out, rows.Err()
}

// Update roda numa transação: trava cada caminho condicionado com advisory lock
// (funciona também para linhas ainda inexistentes), compara e aplica as writes.
func (p *Postgres) Update(ctx context.Context, conds []Condition, writes ...Write) error {
	if err := validWrites(writes); err != nil {
		return err
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pg begin: %w", err)
	}
	defer tx.Rollback()

	// ordem fixa evita deadlock entre transações concorrentes
	ordered := make([]Condition, len(conds))
	copy(ordered, conds)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Path < ordered[j].Path })

	for _, c := range ordered {
		if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, c.Path); err != nil {
			return fmt.Errorf("pg lock %s: %w", c.Path, err)
		}
		var cur []byte
		present := true
		err = tx.QueryRowContext(ctx, `SELECT value FROM records WHERE path = $1 FOR UPDATE`, c.Path).Scan(&cur)
		if errors.Is(err, sql.ErrNoRows) {
			present, cur = false, nil
		} else if err != nil {
			return fmt.Errorf("pg read %s: %w", c.Path, err)
		}
		if !c.matches(cur, present) {
			return ErrConflict
		}
	}

	for _, w := range writes {
		if w.Delete {
			if _, err = tx.ExecContext(ctx, `DELETE FROM records WHERE path = $1`, w.Path); err != nil {
				return fmt.Errorf("pg delete %s: %w", w.Path, err)
			}
			continue
		}
		parent, _ := Split(w.Path)
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO records (path, parent, value, updated_at) VALUES ($1, $2, $3, NOW())
			ON CONFLICT (path) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
			w.Path, parent, w.Value); err != nil {
			return fmt.Errorf("pg upsert %s: %w", w.Path, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("pg commit: %w", err)
	}
	return nil
}

func (p *Postgres) ServerTimestamp(ctx context.Context) (int64, error) {
	var ts int64
	err := p.db.QueryRowContext(ctx, `
		UPDATE record_clock
		SET last_ms = GREATEST(last_ms + 1, (EXTRACT(EPOCH FROM clock_timestamp()) * 1000)::BIGINT)
		WHERE id = 1
		RETURNING last_ms`).Scan(&ts)
	if err != nil {
		return 0, fmt.Errorf("pg clock: %w", err)
	}
	return ts, nil
}
