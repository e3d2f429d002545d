package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis implementa o record store sobre go-redis.
// Cada registro vive em "rec:{path}" e o pai mantém um SET "recidx:{parent}"
// com as chaves filhas, usado pelo List.
type Redis struct {
	rdb *redis.Client
}

func NewRedis(rdb *redis.Client) *Redis { return &Redis{rdb: rdb} }

const clockKey = "recclock"

// clockScript garante timestamps estritamente crescentes mesmo com TIME repetido
var clockScript = redis.NewScript(`
local t = redis.call('TIME')
local now = tonumber(t[1]) * 1000 + math.floor(tonumber(t[2]) / 1000)
local last = tonumber(redis.call('GET', KEYS[1]) or '0')
if now <= last then now = last + 1 end
redis.call('SET', KEYS[1], now)
return now
`)

func recKey(path string) string { return "rec:" + path }

func idxKey(parent string) string { return "recidx:" + parent }

func (r *Redis) Get(ctx context.Context, path string) ([]byte, error) {
	if err := validPath(path); err != nil {
		return nil, err
	}
	b, err := r.rdb.Get(ctx, recKey(path)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", path, err)
	}
	return b, nil
}

func (r *Redis) Set(ctx context.Context, path string, value []byte) error {
	return r.Update(ctx, nil, Put(path, value))
}

func (r *Redis) Delete(ctx context.Context, path string) error {
	return r.Update(ctx, nil, Remove(path))
}

func (r *Redis) List(ctx context.Context, prefix string) (map[string][]byte, error) {
	names, err := r.rdb.SMembers(ctx, idxKey(prefix)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers %s: %w", prefix, err)
	}
	out := make(map[string][]byte, len(names))
	if len(names) == 0 {
		return out, nil
	}

	keys := make([]string, len(names))
	for i, n := range names {
		keys[i] = recKey(Join(prefix, n))
	}
	vals, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget %s: %w", prefix, err)
	}
	for i, v := range vals {
		// índice pode estar à frente do dado (removido fora de Update); ignora
		s, ok := v.(string)
		if !ok {
			continue
		}
		out[names[i]] = []byte(s)
	}
	return out, nil
}

func (r *Redis) Update(ctx context.Context, conds []Condition, writes ...Write) error {
	if err := validWrites(writes); err != nil {
		return err
	}

	watched := make([]string, 0, len(conds))
	for _, c := range conds {
		watched = append(watched, recKey(c.Path))
	}

	txf := func(tx *redis.Tx) error {
		for _, c := range conds {
			cur, err := tx.Get(ctx, recKey(c.Path)).Bytes()
			present := true
			if err == redis.Nil {
				present, cur = false, nil
			} else if err != nil {
				return fmt.Errorf("redis get %s: %w", c.Path, err)
			}
			if !c.matches(cur, present) {
				return ErrConflict
			}
		}

		_, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			for _, w := range writes {
				parent, key := Split(w.Path)
				if w.Delete {
					p.Del(ctx, recKey(w.Path))
					p.SRem(ctx, idxKey(parent), key)
					continue
				}
				p.Set(ctx, recKey(w.Path), w.Value, 0)
				p.SAdd(ctx, idxKey(parent), key)
			}
			return nil
		})
		return err
	}

	err := r.rdb.Watch(ctx, txf, watched...)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrConflict
	}
	if err != nil && !errors.Is(err, ErrConflict) {
		return fmt.Errorf("redis update: %w", err)
	}
	return err
}

func (r *Redis) ServerTimestamp(ctx context.Context) (int64, error) {
	ts, err := clockScript.Run(ctx, r.rdb, []string{clockKey}).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis clock: %w", err)
	}
	return ts, nil
}
