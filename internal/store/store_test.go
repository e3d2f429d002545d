package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runContract exercita o contrato do RecordStore em qualquer implementação
func runContract(t *testing.T, newStore func(t *testing.T) RecordStore) {
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, "users/u1/balance")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("set get delete", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "users/u1/balance", []byte(`"40000"`)))

		v, err := s.Get(ctx, "users/u1/balance")
		require.NoError(t, err)
		assert.Equal(t, `"40000"`, string(v))

		require.NoError(t, s.Delete(ctx, "users/u1/balance"))
		_, err = s.Get(ctx, "users/u1/balance")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list direct children only", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "users/u1/gameHistory/a", []byte(`{"id":"a"}`)))
		require.NoError(t, s.Set(ctx, "users/u1/gameHistory/b", []byte(`{"id":"b"}`)))
		require.NoError(t, s.Set(ctx, "users/u2/gameHistory/c", []byte(`{"id":"c"}`)))
		require.NoError(t, s.Set(ctx, "users/u1/balance", []byte(`"1"`)))

		got, err := s.List(ctx, "users/u1/gameHistory")
		require.NoError(t, err)
		assert.Equal(t, map[string][]byte{
			"a": []byte(`{"id":"a"}`),
			"b": []byte(`{"id":"b"}`),
		}, got)

		empty, err := s.List(ctx, "users/u3/gameHistory")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("update applies atomically", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "users/u1/currentGame", []byte(`{"v":1}`)))

		err := s.Update(ctx,
			[]Condition{Expect("users/u1/currentGame", []byte(`{"v":1}`)), Expect("users/u1/balance", nil)},
			Put("users/u1/gameHistory/g1", []byte(`{"v":1}`)),
			Remove("users/u1/currentGame"),
			Put("users/u1/balance", []byte(`"10"`)),
		)
		require.NoError(t, err)

		_, err = s.Get(ctx, "users/u1/currentGame")
		assert.ErrorIs(t, err, ErrNotFound)
		v, err := s.Get(ctx, "users/u1/gameHistory/g1")
		require.NoError(t, err)
		assert.Equal(t, `{"v":1}`, string(v))
	})

	t.Run("update conflict writes nothing", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "users/u1/currentGame", []byte(`{"v":2}`)))

		err := s.Update(ctx,
			[]Condition{Expect("users/u1/currentGame", []byte(`{"v":1}`))},
			Put("users/u1/balance", []byte(`"10"`)),
		)
		assert.ErrorIs(t, err, ErrConflict)

		_, err = s.Get(ctx, "users/u1/balance")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("absent condition fails when present", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "identities/k", []byte(`{}`)))
		err := s.Update(ctx, []Condition{Expect("identities/k", nil)}, Put("identities/k", []byte(`{"x":1}`)))
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("bad path", func(t *testing.T) {
		s := newStore(t)
		assert.ErrorIs(t, s.Set(ctx, "users//balance", []byte(`1`)), ErrBadPath)
		assert.ErrorIs(t, s.Set(ctx, "users/u1/balance", nil), ErrBadPath)
	})
}

func TestMemoryContract(t *testing.T) {
	runContract(t, func(t *testing.T) RecordStore { return NewMemory() })
}

func TestRedisContract(t *testing.T) {
	runContract(t, func(t *testing.T) RecordStore {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })
		return NewRedis(rdb)
	})
}

func TestMemoryServerTimestampIsStrictlyIncreasing(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	prev, err := s.ServerTimestamp(ctx)
	require.NoError(t, err)
	for i := 0; i < 1000; i++ {
		ts, err := s.ServerTimestamp(ctx)
		require.NoError(t, err)
		require.Greater(t, ts, prev)
		prev = ts
	}
}

func TestSplitAndJoin(t *testing.T) {
	parent, key := Split(Join("users", "u1", "gameHistory", "g1"))
	assert.Equal(t, "users/u1/gameHistory", parent)
	assert.Equal(t, "g1", key)

	parent, key = Split("root")
	assert.Empty(t, parent)
	assert.Equal(t, "root", key)

	assert.True(t, ValidSegment("abc-123"))
	assert.False(t, ValidSegment("a/b"))
	assert.False(t, ValidSegment(""))
}
