package store

import (
	"context"
	"sync"
	"time"
)

// Memory é o record store em memória, usado em testes e em STORE_BACKEND=memory.
type Memory struct {
	mu     sync.Mutex
	data   map[string][]byte
	lastTs int64
	now    func() time.Time
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte), now: time.Now}
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (m *Memory) Get(_ context.Context, path string) ([]byte, error) {
	if err := validPath(path); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[path]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(v), nil
}

func (m *Memory) Set(ctx context.Context, path string, value []byte) error {
	return m.Update(ctx, nil, Put(path, value))
}

func (m *Memory) Delete(ctx context.Context, path string) error {
	return m.Update(ctx, nil, Remove(path))
}

func (m *Memory) List(_ context.Context, prefix string) (map[string][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]byte)
	for path, v := range m.data {
		if parent, key := Split(path); parent == prefix {
			out[key] = clone(v)
		}
	}
	return out, nil
}

func (m *Memory) Update(_ context.Context, conds []Condition, writes ...Write) error {
	if err := validWrites(writes); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range conds {
		cur, ok := m.data[c.Path]
		if !c.matches(cur, ok) {
			return ErrConflict
		}
	}
	for _, w := range writes {
		if w.Delete {
			delete(m.data, w.Path)
			continue
		}
		m.data[w.Path] = clone(w.Value)
	}
	return nil
}

func (m *Memory) ServerTimestamp(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ts := m.now().UnixMilli()
	if ts <= m.lastTs {
		ts = m.lastTs + 1
	}
	m.lastTs = ts
	return ts, nil
}
