package kvstore

import (
	"context"
	"sync"
)

// Memory is an in-process Store. Besides tests it backs the "memory" backend,
// which never persists anything.
type Memory struct {
	mu       sync.Mutex
	data     map[string][]byte
	syncKeys []string
	closed   bool
	failErr  error
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{data: map[string][]byte{}}
}

func (m *Memory) Keys(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	return sortedKeys(m.data), nil
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, false, ErrClosed
	}
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *Memory) Update(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.failErr != nil {
		return m.failErr
	}
	if value == nil {
		delete(m.data, key)
		return nil
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *Memory) SetKeysForSync(ctx context.Context, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.syncKeys = append([]string(nil), keys...)
	return nil
}

// SyncKeys returns the keys last passed to SetKeysForSync.
func (m *Memory) SyncKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.syncKeys...)
}

// SetFailWrites makes every subsequent Update fail with err; nil restores writes.
func (m *Memory) SetFailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
