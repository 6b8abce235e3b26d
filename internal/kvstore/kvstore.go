// Package kvstore provides the persisted key-value store the project store
// writes through. Values are opaque JSON documents. The store is shared with
// an external replication mechanism, so every write is last-writer-wins per
// key and there are no transactions across keys.
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("kvstore: store closed")
	// ErrCorrupt is returned by Get for a value that is not valid JSON.
	ErrCorrupt = errors.New("kvstore: corrupt value")
)

// Store is the persisted key-value store contract.
type Store interface {
	// Keys returns every stored key in ascending order.
	Keys(ctx context.Context) ([]string, error)
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Update writes value under key. A nil value deletes the key.
	Update(ctx context.Context, key string, value []byte) error
	// SetKeysForSync replaces the set of keys exposed to replication.
	SetKeysForSync(ctx context.Context, keys []string) error
	// Close releases the underlying resources.
	Close() error
}

// Open returns the backend named by backend: "dir" stores one JSON file per
// key under path, "sqlite" stores keys in a database at path using the given
// database/sql driver.
func Open(backend, driver, path string) (Store, error) {
	switch backend {
	case "", "dir":
		return NewDir(path)
	case "sqlite":
		return OpenSQL(driver, path)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("kvstore: unknown backend %q", backend)
	}
}

func sortedKeys(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
