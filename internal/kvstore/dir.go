package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	recordsDir   = "records"
	syncKeysFile = "sync-keys.json"
)

// Dir stores one JSON document per key under <base>/records. It is the
// default backend: the directory can be handed to any file-replication tool,
// and the tool reads sync-keys.json to decide what to replicate.
type Dir struct {
	base string
	mu   sync.Mutex
}

// NewDir creates the directory layout under base and returns the store.
func NewDir(base string) (*Dir, error) {
	if err := os.MkdirAll(filepath.Join(base, recordsDir), 0o700); err != nil {
		return nil, fmt.Errorf("storage error creating directories: %w", err)
	}
	return &Dir{base: base}, nil
}

// Base returns the root directory of the store.
func (d *Dir) Base() string {
	return d.base
}

// keyPath returns the file path for key. Keys are path-escaped so legacy keys
// containing separators stay inside the records directory.
func (d *Dir) keyPath(key string) string {
	return filepath.Join(d.base, recordsDir, url.PathEscape(key)+".json")
}

func (d *Dir) Keys(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(d.base, recordsDir))
	if err != nil {
		return nil, fmt.Errorf("storage error listing keys: %w", err)
	}
	found := map[string][]byte{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		key, err := url.PathUnescape(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		found[key] = nil
	}
	return sortedKeys(found), nil
}

// Get returns the document stored under key. A file that is not valid JSON is
// moved aside to <file>.corrupt and reported as an error.
func (d *Dir) Get(ctx context.Context, key string) ([]byte, bool, error) {
	path := d.keyPath(key)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("storage error reading %s: %w", path, err)
	}
	if !json.Valid(data) {
		backupPath := path + ".corrupt"
		_ = os.Rename(path, backupPath)
		return nil, false, fmt.Errorf("%w: corrupt JSON in %s (backed up to %s)", ErrCorrupt, path, backupPath)
	}
	return data, true, nil
}

func (d *Dir) Update(ctx context.Context, key string, value []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	path := d.keyPath(key)
	if value == nil {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("storage error deleting %s: %w", path, err)
		}
		return nil
	}
	return writeAtomic(path, value)
}

func (d *Dir) SetKeysForSync(ctx context.Context, keys []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if keys == nil {
		keys = []string{}
	}
	data, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return fmt.Errorf("storage error marshalling sync keys: %w", err)
	}
	return writeAtomic(filepath.Join(d.base, syncKeysFile), data)
}

// SyncKeys reads back the keys last published for replication.
func (d *Dir) SyncKeys() ([]string, error) {
	data, err := os.ReadFile(filepath.Join(d.base, syncKeysFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage error reading sync keys: %w", err)
	}
	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("corrupt sync key file: %w", err)
	}
	return keys, nil
}

func (d *Dir) Close() error {
	return nil
}

// writeAtomic writes data to a temp file next to path and renames it in place.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("storage error creating directories: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("storage error writing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("storage error renaming temp file: %w", err)
	}
	return nil
}
