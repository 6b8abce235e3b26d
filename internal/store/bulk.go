package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/KunlingLio/project-timer/internal/migrate"
	"github.com/KunlingLio/project-timer/internal/model"
)

// Snapshot is the export/import interchange format: storage key to the raw
// JSON of a current-schema or legacy record.
type Snapshot map[string]json.RawMessage

// Keys returns the snapshot keys in sorted order.
func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DeleteAll drops the cache and deletes every record of every device,
// including legacy leftovers, and removes each from the sync registry.
func (s *Store) DeleteAll(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.dropCache()

	keys, err := s.kv.Keys(ctx)
	if err != nil {
		return fmt.Errorf("storage error listing keys: %w", err)
	}
	var removed []model.ProjectRecord
	deleted := 0
	for _, key := range keys {
		if !model.IsRecordKey(key) && !model.IsLegacyKey(key) {
			continue
		}
		if model.IsRecordKey(key) {
			if rec, ok, err := s.load(ctx, key); err == nil && ok {
				removed = append(removed, rec)
			}
		}
		if err := s.kv.Update(ctx, key, nil); err != nil {
			return fmt.Errorf("storage error deleting %s: %w", key, err)
		}
		deleted++
	}
	s.logger.Info("deleted all records", "count", deleted)
	if err := s.pub.Unregister(ctx, removed...); err != nil {
		return err
	}
	return s.pub.Publish(ctx)
}

// ExportAll flushes the cached record and returns every stored record.
func (s *Store) ExportAll(ctx context.Context) (Snapshot, error) {
	if err := s.Flush(ctx); err != nil {
		return nil, err
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	keys, err := s.kv.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage error listing keys: %w", err)
	}
	snap := Snapshot{}
	for _, key := range keys {
		if !model.IsRecordKey(key) && !model.IsLegacyKey(key) {
			continue
		}
		data, ok, err := s.kv.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("storage error reading %s: %w", key, err)
		}
		if ok {
			snap[key] = json.RawMessage(data)
		}
	}
	s.logger.Info("exported records", "count", len(snap))
	return snap, nil
}

type importEntry struct {
	key   string
	value []byte
}

// ImportAll writes every entry of snap. Current-schema entries overwrite any
// stored record with the same key; legacy entries are migrated to this
// device. The whole batch is validated first: one bad key or value rejects it
// and nothing is written.
func (s *Store) ImportAll(ctx context.Context, snap Snapshot) error {
	if err := s.Flush(ctx); err != nil {
		return err
	}

	var writes []importEntry
	imported, migrated := 0, 0
	for _, key := range snap.Keys() {
		raw := snap[key]
		switch {
		case model.IsRecordKey(key):
			var rec model.ProjectRecord
			if err := json.Unmarshal(raw, &rec); err != nil {
				return fmt.Errorf("import: decoding %s: %w", key, err)
			}
			if rec.Key() != key {
				return fmt.Errorf("%w: %s holds record %s", ErrMalformedImportKey, key, rec.Key())
			}
			writes = append(writes, importEntry{key: key, value: raw})
			imported++
		case model.IsLegacyKey(key):
			legacy, err := migrate.DecodeLegacy(key, raw)
			if err != nil {
				return fmt.Errorf("import: %w", err)
			}
			rec := migrate.FromLegacy(legacy, s.dev, s.newID)
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("import: encoding %s: %w", rec.Key(), err)
			}
			writes = append(writes, importEntry{key: rec.Key(), value: data})
			migrated++
		default:
			s.logger.Error("rejecting import batch", "key", key)
			return fmt.Errorf("%w: %q", ErrMalformedImportKey, key)
		}
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.dropCache()
	for _, w := range writes {
		if err := s.kv.Update(ctx, w.key, w.value); err != nil {
			return fmt.Errorf("storage error importing %s: %w", w.key, err)
		}
	}
	s.logger.Info("imported records", "records", imported, "migrated", migrated)
	return nil
}

func (s *Store) dropCache() {
	s.mu.Lock()
	s.cache = nil
	s.gen++
	s.mu.Unlock()
}
