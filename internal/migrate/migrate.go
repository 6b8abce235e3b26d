// Package migrate upgrades pre-versioning records to the current schema.
package migrate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/KunlingLio/project-timer/internal/device"
	"github.com/KunlingLio/project-timer/internal/kvstore"
	"github.com/KunlingLio/project-timer/internal/model"
)

// FromLegacy converts a legacy record into a current-schema record owned by
// dev. The project id is freshly generated and the descriptor carries only
// the folder name, which marks it as migrated for local matching. The legacy
// total is not spread over dates: the new history starts empty.
func FromLegacy(legacy model.LegacyRecord, dev device.Provider, newID func() string) model.ProjectRecord {
	return model.ProjectRecord{
		DeviceID:    dev.DeviceID(),
		ProjectUUID: newID(),
		DeviceName:  model.StringPtr(dev.Hostname()),
		MatchInfo:   model.MatchInfo{FolderName: legacy.ProjectName},
		History:     model.History{},
	}
}

// DecodeLegacy parses a legacy value. An empty project name falls back to the
// name embedded in the key.
func DecodeLegacy(key string, data []byte) (model.LegacyRecord, error) {
	var legacy model.LegacyRecord
	if err := json.Unmarshal(data, &legacy); err != nil {
		return model.LegacyRecord{}, fmt.Errorf("decoding legacy record %s: %w", key, err)
	}
	if legacy.ProjectName == "" {
		legacy.ProjectName = key[len(model.LegacyScheme)+1:]
	}
	return legacy, nil
}

// Run migrates every legacy record in kv, writes each result under its own
// key, and then deletes every legacy key. It returns the number of migrated
// records and is a no-op when no legacy keys exist.
func Run(ctx context.Context, kv kvstore.Store, dev device.Provider, newID func() string, logger *slog.Logger) (int, error) {
	keys, err := kv.Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("migration: listing keys: %w", err)
	}

	var legacyKeys []string
	for _, key := range keys {
		if model.IsLegacyKey(key) {
			legacyKeys = append(legacyKeys, key)
		}
	}
	if len(legacyKeys) == 0 {
		logger.Debug("nothing to migrate")
		return 0, nil
	}

	migrated := 0
	for _, key := range legacyKeys {
		data, ok, err := kv.Get(ctx, key)
		if err != nil {
			return migrated, fmt.Errorf("migration: reading %s: %w", key, err)
		}
		if !ok {
			continue
		}
		legacy, err := DecodeLegacy(key, data)
		if err != nil {
			return migrated, fmt.Errorf("migration: %w", err)
		}
		rec := FromLegacy(legacy, dev, newID)
		out, err := json.Marshal(rec)
		if err != nil {
			return migrated, fmt.Errorf("migration: encoding %s: %w", rec.Key(), err)
		}
		if err := kv.Update(ctx, rec.Key(), out); err != nil {
			return migrated, fmt.Errorf("migration: writing %s: %w", rec.Key(), err)
		}
		logger.Info("migrated legacy record",
			"legacy_key", key, "key", rec.Key(), "dropped_total_seconds", legacy.TotalSeconds)
		migrated++
	}

	// Legacy keys are removed only once every record has been rewritten.
	for _, key := range legacyKeys {
		if err := kv.Update(ctx, key, nil); err != nil {
			return migrated, fmt.Errorf("migration: deleting %s: %w", key, err)
		}
	}
	logger.Info("migration complete", "migrated", migrated, "deleted", len(legacyKeys))
	return migrated, nil
}
