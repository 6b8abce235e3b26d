// Package synckeys derives which stored records are exposed to cross-device
// replication from the user's opt-in registry.
package synckeys

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/KunlingLio/project-timer/internal/kvstore"
	"github.com/KunlingLio/project-timer/internal/model"
)

// ConfigStore persists the sync settings. The publisher reads and writes it
// but does not interpret anything beyond the opt-in flags.
type ConfigStore interface {
	SyncSettings() model.SyncSettings
	SaveSyncedProjects(projects map[string]model.SyncedProject) error
	SetSyncEnabled(enabled bool) error
}

// Publisher maintains the synced-project registry and republishes the key set.
type Publisher struct {
	cfg    ConfigStore
	kv     kvstore.Store
	logger *slog.Logger

	mu sync.Mutex
}

// New returns a Publisher writing registry changes to cfg and key sets to kv.
func New(cfg ConfigStore, kv kvstore.Store, logger *slog.Logger) *Publisher {
	return &Publisher{cfg: cfg, kv: kv, logger: logger}
}

// Keys returns the storage keys of every opted-in project, or none when
// synchronisation is disabled.
func (p *Publisher) Keys() []string {
	return keysFor(p.cfg.SyncSettings())
}

func keysFor(s model.SyncSettings) []string {
	keys := []string{}
	if !s.Enabled {
		return keys
	}
	for _, sp := range s.Projects {
		if sp.Synced {
			keys = append(keys, sp.Key())
		}
	}
	sort.Strings(keys)
	return keys
}

// Publish hands the current key set to the store.
func (p *Publisher) Publish(ctx context.Context) error {
	keys := p.Keys()
	if err := p.kv.SetKeysForSync(ctx, keys); err != nil {
		return fmt.Errorf("publishing %d sync keys: %w", len(keys), err)
	}
	p.logger.Debug("published sync keys", "count", len(keys))
	return nil
}

// Registered reports whether rec already has a registry entry.
func (p *Publisher) Registered(rec model.ProjectRecord) bool {
	_, ok := p.cfg.SyncSettings().Projects[rec.SyncID()]
	return ok
}

// Register adds an entry for rec unless one exists. New entries are opted in
// exactly when synchronisation is enabled.
func (p *Publisher) Register(ctx context.Context, rec model.ProjectRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.cfg.SyncSettings()
	id := rec.SyncID()
	if _, ok := s.Projects[id]; ok {
		return nil
	}
	entry := model.SyncedProject{
		DeviceID:    rec.DeviceID,
		ProjectUUID: rec.ProjectUUID,
		Synced:      s.Enabled,
		ProjectName: rec.Name(),
	}
	if rec.DeviceName != nil {
		entry.DeviceName = *rec.DeviceName
	}
	s.Projects[id] = entry
	if err := p.cfg.SaveSyncedProjects(s.Projects); err != nil {
		return fmt.Errorf("registering %s for sync: %w", id, err)
	}
	p.logger.Info("registered project for sync", "id", id, "synced", entry.Synced)
	return p.Publish(ctx)
}

// Unregister removes the entries of the given records, if present.
func (p *Publisher) Unregister(ctx context.Context, recs ...model.ProjectRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.cfg.SyncSettings()
	changed := false
	for _, rec := range recs {
		id := rec.SyncID()
		if _, ok := s.Projects[id]; ok {
			delete(s.Projects, id)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	if err := p.cfg.SaveSyncedProjects(s.Projects); err != nil {
		return fmt.Errorf("unregistering %d projects from sync: %w", len(recs), err)
	}
	return p.Publish(ctx)
}

// SetSynced opts the registry entry id in or out.
func (p *Publisher) SetSynced(ctx context.Context, id string, synced bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.cfg.SyncSettings()
	entry, ok := s.Projects[id]
	if !ok {
		return fmt.Errorf("no synced project %q", id)
	}
	entry.Synced = synced
	s.Projects[id] = entry
	if err := p.cfg.SaveSyncedProjects(s.Projects); err != nil {
		return fmt.Errorf("updating %s: %w", id, err)
	}
	return p.Publish(ctx)
}

// SetEnabled toggles synchronisation as a whole.
func (p *Publisher) SetEnabled(ctx context.Context, enabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.cfg.SetSyncEnabled(enabled); err != nil {
		return fmt.Errorf("setting sync enabled=%v: %w", enabled, err)
	}
	return p.Publish(ctx)
}

// Entries returns the registry sorted by id.
func (p *Publisher) Entries() []Entry {
	s := p.cfg.SyncSettings()
	out := make([]Entry, 0, len(s.Projects))
	for id, sp := range s.Projects {
		out = append(out, Entry{ID: id, SyncedProject: sp})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Entry is one registry row with its id.
type Entry struct {
	ID string
	model.SyncedProject
}

// MemoryConfig is an in-memory ConfigStore.
type MemoryConfig struct {
	mu       sync.Mutex
	settings model.SyncSettings
}

// NewMemoryConfig returns a MemoryConfig with sync enabled or not.
func NewMemoryConfig(enabled bool) *MemoryConfig {
	return &MemoryConfig{settings: model.SyncSettings{Enabled: enabled, Projects: map[string]model.SyncedProject{}}}
}

func (m *MemoryConfig) SyncSettings() model.SyncSettings {
	m.mu.Lock()
	defer m.mu.Unlock()
	projects := make(map[string]model.SyncedProject, len(m.settings.Projects))
	for k, v := range m.settings.Projects {
		projects[k] = v
	}
	return model.SyncSettings{Enabled: m.settings.Enabled, Projects: projects}
}

func (m *MemoryConfig) SaveSyncedProjects(projects map[string]model.SyncedProject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings.Projects = make(map[string]model.SyncedProject, len(projects))
	for k, v := range projects {
		m.settings.Projects[k] = v
	}
	return nil
}

func (m *MemoryConfig) SetSyncEnabled(enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings.Enabled = enabled
	return nil
}
