// Package store owns the record of the project that is open right now. It
// caches that record between ticks, flushes it to the key-value store on an
// interval and collapses duplicate on-device records when it finds them.
//
// Cache invalidation rules:
//   - every successful Flush clears the cache, unless a Set replaced the
//     cached record while the write was in flight;
//   - Get flushes and rescans when the cached record no longer matches the
//     workspace;
//   - DeleteAll and ImportAll drop the cache.
//
// A crash between Set and the next flush loses at most one flush interval of
// recorded time.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/KunlingLio/project-timer/internal/device"
	"github.com/KunlingLio/project-timer/internal/history"
	"github.com/KunlingLio/project-timer/internal/identity"
	"github.com/KunlingLio/project-timer/internal/kvstore"
	"github.com/KunlingLio/project-timer/internal/logging"
	"github.com/KunlingLio/project-timer/internal/migrate"
	"github.com/KunlingLio/project-timer/internal/model"
	"github.com/KunlingLio/project-timer/internal/synckeys"
	"github.com/KunlingLio/project-timer/internal/workspace"
)

// DefaultFlushInterval is used when Options.FlushInterval is not positive.
const DefaultFlushInterval = time.Minute

// Options configures a Store. KV, Workspace, Device and Publisher are required.
type Options struct {
	KV            kvstore.Store
	Workspace     workspace.Provider
	Device        device.Provider
	Publisher     *synckeys.Publisher
	Logger        *slog.Logger
	FlushInterval time.Duration
	Now           func() time.Time
	NewID         func() string
}

// Store is safe for concurrent use.
type Store struct {
	kv       kvstore.Store
	ws       workspace.Provider
	dev      device.Provider
	pub      *synckeys.Publisher
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
	newID    func() string

	// Lock order: opMu, flushMu, mu.
	opMu    sync.Mutex // scans, imports and deletes
	flushMu sync.Mutex // writes of the cached record
	mu      sync.Mutex // fields below

	cache     *model.ProjectRecord
	gen       uint64
	lastFlush time.Time
	flushing  bool

	bg sync.WaitGroup
}

// New returns a Store wired to the given collaborators.
func New(opts Options) (*Store, error) {
	switch {
	case opts.KV == nil:
		return nil, errors.New("store: key-value store is required")
	case opts.Workspace == nil:
		return nil, errors.New("store: workspace provider is required")
	case opts.Device == nil:
		return nil, errors.New("store: device provider is required")
	case opts.Publisher == nil:
		return nil, errors.New("store: sync key publisher is required")
	}
	s := &Store{
		kv:       opts.KV,
		ws:       opts.Workspace,
		dev:      opts.Device,
		pub:      opts.Publisher,
		logger:   opts.Logger,
		interval: opts.FlushInterval,
		now:      opts.Now,
		newID:    opts.NewID,
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	if s.interval <= 0 {
		s.interval = DefaultFlushInterval
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	s.lastFlush = s.now()
	return s, nil
}

// Get returns a copy of the record for the project open right now, creating
// it if no on-device record matches. It fails with
// workspace.ErrNoWorkspaceOpen when there is no project.
func (s *Store) Get(ctx context.Context) (model.ProjectRecord, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	current, err := s.ws.Descriptor(ctx)
	if err != nil {
		return model.ProjectRecord{}, err
	}

	rec, hit, err := s.fromCache(ctx, current)
	if err != nil || hit {
		return rec, err
	}

	rec, err = s.scan(ctx, current)
	if err != nil {
		return model.ProjectRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cache == nil {
		c := rec.Clone()
		s.cache = &c
		s.gen++
	}
	return s.cache.Clone(), nil
}

// fromCache serves Get from the cached record. A cache that no longer matches
// the workspace is flushed and reported as a miss.
func (s *Store) fromCache(ctx context.Context, current model.MatchInfo) (model.ProjectRecord, bool, error) {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	if s.cache == nil {
		s.mu.Unlock()
		return model.ProjectRecord{}, false, nil
	}
	isMatch, needsUpdate := identity.MatchLocal(s.cache.MatchInfo, current)
	if !isMatch {
		stale := s.cache.MatchInfo
		s.mu.Unlock()
		s.logger.Info("cached record does not match workspace, rescanning",
			"cached", stale.String(), "current", current.String())
		if err := s.flushLocked(ctx); err != nil {
			return model.ProjectRecord{}, false, err
		}
		return model.ProjectRecord{}, false, nil
	}
	if needsUpdate {
		s.cache.MatchInfo = current.Clone()
		s.gen++
	}
	out := s.cache.Clone()
	s.mu.Unlock()

	if needsUpdate {
		if err := s.write(ctx, out); err != nil {
			s.logger.Warn("persisting upgraded descriptor failed, will retry on flush",
				"key", out.Key(), "err", err)
		} else {
			s.logger.Info("upgraded descriptor", "key", out.Key(), "match_info", current.String())
		}
	}
	return out, true, nil
}

// scan looks at every record of this device and returns the one matching
// current, creating or deduplicating as needed.
func (s *Store) scan(ctx context.Context, current model.MatchInfo) (model.ProjectRecord, error) {
	keys, err := s.kv.Keys(ctx)
	if err != nil {
		return model.ProjectRecord{}, fmt.Errorf("storage error listing keys: %w", err)
	}

	own := s.dev.DeviceID()
	prefix := model.DevicePrefix(own)
	hostname := s.dev.Hostname()
	var candidates []model.ProjectRecord
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rec, ok, err := s.load(ctx, key)
		if err != nil {
			if isUnreadable(err) {
				s.logger.Warn("skipping unreadable record", "key", key, "err", err)
				continue
			}
			return model.ProjectRecord{}, err
		}
		if !ok {
			continue
		}
		// Device ids may contain dashes, so the prefix alone is ambiguous.
		if rec.DeviceID != own {
			s.logger.Debug("skipping record of another device", "key", key, "device", rec.DeviceID)
			continue
		}
		isMatch, needsUpdate := identity.MatchLocal(rec.MatchInfo, current)
		if !isMatch {
			continue
		}

		changed := false
		if rec.DeviceName == nil || *rec.DeviceName != hostname {
			rec.DeviceName = model.StringPtr(hostname)
			changed = true
		}
		if !s.pub.Registered(rec) {
			if err := s.pub.Register(ctx, rec); err != nil {
				s.logger.Warn("registering record for sync failed", "key", key, "err", err)
			}
		}
		if needsUpdate {
			s.logger.Info("upgrading descriptor",
				"key", key, "old", rec.MatchInfo.String(), "current", current.String())
			rec.MatchInfo = current.Clone()
			changed = true
		}
		if changed {
			if err := s.write(ctx, rec); err != nil {
				return model.ProjectRecord{}, err
			}
		}
		candidates = append(candidates, rec)
	}

	switch len(candidates) {
	case 0:
		return s.create(ctx, current, hostname)
	case 1:
		return candidates[0], nil
	default:
		return s.collapse(ctx, candidates, current)
	}
}

func (s *Store) create(ctx context.Context, current model.MatchInfo, hostname string) (model.ProjectRecord, error) {
	rec := model.ProjectRecord{
		DeviceID:    s.dev.DeviceID(),
		ProjectUUID: s.newID(),
		DeviceName:  model.StringPtr(hostname),
		MatchInfo:   current.Clone(),
		History:     model.History{},
	}
	if err := s.write(ctx, rec); err != nil {
		return model.ProjectRecord{}, err
	}
	s.logger.Info("created project record", "key", rec.Key(), "match_info", current.String())
	if err := s.pub.Register(ctx, rec); err != nil {
		s.logger.Warn("registering record for sync failed", "key", rec.Key(), "err", err)
	}
	return rec, nil
}

// collapse folds every candidate into the first one. The survivor is written
// before any duplicate is deleted, so an interrupted collapse leaves at worst
// a duplicate behind, never a gap.
func (s *Store) collapse(ctx context.Context, candidates []model.ProjectRecord, current model.MatchInfo) (model.ProjectRecord, error) {
	survivor := candidates[0]
	duplicates := candidates[1:]
	for _, dup := range duplicates {
		survivor.History = history.Merge(survivor.History, dup.History)
	}
	survivor.MatchInfo = current.Clone()
	survivor.DisplayName = model.StringPtr(current.FolderName)
	if err := s.write(ctx, survivor); err != nil {
		return model.ProjectRecord{}, err
	}

	for _, dup := range duplicates {
		if err := s.kv.Update(ctx, dup.Key(), nil); err != nil {
			return model.ProjectRecord{}, fmt.Errorf("storage error deleting duplicate %s: %w", dup.Key(), err)
		}
		s.logger.Info("merged duplicate record", "survivor", survivor.Key(), "duplicate", dup.Key())
	}
	if err := s.pub.Unregister(ctx, duplicates...); err != nil {
		s.logger.Warn("unregistering duplicates from sync failed", "err", err)
	}
	return survivor, nil
}

// Set replaces the cached record. Once the flush interval has elapsed it
// starts a background flush and returns without waiting for it.
func (s *Store) Set(rec model.ProjectRecord) error {
	if own := s.dev.DeviceID(); rec.DeviceID != own {
		s.logger.Error("refusing to cache record of another device",
			"key", rec.Key(), "device", own)
		return fmt.Errorf("%w: %s is owned by %q, this device is %q",
			ErrDeviceIdentityMismatch, rec.Key(), rec.DeviceID, own)
	}

	s.mu.Lock()
	c := rec.Clone()
	s.cache = &c
	s.gen++
	due := !s.flushing && s.now().Sub(s.lastFlush) >= s.interval
	if due {
		s.flushing = true
		s.bg.Add(1)
	}
	s.mu.Unlock()

	if due {
		go s.backgroundFlush()
	}
	return nil
}

func (s *Store) backgroundFlush() {
	defer s.bg.Done()
	defer func() {
		s.mu.Lock()
		s.flushing = false
		s.mu.Unlock()
	}()
	// Errors are logged by Flush; the next interval retries.
	_ = s.Flush(context.Background())
}

// Flush writes the cached record, republishes the sync keys and clears the
// cache. Without a cached record it only logs a warning. A failed write
// returns a *PersistenceError and leaves the cache in place.
func (s *Store) Flush(ctx context.Context) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()
	return s.flushLocked(ctx)
}

func (s *Store) flushLocked(ctx context.Context) error {
	s.mu.Lock()
	if s.cache == nil {
		s.mu.Unlock()
		s.logger.Warn("flush requested with nothing cached")
		return nil
	}
	snapshot := s.cache.Clone()
	gen := s.gen
	s.mu.Unlock()

	if err := s.write(ctx, snapshot); err != nil {
		s.logger.Error("flush failed, keeping cached record", "key", snapshot.Key(), "err", err)
		return &PersistenceError{Key: snapshot.Key(), Err: err}
	}
	if err := s.pub.Publish(ctx); err != nil {
		s.logger.Warn("publishing sync keys failed", "err", err)
	}

	s.mu.Lock()
	s.lastFlush = s.now()
	if s.gen == gen {
		s.cache = nil
	}
	s.mu.Unlock()
	s.logger.Debug("flushed", "key", snapshot.Key())
	return nil
}

// GetAllForCurrentProject returns this device's record followed by every
// other device's record that matches the workspace remotely. The result is
// for reading only.
func (s *Store) GetAllForCurrentProject(ctx context.Context) ([]model.ProjectRecord, error) {
	local, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	current, err := s.ws.Descriptor(ctx)
	if err != nil {
		return nil, err
	}
	keys, err := s.kv.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage error listing keys: %w", err)
	}

	out := []model.ProjectRecord{local}
	own := s.dev.DeviceID()
	for _, key := range keys {
		if !model.IsRecordKey(key) {
			continue
		}
		rec, ok, err := s.load(ctx, key)
		if err != nil {
			s.logger.Warn("skipping unreadable record", "key", key, "err", err)
			continue
		}
		if ok && rec.DeviceID != own && identity.MatchRemote(rec.MatchInfo, current) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Rename sets the display name of the current project. An empty name clears
// it. The change is flushed immediately.
func (s *Store) Rename(ctx context.Context, name string) error {
	rec, err := s.Get(ctx)
	if err != nil {
		return err
	}
	if name = strings.TrimSpace(name); name == "" {
		rec.DisplayName = nil
	} else {
		rec.DisplayName = model.StringPtr(name)
	}
	if err := s.Set(rec); err != nil {
		return err
	}
	return s.Flush(ctx)
}

// ProjectName returns the display name of the current project, or its folder
// name when none was set.
func (s *Store) ProjectName(ctx context.Context) (string, error) {
	rec, err := s.Get(ctx)
	if err != nil {
		return "", err
	}
	return rec.Name(), nil
}

// Migrate upgrades any legacy records left in the store.
func (s *Store) Migrate(ctx context.Context) (int, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return migrate.Run(ctx, s.kv, s.dev, s.newID, s.logger)
}

// Close waits for background flushes and writes the cached record a final
// time. The underlying key-value store is left open.
func (s *Store) Close(ctx context.Context) error {
	s.bg.Wait()
	s.mu.Lock()
	empty := s.cache == nil
	s.mu.Unlock()
	if empty {
		return nil
	}
	return s.Flush(ctx)
}

func (s *Store) load(ctx context.Context, key string) (model.ProjectRecord, bool, error) {
	data, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return model.ProjectRecord{}, false, fmt.Errorf("storage error reading %s: %w", key, err)
	}
	if !ok {
		return model.ProjectRecord{}, false, nil
	}
	var rec model.ProjectRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.ProjectRecord{}, false, fmt.Errorf("corrupt record %s: %w", key, err)
	}
	if rec.History == nil {
		rec.History = model.History{}
	}
	return rec, true, nil
}

// isUnreadable reports whether err means the stored value is damaged rather
// than the store being unavailable.
func isUnreadable(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.Is(err, kvstore.ErrCorrupt) || errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

func (s *Store) write(ctx context.Context, rec model.ProjectRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("storage error marshalling %s: %w", rec.Key(), err)
	}
	if err := s.kv.Update(ctx, rec.Key(), data); err != nil {
		return fmt.Errorf("storage error writing %s: %w", rec.Key(), err)
	}
	return nil
}
