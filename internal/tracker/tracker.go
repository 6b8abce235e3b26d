// Package tracker turns wall-clock ticks into recorded project time.
package tracker

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/KunlingLio/project-timer/internal/model"
	"github.com/KunlingLio/project-timer/internal/timecalc"
	"github.com/KunlingLio/project-timer/internal/workspace"
)

// Recorder is the part of the project store the tracker needs.
type Recorder interface {
	Get(ctx context.Context) (model.ProjectRecord, error)
	Set(rec model.ProjectRecord) error
}

// Options configures a Tracker.
type Options struct {
	Store         Recorder
	Logger        *slog.Logger
	Tick          time.Duration
	PauseWhenIdle bool
	IdleThreshold time.Duration
	Now           func() time.Time
}

// Tracker adds the time between ticks to today's entry of the current record,
// attributing it to the language and file of the latest activity.
type Tracker struct {
	store         Recorder
	logger        *slog.Logger
	tick          time.Duration
	pauseWhenIdle bool
	idleThreshold time.Duration
	now           func() time.Time

	mu         sync.Mutex
	lastUpdate time.Time
	lastActive time.Time
	language   string
	file       string
}

// New returns a Tracker. The idle threshold is never shorter than one tick.
func New(opts Options) *Tracker {
	t := &Tracker{
		store:         opts.Store,
		logger:        opts.Logger,
		tick:          opts.Tick,
		pauseWhenIdle: opts.PauseWhenIdle,
		idleThreshold: opts.IdleThreshold,
		now:           opts.Now,
	}
	if t.tick <= 0 {
		t.tick = time.Second
	}
	if t.idleThreshold < t.tick {
		t.idleThreshold = t.tick
	}
	if t.now == nil {
		t.now = time.Now
	}
	t.lastActive = t.now()
	return t
}

// Touch records activity. file is relative to the workspace; either argument
// may be empty.
func (t *Tracker) Touch(file, language string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastActive = t.now()
	t.file = file
	t.language = language
}

// Running reports whether time is currently being counted.
func (t *Tracker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runningLocked(t.now())
}

func (t *Tracker) runningLocked(now time.Time) bool {
	return !t.pauseWhenIdle || now.Sub(t.lastActive) <= t.idleThreshold
}

// Tick records the time since the previous tick. The first tick after start
// or after a pause only sets the reference point.
func (t *Tracker) Tick(ctx context.Context) error {
	t.mu.Lock()
	now := t.now()
	if t.lastUpdate.IsZero() {
		t.lastUpdate = now
		t.mu.Unlock()
		return nil
	}
	if !t.runningLocked(now) {
		t.lastUpdate = time.Time{}
		t.mu.Unlock()
		return nil
	}
	elapsed := now.Sub(t.lastUpdate).Seconds()
	t.lastUpdate = now
	language, file := t.language, t.file
	t.mu.Unlock()

	rec, err := t.store.Get(ctx)
	if err != nil {
		return err
	}
	date := timecalc.DateKey(now)
	day, ok := rec.History[date]
	if !ok {
		day = model.NewDailyRecord()
	}
	day.Seconds += elapsed
	if language != "" {
		day.Languages[language] += elapsed
	}
	if file != "" && !isAbs(file) {
		day.Files[file] += elapsed
	}
	if rec.History == nil {
		rec.History = model.History{}
	}
	rec.History[date] = day
	return t.store.Set(rec)
}

func isAbs(file string) bool {
	return filepath.IsAbs(file) || strings.HasPrefix(file, "/")
}

// Run ticks until ctx is done. Ticks without an open workspace are skipped.
func (t *Tracker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := t.Tick(ctx); err != nil {
				if errors.Is(err, workspace.ErrNoWorkspaceOpen) {
					t.logger.Debug("tick skipped, no workspace open")
					continue
				}
				t.logger.Warn("tick failed", "err", err)
			}
		}
	}
}
