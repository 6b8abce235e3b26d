// Package activity watches a workspace for edits and reports them as activity
// events for the tracker.
package activity

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Event is one edit observed in the workspace.
type Event struct {
	At time.Time
	// File is relative to the workspace root, with forward slashes.
	File     string
	Language string
}

// ignoredDirs are never watched.
var ignoredDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	".idea":        true,
	".vscode":      true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"target":       true,
}

// Watcher reports edits below a workspace root. Directories created after
// Start are watched as they appear.
type Watcher struct {
	root    string
	exclude []string
	logger  *slog.Logger
	now     func() time.Time
	watcher *fsnotify.Watcher
	events  chan Event
	errors  chan error
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewWatcher returns a Watcher for root. It emits nothing until Start.
//
// Each exclude path is ignored together with everything below it and any
// sibling sharing its name plus a dash, such as SQLite's "-wal" and "-shm"
// files. Pass the tool's own data files here so its writes are not activity.
func NewWatcher(root string, logger *slog.Logger, exclude ...string) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace %s: %w", root, err)
	}
	var excl []string
	for _, p := range exclude {
		if p == "" {
			continue
		}
		ap, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolving excluded path %s: %w", p, err)
		}
		excl = append(excl, ap)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &Watcher{
		root:    abs,
		exclude: excl,
		logger:  logger,
		now:     time.Now,
		watcher: fw,
		events:  make(chan Event, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}, nil
}

// Start adds every non-ignored directory below the root and begins emitting
// events.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return errors.New("watcher already running")
	}
	if err := w.addTree(w.root); err != nil {
		return err
	}
	w.running = true
	w.wg.Add(1)
	go w.processEvents()
	return nil
}

// Stop closes the watcher and blocks until the event loop has exited. The
// Events and Errors channels are closed afterwards.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.watcher.Close()
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)
	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	w.wg.Wait()

	close(w.events)
	close(w.errors)
	return nil
}

// Events returns the activity channel.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns watcher errors. Callers should drain it.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped, the root is not.
			if path == dir {
				return fmt.Errorf("failed to watch %s: %w", path, err)
			}
			w.logger.Debug("skipping unreadable directory", "path", path, "err", err)
			return fs.SkipDir
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && (ignoredDirs[d.Name()] || w.excluded(path)) {
			return fs.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !w.ignored(event.Name) {
					if err := w.addTree(event.Name); err != nil {
						w.logger.Warn("watching new directory failed", "path", event.Name, "err", err)
					}
					continue
				}
			}
			if ev, ok := w.convertEvent(event); ok {
				select {
				case w.events <- ev:
				case <-w.done:
					return
				}
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			case <-w.done:
				return
			}
		}
	}
}

// convertEvent turns writes and creations of files inside the workspace into
// activity. Removals, renames and chmods are not activity.
func (w *Watcher) convertEvent(event fsnotify.Event) (Event, bool) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return Event{}, false
	}
	if w.ignored(event.Name) {
		return Event{}, false
	}
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return Event{}, false
	}
	return Event{
		At:       w.now(),
		File:     filepath.ToSlash(rel),
		Language: LanguageOf(rel),
	}, true
}

func (w *Watcher) ignored(path string) bool {
	if w.excluded(path) {
		return true
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return true
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if ignoredDirs[part] {
			return true
		}
	}
	return false
}

func (w *Watcher) excluded(path string) bool {
	for _, ex := range w.exclude {
		if path == ex ||
			strings.HasPrefix(path, ex+string(filepath.Separator)) ||
			strings.HasPrefix(path, ex+"-") {
			return true
		}
	}
	return false
}
