package activity

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/KunlingLio/project-timer/internal/logging"
)

func TestLanguageOf(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"main.go", "go"},
		{"src/app.TS", "typescript"},
		{"ui/App.tsx", "typescriptreact"},
		{"ui/App.jsx", "javascriptreact"},
		{"scripts/run.sh", "shellscript"},
		{"web/index.html", "html"},
		{"Makefile", "makefile"},
		{"docs/README.md", "markdown"},
		{"notes.unknown", ""},
		{"LICENSE", ""},
	}
	for _, tt := range tests {
		if got := LanguageOf(tt.path); got != tt.want {
			t.Errorf("LanguageOf(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func startWatcher(t *testing.T, root string) *Watcher {
	t.Helper()
	w, err := NewWatcher(root, logging.Discard())
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	t.Cleanup(func() { _ = w.Stop() })
	return w
}

func waitEvent(t *testing.T, w *Watcher, want string) Event {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev := <-w.Events():
			if ev.File == want {
				return ev
			}
		case <-timeout:
			t.Fatalf("no event for %s", want)
		}
	}
}

func TestWatcherReportsRelativeFiles(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "pkg"), 0o755); err != nil {
		t.Fatal(err)
	}
	w := startWatcher(t, root)

	if err := os.WriteFile(filepath.Join(root, "pkg", "main.go"), []byte("package main\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	ev := waitEvent(t, w, "pkg/main.go")
	if ev.Language != "go" {
		t.Errorf("Language = %q, want go", ev.Language)
	}
	if ev.At.IsZero() {
		t.Error("event time not set")
	}
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root)

	dir := filepath.Join(root, "later")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	// The new directory is added asynchronously; keep writing until seen.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if err := os.WriteFile(filepath.Join(dir, "x.py"), []byte("x = 1\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		select {
		case ev := <-w.Events():
			if ev.File == "later/x.py" {
				return
			}
		case <-time.After(50 * time.Millisecond):
		}
	}
	t.Fatal("no event from a directory created after Start")
}

func TestConvertEventIgnoresVCSDirs(t *testing.T) {
	root := t.TempDir()
	w, err := NewWatcher(root, logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if w.ignored(filepath.Join(root, "src", "a.go")) {
		t.Error("src/a.go should not be ignored")
	}
	for _, p := range []string{
		filepath.Join(root, ".git", "index"),
		filepath.Join(root, "web", "node_modules", "x.js"),
	} {
		if !w.ignored(p) {
			t.Errorf("%s should be ignored", p)
		}
	}
}

func TestStartTwice(t *testing.T) {
	w := startWatcher(t, t.TempDir())
	if err := w.Start(); err == nil {
		t.Error("second Start() should fail")
	}
}

func TestExcludedPathsAreIgnored(t *testing.T) {
	root := t.TempDir()
	data := filepath.Join(root, ".pt")
	db := filepath.Join(root, "pt.db")
	w, err := NewWatcher(root, logging.Discard(), data, db, "")
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	for _, p := range []string{
		data,
		filepath.Join(data, "state", "timerStorageV2-d-p.json"),
		db,
		db + "-wal",
	} {
		if !w.ignored(p) {
			t.Errorf("%s should be ignored", p)
		}
	}
	for _, p := range []string{
		filepath.Join(root, ".ptrc"),
		filepath.Join(root, "pt.dbx"),
		filepath.Join(root, "src", "pt.db"),
	} {
		if w.ignored(p) {
			t.Errorf("%s should not be ignored", p)
		}
	}
}

func TestWatcherSkipsDataDirWrites(t *testing.T) {
	root := t.TempDir()
	data := filepath.Join(root, "home", ".pt")
	if err := os.MkdirAll(filepath.Join(data, "logs"), 0o755); err != nil {
		t.Fatal(err)
	}
	w, err := NewWatcher(root, logging.Discard(), data)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = w.Stop() })

	if err := os.WriteFile(filepath.Join(data, "logs", "pt.log"), []byte("flushed\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev := <-w.Events():
			if ev.File == "main.go" {
				return
			}
			t.Fatalf("unexpected event for %s", ev.File)
		case <-timeout:
			t.Fatal("no event for main.go")
		}
	}
}
