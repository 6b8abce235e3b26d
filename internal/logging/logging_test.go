package logging_test

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KunlingLio/project-timer/internal/logging"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{" warn ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := logging.ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "pt.log")
	logger, closer := logging.New(logging.Options{File: path, Level: "info", MaxSizeMB: 1})

	logger.Debug("hidden")
	logger.Info("flushed record", "key", "timerStorageV2-d-p")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "flushed record") || !strings.Contains(out, "timerStorageV2-d-p") {
		t.Errorf("log missing record: %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("debug record written at info level: %q", out)
	}
}

func TestNewMirrorsWarnings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pt.log")
	var mirror bytes.Buffer
	logger, closer := logging.New(logging.Options{File: path, Level: "debug", Mirror: &mirror})

	logger.Info("created project record")
	logger.With("key", "timerStorageV2-d-p").Warn("flush failed")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	if out := string(data); !strings.Contains(out, "created project record") || !strings.Contains(out, "flush failed") {
		t.Errorf("file missing records: %q", out)
	}
	got := mirror.String()
	if strings.Contains(got, "created project record") {
		t.Errorf("info record mirrored: %q", got)
	}
	if !strings.Contains(got, "flush failed") || !strings.Contains(got, "key=timerStorageV2-d-p") {
		t.Errorf("warning not mirrored with attrs: %q", got)
	}
}

func TestNewMirrorOnly(t *testing.T) {
	var mirror bytes.Buffer
	logger, closer := logging.New(logging.Options{Mirror: &mirror})
	defer closer.Close()

	logger.Info("quiet")
	logger.Error("loud")
	if got := mirror.String(); strings.Contains(got, "quiet") || !strings.Contains(got, "loud") {
		t.Errorf("mirror = %q", got)
	}
}
