// Package logging builds the structured logger shared by all components.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	slogmulti "github.com/samber/slog-multi"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	// File is the log file path. Empty disables the file sink.
	File       string
	Level      string
	MaxSizeMB  int
	MaxBackups int
	// Mirror, when set, additionally receives warnings and errors.
	Mirror io.Writer
}

// New returns a logger writing text records to a rotated file. The returned
// closer flushes and closes the file.
func New(opts Options) (*slog.Logger, io.Closer) {
	level := ParseLevel(opts.Level)

	var handlers []slog.Handler
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		_ = os.MkdirAll(filepath.Dir(opts.File), 0o700)
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
		}
		closer = rotator
		handlers = append(handlers, slog.NewTextHandler(rotator, &slog.HandlerOptions{Level: level}))
	}
	if opts.Mirror != nil {
		handlers = append(handlers, slog.NewTextHandler(opts.Mirror, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}

	switch len(handlers) {
	case 0:
		return Discard(), closer
	case 1:
		return slog.New(handlers[0]), closer
	default:
		return slog.New(slogmulti.Fanout(handlers...)), closer
	}
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels.
// Anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
