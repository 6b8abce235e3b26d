package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/KunlingLio/project-timer/internal/config"
	"github.com/KunlingLio/project-timer/internal/device"
	"github.com/KunlingLio/project-timer/internal/kvstore"
	"github.com/KunlingLio/project-timer/internal/logging"
	"github.com/KunlingLio/project-timer/internal/store"
	"github.com/KunlingLio/project-timer/internal/synckeys"
	"github.com/KunlingLio/project-timer/internal/workspace"
)

// app is everything a command needs, wired from the config file.
type app struct {
	cfg       config.Config
	conf      *config.File
	logger    *slog.Logger
	logCloser io.Closer
	kv        kvstore.Store
	device    *device.Local
	root      string
	ws        *workspace.Cached
	publisher *synckeys.Publisher
	store     *store.Store
}

func workspaceRoot() (string, error) {
	root := flagWorkspace
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("%w: %v", workspace.ErrNoWorkspaceOpen, err)
		}
		root = wd
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("%w: %v", workspace.ErrNoWorkspaceOpen, err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", workspace.ErrNoWorkspaceOpen, abs)
	}
	return abs, nil
}

// openApp loads the configuration, opens the record store and migrates any
// legacy records.
func openApp(ctx context.Context) (*app, error) {
	path := flagConfig
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	conf, err := config.Open(path)
	if err != nil {
		return nil, err
	}
	cfg := conf.Config()

	logger, logCloser := logging.New(logging.Options{
		File:       cfg.Log.File,
		Level:      cfg.Log.Level,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		Mirror:     os.Stderr,
	})

	a := &app{cfg: cfg, conf: conf, logger: logger, logCloser: logCloser}
	if err := a.wire(ctx); err != nil {
		_ = a.close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	dev, err := device.Load(a.cfg.DataDir)
	if err != nil {
		return err
	}
	a.device = dev

	kv, err := kvstore.Open(a.cfg.Store.Backend, a.cfg.Store.Driver, a.cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("storage error opening %s store at %s: %w", a.cfg.Store.Backend, a.cfg.Store.Path, err)
	}
	a.kv = kv

	root, err := workspaceRoot()
	if err != nil {
		// Commands that work without a project (export, sync, ...) still run;
		// Get reports the error to those that need one.
		a.logger.Debug("no workspace", "err", err)
	}
	a.root = root
	a.ws = workspace.NewCached(workspace.Folder{Path: root}, a.cfg.Timer.IdentityRefresh)

	a.publisher = synckeys.New(a.conf, kv, a.logger)
	a.store, err = store.New(store.Options{
		KV:            kv,
		Workspace:     a.ws,
		Device:        dev,
		Publisher:     a.publisher,
		Logger:        a.logger,
		FlushInterval: a.cfg.Timer.FlushInterval,
	})
	if err != nil {
		return err
	}

	n, err := a.store.Migrate(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		fmt.Fprintf(os.Stderr, "Migrated %d legacy record(s). Their undated totals were not carried over.\n", n)
	}
	a.logger.Debug("app ready",
		"device", dev.DeviceID(), "backend", a.cfg.Store.Backend, "workspace", root)
	return nil
}

// close flushes the cached record and releases the store and the log file.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close(ctx))
	}
	if a.kv != nil {
		errs = append(errs, a.kv.Close())
	}
	errs = append(errs, a.logCloser.Close())
	return errors.Join(errs...)
}

// withApp runs fn with a wired app and closes it afterwards, exiting on any
// error.
func withApp(fn func(ctx context.Context, a *app) error) error {
	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		fail(err)
	}
	runErr := fn(ctx, a)
	closeErr := a.close(ctx)
	if runErr != nil {
		fail(runErr)
	}
	if closeErr != nil {
		fail(closeErr)
	}
	return nil
}
