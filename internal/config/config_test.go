package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KunlingLio/project-timer/internal/config"
	"github.com/KunlingLio/project-timer/internal/model"
)

func TestLoadFirstRunWritesTemplate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err, "template should be written on first run")

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, "dir", cfg.Store.Backend)
	assert.Equal(t, filepath.Join(dir, "state"), cfg.Store.Path)
	assert.Equal(t, config.DefaultFlushInterval, cfg.Timer.FlushInterval)
	assert.Equal(t, time.Second, cfg.Timer.Tick)
	assert.Equal(t, 5*time.Minute, cfg.Timer.IdleThreshold)
	assert.False(t, cfg.Sync.Enabled)
	assert.NotNil(t, cfg.Sync.Projects)
	assert.Equal(t, filepath.Join(dir, "logs", "pt.log"), cfg.Log.File)
}

func TestLoadUserValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
store:
  backend: sqlite
timer:
  flush_interval: 2m
  idle_threshold: 0s
sync:
  enabled: true
  projects:
    dev1-proj1:
      device_id: dev1
      project_uuid: proj1
      synced: true
      project_name: alpha
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "pt.db"), cfg.Store.Path)
	assert.Equal(t, 2*time.Minute, cfg.Timer.FlushInterval)
	assert.Equal(t, cfg.Timer.Tick, cfg.Timer.IdleThreshold, "threshold is raised to one tick")
	assert.True(t, cfg.Sync.Enabled)
	require.Contains(t, cfg.Sync.Projects, "dev1-proj1")
	p := cfg.Sync.Projects["dev1-proj1"]
	assert.Equal(t, "dev1", p.DeviceID)
	assert.Equal(t, "proj1", p.ProjectUUID)
	assert.True(t, p.Synced)
	assert.Equal(t, "alpha", p.ProjectName)
}

func TestLoadEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("PT_STORE_BACKEND", "sqlite")
	t.Setenv("PT_SYNC_ENABLED", "true")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.True(t, cfg.Sync.Enabled)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store: [unclosed"), 0o600))

	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestFileSaveSyncedProjectsKeepsComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	f, err := config.Open(path)
	require.NoError(t, err)

	projects := map[string]model.SyncedProject{
		"dev1-proj1": {DeviceID: "dev1", ProjectUUID: "proj1", Synced: true, DeviceName: "laptop", ProjectName: "alpha"},
	}
	require.NoError(t, f.SaveSyncedProjects(projects))
	require.NoError(t, f.SetSyncEnabled(true))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "# How often recorded time is written to the store."),
		"comments outside the sync section survive")

	// The in-memory view is updated.
	s := f.SyncSettings()
	assert.True(t, s.Enabled)
	assert.Equal(t, projects, s.Projects)

	// A fresh load reads the same registry back.
	reloaded, err := config.Load(path)
	require.NoError(t, err)
	assert.True(t, reloaded.Sync.Enabled)
	assert.Equal(t, projects, reloaded.Sync.Projects)
	assert.Equal(t, "dir", reloaded.Store.Backend)
}

func TestFileSyncSettingsIsACopy(t *testing.T) {
	f, err := config.Open(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	s := f.SyncSettings()
	s.Projects["x"] = model.SyncedProject{DeviceID: "x"}
	assert.Empty(t, f.SyncSettings().Projects)
}
