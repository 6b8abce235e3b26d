package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/KunlingLio/project-timer/internal/model"
)

// Config is the root configuration for pt, stored in ~/.pt/config.yaml.
type Config struct {
	// DataDir holds the device id, the record store and logs.
	DataDir string             `mapstructure:"data_dir"`
	Store   StoreConfig        `mapstructure:"store"`
	Timer   TimerConfig        `mapstructure:"timer"`
	Sync    model.SyncSettings `mapstructure:"sync"`
	Log     LogConfig          `mapstructure:"log"`
}

// StoreConfig selects the persisted key-value backend.
type StoreConfig struct {
	// Backend is "dir" (one JSON file per record) or "sqlite".
	Backend string `mapstructure:"backend"`
	// Driver is the database/sql driver for the sqlite backend: "sqlite"
	// (pure Go) or "sqlite3" (cgo).
	Driver string `mapstructure:"driver"`
	// Path overrides the default location inside DataDir.
	Path string `mapstructure:"path"`
}

// TimerConfig controls activity accumulation and flushing.
type TimerConfig struct {
	Tick            time.Duration `mapstructure:"tick"`
	FlushInterval   time.Duration `mapstructure:"flush_interval"`
	IdentityRefresh time.Duration `mapstructure:"identity_refresh"`
	PauseWhenIdle   bool          `mapstructure:"pause_when_idle"`
	IdleThreshold   time.Duration `mapstructure:"idle_threshold"`
}

// LogConfig controls the rotated log file.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

const (
	// DefaultFlushInterval bounds the data lost when the process dies.
	DefaultFlushInterval = 60 * time.Second
	// DefaultTick is the activity accumulation period.
	DefaultTick = time.Second
	// DefaultIdentityRefresh is how long a computed workspace descriptor is reused.
	DefaultIdentityRefresh = 60 * time.Second
	// DefaultIdleThreshold pauses the timer after this much inactivity.
	DefaultIdleThreshold = 5 * time.Minute
)

// DefaultDataDir returns ~/.pt.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".pt"), nil
}

// DefaultPath returns the path to ~/.pt/config.yaml.
func DefaultPath() (string, error) {
	dir, err := DefaultDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func setDefaults(v *viper.Viper, dataDir string) {
	v.SetDefault("data_dir", dataDir)
	v.SetDefault("store.backend", "dir")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "")
	v.SetDefault("timer.tick", DefaultTick)
	v.SetDefault("timer.flush_interval", DefaultFlushInterval)
	v.SetDefault("timer.identity_refresh", DefaultIdentityRefresh)
	v.SetDefault("timer.pause_when_idle", true)
	v.SetDefault("timer.idle_threshold", DefaultIdleThreshold)
	v.SetDefault("sync.enabled", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 5)
	v.SetDefault("log.max_backups", 3)
}

// Load reads the config file at path, creating it with the annotated template
// on first run. PT_* environment variables override file values, e.g.
// PT_STORE_BACKEND=sqlite or PT_SYNC_ENABLED=true.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		// First run: write the annotated template so users can discover options.
		if writeErr := writeDefault(path); writeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create config file %s: %v\n", path, writeErr)
		}
	}

	v := viper.New()
	setDefaults(v, filepath.Dir(path))
	v.SetEnvPrefix("PT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w\nTip: delete the file to regenerate defaults", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config file %s: %w", path, err)
	}
	cfg.normalize()
	return &cfg, nil
}

// normalize fills derived paths and repairs values that would stall the timer.
func (c *Config) normalize() {
	if c.Sync.Projects == nil {
		c.Sync.Projects = map[string]model.SyncedProject{}
	}
	if c.Store.Path == "" {
		if c.Store.Backend == "sqlite" {
			c.Store.Path = filepath.Join(c.DataDir, "pt.db")
		} else {
			c.Store.Path = filepath.Join(c.DataDir, "state")
		}
	}
	if c.Log.File == "" {
		c.Log.File = filepath.Join(c.DataDir, "logs", "pt.log")
	}
	if c.Timer.Tick <= 0 {
		c.Timer.Tick = DefaultTick
	}
	if c.Timer.FlushInterval <= 0 {
		c.Timer.FlushInterval = DefaultFlushInterval
	}
	if c.Timer.IdentityRefresh <= 0 {
		c.Timer.IdentityRefresh = DefaultIdentityRefresh
	}
	// A threshold below one tick would pause the timer on every tick.
	if c.Timer.IdleThreshold < c.Timer.Tick {
		c.Timer.IdleThreshold = c.Timer.Tick
	}
}

// writeDefault creates the config directory and writes the annotated default
// config template.
func writeDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0o600); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}

// configTemplate is the annotated config written on first run.
const configTemplate = `# pt configuration – ~/.pt/config.yaml
#
# All settings are optional; the built-in defaults shown below work out of
# the box. Every key can be overridden with a PT_* environment variable,
# e.g. PT_STORE_BACKEND=sqlite.

# ── Record store ──────────────────────────────────────────────────────────
store:
  # "dir"    – one JSON file per record under <data_dir>/state (default)
  # "sqlite" – a single database at <data_dir>/pt.db
  backend: dir
  # sqlite driver: "sqlite" (pure Go, default) or "sqlite3" (cgo build)
  driver: sqlite

# ── Timer ─────────────────────────────────────────────────────────────────
timer:
  tick: 1s
  # How often recorded time is written to the store.
  flush_interval: 60s
  # How long the detected project identity (folder, git remote) is reused.
  identity_refresh: 60s
  pause_when_idle: true
  idle_threshold: 5m

# ── Synchronisation ───────────────────────────────────────────────────────
# Projects opted into replication across devices. Managed by "pt sync".
sync:
  enabled: false
  projects: {}

# ── Logging ───────────────────────────────────────────────────────────────
log:
  level: info
  max_size_mb: 5
  max_backups: 3
`
