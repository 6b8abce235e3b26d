package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/KunlingLio/project-timer/internal/model"
)

// File is the loaded configuration together with the file it came from. It
// persists changes to the sync section and leaves the rest of the file,
// comments included, as the user wrote it.
type File struct {
	path string

	mu  sync.Mutex
	cfg *Config
}

// Open loads the configuration at path.
func Open(path string) (*File, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &File{path: path, cfg: cfg}, nil
}

// Path returns the config file location.
func (f *File) Path() string {
	return f.path
}

// Config returns a copy of the loaded configuration.
func (f *File) Config() Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *f.cfg
	c.Sync = cloneSync(f.cfg.Sync)
	return c
}

// SyncSettings returns a copy of the current sync settings.
func (f *File) SyncSettings() model.SyncSettings {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneSync(f.cfg.Sync)
}

// SaveSyncedProjects replaces the synced-project registry and writes it back.
func (f *File) SaveSyncedProjects(projects map[string]model.SyncedProject) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	next := cloneSync(f.cfg.Sync)
	next.Projects = cloneProjects(projects)
	if err := writeSync(f.path, next); err != nil {
		return err
	}
	f.cfg.Sync = next
	return nil
}

// SetSyncEnabled toggles synchronisation and writes it back.
func (f *File) SetSyncEnabled(enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	next := cloneSync(f.cfg.Sync)
	next.Enabled = enabled
	if err := writeSync(f.path, next); err != nil {
		return err
	}
	f.cfg.Sync = next
	return nil
}

// writeSync replaces the top-level "sync" mapping of the YAML document at
// path, keeping every other node and comment.
func writeSync(path string, settings model.SyncSettings) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		data = []byte(configTemplate)
	} else if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if doc.Kind == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return fmt.Errorf("config file %s: top level is not a mapping", path)
	}

	var value yaml.Node
	if err := value.Encode(settings); err != nil {
		return fmt.Errorf("encoding sync settings: %w", err)
	}

	root := doc.Content[0]
	replaced := false
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == "sync" {
			value.HeadComment = root.Content[i+1].HeadComment
			root.Content[i+1] = &value
			replaced = true
			break
		}
	}
	if !replaced {
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "sync"},
			&value)
	}

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	return writeFileAtomic(path, out)
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("saving config file: %w", err)
	}
	return nil
}

func cloneSync(s model.SyncSettings) model.SyncSettings {
	return model.SyncSettings{Enabled: s.Enabled, Projects: cloneProjects(s.Projects)}
}

func cloneProjects(in map[string]model.SyncedProject) map[string]model.SyncedProject {
	out := make(map[string]model.SyncedProject, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
