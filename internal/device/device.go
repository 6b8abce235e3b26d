// Package device supplies the stable identity of this installation.
package device

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/host"
)

// Provider identifies the device records are written from.
type Provider interface {
	// DeviceID is stable for the lifetime of the installation.
	DeviceID() string
	// Hostname is human readable and may change.
	Hostname() string
}

// Static is a fixed Provider.
type Static struct {
	ID   string
	Host string
}

func (s Static) DeviceID() string { return s.ID }
func (s Static) Hostname() string { return s.Host }

// Local is the Provider of the running installation. The id is generated once
// and kept in a file under the data directory.
type Local struct {
	id       string
	hostname string
}

// Load reads the device id from <dataDir>/device-id, creating it on first run.
func Load(dataDir string) (*Local, error) {
	path := filepath.Join(dataDir, "device-id")
	id, err := readID(path)
	if err != nil {
		return nil, err
	}
	if id == "" {
		id = uuid.NewString()
		if err := os.MkdirAll(dataDir, 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
			return nil, fmt.Errorf("writing device id: %w", err)
		}
	}
	return &Local{id: id, hostname: lookupHostname()}, nil
}

func readID(path string) (string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading device id: %w", err)
	}
	return strings.ToLower(strings.TrimSpace(string(data))), nil
}

// lookupHostname prefers the host info reported by the OS and falls back to
// os.Hostname.
func lookupHostname() string {
	if info, err := host.Info(); err == nil && info.Hostname != "" {
		return info.Hostname
	}
	if name, err := os.Hostname(); err == nil {
		return name
	}
	return "unknown"
}

func (l *Local) DeviceID() string { return l.id }
func (l *Local) Hostname() string { return l.hostname }
