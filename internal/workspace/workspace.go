// Package workspace describes the project that is open right now.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/KunlingLio/project-timer/internal/model"
)

// ErrNoWorkspaceOpen is returned when no folder context is available.
var ErrNoWorkspaceOpen = errors.New("no workspace open")

// Provider computes the descriptor of the open workspace.
type Provider interface {
	Descriptor(ctx context.Context) (model.MatchInfo, error)
}

// Folder describes a workspace directory on disk. The git remote is looked up
// with the git binary; a missing binary or repository only means no remote.
type Folder struct {
	Path string
}

func (f Folder) Descriptor(ctx context.Context) (model.MatchInfo, error) {
	if f.Path == "" {
		return model.MatchInfo{}, ErrNoWorkspaceOpen
	}
	abs, err := filepath.Abs(f.Path)
	if err != nil {
		return model.MatchInfo{}, fmt.Errorf("%w: resolving %s: %v", ErrNoWorkspaceOpen, f.Path, err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return model.MatchInfo{}, fmt.Errorf("%w: %s is not a directory", ErrNoWorkspaceOpen, abs)
	}

	name := filepath.Base(abs)
	parent := filepath.Dir(abs)
	if name == "" || name == string(filepath.Separator) || name == "." {
		return model.MatchInfo{}, fmt.Errorf("%w: %s has no folder name", ErrNoWorkspaceOpen, abs)
	}

	m := model.MatchInfo{
		FolderName: name,
		ParentPath: model.StringPtr(parent),
	}
	if remote := gitRemoteURL(ctx, abs); remote != "" {
		m.GitRemoteURL = model.StringPtr(remote)
	}
	return m, nil
}

// gitRemoteURL returns the fetch URL of "origin", or of the first remote in
// name order when there is no origin.
func gitRemoteURL(ctx context.Context, dir string) string {
	cmd := exec.CommandContext(ctx, "git", "remote", "-v")
	cmd.Dir = dir
	output, err := cmd.Output()
	if err != nil {
		return ""
	}
	return pickRemote(string(output))
}

// pickRemote parses `git remote -v` output: "origin url (fetch)".
func pickRemote(output string) string {
	remotes := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		name, url := parts[0], parts[1]
		if len(parts) >= 3 && strings.Contains(parts[2], "fetch") {
			remotes[name] = url
		} else if _, exists := remotes[name]; !exists {
			remotes[name] = url
		}
	}
	if url, ok := remotes["origin"]; ok {
		return url
	}
	names := make([]string, 0, len(remotes))
	for name := range remotes {
		names = append(names, name)
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	return remotes[names[0]]
}

// Cached remembers the last descriptor of an inner Provider for TTL. Errors
// are never cached.
type Cached struct {
	Inner Provider
	TTL   time.Duration
	Now   func() time.Time

	mu      sync.Mutex
	value   model.MatchInfo
	fetched time.Time
	valid   bool
}

// NewCached wraps inner with a cache of the given ttl.
func NewCached(inner Provider, ttl time.Duration) *Cached {
	return &Cached{Inner: inner, TTL: ttl, Now: time.Now}
}

func (c *Cached) Descriptor(ctx context.Context) (model.MatchInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.Now()
	if c.valid && now.Sub(c.fetched) < c.TTL {
		return c.value.Clone(), nil
	}
	m, err := c.Inner.Descriptor(ctx)
	if err != nil {
		c.valid = false
		return model.MatchInfo{}, err
	}
	c.value, c.fetched, c.valid = m, now, true
	return m.Clone(), nil
}

// Invalidate forces the next Descriptor call to recompute.
func (c *Cached) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.mu.Unlock()
}

// Static always returns the same descriptor, or ErrNoWorkspaceOpen when
// Info is nil.
type Static struct {
	Info *model.MatchInfo
}

func (s *Static) Descriptor(ctx context.Context) (model.MatchInfo, error) {
	if s.Info == nil {
		return model.MatchInfo{}, ErrNoWorkspaceOpen
	}
	return s.Info.Clone(), nil
}
