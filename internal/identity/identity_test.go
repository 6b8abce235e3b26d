package identity_test

import (
	"testing"

	"github.com/KunlingLio/project-timer/internal/identity"
	"github.com/KunlingLio/project-timer/internal/model"
)

func desc(remote, parent, folder string) model.MatchInfo {
	m := model.MatchInfo{FolderName: folder}
	if remote != "" {
		m.GitRemoteURL = model.StringPtr(remote)
	}
	if parent != "" {
		m.ParentPath = model.StringPtr(parent)
	}
	return m
}

func TestEqual(t *testing.T) {
	descs := []model.MatchInfo{
		desc("", "", "X"),
		desc("", "/a", "X"),
		desc("git@r", "/a", "X"),
		desc("git@r", "", "Y"),
	}
	for i, a := range descs {
		if !identity.Equal(a, a) {
			t.Errorf("Equal(%v, %v) = false, want true", a, a)
		}
		for j, b := range descs {
			if identity.Equal(a, b) != identity.Equal(b, a) {
				t.Errorf("Equal not symmetric for %d/%d", i, j)
			}
			if i != j && identity.Equal(a, b) {
				t.Errorf("Equal(%v, %v) = true, want false", a, b)
			}
		}
	}
}

func TestEqualEmptyIsAbsent(t *testing.T) {
	a := model.MatchInfo{FolderName: "X", GitRemoteURL: model.StringPtr("")}
	b := model.MatchInfo{FolderName: "X"}
	if !identity.Equal(a, b) {
		t.Error("empty remote URL should equal absent remote URL")
	}
}

func TestMatchLocal(t *testing.T) {
	tests := []struct {
		name       string
		old        model.MatchInfo
		current    model.MatchInfo
		wantMatch  bool
		wantUpdate bool
	}{
		{"legacy same folder", desc("", "", "X"), desc("", "/p", "X"), true, true},
		{"legacy other folder", desc("", "", "X"), desc("", "/p", "Y"), false, false},
		{"legacy with remote current", desc("", "", "X"), desc("git@r", "/p", "X"), true, true},
		{"equal", desc("", "/a", "X"), desc("", "/a", "X"), true, false},
		{"equal with remote", desc("git@r", "/a", "X"), desc("git@r", "/a", "X"), true, false},
		{"remote added", desc("", "/a", "X"), desc("git@r", "/a", "X"), true, true},
		{"remote added but moved", desc("", "/a", "X"), desc("git@r", "/b", "X"), false, false},
		{"remote added but renamed", desc("", "/a", "X"), desc("git@r", "/a", "Y"), false, false},
		{"moved and renamed with remote", desc("git@r", "/a", "X"), desc("git@r", "/b", "Y"), true, true},
		{"remote changed", desc("git@r1", "/a", "X"), desc("git@r2", "/a", "X"), false, false},
		{"remote removed", desc("git@r", "/a", "X"), desc("", "/a", "X"), false, false},
		{"moved without remote", desc("", "/a", "X"), desc("", "/b", "X"), false, false},
		{"renamed without remote", desc("", "/a", "X"), desc("", "/a", "Y"), false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotMatch, gotUpdate := identity.MatchLocal(tt.old, tt.current)
			if gotMatch != tt.wantMatch || gotUpdate != tt.wantUpdate {
				t.Errorf("MatchLocal(%v, %v) = (%v, %v), want (%v, %v)",
					tt.old, tt.current, gotMatch, gotUpdate, tt.wantMatch, tt.wantUpdate)
			}
		})
	}
}

func TestMatchRemote(t *testing.T) {
	tests := []struct {
		name    string
		remote  model.MatchInfo
		current model.MatchInfo
		want    bool
	}{
		{"no remotes same folder", desc("", "", "X"), desc("", "", "X"), true},
		{"different remotes same folder", desc("git@r1", "", "X"), desc("git@r2", "", "X"), true},
		{"same remote different folder", desc("git@r", "/a", "X"), desc("git@r", "/b", "Y"), true},
		{"different remotes different folder", desc("git@r1", "/a", "X"), desc("git@r2", "/a", "Y"), false},
		{"one remote different folder", desc("git@r", "/a", "X"), desc("", "/a", "Y"), false},
		{"both remotes absent", desc("", "/a", "X"), desc("", "/b", "Y"), true},
		{"paths are ignored", desc("git@r1", "/a", "X"), desc("git@r2", "/a", "Y"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := identity.MatchRemote(tt.remote, tt.current); got != tt.want {
				t.Errorf("MatchRemote(%v, %v) = %v, want %v", tt.remote, tt.current, got, tt.want)
			}
		})
	}
}
