// Package identity decides whether two project descriptors describe the same
// project. Local matching is strict and prefers creating a new record over
// merging evidence that disagrees; remote matching is loose because absolute
// paths mean nothing on another device.
package identity

import "github.com/KunlingLio/project-timer/internal/model"

// Equal reports whether remote URL, parent path and folder name are pairwise
// equal. Absent and empty optional fields compare equal.
func Equal(a, b model.MatchInfo) bool {
	return a.Remote() == b.Remote() &&
		a.Parent() == b.Parent() &&
		a.FolderName == b.FolderName
}

// MatchLocal compares a descriptor stored by this device with the live one.
// needsUpdate is true when old should be replaced by current after a match.
func MatchLocal(old, current model.MatchInfo) (isMatch, needsUpdate bool) {
	// Migrated legacy data: only the folder name is known.
	if old.IsLegacy() {
		if old.FolderName == current.FolderName {
			return true, true
		}
		return false, false
	}

	if Equal(old, current) {
		return true, false
	}

	// Stronger evidence added without contradicting the weaker fields.
	if old.Remote() == "" && current.Remote() != "" &&
		old.Parent() == current.Parent() &&
		old.FolderName == current.FolderName {
		return true, true
	}

	// Renamed or moved, anchored by the same remote.
	if old.Remote() != "" && old.Remote() == current.Remote() {
		return true, true
	}

	return false, false
}

// MatchRemote compares a descriptor produced on another device with the live
// one. Absolute paths are never compared across devices.
func MatchRemote(remote, current model.MatchInfo) bool {
	if remote.Remote() == current.Remote() {
		return true
	}
	return remote.FolderName == current.FolderName
}
