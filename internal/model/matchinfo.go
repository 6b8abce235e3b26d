package model

import "fmt"

// MatchInfo is the evidence used to recognise a project. Fields are listed in
// matching priority, highest first. A MatchInfo with neither GitRemoteURL nor
// ParentPath set was produced by migrating legacy data.
type MatchInfo struct {
	GitRemoteURL *string `json:"gitRemotUrl,omitempty"`
	ParentPath   *string `json:"parentPath,omitempty"`
	FolderName   string  `json:"folderName"`
}

// Remote returns the remote URL, or "" when absent.
func (m MatchInfo) Remote() string {
	if m.GitRemoteURL == nil {
		return ""
	}
	return *m.GitRemoteURL
}

// Parent returns the parent path, or "" when absent.
func (m MatchInfo) Parent() string {
	if m.ParentPath == nil {
		return ""
	}
	return *m.ParentPath
}

// IsLegacy reports whether m carries only a folder name.
func (m MatchInfo) IsLegacy() bool {
	return m.Remote() == "" && m.Parent() == ""
}

// Clone returns a deep copy of m.
func (m MatchInfo) Clone() MatchInfo {
	return MatchInfo{
		GitRemoteURL: cloneString(m.GitRemoteURL),
		ParentPath:   cloneString(m.ParentPath),
		FolderName:   m.FolderName,
	}
}

func (m MatchInfo) String() string {
	return fmt.Sprintf("{remote:%q parent:%q folder:%q}", m.Remote(), m.Parent(), m.FolderName)
}
