package model

// DailyRecord holds the activity recorded on one calendar date by one device.
// Languages and Files need not sum to Seconds: a tick is attributed to at most
// one language and one file, or neither.
type DailyRecord struct {
	Seconds   float64            `json:"seconds"`
	Languages map[string]float64 `json:"languages"`
	Files     map[string]float64 `json:"files"`
}

// NewDailyRecord returns an empty record with initialised maps.
func NewDailyRecord() DailyRecord {
	return DailyRecord{
		Languages: map[string]float64{},
		Files:     map[string]float64{},
	}
}

// Clone returns a deep copy of r.
func (r DailyRecord) Clone() DailyRecord {
	out := NewDailyRecord()
	out.Seconds = r.Seconds
	for k, v := range r.Languages {
		out.Languages[k] = v
	}
	for k, v := range r.Files {
		out.Files[k] = v
	}
	return out
}

// History maps an ISO date ("2006-01-02") to the activity of that day.
type History map[string]DailyRecord

// Clone returns a deep copy of h. A nil history clones to an empty one.
func (h History) Clone() History {
	out := make(History, len(h))
	for date, rec := range h {
		out[date] = rec.Clone()
	}
	return out
}

// ProjectRecord is the persisted unit: everything one device recorded for one
// project. DeviceID and ProjectUUID never change and form the storage key;
// only MatchInfo, History and the optional names are mutated.
type ProjectRecord struct {
	DeviceID    string  `json:"deviceId"`
	ProjectUUID string  `json:"projectUUID"`
	DisplayName *string `json:"displayName,omitempty"`
	DeviceName  *string `json:"deviceName,omitempty"`

	MatchInfo MatchInfo `json:"matchInfo"`
	History   History   `json:"history"`
}

// Key returns the storage key of r.
func (r ProjectRecord) Key() string {
	return RecordKey(r.DeviceID, r.ProjectUUID)
}

// SyncID returns the identifier used by the synced-project registry.
func (r ProjectRecord) SyncID() string {
	return SyncID(r.DeviceID, r.ProjectUUID)
}

// Name returns the user-assigned display name, falling back to the folder name.
func (r ProjectRecord) Name() string {
	if r.DisplayName != nil && *r.DisplayName != "" {
		return *r.DisplayName
	}
	return r.MatchInfo.FolderName
}

// Clone returns a deep copy of r.
func (r ProjectRecord) Clone() ProjectRecord {
	out := r
	out.DisplayName = cloneString(r.DisplayName)
	out.DeviceName = cloneString(r.DeviceName)
	out.MatchInfo = r.MatchInfo.Clone()
	out.History = r.History.Clone()
	return out
}

// LegacyRecord is the pre-versioning record: one accumulated counter per
// project name, without a per-day breakdown.
type LegacyRecord struct {
	ProjectName  string  `json:"project_name"`
	TotalSeconds float64 `json:"total_seconds"`
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
