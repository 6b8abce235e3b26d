package model

import "strings"

const (
	// Scheme prefixes every current-schema record key.
	Scheme = "timerStorageV2"
	// LegacyScheme prefixes every pre-versioning record key.
	LegacyScheme = "timerStorage"
)

// RecordKey returns "{Scheme}-{deviceID}-{projectUUID}".
func RecordKey(deviceID, projectUUID string) string {
	return Scheme + "-" + deviceID + "-" + projectUUID
}

// DevicePrefix returns the key prefix shared by every record of deviceID.
func DevicePrefix(deviceID string) string {
	return Scheme + "-" + deviceID + "-"
}

// LegacyKey returns the key a legacy record for projectName was stored under.
func LegacyKey(projectName string) string {
	return LegacyScheme + "-" + projectName
}

// IsRecordKey reports whether key uses the current schema.
func IsRecordKey(key string) bool {
	return strings.HasPrefix(key, Scheme+"-")
}

// IsLegacyKey reports whether key uses the pre-versioning schema.
func IsLegacyKey(key string) bool {
	return strings.HasPrefix(key, LegacyScheme+"-")
}

// SyncID returns the synced-project registry id "{deviceID}-{projectUUID}".
func SyncID(deviceID, projectUUID string) string {
	return deviceID + "-" + projectUUID
}

// SyncedProject is one entry of the synchronisation registry. It only controls
// replication scope; the names are an informational snapshot taken when the
// entry was created and are never used for matching.
type SyncedProject struct {
	DeviceID    string `json:"device_id" yaml:"device_id" mapstructure:"device_id"`
	ProjectUUID string `json:"project_uuid" yaml:"project_uuid" mapstructure:"project_uuid"`
	Synced      bool   `json:"synced" yaml:"synced" mapstructure:"synced"`
	DeviceName  string `json:"device_name,omitempty" yaml:"device_name,omitempty" mapstructure:"device_name"`
	ProjectName string `json:"project_name,omitempty" yaml:"project_name,omitempty" mapstructure:"project_name"`
}

// Key returns the storage key of the record this entry refers to.
func (p SyncedProject) Key() string {
	return RecordKey(p.DeviceID, p.ProjectUUID)
}

// SyncSettings is the user's synchronisation opt-in state.
type SyncSettings struct {
	Enabled  bool                     `yaml:"enabled" mapstructure:"enabled"`
	Projects map[string]SyncedProject `yaml:"projects" mapstructure:"projects"`
}
