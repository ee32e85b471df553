package models

import "time"

// Setting keys for the globally shared storage credentials.
const (
	SettingCloudName    = "storage_cloud_name"
	SettingUploadPreset = "storage_upload_preset"
)

// Setting represents a persisted key-value settings entry.
type Setting struct {
	Key       string    `db:"key" json:"key"`
	Value     string    `db:"value" json:"value"`
	UpdatedBy *string   `db:"updated_by" json:"updated_by,omitempty"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
