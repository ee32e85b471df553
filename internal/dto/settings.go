package dto

// StorageSettings exposes the resolved upload destination. Source records
// which tier of the fallback chain produced the values: cache, database,
// local store, or environment defaults.
type StorageSettings struct {
	CloudName    string `json:"cloud_name"`
	UploadPreset string `json:"upload_preset"`
	Source       string `json:"source,omitempty"`
}

// UpdateStorageSettingsRequest saves new upload destination credentials.
type UpdateStorageSettingsRequest struct {
	CloudName    string `json:"cloud_name" validate:"required"`
	UploadPreset string `json:"upload_preset" validate:"required"`
}
