package dto

import "github.com/danuarta/mediaportal-api/internal/models"

// CreateMediaRequest carries the metadata half of an upload; the binary
// arrives as multipart file parts alongside it.
type CreateMediaRequest struct {
	Title       string `form:"title" json:"title" validate:"required"`
	Description string `form:"description" json:"description"`
	AssignedTo  string `form:"assigned_to" json:"assigned_to"`
}

// ModerateMediaRequest flips a pending item to approved or rejected.
type ModerateMediaRequest struct {
	Status string `json:"status" validate:"required,oneof=approved rejected"`
}

// BatchItemError describes a single failed file in a batch upload.
type BatchItemError struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

// BatchUploadResult tallies a multi-file upload: how many files were stored
// and how many failed, with per-file reasons for the failures.
type BatchUploadResult struct {
	Uploaded int                `json:"uploaded"`
	Failed   int                `json:"failed"`
	Items    []models.MediaItem `json:"items,omitempty"`
	Errors   []BatchItemError   `json:"errors,omitempty"`
}
