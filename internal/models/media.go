package models

import "time"

// MediaKind distinguishes photos from videos. It is derived from the
// uploaded file's MIME prefix, never supplied by the client.
type MediaKind string

const (
	MediaKindPhoto MediaKind = "photo"
	MediaKindVideo MediaKind = "video"
)

// MediaStatus is the moderation state controlling visibility to students
// other than the uploader.
type MediaStatus string

const (
	MediaStatusPending  MediaStatus = "pending"
	MediaStatusApproved MediaStatus = "approved"
	MediaStatusRejected MediaStatus = "rejected"
)

// AudienceAll is the sentinel audience meaning every student may view the item.
const AudienceAll = "all"

// MediaItem is the metadata record for a hosted photo or video. The binary
// itself lives at the third-party host; URL and PublicID point at it.
type MediaItem struct {
	ID           string      `db:"id" json:"id"`
	Title        string      `db:"title" json:"title"`
	Kind         MediaKind   `db:"kind" json:"kind"`
	URL          string      `db:"url" json:"url"`
	PublicID     string      `db:"public_id" json:"public_id,omitempty"`
	Description  string      `db:"description" json:"description"`
	AssignedTo   string      `db:"assigned_to" json:"assigned_to"`
	Status       MediaStatus `db:"status" json:"status"`
	UploadedBy   string      `db:"uploaded_by" json:"uploaded_by"`
	UploaderRole UserRole    `db:"uploader_role" json:"uploader_role"`
	SizeBytes    int64       `db:"size_bytes" json:"size_bytes"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`
}

// MediaFilter captures admin-side list filters.
type MediaFilter struct {
	Status     MediaStatus
	Kind       MediaKind
	AssignedTo string
	UploadedBy string
	Search     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
