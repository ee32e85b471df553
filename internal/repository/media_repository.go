package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/danuarta/mediaportal-api/internal/models"
)

// MediaRepository manages persistence for media metadata records.
type MediaRepository struct {
	db *sqlx.DB
}

// NewMediaRepository constructs a MediaRepository.
func NewMediaRepository(db *sqlx.DB) *MediaRepository {
	return &MediaRepository{db: db}
}

const mediaColumns = `id, title, kind, url, public_id, description, assigned_to, status, uploaded_by, uploader_role, size_bytes, created_at, updated_at`

// Create inserts a new media metadata record.
func (r *MediaRepository) Create(ctx context.Context, item *models.MediaItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	const query = `INSERT INTO media (id, title, kind, url, public_id, description, assigned_to, status, uploaded_by, uploader_role, size_bytes, created_at, updated_at)
        VALUES (:id, :title, :kind, :url, :public_id, :description, :assigned_to, :status, :uploaded_by, :uploader_role, :size_bytes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("create media item: %w", err)
	}
	return nil
}

// FindByID fetches a media item by ID.
func (r *MediaRepository) FindByID(ctx context.Context, id string) (*models.MediaItem, error) {
	query := fmt.Sprintf(`SELECT %s FROM media WHERE id = $1 LIMIT 1`, mediaColumns)
	var item models.MediaItem
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find media by id: %w", err)
	}
	return &item, nil
}

// List returns media items matching admin-side filters with a total count.
func (r *MediaRepository) List(ctx context.Context, filter models.MediaFilter) ([]models.MediaItem, int, error) {
	base := "FROM media WHERE 1=1"
	var args []interface{}

	if filter.Status != "" {
		base += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, filter.Status)
	}
	if filter.Kind != "" {
		base += fmt.Sprintf(" AND kind = $%d", len(args)+1)
		args = append(args, filter.Kind)
	}
	if filter.AssignedTo != "" {
		base += fmt.Sprintf(" AND assigned_to = $%d", len(args)+1)
		args = append(args, filter.AssignedTo)
	}
	if filter.UploadedBy != "" {
		base += fmt.Sprintf(" AND uploaded_by = $%d", len(args)+1)
		args = append(args, filter.UploadedBy)
	}
	if filter.Search != "" {
		base += fmt.Sprintf(" AND (LOWER(title) LIKE $%d OR LOWER(description) LIKE $%d)", len(args)+1, len(args)+1)
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"title":      true,
		"status":     true,
		"created_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", mediaColumns, base, sortBy, order, size, offset)

	var items []models.MediaItem
	if err := r.db.SelectContext(ctx, &items, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list media: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count media: %w", err)
	}
	return items, total, nil
}

// ListVisibleToStudent applies the student visibility rule: approved items
// assigned to the student or to everyone, plus the student's own items in
// any moderation state.
func (r *MediaRepository) ListVisibleToStudent(ctx context.Context, studentID string) ([]models.MediaItem, error) {
	query := fmt.Sprintf(`SELECT %s FROM media
        WHERE (status = $1 AND assigned_to IN ($2, $3)) OR uploaded_by = $2
        ORDER BY created_at DESC`, mediaColumns)
	var items []models.MediaItem
	if err := r.db.SelectContext(ctx, &items, query, models.MediaStatusApproved, studentID, models.AudienceAll); err != nil {
		return nil, fmt.Errorf("list media for student: %w", err)
	}
	return items, nil
}

// UpdateStatus sets a media item's moderation state.
func (r *MediaRepository) UpdateStatus(ctx context.Context, id string, status models.MediaStatus, updatedAt time.Time) error {
	const query = `UPDATE media SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, updatedAt); err != nil {
		return fmt.Errorf("update media status: %w", err)
	}
	return nil
}

// Delete removes a media metadata record permanently.
func (r *MediaRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM media WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete media item: %w", err)
	}
	return nil
}
