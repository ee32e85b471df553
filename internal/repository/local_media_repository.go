package repository

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/danuarta/mediaportal-api/internal/models"
	"github.com/danuarta/mediaportal-api/pkg/storage"
)

const mediaCollection = "media"

// LocalMediaRepository is the file-backed media metadata store used when no
// database is configured.
type LocalMediaRepository struct {
	store *storage.JSONStore
	mu    sync.Mutex
}

// NewLocalMediaRepository constructs a LocalMediaRepository.
func NewLocalMediaRepository(store *storage.JSONStore) *LocalMediaRepository {
	return &LocalMediaRepository{store: store}
}

func (r *LocalMediaRepository) load() ([]models.MediaItem, error) {
	var items []models.MediaItem
	if err := r.store.Load(mediaCollection, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Create appends a new media metadata record.
func (r *LocalMediaRepository) Create(_ context.Context, item *models.MediaItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	items, err := r.load()
	if err != nil {
		return err
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	items = append(items, *item)
	return r.store.Save(mediaCollection, items)
}

// FindByID fetches a media item by ID.
func (r *LocalMediaRepository) FindByID(_ context.Context, id string) (*models.MediaItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	items, err := r.load()
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].ID == id {
			item := items[i]
			return &item, nil
		}
	}
	return nil, sql.ErrNoRows
}

// List returns media items matching admin-side filters with a total count.
func (r *LocalMediaRepository) List(_ context.Context, filter models.MediaFilter) ([]models.MediaItem, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	items, err := r.load()
	if err != nil {
		return nil, 0, err
	}

	search := strings.ToLower(filter.Search)
	var matched []models.MediaItem
	for _, item := range items {
		if filter.Status != "" && item.Status != filter.Status {
			continue
		}
		if filter.Kind != "" && item.Kind != filter.Kind {
			continue
		}
		if filter.AssignedTo != "" && item.AssignedTo != filter.AssignedTo {
			continue
		}
		if filter.UploadedBy != "" && item.UploadedBy != filter.UploadedBy {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(item.Title), search) &&
			!strings.Contains(strings.ToLower(item.Description), search) {
			continue
		}
		matched = append(matched, item)
	}

	sortMedia(matched, filter.SortBy, filter.SortOrder)

	total := len(matched)
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	start := (page - 1) * size
	if start >= total {
		return []models.MediaItem{}, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func sortMedia(items []models.MediaItem, sortBy, sortOrder string) {
	desc := strings.ToUpper(sortOrder) != "ASC"
	less := func(a, b models.MediaItem) bool {
		switch sortBy {
		case "title":
			return a.Title < b.Title
		case "status":
			return a.Status < b.Status
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if desc {
			return less(items[j], items[i])
		}
		return less(items[i], items[j])
	})
}

// ListVisibleToStudent applies the student visibility rule: approved items
// assigned to the student or to everyone, plus the student's own items in
// any moderation state.
func (r *LocalMediaRepository) ListVisibleToStudent(_ context.Context, studentID string) ([]models.MediaItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	items, err := r.load()
	if err != nil {
		return nil, err
	}

	var visible []models.MediaItem
	for _, item := range items {
		approvedForStudent := item.Status == models.MediaStatusApproved &&
			(item.AssignedTo == studentID || item.AssignedTo == models.AudienceAll)
		if approvedForStudent || item.UploadedBy == studentID {
			visible = append(visible, item)
		}
	}
	sort.SliceStable(visible, func(i, j int) bool {
		return visible[j].CreatedAt.Before(visible[i].CreatedAt)
	})
	return visible, nil
}

// UpdateStatus sets a media item's moderation state.
func (r *LocalMediaRepository) UpdateStatus(_ context.Context, id string, status models.MediaStatus, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	items, err := r.load()
	if err != nil {
		return err
	}
	for i := range items {
		if items[i].ID == id {
			items[i].Status = status
			items[i].UpdatedAt = updatedAt
			return r.store.Save(mediaCollection, items)
		}
	}
	return sql.ErrNoRows
}

// Delete removes a media metadata record permanently.
func (r *LocalMediaRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	items, err := r.load()
	if err != nil {
		return err
	}
	for i := range items {
		if items[i].ID == id {
			items = append(items[:i], items[i+1:]...)
			return r.store.Save(mediaCollection, items)
		}
	}
	return sql.ErrNoRows
}
