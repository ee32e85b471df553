package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"mime/multipart"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/danuarta/mediaportal-api/internal/dto"
	"github.com/danuarta/mediaportal-api/internal/models"
	"github.com/danuarta/mediaportal-api/pkg/cloudinary"
	appErrors "github.com/danuarta/mediaportal-api/pkg/errors"
)

type mediaRepository interface {
	Create(ctx context.Context, item *models.MediaItem) error
	FindByID(ctx context.Context, id string) (*models.MediaItem, error)
	List(ctx context.Context, filter models.MediaFilter) ([]models.MediaItem, int, error)
	ListVisibleToStudent(ctx context.Context, studentID string) ([]models.MediaItem, error)
	UpdateStatus(ctx context.Context, id string, status models.MediaStatus, updatedAt time.Time) error
	Delete(ctx context.Context, id string) error
}

type mediaCredentialsProvider interface {
	Credentials(ctx context.Context) (cloudinary.Credentials, error)
}

type mediaCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
	Publish(ctx context.Context, channel string, event interface{}) error
}

type mediaAuditor interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type uploadMetrics interface {
	RecordUpload(kind string, failed bool)
	RecordCacheLookup(hit bool)
}

const mediaChannel = "portal:events:media"

// MediaService covers upload, listing, moderation, and deletion of hosted
// photos and videos. Binaries live at the media host; only metadata is
// persisted here.
type MediaService struct {
	repo        mediaRepository
	uploader    *cloudinary.Client
	credentials mediaCredentialsProvider
	cache       mediaCache
	audit       mediaAuditor
	metrics     uploadMetrics
	maxBytes    int64
	cacheTTL    time.Duration
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewMediaService constructs the media service.
func NewMediaService(repo mediaRepository, uploader *cloudinary.Client, credentials mediaCredentialsProvider, cache mediaCache, audit mediaAuditor, metrics uploadMetrics, maxBytes int64, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *MediaService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxBytes <= 0 {
		maxBytes = 100 << 20
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &MediaService{
		repo:        repo,
		uploader:    uploader,
		credentials: credentials,
		cache:       cache,
		audit:       audit,
		metrics:     metrics,
		maxBytes:    maxBytes,
		cacheTTL:    cacheTTL,
		validator:   validate,
		logger:      logger,
	}
}

// Upload stores a batch of files and returns the per-file tally. A single
// file is just a batch of one. Admin uploads land approved with the chosen
// audience; student uploads land pending, assigned to the student.
func (s *MediaService) Upload(ctx context.Context, claims *models.JWTClaims, req dto.CreateMediaRequest, files []*multipart.FileHeader) (*dto.BatchUploadResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid media payload")
	}
	if len(files) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no files provided")
	}

	// Size and MIME gates run for the whole batch before anything leaves
	// the process; resolving credentials may itself hit the cache or the
	// settings table, so it waits until at least one file is admitted.
	type admittedFile struct {
		index    int
		fh       *multipart.FileHeader
		resource cloudinary.ResourceType
	}

	result := &dto.BatchUploadResult{}
	var admitted []admittedFile
	for i, fh := range files {
		resource, gateErr := s.admit(fh)
		if gateErr != nil {
			result.Failed++
			result.Errors = append(result.Errors, dto.BatchItemError{Filename: fh.Filename, Reason: gateErr.Error()})
			if s.metrics != nil {
				s.metrics.RecordUpload("unknown", true)
			}
			continue
		}
		admitted = append(admitted, admittedFile{index: i, fh: fh, resource: resource})
	}

	if len(admitted) == 0 {
		return result, nil
	}

	creds, err := s.credentials.Credentials(ctx)
	if err != nil {
		return nil, err
	}

	for _, f := range admitted {
		item, uploadErr := s.uploadOne(ctx, claims, req, f.fh, f.resource, creds, f.index, len(files))
		if uploadErr != nil {
			result.Failed++
			result.Errors = append(result.Errors, dto.BatchItemError{Filename: f.fh.Filename, Reason: uploadErr.Error()})
			if s.metrics != nil {
				s.metrics.RecordUpload("unknown", true)
			}
			continue
		}
		result.Uploaded++
		result.Items = append(result.Items, *item)
		if s.metrics != nil {
			s.metrics.RecordUpload(string(item.Kind), false)
		}
	}

	if result.Uploaded > 0 {
		s.invalidate(ctx, "uploaded", "")
		s.recordAudit(ctx, claims.UserID, models.AuditActionMediaUpload, "")
	}
	return result, nil
}

// admit applies the size and MIME gates to a single file.
func (s *MediaService) admit(fh *multipart.FileHeader) (cloudinary.ResourceType, error) {
	if fh.Size > s.maxBytes {
		return "", appErrors.Clone(appErrors.ErrFileTooLarge, fmt.Sprintf("%s exceeds the %d byte limit", fh.Filename, s.maxBytes))
	}

	resource, err := cloudinary.ResourceTypeForMime(fh.Header.Get("Content-Type"))
	if err != nil {
		return "", appErrors.Clone(appErrors.ErrUnsupportedMedia, fmt.Sprintf("%s: only image and video files are accepted", fh.Filename))
	}
	return resource, nil
}

func (s *MediaService) uploadOne(ctx context.Context, claims *models.JWTClaims, req dto.CreateMediaRequest, fh *multipart.FileHeader, resource cloudinary.ResourceType, creds cloudinary.Credentials, index, count int) (*models.MediaItem, error) {
	file, err := fh.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open uploaded file")
	}
	defer file.Close()

	uploaded, err := s.uploader.Upload(ctx, creds, resource, fh.Filename, file)
	if err != nil {
		s.logger.Warn("media host rejected upload", zap.String("filename", fh.Filename), zap.Error(err))
		return nil, appErrors.Clone(appErrors.ErrUploadFailed, fmt.Sprintf("upload of %s failed", fh.Filename))
	}

	kind := models.MediaKindPhoto
	if resource == cloudinary.ResourceVideo {
		kind = models.MediaKindVideo
	}

	title := req.Title
	if count > 1 {
		title = fmt.Sprintf("%s (%d/%d)", req.Title, index+1, count)
	}

	item := &models.MediaItem{
		Title:        title,
		Kind:         kind,
		URL:          uploaded.SecureURL,
		PublicID:     uploaded.PublicID,
		Description:  req.Description,
		UploadedBy:   claims.UserID,
		UploaderRole: claims.Role,
		SizeBytes:    fh.Size,
	}

	if claims.Role == models.RoleAdmin {
		item.Status = models.MediaStatusApproved
		item.AssignedTo = req.AssignedTo
		if item.AssignedTo == "" {
			item.AssignedTo = models.AudienceAll
		}
	} else {
		item.Status = models.MediaStatusPending
		item.AssignedTo = claims.UserID
	}

	if err := s.repo.Create(ctx, item); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist media metadata")
	}
	return item, nil
}

// ListAdmin returns the full library with filters and pagination.
func (s *MediaService) ListAdmin(ctx context.Context, filter models.MediaFilter) ([]models.MediaItem, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list media")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// ListForStudent returns what the visibility rule allows, served from cache
// when a recent copy exists.
func (s *MediaService) ListForStudent(ctx context.Context, studentID string) ([]models.MediaItem, error) {
	cacheKey := "portal:media:student:" + studentID
	if s.cache != nil {
		var cached []models.MediaItem
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			if s.metrics != nil {
				s.metrics.RecordCacheLookup(true)
			}
			return cached, nil
		}
		if s.metrics != nil {
			s.metrics.RecordCacheLookup(false)
		}
	}

	items, err := s.repo.ListVisibleToStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list media")
	}
	if items == nil {
		items = []models.MediaItem{}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, items, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache student media list", zap.Error(err))
		}
	}
	return items, nil
}

// Get returns a single item, enforcing the student visibility rule.
func (s *MediaService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.MediaItem, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "media item not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load media item")
	}

	if claims.Role != models.RoleAdmin && !visibleToStudent(item, claims.UserID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "media item is not available")
	}
	return item, nil
}

// Moderate flips an item's moderation state.
func (s *MediaService) Moderate(ctx context.Context, actorID, id string, req dto.ModerateMediaRequest) (*models.MediaItem, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid moderation payload")
	}

	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "media item not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load media item")
	}

	status := models.MediaStatus(req.Status)
	now := time.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, id, status, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update media status")
	}
	item.Status = status
	item.UpdatedAt = now

	s.invalidate(ctx, "moderated", id)
	s.recordAudit(ctx, actorID, models.AuditActionMediaModerate, id)
	return item, nil
}

// Delete removes an item's metadata. Admins may delete anything; students
// only their own items that have not been approved yet.
func (s *MediaService) Delete(ctx context.Context, claims *models.JWTClaims, id string) error {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "media item not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load media item")
	}

	if claims.Role != models.RoleAdmin {
		if item.UploadedBy != claims.UserID {
			return appErrors.Clone(appErrors.ErrForbidden, "cannot delete another uploader's media")
		}
		if item.Status == models.MediaStatusApproved {
			return appErrors.Clone(appErrors.ErrForbidden, "approved media can only be deleted by an admin")
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete media item")
	}

	s.invalidate(ctx, "deleted", id)
	s.recordAudit(ctx, claims.UserID, models.AuditActionMediaDelete, id)
	return nil
}

func visibleToStudent(item *models.MediaItem, studentID string) bool {
	if item.UploadedBy == studentID {
		return true
	}
	return item.Status == models.MediaStatusApproved &&
		(item.AssignedTo == studentID || item.AssignedTo == models.AudienceAll)
}

func (s *MediaService) invalidate(ctx context.Context, action, itemID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "portal:media:*"); err != nil {
		s.logger.Warn("failed to invalidate media cache", zap.Error(err))
	}
	event := map[string]string{"resource": "media", "action": action, "id": itemID}
	if err := s.cache.Publish(ctx, mediaChannel, event); err != nil {
		s.logger.Warn("failed to publish media event", zap.Error(err))
	}
}

func (s *MediaService) recordAudit(ctx context.Context, actorID, action, itemID string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{Action: action, Resource: "media"}
	if actorID != "" {
		log.UserID = &actorID
	}
	if itemID != "" {
		log.ResourceID = &itemID
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record media audit log", zap.Error(err))
	}
}
