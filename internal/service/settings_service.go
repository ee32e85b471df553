package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/danuarta/mediaportal-api/internal/dto"
	"github.com/danuarta/mediaportal-api/internal/models"
	"github.com/danuarta/mediaportal-api/pkg/cloudinary"
	"github.com/danuarta/mediaportal-api/pkg/config"
	appErrors "github.com/danuarta/mediaportal-api/pkg/errors"
)

type settingsRepository interface {
	Get(ctx context.Context, key string) (*models.Setting, error)
	Upsert(ctx context.Context, setting *models.Setting) error
}

type settingsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
	Publish(ctx context.Context, channel string, event interface{}) error
}

type settingsAuditor interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

const (
	storageSettingsCacheKey = "portal:settings:storage"
	settingsChannel         = "portal:events:settings"
)

// Source tiers reported on resolved storage settings.
const (
	SettingsSourceCache    = "cache"
	SettingsSourceDatabase = "database"
	SettingsSourceLocal    = "local"
	SettingsSourceEnv      = "env"
)

// SettingsService resolves and updates the shared storage credentials.
// Reads walk a fallback chain: cache, then the database, then the local
// file mirror, then environment defaults. Writes go to the primary store
// and are always mirrored locally so the chain stays warm when the
// database drops out.
type SettingsService struct {
	db        settingsRepository
	local     settingsRepository
	cache     settingsCache
	audit     settingsAuditor
	defaults  config.CloudinaryConfig
	ttl       time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSettingsService constructs the settings service. db may be nil when
// the portal runs without a database; local then acts as the primary store.
func NewSettingsService(db, local settingsRepository, cache settingsCache, audit settingsAuditor, defaults config.CloudinaryConfig, ttl time.Duration, validate *validator.Validate, logger *zap.Logger) *SettingsService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &SettingsService{db: db, local: local, cache: cache, audit: audit, defaults: defaults, ttl: ttl, validator: validate, logger: logger}
}

// ResolveStorage walks the fallback chain and returns the first tier that
// yields both credential parts, tagged with the tier that produced them.
func (s *SettingsService) ResolveStorage(ctx context.Context) (*dto.StorageSettings, error) {
	if s.cache != nil {
		var cached dto.StorageSettings
		if err := s.cache.Get(ctx, storageSettingsCacheKey, &cached); err == nil && cached.CloudName != "" && cached.UploadPreset != "" {
			cached.Source = SettingsSourceCache
			return &cached, nil
		}
	}

	if s.db != nil {
		if resolved, err := s.readPair(ctx, s.db); err == nil {
			resolved.Source = SettingsSourceDatabase
			s.cacheResolved(ctx, resolved)
			return resolved, nil
		} else if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("settings read from database failed, falling back", zap.Error(err))
		}
	}

	if s.local != nil {
		if resolved, err := s.readPair(ctx, s.local); err == nil {
			resolved.Source = SettingsSourceLocal
			s.cacheResolved(ctx, resolved)
			return resolved, nil
		} else if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("settings read from local store failed, falling back", zap.Error(err))
		}
	}

	if s.defaults.CloudName != "" && s.defaults.UploadPreset != "" {
		return &dto.StorageSettings{
			CloudName:    s.defaults.CloudName,
			UploadPreset: s.defaults.UploadPreset,
			Source:       SettingsSourceEnv,
		}, nil
	}

	return nil, appErrors.Clone(appErrors.ErrNotConfigured, "storage credentials not configured")
}

// Credentials resolves the chain into the form the upload client consumes.
func (s *SettingsService) Credentials(ctx context.Context) (cloudinary.Credentials, error) {
	resolved, err := s.ResolveStorage(ctx)
	if err != nil {
		return cloudinary.Credentials{}, err
	}
	return cloudinary.Credentials{CloudName: resolved.CloudName, UploadPreset: resolved.UploadPreset}, nil
}

// UpdateStorage saves new credentials to the primary store, mirrors them
// locally, and invalidates the cached copy.
func (s *SettingsService) UpdateStorage(ctx context.Context, actorID string, req dto.UpdateStorageSettingsRequest) (*dto.StorageSettings, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid settings payload")
	}

	now := time.Now().UTC()
	var updatedBy *string
	if actorID != "" {
		updatedBy = &actorID
	}
	pairs := []models.Setting{
		{Key: models.SettingCloudName, Value: req.CloudName, UpdatedBy: updatedBy, UpdatedAt: now},
		{Key: models.SettingUploadPreset, Value: req.UploadPreset, UpdatedBy: updatedBy, UpdatedAt: now},
	}

	primary := s.db
	if primary == nil {
		primary = s.local
	}
	for i := range pairs {
		if err := primary.Upsert(ctx, &pairs[i]); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save settings")
		}
	}

	// Mirror to the local store so the fallback tier stays current.
	if s.local != nil && s.db != nil {
		for i := range pairs {
			if err := s.local.Upsert(ctx, &pairs[i]); err != nil {
				s.logger.Warn("failed to mirror settings locally", zap.Error(err))
				break
			}
		}
	}

	if s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, storageSettingsCacheKey); err != nil {
			s.logger.Warn("failed to invalidate settings cache", zap.Error(err))
		}
		event := map[string]string{"resource": "settings", "action": "updated"}
		if err := s.cache.Publish(ctx, settingsChannel, event); err != nil {
			s.logger.Warn("failed to publish settings event", zap.Error(err))
		}
	}

	if s.audit != nil {
		log := &models.AuditLog{Action: models.AuditActionSettingsUpdate, Resource: "settings"}
		if actorID != "" {
			log.UserID = &actorID
		}
		if err := s.audit.CreateAuditLog(ctx, log); err != nil {
			s.logger.Warn("failed to record settings audit log", zap.Error(err))
		}
	}

	source := SettingsSourceDatabase
	if s.db == nil {
		source = SettingsSourceLocal
	}
	return &dto.StorageSettings{CloudName: req.CloudName, UploadPreset: req.UploadPreset, Source: source}, nil
}

func (s *SettingsService) readPair(ctx context.Context, repo settingsRepository) (*dto.StorageSettings, error) {
	cloud, err := repo.Get(ctx, models.SettingCloudName)
	if err != nil {
		return nil, err
	}
	preset, err := repo.Get(ctx, models.SettingUploadPreset)
	if err != nil {
		return nil, err
	}
	if cloud.Value == "" || preset.Value == "" {
		return nil, sql.ErrNoRows
	}
	return &dto.StorageSettings{CloudName: cloud.Value, UploadPreset: preset.Value}, nil
}

func (s *SettingsService) cacheResolved(ctx context.Context, resolved *dto.StorageSettings) {
	if s.cache == nil {
		return
	}
	cached := dto.StorageSettings{CloudName: resolved.CloudName, UploadPreset: resolved.UploadPreset}
	if err := s.cache.Set(ctx, storageSettingsCacheKey, cached, s.ttl); err != nil {
		s.logger.Warn("failed to cache settings", zap.Error(err))
	}
}
