package repository

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/danuarta/mediaportal-api/internal/models"
	"github.com/danuarta/mediaportal-api/pkg/storage"
)

const settingsCollection = "settings"

// LocalSettingsRepository is the file-backed settings store. It serves both
// as the primary store when no database is configured and as the local
// mirror the credential fallback chain reads when the database is down.
type LocalSettingsRepository struct {
	store *storage.JSONStore
	mu    sync.Mutex
}

// NewLocalSettingsRepository constructs a LocalSettingsRepository.
func NewLocalSettingsRepository(store *storage.JSONStore) *LocalSettingsRepository {
	return &LocalSettingsRepository{store: store}
}

func (r *LocalSettingsRepository) load() ([]models.Setting, error) {
	var settings []models.Setting
	if err := r.store.Load(settingsCollection, &settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// Get fetches a single setting by key.
func (r *LocalSettingsRepository) Get(_ context.Context, key string) (*models.Setting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	settings, err := r.load()
	if err != nil {
		return nil, err
	}
	for i := range settings {
		if settings[i].Key == key {
			setting := settings[i]
			return &setting, nil
		}
	}
	return nil, sql.ErrNoRows
}

// Upsert writes a setting, replacing any existing value for the key.
func (r *LocalSettingsRepository) Upsert(_ context.Context, setting *models.Setting) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	settings, err := r.load()
	if err != nil {
		return err
	}
	if setting.UpdatedAt.IsZero() {
		setting.UpdatedAt = time.Now().UTC()
	}
	for i := range settings {
		if settings[i].Key == setting.Key {
			settings[i] = *setting
			return r.store.Save(settingsCollection, settings)
		}
	}
	settings = append(settings, *setting)
	return r.store.Save(settingsCollection, settings)
}
