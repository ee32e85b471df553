package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danuarta/mediaportal-api/internal/models"
)

func newSettingsMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSettingsRepositoryGet(t *testing.T) {
	db, mock, cleanup := newSettingsMock(t)
	defer cleanup()
	repo := NewSettingsRepository(db)

	rows := sqlmock.NewRows([]string{"key", "value", "updated_by", "updated_at"}).
		AddRow(models.SettingCloudName, "demo-cloud", nil, time.Now())
	mock.ExpectQuery("SELECT key, value, updated_by, updated_at FROM settings WHERE key = \\$1").
		WithArgs(models.SettingCloudName).
		WillReturnRows(rows)

	setting, err := repo.Get(context.Background(), models.SettingCloudName)
	require.NoError(t, err)
	assert.Equal(t, "demo-cloud", setting.Value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsRepositoryGetNotFound(t *testing.T) {
	db, mock, cleanup := newSettingsMock(t)
	defer cleanup()
	repo := NewSettingsRepository(db)

	mock.ExpectQuery("SELECT key, value, updated_by, updated_at FROM settings WHERE key = \\$1").
		WithArgs("unknown").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "unknown")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestSettingsRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newSettingsMock(t)
	defer cleanup()
	repo := NewSettingsRepository(db)

	mock.ExpectExec("INSERT INTO settings").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	setting := &models.Setting{Key: models.SettingUploadPreset, Value: "portal_unsigned"}
	err := repo.Upsert(context.Background(), setting)
	require.NoError(t, err)
	assert.False(t, setting.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}
