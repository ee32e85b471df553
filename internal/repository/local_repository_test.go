package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danuarta/mediaportal-api/internal/models"
	"github.com/danuarta/mediaportal-api/pkg/storage"
)

func newLocalStore(t *testing.T) *storage.JSONStore {
	store, err := storage.NewJSONStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestLocalStudentRepositoryCRUD(t *testing.T) {
	store := newLocalStore(t)
	repo := NewLocalStudentRepository(store)
	ctx := context.Background()

	student := &models.Student{Username: "arif", SecretHash: "hash", FullName: "Arif Rahman", RollNumber: "21", Class: "10", Section: "A", Active: true}
	require.NoError(t, repo.Create(ctx, student))
	require.NotEmpty(t, student.ID)

	// The secret hash is json:"-" on the API model; the store must still carry it.
	reloaded := NewLocalStudentRepository(store)
	found, err := reloaded.FindByUsername(ctx, "arif")
	require.NoError(t, err)
	assert.Equal(t, "hash", found.SecretHash)

	found.FullName = "Arif R."
	require.NoError(t, repo.Update(ctx, found))

	byID, err := repo.FindByID(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, "Arif R.", byID.FullName)

	exists, err := repo.ExistsByUsername(ctx, "arif", "")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = repo.ExistsByUsername(ctx, "arif", student.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, repo.UpdateSecret(ctx, student.ID, "newhash", time.Now().UTC()))
	byID, err = repo.FindByID(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, "newhash", byID.SecretHash)

	require.NoError(t, repo.Delete(ctx, student.ID))
	_, err = repo.FindByID(ctx, student.ID)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestLocalStudentRepositoryListFilters(t *testing.T) {
	store := newLocalStore(t)
	repo := NewLocalStudentRepository(store)
	ctx := context.Background()

	inactive := false
	require.NoError(t, repo.Create(ctx, &models.Student{Username: "a", FullName: "Alpha", RollNumber: "1", Class: "10", Section: "A", Active: true}))
	require.NoError(t, repo.Create(ctx, &models.Student{Username: "b", FullName: "Bravo", RollNumber: "2", Class: "11", Section: "B", Active: true}))
	require.NoError(t, repo.Create(ctx, &models.Student{Username: "c", FullName: "Charlie", RollNumber: "3", Class: "10", Section: "A", Active: false}))

	students, total, err := repo.List(ctx, models.StudentFilter{Class: "10"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, students, 2)

	students, total, err = repo.List(ctx, models.StudentFilter{Class: "10", Active: &inactive})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Charlie", students[0].FullName)

	students, _, err = repo.List(ctx, models.StudentFilter{Search: "brav"})
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "Bravo", students[0].FullName)

	students, _, err = repo.List(ctx, models.StudentFilter{SortBy: "full_name", SortOrder: "asc"})
	require.NoError(t, err)
	require.Len(t, students, 3)
	assert.Equal(t, "Alpha", students[0].FullName)
}

func TestLocalMediaRepositoryVisibility(t *testing.T) {
	store := newLocalStore(t)
	repo := NewLocalMediaRepository(store)
	ctx := context.Background()

	items := []*models.MediaItem{
		{Title: "Approved for all", Kind: models.MediaKindPhoto, AssignedTo: models.AudienceAll, Status: models.MediaStatusApproved, UploadedBy: "admin"},
		{Title: "Approved for s-1", Kind: models.MediaKindPhoto, AssignedTo: "s-1", Status: models.MediaStatusApproved, UploadedBy: "admin"},
		{Title: "Approved for s-2", Kind: models.MediaKindPhoto, AssignedTo: "s-2", Status: models.MediaStatusApproved, UploadedBy: "admin"},
		{Title: "Pending for all", Kind: models.MediaKindVideo, AssignedTo: models.AudienceAll, Status: models.MediaStatusPending, UploadedBy: "admin"},
		{Title: "Own pending upload", Kind: models.MediaKindPhoto, AssignedTo: models.AudienceAll, Status: models.MediaStatusPending, UploadedBy: "s-1"},
	}
	for _, item := range items {
		require.NoError(t, repo.Create(ctx, item))
	}

	visible, err := repo.ListVisibleToStudent(ctx, "s-1")
	require.NoError(t, err)
	titles := make([]string, 0, len(visible))
	for _, item := range visible {
		titles = append(titles, item.Title)
	}
	assert.ElementsMatch(t, []string{"Approved for all", "Approved for s-1", "Own pending upload"}, titles)
}

func TestLocalMediaRepositoryModerateAndDelete(t *testing.T) {
	store := newLocalStore(t)
	repo := NewLocalMediaRepository(store)
	ctx := context.Background()

	item := &models.MediaItem{Title: "Clip", Kind: models.MediaKindVideo, AssignedTo: models.AudienceAll, Status: models.MediaStatusPending, UploadedBy: "s-1"}
	require.NoError(t, repo.Create(ctx, item))

	require.NoError(t, repo.UpdateStatus(ctx, item.ID, models.MediaStatusApproved, time.Now().UTC()))
	found, err := repo.FindByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MediaStatusApproved, found.Status)

	require.NoError(t, repo.Delete(ctx, item.ID))
	_, err = repo.FindByID(ctx, item.ID)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestLocalSettingsRepositoryUpsert(t *testing.T) {
	store := newLocalStore(t)
	repo := NewLocalSettingsRepository(store)
	ctx := context.Background()

	_, err := repo.Get(ctx, models.SettingCloudName)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	require.NoError(t, repo.Upsert(ctx, &models.Setting{Key: models.SettingCloudName, Value: "demo-cloud"}))
	require.NoError(t, repo.Upsert(ctx, &models.Setting{Key: models.SettingCloudName, Value: "next-cloud"}))

	setting, err := repo.Get(ctx, models.SettingCloudName)
	require.NoError(t, err)
	assert.Equal(t, "next-cloud", setting.Value)
}

func TestLocalUserRepositoryAuthFlow(t *testing.T) {
	store := newLocalStore(t)
	repo := NewLocalUserRepository(store)
	ctx := context.Background()

	user := &models.User{Email: "admin@portal.local", PasswordHash: "hash", FullName: "Portal Admin", Role: models.RoleAdmin, Active: true}
	require.NoError(t, repo.Create(ctx, user))

	found, err := NewLocalUserRepository(store).FindByEmail(ctx, "admin@portal.local")
	require.NoError(t, err)
	assert.Equal(t, "hash", found.PasswordHash)

	token := &models.RefreshToken{SubjectID: user.ID, Role: models.RoleAdmin, Token: "opaque", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, repo.CreateRefreshToken(ctx, token))

	session, err := repo.FindRefreshToken(ctx, "opaque")
	require.NoError(t, err)
	assert.False(t, session.Revoked)

	require.NoError(t, repo.RevokeSubjectRefreshTokens(ctx, user.ID))
	session, err = repo.FindRefreshToken(ctx, "opaque")
	require.NoError(t, err)
	assert.True(t, session.Revoked)
}
