package service

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/danuarta/mediaportal-api/internal/dto"
	"github.com/danuarta/mediaportal-api/internal/models"
	"github.com/danuarta/mediaportal-api/pkg/cloudinary"
	appErrors "github.com/danuarta/mediaportal-api/pkg/errors"
)

type mockMediaRepo struct {
	items   map[string]*models.MediaItem
	nextID  int
	deleted []string
}

func newMockMediaRepo() *mockMediaRepo {
	return &mockMediaRepo{items: map[string]*models.MediaItem{}}
}

func (m *mockMediaRepo) Create(ctx context.Context, item *models.MediaItem) error {
	if item.ID == "" {
		m.nextID++
		item.ID = fmt.Sprintf("m-%d", m.nextID)
	}
	copied := *item
	m.items[item.ID] = &copied
	return nil
}

func (m *mockMediaRepo) FindByID(ctx context.Context, id string) (*models.MediaItem, error) {
	item, ok := m.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *item
	return &copied, nil
}

func (m *mockMediaRepo) List(ctx context.Context, filter models.MediaFilter) ([]models.MediaItem, int, error) {
	var out []models.MediaItem
	for _, item := range m.items {
		if filter.Status != "" && item.Status != filter.Status {
			continue
		}
		out = append(out, *item)
	}
	return out, len(out), nil
}

func (m *mockMediaRepo) ListVisibleToStudent(ctx context.Context, studentID string) ([]models.MediaItem, error) {
	var out []models.MediaItem
	for _, item := range m.items {
		if visibleToStudent(item, studentID) {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (m *mockMediaRepo) UpdateStatus(ctx context.Context, id string, status models.MediaStatus, updatedAt time.Time) error {
	item, ok := m.items[id]
	if !ok {
		return sql.ErrNoRows
	}
	item.Status = status
	item.UpdatedAt = updatedAt
	return nil
}

func (m *mockMediaRepo) Delete(ctx context.Context, id string) error {
	delete(m.items, id)
	m.deleted = append(m.deleted, id)
	return nil
}

type stubCredentials struct {
	creds cloudinary.Credentials
	err   error
}

func (s stubCredentials) Credentials(ctx context.Context) (cloudinary.Credentials, error) {
	return s.creds, s.err
}

type countingCredentials struct {
	creds cloudinary.Credentials
	calls int
}

func (c *countingCredentials) Credentials(ctx context.Context) (cloudinary.Credentials, error) {
	c.calls++
	return c.creds, nil
}

// makeFileHeader builds a real multipart.FileHeader by round-tripping the
// payload through a parsed multipart request.
func makeFileHeader(t *testing.T, filename, contentType string, payload []byte) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(map[string][]string)
	h["Content-Disposition"] = []string{`form-data; name="files"; filename="` + filename + `"`}
	h["Content-Type"] = []string{contentType}
	fw, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = fw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(32<<20))
	files := req.MultipartForm.File["files"]
	require.Len(t, files, 1)
	return files[0]
}

func newUploadTestServer(t *testing.T, hits *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hits++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"secure_url":"https://cdn.example/item.jpg","public_id":"item","resource_type":"image","format":"jpg","bytes":4}`))
	}))
}

func newTestMediaService(repo *mockMediaRepo, uploader *cloudinary.Client, cache mediaCache) *MediaService {
	creds := stubCredentials{creds: cloudinary.Credentials{CloudName: "demo", UploadPreset: "unsigned"}}
	return NewMediaService(repo, uploader, creds, cache, &mockAuditor{}, nil, 1<<20, time.Minute, validator.New(), zap.NewNop())
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin, Username: "admin@portal.local"}
}

func studentClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleStudent, Username: "student"}
}

func TestMediaServiceUploadAdminAutoApproved(t *testing.T) {
	hits := 0
	server := newUploadTestServer(t, &hits)
	defer server.Close()
	repo := newMockMediaRepo()
	svc := newTestMediaService(repo, cloudinary.New(cloudinary.WithBaseURL(server.URL)), nil)

	fh := makeFileHeader(t, "photo.jpg", "image/jpeg", []byte("data"))
	result, err := svc.Upload(context.Background(), adminClaims(), dto.CreateMediaRequest{Title: "Sports day"}, []*multipart.FileHeader{fh})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Uploaded)
	assert.Equal(t, 0, result.Failed)
	require.Len(t, result.Items, 1)
	assert.Equal(t, models.MediaStatusApproved, result.Items[0].Status)
	assert.Equal(t, models.AudienceAll, result.Items[0].AssignedTo)
	assert.Equal(t, models.MediaKindPhoto, result.Items[0].Kind)
	assert.Equal(t, 1, hits)
}

func TestMediaServiceUploadStudentPending(t *testing.T) {
	hits := 0
	server := newUploadTestServer(t, &hits)
	defer server.Close()
	repo := newMockMediaRepo()
	svc := newTestMediaService(repo, cloudinary.New(cloudinary.WithBaseURL(server.URL)), nil)

	fh := makeFileHeader(t, "clip.mp4", "video/mp4", []byte("data"))
	result, err := svc.Upload(context.Background(), studentClaims("s-1"), dto.CreateMediaRequest{Title: "My clip", AssignedTo: "all"}, []*multipart.FileHeader{fh})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, models.MediaStatusPending, result.Items[0].Status)
	assert.Equal(t, "s-1", result.Items[0].AssignedTo)
	assert.Equal(t, models.MediaKindVideo, result.Items[0].Kind)
}

func TestMediaServiceUploadSizeGateSkipsNetwork(t *testing.T) {
	hits := 0
	server := newUploadTestServer(t, &hits)
	defer server.Close()
	repo := newMockMediaRepo()
	creds := &countingCredentials{creds: cloudinary.Credentials{CloudName: "demo", UploadPreset: "unsigned"}}
	svc := NewMediaService(repo, cloudinary.New(cloudinary.WithBaseURL(server.URL)), creds, nil, nil, nil, 2, time.Minute, validator.New(), zap.NewNop())

	fh := makeFileHeader(t, "big.jpg", "image/jpeg", []byte("more than two bytes"))
	result, err := svc.Upload(context.Background(), adminClaims(), dto.CreateMediaRequest{Title: "Too big"}, []*multipart.FileHeader{fh})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Uploaded)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 0, hits)
	// A batch of nothing but gated files never resolves storage credentials,
	// which would otherwise hit the cache or the settings table.
	assert.Equal(t, 0, creds.calls)
	assert.Empty(t, repo.items)
}

func TestMediaServiceUploadGatedBatchSkipsCredentialLookup(t *testing.T) {
	hits := 0
	server := newUploadTestServer(t, &hits)
	defer server.Close()
	repo := newMockMediaRepo()
	creds := &countingCredentials{creds: cloudinary.Credentials{CloudName: "demo", UploadPreset: "unsigned"}}
	svc := NewMediaService(repo, cloudinary.New(cloudinary.WithBaseURL(server.URL)), creds, nil, nil, nil, 2, time.Minute, validator.New(), zap.NewNop())

	files := []*multipart.FileHeader{
		makeFileHeader(t, "big.jpg", "image/jpeg", []byte("more than two bytes")),
		makeFileHeader(t, "notes.pdf", "application/pdf", []byte("x")),
	}
	result, err := svc.Upload(context.Background(), adminClaims(), dto.CreateMediaRequest{Title: "Rejected batch"}, files)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Uploaded)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, 0, creds.calls)
	assert.Equal(t, 0, hits)

	// One admissible file makes the batch resolve credentials exactly once.
	files = append(files, makeFileHeader(t, "ok.jpg", "image/jpeg", []byte("ab")))
	result, err = svc.Upload(context.Background(), adminClaims(), dto.CreateMediaRequest{Title: "Mixed batch"}, files)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Uploaded)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, 1, creds.calls)
	assert.Equal(t, 1, hits)
}

func TestMediaServiceUploadUnsupportedMime(t *testing.T) {
	hits := 0
	server := newUploadTestServer(t, &hits)
	defer server.Close()
	svc := newTestMediaService(newMockMediaRepo(), cloudinary.New(cloudinary.WithBaseURL(server.URL)), nil)

	fh := makeFileHeader(t, "notes.pdf", "application/pdf", []byte("data"))
	result, err := svc.Upload(context.Background(), adminClaims(), dto.CreateMediaRequest{Title: "Notes"}, []*multipart.FileHeader{fh})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 0, hits)
}

func TestMediaServiceUploadBatchTally(t *testing.T) {
	hits := 0
	server := newUploadTestServer(t, &hits)
	defer server.Close()
	repo := newMockMediaRepo()
	svc := newTestMediaService(repo, cloudinary.New(cloudinary.WithBaseURL(server.URL)), nil)

	files := []*multipart.FileHeader{
		makeFileHeader(t, "one.jpg", "image/jpeg", []byte("data")),
		makeFileHeader(t, "two.txt", "text/plain", []byte("data")),
		makeFileHeader(t, "three.png", "image/png", []byte("data")),
	}
	result, err := svc.Upload(context.Background(), adminClaims(), dto.CreateMediaRequest{Title: "Album"}, files)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Uploaded)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "two.txt", result.Errors[0].Filename)
	assert.Len(t, repo.items, 2)
}

func TestMediaServiceUploadCredentialsMissing(t *testing.T) {
	svc := NewMediaService(newMockMediaRepo(), cloudinary.New(), stubCredentials{err: appErrors.Clone(appErrors.ErrNotConfigured, "storage credentials not configured")}, nil, nil, nil, 1<<20, time.Minute, validator.New(), zap.NewNop())

	fh := makeFileHeader(t, "photo.jpg", "image/jpeg", []byte("data"))
	_, err := svc.Upload(context.Background(), adminClaims(), dto.CreateMediaRequest{Title: "Photo"}, []*multipart.FileHeader{fh})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotConfigured.Code, appErrors.FromError(err).Code)
}

func TestMediaServiceListForStudentUsesCache(t *testing.T) {
	repo := newMockMediaRepo()
	repo.items["m-1"] = &models.MediaItem{ID: "m-1", Title: "Visible", Status: models.MediaStatusApproved, AssignedTo: models.AudienceAll, UploadedBy: "admin-1"}
	repo.items["m-2"] = &models.MediaItem{ID: "m-2", Title: "Hidden", Status: models.MediaStatusPending, AssignedTo: models.AudienceAll, UploadedBy: "admin-1"}
	cache := newMemCache()
	svc := newTestMediaService(repo, cloudinary.New(), cache)

	items, err := svc.ListForStudent(context.Background(), "s-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Visible", items[0].Title)

	// Repo changes are not reflected until the cache expires or is invalidated.
	repo.items["m-3"] = &models.MediaItem{ID: "m-3", Title: "New", Status: models.MediaStatusApproved, AssignedTo: models.AudienceAll}
	items, err = svc.ListForStudent(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestMediaServiceGetEnforcesVisibility(t *testing.T) {
	repo := newMockMediaRepo()
	repo.items["m-1"] = &models.MediaItem{ID: "m-1", Status: models.MediaStatusPending, AssignedTo: "s-2", UploadedBy: "s-2"}
	svc := newTestMediaService(repo, cloudinary.New(), nil)

	_, err := svc.Get(context.Background(), studentClaims("s-1"), "m-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	item, err := svc.Get(context.Background(), studentClaims("s-2"), "m-1")
	require.NoError(t, err)
	assert.Equal(t, "m-1", item.ID)

	item, err = svc.Get(context.Background(), adminClaims(), "m-1")
	require.NoError(t, err)
	assert.Equal(t, "m-1", item.ID)
}

func TestMediaServiceModerate(t *testing.T) {
	repo := newMockMediaRepo()
	repo.items["m-1"] = &models.MediaItem{ID: "m-1", Status: models.MediaStatusPending, AssignedTo: "s-1", UploadedBy: "s-1"}
	cache := newMemCache()
	svc := newTestMediaService(repo, cloudinary.New(), cache)

	item, err := svc.Moderate(context.Background(), "admin-1", "m-1", dto.ModerateMediaRequest{Status: "approved"})
	require.NoError(t, err)
	assert.Equal(t, models.MediaStatusApproved, item.Status)
	assert.NotEmpty(t, cache.published)

	_, err = svc.Moderate(context.Background(), "admin-1", "m-1", dto.ModerateMediaRequest{Status: "archived"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestMediaServiceDeleteRules(t *testing.T) {
	repo := newMockMediaRepo()
	repo.items["own-pending"] = &models.MediaItem{ID: "own-pending", Status: models.MediaStatusPending, UploadedBy: "s-1"}
	repo.items["own-approved"] = &models.MediaItem{ID: "own-approved", Status: models.MediaStatusApproved, UploadedBy: "s-1"}
	repo.items["other"] = &models.MediaItem{ID: "other", Status: models.MediaStatusPending, UploadedBy: "s-2"}
	svc := newTestMediaService(repo, cloudinary.New(), nil)

	require.NoError(t, svc.Delete(context.Background(), studentClaims("s-1"), "own-pending"))

	err := svc.Delete(context.Background(), studentClaims("s-1"), "own-approved")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	err = svc.Delete(context.Background(), studentClaims("s-1"), "other")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Delete(context.Background(), adminClaims(), "own-approved"))
	require.NoError(t, svc.Delete(context.Background(), adminClaims(), "other"))
}
