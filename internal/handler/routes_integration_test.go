package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/danuarta/mediaportal-api/internal/models"
	"github.com/danuarta/mediaportal-api/internal/repository"
	"github.com/danuarta/mediaportal-api/internal/service"
	"github.com/danuarta/mediaportal-api/pkg/cloudinary"
	"github.com/danuarta/mediaportal-api/pkg/config"
	"github.com/danuarta/mediaportal-api/pkg/storage"
)

const (
	integrationAdminEmail    = "admin@portal.test"
	integrationAdminPassword = "admin-secret"
)

func newPortalRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := storage.NewJSONStore(t.TempDir())
	require.NoError(t, err)

	logr := zap.NewNop()
	validate := validator.New()

	users := repository.NewLocalUserRepository(store)
	students := repository.NewLocalStudentRepository(store)
	media := repository.NewLocalMediaRepository(store)
	settings := repository.NewLocalSettingsRepository(store)
	cacheRepo := repository.NewCacheRepository(nil, logr)
	metricsSvc := service.NewMetricsService()

	uploadSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"secure_url":"https://cdn.example/item.jpg","public_id":"item-1","resource_type":"image","format":"jpg","bytes":42}`))
	}))
	t.Cleanup(uploadSrv.Close)
	uploader := cloudinary.New(cloudinary.WithBaseURL(uploadSrv.URL))

	authSvc := service.NewAuthService(users, students, validate, logr, service.AuthConfig{
		AccessTokenSecret:  "integration-secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
	})
	studentSvc := service.NewStudentService(students, cacheRepo, users, validate, logr)
	settingsSvc := service.NewSettingsService(nil, settings, cacheRepo, users,
		config.CloudinaryConfig{CloudName: "env-cloud", UploadPreset: "env-preset"},
		time.Minute, validate, logr)
	mediaSvc := service.NewMediaService(media, uploader, settingsSvc, cacheRepo, users, metricsSvc,
		1<<20, time.Minute, validate, logr)
	exportSvc := service.NewExportService(students, media, nil, nil, logr)

	require.NoError(t, authSvc.EnsureAdminAccount(context.Background(),
		integrationAdminEmail, integrationAdminPassword, "Portal Admin"))

	router := gin.New()
	RegisterRoutes(router, authSvc, Handlers{
		Auth:     NewAuthHandler(authSvc),
		Students: NewStudentHandler(studentSvc),
		Media:    NewMediaHandler(mediaSvc),
		Settings: NewSettingsHandler(settingsSvc),
		Exports:  NewExportHandler(exportSvc),
		Metrics:  NewMetricsHandler(metricsSvc),
	})
	return router
}

func doJSON(router *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req, _ := http.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func loginToken(t *testing.T, router *gin.Engine, identifier, password string) string {
	t.Helper()
	resp := doJSON(router, http.MethodPost, "/auth/login", "",
		fmt.Sprintf(`{"identifier":%q,"password":%q}`, identifier, password))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var envelope struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	require.NotEmpty(t, envelope.Data.AccessToken)
	return envelope.Data.AccessToken
}

func uploadMedia(t *testing.T, router *gin.Engine, token, title, assignedTo string) *httptest.ResponseRecorder {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	require.NoError(t, w.WriteField("title", title))
	if assignedTo != "" {
		require.NoError(t, w.WriteField("assigned_to", assignedTo))
	}

	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="files"; filename="snap.jpg"`)
	hdr.Set("Content-Type", "image/jpeg")
	part, err := w.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write([]byte("fake image bytes"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req, _ := http.NewRequest(http.MethodPost, "/media", buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func decodeUploadResult(t *testing.T, resp *httptest.ResponseRecorder) []models.MediaItem {
	t.Helper()
	var envelope struct {
		Data struct {
			Uploaded int                `json:"uploaded"`
			Items    []models.MediaItem `json:"items"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	require.Equal(t, len(envelope.Data.Items), envelope.Data.Uploaded)
	return envelope.Data.Items
}

func TestPortalRoutesIntegration(t *testing.T) {
	router := newPortalRouter(t)
	adminToken := loginToken(t, router, integrationAdminEmail, integrationAdminPassword)

	t.Run("health and readiness", func(t *testing.T) {
		require.Equal(t, http.StatusOK, doJSON(router, http.MethodGet, "/health", "", "").Code)
		require.Equal(t, http.StatusOK, doJSON(router, http.MethodGet, "/ready", "", "").Code)
	})

	t.Run("roster requires a token", func(t *testing.T) {
		resp := doJSON(router, http.MethodGet, "/students", "", "")
		require.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("admin creates a student", func(t *testing.T) {
		resp := doJSON(router, http.MethodPost, "/students", adminToken,
			`{"username":"rizky01","password":"student-secret","full_name":"Rizky Pratama","roll_number":"2024-001","class":"10A"}`)
		require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	})

	studentToken := loginToken(t, router, "rizky01", "student-secret")

	t.Run("student cannot manage the roster", func(t *testing.T) {
		resp := doJSON(router, http.MethodGet, "/students", studentToken, "")
		require.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("admin upload is approved immediately", func(t *testing.T) {
		resp := uploadMedia(t, router, adminToken, "Sports day", "all")
		require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

		items := decodeUploadResult(t, resp)
		require.Len(t, items, 1)
		require.Equal(t, models.MediaStatusApproved, items[0].Status)
		require.Equal(t, models.AudienceAll, items[0].AssignedTo)
	})

	t.Run("student sees approved media assigned to everyone", func(t *testing.T) {
		resp := doJSON(router, http.MethodGet, "/media", studentToken, "")
		require.Equal(t, http.StatusOK, resp.Code)
		require.Contains(t, resp.Body.String(), "Sports day")
	})

	t.Run("student upload stays pending until moderated", func(t *testing.T) {
		resp := uploadMedia(t, router, studentToken, "My project", "all")
		require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

		items := decodeUploadResult(t, resp)
		require.Len(t, items, 1)
		require.Equal(t, models.MediaStatusPending, items[0].Status)
		require.NotEqual(t, models.AudienceAll, items[0].AssignedTo)

		moderate := doJSON(router, http.MethodPatch, "/media/"+items[0].ID+"/status", adminToken,
			`{"status":"approved"}`)
		require.Equal(t, http.StatusOK, moderate.Code, moderate.Body.String())

		forbidden := doJSON(router, http.MethodPatch, "/media/"+items[0].ID+"/status", studentToken,
			`{"status":"approved"}`)
		require.Equal(t, http.StatusForbidden, forbidden.Code)
	})

	t.Run("settings fall back to env then record saved values", func(t *testing.T) {
		resp := doJSON(router, http.MethodGet, "/settings/storage", adminToken, "")
		require.Equal(t, http.StatusOK, resp.Code)
		require.Contains(t, resp.Body.String(), "env-cloud")

		update := doJSON(router, http.MethodPut, "/settings/storage", adminToken,
			`{"cloud_name":"portal-cloud","upload_preset":"portal-preset"}`)
		require.Equal(t, http.StatusOK, update.Code, update.Body.String())

		after := doJSON(router, http.MethodGet, "/settings/storage", adminToken, "")
		require.Equal(t, http.StatusOK, after.Code)
		require.Contains(t, after.Body.String(), "portal-cloud")
	})

	t.Run("settings are admin only", func(t *testing.T) {
		resp := doJSON(router, http.MethodGet, "/settings/storage", studentToken, "")
		require.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("roster export streams a csv", func(t *testing.T) {
		resp := doJSON(router, http.MethodGet, "/exports/roster?format=csv", adminToken, "")
		require.Equal(t, http.StatusOK, resp.Code)
		require.Contains(t, resp.Header().Get("Content-Type"), "text/csv")
		require.Contains(t, resp.Body.String(), "rizky01")
	})

	t.Run("metrics endpoint serves prometheus text", func(t *testing.T) {
		resp := doJSON(router, http.MethodGet, "/metrics", "", "")
		require.Equal(t, http.StatusOK, resp.Code)
	})

	t.Run("me describes the caller", func(t *testing.T) {
		resp := doJSON(router, http.MethodGet, "/auth/me", studentToken, "")
		require.Equal(t, http.StatusOK, resp.Code)
		require.Contains(t, resp.Body.String(), "rizky01")
	})
}
