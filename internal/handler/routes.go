package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/danuarta/mediaportal-api/internal/middleware"
	"github.com/danuarta/mediaportal-api/internal/service"
)

// Handlers bundles every HTTP handler the router mounts.
type Handlers struct {
	Auth     *AuthHandler
	Students *StudentHandler
	Media    *MediaHandler
	Settings *SettingsHandler
	Exports  *ExportHandler
	Metrics  *MetricsHandler
}

// RegisterRoutes mounts all portal endpoints on the engine. Auth endpoints
// that issue tokens stay public; everything else requires a valid access
// token and roster, settings and export management require the admin role.
func RegisterRoutes(r *gin.Engine, auth *service.AuthService, h Handlers) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	r.POST("/auth/login", h.Auth.Login)
	r.POST("/auth/refresh", h.Auth.Refresh)

	secured := r.Group("", middleware.JWT(auth))

	secured.POST("/auth/logout", h.Auth.Logout)
	secured.POST("/auth/change-password", h.Auth.ChangePassword)
	secured.GET("/auth/me", h.Auth.Me)

	// Upload, listing and deletion are role-aware inside the service:
	// students only ever see and touch their own slice of the library.
	secured.POST("/media", h.Media.Upload)
	secured.GET("/media", h.Media.List)
	secured.GET("/media/:id", h.Media.Get)
	secured.DELETE("/media/:id", h.Media.Delete)

	admin := secured.Group("", middleware.RequireAdmin())

	admin.GET("/students", h.Students.List)
	admin.POST("/students", h.Students.Create)
	admin.GET("/students/:id", h.Students.Get)
	admin.PUT("/students/:id", h.Students.Update)
	admin.POST("/students/:id/secret", h.Students.ResetSecret)
	admin.DELETE("/students/:id", h.Students.Delete)

	admin.PATCH("/media/:id/status", h.Media.Moderate)

	admin.GET("/settings/storage", h.Settings.GetStorage)
	admin.PUT("/settings/storage", h.Settings.UpdateStorage)

	admin.GET("/exports/roster", h.Exports.Roster)
	admin.GET("/exports/media", h.Exports.Media)
}
