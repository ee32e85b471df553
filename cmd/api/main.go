package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/danuarta/mediaportal-api/api/swagger"
	"github.com/danuarta/mediaportal-api/internal/handler"
	internalmiddleware "github.com/danuarta/mediaportal-api/internal/middleware"
	"github.com/danuarta/mediaportal-api/internal/repository"
	"github.com/danuarta/mediaportal-api/internal/service"
	"github.com/danuarta/mediaportal-api/pkg/cache"
	"github.com/danuarta/mediaportal-api/pkg/cloudinary"
	"github.com/danuarta/mediaportal-api/pkg/config"
	"github.com/danuarta/mediaportal-api/pkg/database"
	"github.com/danuarta/mediaportal-api/pkg/logger"
	corsmiddleware "github.com/danuarta/mediaportal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/danuarta/mediaportal-api/pkg/middleware/requestid"
	"github.com/danuarta/mediaportal-api/pkg/storage"
)

// @title Media Portal API
// @version 0.1.0
// @description Role-based media sharing portal for class photo and video distribution
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	// The JSON store always exists: it backs every repository when no
	// database is configured and mirrors settings writes when one is.
	store, err := storage.NewJSONStore(cfg.LocalStore.Dir)
	if err != nil {
		logr.Sugar().Fatalw("failed to open local store", "dir", cfg.LocalStore.Dir, "error", err)
	}
	localSettings := repository.NewLocalSettingsRepository(store)

	cacheRepo := repository.NewCacheRepository(nil, logr)
	if cfg.Redis.Configured() {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect redis", "error", err)
		}
		cacheRepo = repository.NewCacheRepository(client, logr)
	}

	uploader := cloudinary.New(cloudinary.WithFolder(cfg.Cloudinary.Folder))

	authCfg := service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		Audience:           cfg.JWT.Audience,
		SingleSession:      cfg.JWT.SingleSession,
	}

	var (
		authSvc     *service.AuthService
		studentSvc  *service.StudentService
		settingsSvc *service.SettingsService
		mediaSvc    *service.MediaService
		exportSvc   *service.ExportService
	)

	if cfg.Database.Configured() {
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect database", "error", err)
		}
		defer db.Close() //nolint:errcheck

		users := repository.NewUserRepository(db)
		students := repository.NewStudentRepository(db)
		media := repository.NewMediaRepository(db)
		settings := repository.NewSettingsRepository(db)

		authSvc = service.NewAuthService(users, students, validate, logr, authCfg)
		studentSvc = service.NewStudentService(students, cacheRepo, users, validate, logr)
		settingsSvc = service.NewSettingsService(settings, localSettings, cacheRepo, users, cfg.Cloudinary, cfg.Cache.SettingsTTL, validate, logr)
		mediaSvc = service.NewMediaService(media, uploader, settingsSvc, cacheRepo, users, metricsSvc, cfg.Media.MaxUploadBytes, cfg.Media.CacheTTL, validate, logr)
		exportSvc = service.NewExportService(students, media, nil, nil, logr)
	} else {
		logr.Sugar().Infow("no database configured, using local store", "dir", cfg.LocalStore.Dir)

		users := repository.NewLocalUserRepository(store)
		students := repository.NewLocalStudentRepository(store)
		media := repository.NewLocalMediaRepository(store)

		authSvc = service.NewAuthService(users, students, validate, logr, authCfg)
		studentSvc = service.NewStudentService(students, cacheRepo, users, validate, logr)
		settingsSvc = service.NewSettingsService(nil, localSettings, cacheRepo, users, cfg.Cloudinary, cfg.Cache.SettingsTTL, validate, logr)
		mediaSvc = service.NewMediaService(media, uploader, settingsSvc, cacheRepo, users, metricsSvc, cfg.Media.MaxUploadBytes, cfg.Media.CacheTTL, validate, logr)
		exportSvc = service.NewExportService(students, media, nil, nil, logr)
	}

	seedCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := authSvc.EnsureAdminAccount(seedCtx, cfg.Admin.Email, cfg.Admin.Password, cfg.Admin.FullName); err != nil {
		logr.Sugar().Fatalw("failed to seed admin account", "error", err)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	handler.RegisterRoutes(r, authSvc, handler.Handlers{
		Auth:     handler.NewAuthHandler(authSvc),
		Students: handler.NewStudentHandler(studentSvc),
		Media:    handler.NewMediaHandler(mediaSvc),
		Settings: handler.NewSettingsHandler(settingsSvc),
		Exports:  handler.NewExportHandler(exportSvc),
		Metrics:  handler.NewMetricsHandler(metricsSvc),
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
