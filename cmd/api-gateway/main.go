package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/tahfidz-admin-api/api/swagger"
	"github.com/noah-isme/tahfidz-admin-api/internal/handler"
	internalmiddleware "github.com/noah-isme/tahfidz-admin-api/internal/middleware"
	"github.com/noah-isme/tahfidz-admin-api/internal/repository"
	"github.com/noah-isme/tahfidz-admin-api/internal/service"
	"github.com/noah-isme/tahfidz-admin-api/pkg/cache"
	"github.com/noah-isme/tahfidz-admin-api/pkg/config"
	"github.com/noah-isme/tahfidz-admin-api/pkg/database"
	"github.com/noah-isme/tahfidz-admin-api/pkg/jobs"
	"github.com/noah-isme/tahfidz-admin-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/tahfidz-admin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/tahfidz-admin-api/pkg/middleware/requestid"
	"github.com/noah-isme/tahfidz-admin-api/pkg/storage"
)

// @title Tahfidz Admin API
// @version 1.0.0
// @description Administration API for the tahfidz school portal: bulk student and guardian provisioning.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	db, err := database.NewPostgres(context.Background(), cfg.Database, cfg.Import.Workers)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(context.Background(), cfg.Redis)
		switch {
		case err != nil:
			logr.Warn("redis unavailable; student list cache disabled", zap.Error(err))
		case redisClient != nil:
			redisRepo := repository.NewCacheRepository(redisClient, "tahfidz")
			defer redisRepo.Close() //nolint:errcheck
			cacheRepo = redisRepo
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.StudentListTTL, logr, cfg.Cache.Enabled)

	validate := validator.New()
	hasher := service.NewBcryptHasher(cfg.Import.BcryptCost)

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	classRepo := repository.NewClassRepository(db)
	yearRepo := repository.NewAcademicYearRepository(db)
	provisioningRepo := repository.NewProvisioningRepository(db)

	deriver, err := service.NewIdentityDeriver(cfg.Import.StudentEmailDomain, cfg.Import.GuardianEmailDomain)
	if err != nil {
		logr.Fatal("invalid import email domains", zap.Error(err))
	}

	authSvc := service.NewAuthService(userRepo, hasher, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	studentSvc := service.NewStudentService(studentRepo, cacheSvc, cfg.Cache.StudentListTTL, logr)

	scheduler := jobs.NewScheduler(logr, 5*time.Minute)
	var reportSvc *service.ImportReportService
	if cfg.Reports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Fatal("failed to prepare import report storage", zap.Error(err))
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		reportSvc = service.NewImportReportService(store, signer, service.ImportReportConfig{APIPrefix: cfg.APIPrefix}, logr, nil)
		if err := scheduler.Register("import-report-cleanup", cfg.Reports.CleanupSchedule, reportSvc.Cleanup); err != nil {
			logr.Fatal("failed to schedule import report cleanup", zap.Error(err))
		}
	}

	importSvc := service.NewStudentImportService(
		service.NewRowValidator(cfg.Import.StrictGender),
		service.NewReferenceResolver(classRepo, yearRepo),
		service.NewAccountProvisioner(provisioningRepo, deriver, hasher, cfg.Import.GuardianConflict, logr),
		deriver,
		cacheSvc,
		reportArchiverOrNil(reportSvc),
		metricsSvc,
		service.StudentImportConfig{
			MaxErrors: cfg.Import.MaxErrors,
			RowDelay:  cfg.Import.RowDelay,
			Workers:   cfg.Import.Workers,
			MaxRows:   cfg.Import.MaxRows,
		},
		logr,
	)

	authHandler := handler.NewAuthHandler(authSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)
	importHandler := handler.NewStudentImportHandler(
		importSvc,
		service.NewSpreadsheetParser(),
		service.NewCredentialExportService(validate),
		reportOpenerOrNil(reportSvc),
		cfg.Import.MaxUploadBytes,
		logr,
	)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc, "/health", "/metrics"))

	r.GET("/health", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)
	// Report links are signed and expire, so they are usable from a plain browser download.
	api.GET("/admin/students/import/reports/:token", importHandler.DownloadReport)

	admin := api.Group("/admin", internalmiddleware.JWT(authSvc), internalmiddleware.RequireAdmin())
	admin.GET("/students", studentHandler.List)
	admin.GET("/metrics", metricsHandler.Snapshot)
	admin.POST("/students/import", importHandler.Import)
	admin.POST("/students/import/upload", importHandler.Upload)
	admin.POST("/students/import/credentials", importHandler.ExportCredentials)

	scheduler.Start()
	defer scheduler.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}

// A nil interface disables reports downstream; never hand over a typed nil pointer.
func reportArchiverOrNil(svc *service.ImportReportService) service.ReportArchiver {
	if svc == nil {
		return nil
	}
	return svc
}

func reportOpenerOrNil(svc *service.ImportReportService) handler.ReportOpener {
	if svc == nil {
		return nil
	}
	return svc
}
