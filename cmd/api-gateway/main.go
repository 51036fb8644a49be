package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/oasistrek/tourops-api/api/swagger"
	"github.com/oasistrek/tourops-api/internal/handler"
	"github.com/oasistrek/tourops-api/internal/middleware"
	"github.com/oasistrek/tourops-api/internal/models"
	"github.com/oasistrek/tourops-api/internal/realtime"
	"github.com/oasistrek/tourops-api/internal/repository"
	"github.com/oasistrek/tourops-api/internal/service"
	"github.com/oasistrek/tourops-api/pkg/cache"
	"github.com/oasistrek/tourops-api/pkg/config"
	"github.com/oasistrek/tourops-api/pkg/database"
	"github.com/oasistrek/tourops-api/pkg/export"
	"github.com/oasistrek/tourops-api/pkg/jobs"
	"github.com/oasistrek/tourops-api/pkg/logger"
	corsmiddleware "github.com/oasistrek/tourops-api/pkg/middleware/cors"
	reqidmiddleware "github.com/oasistrek/tourops-api/pkg/middleware/requestid"
	"github.com/oasistrek/tourops-api/pkg/notify"
	"github.com/oasistrek/tourops-api/pkg/storage"
)

// @title TourOps API
// @version 1.0.0
// @description Back-office API for tour operator rosters and tourist self-service
// @BasePath /api/v1
// @schemes http

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// 2. Logger
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck
	sugar := logr.Sugar()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// 3. Postgres
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		sugar.Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	if err := database.Migrate(cfg.Database); err != nil {
		sugar.Fatalw("failed to run migrations", "error", err)
	}

	// 4. Redis. The overview cache degrades to recompute-per-request when
	// Redis is unreachable, so a failure here is not fatal.
	var redisClient *redis.Client
	cacheEnabled := false
	if redisClient, err = cache.NewRedis(cfg.Redis); err != nil {
		sugar.Warnw("redis unavailable, response caching disabled", "error", err)
		redisClient = nil
	} else {
		cacheEnabled = true
		defer redisClient.Close() //nolint:errcheck
	}

	// 5. Metrics
	metricsSvc := service.NewMetricsService()

	// 6. Change feed. Always started: services publish into it after every
	// store write and version counters must advance even when the websocket
	// route is disabled.
	feed := realtime.New(realtime.Config{
		DebounceWindow: cfg.Realtime.DebounceWindow,
		SendBuffer:     cfg.Realtime.SendBuffer,
		Logger:         logr,
	})
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	feed.Start(rootCtx)

	// 7. Repositories
	userRepo := repository.NewUserRepository(db)
	touristRepo := repository.NewTouristRepository(db)
	guideRepo := repository.NewGuideRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	requestRepo := repository.NewGuideRequestRepository(db)
	driverRepo := repository.NewDriverRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)

	// 8. Assignment notices ride an in-process queue so webhook latency
	// never blocks a reconciliation write.
	var (
		noticeQueue *jobs.Queue
		notifier    *service.NotificationService
	)
	if cfg.Notifier.Enabled && cfg.Notifier.WebhookURL != "" {
		sender := notify.NewWebhookNotifier(cfg.Notifier.WebhookURL, cfg.Notifier.Timeout)
		worker := service.NewNotificationWorker(sender, logr)
		noticeQueue = jobs.NewQueue("notices", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Notifier.Workers,
			MaxRetries: cfg.Notifier.MaxRetries,
			RetryDelay: cfg.Notifier.RetryDelay,
			Logger:     logr,
		})
		noticeQueue.Start(rootCtx)
		notifier = service.NewNotificationService(noticeQueue, logr)
	}

	// 9. Services
	validate := validator.New()

	authSvc := service.NewAuthService(userRepo, touristRepo, feed, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		SingleSession:      cfg.JWT.SingleSession,
	})
	touristSvc := service.NewTouristService(touristRepo, logr)
	guideSvc := service.NewGuideService(guideRepo, feed, validate, logr)
	driverSvc := service.NewDriverService(driverRepo, validate, logr)
	assignmentSvc := service.NewAssignmentService(service.AssignmentServiceParams{
		Repo:      assignmentRepo,
		Tourists:  touristRepo,
		Guides:    guideRepo,
		Notifier:  notifier,
		Feed:      feed,
		Validator: validate,
		Logger:    logr,
		Config: service.AssignmentServiceConfig{
			DefaultTourName: cfg.Assignments.DefaultTourName,
			DefaultSpanDays: cfg.Assignments.DefaultSpanDays,
		},
	})
	requestSvc := service.NewGuideRequestService(requestRepo, guideRepo, feed, validate, logr)
	userSvc := service.NewUserService(userRepo, validate, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Overview.CacheTTL, logr, cacheEnabled)

	var overviewSvc *service.OverviewService
	if cfg.Overview.Enabled {
		overviewSvc = service.NewOverviewService(service.OverviewServiceParams{
			Tourists:    touristRepo,
			Guides:      guideRepo,
			Assignments: assignmentRepo,
			Requests:    requestRepo,
			Drivers:     driverRepo,
			Cache:       cacheSvc,
			Feed:        feed,
			Logger:      logr,
			Config:      service.OverviewServiceConfig{CacheTTL: cfg.Overview.CacheTTL},
		})
		go overviewSvc.Watch(rootCtx)
	}

	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			sugar.Fatalw("failed to init export storage", "error", err)
		}
		exportSvc = service.NewExportService(service.ExportServiceParams{
			Guides:      guideRepo,
			Drivers:     driverRepo,
			Assignments: assignmentRepo,
			Storage:     store,
			CSV:         export.NewCSVExporter(),
			PDF:         export.NewPDFExporter(),
			Signer:      storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL),
			Logger:      logr,
			Config: service.ExportConfig{
				APIPrefix: cfg.APIPrefix,
				ResultTTL: cfg.Exports.SignedURLTTL,
			},
		})
		go exportCleanupLoop(rootCtx, exportSvc, cfg.Exports.CleanupInterval, logr)
	}

	// 10. Handlers
	authHandler := handler.NewAuthHandler(authSvc)
	touristHandler := handler.NewTouristHandler(touristSvc, assignmentSvc, feed)
	guideHandler := handler.NewGuideHandler(guideSvc, feed)
	assignmentHandler := handler.NewAssignmentHandler(assignmentSvc, feed)
	requestHandler := handler.NewGuideRequestHandler(requestSvc, touristSvc, feed)
	driverHandler := handler.NewDriverHandler(driverSvc)
	userHandler := handler.NewUserHandler(userSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)
	realtimeHandler := handler.NewRealtimeHandler(authSvc, feed, logr)

	// 11. Router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)

	r.GET("/ready", func(c *gin.Context) {
		pingCtx, pingCancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer pingCancel()
		if err := db.PingContext(pingCtx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": "database unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", metricsHandler.Prometheus)

	if !cfg.IsProduction() {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/signup", authHandler.Signup)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authSvc), authHandler.ChangePassword)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	staff := api.Group("")
	staff.Use(middleware.JWT(authSvc), middleware.RBAC(models.RoleAdmin, models.RoleOperator))
	{
		staff.GET("/tourists", touristHandler.List)
		staff.GET("/tourists/:id", touristHandler.Get)
		staff.PUT("/tourists/:id/guide", middleware.Audit(userRepo, "assign_guide", "tourists"), touristHandler.AssignGuide)

		staff.GET("/guides", guideHandler.List)
		staff.GET("/guides/:id", guideHandler.Get)
		staff.POST("/guides", middleware.Audit(userRepo, "create", "guides"), guideHandler.Create)
		staff.PUT("/guides/:id", middleware.Audit(userRepo, "update", "guides"), guideHandler.Update)

		staff.GET("/assignments", assignmentHandler.List)
		staff.POST("/assignments", middleware.Audit(userRepo, "create", "assignments"), assignmentHandler.Create)
		staff.PATCH("/assignments/:id/status", middleware.Audit(userRepo, "update_status", "assignments"), assignmentHandler.UpdateStatus)
		staff.DELETE("/assignments/:id", middleware.Audit(userRepo, "delete", "assignments"), assignmentHandler.Delete)

		staff.GET("/guide-requests", requestHandler.List)
		staff.GET("/guide-requests/:id", requestHandler.Get)
		staff.POST("/guide-requests/:id/respond", middleware.Audit(userRepo, "respond", "guide_requests"), requestHandler.Respond)

		staff.GET("/drivers", driverHandler.List)
		staff.GET("/drivers/:id", driverHandler.Get)
		staff.POST("/drivers", middleware.Audit(userRepo, "create", "drivers"), driverHandler.Create)
		staff.PUT("/drivers/:id", middleware.Audit(userRepo, "update", "drivers"), driverHandler.Update)

		if cfg.Overview.Enabled {
			staff.GET("/overview", middleware.ResponseMeta(), handler.NewOverviewHandler(overviewSvc).Summary)
		}
		if cfg.Exports.Enabled {
			staff.POST("/exports", middleware.Audit(userRepo, "generate", "exports"), handler.NewExportHandler(exportSvc).Generate)
		}
	}

	// Staff accounts are admin-only. The service writes its own audit rows
	// with before and after values, so the generic audit middleware stays off
	// these routes.
	admin := api.Group("/users")
	admin.Use(middleware.JWT(authSvc), middleware.RBAC(models.RoleAdmin))
	{
		admin.GET("", userHandler.List)
		admin.GET("/:id", userHandler.Get)
		admin.POST("", userHandler.Create)
		admin.PUT("/:id", userHandler.Update)
		admin.DELETE("/:id", userHandler.Delete)
	}

	self := api.Group("")
	self.Use(middleware.JWT(authSvc), middleware.RBAC(models.RoleTourist))
	{
		self.GET("/tourists/me", touristHandler.Me)
		self.POST("/guide-requests", requestHandler.Create)
		self.GET("/guide-requests/mine", requestHandler.Mine)
	}

	// The download link carries its own HMAC token, the websocket carries
	// the access token in the query string. Neither goes through the JWT
	// header middleware.
	if cfg.Exports.Enabled {
		api.GET("/exports/download", handler.NewExportHandler(exportSvc).Download)
	}
	if cfg.Realtime.Enabled {
		api.GET("/ws/changes", realtimeHandler.Changes)
	}

	// 12. Serve with graceful shutdown
	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: r,
	}

	go func() {
		sugar.Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	sugar.Infow("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("server forced to stop", "error", err)
	}

	cancel()
	if noticeQueue != nil {
		noticeQueue.Stop()
	}
	feed.Stop()

	sugar.Infow("server stopped")
}

// exportCleanupLoop periodically removes export files whose download tokens
// have expired.
func exportCleanupLoop(ctx context.Context, exports *service.ExportService, interval time.Duration, logr *zap.Logger) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := exports.Cleanup(0)
			if err != nil {
				logr.Warn("export cleanup failed", zap.Error(err))
				continue
			}
			if len(removed) > 0 {
				logr.Info("expired exports removed", zap.Int("count", len(removed)))
			}
		}
	}
}
