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

	_ "github.com/unilab/slotbook-api/api/swagger"
	"github.com/unilab/slotbook-api/internal/civiltime"
	"github.com/unilab/slotbook-api/internal/handler"
	"github.com/unilab/slotbook-api/internal/middleware"
	"github.com/unilab/slotbook-api/internal/models"
	"github.com/unilab/slotbook-api/internal/repository"
	"github.com/unilab/slotbook-api/internal/service"
	"github.com/unilab/slotbook-api/pkg/config"
	"github.com/unilab/slotbook-api/pkg/database"
	"github.com/unilab/slotbook-api/pkg/jobs"
	"github.com/unilab/slotbook-api/pkg/logger"
	corsmiddleware "github.com/unilab/slotbook-api/pkg/middleware/cors"
	reqidmiddleware "github.com/unilab/slotbook-api/pkg/middleware/requestid"
	"github.com/unilab/slotbook-api/pkg/storage"

	rediscache "github.com/unilab/slotbook-api/pkg/cache"
)

// @title Slotbook API
// @version 1.0.0
// @description Teacher availability and student slot booking
// @BasePath /api/v1
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	if err := database.EnsureSchema(ctx, db); err != nil {
		logr.Sugar().Fatalw("failed to ensure schema", "error", err)
	}

	converter, err := civiltime.NewConverter(cfg.Booking.Timezone)
	if err != nil {
		logr.Sugar().Fatalw("failed to load booking timezone", "zone", cfg.Booking.Timezone, "error", err)
	}

	redisClient, err := rediscache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	fileStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	reservationRepo := repository.NewReservationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Booking.ListCacheTTL, logr, cfg.Booking.CacheEnabled && redisClient != nil)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	roomSvc := service.NewRoomService(roomRepo, validate, logr)
	generator := service.NewSlotGenerator(converter)
	availabilitySvc := service.NewAvailabilityService(availabilityRepo, reservationRepo, generator, converter, cacheSvc, metricsSvc, validate, logr)
	reservationSvc := service.NewReservationService(reservationRepo, converter, cacheSvc, metricsSvc, logr)

	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(reservationRepo, fileStore, signer, converter, metricsSvc,
		service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Exports.SignedURLTTL},
		jobs.QueueConfig{Workers: cfg.Exports.WorkerConcurrency, MaxRetries: cfg.Exports.WorkerRetries},
		logr)
	exportSvc.Start(ctx)
	defer exportSvc.Stop()
	go exportSvc.RunCleanupLoop(ctx, cfg.Exports.CleanupInterval)

	authHandler := handler.NewAuthHandler(authSvc)
	roomHandler := handler.NewRoomHandler(roomSvc)
	availabilityHandler := handler.NewAvailabilityHandler(availabilitySvc)
	reservationHandler := handler.NewReservationHandler(reservationSvc)
	exportHandler := handler.NewExportHandler(exportSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	rooms := protected.Group("/rooms")
	rooms.GET("", roomHandler.List)
	rooms.GET("/:id", roomHandler.Get)
	rooms.POST("", middleware.RequireRoles(), roomHandler.Create)
	rooms.PUT("/:id", middleware.RequireRoles(), roomHandler.Update)
	rooms.DELETE("/:id", middleware.RequireRoles(), roomHandler.Delete)

	availabilities := protected.Group("/availabilities")
	availabilities.GET("", availabilityHandler.List)
	availabilities.GET("/:id", availabilityHandler.Get)
	availabilities.POST("", middleware.RequireRoles(models.RoleTeacher), availabilityHandler.Declare)
	availabilities.POST("/:id/block", middleware.RequireRoles(models.RoleTeacher), availabilityHandler.Block)
	availabilities.POST("/:id/unblock", middleware.RequireRoles(models.RoleTeacher), availabilityHandler.Unblock)
	availabilities.DELETE("/:id", middleware.RequireRoles(models.RoleTeacher), availabilityHandler.Delete)

	reservations := protected.Group("/reservations")
	reservations.GET("/mine", middleware.RequireRoles(models.RoleStudent), reservationHandler.ListMine)
	reservations.POST("/:id/claim", middleware.RequireRoles(models.RoleStudent), reservationHandler.Claim)
	reservations.DELETE("/:id", middleware.RequireRoles(models.RoleTeacher), reservationHandler.Delete)

	exports := protected.Group("/exports")
	exports.POST("", middleware.RequireRoles(models.RoleTeacher), exportHandler.Request)
	exports.GET("/:id", middleware.RequireRoles(models.RoleTeacher), exportHandler.Status)
	exports.GET("/download/:token", exportHandler.Download)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
