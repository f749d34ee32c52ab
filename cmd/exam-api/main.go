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

	_ "github.com/noah-isme/sma-exam-api/api/swagger"
	"github.com/noah-isme/sma-exam-api/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-exam-api/internal/middleware"
	"github.com/noah-isme/sma-exam-api/internal/models"
	"github.com/noah-isme/sma-exam-api/internal/repository"
	"github.com/noah-isme/sma-exam-api/internal/service"
	"github.com/noah-isme/sma-exam-api/pkg/cache"
	"github.com/noah-isme/sma-exam-api/pkg/config"
	"github.com/noah-isme/sma-exam-api/pkg/database"
	"github.com/noah-isme/sma-exam-api/pkg/jobs"
	"github.com/noah-isme/sma-exam-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-exam-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-exam-api/pkg/middleware/requestid"
	"github.com/noah-isme/sma-exam-api/pkg/storage"
)

// @title SMA Exam API
// @version 1.0.0
// @description Exam calendar, timetable, room availability and seating service
// @BasePath /api/v1
// @schemes http
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, seating cache disabled", "error", err)
		redisClient = nil
	}

	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	subjectRepo := repository.NewSubjectRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	examRepo := repository.NewExamRepository(db)
	seatingRepo := repository.NewSeatingRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Seating.CacheTTL, logr, cfg.Seating.CacheEnabled && redisClient != nil)
	tokenSvc := service.NewTokenService(service.TokenConfig{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
	})
	availabilitySvc := service.NewRoomAvailabilityService(roomRepo, seatingRepo, validate, logr)
	timetableSvc := service.NewExamTimetableService(subjectRepo, examRepo, db, metricsSvc, validate, logr, service.ExamTimetableConfig{
		ProposalTTL: cfg.Scheduler.ProposalTTL,
	})

	planStorage, err := storage.NewLocalStorage(cfg.SeatingPlans.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare seating plan storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.SeatingPlans.SignedURLSecret, cfg.SeatingPlans.SignedURLTTL)
	planSvc := service.NewSeatingPlanService(examRepo, seatingRepo, planStorage, signer, metricsSvc, logr, service.SeatingPlanConfig{
		APIPrefix: cfg.APIPrefix,
	})
	planWorker := service.NewSeatingPlanWorker(planSvc, logr)
	planQueue := jobs.NewQueue("seating-plans", planWorker.Handle, jobs.QueueConfig{
		Workers:    cfg.SeatingPlans.WorkerConcurrency,
		MaxRetries: cfg.SeatingPlans.WorkerRetries,
		Logger:     logr,
	})
	planQueue.Start(ctx)
	defer planQueue.Stop()

	seatingSvc := service.NewSeatingService(
		examRepo,
		studentRepo,
		roomRepo,
		availabilitySvc,
		seatingRepo,
		db,
		cacheSvc,
		service.NewSeatingPlanScheduler(planQueue),
		metricsSvc,
		validate,
		logr,
		service.SeatingServiceConfig{Seed: cfg.Seating.Seed, CacheTTL: cfg.Seating.CacheTTL},
	)

	examScheduleHandler := handler.NewExamScheduleHandler(timetableSvc)
	seatingHandler := handler.NewSeatingHandler(availabilitySvc, seatingSvc, planSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, map[string]handler.Pinger{
		"postgres": handler.PingerFunc(db.PingContext),
		"redis":    cacheRepo,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc, "/metrics", "/health"))
	r.Use(internalmiddleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/seating-plans/:token", seatingHandler.DownloadPlan)

	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(tokenSvc))

	admin := internalmiddleware.RBAC(models.RoleAdmin)

	if cfg.Scheduler.Enabled {
		secured.GET("/exam-calendar/dates", examScheduleHandler.Calendar)
		secured.POST("/exam-schedules/generate", admin, examScheduleHandler.Generate)
		secured.GET("/exam-schedules/proposals/:id", admin, examScheduleHandler.Proposal)
		secured.POST("/exam-schedules/save", admin, examScheduleHandler.Save)
	}
	secured.GET("/exams", examScheduleHandler.List)
	secured.GET("/rooms/available", seatingHandler.AvailableRooms)
	secured.POST("/exams/:id/seating", admin, seatingHandler.Allocate)
	secured.GET("/exams/:id/seating", seatingHandler.Seating)
	secured.GET("/exams/:id/seating/plan", seatingHandler.PlanLink)
	secured.GET("/metrics/summary", admin, metricsHandler.Summary)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
