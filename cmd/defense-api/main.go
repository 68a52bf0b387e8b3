package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/thesis-defense-api/api/swagger"
	"github.com/noah-isme/thesis-defense-api/internal/handler"
	internalmiddleware "github.com/noah-isme/thesis-defense-api/internal/middleware"
	"github.com/noah-isme/thesis-defense-api/internal/models"
	"github.com/noah-isme/thesis-defense-api/internal/repository"
	"github.com/noah-isme/thesis-defense-api/internal/service"
	"github.com/noah-isme/thesis-defense-api/pkg/cache"
	"github.com/noah-isme/thesis-defense-api/pkg/config"
	"github.com/noah-isme/thesis-defense-api/pkg/database"
	"github.com/noah-isme/thesis-defense-api/pkg/export"
	"github.com/noah-isme/thesis-defense-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/thesis-defense-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/thesis-defense-api/pkg/middleware/requestid"
)

// @title Thesis Defense API
// @version 1.0.0
// @description Jury planning and schedule management for thesis defenses
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if err := database.EnsureSchema(ctx, db); err != nil {
		logr.Fatal("failed to apply schema", zap.Error(err))
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, defense cache disabled", zap.Error(err))
	}

	metricsSvc := service.NewMetricsService()
	validate := validator.New()
	loc := service.FixedZone(cfg.Scheduler.UTCOffsetHours)

	professorRepo := repository.NewProfessorRepository(db)
	thesisRepo := repository.NewThesisRepository(db)
	defenseRepo := repository.NewDefenseScheduleRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, "thesis-defense", logr)
	defer cacheRepo.Close() //nolint:errcheck

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, cfg.Cache.Enabled && redisClient != nil)
	checker := service.NewConflictChecker(defenseRepo, logr)
	repairer := service.NewScheduleRepairer(defenseRepo, checker, logr)

	planner := service.NewPlannerService(professorRepo, thesisRepo, defenseRepo, checker, repairer, cacheSvc, metricsSvc, service.PlannerConfig{
		Rooms:         cfg.Scheduler.Rooms,
		Shifts:        service.DefaultShifts,
		Location:      loc,
		SessionLength: cfg.Scheduler.SessionLength,
		BatchSize:     cfg.Scheduler.BatchSize,
		HorizonDays:   cfg.Scheduler.HorizonDays,
		MinProfessors: cfg.Scheduler.MinProfessors,
	}, logr)

	schedules := service.NewDefenseScheduleService(defenseRepo, thesisRepo, checker, cacheSvc, validate, service.DefenseScheduleConfig{
		Rooms:         cfg.Scheduler.Rooms,
		Shifts:        service.DefaultShifts,
		Location:      loc,
		SessionLength: cfg.Scheduler.SessionLength,
		CacheTTL:      cfg.Cache.TTL,
	}, logr).WithProfessorLookup(professorRepo)

	exporter := service.NewExportService(defenseRepo, loc, logr, export.NewCSVExporter(), export.NewPDFExporter())
	professorSvc := service.NewProfessorService(professorRepo, logr)
	tokens := service.NewTokenService(cfg.JWT.Secret)

	var worker *service.AutoPlanWorker
	if cfg.AutoPlan.Enabled {
		worker = service.NewAutoPlanWorker(planner, service.AutoPlanWorkerConfig{
			Interval:   cfg.AutoPlan.Interval,
			MaxRetries: cfg.AutoPlan.MaxRetries,
			RetryDelay: cfg.AutoPlan.RetryDelay,
		}, logr)
		worker.Start(ctx)
		defer worker.Stop()
	}

	defenseHandler := handler.NewDefenseHandler(planner, schedules, exporter, worker)
	professorHandler := handler.NewProfessorHandler(professorSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.JWT(tokens))

	api.GET("/professors", professorHandler.List)

	defenses := api.Group("/defenses")
	admin := internalmiddleware.RequireRoles(models.RoleAdmin)
	defenses.GET("", defenseHandler.List)
	defenses.GET("/export", defenseHandler.Export)
	defenses.GET("/:id", defenseHandler.Get)
	defenses.POST("/auto-plan", admin, defenseHandler.AutoPlan)
	defenses.POST("", admin, defenseHandler.Create)
	defenses.PATCH("/:id", admin, defenseHandler.Update)
	defenses.PUT("/:id", admin, defenseHandler.Update)
	defenses.DELETE("/:id", admin, defenseHandler.Delete)
	defenses.DELETE("", admin, defenseHandler.Clear)

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
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
