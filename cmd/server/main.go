package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/ridematch/scheduler/internal/adminapi"
	"github.com/ridematch/scheduler/internal/common/cache"
	"github.com/ridematch/scheduler/internal/common/config"
	"github.com/ridematch/scheduler/internal/common/database"
	"github.com/ridematch/scheduler/internal/common/health"
	"github.com/ridematch/scheduler/internal/common/logging"
	"github.com/ridematch/scheduler/internal/common/middleware"
	"github.com/ridematch/scheduler/internal/directions"
	"github.com/ridematch/scheduler/internal/scheduler"
	"github.com/ridematch/scheduler/internal/solver"
	"github.com/ridematch/scheduler/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	cfg := config.Load()

	logFile, err := logging.OpenLogFile(cfg.LogFilePath)
	if err != nil {
		log.Fatalf("failed to open log file: %v", err)
	}
	defer logFile.Close()

	loggerConfig := logging.DefaultLoggerConfig()
	loggerConfig.Level = logging.LogLevel(cfg.LogLevel)
	loggerConfig.Output = io.MultiWriter(os.Stdout, logFile)
	logger := logging.NewLogger(loggerConfig)
	logging.InitDefaultLogger(loggerConfig)

	logger.Info("starting ridematch-scheduler", "environment", getEnv("ENVIRONMENT", "development"))

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		log.Fatal(err)
	}
	defer database.Close(db)

	sqlDB, _ := db.DB()
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)
	db.Logger = logging.NewSlowQueryLogger(logger, 100*time.Millisecond)

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		log.Fatal(err)
	}
	defer redisClient.Close()

	st := store.NewGormStore(db)
	redisCache := cache.NewRedisCache(redisClient, "ridematch")

	var provider directions.Provider = directions.NewHTTPProvider(
		cfg.DirectionsBaseURL, cfg.DirectionsAPIKey, cfg.DirectionsTimeout, logger,
	)
	provider = directions.NewCachedProvider(provider, redisCache)

	solverOpts := solver.DefaultOptions()
	solverOpts.PopulationSize = cfg.SchedulerPopulationSize
	solverOpts.Generations = cfg.SchedulerGenerations

	sched := scheduler.New(st, solver.New(), provider, logger, solverOpts)
	sched.Start()
	logger.Info("scheduler started")

	healthChecker := health.NewHealthChecker(db, redisClient, "ridematch-scheduler", "1.0.0")
	healthHandler := health.NewHandler(healthChecker)

	auditLogger := logging.NewAuditLogger(logger, db)
	apiHandler := adminapi.NewHandler(st, sched, logger, auditLogger)
	cacheMW := middleware.NewCacheMiddleware(redisClient, "ridematch-admin-api")

	r := gin.New()
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	r.Use(logging.RequestLoggingMiddleware(logger))
	r.Use(logging.PerformanceLoggingMiddleware(logger, 1*time.Second))
	r.Use(logging.ErrorLoggingMiddleware(logger))
	r.Use(logging.RecoveryLoggingMiddleware(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORSMiddleware(cfg.CORSAllowedOrigins))
	r.Use(middleware.APIVersionMiddleware(middleware.DefaultAPIVersionConfig()))
	r.Use(middleware.RateLimit(120))
	r.Use(logging.AuditMiddleware(auditLogger))
	r.Use(middleware.ErrorHandler())

	adminapi.Register(r, apiHandler, healthHandler, cfg.AdminToken, cacheMW)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}

	go func() {
		logger.Info("admin API listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			log.Fatalf("listen: %s", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Warn("shutting down")

	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		log.Fatal(err)
	}

	logger.Info("exited gracefully")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
