// backend/cmd/server/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Ayash-Bera/ctxinject/backend/internal/api/handlers"
	"github.com/Ayash-Bera/ctxinject/backend/internal/config"
	"github.com/Ayash-Bera/ctxinject/backend/internal/database"
	"github.com/Ayash-Bera/ctxinject/backend/internal/health"
	"github.com/Ayash-Bera/ctxinject/backend/internal/middleware"
	"github.com/Ayash-Bera/ctxinject/backend/internal/migration"
	"github.com/Ayash-Bera/ctxinject/backend/internal/models"
	"github.com/Ayash-Bera/ctxinject/backend/internal/repository"
	"github.com/Ayash-Bera/ctxinject/backend/internal/services"
	"github.com/Ayash-Bera/ctxinject/backend/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	logger := utils.GetLogger()
	logger.Info("Starting context injection service...")

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	dbManager, err := database.NewManager(&database.Config{
		DatabaseURL: cfg.Database.URL,
		RedisURL:    cfg.Redis.URL,
		LogLevel:    cfg.LogLevel,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database manager")
	}
	defer dbManager.Close()

	if err := migration.NewRunner(dbManager, logger).RunMigrations(cfg.Migrations.Path); err != nil {
		logger.WithError(err).Fatal("Database migrations failed")
	}

	repoManager := repository.NewRepositoryManager(dbManager.DB)
	cache := database.NewCache(dbManager.Redis, logger)

	var knowledge models.KnowledgeRepository = repoManager.Knowledge
	if cfg.Context.KnowledgeCacheTTL > 0 {
		knowledge = repository.NewCachedKnowledgeRepository(knowledge, cache, cfg.Context.KnowledgeCacheTTL, logger)
	}

	contextService := services.NewContextService(
		repoManager.Project,
		repoManager.ContextFeedback,
		services.DefaultSources(knowledge, repoManager.Asset, repoManager.Conversation, services.NewLexicalScorer(), cfg.Context.ConversationLimit),
		services.ContextServiceConfig{TolerateSourceFailures: cfg.Context.TolerateSourceFailures},
		logger,
	)

	defaults := services.DefaultOptions()
	defaults.MaxItems = cfg.Context.MaxItems
	defaults.MinRelevanceScore = cfg.Context.MinRelevance

	healthChecker := health.NewHealthChecker(dbManager, cache, repoManager.SystemHealth, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	healthChecker.Refresh(ctx, 2*cfg.Health.Interval)
	go healthChecker.PeriodicHealthCheck(ctx, cfg.Health.Interval)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.PerMinute)
	defer rateLimiter.Stop()

	router := newRouter(
		handlers.NewContextHandler(contextService, defaults, logger),
		handlers.NewHealthHandler(healthChecker),
		rateLimiter,
		logger,
	)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("HTTP server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
	}
}

func newRouter(contextHandler *handlers.ContextHandler, healthHandler *handlers.HealthHandler, rateLimiter *middleware.RateLimiter, logger *logrus.Logger) *gin.Engine {
	if logger.GetLevel() < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.SecurityHeaders(),
		requestLogger(logger),
	)

	router.GET("/health", healthHandler.HandleHealth)

	api := router.Group("/api/v1", rateLimiter.RateLimit(), middleware.RequireUser())
	contextHandler.RegisterRoutes(api)

	return router
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  c.GetString("request_id"),
			"ip_address":  c.ClientIP(),
		}).Info("Request handled")
	}
}
