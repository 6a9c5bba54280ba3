package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/feedback-portal/feedback-service/internal/api/http"
	"github.com/feedback-portal/feedback-service/internal/api/http/handlers"
	"github.com/feedback-portal/feedback-service/internal/auth"
	"github.com/feedback-portal/feedback-service/internal/cache"
	"github.com/feedback-portal/feedback-service/internal/config"
	"github.com/feedback-portal/feedback-service/internal/events"
	"github.com/feedback-portal/feedback-service/internal/observability"
	"github.com/feedback-portal/feedback-service/internal/persistence"
	"github.com/feedback-portal/feedback-service/internal/repository"
	"github.com/feedback-portal/feedback-service/internal/service"
	"github.com/feedback-portal/feedback-service/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	rdb := persistence.NewRedis(cfg.Redis, logger)
	defer rdb.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	validate := service.NewValidator()
	directory := cache.NewStore(rdb.Client,
		cache.WithOfficersTTL(cfg.Cache.OfficersTTL()),
		cache.WithFilterOptionsTTL(cfg.Cache.FilterOptionsTTL()),
	)

	pool := pg.PoolHandle()
	feedbackRepo := repository.NewFeedbackRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	branchRepo := repository.NewBranchRepository(pool)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens, userRepo, directory, logger)

	feedbackService := service.NewFeedbackService(service.FeedbackDependencies{
		Store:      feedbackRepo,
		Officers:   userRepo,
		Cache:      directory,
		Dispatcher: dispatcher,
		Metrics:    metrics,
	}, validate, logger)
	authService := service.NewAuthService(cfg.Auth, userRepo, tokens, directory, validate, logger)
	userService := service.NewUserService(userRepo, branchRepo, dispatcher, cfg.Auth.BcryptCost, validate, logger)
	branchService := service.NewBranchService(branchRepo, dispatcher, validate, logger)

	worker.StartNotificationWorker(dispatcher, service.NewNotificationService(logger, cfg.Notification), logger)
	worker.StartCacheInvalidation(dispatcher, directory, logger)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout(), cfg.App.AllowedOrigins)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		APIPrefix: cfg.App.APIPrefix,
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    rdb,
		}),
		Auth:           handlers.NewAuthHandler(authService),
		Feedback:       handlers.NewFeedbackHandler(feedbackService),
		Users:          handlers.NewUsersHandler(userService),
		Branches:       handlers.NewBranchesHandler(branchService),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
