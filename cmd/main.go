package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/contest-lab/competition-system/config"
	"github.com/contest-lab/competition-system/db"
	"github.com/contest-lab/competition-system/handlers"
	"github.com/contest-lab/competition-system/middleware"
	"github.com/contest-lab/competition-system/notifications"
	"github.com/contest-lab/competition-system/repositories"
	api "github.com/contest-lab/competition-system/routes"
	"github.com/contest-lab/competition-system/services"
	"github.com/contest-lab/competition-system/storage"
	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	cloudflareUploader, err := storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		BucketName:      cfg.R2BucketName,
		PublicBaseURL:   cfg.R2PublicBaseURL,
	})
	if err != nil {
		logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Cloudflare R2 uploader initialized")

	wsHub := notifications.NewHub()
	go wsHub.Run()
	logger.Info("WebSocket hub started")

	txRunner := repositories.NewTxRunner(dbConn)
	userRepo := repositories.NewPostgresUserRepository(dbConn)
	competitionRepo := repositories.NewPostgresCompetitionRepository(dbConn)
	roundRepo := repositories.NewPostgresRoundRepository(dbConn)
	submissionRepo := repositories.NewPostgresSubmissionRepository(dbConn)
	prizeRepo := repositories.NewPostgresPrizeRepository(dbConn)
	registrationRepo := repositories.NewPostgresRegistrationRepository(dbConn)
	notificationRepo := repositories.NewPostgresNotificationRepository(dbConn)
	logger.Info("repositories initialized")

	emailService := services.NewEmailService(cfg)
	authService := services.NewAuthService(userRepo)
	userService := services.NewUserService(userRepo)
	notificationService := services.NewNotificationService(notificationRepo, userRepo, registrationRepo, wsHub, logger)
	competitionService := services.NewCompetitionService(
		competitionRepo,
		roundRepo,
		prizeRepo,
		registrationRepo,
		notificationService,
		cloudflareUploader,
		logger,
	)
	roundService := services.NewRoundService(roundRepo, competitionRepo)
	submissionService := services.NewSubmissionService(submissionRepo, roundRepo, competitionRepo, registrationRepo)
	prizeService := services.NewPrizeService(txRunner, prizeRepo, submissionRepo, competitionRepo, userRepo, logger)
	registrationService := services.NewRegistrationService(txRunner, registrationRepo, competitionRepo, userRepo)
	logger.Info("services initialized")

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTSecretKey)

	authHandler := handlers.NewAuthHandler(authService, emailService, cfg.JWTSecretKey)
	userHandler := handlers.NewUserHandler(userService)
	competitionHandler := handlers.NewCompetitionHandler(competitionService)
	roundHandler := handlers.NewRoundHandler(roundService)
	submissionHandler := handlers.NewSubmissionHandler(
		submissionService,
		roundService,
		competitionService,
		userService,
		emailService,
		cloudflareUploader,
	)
	prizeHandler := handlers.NewPrizeHandler(prizeService)
	registrationHandler := handlers.NewRegistrationHandler(registrationService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, cfg.JWTSecretKey)
	logger.Info("HTTP handlers initialized")

	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		authMiddleware,
		authHandler,
		userHandler,
		competitionHandler,
		roundHandler,
		submissionHandler,
		prizeHandler,
		registrationHandler,
		notificationHandler,
		webSocketHandler,
	)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		} else {
			logger.Info("server stopped gracefully")
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		} else {
			logger.Info("server shutdown complete")
		}
	}
	logger.Info("application exited")
}
