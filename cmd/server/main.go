package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/mahawthada/legal-assistant/internal/api"
	"github.com/mahawthada/legal-assistant/internal/backend"
	"github.com/mahawthada/legal-assistant/internal/cache/redis"
	"github.com/mahawthada/legal-assistant/internal/config"
	"github.com/mahawthada/legal-assistant/internal/service"
	"github.com/mahawthada/legal-assistant/internal/storage/postgres"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("failed to load configuration")
	}
	if err := cfg.ValidateServer(); err != nil {
		logger.WithError(err).Fatal("invalid server configuration")
	}

	// Configure log format
	if cfg.LogFormat == "text" {
		logger.SetFormatter(&logrus.TextFormatter{})
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	logger.Info("starting legal-assistant server")

	client := backend.NewClient(cfg.Backend.ChatURL, cfg.Backend.JudgeURL, cfg.Backend.Timeout, logger)
	opts := api.SessionOptions{
		DownloadDir:  cfg.Case.DownloadDir,
		PollInterval: cfg.Case.PollInterval,
	}

	// Verdict archive is optional
	ctx := context.Background()
	if cfg.Database.DSN != "" {
		db, err := postgres.New(ctx, cfg.Database.DSN, logger)
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to database")
		}
		defer db.Close()
		opts.Archive = postgres.NewVerdictRepository(db.Pool())
	}

	// History cache is optional
	if cfg.Redis.URI != "" {
		redisClient, err := redis.New(cfg.Redis.URI)
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to redis")
		}
		defer redisClient.Close()
		opts.HistoryCache = redis.NewHistoryCache(redisClient, cfg.Redis.TTL)
	}

	authService := service.NewAuthService(cfg.Server.JWTSecret, cfg.Server.TokenTTL)
	sessions := api.NewRegistry(client, opts, logger)
	defer sessions.Close()

	server := api.NewServer(authService, client, sessions, logger)

	// Create Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Add middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit("70M"))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.WithFields(logrus.Fields{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
			}).Info("request")
			return nil
		},
	}))

	server.Register(e)

	// Start server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	go func() {
		logger.WithField("addr", addr).Info("server listening")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("server shutdown error")
	}

	logger.Info("server stopped")
}
