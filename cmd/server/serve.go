package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/ayasync/backend/internal/database"
	"github.com/ayasync/backend/internal/handlers"
	"github.com/ayasync/backend/internal/middleware"
	"github.com/ayasync/backend/internal/realtime"
	"github.com/ayasync/backend/internal/server"
	"github.com/ayasync/backend/internal/services"
	"github.com/ayasync/backend/internal/storage"
	"github.com/ayasync/backend/pkg/logger"
	"github.com/ayasync/backend/pkg/utils"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := logger.EnableSentry(cfg.Sentry.DSN, cfg.Server.Environment); err != nil {
		logger.Error("sentry_init_failed", err, nil)
	}
	defer logger.Flush(2 * time.Second)

	utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.TokenLifetime)
	utils.SetPasswordCost(cfg.Password.BcryptCost)

	db, err := database.Connect(cfg.DB, cfg.Admin)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	// Left as a nil interface when MinIO is not configured.
	var objectStore storage.ObjectStore
	if cfg.MinIO.Enabled() {
		minioClient, err := storage.NewMinIOClient(cfg.MinIO)
		if err != nil {
			return fmt.Errorf("minio initialization failed: %w", err)
		}
		if err := minioClient.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed ensuring minio bucket: %w", err)
		}
		objectStore = minioClient
	}

	var rateLimitStorage fiber.Storage
	if cfg.Redis.Enabled() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("redis_unavailable", map[string]interface{}{
				"address": cfg.Redis.Address,
				"error":   err.Error(),
			})
			_ = client.Close()
		} else {
			redisStorage := middleware.NewRedisStorage(client, "ayasync:ratelimit:")
			defer redisStorage.Close()
			rateLimitStorage = redisStorage
		}
	}

	audit := services.NewAuditService(db, objectStore, cfg.Audit.QueueSize)
	defer audit.Close()
	audit.StartExporter(ctx, cfg.Audit.ExportInterval)

	notifier := services.NewNotifier(cfg.SMTP)
	defer notifier.Close()

	hub := realtime.NewHub(cfg.Realtime.SendBuffer)

	app := server.New(server.Options{
		Config:           cfg,
		DB:               db,
		Audit:            audit,
		Notifier:         notifier,
		Hub:              hub,
		Storage:          objectStore,
		RateLimitStorage: rateLimitStorage,
	})

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)
	logger.Info("server_starting", map[string]interface{}{
		"port":        cfg.Server.Port,
		"address":     listenAddr,
		"version":     handlers.Version,
		"environment": cfg.Server.Environment,
		"minio":       objectStore != nil,
		"redis":       rateLimitStorage != nil,
		"smtp":        cfg.SMTP.Enabled(),
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		logger.Info("server_shutting_down", map[string]interface{}{
			"signal": sig.String(),
		})
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.Error("server_shutdown_failed", err, nil)
		}
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("server_stopped", nil)
	return nil
}
