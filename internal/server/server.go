// Package server assembles the fiber application from the handlers, the
// middleware chain and the realtime gateway.
package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"

	"github.com/ayasync/backend/internal/config"
	"github.com/ayasync/backend/internal/handlers"
	"github.com/ayasync/backend/internal/metrics"
	"github.com/ayasync/backend/internal/middleware"
	"github.com/ayasync/backend/internal/realtime"
	"github.com/ayasync/backend/internal/services"
	"github.com/ayasync/backend/internal/storage"
	"github.com/ayasync/backend/pkg/logger"
	"github.com/ayasync/backend/pkg/utils"
)

// Options carries the collaborators built by main. Storage and
// RateLimitStorage may be nil; Notifier defaults to a no-op.
type Options struct {
	Config           *config.Config
	DB               *gorm.DB
	Audit            *services.AuditService
	Notifier         services.Notifier
	Hub              *realtime.Hub
	Storage          storage.ObjectStore
	RateLimitStorage fiber.Storage
}

func New(opts Options) *fiber.App {
	cfg := opts.Config

	app := fiber.New(fiber.Config{
		BodyLimit:    cfg.Server.BodyLimitBytes,
		ErrorHandler: errorHandler,
	})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS(cfg.Server.CORSOrigins...))
	app.Use(middleware.Metrics())
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	app.Get("/metrics", metrics.Handler())

	gateway := realtime.NewGateway(opts.Hub, opts.DB, cfg.Realtime.PingInterval)
	app.Get("/ws", gateway.Upgrade, gateway.Handler())

	var publisher realtime.Publisher
	if opts.Hub != nil {
		publisher = opts.Hub
	}

	h := handlers.New(handlers.Deps{
		DB:                     opts.DB,
		Audit:                  opts.Audit,
		Notifier:               opts.Notifier,
		Publisher:              publisher,
		Storage:                opts.Storage,
		AllowAdminRegistration: cfg.Server.AllowAdminRegistration,
		RequireTaskMembership:  cfg.Tasks.RequireMembership,
	})

	var authLimiter fiber.Handler
	if cfg.RateLimit.AuthMax > 0 {
		authLimiter = middleware.RateLimit(cfg.RateLimit.AuthMax, cfg.RateLimit.AuthWindow, opts.RateLimitStorage)
	}

	handlers.RegisterRoutes(app, h, middleware.NewAuthMiddleware(opts.DB), authLimiter)
	return app
}

// errorHandler keeps fiber's own errors (unknown routes, body limit, panics)
// inside the {ok:false,error} envelope.
func errorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	message := "server error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
		message = fe.Message
	}
	if status >= fiber.StatusInternalServerError {
		logger.Error("unhandled_error", err, map[string]interface{}{
			"method": c.Method(),
			"path":   c.Path(),
		})
	}
	return utils.Error(c, status, message)
}
