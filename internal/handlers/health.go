package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/ayasync/backend/pkg/utils"
)

type HealthHandler struct {
	DB *gorm.DB
}

func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{DB: db}
}

// Check reports liveness and whether the database answers a ping.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	dbOK := false
	if sqlDB, err := h.DB.DB(); err == nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		dbOK = sqlDB.PingContext(ctx) == nil
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"db": dbOK})
}
