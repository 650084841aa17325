package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/ayasync/backend/internal/realtime"
	"github.com/ayasync/backend/internal/services"
	"github.com/ayasync/backend/pkg/logger"
	"github.com/ayasync/backend/pkg/utils"
)

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(value))
}

func getRequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestID").(string); ok {
		return id
	}
	return ""
}

func publisherOrNop(p realtime.Publisher) realtime.Publisher {
	if p == nil {
		return realtime.NopPublisher{}
	}
	return p
}

// respondError maps store and validation errors onto the HTTP taxonomy.
// Anything unrecognised is logged and reported as a generic 500.
func respondError(c *fiber.Ctx, err error, action string) error {
	var validationErr *utils.ValidationError
	if errors.As(err, &validationErr) {
		return utils.Error(c, fiber.StatusBadRequest, validationErr.Error())
	}

	var domainErr *services.DomainError
	if errors.As(err, &domainErr) {
		switch {
		case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrInvalidID):
			return utils.Error(c, fiber.StatusBadRequest, domainErr.Message)
		case errors.Is(err, services.ErrNotFound):
			return utils.Error(c, fiber.StatusNotFound, domainErr.Message)
		case errors.Is(err, services.ErrForbidden):
			return utils.Error(c, fiber.StatusForbidden, domainErr.Message)
		case errors.Is(err, services.ErrConflict):
			return utils.Error(c, fiber.StatusConflict, domainErr.Message)
		}
	}

	details := map[string]interface{}{
		"path":       c.Path(),
		"method":     c.Method(),
		"request_id": getRequestID(c),
	}
	if userID := logger.GetUserIDFromContext(c); userID != nil {
		logger.ErrorWithUser(*userID, action+"_failed", err, details)
	} else {
		logger.Error(action+"_failed", err, details)
	}
	return utils.Error(c, fiber.StatusInternalServerError, "server error")
}
