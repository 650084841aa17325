package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/ayasync/backend/internal/middleware"
	"github.com/ayasync/backend/internal/models"
	"github.com/ayasync/backend/pkg/utils"
)

type ActivitiesHandler struct {
	DB *gorm.DB
}

func NewActivitiesHandler(db *gorm.DB) *ActivitiesHandler {
	return &ActivitiesHandler{DB: db}
}

func (h *ActivitiesHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	p := utils.ParsePage(c)
	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("user_id = ?", currentUser.ID)
		if c.QueryBool("unread") {
			db = db.Where("is_read = ?", false)
		}
		return db
	}

	var total int64
	if err := h.DB.Model(&models.Activity{}).Scopes(scope).Count(&total).Error; err != nil {
		return respondError(c, err, "activity_count")
	}

	activities := []models.Activity{}
	if err := h.DB.Preload("Actor").
		Scopes(scope, p.Scope).
		Order("created_at DESC").
		Find(&activities).Error; err != nil {
		return respondError(c, err, "activity_list")
	}

	return utils.Paginated(c, "activities", activities, p, total)
}

func (h *ActivitiesHandler) UnreadCount(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var count int64
	if err := h.DB.Model(&models.Activity{}).
		Where("user_id = ? AND is_read = ?", currentUser.ID, false).
		Count(&count).Error; err != nil {
		return respondError(c, err, "activity_unread_count")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"count": count})
}

func (h *ActivitiesHandler) MarkRead(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	activityID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid activity id")
	}

	result := h.DB.Model(&models.Activity{}).
		Where("id = ? AND user_id = ?", activityID, currentUser.ID).
		Update("is_read", true)

	if result.Error != nil {
		return respondError(c, result.Error, "activity_mark_read")
	}
	if result.RowsAffected == 0 {
		return utils.Error(c, fiber.StatusNotFound, "activity not found")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "marked as read"})
}

func (h *ActivitiesHandler) MarkAllRead(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	result := h.DB.Model(&models.Activity{}).
		Where("user_id = ? AND is_read = ?", currentUser.ID, false).
		Update("is_read", true)
	if result.Error != nil {
		return respondError(c, result.Error, "activity_mark_all_read")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "all marked as read", "updated": result.RowsAffected})
}
