package handlers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ayasync/backend/internal/middleware"
	"github.com/ayasync/backend/internal/models"
	"github.com/ayasync/backend/internal/services"
	"github.com/ayasync/backend/pkg/utils"
)

type AdminHandler struct {
	DB    *gorm.DB
	Audit *services.AuditService
	Teams *services.TeamService
	Tasks *services.TaskService
}

func NewAdminHandler(db *gorm.DB, audit *services.AuditService, teams *services.TeamService, tasks *services.TaskService) *AdminHandler {
	return &AdminHandler{DB: db, Audit: audit, Teams: teams, Tasks: tasks}
}

func adminUserView(user *models.User) fiber.Map {
	return fiber.Map{
		"id":          user.ID,
		"email":       user.Email,
		"name":        user.Name,
		"role":        user.Role,
		"isActive":    user.IsActive,
		"avatarUrl":   user.AvatarURL,
		"lastLoginAt": user.LastLoginAt,
		"createdAt":   user.CreatedAt,
		"updatedAt":   user.UpdatedAt,
	}
}

func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	p := utils.ParsePage(c)
	search := strings.TrimSpace(c.Query("search"))

	query := h.DB.Model(&models.User{})
	if search != "" {
		searchValue := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(email) LIKE ? OR LOWER(name) LIKE ?", searchValue, searchValue)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return respondError(c, err, "admin_user_count")
	}

	var users []models.User
	if err := query.Order("created_at DESC").Scopes(p.Scope).Find(&users).Error; err != nil {
		return respondError(c, err, "admin_user_list")
	}

	views := make([]fiber.Map, 0, len(users))
	for i := range users {
		views = append(views, adminUserView(&users[i]))
	}
	return utils.Paginated(c, "users", views, p, total)
}

// findUser loads the :id user. When it returns a nil user the error response
// has already been written and err is the handler's return value.
func (h *AdminHandler) findUser(c *fiber.Ctx) (*models.User, error) {
	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return nil, utils.Error(c, fiber.StatusNotFound, "user not found")
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.Error(c, fiber.StatusNotFound, "user not found")
		}
		return nil, respondError(c, err, "admin_user_get")
	}
	return &user, nil
}

func (h *AdminHandler) GetUser(c *fiber.Ctx) error {
	user, err := h.findUser(c)
	if user == nil {
		return err
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"user": adminUserView(user)})
}

type adminUpdateUserRequest struct {
	Name     *string `json:"name" validate:"omitempty,max=100"`
	Role     *string `json:"role" validate:"omitempty,oneof=user admin"`
	IsActive *bool   `json:"isActive"`
}

func (h *AdminHandler) UpdateUser(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req adminUpdateUserRequest
	if err := utils.ParseBody(c, &req); err != nil {
		return respondError(c, err, "admin_user_update")
	}

	user, err := h.findUser(c)
	if user == nil {
		return err
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Role != nil {
		updates["role"] = models.UserRole(*req.Role)
	}
	if req.IsActive != nil {
		if !*req.IsActive && user.ID == currentUser.ID {
			return utils.Error(c, fiber.StatusBadRequest, "cannot deactivate your own account")
		}
		updates["is_active"] = *req.IsActive
	}
	if len(updates) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "no valid fields to update")
	}

	if err := h.DB.Model(user).Updates(updates).Error; err != nil {
		return respondError(c, err, "admin_user_update")
	}
	if err := h.DB.First(user, "id = ?", user.ID).Error; err != nil {
		return respondError(c, err, "admin_user_update")
	}

	fields := make([]string, 0, len(updates))
	for k := range updates {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &currentUser.ID,
		Action:       "admin.user_update",
		ResourceType: "user",
		ResourceID:   &user.ID,
		Details: map[string]interface{}{
			"email":  user.Email,
			"fields": strings.Join(fields, ","),
		},
		IPAddress: c.IP(),
		RequestID: getRequestID(c),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"user": adminUserView(user)})
}

func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	user, err := h.findUser(c)
	if user == nil {
		return err
	}
	if user.ID == currentUser.ID {
		return utils.Error(c, fiber.StatusBadRequest, "cannot delete your own account")
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("requester_id = ? OR target_id = ?", user.ID, user.ID).Delete(&models.Connection{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("user_id = ?", user.ID).Delete(&models.TeamMember{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("user_id = ?", user.ID).Delete(&models.BoardMember{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&models.User{}, "id = ?", user.ID).Error
	})
	if err != nil {
		return respondError(c, err, "admin_user_delete")
	}

	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &currentUser.ID,
		Action:       "admin.user_delete",
		ResourceType: "user",
		ResourceID:   &user.ID,
		Details: map[string]interface{}{
			"email": user.Email,
		},
		IPAddress: c.IP(),
		RequestID: getRequestID(c),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "user deleted"})
}

func (h *AdminHandler) Stats(c *fiber.Ctx) error {
	var roleRows []struct {
		Role     models.UserRole
		IsActive bool
		Count    int64
	}
	if err := h.DB.Model(&models.User{}).
		Select("role, is_active, COUNT(*) AS count").
		Group("role, is_active").
		Scan(&roleRows).Error; err != nil {
		return respondError(c, err, "admin_stats")
	}

	var total, active, admins, regular int64
	for _, row := range roleRows {
		total += row.Count
		if row.IsActive {
			active += row.Count
		}
		switch row.Role {
		case models.UserRoleAdmin:
			admins += row.Count
		case models.UserRoleUser:
			regular += row.Count
		}
	}

	totalTeams, err := h.Teams.Count(c.UserContext())
	if err != nil {
		return respondError(c, err, "admin_stats")
	}
	totalTasks, err := h.Tasks.Count(c.UserContext())
	if err != nil {
		return respondError(c, err, "admin_stats")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"stats": fiber.Map{
			"totalUsers":    total,
			"activeUsers":   active,
			"inactiveUsers": total - active,
			"adminUsers":    admins,
			"regularUsers":  regular,
			"totalTeams":    totalTeams,
			"totalTasks":    totalTasks,
			"lastUpdated":   time.Now().UTC(),
		},
	})
}

// auditQuery applies the action and userId filters. A nil query means the
// error response has already been written.
func (h *AdminHandler) auditQuery(c *fiber.Ctx) (*gorm.DB, error) {
	query := h.DB.Model(&models.AuditLog{})
	if action := strings.TrimSpace(c.Query("action")); action != "" {
		query = query.Where("action = ?", action)
	}
	if rawUserID := strings.TrimSpace(c.Query("userId")); rawUserID != "" {
		userID, err := uuid.Parse(rawUserID)
		if err != nil {
			return nil, utils.Error(c, fiber.StatusBadRequest, "invalid user id")
		}
		query = query.Where("user_id = ?", userID)
	}
	return query, nil
}

func (h *AdminHandler) AuditLog(c *fiber.Ctx) error {
	query, err := h.auditQuery(c)
	if query == nil {
		return err
	}
	p := utils.ParsePage(c)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return respondError(c, err, "admin_audit_count")
	}

	var logs []models.AuditLog
	if err := query.Order("created_at DESC").Scopes(p.Scope).Find(&logs).Error; err != nil {
		return respondError(c, err, "admin_audit_list")
	}

	return utils.Paginated(c, "logs", logs, p, total)
}

func (h *AdminHandler) ExportAuditLog(c *fiber.Ctx) error {
	query, err := h.auditQuery(c)
	if query == nil {
		return err
	}

	format := strings.ToLower(strings.TrimSpace(c.Query("format", "csv")))
	if format != "csv" && format != "json" {
		return utils.Error(c, fiber.StatusBadRequest, "format must be csv or json")
	}

	var logs []models.AuditLog
	if err := query.Order("created_at DESC").Limit(10000).Find(&logs).Error; err != nil {
		return respondError(c, err, "admin_audit_export")
	}

	if format == "json" {
		c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "audit-log.json"))
		return utils.Success(c, fiber.StatusOK, fiber.Map{"logs": logs})
	}

	c.Set("Content-Type", "text/csv")
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "audit-log.csv"))

	writer := csv.NewWriter(c.Response().BodyWriter())
	_ = writer.Write([]string{"Timestamp", "User ID", "Action", "Resource Type", "Resource ID", "IP Address", "Details"})

	for _, log := range logs {
		userID, resourceID := "", ""
		if log.UserID != nil {
			userID = log.UserID.String()
		}
		if log.ResourceID != nil {
			resourceID = log.ResourceID.String()
		}

		keys := make([]string, 0, len(log.Details))
		for k := range log.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, log.Details[k]))
		}

		_ = writer.Write([]string{
			log.CreatedAt.Format(time.RFC3339),
			userID,
			log.Action,
			log.ResourceType,
			resourceID,
			log.IPAddress,
			strings.Join(parts, "; "),
		})
	}

	writer.Flush()
	return nil
}
