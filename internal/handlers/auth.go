package handlers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/ayasync/backend/internal/models"
	"github.com/ayasync/backend/internal/services"
	"github.com/ayasync/backend/pkg/logger"
	"github.com/ayasync/backend/pkg/utils"
)

type AuthHandler struct {
	DB                     *gorm.DB
	Audit                  *services.AuditService
	Notifier               services.Notifier
	AllowAdminRegistration bool
}

func NewAuthHandler(db *gorm.DB, audit *services.AuditService, notifier services.Notifier, allowAdminRegistration bool) *AuthHandler {
	if notifier == nil {
		notifier = services.NoopNotifier{}
	}
	return &AuthHandler{
		DB:                     db,
		Audit:                  audit,
		Notifier:               notifier,
		AllowAdminRegistration: allowAdminRegistration,
	}
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"max=100"`
	Role     string `json:"role" validate:"omitempty,oneof=user admin"`
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := utils.DecodeBody(c, &req); err != nil {
		return respondError(c, err, "user_register")
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if err := utils.ValidateStruct(&req); err != nil {
		return respondError(c, err, "user_register")
	}

	role := models.UserRoleUser
	if req.Role == string(models.UserRoleAdmin) {
		if !h.AllowAdminRegistration {
			logger.Warn("admin_registration_rejected", map[string]interface{}{
				"email": req.Email,
				"ip":    c.IP(),
			})
			return utils.Error(c, fiber.StatusForbidden, "admin registration is disabled")
		}
		role = models.UserRoleAdmin
	}

	var existing models.User
	if err := h.DB.Unscoped().First(&existing, "email = ?", req.Email).Error; err == nil {
		return utils.Error(c, fiber.StatusConflict, "email already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return respondError(c, err, "user_register")
	}

	passwordHash, err := utils.HashPassword(req.Password)
	if errors.Is(err, utils.ErrPasswordTooLong) {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}
	if err != nil {
		return respondError(c, err, "user_register")
	}

	user := models.User{
		Email:        req.Email,
		PasswordHash: passwordHash,
		Name:         req.Name,
		Role:         role,
		IsActive:     true,
	}

	if err := h.DB.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return utils.Error(c, fiber.StatusConflict, "email already registered")
		}
		return respondError(c, err, "user_register")
	}

	logger.Info("user_registered", map[string]interface{}{
		"user_id": user.ID.String(),
		"email":   user.Email,
		"role":    string(user.Role),
	})

	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &user.ID,
		Action:       "user.register",
		ResourceType: "user",
		ResourceID:   &user.ID,
		Details: map[string]interface{}{
			"email": user.Email,
		},
		IPAddress: c.IP(),
		RequestID: getRequestID(c),
	})

	return utils.Success(c, fiber.StatusCreated, fiber.Map{
		"user": fiber.Map{
			"id":    user.ID,
			"email": user.Email,
			"name":  user.Name,
		},
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	UserType string `json:"userType" validate:"omitempty,oneof=user admin"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := utils.DecodeBody(c, &req); err != nil {
		return respondError(c, err, "user_login")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := utils.ValidateStruct(&req); err != nil {
		return respondError(c, err, "user_login")
	}

	var user models.User
	if err := h.DB.First(&user, "email = ?", req.Email).Error; err != nil {
		logger.Warn("login_failed_user_not_found", map[string]interface{}{
			"email": req.Email,
			"ip":    c.IP(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid credentials")
	}

	if !utils.CheckPassword(req.Password, user.PasswordHash) {
		logger.Warn("login_failed_invalid_password", map[string]interface{}{
			"user_id": user.ID.String(),
			"email":   req.Email,
			"ip":      c.IP(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid credentials")
	}

	if !user.IsActive {
		logger.WarnWithUser(user.ID.String(), "login_failed_inactive", map[string]interface{}{
			"ip": c.IP(),
		})
		return utils.Error(c, fiber.StatusForbidden, "account is disabled")
	}

	if req.UserType != "" && req.UserType != string(user.Role) {
		logger.WarnWithUser(user.ID.String(), "login_role_mismatch", map[string]interface{}{
			"user_type": req.UserType,
			"role":      string(user.Role),
		})
		return utils.Error(c, fiber.StatusForbidden, fmt.Sprintf(
			"This account is registered as %s. Please use the %s login section.", user.Role, user.Role))
	}

	now := time.Now().UTC()
	loginUpdates := map[string]interface{}{"last_login_at": now}
	if utils.NeedsRehash(user.PasswordHash) {
		if rehashed, err := utils.HashPassword(req.Password); err == nil {
			loginUpdates["password_hash"] = rehashed
		}
	}
	if err := h.DB.Model(&user).Updates(loginUpdates).Error; err != nil {
		logger.ErrorWithUser(user.ID.String(), "login_timestamp_update_failed", err, nil)
	}
	user.LastLoginAt = &now

	token, err := utils.GenerateToken(&user)
	if err != nil {
		return respondError(c, err, "user_login")
	}

	logger.Info("user_login", map[string]interface{}{
		"user_id": user.ID.String(),
		"email":   user.Email,
		"ip":      c.IP(),
	})

	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &user.ID,
		Action:       "user.login",
		ResourceType: "user",
		ResourceID:   &user.ID,
		Details: map[string]interface{}{
			"email": user.Email,
		},
		IPAddress: c.IP(),
		RequestID: getRequestID(c),
	})
	h.Notifier.LoginAlert(&user, c.IP(), now)

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"token": token,
		"user": fiber.Map{
			"id":    user.ID,
			"email": user.Email,
			"name":  user.Name,
			"role":  user.Role,
		},
	})
}
