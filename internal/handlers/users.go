package handlers

import (
	"bytes"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ayasync/backend/internal/middleware"
	"github.com/ayasync/backend/internal/models"
	"github.com/ayasync/backend/internal/realtime"
	"github.com/ayasync/backend/internal/services"
	"github.com/ayasync/backend/internal/storage"
	"github.com/ayasync/backend/pkg/logger"
	"github.com/ayasync/backend/pkg/utils"
)

const (
	defaultPingMessage = "👋"
	avatarURLExpiry    = 15 * time.Minute
)

type UsersHandler struct {
	DB        *gorm.DB
	Audit     *services.AuditService
	Storage   storage.ObjectStore
	Publisher realtime.Publisher
}

// NewUsersHandler wires the profile endpoints. A nil store keeps uploaded
// avatars inline as data URIs.
func NewUsersHandler(db *gorm.DB, audit *services.AuditService, store storage.ObjectStore, publisher realtime.Publisher) *UsersHandler {
	return &UsersHandler{
		DB:        db,
		Audit:     audit,
		Storage:   store,
		Publisher: publisherOrNop(publisher),
	}
}

func userSummary(user *models.User) fiber.Map {
	return fiber.Map{
		"id":          user.ID,
		"email":       user.Email,
		"name":        user.Name,
		"role":        user.Role,
		"isAdmin":     user.IsAdmin(),
		"avatarUrl":   user.AvatarURL,
		"lastLoginAt": user.LastLoginAt,
	}
}

func (h *UsersHandler) Me(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", currentUser.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "user not found")
		}
		return respondError(c, err, "user_me")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"user": userSummary(&user)})
}

type updateMeRequest struct {
	Name      *string `json:"name" validate:"omitempty,max=100"`
	AvatarURL *string `json:"avatarUrl"`
}

func (h *UsersHandler) UpdateMe(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req updateMeRequest
	if err := utils.ParseBody(c, &req); err != nil {
		return respondError(c, err, "user_update")
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.AvatarURL != nil {
		avatar, err := h.resolveAvatar(c, currentUser.ID, strings.TrimSpace(*req.AvatarURL))
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, err.Error())
		}
		if avatar == "" {
			updates["avatar_url"] = nil
		} else {
			updates["avatar_url"] = avatar
		}
	}

	if len(updates) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "no valid fields to update")
	}

	if err := h.DB.Model(&models.User{}).Where("id = ?", currentUser.ID).Updates(updates).Error; err != nil {
		return respondError(c, err, "user_update")
	}

	var updated models.User
	if err := h.DB.First(&updated, "id = ?", currentUser.ID).Error; err != nil {
		return respondError(c, err, "user_update")
	}

	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &currentUser.ID,
		Action:       "user.profile_update",
		ResourceType: "user",
		ResourceID:   &currentUser.ID,
		Details: map[string]interface{}{
			"name_changed":   req.Name != nil,
			"avatar_changed": req.AvatarURL != nil,
		},
		IPAddress: c.IP(),
		RequestID: getRequestID(c),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"user": userSummary(&updated)})
}

// resolveAvatar returns the value to persist for a requested avatar. Image
// data URIs are moved to object storage when it is configured.
func (h *UsersHandler) resolveAvatar(c *fiber.Ctx, userID uuid.UUID, raw string) (string, error) {
	if raw == "" {
		return "", nil
	}

	if strings.HasPrefix(raw, "data:") {
		contentType, data, err := storage.DecodeImageDataURI(raw)
		if err != nil {
			return "", err
		}
		if h.Storage == nil {
			return raw, nil
		}

		objectName := storage.AvatarObjectName(userID)
		if err := h.Storage.Upload(c.UserContext(), objectName, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
			logger.ErrorWithUser(userID.String(), "avatar_upload_failed", err, map[string]interface{}{
				"object_name": objectName,
			})
			return "", errors.New("failed storing avatar")
		}
		return "/api/users/" + userID.String() + "/avatar", nil
	}

	parsed, err := url.Parse(raw)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", errors.New("avatarUrl must be an http(s) URL or an image data URI")
	}
	return raw, nil
}

// Avatar serves a user's avatar: stored objects redirect to a presigned URL,
// external URLs redirect directly and inline data URIs are decoded.
func (h *UsersHandler) Avatar(c *fiber.Ctx) error {
	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusNotFound, "user not found")
	}

	var user models.User
	if err := h.DB.Select("id", "avatar_url").First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "user not found")
		}
		return respondError(c, err, "user_avatar")
	}
	if user.AvatarURL == nil || *user.AvatarURL == "" {
		return utils.Error(c, fiber.StatusNotFound, "avatar not found")
	}

	avatar := *user.AvatarURL
	switch {
	case strings.HasPrefix(avatar, "data:"):
		contentType, data, err := storage.DecodeImageDataURI(avatar)
		if err != nil {
			return utils.Error(c, fiber.StatusNotFound, "avatar not found")
		}
		c.Set(fiber.HeaderContentType, contentType)
		c.Set(fiber.HeaderCacheControl, "private, max-age=300")
		return c.Send(data)
	case strings.HasPrefix(avatar, "/api/users/"):
		if h.Storage == nil {
			return utils.Error(c, fiber.StatusNotFound, "avatar not found")
		}
		presigned, err := h.Storage.PresignedGetURL(c.UserContext(), storage.AvatarObjectName(user.ID), avatarURLExpiry)
		if err != nil {
			logger.Error("avatar_presign_failed", err, map[string]interface{}{"user_id": user.ID.String()})
			return utils.Error(c, fiber.StatusNotFound, "avatar not found")
		}
		return c.Redirect(presigned, fiber.StatusFound)
	default:
		return c.Redirect(avatar, fiber.StatusFound)
	}
}

func (h *UsersHandler) Directory(c *fiber.Ctx) error {
	var users []models.User
	if err := h.DB.Where("is_active = ?", true).Order("name ASC, email ASC").Find(&users).Error; err != nil {
		return respondError(c, err, "user_directory")
	}

	result := make([]fiber.Map, 0, len(users))
	for i := range users {
		result = append(result, fiber.Map{
			"id":        users[i].ID,
			"email":     users[i].Email,
			"name":      users[i].Name,
			"avatarUrl": users[i].AvatarURL,
		})
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"users": result})
}

type pingRequest struct {
	ToUserID string `json:"toUserId" validate:"required"`
	Message  string `json:"message" validate:"max=500"`
}

func (h *UsersHandler) Ping(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req pingRequest
	if err := utils.ParseBody(c, &req); err != nil {
		return respondError(c, err, "user_ping")
	}

	toID, err := parseUUID(req.ToUserID)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	var target models.User
	if err := h.DB.Select("id").First(&target, "id = ?", toID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "user not found")
		}
		return respondError(c, err, "user_ping")
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		message = defaultPingMessage
	}

	h.Publisher.Publish(realtime.UserRoom(toID.String()), realtime.EventPing, fiber.Map{
		"from":     currentUser.ID,
		"fromName": currentUser.Name,
		"message":  message,
	})

	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &currentUser.ID,
		Action:       "user.ping",
		ResourceType: "user",
		ResourceID:   &toID,
		Details: map[string]interface{}{
			"target_user_id": toID.String(),
		},
		IPAddress: c.IP(),
		RequestID: getRequestID(c),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"from":    currentUser.ID,
		"to":      toID,
		"message": message,
	})
}
