package services

import (
	"context"
	"errors"
	"time"

	"github.com/ayasync/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RequestConnectionInput struct {
	UserID string `json:"userId"`
}

type RespondConnectionInput struct {
	Status string `json:"status"`
}

// ConnectionService persists social links. At most one record exists per
// unordered pair of users.
type ConnectionService struct {
	DB *gorm.DB
}

func NewConnectionService(db *gorm.DB) *ConnectionService {
	return &ConnectionService{DB: db}
}

func (s *ConnectionService) List(ctx context.Context, me uuid.UUID) ([]models.Connection, error) {
	connections := []models.Connection{}
	err := s.DB.WithContext(ctx).
		Where("requester_id = ? OR target_id = ?", me, me).
		Order("created_at DESC").
		Find(&connections).Error
	return connections, err
}

// Request creates a pending connection from me to the target user and returns
// it together with the target's record.
func (s *ConnectionService) Request(ctx context.Context, me *models.User, input RequestConnectionInput) (*models.Connection, *models.User, error) {
	if input.UserID == "" {
		return nil, nil, newError(ErrValidation, "userId is required")
	}
	targetID, err := parseReferenceID(input.UserID, "user")
	if err != nil {
		return nil, nil, err
	}
	if targetID == me.ID {
		return nil, nil, newError(ErrValidation, "cannot connect to yourself")
	}

	var target models.User
	if err := s.DB.WithContext(ctx).First(&target, "id = ?", targetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, newError(ErrNotFound, "user not found")
		}
		return nil, nil, err
	}

	pairKey := models.ConnectionPairKey(me.ID, targetID)
	if exists, err := s.pairExists(ctx, pairKey); err != nil {
		return nil, nil, err
	} else if exists {
		return nil, nil, newError(ErrConflict, "connection already exists")
	}

	connection := models.Connection{
		RequesterID: me.ID,
		TargetID:    targetID,
		Status:      models.ConnectionStatusPending,
	}
	if err := s.DB.WithContext(ctx).Create(&connection).Error; err != nil {
		if exists, lookupErr := s.pairExists(ctx, pairKey); lookupErr == nil && exists {
			return nil, nil, newError(ErrConflict, "connection already exists")
		}
		return nil, nil, err
	}
	return &connection, &target, nil
}

// Respond moves a pending connection to accepted or declined. Only the target
// may respond and a resolved connection cannot change again.
func (s *ConnectionService) Respond(ctx context.Context, me uuid.UUID, rawID string, input RespondConnectionInput) (*models.Connection, error) {
	status := models.ConnectionStatus(input.Status)
	if status != models.ConnectionStatusAccepted && status != models.ConnectionStatusDeclined {
		return nil, newError(ErrValidation, "status must be accepted or declined")
	}

	connection, err := s.find(ctx, rawID)
	if err != nil {
		return nil, err
	}
	if connection.TargetID != me {
		return nil, newError(ErrForbidden, "only the requested user can respond")
	}
	if connection.Status != models.ConnectionStatusPending {
		return nil, newError(ErrConflict, "connection already resolved")
	}

	now := time.Now().UTC()
	result := s.DB.WithContext(ctx).Model(&models.Connection{}).
		Where("id = ? AND status = ?", connection.ID, models.ConnectionStatusPending).
		Updates(map[string]interface{}{
			"status":       status,
			"responded_at": now,
			"updated_at":   now,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, newError(ErrConflict, "connection already resolved")
	}

	connection.Status = status
	connection.RespondedAt = &now
	connection.UpdatedAt = now
	return connection, nil
}

// Delete removes a connection. Either side may delete it.
func (s *ConnectionService) Delete(ctx context.Context, me uuid.UUID, rawID string) (*models.Connection, error) {
	connection, err := s.find(ctx, rawID)
	if err != nil {
		return nil, err
	}
	if !connection.Involves(me) {
		return nil, newError(ErrForbidden, "not a party to this connection")
	}

	if err := s.DB.WithContext(ctx).Unscoped().Delete(&models.Connection{}, "id = ?", connection.ID).Error; err != nil {
		return nil, err
	}
	return connection, nil
}

func (s *ConnectionService) find(ctx context.Context, rawID string) (*models.Connection, error) {
	connectionID, err := parseRecordID(rawID, "connection")
	if err != nil {
		return nil, err
	}

	var connection models.Connection
	if err := s.DB.WithContext(ctx).First(&connection, "id = ?", connectionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(ErrNotFound, "connection not found")
		}
		return nil, err
	}
	return &connection, nil
}

func (s *ConnectionService) pairExists(ctx context.Context, pairKey string) (bool, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&models.Connection{}).
		Where("pair_key = ?", pairKey).
		Count(&count).Error
	return count > 0, err
}
