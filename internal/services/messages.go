package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ayasync/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SendMessageInput struct {
	Body string `json:"body" validate:"max=5000"`
}

type MessageService struct {
	DB *gorm.DB
}

func NewMessageService(db *gorm.DB) *MessageService {
	return &MessageService{DB: db}
}

// Conversation returns every message exchanged between the two users in
// either direction, oldest first.
func (s *MessageService) Conversation(ctx context.Context, me uuid.UUID, rawOtherID string) ([]models.Message, error) {
	otherID, err := parseReferenceID(rawOtherID, "user")
	if err != nil {
		return nil, err
	}

	messages := []models.Message{}
	err = s.DB.WithContext(ctx).
		Where("(from_id = ? AND to_id = ?) OR (from_id = ? AND to_id = ?)", me, otherID, otherID, me).
		Order("created_at ASC").
		Find(&messages).Error
	return messages, err
}

// Send stores a message and returns it along with the recipient record.
func (s *MessageService) Send(ctx context.Context, from *models.User, rawToID string, input SendMessageInput) (*models.Message, *models.User, error) {
	toID, err := parseReferenceID(rawToID, "user")
	if err != nil {
		return nil, nil, err
	}
	body := strings.TrimSpace(input.Body)
	if body == "" {
		return nil, nil, newError(ErrValidation, "message body is required")
	}

	var recipient models.User
	if err := s.DB.WithContext(ctx).First(&recipient, "id = ?", toID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, newError(ErrNotFound, "recipient not found")
		}
		return nil, nil, err
	}

	message := models.Message{
		FromID: from.ID,
		ToID:   recipient.ID,
		Body:   body,
	}
	if err := s.DB.WithContext(ctx).Create(&message).Error; err != nil {
		return nil, nil, err
	}
	return &message, &recipient, nil
}

// MarkRead stamps readAt on every unread message sent by the other user to me.
func (s *MessageService) MarkRead(ctx context.Context, me uuid.UUID, rawOtherID string) (int64, error) {
	otherID, err := parseReferenceID(rawOtherID, "user")
	if err != nil {
		return 0, err
	}

	result := s.DB.WithContext(ctx).Model(&models.Message{}).
		Where("from_id = ? AND to_id = ? AND read_at IS NULL", otherID, me).
		Update("read_at", time.Now().UTC())
	return result.RowsAffected, result.Error
}

// UnreadCounts groups my unread messages by sender id.
func (s *MessageService) UnreadCounts(ctx context.Context, me uuid.UUID) (map[string]int64, error) {
	var rows []struct {
		FromID uuid.UUID
		Count  int64
	}
	err := s.DB.WithContext(ctx).Model(&models.Message{}).
		Select("from_id, COUNT(*) AS count").
		Where("to_id = ? AND read_at IS NULL", me).
		Group("from_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.FromID.String()] = row.Count
	}
	return counts, nil
}
