package models

import (
	"time"

	"github.com/google/uuid"
)

type Message struct {
	BaseModel
	FromID uuid.UUID  `json:"from" gorm:"type:uuid;not null;index:idx_messages_pair"`
	ToID   uuid.UUID  `json:"to" gorm:"type:uuid;not null;index:idx_messages_pair;index"`
	Body   string     `json:"body" gorm:"type:text;not null"`
	ReadAt *time.Time `json:"readAt"`
}
