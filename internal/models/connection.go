package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ConnectionStatus string

const (
	ConnectionStatusPending  ConnectionStatus = "pending"
	ConnectionStatusAccepted ConnectionStatus = "accepted"
	ConnectionStatusDeclined ConnectionStatus = "declined"
)

// Connection is a social link between two users. PairKey holds both ids in
// sorted order so the unique index covers the unordered pair.
type Connection struct {
	BaseModel
	RequesterID uuid.UUID        `json:"requesterId" gorm:"type:uuid;not null;index"`
	TargetID    uuid.UUID        `json:"targetId" gorm:"type:uuid;not null;index"`
	PairKey     string           `json:"-" gorm:"type:varchar(80);not null;uniqueIndex"`
	Status      ConnectionStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending'"`
	RespondedAt *time.Time       `json:"respondedAt,omitempty"`
}

func ConnectionPairKey(a, b uuid.UUID) string {
	x, y := a.String(), b.String()
	if x > y {
		x, y = y, x
	}
	return x + ":" + y
}

func (c *Connection) BeforeCreate(tx *gorm.DB) error {
	if err := c.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	c.PairKey = ConnectionPairKey(c.RequesterID, c.TargetID)
	return nil
}

// Involves reports whether userID is either side of the connection.
func (c *Connection) Involves(userID uuid.UUID) bool {
	return c.RequesterID == userID || c.TargetID == userID
}
