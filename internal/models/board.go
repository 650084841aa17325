package models

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const DefaultBoardTitle = "Untitled Board"

type Board struct {
	BaseModel
	Title   string         `json:"title" gorm:"type:varchar(200);not null"`
	OwnerID uuid.UUID      `json:"ownerId" gorm:"type:uuid;not null;index"`
	Data    datatypes.JSON `json:"data"`
	Members []BoardMember  `json:"members" gorm:"foreignKey:BoardID"`
}

type BoardMember struct {
	BaseModel
	BoardID uuid.UUID `json:"boardId" gorm:"type:uuid;not null;index;uniqueIndex:idx_board_member"`
	UserID  uuid.UUID `json:"userId" gorm:"type:uuid;not null;index;uniqueIndex:idx_board_member"`
}

func (b *Board) CanAccess(userID uuid.UUID) bool {
	if b.OwnerID == userID {
		return true
	}
	for _, m := range b.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}
