package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type TeamRole string

const (
	TeamRoleOwner  TeamRole = "owner"
	TeamRoleAdmin  TeamRole = "admin"
	TeamRoleMember TeamRole = "member"
)

type TeamVisibility string

const (
	TeamVisibilityPublic  TeamVisibility = "public"
	TeamVisibilityPrivate TeamVisibility = "private"
)

type TeamSettings struct {
	AllowMemberInvites  bool           `json:"allowMemberInvites"`
	AllowTaskCreation   bool           `json:"allowTaskCreation"`
	AllowTaskAssignment bool           `json:"allowTaskAssignment"`
	MaxMembers          int            `json:"maxMembers"`
	Visibility          TeamVisibility `json:"visibility"`
}

func DefaultTeamSettings() TeamSettings {
	return TeamSettings{
		AllowMemberInvites:  true,
		AllowTaskCreation:   true,
		AllowTaskAssignment: true,
		MaxMembers:          50,
		Visibility:          TeamVisibilityPrivate,
	}
}

type Team struct {
	BaseModel
	Name        string                           `json:"name" gorm:"type:varchar(150);not null"`
	Description string                           `json:"description" gorm:"type:text;not null;default:''"`
	Settings    datatypes.JSONType[TeamSettings] `json:"settings"`
	CreatedByID uuid.UUID                        `json:"createdBy" gorm:"type:uuid;not null;index"`
	Members     []TeamMember                     `json:"members" gorm:"foreignKey:TeamID"`
}

// TeamMember rows are unique per (team, user). Email is a snapshot taken at join time.
type TeamMember struct {
	BaseModel
	TeamID   uuid.UUID `json:"teamId" gorm:"type:uuid;not null;index;uniqueIndex:idx_team_member"`
	UserID   uuid.UUID `json:"userId" gorm:"type:uuid;not null;index;uniqueIndex:idx_team_member"`
	Email    string    `json:"email" gorm:"type:varchar(255);not null"`
	Role     TeamRole  `json:"role" gorm:"type:varchar(20);not null;default:'member'"`
	IsActive bool      `json:"isActive" gorm:"not null;default:true"`
	JoinedAt time.Time `json:"joinedAt" gorm:"not null"`
}

func (t *Team) MemberFor(userID uuid.UUID) *TeamMember {
	for i := range t.Members {
		if t.Members[i].UserID == userID {
			return &t.Members[i]
		}
	}
	return nil
}
