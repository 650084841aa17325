package models

import "time"

type UserRole string

const (
	UserRoleAdmin UserRole = "admin"
	UserRoleUser  UserRole = "user"
)

type User struct {
	BaseModel
	Email        string     `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string     `json:"-" gorm:"type:text;not null"`
	Name         string     `json:"name" gorm:"type:varchar(100);not null;default:''"`
	AvatarURL    *string    `json:"avatarUrl,omitempty" gorm:"type:text"`
	Role         UserRole   `json:"role" gorm:"type:varchar(20);not null;default:'user'"`
	IsActive     bool       `json:"isActive" gorm:"not null;default:true"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
}

func (u *User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}
