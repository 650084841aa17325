package models

import (
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in-progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

// Task.TeamID references a team but is not a database foreign key.
type Task struct {
	BaseModel
	TeamID      uuid.UUID    `json:"teamId" gorm:"type:uuid;not null;index"`
	Title       string       `json:"title" gorm:"type:varchar(200);not null"`
	Description string       `json:"description" gorm:"type:text;not null;default:''"`
	AssignedTo  *uuid.UUID   `json:"assignedTo" gorm:"type:uuid;index"`
	Status      TaskStatus   `json:"status" gorm:"type:varchar(20);not null;default:'todo'"`
	Priority    TaskPriority `json:"priority" gorm:"type:varchar(10);not null;default:'medium'"`
	DueDate     *time.Time   `json:"dueDate"`
	CreatedBy   uuid.UUID    `json:"createdBy" gorm:"type:uuid;not null"`
}
