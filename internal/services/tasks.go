package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/ayasync/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CreateTaskInput struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description" validate:"max=5000"`
	AssignedTo  *string    `json:"assignedTo"`
	Status      string     `json:"status" validate:"omitempty,oneof=todo in-progress completed"`
	Priority    string     `json:"priority" validate:"omitempty,oneof=low medium high"`
	DueDate     *time.Time `json:"dueDate"`
}

// UpdateTaskInput carries the fields a caller may overwrite. Server-managed
// fields that clients echo back from a previous read are accepted and ignored.
type UpdateTaskInput struct {
	Title       *string `json:"title" validate:"omitempty,max=200"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	Status      *string `json:"status"`
	Priority    *string `json:"priority"`

	// An explicit null clears these.
	AssignedTo Nullable[string]    `json:"assignedTo"`
	DueDate    Nullable[time.Time] `json:"dueDate"`

	ID        json.RawMessage `json:"id,omitempty"`
	TeamID    json.RawMessage `json:"teamId,omitempty"`
	CreatedBy json.RawMessage `json:"createdBy,omitempty"`
	CreatedAt json.RawMessage `json:"createdAt,omitempty"`
	UpdatedAt json.RawMessage `json:"updatedAt,omitempty"`
}

// Nullable records whether a JSON field was present at all, and whether it
// was null.
type Nullable[T any] struct {
	Set   bool
	Value *T
}

func NullableOf[T any](v T) Nullable[T] {
	return Nullable[T]{Set: true, Value: &v}
}

func Null[T any]() Nullable[T] {
	return Nullable[T]{Set: true}
}

func (n *Nullable[T]) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		n.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

// TaskService is the task store. Mutations are last-write-wins and any status
// may follow any other.
type TaskService struct {
	DB                *gorm.DB
	Teams             *TeamService
	RequireMembership bool
}

func NewTaskService(db *gorm.DB, teams *TeamService, requireMembership bool) *TaskService {
	return &TaskService{DB: db, Teams: teams, RequireMembership: requireMembership}
}

func (s *TaskService) ListByTeam(ctx context.Context, actor *models.User, rawTeamID string) ([]models.Task, error) {
	teamID, err := parseTeamRef(rawTeamID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, teamID); err != nil {
		return nil, err
	}

	tasks := []models.Task{}
	err = s.DB.WithContext(ctx).
		Where("team_id = ?", teamID).
		Order("created_at ASC").
		Find(&tasks).Error
	return tasks, err
}

func (s *TaskService) Create(ctx context.Context, actor *models.User, rawTeamID string, input CreateTaskInput) (*models.Task, error) {
	teamID, err := parseTeamRef(rawTeamID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, teamID); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, newError(ErrValidation, "title is required")
	}
	assignee, err := parseAssignee(input.AssignedTo)
	if err != nil {
		return nil, err
	}

	task := models.Task{
		TeamID:      teamID,
		Title:       title,
		Description: input.Description,
		AssignedTo:  assignee,
		Status:      models.TaskStatusTodo,
		Priority:    models.TaskPriorityMedium,
		DueDate:     input.DueDate,
		CreatedBy:   actor.ID,
	}
	if input.Status != "" {
		task.Status = models.TaskStatus(input.Status)
	}
	if input.Priority != "" {
		task.Priority = models.TaskPriority(input.Priority)
	}

	if err := s.DB.WithContext(ctx).Create(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *TaskService) Update(ctx context.Context, actor *models.User, rawID string, input UpdateTaskInput) (*models.Task, error) {
	task, err := s.find(ctx, rawID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, task.TeamID); err != nil {
		return nil, err
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, newError(ErrValidation, "title cannot be empty")
		}
		task.Title = title
	}
	if input.Description != nil {
		task.Description = *input.Description
	}
	if input.AssignedTo.Set {
		assignee, err := parseAssignee(input.AssignedTo.Value)
		if err != nil {
			return nil, err
		}
		task.AssignedTo = assignee
	}
	if input.Status != nil {
		status, ok := parseTaskStatus(*input.Status)
		if !ok {
			return nil, newError(ErrValidation, "status must be one of: todo, in-progress, completed")
		}
		task.Status = status
	}
	if input.Priority != nil {
		priority, ok := parseTaskPriority(*input.Priority)
		if !ok {
			return nil, newError(ErrValidation, "priority must be one of: low, medium, high")
		}
		task.Priority = priority
	}
	if input.DueDate.Set {
		task.DueDate = input.DueDate.Value
	}

	if err := s.DB.WithContext(ctx).Save(task).Error; err != nil {
		return nil, err
	}
	return task, nil
}

// Delete removes the task and returns the deleted record so callers can
// notify the owning team's board.
func (s *TaskService) Delete(ctx context.Context, actor *models.User, rawID string) (*models.Task, error) {
	task, err := s.find(ctx, rawID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, task.TeamID); err != nil {
		return nil, err
	}

	result := s.DB.WithContext(ctx).Delete(&models.Task{}, "id = ?", task.ID)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, newError(ErrNotFound, "task not found")
	}
	return task, nil
}

func (s *TaskService) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&models.Task{}).Count(&count).Error
	return count, err
}

func (s *TaskService) find(ctx context.Context, rawID string) (*models.Task, error) {
	taskID, err := parseRecordID(rawID, "task")
	if err != nil {
		return nil, err
	}

	var task models.Task
	if err := s.DB.WithContext(ctx).First(&task, "id = ?", taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(ErrNotFound, "task not found")
		}
		return nil, err
	}
	return &task, nil
}

func (s *TaskService) authorize(ctx context.Context, actor *models.User, teamID uuid.UUID) error {
	if !s.RequireMembership || actor.IsAdmin() {
		return nil
	}
	ok, err := s.Teams.IsMember(ctx, teamID, actor.ID)
	if err != nil {
		return err
	}
	if !ok {
		return newError(ErrForbidden, "not a member of this team")
	}
	return nil
}

func parseTeamRef(raw string) (uuid.UUID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "undefined" || trimmed == "null" {
		return uuid.Nil, newError(ErrInvalidID, "invalid team id")
	}
	return parseReferenceID(trimmed, "team")
}

func parseAssignee(raw *string) (*uuid.UUID, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	id, err := uuid.Parse(strings.TrimSpace(*raw))
	if err != nil {
		return nil, newError(ErrValidation, "assignedTo must be a valid user id")
	}
	return &id, nil
}

func parseTaskStatus(raw string) (models.TaskStatus, bool) {
	switch status := models.TaskStatus(raw); status {
	case models.TaskStatusTodo, models.TaskStatusInProgress, models.TaskStatusCompleted:
		return status, true
	}
	return "", false
}

func parseTaskPriority(raw string) (models.TaskPriority, bool) {
	switch priority := models.TaskPriority(raw); priority {
	case models.TaskPriorityLow, models.TaskPriorityMedium, models.TaskPriorityHigh:
		return priority, true
	}
	return "", false
}
