package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ayasync/backend/internal/middleware"
	"github.com/ayasync/backend/internal/models"
	"github.com/ayasync/backend/internal/realtime"
	"github.com/ayasync/backend/internal/services"
	"github.com/ayasync/backend/pkg/utils"
)

type TasksHandler struct {
	Tasks     *services.TaskService
	Audit     *services.AuditService
	Publisher realtime.Publisher
}

func NewTasksHandler(tasks *services.TaskService, audit *services.AuditService, publisher realtime.Publisher) *TasksHandler {
	return &TasksHandler{Tasks: tasks, Audit: audit, Publisher: publisherOrNop(publisher)}
}

func (h *TasksHandler) ListByTeam(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	tasks, err := h.Tasks.ListByTeam(c.UserContext(), currentUser, c.Params("teamId"))
	if err != nil {
		return respondError(c, err, "task_list")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"tasks": tasks})
}

func (h *TasksHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var input services.CreateTaskInput
	if err := utils.ParseBody(c, &input); err != nil {
		return respondError(c, err, "task_create")
	}

	task, err := h.Tasks.Create(c.UserContext(), currentUser, c.Params("teamId"), input)
	if err != nil {
		return respondError(c, err, "task_create")
	}

	h.logTaskAudit(c, currentUser, "task.create", task, task.AssignedTo != nil)
	h.publishTask(task)

	return utils.Success(c, fiber.StatusCreated, fiber.Map{"task": task})
}

func (h *TasksHandler) Update(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var input services.UpdateTaskInput
	if err := utils.ParseBody(c, &input); err != nil {
		return respondError(c, err, "task_update")
	}

	task, err := h.Tasks.Update(c.UserContext(), currentUser, c.Params("id"), input)
	if err != nil {
		return respondError(c, err, "task_update")
	}

	h.logTaskAudit(c, currentUser, "task.update", task, input.AssignedTo.Set && task.AssignedTo != nil)
	h.publishTask(task)

	return utils.Success(c, fiber.StatusOK, fiber.Map{"task": task})
}

func (h *TasksHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	task, err := h.Tasks.Delete(c.UserContext(), currentUser, c.Params("id"))
	if err != nil {
		return respondError(c, err, "task_delete")
	}

	h.logTaskAudit(c, currentUser, "task.delete", task, false)
	h.Publisher.Publish(realtime.TeamBoardRoom(task.TeamID.String()), realtime.EventTeamBoardUpdate, fiber.Map{
		"deletedTaskId": task.ID,
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"deleted": true, "id": task.ID})
}

// MissingID answers PUT and DELETE on /api/tasks without an id.
func (h *TasksHandler) MissingID(c *fiber.Ctx) error {
	return utils.Error(c, fiber.StatusBadRequest, "invalid task id")
}

func (h *TasksHandler) publishTask(task *models.Task) {
	h.Publisher.Publish(realtime.TeamBoardRoom(task.TeamID.String()), realtime.EventTeamBoardUpdate, fiber.Map{
		"task": task,
	})
}

func (h *TasksHandler) logTaskAudit(c *fiber.Ctx, actor *models.User, action string, task *models.Task, assignmentChanged bool) {
	details := map[string]interface{}{
		"name":               task.Title,
		"team_id":            task.TeamID.String(),
		"status":             string(task.Status),
		"assignment_changed": assignmentChanged,
	}
	if task.AssignedTo != nil {
		details["assigned_to"] = task.AssignedTo.String()
	}

	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &actor.ID,
		Action:       action,
		ResourceType: "task",
		ResourceID:   &task.ID,
		Details:      details,
		IPAddress:    c.IP(),
		RequestID:    getRequestID(c),
	})
}
