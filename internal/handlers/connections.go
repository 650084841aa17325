package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ayasync/backend/internal/middleware"
	"github.com/ayasync/backend/internal/services"
	"github.com/ayasync/backend/pkg/utils"
)

type ConnectionsHandler struct {
	Connections *services.ConnectionService
	Audit       *services.AuditService
	Notifier    services.Notifier
}

func NewConnectionsHandler(connections *services.ConnectionService, audit *services.AuditService, notifier services.Notifier) *ConnectionsHandler {
	if notifier == nil {
		notifier = services.NoopNotifier{}
	}
	return &ConnectionsHandler{Connections: connections, Audit: audit, Notifier: notifier}
}

func (h *ConnectionsHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	connections, err := h.Connections.List(c.UserContext(), currentUser.ID)
	if err != nil {
		return respondError(c, err, "connection_list")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"connections": connections})
}

func (h *ConnectionsHandler) Request(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var input services.RequestConnectionInput
	if err := utils.ParseBody(c, &input); err != nil {
		return respondError(c, err, "connection_request")
	}

	connection, target, err := h.Connections.Request(c.UserContext(), currentUser, input)
	if err != nil {
		return respondError(c, err, "connection_request")
	}

	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &currentUser.ID,
		Action:       "connection.request",
		ResourceType: "connection",
		ResourceID:   &connection.ID,
		Details: map[string]interface{}{
			"target_user_id": target.ID.String(),
		},
		IPAddress: c.IP(),
		RequestID: getRequestID(c),
	})
	h.Notifier.ConnectionRequest(target, currentUser)

	return utils.Success(c, fiber.StatusCreated, fiber.Map{"connection": connection})
}

func (h *ConnectionsHandler) Respond(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var input services.RespondConnectionInput
	if err := utils.ParseBody(c, &input); err != nil {
		return respondError(c, err, "connection_respond")
	}

	connection, err := h.Connections.Respond(c.UserContext(), currentUser.ID, c.Params("id"), input)
	if err != nil {
		return respondError(c, err, "connection_respond")
	}

	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &currentUser.ID,
		Action:       "connection.respond",
		ResourceType: "connection",
		ResourceID:   &connection.ID,
		Details: map[string]interface{}{
			"target_user_id": connection.RequesterID.String(),
			"status":         string(connection.Status),
		},
		IPAddress: c.IP(),
		RequestID: getRequestID(c),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"connection": connection})
}

func (h *ConnectionsHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	connection, err := h.Connections.Delete(c.UserContext(), currentUser.ID, c.Params("id"))
	if err != nil {
		return respondError(c, err, "connection_delete")
	}

	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &currentUser.ID,
		Action:       "connection.delete",
		ResourceType: "connection",
		ResourceID:   &connection.ID,
		IPAddress:    c.IP(),
		RequestID:    getRequestID(c),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"deleted": true})
}
