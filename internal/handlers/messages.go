package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ayasync/backend/internal/middleware"
	"github.com/ayasync/backend/internal/realtime"
	"github.com/ayasync/backend/internal/services"
	"github.com/ayasync/backend/pkg/utils"
)

type MessagesHandler struct {
	Messages  *services.MessageService
	Audit     *services.AuditService
	Notifier  services.Notifier
	Publisher realtime.Publisher
}

func NewMessagesHandler(messages *services.MessageService, audit *services.AuditService, notifier services.Notifier, publisher realtime.Publisher) *MessagesHandler {
	if notifier == nil {
		notifier = services.NoopNotifier{}
	}
	return &MessagesHandler{
		Messages:  messages,
		Audit:     audit,
		Notifier:  notifier,
		Publisher: publisherOrNop(publisher),
	}
}

func (h *MessagesHandler) Conversation(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	messages, err := h.Messages.Conversation(c.UserContext(), currentUser.ID, c.Params("userId"))
	if err != nil {
		return respondError(c, err, "message_conversation")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"messages": messages})
}

func (h *MessagesHandler) Send(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var input services.SendMessageInput
	if err := utils.ParseBody(c, &input); err != nil {
		return respondError(c, err, "message_send")
	}

	message, recipient, err := h.Messages.Send(c.UserContext(), currentUser, c.Params("userId"), input)
	if err != nil {
		return respondError(c, err, "message_send")
	}

	h.Publisher.Publish(realtime.UserRoom(recipient.ID.String()), realtime.EventMessageNew, message)
	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &currentUser.ID,
		Action:       "message.send",
		ResourceType: "message",
		ResourceID:   &message.ID,
		Details: map[string]interface{}{
			"target_user_id": recipient.ID.String(),
		},
		IPAddress: c.IP(),
		RequestID: getRequestID(c),
	})
	h.Notifier.NewMessage(recipient, currentUser, message.Body)

	return utils.Success(c, fiber.StatusCreated, fiber.Map{"message": message})
}

func (h *MessagesHandler) MarkRead(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	updated, err := h.Messages.MarkRead(c.UserContext(), currentUser.ID, c.Params("userId"))
	if err != nil {
		return respondError(c, err, "message_mark_read")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"updated": updated})
}

func (h *MessagesHandler) UnreadCounts(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	counts, err := h.Messages.UnreadCounts(c.UserContext(), currentUser.ID)
	if err != nil {
		return respondError(c, err, "message_unread_counts")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"counts": counts})
}
