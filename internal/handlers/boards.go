package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ayasync/backend/internal/middleware"
	"github.com/ayasync/backend/internal/realtime"
	"github.com/ayasync/backend/internal/services"
	"github.com/ayasync/backend/pkg/utils"
)

type BoardsHandler struct {
	Boards    *services.BoardService
	Audit     *services.AuditService
	Publisher realtime.Publisher
}

func NewBoardsHandler(boards *services.BoardService, audit *services.AuditService, publisher realtime.Publisher) *BoardsHandler {
	return &BoardsHandler{Boards: boards, Audit: audit, Publisher: publisherOrNop(publisher)}
}

func (h *BoardsHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var input services.BoardInput
	if err := utils.ParseBody(c, &input); err != nil {
		return respondError(c, err, "board_create")
	}

	board, err := h.Boards.Create(c.UserContext(), currentUser, input)
	if err != nil {
		return respondError(c, err, "board_create")
	}

	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &currentUser.ID,
		Action:       "board.create",
		ResourceType: "board",
		ResourceID:   &board.ID,
		Details: map[string]interface{}{
			"name": board.Title,
		},
		IPAddress: c.IP(),
		RequestID: getRequestID(c),
	})

	return utils.Success(c, fiber.StatusCreated, fiber.Map{"board": board})
}

func (h *BoardsHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	boards, err := h.Boards.ListForUser(c.UserContext(), currentUser)
	if err != nil {
		return respondError(c, err, "board_list")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"boards": boards})
}

func (h *BoardsHandler) Get(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	board, err := h.Boards.Get(c.UserContext(), currentUser, c.Params("id"))
	if err != nil {
		return respondError(c, err, "board_get")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"board": board})
}

func (h *BoardsHandler) Update(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var input services.BoardInput
	if err := utils.ParseBody(c, &input); err != nil {
		return respondError(c, err, "board_update")
	}

	board, err := h.Boards.Update(c.UserContext(), currentUser, c.Params("id"), input)
	if err != nil {
		return respondError(c, err, "board_update")
	}

	h.Publisher.Publish(realtime.TeamBoardRoom(board.ID.String()), realtime.EventTeamBoardUpdate, fiber.Map{
		"id":    board.ID,
		"title": board.Title,
		"data":  board.Data,
	})
	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &currentUser.ID,
		Action:       "board.update",
		ResourceType: "board",
		ResourceID:   &board.ID,
		Details: map[string]interface{}{
			"name": board.Title,
		},
		IPAddress: c.IP(),
		RequestID: getRequestID(c),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"board": board})
}

type shareBoardResponse struct {
	BoardID string `json:"boardId"`
	Title   string `json:"title"`
}

func (h *BoardsHandler) Share(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var input services.ShareBoardInput
	if err := utils.ParseBody(c, &input); err != nil {
		return respondError(c, err, "board_share")
	}

	board, member, err := h.Boards.Share(c.UserContext(), currentUser, c.Params("id"), input)
	if err != nil {
		return respondError(c, err, "board_share")
	}

	h.Publisher.Publish(realtime.UserRoom(member.ID.String()), realtime.EventBoardShared, shareBoardResponse{
		BoardID: board.ID.String(),
		Title:   board.Title,
	})
	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &currentUser.ID,
		Action:       "board.share",
		ResourceType: "board",
		ResourceID:   &board.ID,
		Details: map[string]interface{}{
			"name":           board.Title,
			"target_user_id": member.ID.String(),
		},
		IPAddress: c.IP(),
		RequestID: getRequestID(c),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"board": board})
}
