package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ayasync/backend/internal/middleware"
	"github.com/ayasync/backend/internal/realtime"
	"github.com/ayasync/backend/internal/services"
	"github.com/ayasync/backend/pkg/utils"
)

type TeamsHandler struct {
	Teams     *services.TeamService
	Audit     *services.AuditService
	Publisher realtime.Publisher
}

func NewTeamsHandler(teams *services.TeamService, audit *services.AuditService, publisher realtime.Publisher) *TeamsHandler {
	return &TeamsHandler{Teams: teams, Audit: audit, Publisher: publisherOrNop(publisher)}
}

func (h *TeamsHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var input services.CreateTeamInput
	if err := utils.ParseBody(c, &input); err != nil {
		return respondError(c, err, "team_create")
	}

	team, err := h.Teams.Create(c.UserContext(), currentUser, input)
	if err != nil {
		return respondError(c, err, "team_create")
	}

	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &currentUser.ID,
		Action:       "team.create",
		ResourceType: "team",
		ResourceID:   &team.ID,
		Details: map[string]interface{}{
			"name": team.Name,
		},
		IPAddress: c.IP(),
		RequestID: getRequestID(c),
	})
	h.Publisher.Broadcast(realtime.EventTeamCreated, team)

	return utils.Success(c, fiber.StatusCreated, fiber.Map{"team": team})
}

func (h *TeamsHandler) List(c *fiber.Ctx) error {
	teams, err := h.Teams.List(c.UserContext())
	if err != nil {
		return respondError(c, err, "team_list")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"teams": teams})
}

func (h *TeamsHandler) Mine(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	teams, err := h.Teams.ListForUser(c.UserContext(), currentUser.ID)
	if err != nil {
		return respondError(c, err, "team_list_mine")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"teams": teams})
}

func (h *TeamsHandler) Get(c *fiber.Ctx) error {
	team, err := h.Teams.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err, "team_get")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"team": team})
}

// Join is idempotent; team:updated is only published when membership changed.
func (h *TeamsHandler) Join(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	team, joined, err := h.Teams.Join(c.UserContext(), c.Params("id"), currentUser)
	if err != nil {
		return respondError(c, err, "team_join")
	}

	if joined {
		h.Audit.LogAsync(services.AuditEntry{
			UserID:       &currentUser.ID,
			Action:       "team.join",
			ResourceType: "team",
			ResourceID:   &team.ID,
			Details: map[string]interface{}{
				"name": team.Name,
			},
			IPAddress: c.IP(),
			RequestID: getRequestID(c),
		})
		h.Publisher.Broadcast(realtime.EventTeamUpdated, team)
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"team": team, "joined": joined})
}
