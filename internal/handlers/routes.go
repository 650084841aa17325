package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/ayasync/backend/internal/middleware"
	"github.com/ayasync/backend/internal/realtime"
	"github.com/ayasync/backend/internal/services"
	"github.com/ayasync/backend/internal/storage"
)

// Deps are the collaborators shared by every handler. Storage may be nil when
// object storage is not configured.
type Deps struct {
	DB                     *gorm.DB
	Audit                  *services.AuditService
	Notifier               services.Notifier
	Publisher              realtime.Publisher
	Storage                storage.ObjectStore
	AllowAdminRegistration bool
	RequireTaskMembership  bool
}

type Handlers struct {
	Auth        *AuthHandler
	Users       *UsersHandler
	Connections *ConnectionsHandler
	Teams       *TeamsHandler
	Tasks       *TasksHandler
	Messages    *MessagesHandler
	Boards      *BoardsHandler
	Admin       *AdminHandler
	Activities  *ActivitiesHandler
	Health      *HealthHandler
}

func New(deps Deps) *Handlers {
	teams := services.NewTeamService(deps.DB)
	tasks := services.NewTaskService(deps.DB, teams, deps.RequireTaskMembership)

	return &Handlers{
		Auth:        NewAuthHandler(deps.DB, deps.Audit, deps.Notifier, deps.AllowAdminRegistration),
		Users:       NewUsersHandler(deps.DB, deps.Audit, deps.Storage, deps.Publisher),
		Connections: NewConnectionsHandler(services.NewConnectionService(deps.DB), deps.Audit, deps.Notifier),
		Teams:       NewTeamsHandler(teams, deps.Audit, deps.Publisher),
		Tasks:       NewTasksHandler(tasks, deps.Audit, deps.Publisher),
		Messages:    NewMessagesHandler(services.NewMessageService(deps.DB), deps.Audit, deps.Notifier, deps.Publisher),
		Boards:      NewBoardsHandler(services.NewBoardService(deps.DB), deps.Audit, deps.Publisher),
		Admin:       NewAdminHandler(deps.DB, deps.Audit, teams, tasks),
		Activities:  NewActivitiesHandler(deps.DB),
		Health:      NewHealthHandler(deps.DB),
	}
}

// RegisterRoutes mounts the REST surface under /api. authLimiter, when not
// nil, guards the register and login endpoints.
func RegisterRoutes(app *fiber.App, h *Handlers, auth *middleware.AuthMiddleware, authLimiter fiber.Handler) {
	api := app.Group("/api")
	api.Get("/health", h.Health.Check)
	api.Get("/version", GetVersion)

	authRoutes := api.Group("/auth")
	if authLimiter != nil {
		authRoutes.Use(authLimiter)
	}
	authRoutes.Post("/register", h.Auth.Register)
	authRoutes.Post("/login", h.Auth.Login)

	api.Get("/users/:id/avatar", h.Users.Avatar)

	userRoutes := api.Group("/users", auth.RequireAuth)
	userRoutes.Get("/", h.Users.Directory)
	userRoutes.Get("/me", h.Users.Me)
	userRoutes.Patch("/me", h.Users.UpdateMe)
	userRoutes.Post("/ping", h.Users.Ping)
	userRoutes.Get("/connections", h.Connections.List)
	userRoutes.Post("/connections", h.Connections.Request)
	userRoutes.Patch("/connections/:id", h.Connections.Respond)
	userRoutes.Delete("/connections/:id", h.Connections.Delete)

	teamRoutes := api.Group("/teams", auth.RequireAuth)
	teamRoutes.Get("/", h.Teams.List)
	teamRoutes.Post("/", h.Teams.Create)
	teamRoutes.Get("/mine", h.Teams.Mine)
	teamRoutes.Get("/:id", h.Teams.Get)
	teamRoutes.Post("/:id/join", h.Teams.Join)

	taskRoutes := api.Group("/tasks", auth.RequireAuth)
	taskRoutes.Get("/team/:teamId", h.Tasks.ListByTeam)
	taskRoutes.Post("/team/:teamId", h.Tasks.Create)
	taskRoutes.Put("/", h.Tasks.MissingID)
	taskRoutes.Delete("/", h.Tasks.MissingID)
	taskRoutes.Put("/:id", h.Tasks.Update)
	taskRoutes.Delete("/:id", h.Tasks.Delete)

	messageRoutes := api.Group("/messages", auth.RequireAuth)
	messageRoutes.Get("/unread/counts", h.Messages.UnreadCounts)
	messageRoutes.Get("/:userId", h.Messages.Conversation)
	messageRoutes.Post("/:userId", h.Messages.Send)
	messageRoutes.Post("/:userId/read", h.Messages.MarkRead)

	boardRoutes := api.Group("/boards", auth.RequireAuth)
	boardRoutes.Get("/", h.Boards.List)
	boardRoutes.Post("/", h.Boards.Create)
	boardRoutes.Get("/:id", h.Boards.Get)
	boardRoutes.Put("/:id", h.Boards.Update)
	boardRoutes.Post("/:id/share", h.Boards.Share)

	activityRoutes := api.Group("/activities", auth.RequireAuth)
	activityRoutes.Get("/", h.Activities.List)
	activityRoutes.Get("/unread-count", h.Activities.UnreadCount)
	activityRoutes.Put("/read-all", h.Activities.MarkAllRead)
	activityRoutes.Put("/:id/read", h.Activities.MarkRead)

	adminRoutes := api.Group("/admin", auth.RequireAuth, middleware.AdminOnly)
	adminRoutes.Get("/users", h.Admin.ListUsers)
	adminRoutes.Get("/users/:id", h.Admin.GetUser)
	adminRoutes.Patch("/users/:id", h.Admin.UpdateUser)
	adminRoutes.Delete("/users/:id", h.Admin.DeleteUser)
	adminRoutes.Get("/stats", h.Admin.Stats)
	adminRoutes.Get("/audit-log", h.Admin.AuditLog)
	adminRoutes.Get("/audit-log/export", h.Admin.ExportAuditLog)
}
