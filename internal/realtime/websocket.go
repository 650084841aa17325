package realtime

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"gorm.io/gorm"

	"github.com/ayasync/backend/internal/models"
	"github.com/ayasync/backend/pkg/logger"
	"github.com/ayasync/backend/pkg/utils"
)

const writeWait = 10 * time.Second

// Gateway exposes the hub over websockets at GET /ws.
type Gateway struct {
	Hub          *Hub
	DB           *gorm.DB
	PingInterval time.Duration
}

func NewGateway(hub *Hub, db *gorm.DB, pingInterval time.Duration) *Gateway {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Gateway{Hub: hub, DB: db, PingInterval: pingInterval}
}

// Upgrade authenticates the handshake with a bearer token from the
// Authorization header or the token query parameter.
func (g *Gateway) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return utils.Error(c, fiber.StatusUpgradeRequired, "websocket upgrade required")
	}

	token := c.Query("token")
	if token == "" {
		token, _ = utils.BearerToken(c.Get("Authorization"))
	}
	if token == "" {
		return utils.Error(c, fiber.StatusUnauthorized, "missing token")
	}

	claims, err := utils.ValidateToken(token)
	if errors.Is(err, utils.ErrTokenExpired) {
		return utils.Error(c, fiber.StatusUnauthorized, "token expired")
	}
	if err != nil {
		return utils.Error(c, fiber.StatusUnauthorized, "invalid token")
	}

	var user models.User
	if err := g.DB.WithContext(c.UserContext()).Where("id = ?", claims.UserID).First(&user).Error; err != nil {
		return utils.Error(c, fiber.StatusUnauthorized, "user not found")
	}
	if !user.IsActive {
		return utils.Error(c, fiber.StatusForbidden, "account is disabled")
	}

	c.Locals("userID", user.ID.String())
	return c.Next()
}

func (g *Gateway) Handler() fiber.Handler {
	return websocket.New(g.serve)
}

func (g *Gateway) serve(conn *websocket.Conn) {
	userID, _ := conn.Locals("userID").(string)
	session := g.Hub.Connect(userID)
	logger.InfoWithUser(userID, "realtime_connected", nil)

	done := make(chan struct{})
	go g.writeLoop(conn, session, done)

	conn.SetReadDeadline(time.Now().Add(2 * g.PingInterval))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * g.PingInterval))
	})

	for {
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		session.HandleFrame(raw)
	}

	g.Hub.Disconnect(session)
	<-done
	logger.InfoWithUser(userID, "realtime_disconnected", nil)
}

func (g *Gateway) writeLoop(conn *websocket.Conn, session *Session, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(g.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-session.Send():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				conn.Close()
				g.Hub.Disconnect(session)
				drain(session)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				g.Hub.Disconnect(session)
				drain(session)
				return
			}
		}
	}
}

func drain(session *Session) {
	for range session.Send() {
	}
}
