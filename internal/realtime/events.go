package realtime

import "encoding/json"

// Server-to-client event names.
const (
	EventTeamBoardUpdate = "teamBoard:update"
	EventTeamCreated     = "team:created"
	EventTeamUpdated     = "team:updated"
	EventMessageNew      = "msg:new"
	EventPing            = "ping"
	EventBoardShared     = "board:shared"
	EventError           = "error"
	EventRegistered      = "registered"
	EventJoined          = "joined"
	EventLeft            = "left"
)

// Client-to-server event names.
const (
	ClientRegister       = "register"
	ClientJoinTeamBoard  = "joinTeamBoard"
	ClientLeaveTeamBoard = "leaveTeamBoard"
)

func UserRoom(userID string) string {
	return "user:" + userID
}

func TeamBoardRoom(teamID string) string {
	return "teamBoard:" + teamID
}

// Frame is the JSON envelope for every websocket message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Publisher delivers events to connected sessions. Delivery is best effort:
// publishing never blocks and an empty room is a no-op.
type Publisher interface {
	Publish(room, event string, payload any)
	Broadcast(event string, payload any)
}

type NopPublisher struct{}

func (NopPublisher) Publish(string, string, any) {}
func (NopPublisher) Broadcast(string, any)       {}
