package realtime

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/ayasync/backend/internal/metrics"
	"github.com/ayasync/backend/pkg/logger"
)

// Hub tracks connected sessions and the rooms they joined. Room membership is
// guarded by a single RWMutex; publishing holds the read lock while it hands
// frames to session buffers.
type Hub struct {
	mu         sync.RWMutex
	sessions   map[*Session]struct{}
	rooms      map[string]map[*Session]struct{}
	sendBuffer int
}

func NewHub(sendBuffer int) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = 64
	}
	return &Hub{
		sessions:   make(map[*Session]struct{}),
		rooms:      make(map[string]map[*Session]struct{}),
		sendBuffer: sendBuffer,
	}
}

// Session is one connected client. Frames queued for it are read from Send.
type Session struct {
	UserID string

	hub   *Hub
	send  chan []byte
	rooms map[string]struct{}
}

func (h *Hub) Connect(userID string) *Session {
	s := &Session{
		UserID: userID,
		hub:    h,
		send:   make(chan []byte, h.sendBuffer),
		rooms:  make(map[string]struct{}),
	}

	h.mu.Lock()
	h.sessions[s] = struct{}{}
	h.mu.Unlock()

	metrics.RealtimeSessions.Inc()
	return s
}

// Disconnect removes the session from every room and closes its send channel.
// Calling it more than once is safe.
func (h *Hub) Disconnect(s *Session) {
	h.mu.Lock()
	if _, ok := h.sessions[s]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, s)
	for room := range s.rooms {
		h.removeFromRoomLocked(room, s)
	}
	s.rooms = map[string]struct{}{}
	close(s.send)
	h.mu.Unlock()

	metrics.RealtimeSessions.Dec()
}

func (h *Hub) Join(s *Session, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[s]; !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Session]struct{})
		h.rooms[room] = members
	}
	members[s] = struct{}{}
	s.rooms[room] = struct{}{}
}

func (h *Hub) Leave(s *Session, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := s.rooms[room]; !ok {
		return
	}
	delete(s.rooms, room)
	h.removeFromRoomLocked(room, s)
}

func (h *Hub) removeFromRoomLocked(room string, s *Session) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, s)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

func (h *Hub) Publish(room, event string, payload any) {
	frame, ok := encodeFrame(event, payload)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.rooms[room] {
		h.deliver(s, event, frame)
	}
}

func (h *Hub) Broadcast(event string, payload any) {
	frame, ok := encodeFrame(event, payload)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.sessions {
		h.deliver(s, event, frame)
	}
}

func (h *Hub) deliver(s *Session, event string, frame []byte) {
	select {
	case s.send <- frame:
		metrics.RealtimeEventsPublished.WithLabelValues(event).Inc()
	default:
		metrics.RealtimeEventsDropped.WithLabelValues(event).Inc()
		logger.Warn("realtime_event_dropped", map[string]interface{}{
			"event":   event,
			"user_id": s.UserID,
		})
	}
}

func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Send returns the channel of encoded frames queued for this session. It is
// closed on disconnect.
func (s *Session) Send() <-chan []byte {
	return s.send
}

func (s *Session) Rooms() []string {
	s.hub.mu.RLock()
	defer s.hub.mu.RUnlock()
	rooms := make([]string, 0, len(s.rooms))
	for room := range s.rooms {
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)
	return rooms
}

// HandleFrame applies one client frame. Only the session's own user room may
// be registered; failures are answered with an error frame on the session.
func (s *Session) HandleFrame(raw []byte) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		s.reply(EventError, map[string]string{"error": "malformed frame"})
		return
	}

	var arg string
	if len(frame.Data) > 0 {
		if err := json.Unmarshal(frame.Data, &arg); err != nil {
			var obj struct {
				ID     string `json:"id"`
				UserID string `json:"userId"`
				TeamID string `json:"teamId"`
			}
			if err := json.Unmarshal(frame.Data, &obj); err != nil {
				s.reply(EventError, map[string]string{"error": "malformed frame data"})
				return
			}
			arg = firstNonEmpty(obj.UserID, obj.TeamID, obj.ID)
		}
	}
	arg = strings.TrimSpace(arg)

	switch frame.Event {
	case ClientRegister:
		if arg == "" || arg != s.UserID {
			s.reply(EventError, map[string]string{"error": "cannot register another user's room"})
			return
		}
		room := UserRoom(arg)
		s.hub.Join(s, room)
		s.reply(EventRegistered, map[string]string{"room": room})
	case ClientJoinTeamBoard:
		if arg == "" {
			s.reply(EventError, map[string]string{"error": "teamId is required"})
			return
		}
		room := TeamBoardRoom(arg)
		s.hub.Join(s, room)
		s.reply(EventJoined, map[string]string{"room": room})
	case ClientLeaveTeamBoard:
		room := TeamBoardRoom(arg)
		s.hub.Leave(s, room)
		s.reply(EventLeft, map[string]string{"room": room})
	default:
		s.reply(EventError, map[string]string{"error": "unsupported event " + frame.Event})
	}
}

func (s *Session) reply(event string, payload any) {
	frame, ok := encodeFrame(event, payload)
	if !ok {
		return
	}
	s.hub.mu.RLock()
	defer s.hub.mu.RUnlock()
	if _, connected := s.hub.sessions[s]; !connected {
		return
	}
	s.hub.deliver(s, event, frame)
}

func encodeFrame(event string, payload any) ([]byte, bool) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Error("realtime_encode_failed", err, map[string]interface{}{"event": event})
		return nil, false
	}
	frame, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		logger.Error("realtime_encode_failed", err, map[string]interface{}{"event": event})
		return nil, false
	}
	return frame, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
