package session

import (
	"sync"

	"github.com/ilhammramadhan/gabble/models"
	"github.com/ilhammramadhan/gabble/ws"
)

// Membership emits the room membership commands tied to room selection.
// *ws.ConnManager satisfies it.
type Membership interface {
	JoinRoom(roomID string)
	LeaveRoom(roomID string)
}

// Session binds the selected room to membership commands and owns the
// room-scoped read model. At most one room is active at a time.
type Session struct {
	mu    sync.Mutex
	state *State
	conn  Membership
}

func New(localUser models.User, conn Membership) *Session {
	return &Session{
		state: NewState(localUser),
		conn:  conn,
	}
}

// Select switches the active room: it leaves the previous room, drops the
// room-scoped state, and joins the new one. Selecting the already-active
// room is a no-op. Message history is fetched by the caller and fed back
// through MergeHistory.
func (s *Session) Select(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.state.ActiveRoom()
	if current == roomID {
		return
	}
	if current != "" {
		s.conn.LeaveRoom(current)
	}
	s.state.setRoom(roomID)
	if roomID != "" {
		s.conn.JoinRoom(roomID)
	}
}

// Clear deselects the active room, leaving it if one was selected.
func (s *Session) Clear() {
	s.Select("")
}

// ActiveRoom returns the selected room id, or "" when none is selected.
func (s *Session) ActiveRoom() string {
	return s.state.ActiveRoom()
}

// HandleMessage feeds an inbound message event into the read model.
// Registered as the connection manager's message callback.
func (s *Session) HandleMessage(p ws.MessagePayload) bool {
	return s.state.ApplyMessage(p)
}

// HandleTyping feeds an inbound typing event into the read model.
// Registered as the connection manager's typing callback.
func (s *Session) HandleTyping(p ws.TypingEventPayload) bool {
	return s.state.ApplyTyping(p)
}

// MergeHistory reconciles a history fetch for roomID into the read model.
// Responses for a room that is no longer active are dropped.
func (s *Session) MergeHistory(roomID string, messages []models.Message) int {
	if s.state.ActiveRoom() != roomID {
		return 0
	}
	return s.state.MergeHistory(messages)
}

// Messages returns the active room's message sequence in arrival order.
func (s *Session) Messages() []models.Message {
	return s.state.Messages()
}

// TypingUsers returns the remote users typing in the active room.
func (s *Session) TypingUsers() []models.User {
	return s.state.TypingUsers()
}
