package session

import (
	"sync"

	"github.com/ilhammramadhan/gabble/models"
	"github.com/ilhammramadhan/gabble/ws"
)

// State is the client-side read model for the active room: the ordered
// message sequence and the set of remote users currently typing. All of it
// is scoped to one room at a time and torn down on room switch.
type State struct {
	mu        sync.Mutex
	localUser models.User
	roomID    string
	messages  []models.Message
	seen      map[string]struct{}
	typing    []models.User
}

func NewState(localUser models.User) *State {
	return &State{
		localUser: localUser,
		seen:      make(map[string]struct{}),
	}
}

// ActiveRoom returns the selected room id, or "" when none is selected.
func (s *State) ActiveRoom() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

// setRoom switches the active room and drops all room-scoped state. The
// previous room's messages and typing entries are stale the moment the
// selection changes.
func (s *State) setRoom(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roomID = roomID
	s.messages = nil
	s.seen = make(map[string]struct{})
	s.typing = nil
}

// ApplyMessage folds an inbound message event into the sequence. Events
// for other rooms are discarded, and re-delivery of an already-seen id is
// a no-op. It reports whether the sequence changed.
func (s *State) ApplyMessage(p ws.MessagePayload) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(p.Message())
}

// MergeHistory folds a batch history fetch into the sequence using the
// same append/dedup rule as live events, so history and stream reconcile
// into one gap-free sequence. Messages for other rooms are discarded,
// which covers a history response arriving after a fast room switch.
func (s *State) MergeHistory(messages []models.Message) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	applied := 0
	for _, msg := range messages {
		if s.appendLocked(msg) {
			applied++
		}
	}
	return applied
}

func (s *State) appendLocked(msg models.Message) bool {
	if s.roomID == "" || msg.RoomID != s.roomID {
		return false
	}
	if _, ok := s.seen[msg.ID]; ok {
		return false
	}
	s.seen[msg.ID] = struct{}{}
	s.messages = append(s.messages, msg)
	return true
}

// ApplyTyping adds or removes a typing entry for the active room. Events
// from other rooms and from the local user are ignored: the local user's
// own typing is never part of the remote set. It reports whether the set
// changed.
func (s *State) ApplyTyping(p ws.TypingEventPayload) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roomID == "" || p.RoomID != s.roomID {
		return false
	}
	if p.User.ID == s.localUser.ID {
		return false
	}

	idx := -1
	for i, u := range s.typing {
		if u.ID == p.User.ID {
			idx = i
			break
		}
	}
	if p.IsTyping {
		if idx >= 0 {
			return false
		}
		s.typing = append(s.typing, p.User)
		return true
	}
	if idx < 0 {
		return false
	}
	s.typing = append(s.typing[:idx], s.typing[idx+1:]...)
	return true
}

// Messages returns a copy of the active room's message sequence in
// arrival order.
func (s *State) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	messages := make([]models.Message, len(s.messages))
	copy(messages, s.messages)
	return messages
}

// TypingUsers returns a copy of the remote users currently typing in the
// active room.
func (s *State) TypingUsers() []models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]models.User, len(s.typing))
	copy(users, s.typing)
	return users
}

// LocalUser returns the authenticated user this state excludes from
// typing entries.
func (s *State) LocalUser() models.User {
	return s.localUser
}
