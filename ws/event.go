package ws

import (
	"encoding/json"
	"fmt"

	"github.com/ilhammramadhan/gabble/models"
)

// EventType identifies a protocol event. The set is closed: a frame whose
// type is not one of these constants fails to decode.
type EventType string

const (
	// Client -> server.
	EventJoinRoom    EventType = "join_room"
	EventLeaveRoom   EventType = "leave_room"
	EventSendMessage EventType = "send_message"

	// Both directions. Outbound it carries TypingPayload, inbound
	// TypingEventPayload.
	EventTyping EventType = "typing"

	// Server -> client.
	EventMessage     EventType = "message"
	EventUserJoined  EventType = "user_joined"
	EventUserLeft    EventType = "user_left"
	EventOnlineUsers EventType = "online_users"
	EventError       EventType = "error"
)

// Valid reports whether t is a member of the protocol's event set.
func (t EventType) Valid() bool {
	switch t {
	case EventJoinRoom, EventLeaveRoom, EventSendMessage, EventTyping,
		EventMessage, EventUserJoined, EventUserLeft, EventOnlineUsers,
		EventError:
		return true
	}
	return false
}

// Event is the wire envelope. One envelope per transport frame. The payload
// is decoded into a kind-specific type by the dispatcher.
type Event struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (e Event) String() string {
	return fmt.Sprintf("Event{Type: %s, Payload.Size: %d}", e.Type, len(e.Payload))
}

// DecodeEvent decodes a single frame into an Event. Malformed JSON and
// unknown event types are reported as errors, never as panics; callers log
// and discard without touching the connection.
func DecodeEvent(data []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if !event.Type.Valid() {
		return nil, fmt.Errorf("decode event: unknown type %q", event.Type)
	}
	return &event, nil
}

// EncodeEvent encodes an Event into a frame.
func EncodeEvent(e *Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return data, nil
}

// NewEvent builds an envelope of the given type around payload.
func NewEvent(t EventType, payload any) (*Event, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return &Event{Type: t, Payload: b}, nil
}

// JoinRoomPayload is carried by join_room and leave_room.
type JoinRoomPayload struct {
	RoomID string `json:"room_id"`
}

// SendMessagePayload is carried by send_message.
type SendMessagePayload struct {
	RoomID  string `json:"room_id"`
	Content string `json:"content"`
}

// TypingPayload is the outbound typing notification.
type TypingPayload struct {
	RoomID   string `json:"room_id"`
	IsTyping bool   `json:"is_typing"`
}

// MessagePayload is carried by an inbound message event.
type MessagePayload struct {
	ID        string      `json:"id"`
	RoomID    string      `json:"room_id"`
	Content   string      `json:"content"`
	User      models.User `json:"user"`
	CreatedAt string      `json:"created_at"`
}

// Message converts the payload into the client-side message model.
func (p MessagePayload) Message() models.Message {
	author := p.User
	return models.Message{
		ID:        p.ID,
		RoomID:    p.RoomID,
		UserID:    p.User.ID,
		Content:   p.Content,
		CreatedAt: p.CreatedAt,
		Author:    &author,
	}
}

// UserEventPayload is carried by user_joined and user_left.
type UserEventPayload struct {
	RoomID string      `json:"room_id"`
	User   models.User `json:"user"`
}

// TypingEventPayload is the inbound typing notification.
type TypingEventPayload struct {
	RoomID   string      `json:"room_id"`
	User     models.User `json:"user"`
	IsTyping bool        `json:"is_typing"`
}

// OnlineUsersPayload is carried by online_users. Users is a full snapshot,
// not a delta.
type OnlineUsersPayload struct {
	RoomID string        `json:"room_id"`
	Users  []models.User `json:"users"`
}

// ErrorPayload is carried by an inbound error event.
type ErrorPayload struct {
	Message string `json:"message"`
}
