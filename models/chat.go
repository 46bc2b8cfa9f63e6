package models

// Room represents a chat room. MemberCount is only populated on room listings.
type Room struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	CreatedBy   string `json:"created_by"`
	CreatedAt   string `json:"created_at"`
	MemberCount int    `json:"member_count,omitempty"`
}

// Message represents a chat message in a room. The ID is assigned by the
// server and is globally unique. CreatedAt is author-supplied and must not
// be used for ordering; arrival order within a room is authoritative.
type Message struct {
	ID        string `json:"id"`
	RoomID    string `json:"room_id"`
	UserID    string `json:"user_id"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
	Author    *User  `json:"user,omitempty"`
}
