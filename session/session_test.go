package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilhammramadhan/gabble/models"
)

type membershipRecorder struct {
	mu       sync.Mutex
	commands []string
}

func (r *membershipRecorder) JoinRoom(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, "join:"+roomID)
}

func (r *membershipRecorder) LeaveRoom(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, "leave:"+roomID)
}

func (r *membershipRecorder) Commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	commands := make([]string, len(r.commands))
	copy(commands, r.commands)
	return commands
}

func TestSelect(t *testing.T) {
	t.Parallel()

	t.Run("first selection only joins", func(t *testing.T) {
		conn := &membershipRecorder{}
		sess := New(localUser, conn)

		sess.Select("r1")

		assert.Equal(t, []string{"join:r1"}, conn.Commands())
		assert.Equal(t, "r1", sess.ActiveRoom())
	})

	t.Run("switching leaves the old room before joining the new", func(t *testing.T) {
		conn := &membershipRecorder{}
		sess := New(localUser, conn)

		sess.Select("r1")
		sess.Select("r2")

		assert.Equal(t, []string{"join:r1", "leave:r1", "join:r2"}, conn.Commands())
	})

	t.Run("selecting the active room emits nothing", func(t *testing.T) {
		conn := &membershipRecorder{}
		sess := New(localUser, conn)

		sess.Select("r1")
		sess.Select("r1")

		assert.Equal(t, []string{"join:r1"}, conn.Commands())
	})

	t.Run("clear leaves without joining", func(t *testing.T) {
		conn := &membershipRecorder{}
		sess := New(localUser, conn)

		sess.Select("r1")
		sess.Clear()

		assert.Equal(t, []string{"join:r1", "leave:r1"}, conn.Commands())
		assert.Equal(t, "", sess.ActiveRoom())
	})

	t.Run("clear with no active room is a no-op", func(t *testing.T) {
		conn := &membershipRecorder{}
		sess := New(localUser, conn)

		sess.Clear()
		assert.Empty(t, conn.Commands())
	})

	t.Run("switching clears stale typing entries", func(t *testing.T) {
		conn := &membershipRecorder{}
		sess := New(localUser, conn)

		sess.Select("r1")
		sess.HandleTyping(typingPayload("r1", remoteUser, true))
		sess.HandleTyping(typingPayload("r1", thirdUser, true))
		require.Len(t, sess.TypingUsers(), 2)

		sess.Select("r2")
		assert.Empty(t, sess.TypingUsers())
	})
}

func TestSessionMergeHistory(t *testing.T) {
	t.Parallel()

	t.Run("merges history for the active room", func(t *testing.T) {
		conn := &membershipRecorder{}
		sess := New(localUser, conn)
		sess.Select("r1")

		applied := sess.MergeHistory("r1", []models.Message{
			{ID: "m1", RoomID: "r1", UserID: "u2", Content: "old"},
		})
		assert.Equal(t, 1, applied)
		assert.Len(t, sess.Messages(), 1)
	})

	t.Run("drops a response that arrives after a switch", func(t *testing.T) {
		conn := &membershipRecorder{}
		sess := New(localUser, conn)
		sess.Select("r1")
		sess.Select("r2")

		applied := sess.MergeHistory("r1", []models.Message{
			{ID: "m1", RoomID: "r1", UserID: "u2", Content: "old"},
		})
		assert.Equal(t, 0, applied)
		assert.Empty(t, sess.Messages())
	})
}
