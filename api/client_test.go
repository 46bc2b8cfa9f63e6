package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilhammramadhan/gabble/models"
)

type fakeTokens struct {
	mu    sync.Mutex
	token string
}

func (s *fakeTokens) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.token != ""
}

func (s *fakeTokens) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}

func TestRooms(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/rooms", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode([]models.Room{
			{ID: "r1", Name: "general", MemberCount: 3},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, &fakeTokens{token: "tok-1"})
	rooms, err := client.Rooms(context.Background())
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "general", rooms[0].Name)
}

func TestCreateRoom(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/rooms", r.URL.Path)

		var body struct {
			Name string `json:"name"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "random", body.Name)

		json.NewEncoder(w).Encode(models.Room{ID: "r2", Name: body.Name})
	}))
	defer server.Close()

	client := NewClient(server.URL, &fakeTokens{token: "tok-1"})
	room, err := client.CreateRoom(context.Background(), "random")
	require.NoError(t, err)
	assert.Equal(t, "r2", room.ID)
}

func TestRoomMessages(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/rooms/r1/messages", r.URL.Path)
		json.NewEncoder(w).Encode([]models.Message{
			{ID: "m1", RoomID: "r1", UserID: "u2", Content: "hi"},
			{ID: "m2", RoomID: "r1", UserID: "u3", Content: "hello"},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, &fakeTokens{token: "tok-1"})
	messages, err := client.RoomMessages(context.Background(), "r1")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "m1", messages[0].ID)
}

func TestUnauthorizedClearsToken(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	tokens := &fakeTokens{token: "stale"}
	client := NewClient(server.URL, tokens)

	_, err := client.Me(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, ok := tokens.Token()
	assert.False(t, ok, "token should be cleared after an auth failure")
}

func TestServerErrorStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	tokens := &fakeTokens{token: "tok-1"}
	client := NewClient(server.URL, tokens)

	_, err := client.Rooms(context.Background())
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)

	_, ok := tokens.Token()
	assert.True(t, ok, "non-auth failures must not touch the token")
}

func TestWebsocketURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		base string
		want string
	}{
		{"http://localhost:8080", "ws://localhost:8080/ws"},
		{"https://chat.example.com", "wss://chat.example.com/ws"},
	}
	for _, tt := range tests {
		got, err := WebsocketURL(tt.base)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestGithubAuthURL(t *testing.T) {
	t.Parallel()

	got := GithubAuthURL("http://localhost:8080", "http://127.0.0.1:8910/auth/callback", "nonce")
	assert.Contains(t, got, "http://localhost:8080/auth/github?")
	assert.Contains(t, got, "redirect_uri=http%3A%2F%2F127.0.0.1%3A8910%2Fauth%2Fcallback")
	assert.Contains(t, got, "state=nonce")
}
