package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/ilhammramadhan/gabble/models"
)

// ErrUnauthorized is returned when the server rejects the token. The
// stored token is cleared before it is returned, so the caller can route
// the user back through login.
var ErrUnauthorized = errors.New("api: unauthorized")

// TokenStore provides the bearer token for requests and absorbs the
// clear-on-auth-failure rule.
type TokenStore interface {
	Token() (string, bool)
	Clear() error
}

// Client calls the server's request/response endpoints. Failures
// propagate to the caller as-is: retry and backoff decisions belong to
// whoever displays the result.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenStore
	logger  *slog.Logger
}

type ClientOption func(*Client)

func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.http = c
	}
}

func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) {
		client.logger = logger
	}
}

func NewClient(baseURL string, tokens TokenStore, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		tokens:  tokens,
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Rooms lists all rooms.
func (c *Client) Rooms(ctx context.Context) ([]models.Room, error) {
	var rooms []models.Room
	if err := c.do(ctx, http.MethodGet, "/api/rooms", nil, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// CreateRoom creates a room and returns it.
func (c *Client) CreateRoom(ctx context.Context, name string) (*models.Room, error) {
	body := struct {
		Name string `json:"name"`
	}{Name: name}
	var room models.Room
	if err := c.do(ctx, http.MethodPost, "/api/rooms", body, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// Room fetches a single room by id.
func (c *Client) Room(ctx context.Context, id string) (*models.Room, error) {
	var room models.Room
	if err := c.do(ctx, http.MethodGet, "/api/rooms/"+url.PathEscape(id), nil, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// DeleteRoom deletes a room.
func (c *Client) DeleteRoom(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/rooms/"+url.PathEscape(id), nil, nil)
}

// RoomMessages fetches the message history of a room.
func (c *Client) RoomMessages(ctx context.Context, roomID string) ([]models.Message, error) {
	var messages []models.Message
	path := "/api/rooms/" + url.PathEscape(roomID) + "/messages"
	if err := c.do(ctx, http.MethodGet, path, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token, ok := c.tokens.Token(); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		// An auth failure from any endpoint invalidates the stored
		// token.
		if err := c.tokens.Clear(); err != nil {
			c.logger.Error(fmt.Sprintf("clear token: %v", err))
		}
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{Status: resp.StatusCode}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Error is a non-2xx response from the server.
type Error struct {
	Status int
}

func (e *Error) Error() string {
	return fmt.Sprintf("api: unexpected status %d", e.Status)
}

// WebsocketURL derives the event stream endpoint from the API base URL.
// The token itself is attached per dial by the connection manager.
func WebsocketURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	return u.String(), nil
}

// GithubAuthURL is the browser entry point of the login flow. The server
// redirects back to redirectURI with token and state query parameters.
func GithubAuthURL(baseURL, redirectURI, state string) string {
	q := url.Values{}
	q.Set("redirect_uri", redirectURI)
	q.Set("state", state)
	return baseURL + "/auth/github?" + q.Encode()
}
