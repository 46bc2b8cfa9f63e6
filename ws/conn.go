package ws

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// Conn is a single message-oriented transport connection. The production
// implementation wraps a gorilla websocket; tests substitute an in-memory
// pipe.
type Conn interface {
	// ReadMessage blocks until the next frame arrives. Any error,
	// including a clean close, means the connection is dead.
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer opens connections to the chat server.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebsocketDialer dials with gorilla's websocket client.
type WebsocketDialer struct {
	dialer *websocket.Dialer
}

func NewWebsocketDialer() *WebsocketDialer {
	return &WebsocketDialer{dialer: websocket.DefaultDialer}
}

func (d *WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, _, err := d.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(maxMessageSize)
	return &websocketConn{conn: conn}, nil
}

type websocketConn struct {
	conn *websocket.Conn
}

func (c *websocketConn) ReadMessage() ([]byte, error) {
	for {
		format, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if format != websocket.TextMessage {
			continue
		}
		return data, nil
	}
}

func (c *websocketConn) WriteMessage(data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *websocketConn) Close() error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}
