package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/ilhammramadhan/gabble/models"
)

// DefaultReconnectDelay is how long the manager waits after an unexpected
// close before dialing again.
const DefaultReconnectDelay = 3 * time.Second

// TokenSource yields the current authentication token. The second return
// is false when no token is stored, in which case connecting is a no-op.
type TokenSource interface {
	Token() (string, bool)
}

// ConnManager owns the single transport connection to the chat server: it
// dials, attaches the token, decodes inbound frames, dispatches them by
// type, and redials forever after unexpected closes until Disconnect is
// called. No other component touches the transport.
type ConnManager struct {
	mu     sync.Mutex
	state  ConnState
	conn   Conn
	gen    int
	closed bool

	url    string
	dialer Dialer
	tokens TokenSource
	logger *slog.Logger

	reconnectDelay time.Duration
	reconnectTimer *time.Timer

	online []models.User

	onMessage     func(MessagePayload)
	onUserJoined  func(UserEventPayload)
	onUserLeft    func(UserEventPayload)
	onTyping      func(TypingEventPayload)
	onOnlineUsers func(OnlineUsersPayload)
	onError       func(string)
	onStateChange func(ConnState)
}

type ManagerOption func(*ConnManager)

func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *ConnManager) {
		m.logger = logger
	}
}

func WithDialer(dialer Dialer) ManagerOption {
	return func(m *ConnManager) {
		m.dialer = dialer
	}
}

func WithReconnectDelay(delay time.Duration) ManagerOption {
	return func(m *ConnManager) {
		m.reconnectDelay = delay
	}
}

// NewConnManager creates a manager that dials url (a ws:// or wss://
// endpoint without credentials; the token is attached as a query
// parameter on each dial so reconnects pick up token changes).
func NewConnManager(url string, tokens TokenSource, opts ...ManagerOption) *ConnManager {
	m := &ConnManager{
		url:            url,
		tokens:         tokens,
		dialer:         NewWebsocketDialer(),
		logger:         slog.Default(),
		reconnectDelay: DefaultReconnectDelay,
		state:          Disconnected,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *ConnManager) OnMessage(f func(MessagePayload)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onMessage = f
}

func (m *ConnManager) OnUserJoined(f func(UserEventPayload)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUserJoined = f
}

func (m *ConnManager) OnUserLeft(f func(UserEventPayload)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUserLeft = f
}

func (m *ConnManager) OnTyping(f func(TypingEventPayload)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTyping = f
}

func (m *ConnManager) OnOnlineUsers(f func(OnlineUsersPayload)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onOnlineUsers = f
}

func (m *ConnManager) OnError(f func(string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onError = f
}

func (m *ConnManager) OnStateChange(f func(ConnState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStateChange = f
}

// State returns the current connection state.
func (m *ConnManager) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnlineUsers returns the latest presence snapshot. It is maintained on
// every online_users event whether or not a callback is registered.
func (m *ConnManager) OnlineUsers() []models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := make([]models.User, len(m.online))
	copy(users, m.online)
	return users
}

// Connect opens the connection. It is a no-op when a dial is already in
// flight, when already connected, or when no token is stored.
func (m *ConnManager) Connect() {
	m.mu.Lock()
	if m.state.inProgress() {
		m.mu.Unlock()
		return
	}
	token, ok := m.tokens.Token()
	if !ok {
		m.mu.Unlock()
		m.logger.Debug("connect skipped: no token")
		return
	}
	m.stopReconnectTimerLocked()
	m.closed = false
	notify := m.transitionLocked(Connecting)
	m.mu.Unlock()
	notify()

	go m.dial(token)
}

// Disconnect closes the connection and cancels any pending reconnect. It
// is idempotent and suppresses all future automatic reconnects until the
// next Connect.
func (m *ConnManager) Disconnect() {
	m.mu.Lock()
	m.closed = true
	m.stopReconnectTimerLocked()
	conn := m.conn
	m.conn = nil
	m.gen++
	notify := m.transitionLocked(Disconnected)
	m.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	notify()
}

// Send transmits the event if connected; otherwise it is silently
// dropped. The protocol is fire-and-forget: there is no queue and no
// acknowledgement, so an event that misses the connection is worthless by
// the time the connection is back.
func (m *ConnManager) Send(e *Event) {
	m.mu.Lock()
	if m.state != Connected || m.conn == nil {
		state := m.state
		m.mu.Unlock()
		m.logger.Debug(fmt.Sprintf("dropped while %s: %v", state, e))
		return
	}
	conn := m.conn
	m.mu.Unlock()

	data, err := EncodeEvent(e)
	if err != nil {
		m.logger.Error(err.Error())
		return
	}
	if err := conn.WriteMessage(data); err != nil {
		// The read loop observes the same failure and drives the
		// disconnect/reconnect cycle.
		m.logger.Error(fmt.Sprintf("write: %v", err))
	}
}

// JoinRoom announces membership in a room.
func (m *ConnManager) JoinRoom(roomID string) {
	m.emit(EventJoinRoom, JoinRoomPayload{RoomID: roomID})
}

// LeaveRoom revokes membership in a room.
func (m *ConnManager) LeaveRoom(roomID string) {
	m.emit(EventLeaveRoom, JoinRoomPayload{RoomID: roomID})
}

// SendMessage sends a chat message to a room.
func (m *ConnManager) SendMessage(roomID, content string) {
	m.emit(EventSendMessage, SendMessagePayload{RoomID: roomID, Content: content})
}

// SendTyping reports the local typing state for a room.
func (m *ConnManager) SendTyping(roomID string, isTyping bool) {
	m.emit(EventTyping, TypingPayload{RoomID: roomID, IsTyping: isTyping})
}

func (m *ConnManager) emit(t EventType, payload any) {
	e, err := NewEvent(t, payload)
	if err != nil {
		m.logger.Error(err.Error())
		return
	}
	m.Send(e)
}

func (m *ConnManager) dial(token string) {
	conn, err := m.dialer.Dial(context.Background(), m.dialURL(token))

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		m.logger.Error(fmt.Sprintf("dial: %v", err))
		m.scheduleReconnectLocked()
		notify := m.transitionLocked(Disconnected)
		m.mu.Unlock()
		notify()
		return
	}
	m.conn = conn
	m.gen++
	gen := m.gen
	m.stopReconnectTimerLocked()
	notify := m.transitionLocked(Connected)
	m.mu.Unlock()
	notify()

	go m.readLoop(conn, gen)
}

func (m *ConnManager) dialURL(token string) string {
	u, err := url.Parse(m.url)
	if err != nil {
		return m.url
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

func (m *ConnManager) readLoop(conn Conn, gen int) {
	m.logger.Debug("read loop started")
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			m.logger.Debug(fmt.Sprintf("read loop stopped: %v", err))
			m.handleClose(gen)
			return
		}

		event, err := DecodeEvent(data)
		if err != nil {
			// Malformed frames are logged and discarded; the
			// connection stays up.
			m.logger.Error(err.Error())
			continue
		}
		m.dispatch(event)
	}
}

// handleClose reacts to the transport dying under us. The generation guard
// keeps a stale read loop, racing an explicit Disconnect/Connect pair,
// from scheduling a duplicate reconnect.
func (m *ConnManager) handleClose(gen int) {
	m.mu.Lock()
	if m.closed || gen != m.gen {
		m.mu.Unlock()
		return
	}
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.scheduleReconnectLocked()
	notify := m.transitionLocked(Disconnected)
	m.mu.Unlock()
	notify()
}

func (m *ConnManager) scheduleReconnectLocked() {
	m.stopReconnectTimerLocked()
	m.reconnectTimer = time.AfterFunc(m.reconnectDelay, m.reconnect)
}

func (m *ConnManager) stopReconnectTimerLocked() {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
}

func (m *ConnManager) reconnect() {
	m.mu.Lock()
	if m.closed || m.state != Disconnected {
		m.mu.Unlock()
		return
	}
	token, ok := m.tokens.Token()
	if !ok {
		// Token was cleared while offline; stay down until the next
		// explicit Connect.
		m.reconnectTimer = nil
		m.mu.Unlock()
		m.logger.Debug("reconnect skipped: no token")
		return
	}
	m.reconnectTimer = nil
	notify := m.transitionLocked(Reconnecting)
	m.mu.Unlock()
	notify()

	m.dial(token)
}

// transitionLocked updates the state and returns the notification to run
// once the lock is released, so a callback can call back into the manager.
func (m *ConnManager) transitionLocked(s ConnState) func() {
	if m.state == s {
		return func() {}
	}
	m.state = s
	f := m.onStateChange
	if f == nil {
		return func() {}
	}
	return func() { f(s) }
}

func (m *ConnManager) dispatch(e *Event) {
	switch e.Type {
	case EventMessage:
		var payload MessagePayload
		if !m.unmarshal(e, &payload) {
			return
		}
		if f := m.handlerMessage(); f != nil {
			f(payload)
		}
	case EventUserJoined:
		var payload UserEventPayload
		if !m.unmarshal(e, &payload) {
			return
		}
		if f := m.handlerUserJoined(); f != nil {
			f(payload)
		}
	case EventUserLeft:
		var payload UserEventPayload
		if !m.unmarshal(e, &payload) {
			return
		}
		if f := m.handlerUserLeft(); f != nil {
			f(payload)
		}
	case EventTyping:
		var payload TypingEventPayload
		if !m.unmarshal(e, &payload) {
			return
		}
		if f := m.handlerTyping(); f != nil {
			f(payload)
		}
	case EventOnlineUsers:
		var payload OnlineUsersPayload
		if !m.unmarshal(e, &payload) {
			return
		}
		// The presence snapshot is replaced wholesale even when no
		// callback is registered. The server roster is authoritative.
		m.mu.Lock()
		m.online = payload.Users
		f := m.onOnlineUsers
		m.mu.Unlock()
		if f != nil {
			f(payload)
		}
	case EventError:
		var payload ErrorPayload
		if !m.unmarshal(e, &payload) {
			return
		}
		m.logger.Error(fmt.Sprintf("server error: %s", payload.Message))
		if f := m.handlerError(); f != nil {
			f(payload.Message)
		}
	default:
		// Outbound-only kinds are valid envelopes but have no inbound
		// meaning.
		m.logger.Debug(fmt.Sprintf("ignoring inbound %s", e.Type))
	}
}

func (m *ConnManager) unmarshal(e *Event, v any) bool {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		m.logger.Error(fmt.Sprintf("unmarshal %s payload: %v", e.Type, err))
		return false
	}
	return true
}

func (m *ConnManager) handlerMessage() func(MessagePayload) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.onMessage
}

func (m *ConnManager) handlerUserJoined() func(UserEventPayload) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.onUserJoined
}

func (m *ConnManager) handlerUserLeft() func(UserEventPayload) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.onUserLeft
}

func (m *ConnManager) handlerTyping() func(TypingEventPayload) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.onTyping
}

func (m *ConnManager) handlerError() func(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.onError
}
