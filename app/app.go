package gabble

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/ilhammramadhan/gabble/api"
	"github.com/ilhammramadhan/gabble/auth"
	"github.com/ilhammramadhan/gabble/models"
	"github.com/ilhammramadhan/gabble/session"
	"github.com/ilhammramadhan/gabble/ws"
)

// ErrNotLoggedIn is returned by operations that need an authenticated
// user before Login has completed.
var ErrNotLoggedIn = errors.New("not logged in")

// App wires the client together: credential store, REST client,
// connection manager, and the per-login session. The view layer talks
// only to App.
type App struct {
	config *Config
	logger *slog.Logger
	db     *sql.DB
	tokens *auth.SQLiteTokenStore
	api    *api.Client
	conn   *ws.ConnManager

	mu      sync.Mutex
	user    *models.User
	session *session.Session
	typing  *session.TypingNotifier

	onMessage func(models.Message)
	onError   func(string)
	onState   func(ws.ConnState)
}

func New(config *Config, logger *slog.Logger) (*App, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	db, err := openDB(config)
	if err != nil {
		return nil, err
	}

	tokens := auth.NewSQLiteTokenStore(db)

	wsURL, err := api.WebsocketURL(config.Server)
	if err != nil {
		db.Close()
		return nil, err
	}

	a := &App{
		config: config,
		logger: logger,
		db:     db,
		tokens: tokens,
		api: api.NewClient(config.Server, tokens,
			api.WithClientLogger(logger.With(slog.String("component", "api")))),
		conn: ws.NewConnManager(wsURL, tokens,
			ws.WithLogger(logger.With(slog.String("component", "ws"))),
			ws.WithReconnectDelay(config.ReconnectDelay)),
	}

	a.conn.OnMessage(func(p ws.MessagePayload) {
		sess, notify := a.currentSession(), a.messageHandler()
		if sess == nil {
			return
		}
		if sess.HandleMessage(p) && notify != nil {
			notify(p.Message())
		}
	})
	a.conn.OnTyping(func(p ws.TypingEventPayload) {
		if sess := a.currentSession(); sess != nil {
			sess.HandleTyping(p)
		}
	})
	a.conn.OnError(func(msg string) {
		if notify := a.errorHandler(); notify != nil {
			notify(msg)
		}
	})
	a.conn.OnStateChange(func(s ws.ConnState) {
		if notify := a.stateHandler(); notify != nil {
			notify(s)
		}
	})

	return a, nil
}

func openDB(config *Config) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", config.SQLite.File)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	goose.SetBaseFS(os.DirFS(config.SQLite.Migrations))
	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return nil, fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.Up(db, "."); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate up: %w", err)
	}
	return db, nil
}

// SetMessageHandler registers a callback for messages appended to the
// active room.
func (a *App) SetMessageHandler(f func(models.Message)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onMessage = f
}

// SetErrorHandler registers a callback for protocol errors the server
// reports.
func (a *App) SetErrorHandler(f func(string)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onError = f
}

// SetStateHandler registers a callback for connection state changes.
func (a *App) SetStateHandler(f func(ws.ConnState)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onState = f
}

// Login authenticates the client. A stored, unexpired token is tried
// first; otherwise the GitHub OAuth flow runs: openBrowser receives the
// URL to visit and Login blocks until the redirect lands on the local
// callback listener or ctx is cancelled.
func (a *App) Login(ctx context.Context, openBrowser func(url string) error) (*models.User, error) {
	if token, ok := a.tokens.Token(); ok {
		if auth.Expired(token, time.Now()) {
			if err := a.tokens.Clear(); err != nil {
				a.logger.Error(fmt.Sprintf("clear token: %v", err))
			}
		} else {
			user, err := a.api.Me(ctx)
			if err == nil {
				a.setUser(user)
				return user, nil
			}
			if !errors.Is(err, api.ErrUnauthorized) {
				return nil, err
			}
			// Token rejected and already cleared; fall through to
			// a fresh OAuth flow.
		}
	}

	callback := auth.NewCallbackServer(a.tokens, a.config.CallbackAddr,
		a.logger.With(slog.String("component", "auth")))
	authURL := api.GithubAuthURL(a.config.Server, callback.RedirectURI(), callback.State())
	if err := openBrowser(authURL); err != nil {
		return nil, fmt.Errorf("open browser: %w", err)
	}
	if _, err := callback.Wait(ctx); err != nil {
		return nil, err
	}

	user, err := a.api.Me(ctx)
	if err != nil {
		return nil, err
	}
	a.setUser(user)
	return user, nil
}

func (a *App) setUser(user *models.User) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.user = user
	a.session = session.New(*user, a.conn)
}

// Logout disconnects and clears the stored token and session.
func (a *App) Logout() error {
	a.conn.Disconnect()
	a.mu.Lock()
	if a.typing != nil {
		a.typing.Stop()
		a.typing = nil
	}
	a.user = nil
	a.session = nil
	a.mu.Unlock()
	return a.tokens.Clear()
}

// Connect opens the event stream. Without a stored token it is a no-op;
// an expired token is cleared instead of dialed with.
func (a *App) Connect() {
	if token, ok := a.tokens.Token(); ok && auth.Expired(token, time.Now()) {
		a.logger.Debug("connect skipped: token expired")
		if err := a.tokens.Clear(); err != nil {
			a.logger.Error(fmt.Sprintf("clear token: %v", err))
		}
		return
	}
	a.conn.Connect()
}

// Disconnect closes the event stream and stops reconnecting.
func (a *App) Disconnect() {
	a.conn.Disconnect()
}

// Rooms lists the rooms on the server.
func (a *App) Rooms(ctx context.Context) ([]models.Room, error) {
	return a.api.Rooms(ctx)
}

// CreateRoom creates a room and returns it; selection is left to the
// caller.
func (a *App) CreateRoom(ctx context.Context, name string) (*models.Room, error) {
	return a.api.CreateRoom(ctx, name)
}

// SelectRoom makes roomID the active room, loads its history into the
// read model, and rebinds the typing notifier. A history fetch failure
// propagates after the membership switch already happened; the caller
// decides whether to retry.
func (a *App) SelectRoom(ctx context.Context, roomID string) error {
	a.mu.Lock()
	if a.session == nil {
		a.mu.Unlock()
		return ErrNotLoggedIn
	}
	sess := a.session
	if a.typing != nil {
		a.typing.Stop()
	}
	a.typing = session.NewTypingNotifier(a.conn, roomID, a.config.TypingIdle)
	a.mu.Unlock()

	sess.Select(roomID)

	messages, err := a.api.RoomMessages(ctx, roomID)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	sess.MergeHistory(roomID, messages)
	return nil
}

// LeaveRoom deselects the active room.
func (a *App) LeaveRoom() {
	a.mu.Lock()
	sess := a.session
	if a.typing != nil {
		a.typing.Stop()
		a.typing = nil
	}
	a.mu.Unlock()
	if sess != nil {
		sess.Clear()
	}
}

// SendMessage sends content to the active room and finishes the current
// typing burst.
func (a *App) SendMessage(content string) {
	a.mu.Lock()
	sess, typing := a.session, a.typing
	a.mu.Unlock()
	if sess == nil {
		return
	}
	roomID := sess.ActiveRoom()
	if roomID == "" {
		return
	}
	a.conn.SendMessage(roomID, content)
	if typing != nil {
		typing.Submit()
	}
}

// Keystroke records input activity for the typing indicator.
func (a *App) Keystroke() {
	a.mu.Lock()
	typing := a.typing
	a.mu.Unlock()
	if typing != nil {
		typing.Keystroke()
	}
}

// ActiveRoom returns the selected room id, or "" when none is selected.
func (a *App) ActiveRoom() string {
	if sess := a.currentSession(); sess != nil {
		return sess.ActiveRoom()
	}
	return ""
}

// Messages returns the active room's message sequence.
func (a *App) Messages() []models.Message {
	if sess := a.currentSession(); sess != nil {
		return sess.Messages()
	}
	return nil
}

// TypingUsers returns the remote users typing in the active room.
func (a *App) TypingUsers() []models.User {
	if sess := a.currentSession(); sess != nil {
		return sess.TypingUsers()
	}
	return nil
}

// OnlineUsers returns the latest presence snapshot.
func (a *App) OnlineUsers() []models.User {
	return a.conn.OnlineUsers()
}

// ConnState returns the connection state.
func (a *App) ConnState() ws.ConnState {
	return a.conn.State()
}

// User returns the authenticated user, if any.
func (a *App) User() *models.User {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.user
}

// Close releases everything the app holds.
func (a *App) Close() error {
	a.mu.Lock()
	if a.typing != nil {
		a.typing.Stop()
		a.typing = nil
	}
	a.mu.Unlock()
	a.conn.Disconnect()
	return a.db.Close()
}

func (a *App) currentSession() *session.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

func (a *App) messageHandler() func(models.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.onMessage
}

func (a *App) errorHandler() func(string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.onError
}

func (a *App) stateHandler() func(ws.ConnState) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.onState
}
