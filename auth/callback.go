package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const shutdownWait = 5 * time.Second

// CallbackServer captures the token the server hands back after the
// GitHub OAuth redirect. It listens on a localhost address, serves the
// single redirect target, and stops as soon as one flow completes.
type CallbackServer struct {
	store  TokenStore
	addr   string
	state  string
	logger *slog.Logger
}

func NewCallbackServer(store TokenStore, addr string, logger *slog.Logger) *CallbackServer {
	return &CallbackServer{
		store:  store,
		addr:   addr,
		state:  uuid.NewString(),
		logger: logger,
	}
}

// RedirectURI is the local address the server should redirect back to.
func (s *CallbackServer) RedirectURI() string {
	return fmt.Sprintf("http://%s/auth/callback", s.addr)
}

// State is the nonce the redirect must echo back.
func (s *CallbackServer) State() string {
	return s.state
}

type callbackResult struct {
	token string
	err   error
}

// Wait serves the callback endpoint until a redirect arrives or ctx is
// cancelled. On success the captured token is persisted and returned.
func (s *CallbackServer) Wait(ctx context.Context) (string, error) {
	results := make(chan callbackResult, 1)

	r := chi.NewRouter()
	r.Get("/auth/callback", func(w http.ResponseWriter, req *http.Request) {
		result := s.capture(req)
		if result.err != nil {
			http.Error(w, result.err.Error(), http.StatusBadRequest)
		} else {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			fmt.Fprintln(w, "Logged in. You can close this window.")
		}
		select {
		case results <- result:
		default:
		}
	})

	server := &http.Server{Addr: s.addr, Handler: r}
	errs := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	var result callbackResult
	select {
	case result = <-results:
	case err := <-errs:
		return "", fmt.Errorf("callback server: %w", err)
	case <-ctx.Done():
		result = callbackResult{err: ctx.Err()}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWait)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.logger.Error(fmt.Sprintf("callback shutdown: %v", err))
	}

	if result.err != nil {
		return "", result.err
	}
	return result.token, nil
}

func (s *CallbackServer) capture(req *http.Request) callbackResult {
	q := req.URL.Query()
	if msg := q.Get("error"); msg != "" {
		return callbackResult{err: fmt.Errorf("oauth: %s", msg)}
	}
	if q.Get("state") != s.state {
		return callbackResult{err: errors.New("oauth: state mismatch")}
	}
	token := q.Get("token")
	if token == "" {
		return callbackResult{err: errors.New("oauth: redirect carried no token")}
	}
	if err := s.store.SetToken(token); err != nil {
		return callbackResult{err: err}
	}
	return callbackResult{token: token}
}
