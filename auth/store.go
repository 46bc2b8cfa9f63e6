package auth

import (
	"database/sql"
	"errors"
	"fmt"
)

// tokenKey is the single well-known credentials row the client persists.
const tokenKey = "token"

// TokenStore persists the authentication token across runs. The token is
// set on login, and cleared on logout or when the server rejects it.
type TokenStore interface {
	Token() (string, bool)
	SetToken(token string) error
	Clear() error
}

// SQLiteTokenStore keeps the token in a local sqlite file, the client's
// stand-in for browser-local storage.
type SQLiteTokenStore struct {
	db *sql.DB
}

func NewSQLiteTokenStore(db *sql.DB) *SQLiteTokenStore {
	return &SQLiteTokenStore{db: db}
}

func (s *SQLiteTokenStore) Token() (string, bool) {
	var token string
	err := s.db.QueryRow("SELECT value FROM credentials WHERE key = ?", tokenKey).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false
	}
	if err != nil || token == "" {
		return "", false
	}
	return token, true
}

func (s *SQLiteTokenStore) SetToken(token string) error {
	_, err := s.db.Exec(`
	INSERT INTO credentials (key, value) VALUES (?, ?)
	ON CONFLICT (key) DO UPDATE SET value = excluded.value`, tokenKey, token)
	if err != nil {
		return fmt.Errorf("set token: %w", err)
	}
	return nil
}

func (s *SQLiteTokenStore) Clear() error {
	_, err := s.db.Exec("DELETE FROM credentials WHERE key = ?", tokenKey)
	if err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}
