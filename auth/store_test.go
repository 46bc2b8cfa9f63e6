package auth

import (
	"database/sql"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteTokenStore {
	t.Helper()

	db, err := sql.Open("sqlite3", "file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Exec("DELETE FROM credentials")
		db.Close()
	})

	goose.SetBaseFS(os.DirFS("../migrations"))
	require.NoError(t, goose.SetDialect("sqlite3"))
	require.NoError(t, goose.Up(db, "."))

	return NewSQLiteTokenStore(db)
}

func TestTokenStore(t *testing.T) {
	t.Run("empty store has no token", func(t *testing.T) {
		store := newTestStore(t)

		_, ok := store.Token()
		assert.False(t, ok)
	})

	t.Run("set then get", func(t *testing.T) {
		store := newTestStore(t)

		require.NoError(t, store.SetToken("tok-1"))
		token, ok := store.Token()
		assert.True(t, ok)
		assert.Equal(t, "tok-1", token)
	})

	t.Run("set overwrites the stored token", func(t *testing.T) {
		store := newTestStore(t)

		require.NoError(t, store.SetToken("tok-1"))
		require.NoError(t, store.SetToken("tok-2"))

		token, ok := store.Token()
		assert.True(t, ok)
		assert.Equal(t, "tok-2", token)
	})

	t.Run("clear removes the token", func(t *testing.T) {
		store := newTestStore(t)

		require.NoError(t, store.SetToken("tok-1"))
		require.NoError(t, store.Clear())

		_, ok := store.Token()
		assert.False(t, ok)
	})

	t.Run("clear on an empty store is fine", func(t *testing.T) {
		store := newTestStore(t)
		assert.NoError(t, store.Clear())
	})
}
