package settings

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tickertronix/Tickertronix-Open/internal/database"
)

func setupTestRepo(t *testing.T) *Repository {
	t.Helper()

	db, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), "hub.db"),
		Name: "test",
	}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() { db.Close() })

	return NewRepository(db.Conn(), zerolog.Nop())
}

func TestGetMissingKeyReturnsNil(t *testing.T) {
	repo := setupTestRepo(t)

	value, err := repo.Get("nope")
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestSetAndGet(t *testing.T) {
	repo := setupTestRepo(t)

	require.NoError(t, repo.Set(KeyAlpacaAPIKey, "AK123"))

	value, err := repo.Get(KeyAlpacaAPIKey)
	require.NoError(t, err)
	require.NotNil(t, value)
	assert.Equal(t, "AK123", *value)

	// Overwrite
	require.NoError(t, repo.Set(KeyAlpacaAPIKey, "AK456"))
	value, err = repo.Get(KeyAlpacaAPIKey)
	require.NoError(t, err)
	assert.Equal(t, "AK456", *value)
}

func TestGetAll(t *testing.T) {
	repo := setupTestRepo(t)

	require.NoError(t, repo.Set("a", "1"))
	require.NoError(t, repo.Set("b", "2"))

	all, err := repo.GetAll()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, all)
}

func TestTypedGetters(t *testing.T) {
	repo := setupTestRepo(t)

	require.NoError(t, repo.Set("count", "42"))
	require.NoError(t, repo.Set("flag", "true"))
	require.NoError(t, repo.Set("junk", "not-a-number"))

	n, err := repo.GetInt("count", 0)
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	n, err = repo.GetInt("junk", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	n, err = repo.GetInt("missing", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	b, err := repo.GetBool("flag", false)
	require.NoError(t, err)
	assert.True(t, b)

	b, err = repo.GetBool("missing", true)
	require.NoError(t, err)
	assert.True(t, b)
}

func TestDelete(t *testing.T) {
	repo := setupTestRepo(t)

	require.NoError(t, repo.Set("k", "v"))
	require.NoError(t, repo.Delete("k"))

	value, err := repo.Get("k")
	require.NoError(t, err)
	assert.Nil(t, value)
}
