package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

// exerciseStorage runs the behaviour every Storage must share
func exerciseStorage(t *testing.T, s Storage) {
	t.Helper()

	_, err := s.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set("k", "v1"))
	value, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v1", value)

	require.NoError(t, s.Set("k", "v2"))
	value, err = s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v2", value)

	require.NoError(t, s.Delete("k"))
	_, err = s.Get("k")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Delete("k"), "deleting a missing key is not an error")
}

func TestMemoryStorage(t *testing.T) {
	exerciseStorage(t, NewMemoryStorage())
}

func TestKeyringStorage(t *testing.T) {
	keyring.MockInit()
	exerciseStorage(t, NewKeyringStorage())
}

func TestFileStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", credentialsFileName)
	exerciseStorage(t, NewFileStorage(path))
}

func TestFileStorage_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), credentialsFileName)

	first := NewTokenStore(NewFileStorage(path), "srv")
	require.NoError(t, first.WriteAccess("abc", "a@b.com"))
	require.NoError(t, first.WriteRefresh("r1"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	second := NewTokenStore(NewFileStorage(path), "srv")
	token, err := second.ReadAccess()
	require.NoError(t, err)
	require.NotNil(t, token)
	assert.Equal(t, "abc", token.Token)

	refresh, err := second.ReadRefresh()
	require.NoError(t, err)
	assert.Equal(t, "r1", refresh)
}

func TestFileStorage_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), credentialsFileName)
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0600))

	_, err := NewFileStorage(path).Get("k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse credentials file")
}

func TestOpenStorage(t *testing.T) {
	s, err := OpenStorage("memory")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStorage{}, s)

	s, err = OpenStorage("keyring")
	require.NoError(t, err)
	assert.IsType(t, &KeyringStorage{}, s)

	_, err = OpenStorage("vault")
	assert.Error(t, err)
}
