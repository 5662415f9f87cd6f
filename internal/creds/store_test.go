package creds

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	return NewFileStore(filepath.Join(t.TempDir(), "tokens.json"))
}

func TestStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)

	saved := &Record{
		AccessToken:     "long-lived-token",
		PageAccessToken: "page-token",
		FacebookPageID:  "page-123",
		InstagramUserID: "ig-456",
		ExpiresIn:       5184000,
		SavedAt:         1700000000,
	}
	require.NoError(t, store.Save(saved))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, saved, loaded)
}

func TestStoreAbsentIsNotAnError(t *testing.T) {
	store := newTestStore(t)

	record, err := store.Load()
	assert.NoError(t, err)
	assert.Nil(t, record)
}

func TestStoreCorruptData(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(store.Path()), 0o700))
	require.NoError(t, os.WriteFile(store.Path(), []byte("{not json"), 0o600))

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrStoreCorrupt)
}

func TestStoreMissingAccessTokenIsCorrupt(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(store.Path()), 0o700))
	require.NoError(t, os.WriteFile(store.Path(), []byte(`{"expires_in": 100}`), 0o600))

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrStoreCorrupt)
}

func TestStoreToleratesUnknownFields(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(store.Path()), 0o700))
	data := `{"access_token":"tok","expires_in":100,"access_token_saved_at":5,"future_field":"x"}`
	require.NoError(t, os.WriteFile(store.Path(), []byte(data), 0o600))

	record, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "tok", record.AccessToken)
	assert.Equal(t, int64(100), record.ExpiresIn)
}

func TestStoreSaveReplacesWholeRecord(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save(&Record{
		AccessToken:     "old",
		PageAccessToken: "old-page-token",
		FacebookPageID:  "page-1",
		ExpiresIn:       100,
		SavedAt:         1,
	}))
	require.NoError(t, store.Save(&Record{
		AccessToken: "new",
		ExpiresIn:   200,
		SavedAt:     2,
	}))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "new", loaded.AccessToken)
	// No partial-field merge: the old page token must be gone.
	assert.Empty(t, loaded.PageAccessToken)
	assert.Empty(t, loaded.FacebookPageID)
}

func TestStoreRefusesEmptyToken(t *testing.T) {
	store := newTestStore(t)
	err := store.Save(&Record{ExpiresIn: 100})
	assert.ErrorIs(t, err, ErrStoreWriteFailed)
}

func TestStoreFilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not meaningful on windows")
	}

	store := newTestStore(t)
	require.NoError(t, store.Save(&Record{AccessToken: "tok", ExpiresIn: 1, SavedAt: 1}))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestStoreNoTempFileLeftBehind(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save(&Record{AccessToken: "tok", ExpiresIn: 1, SavedAt: 1}))

	_, err := os.Stat(store.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestStoreDelete(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save(&Record{AccessToken: "tok", ExpiresIn: 1, SavedAt: 1}))

	require.NoError(t, store.Delete())

	record, err := store.Load()
	assert.NoError(t, err)
	assert.Nil(t, record)

	// Deleting again is fine.
	assert.NoError(t, store.Delete())
}

func TestStoreWritesIndentedJSON(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save(&Record{AccessToken: "tok", ExpiresIn: 1, SavedAt: 1}))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
	assert.Contains(t, string(data), "\n")
}
