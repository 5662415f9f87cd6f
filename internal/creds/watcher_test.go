package creds

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreWatcherFiresOnSave(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "tokens.json"))

	var fired int64
	watcher := NewStoreWatcher(store.Path(), func() {
		atomic.AddInt64(&fired, 1)
	})
	watcher.debounceInterval = 20 * time.Millisecond

	require.NoError(t, watcher.Start())
	defer watcher.Stop()

	require.NoError(t, store.Save(&Record{AccessToken: "tok", ExpiresIn: 1, SavedAt: 1}))

	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&fired) >= 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStoreWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()

	var fired int64
	watcher := NewStoreWatcher(filepath.Join(dir, "tokens.json"), func() {
		atomic.AddInt64(&fired, 1)
	})
	watcher.debounceInterval = 20 * time.Millisecond

	require.NoError(t, watcher.Start())
	defer watcher.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x"), 0o600))

	time.Sleep(200 * time.Millisecond)
	assert.EqualValues(t, 0, atomic.LoadInt64(&fired))
}

func TestStoreWatcherStartIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	watcher := NewStoreWatcher(filepath.Join(dir, "tokens.json"), func() {})

	require.NoError(t, watcher.Start())
	require.NoError(t, watcher.Start())
	watcher.Stop()
	watcher.Stop()
}
