package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWatcher_TriggersReloadOnWrite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "template.yaml")
	require.NoError(t, os.WriteFile(path, []byte("Resources: {}"), 0o600))

	var reloads atomic.Int32
	w, err := New(path, func() error {
		reloads.Add(1)
		return nil
	}, WithDebounceDelay(20*time.Millisecond))
	require.NoError(t, err)

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("Resources: {Fn: {}}"), 0o600))
	waitFor(t, func() bool { return reloads.Load() >= 1 })
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "template.yaml")
	require.NoError(t, os.WriteFile(path, []byte("Resources: {}"), 0o600))

	var reloads atomic.Int32
	w, err := New(path, func() error {
		reloads.Add(1)
		return nil
	}, WithDebounceDelay(20*time.Millisecond))
	require.NoError(t, err)

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o600))
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(0), reloads.Load())
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "template.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o600))

	var reloads atomic.Int32
	w, err := New(path, func() error {
		reloads.Add(1)
		return nil
	}, WithDebounceDelay(100*time.Millisecond))
	require.NoError(t, err)

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte{byte('a' + i)}, 0o600))
		time.Sleep(10 * time.Millisecond)
	}
	waitFor(t, func() bool { return reloads.Load() >= 1 })
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), reloads.Load())

	// A second burst after the first tick must again collapse to one reload.
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte{byte('f' + i)}, 0o600))
		time.Sleep(10 * time.Millisecond)
	}
	waitFor(t, func() bool { return reloads.Load() >= 2 })
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(2), reloads.Load())
}

func TestWatcher_KeepsRunningAfterReloadError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "template.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o600))

	var reloads atomic.Int32
	w, err := New(path, func() error {
		reloads.Add(1)
		return errors.New("bad template")
	}, WithDebounceDelay(20*time.Millisecond))
	require.NoError(t, err)

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("b"), 0o600))
	waitFor(t, func() bool { return reloads.Load() >= 1 })

	require.NoError(t, os.WriteFile(path, []byte("c"), 0o600))
	waitFor(t, func() bool { return reloads.Load() >= 2 })
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "template.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o600))

	w, err := New(path, func() error { return nil })
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	w.Stop()
	w.Stop()
}
