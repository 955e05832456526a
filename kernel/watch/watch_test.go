package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcherObservesWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plugin.wasm")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	w, err := New(path, nil)
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))

	select {
	case ev := <-w.Events():
		require.Equal(t, path, ev.Path)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for write event")
	}
}

func TestWatcherDetectsRenameInto(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plugin.wasm")
	other := filepath.Join(dir, "plugin.wasm.new")
	require.NoError(t, os.WriteFile(other, []byte("v2"), 0o644))

	w, err := New(path, nil)
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, os.Rename(other, path))

	select {
	case ev := <-w.Events():
		require.Equal(t, RenamedTo, ev.Kind)
		require.Equal(t, path, ev.Path)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for rename-into event")
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plugin.wasm")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	w, err := New(path, nil)
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644))

	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event for unrelated file: %+v", ev)
	case <-time.After(300 * time.Millisecond):
	}
}
