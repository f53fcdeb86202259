package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRequiresBaseDir(t *testing.T) {
	_, err := New(Config{BaseDir: "  "})
	require.Error(t, err)
}

func TestNewCreatesMissingBaseDir(t *testing.T) {
	base := filepath.Join(t.TempDir(), "nested", "screenshots")
	store, err := New(Config{BaseDir: base})
	require.NoError(t, err)
	require.Equal(t, base, store.BaseDir())

	info, err := os.Stat(base)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestPutReadRemove(t *testing.T) {
	store, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)
	ctx := context.Background()

	payload := []byte{0xff, 0xd8, 0xff, 0xe0}
	stored, err := store.PutObject(ctx, "campaign-abc/screenshot_1920.jpeg", "image/jpeg", payload)
	require.NoError(t, err)
	require.Equal(t, "campaign-abc/screenshot_1920.jpeg", stored)

	got, err := store.ReadObject(ctx, stored)
	require.NoError(t, err)
	require.Equal(t, payload, got)

	require.NoError(t, store.RemoveAll(ctx, "campaign-abc"))
	_, err = store.ReadObject(ctx, stored)
	require.Error(t, err)

	// Removing an already-removed prefix stays clean.
	require.NoError(t, store.RemoveAll(ctx, "campaign-abc"))
}

func TestPathTraversalRejected(t *testing.T) {
	store, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.PutObject(ctx, "../outside.jpeg", "image/jpeg", []byte("x"))
	require.Error(t, err)

	_, err = store.ReadObject(ctx, "../../etc/passwd")
	require.Error(t, err)

	require.Error(t, store.RemoveAll(ctx, ".."))
}

func TestPutRejectsEmptyPath(t *testing.T) {
	store, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), " ", "image/jpeg", []byte("x"))
	require.Error(t, err)
}
