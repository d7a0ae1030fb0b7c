package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"blister-inspector/internal/domain/port"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestFolderSource_RotatesSortedImages(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.png", "b")
	writeFile(t, dir, "a.jpg", "a")
	writeFile(t, dir, "c.JPEG", "c")
	writeFile(t, dir, "notes.txt", "skip")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.jpg"), 0o755))

	src, err := NewFolderSource(dir, nil)
	require.NoError(t, err)
	require.Equal(t, 3, src.Len())

	ctx := context.Background()
	var got []string
	for i := 0; i < 4; i++ {
		data, err := src.CaptureFrame(ctx)
		require.NoError(t, err)
		got = append(got, string(data))
	}
	require.Equal(t, []string{"a", "b", "c", "a"}, got)
	require.NoError(t, src.Release())
}

func TestFolderSource_Empty(t *testing.T) {
	src, err := NewFolderSource(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = src.CaptureFrame(context.Background())
	require.ErrorIs(t, err, port.ErrNoFrame)
}

func TestFolderSource_MissingDir(t *testing.T) {
	_, err := NewFolderSource(filepath.Join(t.TempDir(), "missing"), nil)
	require.Error(t, err)
}

func TestFolderSource_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.jpg", "a")
	src, err := NewFolderSource(dir, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.CaptureFrame(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
