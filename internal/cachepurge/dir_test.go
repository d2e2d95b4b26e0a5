package cachepurge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirStorage_NamesAndDelete(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	for _, d := range []string{"workbox-precache", "images", "api-cache"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, d, "entries"), 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "README"), []byte("x"), 0o644))

	s := DirStorage{Root: root}
	names, err := s.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"api-cache", "images", "workbox-precache"}, names)

	require.NoError(t, s.Delete(ctx, "api-cache"))
	names, err = s.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"images", "workbox-precache"}, names)

	require.NoError(t, s.Delete(ctx, "missing"), "deleting an absent cache is fine")
}

func TestDirStorage_RejectsEscapingNames(t *testing.T) {
	s := DirStorage{Root: t.TempDir()}
	for _, name := range []string{"", ".", "..", "../etc", "a/b"} {
		assert.Error(t, s.Delete(context.Background(), name), name)
	}
}

func TestDirStorage_MissingRoot(t *testing.T) {
	names, err := DirStorage{Root: filepath.Join(t.TempDir(), "nope")}.Names(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestDirStorage_Unsupported(t *testing.T) {
	_, err := DirStorage{}.Names(context.Background())
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.ErrorIs(t, DirStorage{}.Delete(context.Background(), "x"), ErrUnsupported)
}
