package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/maneesh/filesmanager/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore(t *testing.T) {
	root := filepath.Join(t.TempDir(), "files")
	ls, err := NewLocalStore(root)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = ls.Get(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, ls.Put(ctx, "abc", []byte("data")))
	require.NoError(t, ls.Put(ctx, "abc", []byte("data2")))

	got, err := ls.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("data2"), got)

	ok, err := ls.Exists(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ls.Exists(ctx, "abc_100")
	require.NoError(t, err)
	assert.False(t, ok)

	entries, err := filepath.Glob(filepath.Join(root, ".upload-*"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLocalStore_RejectsTraversal(t *testing.T) {
	ls, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "..", "../etc", "a/b"} {
		err := ls.Put(context.Background(), key, []byte("x"))
		assert.ErrorIs(t, err, common.ErrValidation, key)
	}
}
