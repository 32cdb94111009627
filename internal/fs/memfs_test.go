package fs

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemFS_CreateExclusive(t *testing.T) {
	m := NewMem()
	require.NoError(t, m.MkdirAll("/d"))

	require.NoError(t, m.CreateExclusive("/d/marker", nil))

	err := m.CreateExclusive("/d/marker", nil)
	assert.True(t, os.IsExist(err), "second exclusive create must fail with ErrExist")
}

func TestMemFS_LinkSharesInode(t *testing.T) {
	m := NewMem()
	require.NoError(t, m.MkdirAll("/d"))
	require.NoError(t, m.WriteFile("/d/a", []byte("content"), 0o644))

	require.NoError(t, m.Link("/d/a", "/d/b"))

	a, err := m.Stat("/d/a")
	require.NoError(t, err)
	b, err := m.Stat("/d/b")
	require.NoError(t, err)

	assert.NotZero(t, a.Inode)
	assert.Equal(t, a.Inode, b.Inode, "hard link must share the inode")

	data, err := m.ReadFile("/d/b")
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))
}

func TestMemFS_RenameMovesSubtree(t *testing.T) {
	m := NewMem()
	require.NoError(t, m.MkdirAll("/src/sub"))
	require.NoError(t, m.WriteFile("/src/sub/f", []byte("x"), 0o644))

	require.NoError(t, m.Rename(context.Background(), "/src", "/dst"))

	_, err := m.Stat("/src/sub/f")
	assert.True(t, os.IsNotExist(err))
	_, err = m.Stat("/dst/sub/f")
	assert.NoError(t, err)
}

func TestMemFS_ReadDir(t *testing.T) {
	m := NewMem()
	require.NoError(t, m.MkdirAll("/root/a"))
	require.NoError(t, m.WriteFile("/root/b", nil, 0o644))
	require.NoError(t, m.WriteFile("/root/a/nested", nil, 0o644))

	entries, err := m.ReadDir("/root")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Name)
	assert.True(t, entries[0].IsDir)
	assert.Equal(t, "b", entries[1].Name)
	assert.False(t, entries[1].IsDir)
}

func TestMemFS_WriteFileRequiresParent(t *testing.T) {
	m := NewMem()
	err := m.WriteFile("/missing/f", nil, 0o644)
	assert.True(t, os.IsNotExist(err))
}

func TestOSFS_CreateExclusive(t *testing.T) {
	o := New()
	path := t.TempDir() + "/marker"

	require.NoError(t, o.CreateExclusive(path, []byte("x")))
	err := o.CreateExclusive(path, nil)
	assert.True(t, os.IsExist(err))
}

func TestOSFS_FreeSpace(t *testing.T) {
	o := New()
	free, err := o.FreeSpace(t.TempDir())
	require.NoError(t, err)
	assert.Positive(t, free)
}
