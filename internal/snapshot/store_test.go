package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bgurmendi/backintime/internal/fs"
)

func newStoreDir(t *testing.T) (*Store, *fs.MemFS, string) {
	t.Helper()
	fsys := fs.NewMem()
	dir := "/backups/home/20260102-030405"
	require.NoError(t, fsys.MkdirAll(dir))
	return NewStore(fsys), fsys, dir
}

func TestStore_InfoRoundTrip(t *testing.T) {
	store, fsys, dir := newStoreDir(t)

	want := Info{
		Started:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Sources:  []string{"/home/alice", "/etc"},
		Excludes: []string{"*.cache"},
	}
	require.NoError(t, store.WriteInfo(context.Background(), dir, want))

	got, err := store.ReadInfo(dir)
	require.NoError(t, err)
	assert.True(t, got.Started.Equal(want.Started))
	assert.Equal(t, want.Sources, got.Sources)
	assert.Equal(t, want.Excludes, got.Excludes)
	assert.True(t, got.Ended.IsZero())

	// the write goes through a temp file and rename; no temp may remain
	entries, err := fsys.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "info.yaml", entries[0].Name)
}

func TestStore_ReadInfo_Corrupt(t *testing.T) {
	store, fsys, dir := newStoreDir(t)

	require.NoError(t, fsys.WriteFile(dir+"/info.yaml", []byte("\tnot: [yaml"), 0o644))

	_, err := store.ReadInfo(dir)
	var corrupt *CorruptError
	require.True(t, errors.As(err, &corrupt), "undecodable metadata must surface as CorruptError")
	assert.Contains(t, corrupt.Error(), dir)
}

func TestStore_MarkComplete(t *testing.T) {
	store, _, dir := newStoreDir(t)

	complete, err := store.IsComplete(dir)
	require.NoError(t, err)
	assert.False(t, complete)

	require.NoError(t, store.MarkComplete(dir))

	complete, err = store.IsComplete(dir)
	require.NoError(t, err)
	assert.True(t, complete)

	// marking again is a no-op, not an error
	require.NoError(t, store.MarkComplete(dir))
}

func TestStore_WriteLog(t *testing.T) {
	store, fsys, dir := newStoreDir(t)

	require.NoError(t, store.WriteLog(dir, []byte("sent 42 bytes\n")))

	data, err := fsys.ReadFile(store.LogPath(dir))
	require.NoError(t, err)
	assert.Equal(t, "sent 42 bytes\n", string(data))
}
