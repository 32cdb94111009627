package lock

import (
	"os"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/bgurmendi/backintime/internal/fs"
	"github.com/bgurmendi/backintime/internal/logging"
)

// fakeLiveness reports a fixed set of PIDs as alive.
type fakeLiveness map[int]bool

func (f fakeLiveness) Alive(pid int) bool { return f[pid] }

func newManager(t *testing.T, fsys fs.FS, probe Liveness) *Manager {
	t.Helper()
	return NewManager(fsys, probe, logging.ForTest(t), "/dest/home")
}

func TestAcquire_Exclusive(t *testing.T) {
	fsys := fs.NewMem()
	probe := fakeLiveness{os.Getpid(): true}

	m1 := newManager(t, fsys, probe)
	lk, err := m1.Acquire()
	require.NoError(t, err)

	m2 := newManager(t, fsys, probe)
	_, err = m2.Acquire()
	assert.True(t, errors.Is(err, ErrHeld))

	require.NoError(t, lk.Release())

	_, err = m2.Acquire()
	assert.NoError(t, err, "lock must be acquirable after release")
}

func TestAcquire_ReclaimsStaleLock(t *testing.T) {
	fsys := fs.NewMem()
	require.NoError(t, fsys.MkdirAll("/dest/home"))

	host, err := os.Hostname()
	require.NoError(t, err)
	rec := Record{PID: 4242, Hostname: host, AcquiredAt: time.Now().UTC()}
	data, err := yaml.Marshal(rec)
	require.NoError(t, err)
	require.NoError(t, fsys.CreateExclusive("/dest/home/lock.yaml", data))

	// holder 4242 is dead
	m := newManager(t, fsys, fakeLiveness{})
	lk, err := m.Acquire()
	require.NoError(t, err, "dead holder must be reclaimed")
	require.NoError(t, lk.Release())
}

func TestAcquire_RespectsLiveHolder(t *testing.T) {
	fsys := fs.NewMem()
	require.NoError(t, fsys.MkdirAll("/dest/home"))

	host, _ := os.Hostname()
	rec := Record{PID: 4242, Hostname: host, AcquiredAt: time.Now().UTC()}
	data, _ := yaml.Marshal(rec)
	require.NoError(t, fsys.CreateExclusive("/dest/home/lock.yaml", data))

	m := newManager(t, fsys, fakeLiveness{4242: true})
	_, err := m.Acquire()
	assert.True(t, errors.Is(err, ErrHeld))
}

func TestAcquire_ForeignHostIsLive(t *testing.T) {
	fsys := fs.NewMem()
	require.NoError(t, fsys.MkdirAll("/dest/home"))

	rec := Record{PID: 4242, Hostname: "some-other-box", AcquiredAt: time.Now().UTC()}
	data, _ := yaml.Marshal(rec)
	require.NoError(t, fsys.CreateExclusive("/dest/home/lock.yaml", data))

	// PID table says dead, but the record is from another host: cannot probe,
	// must stay conservative.
	m := newManager(t, fsys, fakeLiveness{})
	_, err := m.Acquire()
	assert.True(t, errors.Is(err, ErrHeld))
}

func TestAcquire_UnreadableRecordReclaimed(t *testing.T) {
	fsys := fs.NewMem()
	require.NoError(t, fsys.MkdirAll("/dest/home"))
	require.NoError(t, fsys.CreateExclusive("/dest/home/lock.yaml", []byte("\tgarbage: [")))

	m := newManager(t, fsys, fakeLiveness{})
	lk, err := m.Acquire()
	require.NoError(t, err, "a record the holder died writing must not wedge the profile")
	require.NoError(t, lk.Release())
}

func TestRelease_Idempotent(t *testing.T) {
	fsys := fs.NewMem()
	m := newManager(t, fsys, fakeLiveness{os.Getpid(): true})

	lk, err := m.Acquire()
	require.NoError(t, err)
	require.NoError(t, lk.Release())
	require.NoError(t, lk.Release())
}

func TestOSLiveness_SelfIsAlive(t *testing.T) {
	assert.True(t, OSLiveness{}.Alive(os.Getpid()))
	assert.False(t, OSLiveness{}.Alive(-1))
}
