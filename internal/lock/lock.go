// Package lock serializes runs per backup profile through an on-disk lock
// record with stale-holder reclaim.
package lock

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/bgurmendi/backintime/internal/fs"
)

// ErrHeld is returned when another live run holds the profile lock. Callers
// must abort without touching the snapshot chain.
var ErrHeld = errors.New("another run holds the profile lock")

const recordFileName = "lock.yaml"

// Record identifies the lock holder.
type Record struct {
	PID        int       `yaml:"pid"`
	Hostname   string    `yaml:"hostname"`
	AcquiredAt time.Time `yaml:"acquiredAt"`
}

// Liveness probes whether a recorded holder process still exists. The OS
// implementation checks the PID table; a lease or heartbeat probe can be
// substituted in a distributed deployment.
type Liveness interface {
	Alive(pid int) bool
}

// Manager guards one profile's chain directory.
type Manager struct {
	fsys  fs.FS
	probe Liveness
	log   *slog.Logger
	dir   string // profile chain root; the record lives inside it
}

func NewManager(fsys fs.FS, probe Liveness, log *slog.Logger, dir string) *Manager {
	return &Manager{fsys: fsys, probe: probe, log: log, dir: dir}
}

// Lock is a held acquisition. Release removes the record; it is idempotent.
type Lock struct {
	m    *Manager
	path string
}

func (m *Manager) recordPath() string {
	return filepath.Join(m.dir, recordFileName)
}

// Acquire takes the profile lock. Exclusive creation of the record makes
// acquisition atomic: at most one of any set of concurrent callers succeeds.
// A record whose holder is gone is reclaimed with a warning about the
// interrupted prior run.
func (m *Manager) Acquire() (*Lock, error) {
	if err := m.fsys.MkdirAll(m.dir); err != nil {
		return nil, errors.Wrap(err, "creating profile directory")
	}

	for attempt := 0; attempt < 2; attempt++ {
		rec := Record{PID: os.Getpid(), Hostname: hostname(), AcquiredAt: time.Now().UTC()}
		data, err := yaml.Marshal(rec)
		if err != nil {
			return nil, errors.Wrap(err, "encoding lock record")
		}

		err = m.fsys.CreateExclusive(m.recordPath(), data)
		if err == nil {
			return &Lock{m: m, path: m.recordPath()}, nil
		}
		if !os.IsExist(err) {
			return nil, errors.Wrap(err, "writing lock record")
		}

		stale, herr := m.holderGone()
		if herr != nil {
			return nil, herr
		}
		if !stale {
			return nil, ErrHeld
		}

		m.log.Warn("reclaiming stale lock, prior run was interrupted", "path", m.recordPath())
		if err := m.fsys.Remove(m.recordPath()); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrap(err, "removing stale lock record")
		}
	}

	// Lost the reclaim race to another process.
	return nil, ErrHeld
}

// holderGone reports whether the recorded holder no longer exists. Records
// from other hosts cannot be probed and are treated as live. An unreadable
// record means a holder that died mid-write, so it counts as gone.
func (m *Manager) holderGone() (bool, error) {
	data, err := m.fsys.ReadFile(m.recordPath())
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, errors.Wrap(err, "reading lock record")
	}

	var rec Record
	if err := yaml.Unmarshal(data, &rec); err != nil || rec.PID <= 0 {
		m.log.Warn("unreadable lock record, treating holder as gone", "path", m.recordPath())
		return true, nil
	}

	if rec.Hostname != "" && rec.Hostname != hostname() {
		return false, nil
	}

	return !m.probe.Alive(rec.PID), nil
}

// Release removes the lock record.
func (l *Lock) Release() error {
	err := l.m.fsys.Remove(l.path)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing lock record")
	}
	return nil
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return ""
	}
	return h
}
