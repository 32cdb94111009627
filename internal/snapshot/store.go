package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/bgurmendi/backintime/internal/fs"
)

// On-disk layout of one snapshot directory. The names are part of the
// compatibility contract and must not change.
const (
	filesDirName   = "files"
	infoFileName   = "info.yaml"
	markerFileName = "complete"
	logFileName    = "transfer.log"
)

// Info is the persisted per-snapshot metadata.
type Info struct {
	Started  time.Time `yaml:"started"`
	Ended    time.Time `yaml:"ended,omitempty"`
	Sources  []string  `yaml:"sources"`
	Excludes []string  `yaml:"excludes,omitempty"`
	Version  string    `yaml:"version,omitempty"`
}

// CorruptError marks a snapshot whose metadata exists but cannot be decoded.
// Such snapshots are excluded from latest-complete lookup and flagged for
// manual review; they are never deleted automatically.
type CorruptError struct {
	Dir   string
	cause error
}

func (e *CorruptError) Error() string {
	return "corrupt snapshot metadata in " + e.Dir + ": " + e.cause.Error()
}

func (e *CorruptError) Unwrap() error { return e.cause }

// Store reads and writes snapshot metadata through an injected filesystem.
// The chain manager is its only writer.
type Store struct {
	fsys fs.FS
}

func NewStore(fsys fs.FS) *Store {
	return &Store{fsys: fsys}
}

func (s *Store) infoPath(dir string) string   { return filepath.Join(dir, infoFileName) }
func (s *Store) markerPath(dir string) string { return filepath.Join(dir, markerFileName) }

// LogPath is where the transfer log of the snapshot at dir lives.
func (s *Store) LogPath(dir string) string { return filepath.Join(dir, logFileName) }

// WriteInfo persists the info file via write-temp-then-rename, so a reader
// never observes a half-written file. The rename retries through transient
// filesystem errors, which matters on network-mounted destinations.
func (s *Store) WriteInfo(ctx context.Context, dir string, info Info) error {
	data, err := yaml.Marshal(info)
	if err != nil {
		return errors.Wrap(err, "encoding snapshot info")
	}

	tmp := s.infoPath(dir) + ".tmp"
	if err := s.fsys.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, "writing snapshot info")
	}
	return s.fsys.Rename(ctx, tmp, s.infoPath(dir))
}

// ReadInfo decodes the info file. Undecodable metadata is reported as
// CorruptError so callers can distinguish it from a missing file.
func (s *Store) ReadInfo(dir string) (Info, error) {
	data, err := s.fsys.ReadFile(s.infoPath(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return Info{}, err
		}
		return Info{}, &CorruptError{Dir: dir, cause: err}
	}

	var info Info
	if err := yaml.Unmarshal(data, &info); err != nil {
		return Info{}, &CorruptError{Dir: dir, cause: err}
	}
	return info, nil
}

// MarkComplete durably writes the completion marker. Creation is atomic
// (exclusive create); marking an already-complete snapshot is a no-op.
func (s *Store) MarkComplete(dir string) error {
	err := s.fsys.CreateExclusive(s.markerPath(dir), nil)
	if err != nil && !os.IsExist(err) {
		return errors.Wrap(err, "writing completion marker")
	}
	return nil
}

// IsComplete reports whether the snapshot at dir carries a completion marker.
func (s *Store) IsComplete(dir string) (bool, error) {
	_, err := s.fsys.Stat(s.markerPath(dir))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// WriteLog stores the free-form transfer log for the snapshot at dir.
func (s *Store) WriteLog(dir string, data []byte) error {
	return s.fsys.WriteFile(s.LogPath(dir), data, 0o644)
}
