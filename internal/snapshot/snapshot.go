package snapshot

import "path/filepath"

// State is the lifecycle position of a snapshot.
type State int

const (
	// StateTentative marks a snapshot under construction. It is never used
	// as a link reference and never counted as a successful backup.
	StateTentative State = iota
	// StateComplete marks a snapshot whose completion marker is durable.
	StateComplete
	// StateFailed marks a snapshot whose run ended in a fatal transfer
	// error. It is eligible for cleanup.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateTentative:
		return "tentative"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Snapshot represents one backup point on disk.
type Snapshot struct {
	ID    ID
	Dir   string // snapshot directory, contains files/ and metadata
	State State
}

// FilesDir is the root of the replicated file tree inside the snapshot.
func (s Snapshot) FilesDir() string {
	return filepath.Join(s.Dir, filesDirName)
}
