// Package transfer drives the external file-synchronization capability and
// classifies its outcome.
package transfer

import "context"

// Request describes one sync invocation.
type Request struct {
	// Sources are absolute paths to back up. Each reproduces its full path
	// under Dest, so distinct sources never collide.
	Sources []string
	// Excludes are rsync-style exclusion patterns.
	Excludes []string
	// Dest is the file-tree root of the tentative snapshot.
	Dest string
	// LinkRef is the file-tree root of the reference snapshot. Empty on the
	// first run; every file is then copied.
	LinkRef string

	PreservePermissions bool
	Checksum            bool
	Sparse              bool
}

// Result is the aggregate outcome of a sync that did not fail fatally.
type Result struct {
	FilesTotal       int
	FilesTransferred int
	// FilesLinked counts files hard-linked to the reference instead of
	// copied. Zero when there is no reference.
	FilesLinked int
	// Warnings holds per-file problems (vanished files, permission denials)
	// that did not invalidate the transfer as a whole.
	Warnings []string
	// Log is the raw output of the sync tool, kept for the transfer log.
	Log []byte
}

// Syncer is the narrow capability the engine requires from the external
// synchronization primitive: copy the source tree to dest, transferring only
// changed files and hard-linking unchanged ones to the reference. Contract:
// per-file errors surface as Result.Warnings, never as an error; a non-nil
// error means the transfer as a whole is unreliable.
type Syncer interface {
	Sync(ctx context.Context, req Request) (Result, error)
}

// FatalError means the transfer as a whole is unreliable: the destination is
// unreachable or full, or the sync process itself failed. The snapshot must
// not be finalized.
type FatalError struct {
	Reason string
	cause  error
}

func NewFatalError(reason string, cause error) *FatalError {
	return &FatalError{Reason: reason, cause: cause}
}

func (e *FatalError) Error() string {
	if e.cause == nil {
		return "transfer failed: " + e.Reason
	}
	return "transfer failed: " + e.Reason + ": " + e.cause.Error()
}

func (e *FatalError) Unwrap() error { return e.cause }
