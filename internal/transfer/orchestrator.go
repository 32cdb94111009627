package transfer

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bgurmendi/backintime/internal/fs"
	"github.com/bgurmendi/backintime/internal/fsprobe"
)

// Orchestrator wraps a Syncer with the pre- and post-transfer integrity
// checks of one run.
type Orchestrator struct {
	fsys    fs.FS
	syncer  Syncer
	log     *slog.Logger
	minFree uint64
}

func NewOrchestrator(fsys fs.FS, syncer Syncer, log *slog.Logger, minFree uint64) *Orchestrator {
	return &Orchestrator{fsys: fsys, syncer: syncer, log: log, minFree: minFree}
}

// Run validates the endpoints, invokes the sync capability and verifies the
// destination tree afterwards. Per-file problems come back in
// Result.Warnings; a FatalError means the snapshot must stay tentative.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Result, error) {
	if err := o.preCheck(req); err != nil {
		return Result{}, err
	}

	res, err := o.syncer.Sync(ctx, req)
	if err != nil {
		return res, err
	}

	if _, err := o.fsys.Stat(req.Dest); err != nil {
		return res, NewFatalError("destination tree missing after transfer", err)
	}

	for _, w := range res.Warnings {
		o.log.Warn("transfer warning", "warning", w)
	}

	return res, nil
}

func (o *Orchestrator) preCheck(req Request) error {
	// Lstat, not Stat: a source that is itself a symlink is replicated as a
	// symlink, so a dangling target must not fail the run.
	for _, src := range req.Sources {
		if _, err := o.fsys.Lstat(src); err != nil {
			return NewFatalError("source unavailable: "+src, err)
		}
	}

	destRoot := filepath.Dir(req.Dest)
	if _, err := o.fsys.Stat(destRoot); err != nil {
		if os.IsNotExist(err) {
			return NewFatalError("destination unreachable: "+destRoot, err)
		}
		return NewFatalError("destination not accessible: "+destRoot, err)
	}

	// Probe in the chain root, one level above the snapshot directory: the
	// probe writes scratch files, and the snapshot layout is a compatibility
	// contract that must never contain them.
	probe := fsprobe.Probe(o.fsys, filepath.Dir(destRoot))
	if o.minFree > 0 && probe.FreeBytes < o.minFree {
		return NewFatalError("destination below free-space floor", nil)
	}
	if req.LinkRef != "" && !probe.HardLinks {
		// rsync silently copies when link-dest cannot link; surface it.
		o.log.Warn("destination does not support hard links, deduplication disabled", "reason", probe.Reason)
	}

	return nil
}
