// Package engine runs one backup for one profile: lock, slot allocation,
// transfer, finalization, pruning.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/bgurmendi/backintime/internal/chain"
	"github.com/bgurmendi/backintime/internal/config"
	"github.com/bgurmendi/backintime/internal/fs"
	"github.com/bgurmendi/backintime/internal/lock"
	"github.com/bgurmendi/backintime/internal/snapshot"
	"github.com/bgurmendi/backintime/internal/transfer"
)

// Outcome classifies a run for the process exit contract.
type Outcome int

const (
	OutcomeOK Outcome = iota
	// OutcomeWarnings means the snapshot was finalized and is usable, but
	// some files or prune steps reported problems.
	OutcomeWarnings
	OutcomeLockHeld
	OutcomeTransferFatal
	OutcomeError
)

// ExitCode maps the outcome onto the documented process exit codes.
func (o Outcome) ExitCode() int {
	switch o {
	case OutcomeOK:
		return 0
	case OutcomeWarnings:
		return 1
	case OutcomeLockHeld:
		return 2
	case OutcomeTransferFatal:
		return 3
	default:
		return 4
	}
}

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeWarnings:
		return "ok-with-warnings"
	case OutcomeLockHeld:
		return "lock-held"
	case OutcomeTransferFatal:
		return "transfer-fatal"
	default:
		return "error"
	}
}

// Report summarizes one run.
type Report struct {
	Profile          string
	Snapshot         snapshot.ID
	FilesTransferred int
	FilesLinked      int
	Warnings         []string
	Outcome          Outcome
	Err              error
}

// Runner executes backup runs. It holds no per-profile state; a single
// Runner serves any number of profiles, each serialized by its own lock.
type Runner struct {
	fsys   fs.FS
	syncer transfer.Syncer
	probe  lock.Liveness
	log    *slog.Logger
	now    func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithClock injects the time source. Tests use it to place snapshots in
// chosen calendar buckets.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithLiveness injects the lock staleness probe.
func WithLiveness(probe lock.Liveness) Option {
	return func(r *Runner) { r.probe = probe }
}

func NewRunner(fsys fs.FS, syncer transfer.Syncer, log *slog.Logger, opts ...Option) *Runner {
	r := &Runner{
		fsys:   fsys,
		syncer: syncer,
		log:    log,
		now:    time.Now,
		probe:  lock.OSLiveness{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run performs one backup for the profile. Every failure mode is reflected
// in the Report's Outcome; Err carries the cause for the fatal ones.
func (r *Runner) Run(ctx context.Context, profile config.Profile) Report {
	report := Report{Profile: profile.Name}
	log := r.log.With("profile", profile.Name)

	manager := chain.NewManager(r.fsys, log, profile.Destination, profile.Name)
	locker := lock.NewManager(r.fsys, r.probe, log, manager.Root())

	lk, err := locker.Acquire()
	if err != nil {
		if errors.Is(err, lock.ErrHeld) {
			log.Info("another run is in progress")
			report.Outcome = OutcomeLockHeld
		} else {
			report.Outcome = OutcomeError
		}
		report.Err = err
		return report
	}
	defer func() {
		if err := lk.Release(); err != nil {
			log.Error("releasing lock", "error", err)
		}
	}()

	if err := manager.CleanupOrphans(ctx); err != nil {
		report.Outcome = OutcomeError
		report.Err = errors.Wrap(err, "cleaning up orphaned snapshots")
		return report
	}

	// Make room before transferring: a destination already below the floor
	// would otherwise fail every future run.
	report.Warnings = append(report.Warnings, r.ensureFreeSpace(ctx, manager, profile)...)

	ref, hasRef, err := manager.LatestComplete()
	if err != nil {
		report.Outcome = OutcomeError
		report.Err = errors.Wrap(err, "resolving reference snapshot")
		return report
	}

	started := r.now()
	snap, err := manager.BeginNew(ctx, started, profile.Sources, profile.Excludes)
	if err != nil {
		report.Outcome = OutcomeError
		report.Err = errors.Wrap(err, "allocating snapshot slot")
		return report
	}
	report.Snapshot = snap.ID

	req := transfer.Request{
		Sources:             profile.Sources,
		Excludes:            profile.Excludes,
		Dest:                snap.FilesDir(),
		PreservePermissions: profile.PreservePermissions,
		Checksum:            profile.Checksum,
		Sparse:              profile.CopySparse,
	}
	if hasRef {
		req.LinkRef = ref.FilesDir()
		log.Info("starting incremental backup", "snapshot", snap.ID, "reference", ref.ID)
	} else {
		log.Info("starting full backup, no reference snapshot", "snapshot", snap.ID)
	}

	orch := transfer.NewOrchestrator(r.fsys, r.syncer, log, uint64(profile.MinFreeSpace))
	res, err := orch.Run(ctx, req)

	if len(res.Log) > 0 {
		if werr := manager.Store().WriteLog(snap.Dir, res.Log); werr != nil {
			log.Warn("writing transfer log", "error", werr)
		}
	}

	if err != nil {
		// The tentative slot stays on disk; the next run's orphan cleanup
		// removes it.
		report.Outcome = OutcomeTransferFatal
		report.Err = err
		log.Error("transfer failed, snapshot not finalized", "snapshot", snap.ID, "error", err)
		return report
	}

	report.FilesTransferred = res.FilesTransferred
	report.FilesLinked = res.FilesLinked
	report.Warnings = append(report.Warnings, res.Warnings...)

	if _, err := manager.Finalize(ctx, snap, r.now()); err != nil {
		report.Outcome = OutcomeTransferFatal
		report.Err = errors.Wrap(err, "finalizing snapshot")
		return report
	}
	log.Info("snapshot finalized",
		"snapshot", snap.ID,
		"transferred", res.FilesTransferred,
		"linked", res.FilesLinked)

	report.Warnings = append(report.Warnings, r.prune(ctx, manager, profile)...)

	if len(report.Warnings) > 0 {
		report.Outcome = OutcomeWarnings
	} else {
		report.Outcome = OutcomeOK
	}
	return report
}
