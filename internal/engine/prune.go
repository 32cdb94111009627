package engine

import (
	"context"

	"github.com/bgurmendi/backintime/internal/chain"
	"github.com/bgurmendi/backintime/internal/config"
	"github.com/bgurmendi/backintime/internal/retention"
	"github.com/bgurmendi/backintime/internal/snapshot"
)

// prune applies the retention rules and then the free-space floor. All
// failures are warnings: a half-finished prune never invalidates the backup
// that was just taken.
func (r *Runner) prune(ctx context.Context, manager *chain.Manager, profile config.Profile) []string {
	log := r.log.With("profile", profile.Name)

	entries, warnings := r.completeEntries(manager)

	if len(profile.Retention) > 0 {
		plan := retention.Evaluate(entries, profile.Retention, r.now())
		for _, e := range plan.Delete {
			if ctx.Err() != nil {
				return warnings
			}
			log.Info("pruning snapshot", "snapshot", e.ID)
			warnings = append(warnings, r.deleteByID(manager, e.ID)...)
		}
		entries = plan.Keep
	}

	if profile.MinFreeSpace > 0 {
		warnings = append(warnings, r.pruneForSpace(ctx, manager, profile, entries)...)
	}

	return warnings
}

// ensureFreeSpace runs the free-space pruning pass before a transfer, so a
// destination that filled up since the last run is thinned before rsync
// needs the room.
func (r *Runner) ensureFreeSpace(ctx context.Context, manager *chain.Manager, profile config.Profile) []string {
	if profile.MinFreeSpace == 0 {
		return nil
	}
	entries, warnings := r.completeEntries(manager)
	return append(warnings, r.pruneForSpace(ctx, manager, profile, entries)...)
}

// pruneForSpace deletes the oldest snapshots one at a time, re-measuring
// free space after each, until the floor is met or only the most recent
// snapshot remains. Reclaimed space per snapshot is unknowable up front
// because of hard-link sharing, hence the measure-delete loop.
func (r *Runner) pruneForSpace(ctx context.Context, manager *chain.Manager, profile config.Profile, entries []retention.Entry) []string {
	log := r.log.With("profile", profile.Name)
	var warnings []string

	for _, e := range retention.SpaceCandidates(entries) {
		if ctx.Err() != nil {
			return warnings
		}

		free, err := r.fsys.FreeSpace(manager.Root())
		if err != nil {
			warnings = append(warnings, "measuring free space: "+err.Error())
			return warnings
		}
		if free >= uint64(profile.MinFreeSpace) {
			return warnings
		}

		log.Warn("destination below free-space floor, pruning oldest snapshot",
			"snapshot", e.ID, "free", free)
		warnings = append(warnings, r.deleteByID(manager, e.ID)...)
	}

	return warnings
}

// completeEntries collects the evaluator's view of the chain. Errors while
// reading individual snapshots degrade to warnings so pruning can continue
// with the readable remainder.
func (r *Runner) completeEntries(manager *chain.Manager) ([]retention.Entry, []string) {
	var entries []retention.Entry
	var warnings []string

	for snap, err := range manager.All() {
		if err != nil {
			warnings = append(warnings, "enumerating chain: "+err.Error())
			continue
		}
		if snap.State != snapshot.StateComplete {
			continue
		}
		t, err := snap.ID.Time()
		if err != nil {
			continue
		}
		entries = append(entries, retention.Entry{ID: snap.ID, Time: t})
	}

	return entries, warnings
}

func (r *Runner) deleteByID(manager *chain.Manager, id snapshot.ID) []string {
	snap, err := manager.Get(id)
	if err != nil {
		return []string{"resolving snapshot " + string(id) + ": " + err.Error()}
	}
	return manager.Delete(snap)
}
