// Package chain owns the on-disk snapshot chain of one profile. It is the
// sole writer of snapshot directories and completion markers; every other
// component observes chain state through it.
package chain

import (
	"context"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/bgurmendi/backintime/internal/fs"
	"github.com/bgurmendi/backintime/internal/snapshot"
)

// Manager operates on the chain rooted at <destination>/<profile>.
type Manager struct {
	fsys  fs.FS
	store *snapshot.Store
	log   *slog.Logger
	root  string
}

func NewManager(fsys fs.FS, log *slog.Logger, destination, profile string) *Manager {
	return &Manager{
		fsys:  fsys,
		store: snapshot.NewStore(fsys),
		log:   log,
		root:  filepath.Join(destination, profile),
	}
}

// Root is the profile's chain directory.
func (m *Manager) Root() string { return m.root }

// Store exposes the metadata store backing this chain.
func (m *Manager) Store() *snapshot.Store { return m.store }

// ids returns all snapshot identifiers under the root, oldest first.
// Directory names that do not parse as identifiers are ignored, so foreign
// files (the lock record, stray editors' droppings) never enter the chain.
func (m *Manager) ids() ([]snapshot.ID, error) {
	entries, err := m.fsys.ReadDir(m.root)
	if err != nil {
		return nil, errors.Wrap(err, "reading chain root")
	}

	var ids []snapshot.ID
	for _, e := range entries {
		if !e.IsDir {
			continue
		}
		id, err := snapshot.ParseID(e.Name)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *Manager) dirOf(id snapshot.ID) string {
	return filepath.Join(m.root, string(id))
}

func (m *Manager) stateOf(id snapshot.ID) (snapshot.State, error) {
	complete, err := m.store.IsComplete(m.dirOf(id))
	if err != nil {
		return snapshot.StateTentative, err
	}
	if complete {
		return snapshot.StateComplete, nil
	}
	return snapshot.StateTentative, nil
}

// Get materializes the snapshot with the given identifier, resolving its
// current state from disk.
func (m *Manager) Get(id snapshot.ID) (snapshot.Snapshot, error) {
	state, err := m.stateOf(id)
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	return snapshot.Snapshot{ID: id, Dir: m.dirOf(id), State: state}, nil
}

// LatestComplete returns the snapshot with the greatest identifier whose
// completion marker is present and whose metadata decodes. Snapshots with
// markers but corrupt or missing metadata are skipped with a warning and
// left in place for manual review.
func (m *Manager) LatestComplete() (snapshot.Snapshot, bool, error) {
	ids, err := m.ids()
	if err != nil {
		return snapshot.Snapshot{}, false, err
	}

	for i := len(ids) - 1; i >= 0; i-- {
		dir := m.dirOf(ids[i])

		complete, err := m.store.IsComplete(dir)
		if err != nil {
			return snapshot.Snapshot{}, false, err
		}
		if !complete {
			continue
		}

		if _, err := m.store.ReadInfo(dir); err != nil {
			// A marker with undecodable or missing metadata is an
			// inconsistent snapshot, not a reason to abort the run.
			var corrupt *snapshot.CorruptError
			if errors.As(err, &corrupt) || os.IsNotExist(err) {
				m.log.Warn("skipping snapshot with unreadable metadata", "id", ids[i], "error", err)
				continue
			}
			return snapshot.Snapshot{}, false, err
		}

		return snapshot.Snapshot{ID: ids[i], Dir: dir, State: snapshot.StateComplete}, true, nil
	}

	return snapshot.Snapshot{}, false, nil
}

// BeginNew allocates the next identifier and creates the tentative snapshot
// slot. The identifier is strictly greater than every existing one: a plain
// timestamp when that suffices, otherwise the greatest existing identifier's
// base with the next collision suffix. The slot is not discoverable as
// complete until Finalize.
func (m *Manager) BeginNew(ctx context.Context, started time.Time, sources, excludes []string) (snapshot.Snapshot, error) {
	if err := m.fsys.MkdirAll(m.root); err != nil {
		return snapshot.Snapshot{}, errors.Wrap(err, "creating chain root")
	}

	ids, err := m.ids()
	if err != nil {
		return snapshot.Snapshot{}, err
	}

	id := snapshot.NewID(started)
	if len(ids) > 0 {
		if max := ids[len(ids)-1]; id <= max {
			id, err = nextAfter(max)
			if err != nil {
				return snapshot.Snapshot{}, err
			}
		}
	}

	snap := snapshot.Snapshot{ID: id, Dir: m.dirOf(id), State: snapshot.StateTentative}

	if err := m.fsys.MkdirAll(snap.FilesDir()); err != nil {
		return snapshot.Snapshot{}, errors.Wrap(err, "creating snapshot slot")
	}

	info := snapshot.Info{
		Started:  started.UTC(),
		Sources:  sources,
		Excludes: excludes,
	}
	if err := m.store.WriteInfo(ctx, snap.Dir, info); err != nil {
		return snapshot.Snapshot{}, err
	}

	return snap, nil
}

// nextAfter computes the identifier following max: the first unused collision
// suffix of max's base.
func nextAfter(max snapshot.ID) (snapshot.ID, error) {
	base := max.Base()
	for n := 1; n <= 999; n++ {
		candidate := base.WithSuffix(n)
		if candidate > max {
			return candidate, nil
		}
	}
	return "", errors.Newf("identifier space exhausted after %s", max)
}

// Finalize records the end time and then writes the completion marker. The
// marker write is the single atomic step that makes the snapshot visible; a
// process killed anywhere before it leaves only an ignorable tentative dir.
func (m *Manager) Finalize(ctx context.Context, snap snapshot.Snapshot, ended time.Time) (snapshot.Snapshot, error) {
	info, err := m.store.ReadInfo(snap.Dir)
	if err != nil {
		return snap, err
	}
	info.Ended = ended.UTC()
	if err := m.store.WriteInfo(ctx, snap.Dir, info); err != nil {
		return snap, err
	}

	if err := m.store.MarkComplete(snap.Dir); err != nil {
		return snap, err
	}

	snap.State = snapshot.StateComplete
	return snap, nil
}

// All enumerates the chain oldest first. Metadata is decoded lazily per
// element, so very long chains never load eagerly.
func (m *Manager) All() iter.Seq2[snapshot.Snapshot, error] {
	return func(yield func(snapshot.Snapshot, error) bool) {
		ids, err := m.ids()
		if err != nil {
			yield(snapshot.Snapshot{}, err)
			return
		}

		for _, id := range ids {
			state, err := m.stateOf(id)
			if err != nil {
				if !yield(snapshot.Snapshot{}, err) {
					return
				}
				continue
			}
			snap := snapshot.Snapshot{ID: id, Dir: m.dirOf(id), State: state}
			if !yield(snap, nil) {
				return
			}
		}
	}
}

// Delete removes the snapshot directory tree, tolerating per-entry failures.
// Undeletable entries are reported as warnings and the pass continues; the
// prune loop must never abort on one stubborn file.
func (m *Manager) Delete(snap snapshot.Snapshot) []string {
	var warnings []string
	m.deleteTree(snap.Dir, &warnings)
	return warnings
}

func (m *Manager) deleteTree(dir string, warnings *[]string) {
	entries, err := m.fsys.ReadDir(dir)
	if err != nil {
		*warnings = append(*warnings, "reading "+dir+": "+err.Error())
		return
	}

	for _, e := range entries {
		full := filepath.Join(dir, e.Name)
		if e.IsDir {
			m.deleteTree(full, warnings)
			continue
		}
		if err := m.fsys.Remove(full); err != nil {
			*warnings = append(*warnings, "removing "+full+": "+err.Error())
		}
	}

	if err := m.fsys.Remove(dir); err != nil {
		*warnings = append(*warnings, "removing "+dir+": "+err.Error())
	}
}

// CleanupOrphans deletes tentative snapshot directories left behind by
// interrupted runs. It runs under the profile lock, before a new slot is
// allocated, so anything without a marker here is debris.
func (m *Manager) CleanupOrphans(ctx context.Context) error {
	ids, err := m.ids()
	if err != nil {
		return err
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		state, err := m.stateOf(id)
		if err != nil {
			return err
		}
		if state == snapshot.StateComplete {
			continue
		}

		m.log.Warn("removing orphaned tentative snapshot", "id", id)
		snap := snapshot.Snapshot{ID: id, Dir: m.dirOf(id), State: state}
		for _, w := range m.Delete(snap) {
			m.log.Warn("orphan cleanup incomplete", "id", id, "warning", w)
		}
	}

	return nil
}
