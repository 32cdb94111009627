package sched

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/bgurmendi/backintime/internal/config"
)

// WatchConfig reloads configuration when the config file changes on disk.
// Editors and config-management tools typically write via rename, so the
// parent directory is watched rather than the file itself. Invalid configs
// are logged and skipped; the daemon keeps running on the last good one.
func (d *Daemon) WatchConfig(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			d.reload(ctx, path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			d.log.Error("config watcher error", "error", err)
		}
	}
}

// Reload re-reads the config file, for SIGHUP handling.
func (d *Daemon) Reload(ctx context.Context, path string) {
	d.reload(ctx, path)
}

func (d *Daemon) reload(ctx context.Context, path string) {
	cfg, err := config.Load(path)
	if err != nil {
		d.log.Error("config reload failed", "path", path, "error", err)
		return
	}
	if err := d.UpdateConfig(ctx, cfg); err != nil {
		d.log.Error("applying reloaded config failed", "error", err)
		return
	}
	d.log.Info("config reloaded", "path", path)
}
