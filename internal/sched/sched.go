// Package sched is the daemon: it triggers profile runs from cron schedules
// and hot-reloads configuration. The engine itself knows nothing about
// scheduling; sched is the in-process stand-in for an external trigger.
package sched

import (
	"context"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/bgurmendi/backintime/internal/config"
	"github.com/bgurmendi/backintime/internal/engine"
	"github.com/bgurmendi/backintime/internal/mailbox"
)

// Daemon schedules backup runs for all profiles carrying a schedule.
type Daemon struct {
	mu      sync.Mutex
	runner  *engine.Runner
	log     *slog.Logger
	cron    *cron.Cron
	boxes   map[string]*mailbox.Mailbox[struct{}]
	profile map[string]config.Profile
	stop    map[string]context.CancelFunc
}

func New(runner *engine.Runner, log *slog.Logger) *Daemon {
	return &Daemon{
		runner:  runner,
		log:     log,
		boxes:   map[string]*mailbox.Mailbox[struct{}]{},
		profile: map[string]config.Profile{},
		stop:    map[string]context.CancelFunc{},
	}
}

// Start applies cfg and blocks until ctx is done.
func (d *Daemon) Start(ctx context.Context, cfg *config.Config) error {
	if err := d.UpdateConfig(ctx, cfg); err != nil {
		return err
	}

	<-ctx.Done()

	d.mu.Lock()
	if d.cron != nil {
		<-d.cron.Stop().Done()
	}
	d.mu.Unlock()
	return nil
}

// UpdateConfig replaces all schedules with the ones in cfg. Runs already in
// flight are unaffected; their next trigger follows the new schedule.
// Profiles dropped from cfg (or left without a schedule) have their run
// loops stopped and their pending triggers discarded.
func (d *Daemon) UpdateConfig(ctx context.Context, cfg *config.Config) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cron != nil {
		d.cron.Stop()
	}
	d.cron = cron.New()

	scheduled := map[string]bool{}
	for _, p := range cfg.Profiles {
		if p.Schedule != "" {
			scheduled[p.Name] = true
		}
	}
	for name := range d.boxes {
		if scheduled[name] {
			continue
		}
		d.stop[name]()
		delete(d.stop, name)
		delete(d.boxes, name)
		delete(d.profile, name)
		d.log.Info("unscheduled profile", "profile", name)
	}

	for _, p := range cfg.Profiles {
		if p.Schedule == "" {
			continue
		}

		box, ok := d.boxes[p.Name]
		if !ok {
			box = mailbox.New[struct{}]()
			d.boxes[p.Name] = box
			loopCtx, cancel := context.WithCancel(ctx)
			d.stop[p.Name] = cancel
			go d.runLoop(loopCtx, p.Name, box)
		}
		d.profile[p.Name] = p

		name := p.Name
		if _, err := d.cron.AddFunc(p.Schedule, func() { box.Put(struct{}{}) }); err != nil {
			return err
		}
		d.log.Info("scheduled profile", "profile", name, "schedule", p.Schedule)
	}

	d.cron.Start()
	return nil
}

// Trigger requests an immediate run of the named profile, coalescing with
// any pending trigger.
func (d *Daemon) Trigger(name string) {
	d.mu.Lock()
	box, ok := d.boxes[name]
	d.mu.Unlock()
	if ok {
		box.Put(struct{}{})
	}
}

// runLoop serializes the runs of one profile. The mailbox guarantees that a
// trigger storm during a slow run collapses into a single follow-up.
func (d *Daemon) runLoop(ctx context.Context, name string, box *mailbox.Mailbox[struct{}]) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-box.Wait():
		}

		d.mu.Lock()
		p, ok := d.profile[name]
		d.mu.Unlock()
		if !ok {
			continue
		}

		report := d.runner.Run(ctx, p)
		if report.Err != nil {
			d.log.Error("scheduled run failed",
				"profile", name, "outcome", report.Outcome.String(), "error", report.Err)
			continue
		}
		d.log.Info("scheduled run finished",
			"profile", name,
			"outcome", report.Outcome.String(),
			"snapshot", report.Snapshot,
			"warnings", len(report.Warnings))
	}
}
