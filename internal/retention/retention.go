// Package retention computes which snapshots survive a pruning pass. The
// evaluator is a pure function over chain order and the configured rules:
// running it twice on an unchanged chain yields the same plan.
package retention

import (
	"fmt"
	"sort"
	"time"

	"github.com/bgurmendi/backintime/internal/config"
	"github.com/bgurmendi/backintime/internal/snapshot"
)

// Entry is the evaluator's view of one complete snapshot.
type Entry struct {
	ID   snapshot.ID
	Time time.Time
}

// Plan is the outcome of an evaluation. Delete lists candidates oldest
// first, which is also the order space-pressure pruning consumes them in.
type Plan struct {
	Keep   []Entry
	Delete []Entry
}

// Evaluate applies the rule set to the chain. Rules compose by union: a
// snapshot survives if any rule keeps it. The most recent entry is always
// kept regardless of rules.
//
// Entries must be complete snapshots; tentative and corrupt ones never reach
// the evaluator.
func Evaluate(entries []Entry, rules []config.RetentionRule, now time.Time) Plan {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	keep := map[snapshot.ID]bool{}
	if len(sorted) > 0 {
		keep[sorted[len(sorted)-1].ID] = true
	}

	for _, rule := range rules {
		switch {
		case rule.KeepAllWithin > 0:
			keepAllWithin(sorted, now, rule.KeepAllWithin, keep)
		case rule.KeepOnePer != "":
			keepOnePer(sorted, rule.KeepOnePer, rule.Count, keep)
		case rule.MaxCount > 0:
			keepNewest(sorted, rule.MaxCount, keep)
		}
	}

	var plan Plan
	for _, e := range sorted {
		if keep[e.ID] {
			plan.Keep = append(plan.Keep, e)
		} else {
			plan.Delete = append(plan.Delete, e)
		}
	}
	return plan
}

func keepAllWithin(sorted []Entry, now time.Time, d time.Duration, keep map[snapshot.ID]bool) {
	cutoff := now.Add(-d)
	for _, e := range sorted {
		if !e.Time.Before(cutoff) {
			keep[e.ID] = true
		}
	}
}

func keepNewest(sorted []Entry, n int, keep map[snapshot.ID]bool) {
	start := len(sorted) - n
	if start < 0 {
		start = 0
	}
	for _, e := range sorted[start:] {
		keep[e.ID] = true
	}
}

// keepOnePer keeps the newest snapshot in each of the count most recent
// calendar buckets that contain one. Buckets use the UTC timestamp encoded
// in the identifier, so the rule reads the same on every machine.
func keepOnePer(sorted []Entry, period string, count int, keep map[snapshot.ID]bool) {
	newestPerBucket := map[string]Entry{}
	var order []string // bucket keys, oldest first

	for _, e := range sorted {
		key := bucketKey(e.Time.UTC(), period)
		if _, seen := newestPerBucket[key]; !seen {
			order = append(order, key)
		}
		// entries arrive oldest first, so the last write wins the bucket
		newestPerBucket[key] = e
	}

	start := len(order) - count
	if start < 0 {
		start = 0
	}
	for _, key := range order[start:] {
		keep[newestPerBucket[key].ID] = true
	}
}

func bucketKey(t time.Time, period string) string {
	switch period {
	case "week":
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case "month":
		return t.Format("2006-01")
	case "year":
		return t.Format("2006")
	default: // "day"
		return t.Format("2006-01-02")
	}
}

// SpaceCandidates orders entries for free-space pruning: oldest first, the
// most recent entry excluded. Space pressure overrides rule-based keeps;
// with a full destination every future backup fails, which is worse than a
// thinner history.
func SpaceCandidates(entries []Entry) []Entry {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	if len(sorted) == 0 {
		return nil
	}
	return sorted[:len(sorted)-1]
}
