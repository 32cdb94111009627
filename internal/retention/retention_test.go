package retention

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bgurmendi/backintime/internal/config"
	"github.com/bgurmendi/backintime/internal/snapshot"
)

func entryAt(t time.Time) Entry {
	return Entry{ID: snapshot.NewID(t), Time: t.UTC()}
}

func dailyChain(n int, end time.Time) []Entry {
	entries := make([]Entry, 0, n)
	for i := n - 1; i >= 0; i-- {
		entries = append(entries, entryAt(end.AddDate(0, 0, -i)))
	}
	return entries
}

func ids(entries []Entry) []snapshot.ID {
	out := make([]snapshot.ID, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

func TestEvaluate_MaxCount(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	entries := dailyChain(10, now)

	plan := Evaluate(entries, []config.RetentionRule{{MaxCount: 3}}, now)

	require.Len(t, plan.Keep, 3)
	require.Len(t, plan.Delete, 7)
	assert.Equal(t, ids(entries[7:]), ids(plan.Keep), "the 3 greatest identifiers survive")
	assert.Equal(t, ids(entries[:7]), ids(plan.Delete), "candidates come back oldest first")
}

func TestEvaluate_KeepAllWithin(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	entries := dailyChain(10, now)

	plan := Evaluate(entries, []config.RetentionRule{{KeepAllWithin: 72 * time.Hour}}, now)

	// today plus the three 24h steps inside the window
	assert.Len(t, plan.Keep, 4)
}

func TestEvaluate_KeepOnePerDay(t *testing.T) {
	now := time.Date(2026, 8, 29, 23, 0, 0, 0, time.UTC)

	// three snapshots on one day, one the day before
	dayBefore := entryAt(now.AddDate(0, 0, -1))
	morning := entryAt(now.Add(-14 * time.Hour))
	noon := entryAt(now.Add(-11 * time.Hour))
	evening := entryAt(now.Add(-1 * time.Hour))

	plan := Evaluate([]Entry{dayBefore, morning, noon, evening},
		[]config.RetentionRule{{KeepOnePer: "day", Count: 2}}, now)

	assert.ElementsMatch(t, []snapshot.ID{dayBefore.ID, evening.ID}, ids(plan.Keep),
		"newest snapshot of each of the 2 most recent days survives")
}

func TestEvaluate_RulesComposeByUnion(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	entries := dailyChain(10, now)

	rules := []config.RetentionRule{
		{MaxCount: 2},
		{KeepAllWithin: 96 * time.Hour},
	}
	plan := Evaluate(entries, rules, now)

	// the within-4-days rule keeps 5, superset of max-count's 2
	assert.Len(t, plan.Keep, 5)
}

func TestEvaluate_LatestAlwaysKept(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	entries := dailyChain(5, now.AddDate(-1, 0, 0)) // all ancient

	plan := Evaluate(entries, []config.RetentionRule{{KeepAllWithin: time.Hour}}, now)

	require.NotEmpty(t, plan.Keep)
	assert.Equal(t, entries[len(entries)-1].ID, plan.Keep[len(plan.Keep)-1].ID)
}

func TestEvaluate_EmptyChain(t *testing.T) {
	plan := Evaluate(nil, []config.RetentionRule{{MaxCount: 3}}, time.Now())
	assert.Empty(t, plan.Keep)
	assert.Empty(t, plan.Delete)
}

func TestSpaceCandidates_ExcludesNewest(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	entries := dailyChain(4, now)

	candidates := SpaceCandidates(entries)

	require.Len(t, candidates, 3)
	assert.Equal(t, ids(entries[:3]), ids(candidates))
	assert.Empty(t, SpaceCandidates(nil))
}
