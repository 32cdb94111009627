package snapshot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID_FormatsUTC(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)

	id := NewID(time.Date(2026, 3, 14, 9, 26, 53, 0, loc))
	assert.Equal(t, ID("20260314-142653"), id)
}

func TestID_SuffixOrdering(t *testing.T) {
	base := NewID(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	prev := base
	for n := 1; n <= 12; n++ {
		next := base.WithSuffix(n)
		assert.Greater(t, next, prev, "suffix %d must sort after its predecessor", n)
		prev = next
	}
}

func TestID_Time(t *testing.T) {
	want := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	got, err := NewID(want).Time()
	require.NoError(t, err)
	assert.True(t, got.Equal(want))

	got, err = NewID(want).WithSuffix(7).Time()
	require.NoError(t, err)
	assert.True(t, got.Equal(want), "suffix must not affect the encoded instant")
}

func TestParseID(t *testing.T) {
	valid := []string{"20260102-030405", "20260102-030405-001", "20260102-030405-999"}
	for _, name := range valid {
		id, err := ParseID(name)
		require.NoError(t, err, name)
		assert.Equal(t, ID(name), id)
	}

	invalid := []string{
		"",
		"lock.yaml",
		"2026-01-02T03-04-05", // foreign timestamp format
		"20260102-030405-1",   // unpadded suffix
		"20260102-030405-0001",
		"20261340-030405", // month 13
		".tmp-20260102-030405",
	}
	for _, name := range invalid {
		_, err := ParseID(name)
		assert.Error(t, err, name)
	}
}

func TestID_Base(t *testing.T) {
	base := ID("20260102-030405")
	assert.Equal(t, base, base.Base())
	assert.Equal(t, base, base.WithSuffix(4).Base())
}
