// Package snapshot defines snapshot identity, lifecycle state and the
// per-snapshot metadata store.
package snapshot

import (
	"fmt"
	"regexp"
	"time"

	"github.com/cockroachdb/errors"
)

// IDFormat is the wall-clock layout of a snapshot identifier. Timestamps are
// taken in UTC so chain ordering survives DST transitions.
const IDFormat = "20060102-150405"

// ID names one snapshot. The base form is a UTC timestamp at second
// resolution; when two runs collide at that resolution a numeric suffix
// ("-001", "-002", ...) disambiguates. Identifiers order lexicographically
// in allocation order: the bare ID is a prefix of its suffixed successors,
// and suffixes compare numerically because they are zero-padded.
type ID string

var idPattern = regexp.MustCompile(`^(\d{8}-\d{6})(?:-(\d{3}))?$`)

// NewID derives the base identifier for a run starting at t.
func NewID(t time.Time) ID {
	return ID(t.UTC().Format(IDFormat))
}

// WithSuffix returns the n-th collision variant of the base identifier.
func (id ID) WithSuffix(n int) ID {
	return ID(fmt.Sprintf("%s-%03d", id.Base(), n))
}

// Base strips any collision suffix.
func (id ID) Base() ID {
	m := idPattern.FindStringSubmatch(string(id))
	if m == nil {
		return id
	}
	return ID(m[1])
}

// Time returns the wall-clock instant encoded in the identifier.
func (id ID) Time() (time.Time, error) {
	m := idPattern.FindStringSubmatch(string(id))
	if m == nil {
		return time.Time{}, errors.Newf("malformed snapshot id %q", string(id))
	}
	return time.ParseInLocation(IDFormat, m[1], time.UTC)
}

// ParseID validates a directory name as a snapshot identifier. Foreign
// directories under a chain root fail here and are ignored by enumeration.
func ParseID(name string) (ID, error) {
	if !idPattern.MatchString(name) {
		return "", errors.Newf("not a snapshot id: %q", name)
	}
	if _, err := time.ParseInLocation(IDFormat, string(ID(name).Base()), time.UTC); err != nil {
		return "", errors.Wrapf(err, "not a snapshot id: %q", name)
	}
	return ID(name), nil
}

func (id ID) String() string { return string(id) }
