package config

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// ByteSize is a byte count that unmarshals from YAML either as a plain
// integer or as a string with a binary or decimal unit suffix ("1GiB",
// "500MB").
type ByteSize uint64

var sizeUnits = map[string]uint64{
	"":    1,
	"B":   1,
	"KB":  1000,
	"MB":  1000 * 1000,
	"GB":  1000 * 1000 * 1000,
	"TB":  1000 * 1000 * 1000 * 1000,
	"KIB": 1 << 10,
	"MIB": 1 << 20,
	"GIB": 1 << 30,
	"TIB": 1 << 40,
}

func ParseByteSize(s string) (ByteSize, error) {
	trimmed := strings.TrimSpace(s)
	i := len(trimmed)
	for i > 0 && !isDigit(trimmed[i-1]) {
		i--
	}

	num, unit := strings.TrimSpace(trimmed[:i]), strings.ToUpper(strings.TrimSpace(trimmed[i:]))
	mult, ok := sizeUnits[unit]
	if !ok {
		return 0, errors.Newf("unknown size unit %q", unit)
	}

	n, err := strconv.ParseUint(num, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid size %q", s)
	}

	return ByteSize(n * mult), nil
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func (b *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ParseByteSize(raw)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}
