// Package config defines the engine configuration and its YAML loading.
package config

import "time"

type Config struct {
	Logging  LoggingConfig `yaml:"logging"`
	Profiles []Profile     `yaml:"profiles"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // "info", "debug", etc.
	Format string `yaml:"format"` // "json", "text"
}

// Profile describes one backup job: what to copy, where to, and how long
// to keep it.
type Profile struct {
	Name        string   `yaml:"name"`
	Sources     []string `yaml:"sources"`
	Excludes    []string `yaml:"excludes"`
	Destination string   `yaml:"destination"`

	// Schedule is a cron expression, used only in daemon mode.
	Schedule string `yaml:"schedule"`

	PreservePermissions bool `yaml:"preservePermissions"`
	Checksum            bool `yaml:"checksum"`
	CopySparse          bool `yaml:"copySparse"`

	// MinFreeSpace is the free-space floor on the destination. A run aborts
	// before transfer when the destination is below it, and retention prunes
	// old snapshots down to it.
	MinFreeSpace ByteSize `yaml:"minFreeSpace"`

	Retention []RetentionRule `yaml:"retention"`
}

// RetentionRule is one declarative keep rule. Exactly one of the fields is
// set per rule; a snapshot survives pruning if any rule keeps it.
type RetentionRule struct {
	KeepAllWithin time.Duration `yaml:"keepAllWithin"`
	KeepOnePer    string        `yaml:"keepOnePer"` // "day", "week", "month", "year"
	Count         int           `yaml:"count"`      // paired with keepOnePer
	MaxCount      int           `yaml:"maxCount"`
}
