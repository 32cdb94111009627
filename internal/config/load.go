package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/cockroachdb/errors"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// matches $(VAR_NAME)
var envPattern = regexp.MustCompile(`\$\(([A-Za-z0-9_]+)\)`)

// replaces $(VAR) with os.Getenv(VAR)
func expandEnvVars(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(m string) string {
		key := mapEnvKey(envPattern.FindStringSubmatch(m)[1])
		return os.Getenv(key)
	})
}

func Load(path string) (*Config, error) {
	// read raw YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// expand $(ENV_VAR) placeholders
	expanded := expandEnvVars(string(data))

	// unmarshal into struct
	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks profile shape without touching the filesystem. Source
// readability is checked at run time, since sources may live on removable
// media that is absent when the daemon starts.
func (c *Config) Validate() error {
	if len(c.Profiles) == 0 {
		return errors.New("no profiles configured")
	}

	seen := map[string]bool{}
	for i := range c.Profiles {
		p := &c.Profiles[i]
		if p.Name == "" {
			return errors.Newf("profile %d: name is required", i)
		}
		if seen[p.Name] {
			return errors.Newf("profile %q: duplicate name", p.Name)
		}
		seen[p.Name] = true

		if len(p.Sources) == 0 {
			return errors.Newf("profile %q: at least one source is required", p.Name)
		}
		if p.Destination == "" {
			return errors.Newf("profile %q: destination is required", p.Name)
		}
		if p.Schedule != "" {
			if _, err := cron.ParseStandard(p.Schedule); err != nil {
				return errors.Wrapf(err, "profile %q: invalid schedule", p.Name)
			}
		}
		for _, r := range p.Retention {
			if err := validateRule(r); err != nil {
				return errors.Wrapf(err, "profile %q", p.Name)
			}
		}
	}

	return nil
}

func validateRule(r RetentionRule) error {
	set := 0
	if r.KeepAllWithin > 0 {
		set++
	}
	if r.KeepOnePer != "" {
		set++
		switch r.KeepOnePer {
		case "day", "week", "month", "year":
		default:
			return errors.Newf("invalid keepOnePer period %q", r.KeepOnePer)
		}
		if r.Count <= 0 {
			return errors.New("keepOnePer requires a positive count")
		}
	}
	if r.MaxCount > 0 {
		set++
	}
	if set != 1 {
		return errors.New("retention rule must set exactly one of keepAllWithin, keepOnePer, maxCount")
	}
	return nil
}

// Profile returns the named profile.
func (c *Config) Profile(name string) (*Profile, error) {
	for i := range c.Profiles {
		if c.Profiles[i].Name == name {
			return &c.Profiles[i], nil
		}
	}
	return nil, errors.Newf("unknown profile %q", name)
}
