package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validConfig = `
logging:
  level: debug
  format: text
profiles:
  - name: home
    sources: ["/home/alice"]
    excludes: ["*.cache"]
    destination: /mnt/backup
    schedule: "0 3 * * *"
    preservePermissions: true
    minFreeSpace: 2GiB
    retention:
      - keepAllWithin: 168h
      - keepOnePer: day
        count: 7
      - maxCount: 100
`

func TestLoad_Valid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	require.Len(t, cfg.Profiles, 1)
	p := cfg.Profiles[0]
	assert.Equal(t, "home", p.Name)
	assert.Equal(t, []string{"/home/alice"}, p.Sources)
	assert.True(t, p.PreservePermissions)
	assert.Equal(t, ByteSize(2<<30), p.MinFreeSpace)
	require.Len(t, p.Retention, 3)
	assert.Equal(t, 168*time.Hour, p.Retention[0].KeepAllWithin)
	assert.Equal(t, "day", p.Retention[1].KeepOnePer)
	assert.Equal(t, 7, p.Retention[1].Count)
	assert.Equal(t, 100, p.Retention[2].MaxCount)
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("BACKUP_DEST", "/mnt/usb")

	cfg, err := Load(writeConfig(t, `
profiles:
  - name: usb
    sources: ["/data"]
    destination: $(BACKUP_DEST)/backups
`))
	require.NoError(t, err)
	assert.Equal(t, "/mnt/usb/backups", cfg.Profiles[0].Destination)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"no profiles":        `logging: {level: info}`,
		"missing name":       "profiles:\n  - sources: [\"/a\"]\n    destination: /b",
		"missing sources":    "profiles:\n  - name: x\n    destination: /b",
		"duplicate names":    "profiles:\n  - {name: x, sources: [\"/a\"], destination: /b}\n  - {name: x, sources: [\"/c\"], destination: /d}",
		"bad schedule":       "profiles:\n  - {name: x, sources: [\"/a\"], destination: /b, schedule: \"not cron\"}",
		"bad bucket period":  "profiles:\n  - name: x\n    sources: [\"/a\"]\n    destination: /b\n    retention:\n      - keepOnePer: fortnight\n        count: 2",
		"ambiguous rule":     "profiles:\n  - name: x\n    sources: [\"/a\"]\n    destination: /b\n    retention:\n      - keepOnePer: day\n        count: 2\n        maxCount: 5",
		"count without unit": "profiles:\n  - name: x\n    sources: [\"/a\"]\n    destination: /b\n    retention:\n      - keepOnePer: day",
	}

	for name, content := range cases {
		_, err := Load(writeConfig(t, content))
		assert.Error(t, err, name)
	}
}

func TestConfig_ProfileLookup(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	p, err := cfg.Profile("home")
	require.NoError(t, err)
	assert.Equal(t, "home", p.Name)

	_, err = cfg.Profile("nope")
	assert.Error(t, err)
}

func TestParseByteSize(t *testing.T) {
	cases := []struct {
		in   string
		want ByteSize
	}{
		{"0", 0},
		{"1024", 1024},
		{"500MB", 500 * 1000 * 1000},
		{"2GiB", 2 << 30},
		{"1 TiB", 1 << 40},
		{"10kib", 10 << 10},
	}
	for _, c := range cases {
		got, err := ParseByteSize(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}

	for _, bad := range []string{"", "GiB", "12XB", "-5MB"} {
		_, err := ParseByteSize(bad)
		assert.Error(t, err, bad)
	}
}
