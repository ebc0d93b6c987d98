package conf

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 3, cfg.Pipeline.RetryAttempts)
	assert.Equal(t, 2*time.Second, cfg.Pipeline.RetryBaseDelay)
	assert.Equal(t, 4, cfg.Pipeline.OnDemandQuota)
	assert.Equal(t, 100, cfg.Pipeline.MinContentLength)
	assert.Equal(t, []string{"cybersecurity", "artificial intelligence"}, cfg.Schedule.Topics)
}

func TestLoadConfigFileAndEnvExpansion(t *testing.T) {
	t.Setenv("TEST_EXA_KEY", "exa-secret")
	path := writeConfig(t, `
database:
  driver: postgres
  dsn: postgres://feed@localhost/feed
exa:
  apiKey: ${TEST_EXA_KEY}
pipeline:
  interStageDelay: 50ms
  onDemandQuota: 2
schedule:
  topics: [golang]
  categories: [releases, talks]
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "exa-secret", cfg.Exa.APIKey)
	assert.Equal(t, 50*time.Millisecond, cfg.Pipeline.InterStageDelay)
	assert.Equal(t, 2, cfg.Pipeline.OnDemandQuota)
	assert.Equal(t, []string{"releases", "talks"}, cfg.Schedule.Categories)
}

func TestLoadConfigRejectsUnknownDriver(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: oracle
`)
	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigRSSFeeds(t *testing.T) {
	path := writeConfig(t, `
rss:
  feeds:
    - https://lwn.net/headlines/rss
  maxAge: 24h
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://lwn.net/headlines/rss"}, cfg.RSS.Feeds)
	assert.Equal(t, 24*time.Hour, cfg.RSS.MaxAge)
	assert.Equal(t, 20*time.Second, cfg.RSS.Timeout)
}

func TestLoadConfigRejectsOverlongTopic(t *testing.T) {
	path := writeConfig(t, "schedule:\n  topics: [\""+strings.Repeat("x", 129)+"\"]\n")
	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "exceeds 128 characters")
}
