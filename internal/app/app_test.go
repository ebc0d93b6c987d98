package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/iceymoss/go-feed/internal/conf"
	"github.com/iceymoss/go-feed/internal/provider"
	"github.com/iceymoss/go-feed/internal/provider/exa"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvidersExaOnly(t *testing.T) {
	cfg, err := conf.LoadConfig("")
	require.NoError(t, err)
	cfg.Pipeline.FetchPages = false

	d, _, e := providers(cfg)
	assert.IsType(t, &exa.Client{}, d)
	chain, ok := e.(provider.EnricherChain)
	require.True(t, ok)
	assert.Len(t, chain, 1)
}

func TestProvidersWithFeeds(t *testing.T) {
	cfg, err := conf.LoadConfig("")
	require.NoError(t, err)
	cfg.RSS.Feeds = []string{"https://lwn.net/headlines/rss"}

	d, _, e := providers(cfg)
	assert.IsType(t, &provider.MultiDiscoverer{}, d)
	assert.Len(t, e.(provider.EnricherChain), 2)
}

func TestBlockedWords(t *testing.T) {
	f, err := blockedWords(conf.PipelineConfig{})
	require.NoError(t, err)
	assert.Nil(t, f)

	path := filepath.Join(t.TempDir(), "words.txt")
	require.NoError(t, os.WriteFile(path, []byte("casino\n"), 0o644))
	f, err = blockedWords(conf.PipelineConfig{BlockedWords: []string{"sponsored"}, BlockedWordsFile: path})
	require.NoError(t, err)
	require.NotNil(t, f)

	blocked, word := f.Blocked("Best Casino bonuses")
	assert.True(t, blocked)
	assert.Equal(t, "casino", word)
	blocked, _ = f.Blocked("a sponsored post")
	assert.True(t, blocked)
	blocked, _ = f.Blocked("kernel release notes")
	assert.False(t, blocked)

	_, err = blockedWords(conf.PipelineConfig{BlockedWordsFile: filepath.Join(t.TempDir(), "missing.txt")})
	assert.Error(t, err)
}

func TestOptions(t *testing.T) {
	cfg, err := conf.LoadConfig("")
	require.NoError(t, err)
	a := &App{Config: cfg}

	assert.Equal(t, 0, a.ScheduledOptions().MaxNewSummaries)
	assert.Equal(t, cfg.Pipeline.OnDemandQuota, a.OnDemandOptions().MaxNewSummaries)
	assert.Equal(t, cfg.Pipeline.RetryAttempts, a.OnDemandOptions().RetryAttempts)
}
