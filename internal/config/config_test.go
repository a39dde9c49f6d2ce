package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 10, cfg.Context.MaxItems)
	assert.Equal(t, 0.3, cfg.Context.MinRelevance)
	assert.Equal(t, 5, cfg.Context.ConversationLimit)
	assert.False(t, cfg.Context.TolerateSourceFailures)
	assert.Equal(t, time.Duration(0), cfg.Context.KnowledgeCacheTTL)
	assert.Equal(t, 60, cfg.RateLimit.PerMinute)
	assert.Equal(t, 30*time.Second, cfg.Health.Interval)
	assert.Equal(t, "migrations", cfg.Migrations.Path)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte("server:\n  port: \"9090\"\ncontext:\n  max_items: 4\n  tolerate_source_failures: true\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))

	t.Setenv("CONTEXT_MIN_RELEVANCE", "0.5")
	t.Setenv("CONTEXT_KNOWLEDGE_CACHE_TTL", "45s")
	t.Setenv("CONTEXT_MAX_ITEMS", "7")

	cfg, err := load(dir)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 7, cfg.Context.MaxItems, "environment wins over file")
	assert.Equal(t, 0.5, cfg.Context.MinRelevance)
	assert.True(t, cfg.Context.TolerateSourceFailures)
	assert.Equal(t, 45*time.Second, cfg.Context.KnowledgeCacheTTL)
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [unclosed"), 0o600))

	_, err := load(dir)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg, err := load(t.TempDir())
		require.NoError(t, err)
		return cfg
	}

	cases := map[string]func(c *Config){
		"max items":          func(c *Config) { c.Context.MaxItems = 0 },
		"relevance below":    func(c *Config) { c.Context.MinRelevance = -0.1 },
		"relevance above":    func(c *Config) { c.Context.MinRelevance = 1.1 },
		"conversation limit": func(c *Config) { c.Context.ConversationLimit = 0 },
		"negative ttl":       func(c *Config) { c.Context.KnowledgeCacheTTL = -time.Second },
		"rate limit":         func(c *Config) { c.RateLimit.PerMinute = 0 },
		"health interval":    func(c *Config) { c.Health.Interval = 0 },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
