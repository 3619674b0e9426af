package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmwgo/server/internal/config"
)

func TestConfigPath(t *testing.T) {
	t.Setenv("TMWSERV_CONFIG", "")
	assert.Equal(t, "config/server.toml", configPath(""))

	t.Setenv("TMWSERV_CONFIG", "/etc/tmwserv.toml")
	assert.Equal(t, "/etc/tmwserv.toml", configPath(""))
	assert.Equal(t, "local.toml", configPath("local.toml"))
}

func TestSessionOptions(t *testing.T) {
	cfg := config.Defaults()
	opts := sessionOptions(cfg)
	assert.Equal(t, cfg.Network.InQueueSize, opts.InQueueSize)
	assert.Equal(t, cfg.RateLimit.PacketsPerSecond, opts.PacketsPerSecond)

	cfg.RateLimit.Enabled = false
	assert.Zero(t, sessionOptions(cfg).PacketsPerSecond)
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		log, err := newLogger(config.LoggingConfig{Level: "debug", Format: format})
		require.NoError(t, err)
		assert.True(t, log.Core().Enabled(-1), format)
	}

	log, err := newLogger(config.LoggingConfig{Level: "nonsense", Format: "console"})
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(-1), "falls back to info")
}

func TestDisplayWidth(t *testing.T) {
	assert.Equal(t, 5, displayWidth("hello"))
	assert.Equal(t, 6, displayWidth("資料庫"))
}

func TestRootCommandHasSubcommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"game", "account", "standalone", "migrate"})
}
