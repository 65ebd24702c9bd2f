package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadConfigCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := ReadConfig(path)
	require.ErrorIs(t, err, ErrCreated)
	assert.Equal(t, Default(), cfg)
	assert.FileExists(t, path)

	// The written default must load cleanly on the next start.
	cfg, err = ReadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8686, cfg.Server.Port)
	assert.Equal(t, StrategyThreadPerClient, cfg.Server.Strategy)
	assert.Equal(t, "1.2", cfg.Stomp.Version)
}

func TestReadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"server":{"port":7000,"strategy":"reactor"},"store":{"driver":"mongo"}}`), 0644))

	cfg, err := ReadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, StrategyReactor, cfg.Server.Strategy)
	assert.Equal(t, DriverMongo, cfg.Store.Driver)
	assert.Equal(t, 1<<20, cfg.Server.MaxFrameSize, "unset keys keep their defaults")
}

func TestReadConfigInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"server":`), 0644))

	_, err := ReadConfig(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"default", func(*Config) {}, true},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, false},
		{"bad strategy", func(c *Config) { c.Server.Strategy = "epoll" }, false},
		{"bad frame size", func(c *Config) { c.Server.MaxFrameSize = 0 }, false},
		{"missing stomp host", func(c *Config) { c.Stomp.Host = "" }, false},
		{"bad driver", func(c *Config) { c.Store.Driver = "sqlite" }, false},
		{"bad duration", func(c *Config) { c.Database.OperationTimeout = "soon" }, false},
		{"websocket port checked when enabled", func(c *Config) {
			c.WebSocket.Enabled = true
			c.WebSocket.Port = 0
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
