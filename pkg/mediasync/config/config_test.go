package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/virgula/mediasync/pkg/mediasync"
	"github.com/virgula/mediasync/pkg/mediasync/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, []mediasync.Host{mediasync.HostLocal}, cfg.Engines)
	assert.Equal(t, 1, cfg.LocalMaxParallel)
	assert.Equal(t, 5*time.Minute, cfg.UploadInterval)
	assert.Equal(t, 2*time.Minute, cfg.PollInterval)
	assert.Equal(t, 60*time.Minute, cfg.DeleteInterval)
	assert.Equal(t, 50, cfg.CheckStatusMaxAttempts)
	assert.Equal(t, "memory", cfg.DatabaseType)
	assert.Equal(t, "memory", cfg.Storage.Type)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"no engines", func(c *config.Config) { c.Engines = nil }},
		{"unknown engine", func(c *config.Config) { c.Engines = []mediasync.Host{"vimeo"} }},
		{"zero interval", func(c *config.Config) { c.PollInterval = 0 }},
		{"zero attempt cap", func(c *config.Config) { c.CheckStatusMaxAttempts = 0 }},
		{"bad database type", func(c *config.Config) { c.DatabaseType = "mysql" }},
		{"postgres without url", func(c *config.Config) { c.DatabaseType = "postgres" }},
		{"fs storage without base dir", func(c *config.Config) { c.Storage.Type = "fs" }},
		{"s3 storage without bucket", func(c *config.Config) { c.Storage.Type = "s3" }},
		{"unknown storage type", func(c *config.Config) { c.Storage.Type = "ftp" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(func(c *config.Config) error {
				tt.mutate(c)
				return nil
			})
			assert.Error(t, err)
		})
	}
}

func TestBuildService(t *testing.T) {
	t.Run("memory stack with all engines", func(t *testing.T) {
		cfg, err := config.Load(func(c *config.Config) error {
			c.Engines = []mediasync.Host{mediasync.HostLocal, mediasync.HostUOLMais, mediasync.HostYouTube}
			return nil
		})
		require.NoError(t, err)

		svc, err := cfg.BuildService(nil)
		require.NoError(t, err)
		assert.NotNil(t, svc)
	})

	t.Run("fs storage", func(t *testing.T) {
		cfg, err := config.Load(func(c *config.Config) error {
			c.Storage.Type = "fs"
			c.Storage.BaseDir = t.TempDir()
			return nil
		})
		require.NoError(t, err)

		svc, err := cfg.BuildService(nil)
		require.NoError(t, err)
		assert.NotNil(t, svc)
	})

	t.Run("bad embed template fails the build", func(t *testing.T) {
		cfg, err := config.Load(func(c *config.Config) error {
			c.Engines = []mediasync.Host{mediasync.HostUOLMais}
			c.AudioEmbedTemplate = "{{.MediaID"
			return nil
		})
		require.NoError(t, err)

		_, err = cfg.BuildService(nil)
		assert.Error(t, err)
	})
}
