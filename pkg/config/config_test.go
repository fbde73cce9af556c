package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rycus86/localbus/pkg/cache"
	"github.com/rycus86/localbus/pkg/timetables"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, timetables.DefaultRemoteURL, cfg.RemoteURL)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout)
	assert.Equal(t, "file", cfg.Cache.Backend)
	assert.Equal(t, cache.DefaultKey, cfg.Cache.Key)
	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.Equal(t, 5*time.Minute, cfg.Server.RefreshInterval)
	assert.Equal(t, 5, cfg.Notify.LeadMinutes)
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, `
remote_url: https://example.com/timetable.json
fetch_timeout: 5s
cache:
  backend: redis
  key: test_key
  redis:
    address: redis:6379
    database: 2
server:
  listen: ":9090"
  refresh_interval: 1m
notify:
  nats_url: nats://nats:4222
  lead_minutes: 10
log:
  format: JSON
  debug: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/timetable.json", cfg.RemoteURL)
	assert.Equal(t, 5*time.Second, cfg.FetchTimeout)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, "test_key", cfg.Cache.Key)
	assert.Equal(t, "redis:6379", cfg.Cache.Redis.Address)
	assert.Equal(t, 2, cfg.Cache.Redis.Database)
	assert.Equal(t, ":9090", cfg.Server.Listen)
	assert.Equal(t, time.Minute, cfg.Server.RefreshInterval)
	assert.Equal(t, "nats://nats:4222", cfg.Notify.NATSURL)
	assert.Equal(t, "localbus.reminders", cfg.Notify.Subject, "unset keys keep their default")
	assert.Equal(t, 10, cfg.Notify.LeadMinutes)
	assert.Equal(t, "JSON", cfg.Log.Format)
	assert.True(t, cfg.Log.Debug)
}

func TestEnvironmentOverridesYAML(t *testing.T) {
	path := writeConfig(t, "server:\n  listen: \":9090\"\n")

	t.Setenv("LOCALBUS_LISTEN", ":7070")
	t.Setenv("LOCALBUS_CACHE_BACKEND", "memory")
	t.Setenv("LOCALBUS_REFRESH_INTERVAL", "90s")
	t.Setenv("LOCALBUS_REDIS_DATABASE", "3")
	t.Setenv("LOCALBUS_DEBUG", "YES")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Listen)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 90*time.Second, cfg.Server.RefreshInterval)
	assert.Equal(t, 3, cfg.Cache.Redis.Database)
	assert.True(t, cfg.Log.Debug)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	t.Run("unknown cache backend", func(t *testing.T) {
		_, err := Load(writeConfig(t, "cache:\n  backend: sqlite\n"))
		assert.Error(t, err)
	})

	t.Run("bad remote url", func(t *testing.T) {
		_, err := Load(writeConfig(t, "remote_url: not a url\n"))
		assert.Error(t, err)
	})

	t.Run("bad duration in environment", func(t *testing.T) {
		t.Setenv("LOCALBUS_FETCH_TIMEOUT", "soon")
		_, err := Load("")
		assert.ErrorContains(t, err, "LOCALBUS_FETCH_TIMEOUT")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "server: [\n"))
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
		assert.Error(t, err)
	})
}
