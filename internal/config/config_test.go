package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLoader(t *testing.T, env Environment, vars map[string]string) (*Loader, string) {
	t.Helper()
	dir := t.TempDir()
	l := NewLoader(dir, env)
	l.lookupEnv = func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
	return l, dir
}

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestLoaderDefaults(t *testing.T) {
	l, _ := newTestLoader(t, Development, nil)

	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Broadcast.KeepAlive)
	assert.Equal(t, 10, cfg.Broadcast.MaxConnectionsPerUser)
	assert.Equal(t, 5.0, cfg.Canvas.ClickThreshold)
	assert.Equal(t, 0.3, cfg.Canvas.Zoom.Min)
	assert.Equal(t, 2.0, cfg.Canvas.Zoom.Max)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, developmentSecret, cfg.Auth.JWTSecret)
	assert.Equal(t, []string{"defaults", "environment"}, cfg.LoadedFrom)
}

func TestLoaderLayering(t *testing.T) {
	t.Run("Should apply files then environment variables", func(t *testing.T) {
		l, dir := newTestLoader(t, Staging, map[string]string{
			"SERVER_PORT": "9090",
			"JWT_SECRET":  "from-env",
			"NATS_URL":    "nats://bus:4222",
		})
		writeFile(t, dir, "base.yaml", "server:\n  port: 7000\nbroadcast:\n  keepAlive: 45s\n")
		writeFile(t, dir, "staging.yaml", "storage:\n  driver: postgres\n  postgresDSN: postgres://canvas@db/canvas\n")

		cfg, err := l.Load()
		require.NoError(t, err)

		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, 45*time.Second, cfg.Broadcast.KeepAlive)
		assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
		assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
		assert.True(t, cfg.NATS.Enabled)
		assert.Len(t, cfg.LoadedFrom, 4)
	})

	t.Run("Should ignore local overrides outside development", func(t *testing.T) {
		l, dir := newTestLoader(t, Staging, map[string]string{"JWT_SECRET": "s"})
		writeFile(t, dir, "local.yaml", "server:\n  port: 1234\n")

		cfg, err := l.Load()
		require.NoError(t, err)
		assert.Equal(t, 8080, cfg.Server.Port)
	})

	t.Run("Should reject unknown keys", func(t *testing.T) {
		l, dir := newTestLoader(t, Development, nil)
		writeFile(t, dir, "base.yaml", "server:\n  prot: 1\n")

		_, err := l.Load()
		assert.Error(t, err)
	})

	t.Run("Should report malformed variables", func(t *testing.T) {
		l, _ := newTestLoader(t, Development, map[string]string{"KEEPALIVE_INTERVAL": "soon"})
		_, err := l.Load()
		assert.ErrorContains(t, err, "KEEPALIVE_INTERVAL")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing secret", func(c *Config) { c.Auth.JWTSecret = "" }, "jwtSecret"},
		{"auth off in production", func(c *Config) { c.Environment = Production; c.Auth.Enabled = false }, "production"},
		{"postgres without dsn", func(c *Config) { c.Storage.Driver = DriverPostgres }, "postgresDSN"},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "cassandra" }, "storage driver"},
		{"inverted zoom", func(c *Config) { c.Canvas.Zoom.Min = 3 }, "canvas.zoom"},
		{"zero keepalive", func(c *Config) { c.Broadcast.KeepAlive = 0 }, "keepAlive"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Auth.JWTSecret = "secret"
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	t.Run("Should accept defaults with a secret", func(t *testing.T) {
		cfg := Default()
		cfg.Auth.JWTSecret = "secret"
		assert.NoError(t, cfg.Validate())
	})
}

func TestWatcherReloads(t *testing.T) {
	l, dir := newTestLoader(t, Development, nil)
	writeFile(t, dir, "base.yaml", "logging:\n  level: info\n")

	cfg, err := l.Load()
	require.NoError(t, err)

	w, err := NewWatcher(l, cfg, zap.NewNop())
	require.NoError(t, err)
	defer w.Close()

	changed := make(chan *Config, 1)
	w.OnChange(func(c *Config) { changed <- c })

	writeFile(t, dir, "base.yaml", "logging:\n  level: debug\n")

	select {
	case next := <-changed:
		assert.Equal(t, "debug", next.Logging.Level)
		assert.Equal(t, "debug", w.Current().Logging.Level)
	case <-time.After(5 * time.Second):
		t.Fatal("configuration was not reloaded")
	}
}

func TestWatcherDisabledOutsideDevelopment(t *testing.T) {
	l, _ := newTestLoader(t, Production, map[string]string{"JWT_SECRET": "s"})
	cfg, err := l.Load()
	require.NoError(t, err)

	w, err := NewWatcher(l, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, w.watcher)
	assert.Same(t, cfg, w.Current())
}

func TestWatcherReloadNotifiesCallbacks(t *testing.T) {
	l, dir := newTestLoader(t, Production, map[string]string{"JWT_SECRET": "s"})
	writeFile(t, dir, "base.yaml", "logging:\n  level: info\n")
	cfg, err := l.Load()
	require.NoError(t, err)

	w, err := NewWatcher(l, cfg, zap.NewNop())
	require.NoError(t, err)

	var seen []string
	w.OnChange(func(c *Config) {
		seen = append(seen, "first:"+c.Logging.Level)
		w.OnChange(func(*Config) { seen = append(seen, "late") })
	})
	w.OnChange(func(c *Config) { seen = append(seen, "second:"+c.Logging.Level) })

	t.Run("Should call every callback registered before the reload", func(t *testing.T) {
		writeFile(t, dir, "base.yaml", "logging:\n  level: warn\n")
		w.reload()
		assert.Equal(t, []string{"first:warn", "second:warn"}, seen)
		assert.Equal(t, "warn", w.Current().Logging.Level)
	})

	t.Run("Should skip callbacks when nothing changed", func(t *testing.T) {
		seen = nil
		w.reload()
		assert.Empty(t, seen)
	})
}
