package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "dental", cfg.Database.Name)
	assert.Equal(t, 100, cfg.Outbox.BatchSize)
	assert.Equal(t, time.Second, cfg.Outbox.PollInterval)
	assert.Equal(t, "/metrics", cfg.Monitoring.MetricsPath)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
server:
  port: 9090
database:
  host: db.internal
  name: clinic
log:
  level: debug
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))
	t.Setenv("DATABASE_HOST", "db.override")
	t.Setenv("OUTBOX_BATCH_SIZE", "10")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "db.override", cfg.Database.Host)
	assert.Equal(t, "clinic", cfg.Database.Name)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 10, cfg.Outbox.BatchSize)
}

func TestLoadConfig_InvalidPort(t *testing.T) {
	t.Setenv("SERVER_PORT", "70000")
	_, err := LoadConfig(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid server port")
}

func TestDatabaseConfig_DSN(t *testing.T) {
	c := DatabaseConfig{Host: "h", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=h port=5432 user=u password=p dbname=n sslmode=disable", c.DSN())
}

func TestConversions(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	broker := cfg.Redis.ToBrokerConfig()
	assert.Equal(t, "redis://localhost:6379/0", broker.URL)
	assert.Equal(t, "dental.", broker.ChannelPrefix)

	w := cfg.Outbox.ToWorkerConfig()
	assert.Equal(t, 100, w.BatchSize)
	assert.Equal(t, 3, w.RetryAttempts)
	assert.Equal(t, time.Hour, cfg.Outbox.CleanupInterval)
	assert.Equal(t, 8081, cfg.Monitoring.WorkerPort)
}
