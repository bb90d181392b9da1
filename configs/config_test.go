package configs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg, err := NewConfig(t.Name() + "-missing")
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, filepath.Join("data", "Classrooms.txt"), cfg.ClassroomFile)
	assert.Equal(t, "file", cfg.OfflineStoreDriver)
	assert.Equal(t, 7*24*time.Hour, cfg.RetentionHorizon)
	assert.Equal(t, time.Hour, cfg.SweepInterval)
	assert.Equal(t, 5*time.Second, cfg.SessionWriteTimeout)
	assert.False(t, cfg.KafkaEnabled())
	assert.False(t, cfg.IsDevelopment())
}

func TestNewConfig_EnvOverrides(t *testing.T) {
	t.Setenv("DATA_DIR", "/var/lib/notifier")
	t.Setenv("RETENTION_HORIZON", "48h")
	t.Setenv("SESSION_WRITE_TIMEOUT", "750ms")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("APP_ENV", "development")
	t.Setenv("BACKOFF_BASE_DELAY_MS", "50")

	cfg, err := NewConfig(t.Name() + "-missing")
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/notifier", cfg.DataDir)
	assert.Equal(t, filepath.Join("/var/lib/notifier", "Classrooms.txt"), cfg.ClassroomFile)
	assert.Equal(t, 48*time.Hour, cfg.RetentionHorizon)
	assert.Equal(t, 750*time.Millisecond, cfg.SessionWriteTimeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled())
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 50*time.Millisecond, cfg.QueueConsumer().BackoffBaseDelay)
	assert.Equal(t, 10*time.Second, cfg.QueueConsumer().BackoffMaxDelay)
}

func TestNewConfig_ReadsDotEnv(t *testing.T) {
	base, err := GetBasePath("")
	require.NoError(t, err)
	dir, err := os.MkdirTemp(base, "cfgtest")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("OFFLINE_STORE_DRIVER=redis\nREDIS_DB=2\nSWEEP_INTERVAL=15m\n"), 0o644))

	cfg, err := NewConfig(filepath.Base(dir))
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.OfflineStoreDriver)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, 15*time.Minute, cfg.SweepInterval)
}

func TestConfigValidate(t *testing.T) {
	valid := Config{DataDir: "d", RetentionHorizon: time.Hour, SweepInterval: time.Minute, SessionWriteTimeout: time.Second}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "Empty DataDir", mutate: func(c *Config) { c.DataDir = "" }},
		{name: "Zero Horizon", mutate: func(c *Config) { c.RetentionHorizon = 0 }},
		{name: "Zero Interval", mutate: func(c *Config) { c.SweepInterval = 0 }},
		{name: "Zero Write Timeout", mutate: func(c *Config) { c.SessionWriteTimeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
