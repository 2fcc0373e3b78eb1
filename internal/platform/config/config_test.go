package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "@every 15s", cfg.SnapshotRefreshSpec)
	assert.Equal(t, "routing.route", cfg.RouteRequestSubject)
	assert.Equal(t, time.Second, cfg.DecisionFlushInterval)
	assert.Equal(t, 30*time.Second, cfg.BreakerOpenTimeout)
	assert.Positive(t, cfg.DecisionQueueSize)
	assert.Positive(t, cfg.DecisionBatchSize)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("APP_DECISION_BATCH_SIZE", "50")
	t.Setenv("APP_DECISION_FLUSH_INTERVAL", "250ms")
	t.Setenv("APP_LOG_FORMAT", "text")
	t.Setenv("APP_BREAKER_MAX_FAILURES", "9")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.DecisionBatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.DecisionFlushInterval)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, uint32(9), cfg.BreakerMaxFailures)
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv("APP_DECISION_QUEUE_SIZE", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DECISION_QUEUE_SIZE")
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			PostgresDSN:           "postgres://localhost/db",
			DecisionQueueSize:     10,
			DecisionBatchSize:     5,
			DecisionFlushInterval: time.Second,
			SnapshotRefreshSpec:   "@every 15s",
			RouteRequestSubject:   "routing.route",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "Valid", mutate: func(*Config) {}},
		{name: "EmptyDSN", mutate: func(c *Config) { c.PostgresDSN = "" }, wantErr: "POSTGRES_DSN"},
		{name: "ZeroQueue", mutate: func(c *Config) { c.DecisionQueueSize = 0 }, wantErr: "DECISION_QUEUE_SIZE"},
		{name: "NegativeBatch", mutate: func(c *Config) { c.DecisionBatchSize = -1 }, wantErr: "DECISION_BATCH_SIZE"},
		{name: "ZeroFlushInterval", mutate: func(c *Config) { c.DecisionFlushInterval = 0 }, wantErr: "DECISION_FLUSH_INTERVAL"},
		{name: "EmptySchedule", mutate: func(c *Config) { c.SnapshotRefreshSpec = "" }, wantErr: "SNAPSHOT_REFRESH_SPEC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
