package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
broker:
  type: kafka
  kafka:
    brokers:
      - localhost:9092
    group_id: test-group
    input_topic: in
    output_topic: out
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Proxy.CondenserEnabled)
	assert.True(t, cfg.Proxy.CriteriaEnabled)
	assert.Equal(t, int64(1000), cfg.Proxy.CondenserWindowMs)
	assert.Equal(t, 100, cfg.Proxy.CondenserMaxBatchSize)
	assert.Equal(t, int64(500), cfg.Proxy.FlushIntervalMs)
	assert.True(t, cfg.Proxy.PreserveMessageOrder)
	assert.False(t, cfg.Proxy.EnableMetrics)
	assert.Equal(t, "timestamp", cfg.Proxy.TimestampRestoreField)
	assert.Equal(t, 1000, cfg.Proxy.ConsumerBufferSize)
	assert.Contains(t, cfg.Proxy.TimestampFieldsExclude, "created_at")
	assert.Contains(t, cfg.Proxy.TimestampFieldsExtract, "eventTime")
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
broker:
  type: kafka
  kafka:
    brokers:
      - broker-1:9092
      - broker-2:9092
    group_id: proxies
    input_topic: in
    output_topic: out
proxy:
  condenser_enabled: false
  condenser_window_ms: 250
  condenser_max_batch_size: 10
  flush_interval_ms: 100
  timestamp_restore_field: eventTime
logging:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.Proxy.CondenserEnabled)
	assert.Equal(t, int64(250), cfg.Proxy.CondenserWindowMs)
	assert.Equal(t, 10, cfg.Proxy.CondenserMaxBatchSize)
	assert.Equal(t, int64(100), cfg.Proxy.FlushIntervalMs)
	assert.Equal(t, "eventTime", cfg.Proxy.TimestampRestoreField)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Broker.Kafka.Brokers)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "missing brokers",
			content: `
broker:
  type: kafka
`,
		},
		{
			name: "unsupported broker type",
			content: `
broker:
  type: rabbitmq
  kafka:
    brokers: [localhost:9092]
`,
		},
		{
			name: "non-positive window",
			content: `
broker:
  type: kafka
  kafka:
    brokers: [localhost:9092]
proxy:
  condenser_window_ms: 0
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestProxyPresets(t *testing.T) {
	pt := PassThrough()
	assert.False(t, pt.CondenserEnabled)
	assert.False(t, pt.CriteriaEnabled)

	ht := HighThroughput()
	assert.Equal(t, int64(500), ht.CondenserWindowMs)
	assert.Equal(t, 500, ht.CondenserMaxBatchSize)
	assert.Equal(t, int64(250), ht.FlushIntervalMs)
	assert.True(t, ht.CondenserEnabled)
}

func TestRetryConfigPolicy(t *testing.T) {
	policy := RetryConfig{}.Policy()
	assert.Equal(t, 3, policy.MaxAttempts)

	custom := RetryConfig{
		MaxAttempts:     5,
		InitialInterval: 2 * time.Second,
		Multiplier:      1.5,
	}.Policy()
	assert.Equal(t, 5, custom.MaxAttempts)
	assert.Equal(t, 2*time.Second, custom.InitialInterval)
	assert.Equal(t, 1.5, custom.Multiplier)
	assert.Equal(t, 30*time.Second, custom.MaxInterval)
}
