package config

import (
	"time"

	"mqproxy/pkg/retry"
)

type Config struct {
	Server         ServerConfig
	Broker         BrokerConfig
	Logging        LoggingConfig
	Proxy          ProxyConfig
	CircuitBreaker CircuitBreakerConfig
}

type ServerConfig struct {
	Port                int           `mapstructure:"port"`
	ReadTimeoutSeconds  time.Duration `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds time.Duration `mapstructure:"write_timeout_seconds"`
}

type BrokerConfig struct {
	Type  string      `mapstructure:"type"`
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers     []string    `mapstructure:"brokers"`
	GroupID     string      `mapstructure:"group_id"`
	InputTopic  string      `mapstructure:"input_topic"`
	OutputTopic string      `mapstructure:"output_topic"`
	Retry       RetryConfig `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

// Policy converts the section into a retry policy, falling back to the
// package defaults for unset knobs.
func (c RetryConfig) Policy() retry.Policy {
	policy := retry.DefaultPolicy()
	if c.MaxAttempts > 0 {
		policy.MaxAttempts = c.MaxAttempts
	}
	if c.InitialInterval > 0 {
		policy.InitialInterval = c.InitialInterval
	}
	if c.MaxInterval > 0 {
		policy.MaxInterval = c.MaxInterval
	}
	if c.Multiplier > 0 {
		policy.Multiplier = c.Multiplier
	}
	if c.MaxElapsedTime > 0 {
		policy.MaxElapsedTime = c.MaxElapsedTime
	}
	return policy
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ProxyConfig controls the condensation and criteria behavior of a wrapped
// producer and the expansion behavior of a wrapped consumer. Immutable once
// loaded.
type ProxyConfig struct {
	CondenserEnabled       bool     `mapstructure:"condenser_enabled"`
	CriteriaEnabled        bool     `mapstructure:"criteria_enabled"`
	CondenserWindowMs      int64    `mapstructure:"condenser_window_ms"`
	CondenserMaxBatchSize  int      `mapstructure:"condenser_max_batch_size"`
	FlushIntervalMs        int64    `mapstructure:"flush_interval_ms"`
	PreserveMessageOrder   bool     `mapstructure:"preserve_message_order"`
	EnableMetrics          bool     `mapstructure:"enable_metrics"`
	TimestampFieldsExclude []string `mapstructure:"timestamp_fields_exclude"`
	TimestampFieldsExtract []string `mapstructure:"timestamp_fields_extract"`
	TimestampRestoreField  string   `mapstructure:"timestamp_restore_field"`
	ConsumerBufferSize     int      `mapstructure:"consumer_buffer_size"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

// DefaultProxy returns the stock proxy configuration: condenser and criteria
// on, one-second window, batches of 100, half-second flush interval.
func DefaultProxy() ProxyConfig {
	return ProxyConfig{
		CondenserEnabled:      true,
		CriteriaEnabled:       true,
		CondenserWindowMs:     1000,
		CondenserMaxBatchSize: 100,
		FlushIntervalMs:       500,
		PreserveMessageOrder:  true,
		EnableMetrics:         false,
		TimestampFieldsExclude: []string{
			"timestamp", "time", "datetime", "date", "ts",
			"createdAt", "created_at", "updatedAt", "updated_at",
			"eventTime", "event_time",
		},
		TimestampFieldsExtract: []string{
			"timestamp", "time", "datetime", "ts",
			"createdAt", "created_at", "eventTime", "event_time",
		},
		TimestampRestoreField: "timestamp",
		ConsumerBufferSize:    1000,
	}
}

// PassThrough returns a configuration with both the condenser and criteria
// disabled; the proxy forwards every message untouched.
func PassThrough() ProxyConfig {
	cfg := DefaultProxy()
	cfg.CondenserEnabled = false
	cfg.CriteriaEnabled = false
	return cfg
}

// HighThroughput returns a configuration tuned for dense traffic: shorter
// window, larger batches, faster flushing.
func HighThroughput() ProxyConfig {
	cfg := DefaultProxy()
	cfg.CondenserWindowMs = 500
	cfg.CondenserMaxBatchSize = 500
	cfg.FlushIntervalMs = 250
	return cfg
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
