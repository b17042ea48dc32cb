package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	defaults := DefaultProxy()
	viper.SetDefault("proxy.condenser_enabled", defaults.CondenserEnabled)
	viper.SetDefault("proxy.criteria_enabled", defaults.CriteriaEnabled)
	viper.SetDefault("proxy.condenser_window_ms", defaults.CondenserWindowMs)
	viper.SetDefault("proxy.condenser_max_batch_size", defaults.CondenserMaxBatchSize)
	viper.SetDefault("proxy.flush_interval_ms", defaults.FlushIntervalMs)
	viper.SetDefault("proxy.preserve_message_order", defaults.PreserveMessageOrder)
	viper.SetDefault("proxy.enable_metrics", defaults.EnableMetrics)
	viper.SetDefault("proxy.timestamp_fields_exclude", defaults.TimestampFieldsExclude)
	viper.SetDefault("proxy.timestamp_fields_extract", defaults.TimestampFieldsExtract)
	viper.SetDefault("proxy.timestamp_restore_field", defaults.TimestampRestoreField)
	viper.SetDefault("proxy.consumer_buffer_size", defaults.ConsumerBufferSize)

	viper.SetDefault("broker.type", "kafka")
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

func bindEnvVariables() {
	viper.BindEnv("broker.kafka.brokers", "BROKER_KAFKA_BROKERS")
	viper.BindEnv("broker.kafka.group_id", "BROKER_KAFKA_GROUP_ID")
	viper.BindEnv("broker.kafka.input_topic", "BROKER_KAFKA_INPUT_TOPIC")
	viper.BindEnv("broker.kafka.output_topic", "BROKER_KAFKA_OUTPUT_TOPIC")

	viper.BindEnv("server.port", "SERVER_PORT")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("proxy.condenser_enabled", "PROXY_CONDENSER_ENABLED")
	viper.BindEnv("proxy.criteria_enabled", "PROXY_CRITERIA_ENABLED")
	viper.BindEnv("proxy.condenser_window_ms", "PROXY_CONDENSER_WINDOW_MS")
	viper.BindEnv("proxy.condenser_max_batch_size", "PROXY_CONDENSER_MAX_BATCH_SIZE")
	viper.BindEnv("proxy.flush_interval_ms", "PROXY_FLUSH_INTERVAL_MS")
}

func applyEnvOverrides(cfg *Config) error {
	if brokersEnv := viper.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		cfg.Broker.Kafka.Brokers = brokers
	}
	return nil
}
