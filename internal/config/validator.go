package config

import (
	"fmt"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errors []error

	if err := validateBroker(cfg.Broker); err != nil {
		errors = append(errors, err)
	}

	if err := ValidateProxy(cfg.Proxy); err != nil {
		errors = append(errors, err)
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func validateBroker(cfg BrokerConfig) error {
	if cfg.Type == "" {
		return &ValidationError{Field: "broker.type", Message: "broker type is required"}
	}
	if cfg.Type != "kafka" {
		return &ValidationError{Field: "broker.type", Message: fmt.Sprintf("unsupported broker type: %s", cfg.Type)}
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return &ValidationError{Field: "broker.kafka.brokers", Message: "at least one broker address is required"}
	}
	return nil
}

// ValidateProxy checks the proxy section on its own; library users building
// a ProxyConfig in code can call it directly.
func ValidateProxy(cfg ProxyConfig) error {
	if cfg.CondenserWindowMs <= 0 {
		return &ValidationError{Field: "proxy.condenser_window_ms", Message: "window must be positive"}
	}
	if cfg.CondenserMaxBatchSize <= 0 {
		return &ValidationError{Field: "proxy.condenser_max_batch_size", Message: "batch size must be positive"}
	}
	if cfg.FlushIntervalMs <= 0 {
		return &ValidationError{Field: "proxy.flush_interval_ms", Message: "flush interval must be positive"}
	}
	if cfg.ConsumerBufferSize <= 0 {
		return &ValidationError{Field: "proxy.consumer_buffer_size", Message: "consumer buffer size must be positive"}
	}
	if cfg.TimestampRestoreField == "" {
		return &ValidationError{Field: "proxy.timestamp_restore_field", Message: "restore field name is required"}
	}
	return nil
}
