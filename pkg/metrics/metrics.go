package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ProxySendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxy_sends_total",
			Help: "Total number of messages entering the proxy send path, by outcome (count)",
		},
		[]string{"path"}, // direct | condensed | blocked
	)

	CondenserInputMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "condenser_input_messages_total",
			Help: "Total number of messages offered to the condenser (count)",
		},
	)

	CondenserOutputBatchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "condenser_output_batches_total",
			Help: "Total number of condensed envelopes emitted (count)",
		},
	)

	CondenserBufferedMessages = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "condenser_buffered_messages",
			Help: "Messages currently buffered awaiting condensation (count)",
		},
	)

	FlushDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "condenser_flush_duration_ms",
			Help:    "Duration of a flush pass including delegate sends in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		},
	)

	ExpandMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expander_messages_total",
			Help: "Total messages handled by the expansion engine, by outcome (count)",
		},
		[]string{"status"}, // expanded | passthrough | failed
	)

	ConsumerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "consumer_queue_depth",
			Help: "Expanded messages waiting in the buffered consumer queue (count)",
		},
	)

	ConsumerQueueDropsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "consumer_queue_drops_total",
			Help: "Expanded messages dropped due to a full consumer queue (count)",
		},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"component", "topic"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)
)

func RegisterProducerMetrics() {
	prometheus.MustRegister(
		ProxySendsTotal,
		CondenserInputMessagesTotal,
		CondenserOutputBatchesTotal,
		CondenserBufferedMessages,
		FlushDuration,
	)
}

func RegisterConsumerMetrics() {
	prometheus.MustRegister(
		ExpandMessagesTotal,
		ConsumerQueueDepth,
		ConsumerQueueDropsTotal,
	)
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(RetryAttemptsTotal)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(
		CircuitBreakerState,
		CircuitBreakerRequests,
		CircuitBreakerFailures,
	)
}

func ObserveFlushDuration(d time.Duration) {
	FlushDuration.Observe(float64(d.Milliseconds()))
}
