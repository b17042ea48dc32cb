package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	// ReceiveNoWaitTimeout bounds a "no wait" receive against a broker that
	// has no true non-blocking fetch.
	ReceiveNoWaitTimeout = 50 * time.Millisecond
)

const (
	// SchedulerShutdownGrace is how long a closing proxy waits for an
	// in-flight background flush before abandoning it.
	SchedulerShutdownGrace = 5 * time.Second
)

const (
	ShutdownTimeout = 5 * time.Second
)
