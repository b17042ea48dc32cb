// Package broker defines the delegate producer and consumer the proxy
// wraps, and the Kafka implementation of both.
package broker

import (
	"context"
	"time"

	"mqproxy/pkg/models"
)

// DeliveryMode mirrors the broker's persistence hint for an outgoing
// message.
type DeliveryMode int

const (
	NonPersistent DeliveryMode = 1
	Persistent    DeliveryMode = 2
)

// SendOptions carries the per-send delivery knobs.
type SendOptions struct {
	DeliveryMode DeliveryMode
	Priority     int
	TTL          time.Duration
}

// DefaultSendOptions returns persistent delivery at the conventional default
// priority with no expiry.
func DefaultSendOptions() SendOptions {
	return SendOptions{
		DeliveryMode: Persistent,
		Priority:     models.DefaultPriority,
	}
}

// Producer is the delegate the send-side proxy wraps. Send publishes to the
// producer's preset destination; SendTo overrides it. Implementations bound
// to a destination may reject SendTo with a different one.
type Producer interface {
	Send(ctx context.Context, msg *models.Message, opts SendOptions) error
	SendTo(ctx context.Context, destination string, msg *models.Message, opts SendOptions) error
	Destination() string
	Close() error
}

// Listener receives messages pushed by a Consumer.
type Listener func(msg *models.Message)

// Consumer is the delegate the receive-side proxy wraps. Receive blocks
// until a message or ctx is done; ReceiveTimeout bounds the wait;
// ReceiveNoWait returns nil immediately when nothing is pending.
// SetListener switches the consumer into push mode on a background
// goroutine until ctx is done or the consumer closes.
type Consumer interface {
	Receive(ctx context.Context) (*models.Message, error)
	ReceiveTimeout(ctx context.Context, timeout time.Duration) (*models.Message, error)
	ReceiveNoWait(ctx context.Context) (*models.Message, error)
	SetListener(ctx context.Context, l Listener) error
	Close() error
}
