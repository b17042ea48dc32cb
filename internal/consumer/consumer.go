// Package consumer adapts the N-messages-per-envelope expansion pattern
// onto a one-message-at-a-time consumer interface, so application code keeps
// its single-message contract whether or not batching happened upstream.
package consumer

import (
	"context"
	"time"

	"mqproxy/internal/broker"
	"mqproxy/internal/expander"
	"mqproxy/internal/logger"
	"mqproxy/pkg/metrics"
	"mqproxy/pkg/models"
)

const defaultBufferSize = 1000

// Buffered wraps a delegate consumer. Pull-style receives return expanded
// messages one at a time from an internal queue; push-style listeners are
// invoked once per expanded message.
//
// Overflow policy: when the internal queue is full, surplus expanded
// messages are dropped with a warning rather than blocking the delivery
// thread. This keeps the single-receiver contract at the cost of loss under
// sustained expansion bursts.
type Buffered struct {
	delegate broker.Consumer
	expander *expander.Expander
	queue    chan *models.Message
	log      logger.Logger
}

// New builds a buffered consumer. bufferSize <= 0 selects the default
// capacity of 1,000 expanded messages.
func New(delegate broker.Consumer, exp *expander.Expander, bufferSize int, log logger.Logger) *Buffered {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	if exp == nil {
		exp = expander.New(nil, log)
	}
	if log == nil {
		log = logger.NopLogger()
	}
	return &Buffered{
		delegate: delegate,
		expander: exp,
		queue:    make(chan *models.Message, bufferSize),
		log:      log,
	}
}

// Wrap builds a buffered consumer with default expansion and capacity.
func Wrap(delegate broker.Consumer, factory models.MessageFactory, log logger.Logger) *Buffered {
	return New(delegate, expander.New(factory, log), 0, log)
}

// Receive returns the next logical message, blocking until one is available
// or ctx is done.
func (c *Buffered) Receive(ctx context.Context) (*models.Message, error) {
	if msg := c.dequeue(); msg != nil {
		return msg, nil
	}
	msg, err := c.delegate.Receive(ctx)
	if err != nil || msg == nil {
		return nil, err
	}
	return c.expandAndQueue(msg), nil
}

// ReceiveTimeout returns the next logical message. A non-empty internal
// queue satisfies the call immediately; otherwise the timeout bounds only
// the delegate receive, not expansion.
func (c *Buffered) ReceiveTimeout(ctx context.Context, timeout time.Duration) (*models.Message, error) {
	if msg := c.dequeue(); msg != nil {
		return msg, nil
	}
	msg, err := c.delegate.ReceiveTimeout(ctx, timeout)
	if err != nil || msg == nil {
		return nil, err
	}
	return c.expandAndQueue(msg), nil
}

// ReceiveNoWait returns the next logical message without waiting, or nil.
func (c *Buffered) ReceiveNoWait(ctx context.Context) (*models.Message, error) {
	if msg := c.dequeue(); msg != nil {
		return msg, nil
	}
	msg, err := c.delegate.ReceiveNoWait(ctx)
	if err != nil || msg == nil {
		return nil, err
	}
	return c.expandAndQueue(msg), nil
}

// SetListener registers a push-style listener. A condensed envelope invokes
// the listener once per expanded message, in expansion order, synchronously
// on the delivery goroutine. A panic thrown for one expanded message does
// not suppress delivery of the rest.
func (c *Buffered) SetListener(ctx context.Context, l broker.Listener) error {
	return c.delegate.SetListener(ctx, func(msg *models.Message) {
		for _, expanded := range c.expander.Expand(msg) {
			c.deliver(l, expanded)
		}
	})
}

// QueuedCount returns the number of expanded messages waiting in the
// internal queue.
func (c *Buffered) QueuedCount() int {
	return len(c.queue)
}

// Close discards the internal queue and closes the delegate.
func (c *Buffered) Close() error {
	for {
		select {
		case <-c.queue:
		default:
			metrics.ConsumerQueueDepth.Set(0)
			return c.delegate.Close()
		}
	}
}

func (c *Buffered) dequeue() *models.Message {
	select {
	case msg := <-c.queue:
		metrics.ConsumerQueueDepth.Set(float64(len(c.queue)))
		return msg
	default:
		return nil
	}
}

// expandAndQueue returns the first expanded message and queues the rest for
// subsequent receives.
func (c *Buffered) expandAndQueue(msg *models.Message) *models.Message {
	expanded := c.expander.Expand(msg)
	for _, m := range expanded[1:] {
		select {
		case c.queue <- m:
		default:
			metrics.ConsumerQueueDropsTotal.Inc()
			c.log.Warnw("Expanded message queue full, dropping message",
				"message_id", m.ID,
			)
		}
	}
	metrics.ConsumerQueueDepth.Set(float64(len(c.queue)))
	return expanded[0]
}

func (c *Buffered) deliver(l broker.Listener, msg *models.Message) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Errorw("Listener panicked for expanded message",
				"panic", r,
				"message_id", msg.ID,
			)
		}
	}()
	l(msg)
}
