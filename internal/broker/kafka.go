package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"mqproxy/internal/config"
	"mqproxy/internal/constants"
	"mqproxy/internal/logger"
	"mqproxy/pkg/metrics"
	"mqproxy/pkg/models"
	"mqproxy/pkg/retry"
)

// KafkaProducer publishes messages to Kafka. The configured output topic is
// the producer's preset destination.
type KafkaProducer struct {
	writer       *kafka.Writer
	defaultTopic string
	retryPolicy  retry.Policy
	logger       logger.Logger
}

func NewKafkaProducer(cfg config.KafkaConfig, log logger.Logger) *KafkaProducer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: constants.KafkaBatchTimeout,
		WriteTimeout: constants.KafkaWriteTimeout,
		Async:        false,
	}
	return &KafkaProducer{
		writer:       w,
		defaultTopic: cfg.OutputTopic,
		retryPolicy:  cfg.Retry.Policy(),
		logger:       log,
	}
}

func (p *KafkaProducer) Send(ctx context.Context, msg *models.Message, opts SendOptions) error {
	return p.SendTo(ctx, p.defaultTopic, msg, opts)
}

func (p *KafkaProducer) SendTo(ctx context.Context, destination string, msg *models.Message, opts SendOptions) error {
	if destination == "" {
		destination = p.defaultTopic
	}
	if destination == "" {
		return errors.New("no destination configured for send")
	}

	if opts.TTL > 0 && msg.Expiration == 0 {
		msg.Expiration = time.Now().Add(opts.TTL).UnixMilli()
	}
	if msg.Priority == 0 && opts.Priority != 0 {
		msg.Priority = opts.Priority
	}

	value, err := encodeMessage(msg)
	if err != nil {
		return err
	}

	record := kafka.Message{
		Topic: destination,
		Key:   []byte(msg.ID),
		Value: value,
		Time:  time.Now(),
	}

	err = retry.RetryWithCallback(ctx, p.retryPolicy, func() error {
		return p.writer.WriteMessages(ctx, record)
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.RetryAttemptsTotal.WithLabelValues("producer", destination).Inc()
		p.logger.Warnw("Retrying kafka write",
			"attempt", attempt,
			"next_delay", nextDelay,
			"error", err,
			"topic", destination,
		)
	})
	if err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}
	return nil
}

func (p *KafkaProducer) Destination() string {
	return p.defaultTopic
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

// KafkaConsumer reads messages from the configured input topic, either
// pulled one at a time or pushed to a listener from a background goroutine.
type KafkaConsumer struct {
	cfg    config.KafkaConfig
	logger logger.Logger

	mu     sync.Mutex
	reader *kafka.Reader
	wg     sync.WaitGroup
	closed bool
}

func NewKafkaConsumer(cfg config.KafkaConfig, log logger.Logger) *KafkaConsumer {
	return &KafkaConsumer{cfg: cfg, logger: log}
}

func (c *KafkaConsumer) ensureReader() (*kafka.Reader, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.New("consumer is closed")
	}
	if c.reader == nil {
		c.logger.Infow("Creating Kafka reader",
			"topic", c.cfg.InputTopic,
			"brokers", c.cfg.Brokers,
			"group_id", c.cfg.GroupID,
		)
		c.reader = kafka.NewReader(kafka.ReaderConfig{
			Brokers:  c.cfg.Brokers,
			GroupID:  c.cfg.GroupID,
			Topic:    c.cfg.InputTopic,
			MinBytes: 1,
			MaxBytes: 10e6,
		})
	}
	return c.reader, nil
}

func (c *KafkaConsumer) Receive(ctx context.Context) (*models.Message, error) {
	reader, err := c.ensureReader()
	if err != nil {
		return nil, err
	}
	for {
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			return nil, err
		}
		msg, err := decodeMessage(m.Topic, m.Value)
		if err != nil {
			// Commit and skip so a poison record cannot wedge the partition.
			c.logger.Errorw("Failed to decode message, skipping",
				"error", err,
				"topic", m.Topic,
				"offset", m.Offset,
			)
			_ = reader.CommitMessages(ctx, m)
			continue
		}
		if err := reader.CommitMessages(ctx, m); err != nil {
			c.logger.Errorw("Failed to commit message",
				"error", err,
				"topic", m.Topic,
			)
		}
		return msg, nil
	}
}

func (c *KafkaConsumer) ReceiveTimeout(ctx context.Context, timeout time.Duration) (*models.Message, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	msg, err := c.Receive(waitCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

func (c *KafkaConsumer) ReceiveNoWait(ctx context.Context) (*models.Message, error) {
	return c.ReceiveTimeout(ctx, constants.ReceiveNoWaitTimeout)
}

// SetListener starts a background fetch loop delivering each decoded
// message to l on the loop goroutine, until ctx is done or the consumer is
// closed. Listener panics are recovered and logged so one bad message does
// not stop consumption.
func (c *KafkaConsumer) SetListener(ctx context.Context, l Listener) error {
	reader, err := c.ensureReader()
	if err != nil {
		return err
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.logger.Infow("Started consuming", "topic", c.cfg.InputTopic)

		for {
			m, err := reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					c.logger.Infow("Stopped consuming",
						"topic", c.cfg.InputTopic,
						"reason", "context canceled",
					)
					return
				}
				c.logger.Errorw("Error fetching kafka message",
					"error", err,
					"topic", c.cfg.InputTopic,
				)
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
				continue
			}

			msg, err := decodeMessage(m.Topic, m.Value)
			if err != nil {
				c.logger.Errorw("Failed to decode message",
					"error", err,
					"topic", m.Topic,
					"offset", m.Offset,
				)
				_ = reader.CommitMessages(ctx, m)
				continue
			}

			c.deliver(l, msg)
			if err := reader.CommitMessages(ctx, m); err != nil {
				c.logger.Errorw("Failed to commit message",
					"error", err,
					"topic", m.Topic,
				)
			}
		}
	}()
	return nil
}

func (c *KafkaConsumer) deliver(l Listener, msg *models.Message) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Errorw("Panic recovered in message listener",
				"panic", r,
				"message_id", msg.ID,
			)
		}
	}()
	l(msg)
}

func (c *KafkaConsumer) Close() error {
	c.mu.Lock()
	c.closed = true
	reader := c.reader
	c.mu.Unlock()

	var err error
	if reader != nil {
		err = reader.Close()
	}
	c.wg.Wait()
	return err
}
