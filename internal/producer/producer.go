// Package producer implements the send-side proxy: it wraps a delegate
// broker producer, filters outgoing messages against registered criteria,
// and routes condensable messages through the condensation buffer instead of
// the wire.
package producer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"mqproxy/internal/broker"
	"mqproxy/internal/condenser"
	"mqproxy/internal/config"
	"mqproxy/internal/criteria"
	"mqproxy/internal/logger"
	"mqproxy/pkg/circuitbreaker"
	"mqproxy/pkg/metrics"
	"mqproxy/pkg/models"
)

// ErrClosed is returned by sends initiated after Close has returned.
var ErrClosed = errors.New("producer proxy is closed")

// CompletionFunc is invoked exactly once per asynchronous send with the
// original input message, whether it was sent, buffered, or blocked by
// criteria, and with the delegate error when a direct send failed.
type CompletionFunc func(msg *models.Message, err error)

// Proxy wraps a delegate producer. All methods are safe for concurrent use.
type Proxy struct {
	delegate broker.Producer
	factory  models.MessageFactory
	cfg      config.ProxyConfig
	cond     *condenser.Condenser
	sched    *flushScheduler
	breaker  *circuitbreaker.Wrapper
	log      logger.Logger

	critMu   sync.RWMutex
	criteria []criteria.SendCriteria

	optsMu sync.RWMutex
	opts   broker.SendOptions

	closed atomic.Bool
}

// New builds a proxy around delegate. When the configuration enables the
// condenser, a default field-exclusion condenser is created from the
// configured timestamp field sets.
func New(delegate broker.Producer, factory models.MessageFactory, cfg config.ProxyConfig, log logger.Logger) *Proxy {
	if factory == nil {
		factory = models.NewFactory()
	}
	if log == nil {
		log = logger.NopLogger()
	}

	p := &Proxy{
		delegate: delegate,
		factory:  factory,
		cfg:      cfg,
		opts:     broker.DefaultSendOptions(),
		log:      log,
	}

	if cfg.CondenserEnabled {
		p.cond = condenser.New(condenser.Options{
			Strategy:      condenser.NewFieldExclusionStrategy(cfg.TimestampFieldsExclude...),
			Window:        time.Duration(cfg.CondenserWindowMs) * time.Millisecond,
			MaxBatchSize:  cfg.CondenserMaxBatchSize,
			ExtractFields: cfg.TimestampFieldsExtract,
		}, log)
		p.sched = newFlushScheduler(
			time.Duration(cfg.FlushIntervalMs)*time.Millisecond,
			p.backgroundFlush,
			func() bool { return p.cond.Count() > 0 },
			log,
		)
	}

	p.log.Infow("Producer proxy created",
		"condenser_enabled", cfg.CondenserEnabled,
		"criteria_enabled", cfg.CriteriaEnabled,
	)
	return p
}

// Wrap builds a proxy with the default configuration.
func Wrap(delegate broker.Producer, factory models.MessageFactory, log logger.Logger) *Proxy {
	return New(delegate, factory, config.DefaultProxy(), log)
}

// WrapPassThrough builds a proxy with condensing and criteria disabled.
func WrapPassThrough(delegate broker.Producer, factory models.MessageFactory, log logger.Logger) *Proxy {
	return New(delegate, factory, config.PassThrough(), log)
}

// WrapWithCondenser builds a proxy condensing with the given window and
// batch size.
func WrapWithCondenser(delegate broker.Producer, factory models.MessageFactory, window time.Duration, maxBatchSize int, log logger.Logger) *Proxy {
	cfg := config.DefaultProxy()
	cfg.CondenserWindowMs = window.Milliseconds()
	cfg.CondenserMaxBatchSize = maxBatchSize
	return New(delegate, factory, cfg, log)
}

// SetCondenser replaces the condenser, e.g. to supply a custom comparison
// strategy. Must be called before the first send.
func (p *Proxy) SetCondenser(c *condenser.Condenser) {
	p.cond = c
	if c != nil && p.sched == nil {
		p.sched = newFlushScheduler(
			time.Duration(p.cfg.FlushIntervalMs)*time.Millisecond,
			p.backgroundFlush,
			func() bool { return p.cond.Count() > 0 },
			p.log,
		)
	}
}

// SetBreaker guards direct delegate sends with a circuit breaker.
func (p *Proxy) SetBreaker(w *circuitbreaker.Wrapper) {
	p.breaker = w
}

// AddCriteria appends criteria; evaluation follows registration order.
func (p *Proxy) AddCriteria(criteria ...criteria.SendCriteria) {
	p.critMu.Lock()
	defer p.critMu.Unlock()
	p.criteria = append(p.criteria, criteria...)
}

// SetDeliveryMode sets the delivery mode applied to subsequent sends and to
// flushed envelopes.
func (p *Proxy) SetDeliveryMode(m broker.DeliveryMode) {
	p.optsMu.Lock()
	defer p.optsMu.Unlock()
	p.opts.DeliveryMode = m
}

// SetPriority sets the default priority applied to subsequent sends and to
// flushed envelopes.
func (p *Proxy) SetPriority(priority int) {
	p.optsMu.Lock()
	defer p.optsMu.Unlock()
	p.opts.Priority = priority
}

// SetTTL sets the time-to-live applied to subsequent sends and to flushed
// envelopes.
func (p *Proxy) SetTTL(ttl time.Duration) {
	p.optsMu.Lock()
	defer p.optsMu.Unlock()
	p.opts.TTL = ttl
}

func (p *Proxy) sendOptions() broker.SendOptions {
	p.optsMu.RLock()
	defer p.optsMu.RUnlock()
	return p.opts
}

// Send routes a message to the delegate's preset destination.
func (p *Proxy) Send(ctx context.Context, msg *models.Message) error {
	return p.SendWith(ctx, "", msg, p.sendOptions())
}

// SendTo routes a message to an explicit destination.
func (p *Proxy) SendTo(ctx context.Context, destination string, msg *models.Message) error {
	return p.SendWith(ctx, destination, msg, p.sendOptions())
}

// SendWith routes a message with explicit delivery options. Criteria are
// evaluated first; a blocked message returns nil without touching the
// delegate. A condensable message is buffered and the flush scheduler armed.
// Everything else goes straight through.
func (p *Proxy) SendWith(ctx context.Context, destination string, msg *models.Message, opts broker.SendOptions) error {
	if p.closed.Load() {
		return ErrClosed
	}

	if p.cfg.CriteriaEnabled && !p.evaluateCriteria(msg) {
		p.log.Debugw("Message blocked by criteria", "message_id", msg.ID)
		metrics.ProxySendsTotal.WithLabelValues("blocked").Inc()
		return nil
	}

	if p.cfg.CondenserEnabled && p.cond != nil {
		metrics.CondenserInputMessagesTotal.Inc()
		if adm, ok := p.cond.ShouldAdmit(msg); ok {
			p.cond.Admit(msg, adm)
			p.sched.Arm()
			metrics.ProxySendsTotal.WithLabelValues("condensed").Inc()
			metrics.CondenserBufferedMessages.Set(float64(p.cond.Count()))
			return nil
		}
	}

	metrics.ProxySendsTotal.WithLabelValues("direct").Inc()
	return p.directSend(ctx, destination, msg, opts)
}

// SendAsync behaves like SendWith but reports the outcome through the
// completion callback instead of a return value. The callback fires exactly
// once per call, including for criteria-blocked and buffered messages, so
// callers see a completion for every input.
func (p *Proxy) SendAsync(ctx context.Context, destination string, msg *models.Message, complete CompletionFunc) {
	if p.closed.Load() {
		complete(msg, ErrClosed)
		return
	}

	if p.cfg.CriteriaEnabled && !p.evaluateCriteria(msg) {
		p.log.Debugw("Message blocked by criteria", "message_id", msg.ID)
		metrics.ProxySendsTotal.WithLabelValues("blocked").Inc()
		complete(msg, nil)
		return
	}

	if p.cfg.CondenserEnabled && p.cond != nil {
		metrics.CondenserInputMessagesTotal.Inc()
		if adm, ok := p.cond.ShouldAdmit(msg); ok {
			p.cond.Admit(msg, adm)
			p.sched.Arm()
			metrics.ProxySendsTotal.WithLabelValues("condensed").Inc()
			complete(msg, nil)
			return
		}
	}

	metrics.ProxySendsTotal.WithLabelValues("direct").Inc()
	complete(msg, p.directSend(ctx, destination, msg, p.sendOptions()))
}

func (p *Proxy) evaluateCriteria(msg *models.Message) bool {
	p.critMu.RLock()
	defer p.critMu.RUnlock()
	for _, c := range p.criteria {
		if !c.Evaluate(msg) {
			return false
		}
	}
	return true
}

// directSend hands the message to the delegate. A producer already bound to
// the requested (or unspecified) destination gets the destination-less call;
// some hosts reject re-specifying a destination on a bound producer.
func (p *Proxy) directSend(ctx context.Context, destination string, msg *models.Message, opts broker.SendOptions) error {
	send := func() error {
		preset := p.delegate.Destination()
		if preset != "" && (destination == "" || destination == preset) {
			return p.delegate.Send(ctx, msg, opts)
		}
		return p.delegate.SendTo(ctx, destination, msg, opts)
	}
	if p.breaker != nil {
		_, err := p.breaker.ExecuteWithContext(ctx, func() (interface{}, error) {
			return nil, send()
		})
		return err
	}
	return send()
}

// backgroundFlush is the scheduler's task: emit every due batch.
func (p *Proxy) backgroundFlush() {
	if p.cond == nil || !p.cond.FlushDue() {
		return
	}
	start := time.Now()
	envelopes := p.cond.FlushReady()
	p.sendEnvelopes(context.Background(), envelopes)
	metrics.ObserveFlushDuration(time.Since(start))
	metrics.CondenserBufferedMessages.Set(float64(p.cond.Count()))
}

// Flush drains the condensation buffer regardless of readiness and sends
// every envelope. Delegate failures are logged per envelope and the rest are
// still attempted.
func (p *Proxy) Flush(ctx context.Context) {
	if p.cond == nil {
		return
	}
	envelopes := p.cond.Drain()
	p.sendEnvelopes(ctx, envelopes)
	metrics.CondenserBufferedMessages.Set(0)
}

// sendEnvelopes materializes and sends envelopes. This always runs outside
// the condenser lock: materialization does the heavy serialization, and the
// delegate send may block on the broker.
func (p *Proxy) sendEnvelopes(ctx context.Context, envelopes []*condenser.Envelope) {
	opts := p.sendOptions()
	for _, env := range envelopes {
		msg := p.factory.NewTextMessage(env.Materialize())
		msg.SetProperty(models.PropCondensed, true)
		msg.SetProperty(models.PropCondensedCount, env.Count())
		msg.SetProperty(models.PropCondensedTimestamps, env.FirstTimestamp())

		if err := p.delegate.Send(ctx, msg, opts); err != nil {
			p.log.Errorw("Failed to send condensed envelope",
				"error", err,
				"count", env.Count(),
			)
			continue
		}
		metrics.CondenserOutputBatchesTotal.Inc()
		p.log.Debugw("Sent condensed envelope", "count", env.Count())
	}
}

// BufferedCount returns the number of messages currently buffered for
// condensation.
func (p *Proxy) BufferedCount() int {
	if p.cond == nil {
		return 0
	}
	return p.cond.Count()
}

// Stats returns the condenser's monotonic counters; zero when condensing is
// disabled.
func (p *Proxy) Stats() condenser.Stats {
	if p.cond == nil {
		return condenser.Stats{}
	}
	return p.cond.Stats()
}

// Close flushes buffered messages, stops the flush worker, and closes the
// delegate. Flush errors are logged, not returned; no send may be initiated
// once Close has returned.
func (p *Proxy) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.Flush(context.Background())
	if p.sched != nil {
		p.sched.Stop()
	}
	return p.delegate.Close()
}
