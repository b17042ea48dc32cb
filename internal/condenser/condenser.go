// Package condenser buffers content-similar messages and emits them as
// single condensed envelopes once a per-key time window elapses or a batch
// fills. It is the send-side half of the condense/expand contract.
package condenser

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"mqproxy/internal/canonical"
	"mqproxy/internal/logger"
	"mqproxy/pkg/models"
)

// Options configures a Condenser. Zero values fall back to defaults.
type Options struct {
	Strategy      ComparisonStrategy
	Window        time.Duration // max per-key retention before a batch is due
	MaxBatchSize  int           // max per-key batch length before a batch is due
	ExtractFields []string      // fields read, in order, for per-original timestamps
}

const (
	defaultWindow       = time.Second
	defaultMaxBatchSize = 100
)

type bufferedMessage struct {
	msg        *models.Message
	content    string
	bufferedAt int64 // monotonic-enough arrival time, milliseconds
}

// Admission is the handle returned by ShouldAdmit and consumed by Admit,
// carrying the content snapshot and similarity key so Admit does not parse
// again.
type Admission struct {
	content string
	key     string
}

// Stats are the condenser's monotonic counters.
type Stats struct {
	InputMessages uint64
	OutputBatches uint64
}

// Condenser groups admitted messages by similarity key and tracks, in O(1),
// whether any batch is due for flushing.
//
// A single mutex guards the buffer and its summaries. Envelope bodies are
// deferred so that nothing heavy ever runs under it.
type Condenser struct {
	mu       sync.Mutex
	buffer   map[string][]bufferedMessage
	total    int
	earliest int64 // min arrival over all buffered items; MaxInt64 when empty
	largest  int   // max sequence length; conservative after a flush pass

	strategy      ComparisonStrategy
	windowMs      int64
	maxBatchSize  int
	extractFields []string

	inputCount    atomic.Uint64
	outputBatches atomic.Uint64

	log logger.Logger
	now func() time.Time
}

// New builds a Condenser. A nil Strategy gets the default field-exclusion
// strategy over common timestamp field names.
func New(opts Options, log logger.Logger) *Condenser {
	if opts.Strategy == nil {
		opts.Strategy = ExcludeTimestamps()
	}
	if opts.Window <= 0 {
		opts.Window = defaultWindow
	}
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = defaultMaxBatchSize
	}
	if opts.ExtractFields == nil {
		opts.ExtractFields = DefaultExtractFields
	}
	if log == nil {
		log = logger.NopLogger()
	}
	return &Condenser{
		buffer:        make(map[string][]bufferedMessage),
		earliest:      math.MaxInt64,
		strategy:      opts.Strategy,
		windowMs:      opts.Window.Milliseconds(),
		maxBatchSize:  opts.MaxBatchSize,
		extractFields: opts.ExtractFields,
		log:           log,
		now:           time.Now,
	}
}

// ShouldAdmit decides whether a message is condensable and, when it is,
// returns the admission handle for the matching Admit call. Rejected
// messages take the direct send path.
func (c *Condenser) ShouldAdmit(msg *models.Message) (*Admission, bool) {
	c.inputCount.Add(1)
	if msg == nil || msg.Body == "" {
		return nil, false
	}
	if !canonical.LooksStructured(msg.Body) {
		return nil, false
	}
	key, err := c.strategy.ComputeComparisonKey(msg.Body)
	if err != nil {
		c.log.Debugw("Comparison key failed, message not condensable", "error", err)
		return nil, false
	}
	return &Admission{content: msg.Body, key: key}, true
}

// Admit appends the message to its similarity-key sequence. A nil or stale
// handle (body changed since ShouldAdmit) is recomputed; a message whose key
// cannot be recomputed is dropped from condensation silently, which the send
// path has already ruled out by calling ShouldAdmit first.
func (c *Condenser) Admit(msg *models.Message, adm *Admission) {
	if adm == nil || adm.content != msg.Body {
		key, err := c.strategy.ComputeComparisonKey(msg.Body)
		if err != nil {
			return
		}
		adm = &Admission{content: msg.Body, key: key}
	}

	entry := bufferedMessage{
		msg:        msg,
		content:    adm.content,
		bufferedAt: c.now().UnixMilli(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	seq := append(c.buffer[adm.key], entry)
	c.buffer[adm.key] = seq
	c.total++
	if entry.bufferedAt < c.earliest {
		c.earliest = entry.bufferedAt
	}
	if len(seq) > c.largest {
		c.largest = len(seq)
	}
}

// FlushDue reports in O(1) whether any batch is ready: a sequence reached
// the batch cap, or the oldest buffered item aged past the window.
func (c *Condenser) FlushDue() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.total == 0 {
		return false
	}
	if c.largest >= c.maxBatchSize {
		return true
	}
	return c.now().UnixMilli()-c.earliest >= c.windowMs
}

// FlushReady removes and returns one envelope per sequence whose head aged
// past the window or whose length reached the batch cap. Summaries are
// recomputed over what remains.
func (c *Condenser) FlushReady() []*Envelope {
	now := c.now().UnixMilli()

	c.mu.Lock()
	defer c.mu.Unlock()

	var envelopes []*Envelope
	for key, seq := range c.buffer {
		windowExpired := now-seq[0].bufferedAt >= c.windowMs
		batchFull := len(seq) >= c.maxBatchSize
		if !windowExpired && !batchFull {
			continue
		}
		envelopes = append(envelopes, c.newEnvelope(seq))
		c.total -= len(seq)
		delete(c.buffer, key)
		c.outputBatches.Add(1)
	}
	if envelopes != nil {
		c.recalcSummariesLocked()
	}
	return envelopes
}

// Drain removes and returns every buffered sequence as an envelope,
// regardless of readiness. Used by force-flush and shutdown.
func (c *Condenser) Drain() []*Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()

	envelopes := make([]*Envelope, 0, len(c.buffer))
	for key, seq := range c.buffer {
		envelopes = append(envelopes, c.newEnvelope(seq))
		delete(c.buffer, key)
		c.outputBatches.Add(1)
	}
	c.total = 0
	c.earliest = math.MaxInt64
	c.largest = 0
	if len(envelopes) == 0 {
		return nil
	}
	return envelopes
}

// Count returns the number of buffered messages across all keys.
func (c *Condenser) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// Clear discards all buffered messages without emitting envelopes.
func (c *Condenser) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buffer = make(map[string][]bufferedMessage)
	c.total = 0
	c.earliest = math.MaxInt64
	c.largest = 0
}

// Stats returns the monotonic input/output counters.
func (c *Condenser) Stats() Stats {
	return Stats{
		InputMessages: c.inputCount.Load(),
		OutputBatches: c.outputBatches.Load(),
	}
}

func (c *Condenser) recalcSummariesLocked() {
	c.earliest = math.MaxInt64
	c.largest = 0
	for _, seq := range c.buffer {
		if seq[0].bufferedAt < c.earliest {
			c.earliest = seq[0].bufferedAt
		}
		if len(seq) > c.largest {
			c.largest = len(seq)
		}
	}
}
