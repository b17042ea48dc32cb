package condenser

import (
	"strconv"

	"mqproxy/internal/canonical"
	"mqproxy/pkg/models"
)

// OriginalInfo carries the headers of one original message, captured when
// its batch is flushed. The consumer side uses the body metadata instead;
// this is kept for callers inspecting envelopes in-process.
type OriginalInfo struct {
	MessageID     string
	Timestamp     int64
	CorrelationID string
	Priority      int
	Expiration    int64
	Type          string
}

// Envelope is one condensed outgoing message covering a batch of originals
// under a single similarity key. The aggregated body is computed lazily:
// envelopes are created under the buffer lock, and Materialize runs the
// heavy serialization later, from the send path.
type Envelope struct {
	content   string
	produce   func() string
	originals []OriginalInfo
	firstTS   int64
	lastTS    int64
	count     int
}

// Materialize collapses the deferred body into text. Idempotent; not safe
// for concurrent use, which the send path never needs.
func (e *Envelope) Materialize() string {
	if e.produce != nil {
		e.content = e.produce()
		e.produce = nil
	}
	return e.content
}

func (e *Envelope) Count() int                { return e.count }
func (e *Envelope) Originals() []OriginalInfo { return e.originals }
func (e *Envelope) FirstTimestamp() int64     { return e.firstTS }
func (e *Envelope) LastTimestamp() int64      { return e.lastTS }

func (c *Condenser) newEnvelope(seq []bufferedMessage) *Envelope {
	originals := make([]OriginalInfo, len(seq))
	first, last := int64(0), int64(0)
	for i, b := range seq {
		originals[i] = OriginalInfo{
			MessageID:     b.msg.ID,
			Timestamp:     b.msg.Timestamp,
			CorrelationID: b.msg.CorrelationID,
			Priority:      b.msg.Priority,
			Expiration:    b.msg.Expiration,
			Type:          b.msg.Type,
		}
		if i == 0 || b.msg.Timestamp < first {
			first = b.msg.Timestamp
		}
		if b.msg.Timestamp > last {
			last = b.msg.Timestamp
		}
	}

	extract := c.extractFields
	return &Envelope{
		produce:   func() string { return aggregate(seq, extract) },
		originals: originals,
		firstTS:   first,
		lastTS:    last,
		count:     len(seq),
	}
}

// aggregate builds the condensed body: the head content with the
// timestamp-extraction fields removed and a reserved metadata block holding
// the per-original timestamps. A head that is not a top-level object is
// passed through unchanged.
func aggregate(seq []bufferedMessage, extract []string) string {
	head := seq[0].content
	obj, ok := canonical.DecodeObject(head)
	if !ok {
		return head
	}

	for _, field := range extract {
		delete(obj, field)
	}

	var stamps []int64
	for _, b := range seq {
		for _, field := range extract {
			text, ok := canonical.ExtractField(b.content, field)
			if !ok {
				continue
			}
			if ts, err := strconv.ParseInt(text, 10, 64); err == nil {
				stamps = append(stamps, ts)
			}
			break
		}
	}

	meta := map[string]any{
		"condensed": true,
		"count":     len(seq),
	}
	if len(stamps) > 0 {
		first, last := stamps[0], stamps[0]
		for _, ts := range stamps[1:] {
			if ts < first {
				first = ts
			}
			if ts > last {
				last = ts
			}
		}
		meta["originalTimestamps"] = stamps
		meta["firstTimestamp"] = first
		meta["lastTimestamp"] = last
	}
	obj[models.CondensedMetaField] = meta

	out, err := canonical.EncodeObject(obj)
	if err != nil {
		return head
	}
	return out
}
