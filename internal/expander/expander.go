// Package expander reconstructs the original logical messages from a
// condensed envelope on the consumer side. Application code downstream never
// sees that batching occurred.
package expander

import (
	"encoding/json"
	"strings"

	"mqproxy/internal/canonical"
	"mqproxy/internal/logger"
	"mqproxy/pkg/metrics"
	"mqproxy/pkg/models"
)

// Meta summarizes the aggregation block of a condensed envelope without
// expanding it.
type Meta struct {
	Condensed          bool
	Count              int
	OriginalTimestamps []int64
	FirstTimestamp     int64
	LastTimestamp      int64
}

// Expander detects condensed envelopes and expands them back into their
// originals. Safe for concurrent use.
type Expander struct {
	factory      models.MessageFactory
	restoreField string
	log          logger.Logger
}

// New builds an expander restoring extracted timestamps into the "timestamp"
// field.
func New(factory models.MessageFactory, log logger.Logger) *Expander {
	return NewWithField(factory, "timestamp", log)
}

// NewWithField builds an expander restoring extracted timestamps into the
// named field.
func NewWithField(factory models.MessageFactory, restoreField string, log logger.Logger) *Expander {
	if factory == nil {
		factory = models.NewFactory()
	}
	if log == nil {
		log = logger.NopLogger()
	}
	return &Expander{factory: factory, restoreField: restoreField, log: log}
}

// IsCondensed reports whether a message is a condensed envelope. The wire
// property is checked first; when a host strips custom properties, the body
// metadata block is consulted instead. Never panics, never returns an error.
func (e *Expander) IsCondensed(msg *models.Message) bool {
	if msg == nil {
		return false
	}
	if msg.BoolProperty(models.PropCondensed, false) {
		return true
	}

	body := msg.Body
	if body == "" || !strings.Contains(body, models.CondensedMetaField) {
		return false
	}
	if !canonical.LooksStructured(body) {
		return false
	}
	meta, ok := metaBlock(body)
	if !ok {
		return false
	}
	condensed, _ := meta["condensed"].(bool)
	return condensed
}

// Expand reconstructs the originals from a condensed envelope. A
// non-condensed message comes back as a singleton of itself, and so does an
// envelope that cannot be parsed or rebuilt — the caller always gets at
// least the message it passed in. Expanded outputs are never themselves
// condensed.
func (e *Expander) Expand(msg *models.Message) []*models.Message {
	if !e.IsCondensed(msg) {
		metrics.ExpandMessagesTotal.WithLabelValues("passthrough").Inc()
		return []*models.Message{msg}
	}

	obj, ok := canonical.DecodeObject(msg.Body)
	if !ok {
		metrics.ExpandMessagesTotal.WithLabelValues("failed").Inc()
		e.log.Warnw("Condensed envelope body is not an object, delivering unexpanded",
			"message_id", msg.ID,
		)
		return []*models.Message{msg}
	}

	meta, _ := obj[models.CondensedMetaField].(map[string]any)
	count := metaInt(meta, "count", 1)
	if count < 1 {
		count = 1
	}
	stamps, _ := meta["originalTimestamps"].([]any)

	base := canonical.DeepCopyObject(obj)
	delete(base, models.CondensedMetaField)

	out := make([]*models.Message, 0, count)
	for i := 0; i < count; i++ {
		item := canonical.DeepCopyObject(base)
		if i < len(stamps) {
			if n, ok := stamps[i].(json.Number); ok {
				if _, err := n.Int64(); err == nil {
					item[e.restoreField] = n
				}
			}
		}
		body, err := canonical.EncodeObject(item)
		if err != nil {
			metrics.ExpandMessagesTotal.WithLabelValues("failed").Inc()
			e.log.Warnw("Failed to rebuild expanded message, delivering envelope unexpanded",
				"error", err,
				"message_id", msg.ID,
			)
			return []*models.Message{msg}
		}

		m := e.factory.NewTextMessage(body)
		copyIdentity(msg, m)
		out = append(out, m)
	}

	metrics.ExpandMessagesTotal.WithLabelValues("expanded").Inc()
	e.log.Debugw("Expanded condensed envelope", "count", len(out))
	return out
}

// ExtractMeta reads the aggregation block without expanding. ok is false for
// non-condensed messages.
func (e *Expander) ExtractMeta(msg *models.Message) (Meta, bool) {
	if msg == nil || msg.Body == "" {
		return Meta{}, false
	}
	meta, found := metaBlock(msg.Body)
	if !found {
		return Meta{}, false
	}
	out := Meta{
		Count:          metaInt(meta, "count", 1),
		FirstTimestamp: metaInt64(meta, "firstTimestamp", 0),
		LastTimestamp:  metaInt64(meta, "lastTimestamp", 0),
	}
	out.Condensed, _ = meta["condensed"].(bool)
	if stamps, ok := meta["originalTimestamps"].([]any); ok {
		for _, s := range stamps {
			if n, ok := s.(json.Number); ok {
				if ts, err := n.Int64(); err == nil {
					out.OriginalTimestamps = append(out.OriginalTimestamps, ts)
				}
			}
		}
	}
	if !out.Condensed {
		return Meta{}, false
	}
	return out, true
}

// copyIdentity carries the correlation, type, priority, and destination
// headers plus all non-reserved properties from the envelope onto a
// reconstructed message.
func copyIdentity(src, dst *models.Message) {
	dst.CorrelationID = src.CorrelationID
	dst.Type = src.Type
	dst.Priority = src.Priority
	dst.Destination = src.Destination
	for name, value := range src.Properties {
		if strings.HasPrefix(name, models.ReservedPropertyPrefix) {
			continue
		}
		dst.SetProperty(name, value)
	}
}

func metaBlock(body string) (map[string]any, bool) {
	obj, ok := canonical.DecodeObject(body)
	if !ok {
		return nil, false
	}
	meta, ok := obj[models.CondensedMetaField].(map[string]any)
	return meta, ok
}

func metaInt(meta map[string]any, key string, def int) int {
	return int(metaInt64(meta, key, int64(def)))
}

func metaInt64(meta map[string]any, key string, def int64) int64 {
	v, ok := meta[key]
	if !ok {
		return def
	}
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return i
		}
	}
	return def
}
