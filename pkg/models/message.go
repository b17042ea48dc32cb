package models

// Reserved wire property names shared by the producer and consumer sides.
// Both sides must agree on these; they are part of the wire contract.
const (
	PropCondensed           = "_JMS_PROXY_CONDENSED_"
	PropCondensedCount      = "_JMS_PROXY_CONDENSED_COUNT_"
	PropCondensedTimestamps = "_JMS_PROXY_CONDENSED_TIMESTAMPS_"

	// ReservedPropertyPrefix marks properties owned by the proxy itself.
	// Expansion never copies these onto reconstructed messages.
	ReservedPropertyPrefix = "_JMS_PROXY_"

	// CondensedMetaField is the reserved top-level body field carrying
	// aggregation metadata on a condensed envelope.
	CondensedMetaField = "_condensedMeta"
)

// Message is the logical message the proxy reads and constructs. The broker
// delegate owns the wire representation; the proxy only sees body, headers
// and named scalar properties.
type Message struct {
	ID            string
	CorrelationID string
	Type          string
	Destination   string
	Priority      int
	Expiration    int64
	Timestamp     int64
	Body          string
	Properties    map[string]any
}

// SetProperty sets a named property, allocating the map on first use.
func (m *Message) SetProperty(name string, value any) {
	if m.Properties == nil {
		m.Properties = make(map[string]any)
	}
	m.Properties[name] = value
}

// HasProperty reports whether a named property is present.
func (m *Message) HasProperty(name string) bool {
	_, ok := m.Properties[name]
	return ok
}

// StringProperty returns a property as a string, or def when absent or not
// a string.
func (m *Message) StringProperty(name, def string) string {
	if v, ok := m.Properties[name].(string); ok {
		return v
	}
	return def
}

// BoolProperty returns a property as a bool, or def when absent or not a
// bool.
func (m *Message) BoolProperty(name string, def bool) bool {
	if v, ok := m.Properties[name].(bool); ok {
		return v
	}
	return def
}

// IntProperty returns a property as an int, widening from the numeric types
// a wire codec may produce.
func (m *Message) IntProperty(name string, def int) int {
	switch v := m.Properties[name].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// Int64Property returns a property as an int64, widening from the numeric
// types a wire codec may produce.
func (m *Message) Int64Property(name string, def int64) int64 {
	switch v := m.Properties[name].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return def
	}
}
