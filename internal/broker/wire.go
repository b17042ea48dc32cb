package broker

import (
	"encoding/json"
	"fmt"

	"mqproxy/pkg/models"
)

// wireMessage is the JSON rendering of a Message on the Kafka wire. Kafka
// has no native headers/properties model matching the proxy's, so the whole
// logical message travels in the record value.
type wireMessage struct {
	ID            string         `json:"id"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Type          string         `json:"type,omitempty"`
	Priority      int            `json:"priority"`
	Expiration    int64          `json:"expiration,omitempty"`
	Timestamp     int64          `json:"timestamp"`
	Body          string         `json:"body,omitempty"`
	Properties    map[string]any `json:"properties,omitempty"`
}

func encodeMessage(msg *models.Message) ([]byte, error) {
	w := wireMessage{
		ID:            msg.ID,
		CorrelationID: msg.CorrelationID,
		Type:          msg.Type,
		Priority:      msg.Priority,
		Expiration:    msg.Expiration,
		Timestamp:     msg.Timestamp,
		Body:          msg.Body,
		Properties:    msg.Properties,
	}
	b, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	return b, nil
}

func decodeMessage(destination string, value []byte) (*models.Message, error) {
	var w wireMessage
	if err := json.Unmarshal(value, &w); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	return &models.Message{
		ID:            w.ID,
		CorrelationID: w.CorrelationID,
		Type:          w.Type,
		Destination:   destination,
		Priority:      w.Priority,
		Expiration:    w.Expiration,
		Timestamp:     w.Timestamp,
		Body:          w.Body,
		Properties:    normalizeProperties(w.Properties),
	}, nil
}

// normalizeProperties rewrites decoded JSON numbers so property accessors
// see int64 for integral values and float64 otherwise.
func normalizeProperties(props map[string]any) map[string]any {
	if props == nil {
		return nil
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		if f, ok := v.(float64); ok {
			if f == float64(int64(f)) {
				out[k] = int64(f)
				continue
			}
		}
		out[k] = v
	}
	return out
}
