package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageFactory builds new textual messages on behalf of the proxy. The
// implementation decides identity and timestamps.
type MessageFactory interface {
	NewTextMessage(body string) *Message
}

// Factory is the default MessageFactory: uuid identifiers and wall-clock
// send timestamps in milliseconds.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) NewTextMessage(body string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UnixMilli(),
		Priority:  DefaultPriority,
		Body:      body,
	}
}

// DefaultPriority mirrors the conventional broker default for unmarked
// messages.
const DefaultPriority = 4

// MessageBuilder assembles a Message fluently. Mostly useful in tests and
// example code.
type MessageBuilder struct {
	msg *Message
}

func NewMessageBuilder() *MessageBuilder {
	return &MessageBuilder{msg: &Message{Priority: DefaultPriority}}
}

func (b *MessageBuilder) WithID(id string) *MessageBuilder {
	b.msg.ID = id
	return b
}

func (b *MessageBuilder) WithCorrelationID(id string) *MessageBuilder {
	b.msg.CorrelationID = id
	return b
}

func (b *MessageBuilder) WithType(t string) *MessageBuilder {
	b.msg.Type = t
	return b
}

func (b *MessageBuilder) WithDestination(d string) *MessageBuilder {
	b.msg.Destination = d
	return b
}

func (b *MessageBuilder) WithPriority(p int) *MessageBuilder {
	b.msg.Priority = p
	return b
}

func (b *MessageBuilder) WithTimestamp(ts time.Time) *MessageBuilder {
	b.msg.Timestamp = ts.UnixMilli()
	return b
}

func (b *MessageBuilder) WithBody(body string) *MessageBuilder {
	b.msg.Body = body
	return b
}

func (b *MessageBuilder) WithProperty(name string, value any) *MessageBuilder {
	b.msg.SetProperty(name, value)
	return b
}

func (b *MessageBuilder) Build() *Message {
	if b.msg.ID == "" {
		b.msg.ID = uuid.NewString()
	}
	if b.msg.Timestamp == 0 {
		b.msg.Timestamp = time.Now().UnixMilli()
	}
	return b.msg
}
