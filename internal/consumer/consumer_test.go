package consumer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mqproxy/internal/broker"
	"mqproxy/internal/canonical"
	"mqproxy/internal/condenser"
	"mqproxy/internal/expander"
	"mqproxy/pkg/models"
)

// fakeConsumer serves a scripted sequence of messages.
type fakeConsumer struct {
	pending  []*models.Message
	listener broker.Listener
	closed   bool
}

func (f *fakeConsumer) pop() *models.Message {
	if len(f.pending) == 0 {
		return nil
	}
	msg := f.pending[0]
	f.pending = f.pending[1:]
	return msg
}

func (f *fakeConsumer) Receive(ctx context.Context) (*models.Message, error) {
	return f.pop(), nil
}

func (f *fakeConsumer) ReceiveTimeout(ctx context.Context, timeout time.Duration) (*models.Message, error) {
	return f.pop(), nil
}

func (f *fakeConsumer) ReceiveNoWait(ctx context.Context) (*models.Message, error) {
	return f.pop(), nil
}

func (f *fakeConsumer) SetListener(ctx context.Context, l broker.Listener) error {
	f.listener = l
	return nil
}

func (f *fakeConsumer) push(msg *models.Message) {
	f.listener(msg)
}

func (f *fakeConsumer) Close() error {
	f.closed = true
	return nil
}

func condensedEnvelope(t *testing.T, bodies ...string) *models.Message {
	t.Helper()
	c := condenser.New(condenser.Options{Window: time.Hour, MaxBatchSize: 1000}, nil)
	for _, body := range bodies {
		msg := models.NewMessageBuilder().WithBody(body).Build()
		adm, ok := c.ShouldAdmit(msg)
		require.True(t, ok)
		c.Admit(msg, adm)
	}
	envelopes := c.Drain()
	require.Len(t, envelopes, 1)
	env := envelopes[0]

	msg := models.NewMessageBuilder().WithBody(env.Materialize()).Build()
	msg.SetProperty(models.PropCondensed, true)
	msg.SetProperty(models.PropCondensedCount, env.Count())
	return msg
}

func timestampOf(t *testing.T, msg *models.Message) string {
	t.Helper()
	v, ok := canonical.ExtractField(msg.Body, "timestamp")
	require.True(t, ok)
	return v
}

func TestReceiveExpandsAndQueues(t *testing.T) {
	fake := &fakeConsumer{pending: []*models.Message{
		condensedEnvelope(t,
			`{"v":1,"timestamp":10}`,
			`{"v":1,"timestamp":11}`,
			`{"v":1,"timestamp":12}`,
		),
	}}
	c := New(fake, nil, 0, nil)
	defer c.Close()

	first, err := c.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "10", timestampOf(t, first))
	assert.Equal(t, 2, c.QueuedCount())

	second, err := c.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "11", timestampOf(t, second))

	third, err := c.ReceiveNoWait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "12", timestampOf(t, third))
	assert.Equal(t, 0, c.QueuedCount())
}

func TestReceiveNonCondensedPassesThrough(t *testing.T) {
	plain := models.NewMessageBuilder().WithBody(`{"v":9}`).Build()
	fake := &fakeConsumer{pending: []*models.Message{plain}}
	c := New(fake, nil, 0, nil)
	defer c.Close()

	got, err := c.Receive(context.Background())
	require.NoError(t, err)
	assert.Same(t, plain, got)
	assert.Equal(t, 0, c.QueuedCount())
}

func TestReceiveTimeoutServedFromQueueFirst(t *testing.T) {
	fake := &fakeConsumer{pending: []*models.Message{
		condensedEnvelope(t, `{"v":1,"timestamp":1}`, `{"v":1,"timestamp":2}`),
	}}
	c := New(fake, nil, 0, nil)
	defer c.Close()

	_, err := c.Receive(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, c.QueuedCount())

	// The queued message satisfies the call without touching the delegate.
	got, err := c.ReceiveTimeout(context.Background(), time.Nanosecond)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "2", timestampOf(t, got))
}

func TestReceiveEmptyDelegate(t *testing.T) {
	fake := &fakeConsumer{}
	c := New(fake, nil, 0, nil)
	defer c.Close()

	got, err := c.ReceiveNoWait(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestQueueOverflowDrops(t *testing.T) {
	fake := &fakeConsumer{pending: []*models.Message{
		condensedEnvelope(t,
			`{"v":1,"timestamp":1}`,
			`{"v":1,"timestamp":2}`,
			`{"v":1,"timestamp":3}`,
			`{"v":1,"timestamp":4}`,
		),
	}}
	c := New(fake, nil, 2, nil)
	defer c.Close()

	first, err := c.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1", timestampOf(t, first))
	assert.Equal(t, 2, c.QueuedCount(), "fourth expanded message dropped")
}

func TestListenerDeliversEachExpandedMessage(t *testing.T) {
	fake := &fakeConsumer{}
	c := New(fake, nil, 0, nil)
	defer c.Close()

	var seen []string
	require.NoError(t, c.SetListener(context.Background(), func(msg *models.Message) {
		seen = append(seen, timestampOf(t, msg))
	}))

	fake.push(condensedEnvelope(t,
		`{"v":1,"timestamp":10}`,
		`{"v":1,"timestamp":11}`,
	))

	assert.Equal(t, []string{"10", "11"}, seen)
}

func TestListenerPanicDoesNotSuppressRest(t *testing.T) {
	fake := &fakeConsumer{}
	c := New(fake, nil, 0, nil)
	defer c.Close()

	var seen []string
	require.NoError(t, c.SetListener(context.Background(), func(msg *models.Message) {
		ts := timestampOf(t, msg)
		if ts == "10" {
			panic("listener failure")
		}
		seen = append(seen, ts)
	}))

	fake.push(condensedEnvelope(t,
		`{"v":1,"timestamp":10}`,
		`{"v":1,"timestamp":11}`,
		`{"v":1,"timestamp":12}`,
	))

	assert.Equal(t, []string{"11", "12"}, seen)
}

func TestListenerExpanderErrorDeliversEnvelopeOnce(t *testing.T) {
	fake := &fakeConsumer{}
	c := New(fake, nil, 0, nil)
	defer c.Close()

	var delivered []*models.Message
	require.NoError(t, c.SetListener(context.Background(), func(msg *models.Message) {
		delivered = append(delivered, msg)
	}))

	// Marked condensed but unparseable: the expander falls back to the
	// envelope itself, delivered exactly once.
	broken := models.NewMessageBuilder().WithBody("not structured").Build()
	broken.SetProperty(models.PropCondensed, true)
	fake.push(broken)

	require.Len(t, delivered, 1)
	assert.Same(t, broken, delivered[0])
}

func TestCloseDiscardsQueue(t *testing.T) {
	fake := &fakeConsumer{pending: []*models.Message{
		condensedEnvelope(t, `{"v":1,"timestamp":1}`, `{"v":1,"timestamp":2}`),
	}}
	c := New(fake, nil, 0, nil)

	_, err := c.Receive(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, c.QueuedCount())

	require.NoError(t, c.Close())
	assert.Equal(t, 0, c.QueuedCount())
	assert.True(t, fake.closed)
}

func TestEndToEndProxyContract(t *testing.T) {
	// A condensed envelope produced from three near-identical originals
	// must reach the application as three ordinary messages.
	env := condensedEnvelope(t,
		`{"reading":7,"timestamp":100}`,
		`{"reading":7,"timestamp":101}`,
		`{"reading":7,"timestamp":102}`,
	)
	fake := &fakeConsumer{pending: []*models.Message{env}}

	exp := expander.New(nil, nil)
	c := New(fake, exp, 0, nil)
	defer c.Close()

	var bodies []string
	for i := 0; i < 3; i++ {
		msg, err := c.Receive(context.Background())
		require.NoError(t, err)
		require.NotNil(t, msg)
		assert.False(t, exp.IsCondensed(msg))
		bodies = append(bodies, msg.Body)
	}

	assert.Equal(t, []string{
		`{"reading":7,"timestamp":100}`,
		`{"reading":7,"timestamp":101}`,
		`{"reading":7,"timestamp":102}`,
	}, bodies)
}
