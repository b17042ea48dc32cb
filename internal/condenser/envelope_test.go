package condenser

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mqproxy/internal/canonical"
	"mqproxy/pkg/models"
)

func drainOne(t *testing.T, c *Condenser) *Envelope {
	t.Helper()
	envelopes := c.Drain()
	require.Len(t, envelopes, 1)
	return envelopes[0]
}

func TestEnvelopeAggregatedContent(t *testing.T) {
	c, _ := newTestCondenser(t, time.Hour, 100)

	for i := 0; i < 3; i++ {
		msg := msgWithBody(fmt.Sprintf(`{"v":42,"timestamp":%d}`, 1000+i))
		adm, ok := c.ShouldAdmit(msg)
		require.True(t, ok)
		c.Admit(msg, adm)
	}

	env := drainOne(t, c)
	assert.Equal(t, 3, env.Count())

	body := env.Materialize()
	obj, ok := canonical.DecodeObject(body)
	require.True(t, ok)

	assert.NotContains(t, obj, "timestamp", "extracted field removed from the top level")
	v, ok := canonical.ExtractField(body, "v")
	require.True(t, ok)
	assert.Equal(t, "42", v)

	meta, ok := obj[models.CondensedMetaField].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, meta["condensed"])

	count, ok := canonical.ExtractField(body, models.CondensedMetaField)
	require.True(t, ok)
	assert.Contains(t, count, `"count":3`)
	assert.Contains(t, count, `"originalTimestamps":[1000,1001,1002]`)
	assert.Contains(t, count, `"firstTimestamp":1000`)
	assert.Contains(t, count, `"lastTimestamp":1002`)
}

func TestEnvelopeMaterializeIdempotent(t *testing.T) {
	c, _ := newTestCondenser(t, time.Hour, 100)

	msg := msgWithBody(`{"v":1,"timestamp":7}`)
	adm, _ := c.ShouldAdmit(msg)
	c.Admit(msg, adm)

	env := drainOne(t, c)
	first := env.Materialize()
	second := env.Materialize()
	assert.Equal(t, first, second)
}

func TestEnvelopeNonObjectHeadPassedThrough(t *testing.T) {
	c, _ := newTestCondenser(t, time.Hour, 100)

	msg := msgWithBody(`[{"v":1},{"v":2}]`)
	adm, ok := c.ShouldAdmit(msg)
	require.True(t, ok, "arrays pass the structural fast path")
	c.Admit(msg, adm)

	env := drainOne(t, c)
	assert.Equal(t, `[{"v":1},{"v":2}]`, env.Materialize())
}

func TestEnvelopeNonNumericTimestampsSkipped(t *testing.T) {
	c, _ := newTestCondenser(t, time.Hour, 100)

	bodies := []string{
		`{"v":1,"timestamp":"2024-01-01"}`,
		`{"v":1,"timestamp":1500}`,
	}
	for _, body := range bodies {
		msg := msgWithBody(body)
		adm, ok := c.ShouldAdmit(msg)
		require.True(t, ok)
		c.Admit(msg, adm)
	}

	// Both share a key (timestamp excluded), but only the numeric value
	// lands in the metadata.
	env := drainOne(t, c)
	require.Equal(t, 2, env.Count())
	meta, ok := canonical.ExtractField(env.Materialize(), models.CondensedMetaField)
	require.True(t, ok)
	assert.Contains(t, meta, `"originalTimestamps":[1500]`)
}

func TestEnvelopeNoExtractableTimestamps(t *testing.T) {
	c, _ := newTestCondenser(t, time.Hour, 100)

	msg := msgWithBody(`{"v":1}`)
	adm, _ := c.ShouldAdmit(msg)
	c.Admit(msg, adm)

	env := drainOne(t, c)
	meta, ok := canonical.ExtractField(env.Materialize(), models.CondensedMetaField)
	require.True(t, ok)
	assert.NotContains(t, meta, "originalTimestamps")
	assert.NotContains(t, meta, "firstTimestamp")
	assert.Contains(t, meta, `"count":1`)
}

func TestEnvelopeTimestampsOutside32BitRange(t *testing.T) {
	c, _ := newTestCondenser(t, time.Hour, 100)

	msg := msgWithBody(`{"v":1,"timestamp":8589934592}`)
	adm, _ := c.ShouldAdmit(msg)
	c.Admit(msg, adm)

	env := drainOne(t, c)
	meta, ok := canonical.ExtractField(env.Materialize(), models.CondensedMetaField)
	require.True(t, ok)
	assert.Contains(t, meta, `"originalTimestamps":[8589934592]`)
}

func TestEnvelopeHeaderMetadata(t *testing.T) {
	c, _ := newTestCondenser(t, time.Hour, 100)

	msg := models.NewMessageBuilder().
		WithID("orig-1").
		WithCorrelationID("corr-1").
		WithType("reading").
		WithPriority(7).
		WithTimestamp(time.UnixMilli(123456)).
		WithBody(`{"v":1}`).
		Build()
	adm, _ := c.ShouldAdmit(msg)
	c.Admit(msg, adm)

	env := drainOne(t, c)
	require.Len(t, env.Originals(), 1)
	info := env.Originals()[0]
	assert.Equal(t, "orig-1", info.MessageID)
	assert.Equal(t, "corr-1", info.CorrelationID)
	assert.Equal(t, "reading", info.Type)
	assert.Equal(t, 7, info.Priority)
	assert.Equal(t, int64(123456), info.Timestamp)
	assert.Equal(t, int64(123456), env.FirstTimestamp())
	assert.Equal(t, int64(123456), env.LastTimestamp())
}
