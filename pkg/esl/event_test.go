package esl_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voxbridge/esl/pkg/esl"
)

// TestEventHeaders verifies first-value access, repeated keys, and
// replacement semantics.
func TestEventHeaders(t *testing.T) {
	ev := esl.NewEvent()
	assert.Equal(t, "", ev.Get("Missing"))
	assert.False(t, ev.Has("Missing"))

	ev.Add("X-Tag", "one")
	ev.Add("X-Tag", "two")
	assert.Equal(t, "one", ev.Get("X-Tag"))
	assert.Equal(t, []string{"one", "two"}, ev.Values("X-Tag"))

	ev.Set("X-Tag", "three")
	assert.Equal(t, []string{"three"}, ev.Values("X-Tag"))

	ev.Set("Event-Name", "HEARTBEAT")
	assert.Equal(t, []string{"X-Tag", "Event-Name"}, ev.Names())
	assert.Equal(t, 2, ev.Len())
	assert.Equal(t, "HEARTBEAT", ev.Name())
}

// TestEventMerge verifies merge replaces shared names and keeps order.
func TestEventMerge(t *testing.T) {
	base := esl.NewEvent()
	base.Set("Content-Type", "text/event-plain")
	base.Set("Content-Length", "120")

	inner := esl.NewEvent()
	inner.Set("Event-Name", "CHANNEL_ANSWER")
	inner.Set("Content-Length", "12")

	base.Merge(inner)
	assert.Equal(t, "text/event-plain", base.ContentType())
	assert.Equal(t, "12", base.Get("Content-Length"))
	assert.Equal(t, "CHANNEL_ANSWER", base.Name())
	assert.Equal(t, []string{"Content-Type", "Content-Length", "Event-Name"}, base.Names())
}

// TestEventChannelUUID verifies the Channel-Unique-ID fallback chain.
func TestEventChannelUUID(t *testing.T) {
	ev := esl.NewEvent()
	assert.Equal(t, "", ev.ChannelUUID())

	ev.Set("Unique-ID", "leg-1")
	assert.Equal(t, "leg-1", ev.ChannelUUID())

	ev.Set("Channel-Unique-ID", "leg-2")
	assert.Equal(t, "leg-2", ev.ChannelUUID())
}
