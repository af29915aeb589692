package esl_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxbridge/esl/pkg/esl"
)

// TestParseHeaders verifies splitting, decoding, and value collection.
func TestParseHeaders(t *testing.T) {
	block := "Event-Name: CHANNEL_CREATE\n" +
		"Unique-ID: 1c574b5e-0b14-4a32-9b64-9d8f1d0e9e2b\n" +
		"Caller-Caller-ID-Name: John%20Doe\n"

	ev := esl.ParseHeaders(block)
	require.NotNil(t, ev)
	assert.Equal(t, "CHANNEL_CREATE", ev.Name())
	assert.Equal(t, "1c574b5e-0b14-4a32-9b64-9d8f1d0e9e2b", ev.Get("Unique-ID"))
	assert.Equal(t, "John Doe", ev.Get("Caller-Caller-ID-Name"))
}

// TestParseHeadersRepeatedKey verifies repeated headers keep every value
// in arrival order.
func TestParseHeadersRepeatedKey(t *testing.T) {
	block := "Event-Name: CUSTOM\n" +
		"X-Custom: first\n" +
		"X-Custom: second\n"

	ev := esl.ParseHeaders(block)
	assert.Equal(t, "first", ev.Get("X-Custom"))
	assert.Equal(t, []string{"first", "second"}, ev.Values("X-Custom"))
}

// TestParseHeadersContinuation verifies a line without a separator extends
// the previous value.
func TestParseHeadersContinuation(t *testing.T) {
	block := "Event-Name: API\n" +
		"API-Output: line one\n" +
		"line two\n"

	ev := esl.ParseHeaders(block)
	assert.Equal(t, "line one\nline two", ev.Get("API-Output"))
}

// TestParseHeadersMalformedEscape verifies malformed percent sequences
// fall back to the raw text.
func TestParseHeadersMalformedEscape(t *testing.T) {
	ev := esl.ParseHeaders("X-Raw: 100%\n")
	assert.Equal(t, "100%", ev.Get("X-Raw"))
}
