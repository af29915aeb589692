package journal_test

import (
	"fmt"
	"net"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxbridge/esl/pkg/esl"
	"github.com/voxbridge/esl/pkg/esl/journal"
)

// writeEvent pushes one text/event-plain frame to the session side of the
// pipe.
func writeEvent(t *testing.T, conn net.Conn, headers map[string]string) {
	t.Helper()
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var payload strings.Builder
	for _, k := range keys {
		payload.WriteString(k + ": " + headers[k] + "\n")
	}
	payload.WriteString("\n")
	frame := fmt.Sprintf("Content-Type: text/event-plain\nContent-Length: %d\n\n%s",
		payload.Len(), payload.String())
	_, err := conn.Write([]byte(frame))
	require.NoError(t, err)
}

// TestRecorder verifies lifecycle events are journaled and others are not.
func TestRecorder(t *testing.T) {
	client, server := net.Pipe()
	sess := esl.NewSession(client, esl.WithMyEvents(true))
	sess.Start()
	t.Cleanup(sess.Close)

	store := journal.NewMemoryStore()
	recorder := journal.Attach(sess, store, nil)

	writeEvent(t, server, map[string]string{
		"Event-Name":              "CHANNEL_CREATE",
		"Unique-ID":               "leg-1",
		"Channel-Call-State":      "DOWN",
		"Caller-Caller-ID-Number": "100",
	})
	writeEvent(t, server, map[string]string{
		"Event-Name": "HEARTBEAT",
	})
	writeEvent(t, server, map[string]string{
		"Event-Name":         "CHANNEL_HANGUP_COMPLETE",
		"Unique-ID":          "leg-1",
		"Channel-Call-State": "HANGUP",
		"Hangup-Cause":       "NORMAL_CLEARING",
	})

	require.Eventually(t, func() bool {
		records, err := store.ByChannel("leg-1")
		return err == nil && len(records) == 2
	}, time.Second, 5*time.Millisecond)

	records, err := store.ByChannel("leg-1")
	require.NoError(t, err)
	assert.Equal(t, "CHANNEL_CREATE", records[0].Event)
	assert.Equal(t, "100", records[0].CallerIDNumber)
	assert.Equal(t, "CHANNEL_HANGUP_COMPLETE", records[1].Event)
	assert.Equal(t, "NORMAL_CLEARING", records[1].HangupCause)

	// The non-lifecycle heartbeat never landed.
	recent, err := store.Recent(10)
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	// After detaching nothing further is recorded.
	recorder.Detach()
	writeEvent(t, server, map[string]string{
		"Event-Name": "CHANNEL_DESTROY",
		"Unique-ID":  "leg-1",
	})
	time.Sleep(20 * time.Millisecond)
	recent, err = store.Recent(10)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}
