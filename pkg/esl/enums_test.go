package esl_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voxbridge/esl/pkg/esl"
)

// TestParseChannelState verifies the full numeric range and rejection of
// out-of-range values.
func TestParseChannelState(t *testing.T) {
	wantNames := []string{
		"NEW", "INIT", "ROUTING", "SOFT_EXECUTE", "EXECUTE", "EXCHANGE_MEDIA",
		"PARK", "CONSUME_MEDIA", "HIBERNATE", "RESET", "HANGUP", "REPORTING",
		"DESTROY", "NONE",
	}
	for n, name := range wantNames {
		state, ok := esl.ParseChannelState(n)
		assert.True(t, ok, "state %d", n)
		assert.Equal(t, name, state.String())
	}

	_, ok := esl.ParseChannelState(-1)
	assert.False(t, ok)
	_, ok = esl.ParseChannelState(14)
	assert.False(t, ok)
}

// TestParseCallState verifies names, case-insensitivity, the EARLY_MEDIA
// alias, and rejection of unknown values.
func TestParseCallState(t *testing.T) {
	tests := []struct {
		in   string
		want esl.CallState
		ok   bool
	}{
		{"DOWN", esl.CallStateDown, true},
		{"DIALING", esl.CallStateDialing, true},
		{"RINGING", esl.CallStateRinging, true},
		{"EARLY", esl.CallStateEarly, true},
		{"ACTIVE", esl.CallStateActive, true},
		{"HELD", esl.CallStateHeld, true},
		{"RING_WAIT", esl.CallStateRingWait, true},
		{"HANGUP", esl.CallStateHangup, true},
		{"UNHELD", esl.CallStateUnheld, true},
		{"active", esl.CallStateActive, true},
		{"Early_Media", esl.CallStateEarly, true},
		{"EARLY_MEDIA", esl.CallStateEarly, true},
		{" RINGING ", esl.CallStateRinging, true},
		{"BOGUS", esl.CallStateDown, false},
		{"", esl.CallStateDown, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := esl.ParseCallState(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
