package esl

import "strings"

// ChannelState is the low level channel lifecycle state reported by the
// switch in Channel-State-Number.
type ChannelState int

const (
	ChannelStateNew ChannelState = iota
	ChannelStateInit
	ChannelStateRouting
	ChannelStateSoftExecute
	ChannelStateExecute
	ChannelStateExchangeMedia
	ChannelStatePark
	ChannelStateConsumeMedia
	ChannelStateHibernate
	ChannelStateReset
	ChannelStateHangup
	ChannelStateReporting
	ChannelStateDestroy
	ChannelStateNone
)

var channelStateNames = []string{
	"NEW", "INIT", "ROUTING", "SOFT_EXECUTE", "EXECUTE", "EXCHANGE_MEDIA",
	"PARK", "CONSUME_MEDIA", "HIBERNATE", "RESET", "HANGUP", "REPORTING",
	"DESTROY", "NONE",
}

func (s ChannelState) String() string {
	if s < 0 || int(s) >= len(channelStateNames) {
		return "UNKNOWN"
	}
	return channelStateNames[s]
}

// ParseChannelState maps a Channel-State-Number value onto a ChannelState.
// Out of range numbers report ok=false and must be ignored by callers.
func ParseChannelState(n int) (ChannelState, bool) {
	if n < 0 || n >= len(channelStateNames) {
		return ChannelStateNone, false
	}
	return ChannelState(n), true
}

// CallState is the call progression state reported in Channel-Call-State.
type CallState int

const (
	CallStateDown CallState = iota
	CallStateDialing
	CallStateRinging
	CallStateEarly
	CallStateActive
	CallStateHeld
	CallStateRingWait
	CallStateHangup
	CallStateUnheld
)

var callStateNames = []string{
	"DOWN", "DIALING", "RINGING", "EARLY", "ACTIVE", "HELD", "RING_WAIT",
	"HANGUP", "UNHELD",
}

func (s CallState) String() string {
	if s < 0 || int(s) >= len(callStateNames) {
		return "UNKNOWN"
	}
	return callStateNames[s]
}

// ParseCallState maps a Channel-Call-State value onto a CallState. The
// comparison is case-insensitive and EARLY_MEDIA is an alias for EARLY.
// Unknown values report ok=false and must be ignored by callers.
func ParseCallState(name string) (CallState, bool) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	if upper == "EARLY_MEDIA" {
		return CallStateEarly, true
	}
	for i, n := range callStateNames {
		if n == upper {
			return CallState(i), true
		}
	}
	return CallStateDown, false
}
