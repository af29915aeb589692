package journal

import (
	"log/slog"
	"time"

	"github.com/voxbridge/esl/pkg/esl"
)

// lifecycleEvents are the event names a Recorder journals.
var lifecycleEvents = map[string]bool{
	"CHANNEL_CREATE":          true,
	"CHANNEL_ANSWER":          true,
	"CHANNEL_BRIDGE":          true,
	"CHANNEL_UNBRIDGE":        true,
	"CHANNEL_HANGUP_COMPLETE": true,
	"CHANNEL_DESTROY":         true,
}

// Recorder journals channel lifecycle events from one session into a
// Store.
type Recorder struct {
	sub *esl.Subscription
}

// Attach subscribes to the session's event stream and records lifecycle
// events until Detach. Store write failures are logged, never propagated.
func Attach(sess *esl.Session, store Store, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	sub := sess.On("*", func(ev *esl.Event) {
		name := ev.Name()
		if !lifecycleEvents[name] {
			return
		}
		rec := Record{
			ChannelUUID:    ev.ChannelUUID(),
			Event:          name,
			CallState:      ev.Get("Channel-Call-State"),
			HangupCause:    ev.Get("Hangup-Cause"),
			CallerIDNumber: ev.Get("Caller-Caller-ID-Number"),
			Destination:    ev.Get("Caller-Destination-Number"),
			Timestamp:      time.Now().UTC(),
		}
		if err := store.Append(rec); err != nil {
			log.Error("failed to journal call record",
				slog.String("channel_uuid", rec.ChannelUUID),
				slog.String("event", rec.Event),
				slog.String("error", err.Error()))
		}
	})
	return &Recorder{sub: sub}
}

// Detach stops recording.
func (r *Recorder) Detach() {
	r.sub.Unsubscribe()
}
