package esl

import (
	"fmt"
	"strconv"
	"strings"
)

// Common header and content-type values of the event socket wire protocol.
const (
	HeaderEventName     = "Event-Name"
	HeaderEventSubclass = "Event-Subclass"
	HeaderContentType   = "Content-Type"
	HeaderContentLength = "Content-Length"
	HeaderUniqueID      = "Unique-ID"
	HeaderJobUUID       = "Job-UUID"
	HeaderAppUUID       = "Application-UUID"
	HeaderReplyText     = "Reply-Text"

	ContentTypeAuthRequest   = "auth/request"
	ContentTypeCommandReply  = "command/reply"
	ContentTypeAPIResponse   = "api/response"
	ContentTypeDisconnect    = "text/disconnect-notice"
	ContentTypeRudeRejection = "text/rude-rejection"
	ContentTypeLogData       = "log/data"
)

// Event is one parsed frame (or bundled sub-frame) from the switch: an
// ordered set of headers plus an optional raw body. A header that appears
// more than once keeps every value in arrival order. There is one Event
// type for every protocol event; the discriminant is the Event-Name header.
type Event struct {
	names   []string
	headers map[string][]string

	// Body is the raw payload that followed the header block, if any.
	Body string
}

// NewEvent returns an empty event.
func NewEvent() *Event {
	return &Event{headers: make(map[string][]string)}
}

// Get returns the first value of the named header, or "" when absent.
func (e *Event) Get(name string) string {
	if vs := e.headers[name]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Values returns all values recorded for the named header in arrival order.
func (e *Event) Values(name string) []string {
	vs := e.headers[name]
	out := make([]string, len(vs))
	copy(out, vs)
	return out
}

// Has reports whether the named header is present.
func (e *Event) Has(name string) bool {
	_, ok := e.headers[name]
	return ok
}

// Set replaces all values of the named header with value.
func (e *Event) Set(name, value string) {
	if _, ok := e.headers[name]; !ok {
		e.names = append(e.names, name)
	}
	e.headers[name] = []string{value}
}

// Add appends value to the named header, turning a repeated key into a
// list without discarding earlier values.
func (e *Event) Add(name, value string) {
	if _, ok := e.headers[name]; !ok {
		e.names = append(e.names, name)
	}
	e.headers[name] = append(e.headers[name], value)
}

// appendToLast extends the most recent value of the named header,
// supporting folded (continuation) header lines.
func (e *Event) appendToLast(name, fragment string) {
	vs := e.headers[name]
	if len(vs) == 0 {
		e.Set(name, fragment)
		return
	}
	vs[len(vs)-1] += "\n" + fragment
}

// Names returns the header names in order of first arrival.
func (e *Event) Names() []string {
	out := make([]string, len(e.names))
	copy(out, e.names)
	return out
}

// Len reports the number of distinct header names.
func (e *Event) Len() int { return len(e.names) }

// Merge copies every header of other into e, replacing values for names
// both events carry. The body is left untouched.
func (e *Event) Merge(other *Event) {
	for _, name := range other.names {
		vs := other.headers[name]
		if _, ok := e.headers[name]; !ok {
			e.names = append(e.names, name)
		}
		e.headers[name] = append([]string(nil), vs...)
	}
}

// Name returns the Event-Name header.
func (e *Event) Name() string { return e.Get(HeaderEventName) }

// Subclass returns the Event-Subclass header.
func (e *Event) Subclass() string { return e.Get(HeaderEventSubclass) }

// ContentType returns the Content-Type header.
func (e *Event) ContentType() string { return e.Get(HeaderContentType) }

// ReplyText returns the Reply-Text header of a command reply.
func (e *Event) ReplyText() string { return e.Get(HeaderReplyText) }

// ChannelUUID resolves the call leg an event belongs to: Channel-Unique-ID
// when present, otherwise Unique-ID. Empty means not channel-scoped.
func (e *Event) ChannelUUID() string {
	if id := e.Get("Channel-Unique-ID"); id != "" {
		return id
	}
	return e.Get(HeaderUniqueID)
}

// String renders a compact description for logging.
func (e *Event) String() string {
	switch {
	case e.Name() != "":
		return fmt.Sprintf("event %s (%d headers)", e.Name(), len(e.names))
	case e.ContentType() != "":
		return fmt.Sprintf("frame %s (%d headers)", e.ContentType(), len(e.names))
	default:
		return fmt.Sprintf("frame (%d headers)", len(e.names))
	}
}

// dispatchKey is the effective handler-registry key for an event: the
// subclass for CUSTOM events, the event name otherwise.
func (e *Event) dispatchKey() string {
	name := e.Name()
	if name == "CUSTOM" {
		if sub := e.Subclass(); sub != "" {
			return sub
		}
	}
	return name
}

// contentLength returns the declared body length. When the header was
// polluted by a folded line only the leading token counts.
func (e *Event) contentLength() (int, bool) {
	raw := e.Get(HeaderContentLength)
	if raw == "" {
		return 0, false
	}
	if i := strings.IndexByte(raw, '\n'); i >= 0 {
		raw = raw[:i]
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return n, true
}
