package esl

import (
	"net/url"
	"strings"
)

// Content types whose body is opaque payload rather than a nested header
// block. These are delivered with the body untouched.
var opaqueContentTypes = map[string]bool{
	ContentTypeAPIResponse:   true,
	ContentTypeRudeRejection: true,
	ContentTypeLogData:       true,
}

// ParseHeaders parses one header block into an Event. Each line is split
// on the first ": "; keys and values are percent-decoded. A line without a
// separator continues the previous value (folded header). A key that
// repeats collects all its values in order.
func ParseHeaders(block string) *Event {
	ev := NewEvent()
	lastKey := ""
	for _, line := range strings.Split(block, "\n") {
		if line == "" {
			continue
		}
		key, value, found := strings.Cut(line, ": ")
		if !found {
			if lastKey != "" {
				ev.appendToLast(lastKey, unescape(line))
			}
			continue
		}
		key = unescape(key)
		ev.Add(key, unescape(value))
		lastKey = key
	}
	return ev
}

// unescape percent-decodes s, falling back to the raw text when the
// encoding is malformed.
func unescape(s string) string {
	if !strings.ContainsRune(s, '%') {
		return s
	}
	decoded, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}

// expandPayload interprets the body of frame. Opaque content types pass
// through as a single event. Otherwise the body is itself a header block
// (optionally followed by its own body after a blank line) describing the
// real event, and may bundle several events when the switch delivered them
// under an event lock. Every returned event carries the nested headers
// merged over the frame headers. A payload without a blank-line separator
// carries no nested headers and is kept whole as the body.
func expandPayload(frame *Event, payload string) []*Event {
	if payload == "" || opaqueContentTypes[frame.ContentType()] {
		frame.Body = payload
		return []*Event{frame}
	}

	headerPart, bodyPart, found := strings.Cut(payload, "\n\n")
	if !found {
		// No header/body separation: the whole payload is body content.
		frame.Body = payload
		return []*Event{frame}
	}
	blocks := splitLockedEvents(headerPart)

	out := make([]*Event, 0, len(blocks))
	for _, block := range blocks {
		ev := NewEvent()
		ev.Merge(frame)
		inner := ParseHeaders(block)
		ev.Merge(inner)
		ev.Body = bodyPart
		out = append(out, ev)
	}
	return out
}

// splitLockedEvents splits a header block that bundles multiple events
// delivered under an event lock. Bundled events are back to back header
// blocks, each starting at an Event-Name line. A block without the lock
// marker is returned whole.
func splitLockedEvents(block string) []string {
	if !strings.Contains(strings.ToLower(block), "event-lock: true") {
		return []string{block}
	}
	parts := strings.Split(block, "\nEvent-Name: ")
	if len(parts) == 1 {
		return parts
	}
	out := make([]string, 0, len(parts))
	out = append(out, parts[0])
	for _, p := range parts[1:] {
		out = append(out, HeaderEventName+": "+p)
	}
	return out
}
