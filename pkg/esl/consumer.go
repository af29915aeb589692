package esl

import (
	"context"
	"regexp"
	"strings"
)

// Consumer is a handler-oriented inbound client: handlers are registered
// up front and Run subscribes to exactly the events they cover.
type Consumer struct {
	addr     string
	password string
	opts     []Option

	handlers map[string][]Handler
	client   *Inbound
}

// NewConsumer prepares a consumer for the switch at addr.
func NewConsumer(addr, password string, opts ...Option) *Consumer {
	return &Consumer{
		addr:     addr,
		password: password,
		opts:     opts,
		handlers: make(map[string][]Handler),
	}
}

// On registers a handler for an event name, a CUSTOM subclass (any key
// containing "::"), or "*" for everything.
func (c *Consumer) On(eventName string, h Handler) {
	key := strings.ToUpper(eventName)
	if strings.Contains(eventName, "::") {
		key = eventName
	}
	c.handlers[key] = append(c.handlers[key], h)
}

// Run connects, subscribes to the union of registered events, and blocks
// until ctx is done or the connection drops.
func (c *Consumer) Run(ctx context.Context) error {
	client, err := DialInbound(ctx, c.addr, c.password, c.opts...)
	if err != nil {
		return err
	}
	c.client = client
	defer client.Close()

	for key, hs := range c.handlers {
		for _, h := range hs {
			client.On(key, h)
		}
	}

	names := c.subscriptionNames()
	if err := client.Events(ctx, "plain", names...); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-client.Done():
		return ErrDisconnected
	}
}

// subscriptionNames derives the events command arguments from the
// registered handlers. A wildcard handler subscribes to ALL; CUSTOM
// subclass keys become "CUSTOM <subclass>".
func (c *Consumer) subscriptionNames() []string {
	var names []string
	var subclasses []string
	for key := range c.handlers {
		switch {
		case key == "*":
			return []string{"ALL"}
		case strings.Contains(key, "::"):
			subclasses = append(subclasses, key)
		default:
			names = append(names, key)
		}
	}
	if len(subclasses) > 0 {
		names = append(names, "CUSTOM")
		names = append(names, subclasses...)
	}
	return names
}

// FilterHeader wraps a handler so it only runs when the named header
// equals value.
func FilterHeader(header, value string, h Handler) Handler {
	return func(ev *Event) {
		if ev.Get(header) == value {
			h(ev)
		}
	}
}

// FilterHeaderMatch wraps a handler so it only runs when the named header
// matches the regular expression.
func FilterHeaderMatch(header string, pattern *regexp.Regexp, h Handler) Handler {
	return func(ev *Event) {
		if pattern.MatchString(ev.Get(header)) {
			h(ev)
		}
	}
}
