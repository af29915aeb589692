package esl

import (
	"context"
	"strings"
	"sync"
)

// CommandResult tracks one issued command through to its outcome. It is a
// value cell set exactly once: the first of the synchronous reply, the
// completion event, an interruption, or a transport failure settles it;
// later resolutions are no-ops.
type CommandResult struct {
	mu      sync.Mutex
	done    chan struct{}
	settled bool

	reply     *Event
	completed *Event
	err       error

	// subs are event subscriptions feeding this result; they are released
	// when the result settles.
	subs []*Subscription
}

func newCommandResult() *CommandResult {
	return &CommandResult{done: make(chan struct{})}
}

// attach registers a feeding subscription. If the result already settled
// the subscription is released immediately.
func (r *CommandResult) attach(sub *Subscription) {
	r.mu.Lock()
	if r.settled {
		r.mu.Unlock()
		sub.Unsubscribe()
		return
	}
	r.subs = append(r.subs, sub)
	r.mu.Unlock()
}

// setReply records the synchronous command reply without settling the
// result. Execute-class commands stay pending until completion.
func (r *CommandResult) setReply(reply *Event) {
	r.mu.Lock()
	if !r.settled && r.reply == nil {
		r.reply = reply
	}
	r.mu.Unlock()
}

// resolve settles the result with its completion event.
func (r *CommandResult) resolve(completed *Event) {
	r.settle(func() { r.completed = completed })
}

// resolveReply settles the result directly from the synchronous reply,
// used for commands with no asynchronous completion.
func (r *CommandResult) resolveReply(reply *Event) {
	r.settle(func() { r.reply = reply })
}

// fail settles the result with an error.
func (r *CommandResult) fail(err error) {
	r.settle(func() { r.err = err })
}

func (r *CommandResult) settle(apply func()) {
	r.mu.Lock()
	if r.settled {
		r.mu.Unlock()
		return
	}
	r.settled = true
	apply()
	subs := r.subs
	r.subs = nil
	close(r.done)
	r.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

// Done returns a channel closed when the result settles.
func (r *CommandResult) Done() <-chan struct{} { return r.done }

// Completed reports whether the result has settled.
func (r *CommandResult) Completed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settled
}

// Wait blocks until the result settles or ctx is done, returning the
// stored error (nil on success).
func (r *CommandResult) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the stored error, if the result settled with one.
func (r *CommandResult) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Succeeded reports whether the command succeeded. Only meaningful once
// the result has completed; before that it returns false with
// ErrNotCompleted.
func (r *CommandResult) Succeeded() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.settled {
		return false, ErrNotCompleted
	}
	if r.err != nil {
		return false, nil
	}
	if r.reply != nil {
		text := r.reply.ReplyText()
		if text == "" {
			text = r.reply.Body
		}
		if strings.HasPrefix(strings.TrimSpace(text), "-ERR") {
			return false, nil
		}
	}
	return true, nil
}

// Reply returns the synchronous command reply, if one was recorded.
func (r *CommandResult) Reply() *Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reply
}

// CompleteEvent returns the completion event, if the result settled on one.
func (r *CommandResult) CompleteEvent() *Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completed
}

// Response returns the Application-Response header of the completion
// event, or "" when not complete.
func (r *CommandResult) Response() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.completed == nil {
		return ""
	}
	return r.completed.Get("Application-Response")
}
