package esl

import (
	"context"
	"strings"
	"sync"
)

// JobResult tracks one background API job from submission to its
// BACKGROUND_JOB event.
type JobResult struct {
	// JobUUID is the correlation id the job was submitted under.
	JobUUID string

	mu      sync.Mutex
	done    chan struct{}
	settled bool
	event   *Event
	sub     *Subscription
}

func newJobResult(jobUUID string) *JobResult {
	return &JobResult{JobUUID: jobUUID, done: make(chan struct{})}
}

// attach registers the feeding subscription. If the job already settled
// the subscription is released immediately.
func (j *JobResult) attach(sub *Subscription) {
	j.mu.Lock()
	if j.settled {
		j.mu.Unlock()
		sub.Unsubscribe()
		return
	}
	j.sub = sub
	j.mu.Unlock()
}

// release drops the feeding subscription without settling the job.
func (j *JobResult) release() {
	j.mu.Lock()
	sub := j.sub
	j.sub = nil
	j.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
}

func (j *JobResult) resolve(ev *Event) {
	j.mu.Lock()
	if j.settled {
		j.mu.Unlock()
		return
	}
	j.settled = true
	j.event = ev
	sub := j.sub
	j.sub = nil
	close(j.done)
	j.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

// Done returns a channel closed when the job completes.
func (j *JobResult) Done() <-chan struct{} { return j.done }

// Completed reports whether the BACKGROUND_JOB event has arrived.
func (j *JobResult) Completed() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.settled
}

// Wait blocks until the job completes or ctx is done.
func (j *JobResult) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Event returns the BACKGROUND_JOB event, or nil while pending.
func (j *JobResult) Event() *Event {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.event
}

// Body returns the job's response body, or "" while pending.
func (j *JobResult) Body() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.event == nil {
		return ""
	}
	return j.event.Body
}

// OK classifies the job body: an `-ERR` prefix or an ERROR marker means
// failure, anything else (including `+OK`) means success. Only meaningful
// once completed.
func (j *JobResult) OK() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.event == nil {
		return false
	}
	return !jobBodyFailed(j.event.Body)
}

func jobBodyFailed(body string) bool {
	trimmed := strings.TrimSpace(body)
	if strings.HasPrefix(trimmed, "-ERR") {
		return true
	}
	return strings.Contains(strings.ToUpper(trimmed), "ERROR")
}
