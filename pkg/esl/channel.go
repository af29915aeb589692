package esl

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/voxbridge/esl/pkg/esl/observability"
)

// identityHeaders are event headers mirrored into the channel variable map
// alongside the variable_ prefixed ones.
var identityHeaders = map[string]bool{
	"Caller-Caller-ID-Number":   true,
	"Caller-Caller-ID-Name":     true,
	"Caller-Destination-Number": true,
	"Unique-ID":                 true,
	"Channel-Name":              true,
}

// Channel tracks one call leg: its lifecycle state, call state, and known
// variables, all fed by the session's event dispatch. Command methods act
// on this leg via the session's connection.
type Channel struct {
	uuid string
	sess *Session

	mu        sync.Mutex
	state     ChannelState
	callState CallState
	variables map[string]string
	gone      bool

	reg *handlerRegistry
}

func newChannel(id string, sess *Session, initial ChannelState) *Channel {
	return &Channel{
		uuid:      id,
		sess:      sess,
		state:     initial,
		callState: CallStateDown,
		variables: make(map[string]string),
		reg:       newHandlerRegistry(),
	}
}

// UUID returns the channel's unique id.
func (c *Channel) UUID() string { return c.uuid }

// State returns the current lifecycle state.
func (c *Channel) State() ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CallState returns the current call progression state.
func (c *Channel) CallState() CallState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.callState
}

// IsGone reports whether the leg has hung up or been destroyed. Once true
// it never resets.
func (c *Channel) IsGone() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gone
}

// Variable returns a known channel variable.
func (c *Channel) Variable(name string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.variables[name]
	return v, ok
}

// Variables returns a snapshot of all known channel variables.
func (c *Channel) Variables() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.variables))
	for k, v := range c.variables {
		out[k] = v
	}
	return out
}

// On registers a channel-scoped handler. The key is an event name, a
// CUSTOM subclass, "CUSTOM" for any custom event, or "*" for everything
// this leg receives.
func (c *Channel) On(eventName string, h Handler) *Subscription {
	return c.reg.on(strings.ToUpper(eventName), h)
}

// handleEvent applies the event to the state machine, then fans it out to
// the channel's own handlers.
func (c *Channel) handleEvent(ev *Event) {
	c.apply(ev)

	name := ev.Name()
	keys := []string{ev.dispatchKey()}
	if name == "CUSTOM" && ev.Subclass() != "" {
		keys = append(keys, "CUSTOM")
	}
	keys = append(keys, "*")

	for _, h := range c.reg.snapshot(keys...) {
		go c.invoke(name, h, ev)
	}
}

func (c *Channel) invoke(name string, h Handler, ev *Event) {
	defer func() {
		if v := recover(); v != nil {
			observability.LogHandlerFailure(c.sess.log, name, v)
		}
	}()
	h(ev)
}

// apply updates state, call state, and variables from an event. Invalid
// state values are logged and ignored; known state is never clobbered by
// garbage.
func (c *Channel) apply(ev *Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if raw := ev.Get("Channel-State-Number"); raw != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
			if next, ok := ParseChannelState(n); ok {
				if next != c.state {
					c.state = next
					observability.LogChannelState(c.sess.log, c.uuid, c.state.String(), c.callState.String())
				}
			} else {
				c.sess.log.Warn("invalid channel state number",
					slog.String("channel_uuid", c.uuid), slog.Int("value", n))
			}
		} else {
			c.sess.log.Warn("non-integer channel state number",
				slog.String("channel_uuid", c.uuid), slog.String("value", raw))
		}
	}

	if raw := ev.Get("Channel-Call-State"); raw != "" {
		if next, ok := ParseCallState(raw); ok {
			if next != c.callState {
				c.callState = next
				observability.LogChannelState(c.sess.log, c.uuid, c.state.String(), c.callState.String())
			}
		} else {
			c.sess.log.Warn("unknown channel call state",
				slog.String("channel_uuid", c.uuid), slog.String("value", raw))
		}
	}

	if c.callState == CallStateHangup || c.state == ChannelStateDestroy {
		c.gone = true
	}

	for _, name := range ev.Names() {
		switch {
		case strings.HasPrefix(name, "variable_"):
			key := strings.TrimPrefix(name, "variable_")
			if value := ev.Get(name); c.variables[key] != value {
				c.variables[key] = value
			}
		case identityHeaders[name]:
			if value := ev.Get(name); c.variables[name] != value {
				c.variables[name] = value
			}
		}
	}
}

func (c *Channel) checkGone() error {
	if c.IsGone() {
		return &GoneError{ChannelUUID: c.uuid}
	}
	return nil
}

// Execute runs a dialplan application on this leg without waiting for its
// completion. The returned result settles on CHANNEL_EXECUTE_COMPLETE or
// when the leg hangs up first.
func (c *Channel) Execute(ctx context.Context, application, data string) (*CommandResult, error) {
	return c.executeWith(ctx, application, data, "")
}

func (c *Channel) executeWith(ctx context.Context, application, data, appUUID string) (*CommandResult, error) {
	if err := c.checkGone(); err != nil {
		return nil, err
	}
	return c.sess.sendMsg(ctx, msgSpec{
		Command: "execute",
		App:     application,
		Data:    data,
		UUID:    c.uuid,
		AppUUID: appUUID,
	})
}

// executeAndWait runs an application and blocks until it completes, the
// leg is interrupted, or ctx is done.
func (c *Channel) executeAndWait(ctx context.Context, application, data string) (*CommandResult, error) {
	ctx, span := observability.StartExecuteSpan(ctx, application, c.uuid)
	result, err := c.Execute(ctx, application, data)
	if err != nil {
		observability.EndSpanWithError(span, err)
		return nil, err
	}
	err = result.Wait(ctx)
	observability.EndSpanWithError(span, err)
	if err != nil {
		return result, err
	}
	return result, nil
}

// Answer answers the leg and waits for completion.
func (c *Channel) Answer(ctx context.Context) (*CommandResult, error) {
	return c.executeAndWait(ctx, "answer", "")
}

// Park moves the leg to park and waits for completion.
func (c *Channel) Park(ctx context.Context) (*CommandResult, error) {
	return c.executeAndWait(ctx, "park", "")
}

// Playback plays an audio file on the leg and waits for it to finish.
func (c *Channel) Playback(ctx context.Context, path string) (*CommandResult, error) {
	return c.executeAndWait(ctx, "playback", path)
}

// Silence plays ms milliseconds of silence.
func (c *Channel) Silence(ctx context.Context, ms int) (*CommandResult, error) {
	return c.Playback(ctx, "silence_stream://"+strconv.Itoa(ms))
}

// Say speaks text with the say application. lang may be empty; module
// defaults belong to the caller.
func (c *Channel) Say(ctx context.Context, text, module, lang, kind, method, gender string) (*CommandResult, error) {
	if lang != "" {
		module += ":" + lang
	}
	args := strings.Join([]string{module, kind, method, gender, text}, " ")
	return c.executeAndWait(ctx, "say", args)
}

// PlayAndGetDigitsArgs carries the ordered arguments of the
// play_and_get_digits application. Optional fields render empty.
type PlayAndGetDigitsArgs struct {
	Min               int
	Max               int
	Tries             int
	Timeout           int
	Terminators       string
	File              string
	InvalidFile       string
	VarName           string
	Regexp            string
	DigitTimeout      int
	TransferOnFailure string
}

func (a PlayAndGetDigitsArgs) serialize() string {
	optInt := func(n int) string {
		if n == 0 {
			return ""
		}
		return strconv.Itoa(n)
	}
	// Argument order is fixed by the application.
	fields := []string{
		strconv.Itoa(a.Min), strconv.Itoa(a.Max), strconv.Itoa(a.Tries),
		strconv.Itoa(a.Timeout), a.Terminators, a.File,
		a.InvalidFile, a.VarName, a.Regexp, optInt(a.DigitTimeout),
		a.TransferOnFailure,
	}
	return strings.TrimRight(strings.Join(fields, " "), " ")
}

// PlayAndGetDigits prompts for DTMF input and waits for the application to
// complete; the collected digits land in args.VarName.
func (c *Channel) PlayAndGetDigits(ctx context.Context, args PlayAndGetDigitsArgs) (*CommandResult, error) {
	return c.executeAndWait(ctx, "play_and_get_digits", args.serialize())
}

// Log writes a message to the switch log via the log application.
func (c *Channel) Log(ctx context.Context, level, message string) (*CommandResult, error) {
	return c.executeAndWait(ctx, "log", level+" "+message)
}

// SetVariable sets a channel variable without waiting for completion.
func (c *Channel) SetVariable(ctx context.Context, name, value string) (*CommandResult, error) {
	return c.Execute(ctx, "set", name+"="+value)
}

// GetVariable returns the locally known value of a channel variable.
// Values track variable_ headers from received events.
func (c *Channel) GetVariable(name string) (string, bool) {
	return c.Variable(name)
}

// Hangup hangs the leg up. Hanging up a leg that is already gone (or in
// the hangup path) is a no-op that returns an already-successful result.
func (c *Channel) Hangup(ctx context.Context, cause string) (*CommandResult, error) {
	c.mu.Lock()
	redundant := c.gone || c.state == ChannelStateHangup || c.state == ChannelStateDestroy
	c.mu.Unlock()

	if redundant {
		result := newCommandResult()
		reply := NewEvent()
		reply.Set(HeaderReplyText, "+OK channel already hungup or gone")
		result.resolveReply(reply)
		return result, nil
	}

	result, err := c.sess.sendMsg(ctx, msgSpec{
		Command: "hangup",
		Data:    cause,
		UUID:    c.uuid,
	})
	if err != nil {
		return nil, err
	}
	if err := result.Wait(ctx); err != nil {
		return result, err
	}
	return result, nil
}

// Bridge bridges this leg to a dialstring, pre-creating and registering
// the B-leg so its events are tracked from the first moment. The caller
// gets the bridge execution result (settling when the bridge application
// completes) and the new leg.
func (c *Channel) Bridge(ctx context.Context, target string, callVariables map[string]any) (*CommandResult, *Channel, error) {
	if err := c.checkGone(); err != nil {
		return nil, nil, err
	}

	blegUUID := uuid.NewString()
	bridgeAppUUID := uuid.NewString()

	vars := make(map[string]any, len(callVariables)+3)
	for k, v := range callVariables {
		vars[k] = v
	}
	vars["origination_uuid"] = blegUUID

	// Carry the A-leg caller id over unless the caller supplied one.
	if _, ok := vars["origination_caller_id_name"]; !ok {
		if name, ok := c.Variable("Caller-Caller-ID-Name"); ok && name != "" {
			vars["origination_caller_id_name"] = name
		}
	}
	if _, ok := vars["origination_caller_id_number"]; !ok {
		if num, ok := c.Variable("Caller-Caller-ID-Number"); ok && num != "" {
			vars["origination_caller_id_number"] = num
		}
	}
	for _, key := range []string{"origination_caller_id_name", "origination_caller_id_number"} {
		if v, ok := vars[key]; ok {
			if s, isStr := v.(string); isStr && s == "" {
				delete(vars, key)
			}
		}
	}

	dialstring := BuildVariableString(vars) + target

	bleg := newChannel(blegUUID, c.sess, ChannelStateNew)
	c.sess.register(bleg)

	if err := c.sess.Filter(ctx, HeaderUniqueID, blegUUID); err != nil {
		c.sess.log.Error("failed to add filter for bridge leg",
			slog.String("channel_uuid", blegUUID), slog.String("error", err.Error()))
	}

	result, err := c.executeWith(ctx, "bridge", dialstring, bridgeAppUUID)
	if err != nil {
		c.sess.deregister(blegUUID)
		return nil, nil, err
	}
	return result, bleg, nil
}

// BridgeTo bridges this leg to another leg already under management,
// using a background uuid_bridge job. Waits for the job to complete.
func (c *Channel) BridgeTo(ctx context.Context, other *Channel) (*JobResult, error) {
	if err := c.checkGone(); err != nil {
		return nil, err
	}
	job, err := c.sess.BGAPI(ctx, "uuid_bridge "+c.uuid+" "+other.uuid)
	if err != nil {
		return nil, err
	}
	if err := job.Wait(ctx); err != nil {
		return job, err
	}
	return job, nil
}

// Unbridge detaches this leg from its peer with a background uuid_transfer
// job. With park true both legs are parked; otherwise the leg is
// transferred to destination. Waits for the job to complete.
func (c *Channel) Unbridge(ctx context.Context, destination string, park bool) (*JobResult, error) {
	if err := c.checkGone(); err != nil {
		return nil, err
	}

	parts := []string{"uuid_transfer", c.uuid}
	if park {
		parts = append(parts, "-both", "park:")
	} else if destination != "" {
		parts = append(parts, destination)
	}
	parts = append(parts, "inline")

	job, err := c.sess.BGAPI(ctx, strings.Join(parts, " "))
	if err != nil {
		return nil, err
	}
	if err := job.Wait(ctx); err != nil {
		return job, err
	}
	return job, nil
}
