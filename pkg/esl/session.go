package esl

import (
	"context"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/voxbridge/esl/pkg/esl/observability"
)

// Session manages one connection and the channels living on it. Incoming
// events are dispatched to their channel by Channel-Unique-ID (falling
// back to Unique-ID); the first channel seen becomes the A-leg.
type Session struct {
	*protocol

	// Context holds the headers of the initial connect reply on outbound
	// connections.
	Context *Event

	mu       sync.Mutex
	channels map[string]*Channel
	channelA *Channel

	myEvents bool
	linger   bool
}

// NewSession wraps an established connection. Start must be called before
// any command is sent.
func NewSession(conn net.Conn, opts ...Option) *Session {
	o := buildOptions(opts)
	s := &Session{
		protocol: newProtocol(conn, o.Logger, o.Metrics),
		channels: make(map[string]*Channel),
		myEvents: o.MyEvents,
		linger:   o.Linger,
	}
	s.protocol.dispatch = s.dispatchEvent
	return s
}

// Start launches the session's reader and router.
func (s *Session) Start() { s.protocol.start() }

// Close tears the session down.
func (s *Session) Close() { s.protocol.Stop() }

// ChannelA returns the session's first (initiating) channel, or nil.
func (s *Session) ChannelA() *Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channelA
}

// Channel returns a managed channel by id.
func (s *Session) Channel(id string) (*Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[id]
	if !ok {
		return nil, ErrChannelNotFound
	}
	return ch, nil
}

// Channels returns a snapshot of all managed channels keyed by id.
func (s *Session) Channels() map[string]*Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*Channel, len(s.channels))
	for id, ch := range s.channels {
		out[id] = ch
	}
	return out
}

func (s *Session) register(ch *Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[ch.uuid] = ch
	if s.channelA == nil {
		s.channelA = ch
	}
}

func (s *Session) deregister(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.channels, id)
	if s.channelA != nil && s.channelA.uuid == id {
		s.channelA = nil
	}
}

// dispatchEvent routes one event to its channel, creating channels on
// their designated first events. It runs synchronously on the router so
// state updates keep event order.
func (s *Session) dispatchEvent(ev *Event) {
	id := ev.ChannelUUID()
	if id == "" {
		return
	}

	s.mu.Lock()
	ch := s.channels[id]
	needFilter := false
	if ch == nil {
		// The connect reply on an outbound socket describes the A-leg but
		// arrives as a command reply, not a CHANNEL_CREATE.
		initialReply := s.channelA == nil &&
			ev.ContentType() == ContentTypeCommandReply &&
			ev.Has("Channel-State")

		name := ev.Name()
		if name != "CHANNEL_CREATE" && name != "CHANNEL_DATA" && !initialReply {
			s.mu.Unlock()
			return
		}

		ch = newChannel(id, s, ChannelStateNew)
		s.channels[id] = ch
		if s.channelA == nil {
			s.channelA = ch
		}
		needFilter = !s.myEvents && !initialReply
	}
	s.mu.Unlock()

	if needFilter {
		// Fire and forget: awaiting the reply here would block the router
		// that produces it.
		go func() {
			if err := s.Filter(context.Background(), HeaderUniqueID, id); err != nil {
				s.log.Error("failed to add filter for new channel",
					slog.String("channel_uuid", id), slog.String("error", err.Error()))
			}
		}()
	}

	ch.handleEvent(ev)

	if ev.Name() == "CHANNEL_DESTROY" {
		s.deregister(id)
	}
}

// msgSpec describes one sendmsg frame.
type msgSpec struct {
	Command string
	App     string
	Data    string
	UUID    string
	AppUUID string
	Lock    bool
	Headers map[string]string
}

func (m msgSpec) frame(appUUID string) string {
	var b strings.Builder
	b.WriteString("sendmsg")
	if m.UUID != "" {
		b.WriteString(" " + m.UUID)
	}
	b.WriteString("\ncall-command: " + m.Command)

	if m.Command == "execute" {
		b.WriteString("\nexecute-app-name: " + m.App)
		if m.Data != "" {
			b.WriteString("\nexecute-app-arg: " + m.Data)
		}
		b.WriteString("\nEvent-UUID: " + appUUID)
	}
	if m.Lock {
		b.WriteString("\nevent-lock: true")
	}
	if m.Command == "hangup" {
		b.WriteString("\nhangup-cause: " + m.Data)
	}

	keys := make([]string, 0, len(m.Headers))
	for k := range m.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString("\n" + k + ": " + m.Headers[k])
	}
	return b.String()
}

// sendMsg sends one sendmsg frame. Execute commands return a pending
// result that settles on the matching CHANNEL_EXECUTE_COMPLETE, or fails
// with an InterruptedError when the leg hangs up or is destroyed first.
// The completion and interruption waiters are armed before the frame is
// written so no event can slip past them. Non-execute commands settle from
// the synchronous reply.
func (s *Session) sendMsg(ctx context.Context, spec msgSpec) (*CommandResult, error) {
	appUUID := spec.AppUUID
	if appUUID == "" {
		appUUID = uuid.NewString()
	}
	result := newCommandResult()

	if spec.Command == "execute" {
		result.attach(s.On("CHANNEL_EXECUTE_COMPLETE", func(ev *Event) {
			if ev.Get(HeaderAppUUID) == appUUID {
				result.resolve(ev)
			}
		}))
		if spec.UUID != "" {
			interrupted := func(ev *Event) {
				if ev.Get(HeaderUniqueID) == spec.UUID {
					result.fail(&InterruptedError{
						AppUUID:     appUUID,
						ChannelUUID: spec.UUID,
						Event:       ev.Name(),
					})
				}
			}
			result.attach(s.On("CHANNEL_HANGUP", interrupted))
			result.attach(s.On("CHANNEL_DESTROY", interrupted))
		}

		reply, err := s.Send(ctx, spec.frame(appUUID))
		if err != nil {
			result.fail(err)
			return nil, err
		}
		result.setReply(reply)
		return result, nil
	}

	reply, err := s.Send(ctx, spec.frame(appUUID))
	if err != nil {
		return nil, err
	}
	result.resolveReply(reply)
	return result, nil
}

// API runs a synchronous API command and returns its api/response frame.
func (s *Session) API(ctx context.Context, command string) (*Event, error) {
	return s.Send(ctx, "api "+command)
}

// BGAPI submits a background API command. The waiter for the matching
// BACKGROUND_JOB event is armed before the frame is written.
func (s *Session) BGAPI(ctx context.Context, command string) (*JobResult, error) {
	jobUUID := uuid.NewString()
	job := newJobResult(jobUUID)

	job.attach(s.On("BACKGROUND_JOB", func(ev *Event) {
		if ev.Get(HeaderJobUUID) == jobUUID {
			s.metrics.RecordBackgroundJob(context.Background(), !jobBodyFailed(ev.Body))
			job.resolve(ev)
		}
	}))

	reply, err := s.Send(ctx, "bgapi "+command+"\nJob-UUID: "+jobUUID)
	if err != nil {
		job.release()
		return nil, err
	}
	if text := strings.TrimSpace(reply.ReplyText()); strings.HasPrefix(text, "-ERR") {
		job.release()
		return nil, &CommandError{Command: "bgapi " + command, Reply: text}
	}
	return job, nil
}

// Filter narrows the event stream to events matching header=value.
func (s *Session) Filter(ctx context.Context, header, value string) error {
	reply, err := s.Send(ctx, "filter "+header+" "+value)
	if err != nil {
		return err
	}
	if text := strings.TrimSpace(reply.ReplyText()); strings.HasPrefix(text, "-ERR") {
		return &CommandError{Command: "filter", Reply: text}
	}
	return nil
}

// Events subscribes to the named events ("ALL" for everything) in the
// given format, typically "plain".
func (s *Session) Events(ctx context.Context, format string, names ...string) error {
	reply, err := s.Send(ctx, "events "+format+" "+strings.Join(names, " "))
	if err != nil {
		return err
	}
	if text := strings.TrimSpace(reply.ReplyText()); strings.HasPrefix(text, "-ERR") {
		return &CommandError{Command: "events", Reply: text}
	}
	return nil
}

// The helpers below act on the connection's implicit channel (the A-leg
// of an outbound socket) via uuid-less sendmsg frames, and wait for the
// application to complete.

// Answer answers the session's call.
func (s *Session) Answer(ctx context.Context) (*CommandResult, error) {
	return s.executeAndWait(ctx, "answer", "")
}

// Park parks the session's call.
func (s *Session) Park(ctx context.Context) (*CommandResult, error) {
	return s.executeAndWait(ctx, "park", "")
}

// Playback plays an audio file and waits for it to finish.
func (s *Session) Playback(ctx context.Context, path string) (*CommandResult, error) {
	return s.executeAndWait(ctx, "playback", path)
}

// Hangup hangs the session's call up via the hangup application.
func (s *Session) Hangup(ctx context.Context, cause string) (*CommandResult, error) {
	return s.executeAndWait(ctx, "hangup", cause)
}

// Log writes a message to the switch log.
func (s *Session) Log(ctx context.Context, level, message string) (*CommandResult, error) {
	return s.executeAndWait(ctx, "log", level+" "+message)
}

// Say speaks text with the say application.
func (s *Session) Say(ctx context.Context, text, module, lang, kind, method, gender string) (*CommandResult, error) {
	if lang != "" {
		module += ":" + lang
	}
	return s.executeAndWait(ctx, "say", strings.Join([]string{module, kind, method, gender, text}, " "))
}

// PlayAndGetDigits prompts for DTMF input on the session's call.
func (s *Session) PlayAndGetDigits(ctx context.Context, args PlayAndGetDigitsArgs) (*CommandResult, error) {
	return s.executeAndWait(ctx, "play_and_get_digits", args.serialize())
}

func (s *Session) executeAndWait(ctx context.Context, application, data string) (*CommandResult, error) {
	ctx, span := observability.StartExecuteSpan(ctx, application, "")
	result, err := s.sendMsg(ctx, msgSpec{Command: "execute", App: application, Data: data})
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

// OriginateOptions tunes an Originate call. Zero values mean: generated
// leg UUID, no variables, no timeout, park after answer.
type OriginateOptions struct {
	UUID             string
	Variables        map[string]any
	Timeout          int // seconds
	ApplicationAfter string
}

// Originate creates a new outbound leg with the originate API. The leg is
// registered (and scope-filtered) before the command runs so its events
// are tracked from the start; on failure it is removed again and an
// OriginateError is returned.
func (s *Session) Originate(ctx context.Context, destination string, opts OriginateOptions) (*Channel, error) {
	ctx, span := observability.StartOriginateSpan(ctx, destination)
	ch, err := s.originate(ctx, destination, opts)
	observability.EndSpanWithError(span, err)
	return ch, err
}

func (s *Session) originate(ctx context.Context, destination string, opts OriginateOptions) (*Channel, error) {
	id := opts.UUID
	if id == "" {
		id = uuid.NewString()
	}
	appAfter := opts.ApplicationAfter
	if appAfter == "" {
		appAfter = "park"
	}

	vars := make(map[string]any, len(opts.Variables)+1)
	for k, v := range opts.Variables {
		vars[k] = v
	}
	vars["origination_uuid"] = id

	ch := newChannel(id, s, ChannelStateNew)
	s.register(ch)

	fail := func(response string) (*Channel, error) {
		s.deregister(id)
		return nil, &OriginateError{Destination: destination, Variables: vars, Response: response}
	}

	if err := s.Filter(ctx, HeaderUniqueID, id); err != nil {
		return fail(err.Error())
	}

	command := "originate " + BuildVariableString(vars) + destination + " &" + appAfter
	if opts.Timeout > 0 {
		command += " timeout=" + strconv.Itoa(opts.Timeout)
	}

	job, err := s.BGAPI(ctx, command)
	if err != nil {
		return fail(err.Error())
	}
	if err := job.Wait(ctx); err != nil {
		s.deregister(id)
		return nil, err
	}
	observability.AddSpanEvent(ctx, "originate job completed")
	if body := strings.TrimSpace(job.Body()); jobBodyFailed(body) {
		return fail(body)
	}
	if ch.IsGone() {
		return fail("")
	}
	return ch, nil
}
