package esl

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/voxbridge/esl/pkg/esl/fifo"
	"github.com/voxbridge/esl/pkg/esl/observability"
)

// Handler processes one routed event. Handlers run on their own
// goroutines; a panic is logged and never propagates to the router.
type Handler func(*Event)

// Subscription is a registered handler. Unsubscribe removes it; it is safe
// to call more than once and from any goroutine.
type Subscription struct {
	reg  *handlerRegistry
	key  string
	id   int64
	once sync.Once
}

// Unsubscribe removes the handler from its registry.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.reg.remove(s.key, s.id)
	})
}

// handlerRegistry maps event keys (plus the "*" wildcard) onto handlers.
type handlerRegistry struct {
	mu       sync.Mutex
	next     int64
	handlers map[string]map[int64]Handler
}

func newHandlerRegistry() *handlerRegistry {
	return &handlerRegistry{handlers: make(map[string]map[int64]Handler)}
}

func (r *handlerRegistry) on(key string, h Handler) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	set, ok := r.handlers[key]
	if !ok {
		set = make(map[int64]Handler)
		r.handlers[key] = set
	}
	set[r.next] = h
	return &Subscription{reg: r, key: key, id: r.next}
}

func (r *handlerRegistry) remove(key string, id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if set, ok := r.handlers[key]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(r.handlers, key)
		}
	}
}

// snapshot collects the handlers registered under any of keys.
func (r *handlerRegistry) snapshot(keys ...string) []Handler {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Handler
	for _, key := range keys {
		for _, h := range r.handlers[key] {
			out = append(out, h)
		}
	}
	return out
}

// protocol owns one event socket connection: a reader goroutine that
// frames and parses the stream, and a router goroutine that classifies
// frames and fans events out to handlers. Synchronous command replies are
// correlated by arrival order; the switch answers commands in the order
// they were sent and replies carry no request id.
type protocol struct {
	conn   net.Conn
	reader *bufio.Reader

	events  *fifo.Queue[*Event]
	replies *fifo.Queue[*Event]

	authReady chan struct{}
	authOnce  sync.Once

	reg *handlerRegistry

	// dispatch, when set, sees every named event synchronously before the
	// handler fan-out. The session manager uses it to keep channel state
	// ordered with respect to event arrival.
	dispatch func(*Event)

	connected atomic.Bool
	cancel    context.CancelFunc
	done      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup

	writeMu sync.Mutex
	sendMu  sync.Mutex

	log     *slog.Logger
	metrics observability.MetricsRecorder
}

func newProtocol(conn net.Conn, log *slog.Logger, metrics observability.MetricsRecorder) *protocol {
	if log == nil {
		log = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &protocol{
		conn:      conn,
		reader:    bufio.NewReader(conn),
		events:    fifo.New[*Event](),
		replies:   fifo.New[*Event](),
		authReady: make(chan struct{}),
		reg:       newHandlerRegistry(),
		done:      make(chan struct{}),
		log:       log,
		metrics:   metrics,
	}
}

// start launches the reader and router goroutines.
func (p *protocol) start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.connected.Store(true)

	p.wg.Add(2)
	go p.readLoop()
	go p.routeLoop(ctx)
}

// Stop tears the connection down. Idempotent; safe to call from handlers
// and from the router itself.
func (p *protocol) Stop() {
	p.stopOnce.Do(func() {
		p.connected.Store(false)
		if p.cancel != nil {
			p.cancel()
		}
		_ = p.conn.Close()
		p.events.Close()
		p.replies.Close()
		close(p.done)
	})
}

// Done returns a channel closed once the connection has been torn down.
func (p *protocol) Done() <-chan struct{} { return p.done }

// Connected reports whether the connection is still up.
func (p *protocol) Connected() bool { return p.connected.Load() }

// readLoop frames the byte stream: header lines accumulate until a blank
// line, then a Content-Length body is read if declared, and the resulting
// events are queued in arrival order.
func (p *protocol) readLoop() {
	defer p.wg.Done()
	defer p.Stop()

	var block strings.Builder
	for {
		line, err := p.reader.ReadString('\n')
		if err != nil {
			if err != io.EOF && p.connected.Load() {
				p.log.Debug("read failed", slog.String("error", err.Error()))
			}
			return
		}
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed != "" {
			block.WriteString(trimmed)
			block.WriteByte('\n')
			continue
		}
		if block.Len() == 0 {
			continue
		}

		frame := ParseHeaders(block.String())
		block.Reset()

		payload := ""
		if n, ok := frame.contentLength(); ok && n > 0 {
			buf := make([]byte, n)
			if _, err := io.ReadFull(p.reader, buf); err != nil {
				return
			}
			payload = string(buf)
		}

		for _, ev := range expandPayload(frame, payload) {
			if err := p.events.Push(ev); err != nil {
				return
			}
		}
	}
}

// routeLoop is the single consumer of the event queue.
func (p *protocol) routeLoop(ctx context.Context) {
	defer p.wg.Done()
	for {
		ev, err := p.events.Pop(ctx)
		if err != nil {
			return
		}
		p.route(ctx, ev)
	}
}

func (p *protocol) route(ctx context.Context, ev *Event) {
	switch ev.ContentType() {
	case ContentTypeAuthRequest:
		p.authOnce.Do(func() { close(p.authReady) })
		return
	case ContentTypeCommandReply, ContentTypeAPIResponse:
		_ = p.replies.Push(ev)
		return
	case ContentTypeRudeRejection:
		observability.LogDisconnect(p.log, ev.ContentType())
		p.Stop()
		return
	case ContentTypeDisconnect:
		if !strings.Contains(ev.Get("Content-Disposition"), "linger") {
			observability.LogDisconnect(p.log, ev.ContentType())
			p.Stop()
			return
		}
	}

	name := ev.Name()
	if name == "" {
		return
	}
	p.metrics.RecordEventRouted(ctx, name)
	observability.LogEventReceived(p.log, name, ev.ChannelUUID())

	if p.dispatch != nil {
		p.dispatch(ev)
	}

	for _, h := range p.reg.snapshot(ev.dispatchKey(), "*") {
		p.wg.Add(1)
		go p.invoke(ctx, name, h, ev)
	}
}

// invoke runs one handler, isolating panics from the router.
func (p *protocol) invoke(ctx context.Context, name string, h Handler, ev *Event) {
	defer p.wg.Done()
	defer func() {
		if v := recover(); v != nil {
			observability.LogHandlerFailure(p.log, name, v)
			p.metrics.RecordHandlerFailure(ctx, name)
		}
	}()
	h(ev)
}

// On registers a handler for an event name. CUSTOM events are keyed by
// their Event-Subclass; "*" receives every named event.
func (p *protocol) On(eventName string, h Handler) *Subscription {
	return p.reg.on(eventName, h)
}

// Send writes a command frame and blocks for its reply. Replies are
// matched by order of submission, so concurrent senders are serialized
// here; ctx bounds the wait.
func (p *protocol) Send(ctx context.Context, command string) (*Event, error) {
	if !p.connected.Load() {
		return nil, ErrNotConnected
	}

	p.sendMu.Lock()
	defer p.sendMu.Unlock()

	observability.LogCommandSent(p.log, command)
	elapsed := observability.TimedOperation()

	if err := p.write(command); err != nil {
		p.metrics.RecordCommand(ctx, elapsed(), err)
		return nil, err
	}
	reply, err := p.replies.Pop(ctx)
	if err == fifo.ErrClosed {
		err = ErrDisconnected
	}
	p.metrics.RecordCommand(ctx, elapsed(), err)
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// write emits the command's lines followed by the blank terminator line.
func (p *protocol) write(command string) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_, err := p.conn.Write([]byte(command + "\n\n"))
	return err
}

// awaitAuth blocks until the peer issued its auth challenge.
func (p *protocol) awaitAuth(ctx context.Context) error {
	select {
	case <-p.authReady:
		return nil
	case <-p.done:
		return ErrDisconnected
	case <-ctx.Done():
		return ctx.Err()
	}
}
