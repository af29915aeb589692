package esl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
)

// AppHandler processes one outbound call. When it returns an error the
// call is hung up with SYSTEM_ERROR unless the leg is already gone.
type AppHandler func(ctx context.Context, s *Session) error

// Outbound is an event socket application server: the switch dials in for
// each call it routes to us, and the handler drives the call over the
// resulting session.
type Outbound struct {
	addr    string
	handler AppHandler
	opts    Options

	mu       sync.Mutex
	listener net.Listener
	sessions map[string]*Session
	wg       sync.WaitGroup
}

// NewOutbound builds a server that will listen on addr.
func NewOutbound(addr string, handler AppHandler, opts ...Option) *Outbound {
	return &Outbound{
		addr:     addr,
		handler:  handler,
		opts:     buildOptions(opts),
		sessions: make(map[string]*Session),
	}
}

// Addr returns the bound listen address, useful when addr used port 0.
func (o *Outbound) Addr() net.Addr {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.listener == nil {
		return nil
	}
	return o.listener.Addr()
}

// ListenAndServe accepts connections until ctx is done or Stop is called.
func (o *Outbound) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", o.addr)
	if err != nil {
		return err
	}
	o.mu.Lock()
	o.listener = listener
	o.mu.Unlock()

	o.opts.Logger.Info("outbound server listening",
		slog.String("address", listener.Addr().String()))

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			o.wg.Wait()
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			o.handle(ctx, conn)
		}()
	}
}

// Stop closes the listener; in-flight calls finish on their own.
func (o *Outbound) Stop() {
	o.mu.Lock()
	listener := o.listener
	o.mu.Unlock()
	if listener != nil {
		_ = listener.Close()
	}
}

// ActiveSessions returns a snapshot of running sessions keyed by A-leg id.
func (o *Outbound) ActiveSessions() map[string]*Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]*Session, len(o.sessions))
	for id, s := range o.sessions {
		out[id] = s
	}
	return out
}

// SessionByID returns a running session by its A-leg id.
func (o *Outbound) SessionByID(id string) (*Session, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.sessions[id]
	return s, ok
}

// handle runs the connect handshake and the application for one call.
func (o *Outbound) handle(ctx context.Context, conn net.Conn) {
	log := o.opts.Logger
	sess := NewSession(conn,
		WithLogger(log),
		WithMetrics(o.opts.Metrics),
		WithMyEvents(o.opts.MyEvents),
		WithLinger(o.opts.Linger),
	)
	sess.Start()
	defer sess.Close()

	reply, err := sess.Send(ctx, "connect")
	if err != nil {
		log.Error("connect handshake failed", slog.String("error", err.Error()))
		return
	}
	sess.Context = reply
	// The connect reply doubles as the A-leg's first event.
	sess.dispatchEvent(reply)

	aLeg := sess.ChannelA()
	if aLeg == nil {
		log.Error("connect handshake failed", slog.String("error", ErrNoChannel.Error()))
		return
	}
	sessionID := aLeg.UUID()

	o.mu.Lock()
	o.sessions[sessionID] = sess
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.sessions, sessionID)
		o.mu.Unlock()
	}()

	if o.opts.MyEvents {
		_, err = sess.Send(ctx, "myevents")
	} else {
		err = sess.Events(ctx, "plain", "ALL")
	}
	if err != nil {
		log.Error("event subscription failed",
			slog.String("session_id", sessionID), slog.String("error", err.Error()))
		return
	}
	if o.opts.Linger {
		if _, err := sess.Send(ctx, "linger"); err != nil {
			log.Error("linger failed",
				slog.String("session_id", sessionID), slog.String("error", err.Error()))
			return
		}
	}

	if err := o.runApp(ctx, sess); err != nil {
		log.Error("application handler failed",
			slog.String("session_id", sessionID), slog.String("error", err.Error()))
		if a := sess.ChannelA(); a != nil && !a.IsGone() {
			if _, herr := a.Hangup(ctx, "SYSTEM_ERROR"); herr != nil {
				log.Error("hangup after handler failure failed",
					slog.String("session_id", sessionID), slog.String("error", herr.Error()))
			}
		}
	}
}

// runApp invokes the application handler, converting a panic into an
// error so the failure hangup path runs.
func (o *Outbound) runApp(ctx context.Context, sess *Session) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &appPanicError{value: v}
		}
	}()
	return o.handler(ctx, sess)
}

type appPanicError struct{ value any }

func (e *appPanicError) Error() string {
	return fmt.Sprintf("application handler panicked: %v", e.value)
}
