package esl

import (
	"context"
	"net"
	"strings"
)

// Inbound is a client-mode connection to a switch's event socket: dial,
// authenticate, then run API commands and subscribe to events.
type Inbound struct {
	*Session
}

// DialInbound connects to addr and completes the auth handshake with the
// given password. The returned connection is started and ready for
// commands.
func DialInbound(ctx context.Context, addr, password string, opts ...Option) (*Inbound, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	sess := NewSession(conn, opts...)
	sess.Start()

	if err := sess.awaitAuth(ctx); err != nil {
		sess.Close()
		return nil, err
	}
	reply, err := sess.Send(ctx, "auth "+password)
	if err != nil {
		sess.Close()
		return nil, err
	}
	if !strings.HasPrefix(strings.TrimSpace(reply.ReplyText()), "+OK") {
		sess.Close()
		return nil, ErrAuthFailed
	}
	return &Inbound{Session: sess}, nil
}

// Exit sends the exit command and closes the connection.
func (c *Inbound) Exit(ctx context.Context) error {
	_, err := c.Send(ctx, "exit")
	c.Close()
	return err
}
