package esl_test

import (
	"context"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxbridge/esl/pkg/esl"
)

// startFakeSwitch listens on a loopback port and runs script against the
// first accepted connection. It returns the listen address.
func startFakeSwitch(t *testing.T, script func(p *fakePeer)) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		script(newFakePeer(t, conn))
	}()
	return listener.Addr().String()
}

// TestDialInbound verifies the auth handshake and a synchronous API
// round trip.
func TestDialInbound(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	addr := startFakeSwitch(t, func(p *fakePeer) {
		p.write("Content-Type: auth/request\n\n")

		cmd := p.readCommand()
		assert.Equal(t, "auth secret", cmd)
		p.sendReply("+OK accepted")

		cmd = p.readCommand()
		assert.Equal(t, "api status", cmd)
		body := "UP 0 years, 2 days"
		p.write(fmt.Sprintf("Content-Type: api/response\nContent-Length: %d\n\n%s", len(body), body))

		cmd = p.readCommand()
		assert.Equal(t, "exit", cmd)
		p.sendReply("+OK bye")
	})

	client, err := esl.DialInbound(ctx, addr, "secret")
	require.NoError(t, err)

	response, err := client.API(ctx, "status")
	require.NoError(t, err)
	assert.Equal(t, "UP 0 years, 2 days", response.Body)

	require.NoError(t, client.Exit(ctx))
}

// TestDialInboundBadPassword verifies a rejected auth surfaces as
// ErrAuthFailed.
func TestDialInboundBadPassword(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	addr := startFakeSwitch(t, func(p *fakePeer) {
		p.write("Content-Type: auth/request\n\n")
		p.readCommand()
		p.sendReply("-ERR invalid")
	})

	_, err := esl.DialInbound(ctx, addr, "wrong")
	assert.ErrorIs(t, err, esl.ErrAuthFailed)
}

// TestDialInboundRudeRejection verifies an ACL rejection aborts the dial
// instead of hanging in the handshake.
func TestDialInboundRudeRejection(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	addr := startFakeSwitch(t, func(p *fakePeer) {
		body := "Access Denied, go away.\n"
		p.write(fmt.Sprintf("Content-Type: text/rude-rejection\nContent-Length: %d\n\n%s", len(body), body))
	})

	_, err := esl.DialInbound(ctx, addr, "secret")
	assert.ErrorIs(t, err, esl.ErrDisconnected)
}

// TestConsumerRun verifies handler-derived subscriptions and event
// delivery through a filtered handler.
func TestConsumerRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr := startFakeSwitch(t, func(p *fakePeer) {
		p.write("Content-Type: auth/request\n\n")
		p.readCommand()
		p.sendReply("+OK accepted")

		cmd := p.readCommand()
		assert.True(t, strings.HasPrefix(cmd, "events plain "))
		assert.Contains(t, cmd, "CHANNEL_ANSWER")
		assert.Contains(t, cmd, "CUSTOM")
		assert.Contains(t, cmd, "sofia::register")
		p.sendReply("+OK event listener enabled")

		p.sendEvent(map[string]string{
			"Event-Name": "CHANNEL_ANSWER",
			"Unique-ID":  "other-leg",
		}, "")
		p.sendEvent(map[string]string{
			"Event-Name": "CHANNEL_ANSWER",
			"Unique-ID":  "leg-1",
		}, "")
	})

	answered := make(chan string, 2)
	consumer := esl.NewConsumer(addr, "secret")
	consumer.On("CHANNEL_ANSWER", esl.FilterHeader("Unique-ID", "leg-1", func(ev *esl.Event) {
		answered <- ev.ChannelUUID()
	}))
	consumer.On("sofia::register", func(*esl.Event) {})

	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	select {
	case id := <-answered:
		assert.Equal(t, "leg-1", id)
	case <-time.After(2 * time.Second):
		t.Fatal("handler not invoked")
	}
	// The filtered-out leg never fires.
	select {
	case id := <-answered:
		t.Fatalf("unexpected event for %s", id)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}
