/*
Package esl implements the FreeSWITCH event socket protocol: framing and
parsing of the wire format, event routing, command correlation, background
job tracking, and per-channel call state.

# Overview

The package speaks both sides of the socket:

  - Inbound: connect to a switch, authenticate, run API commands and
    consume events (DialInbound, Consumer).
  - Outbound: run an application server the switch dials into for each
    call it routes to you (Outbound, AppHandler).

Either way the connection is owned by a Session. The session parses
incoming frames into Event values, routes each event to its Channel by
Unique-ID, and keeps the channel's state machine current. Commands issued
against a channel return CommandResult values that settle when the switch
reports completion, or fail early when the leg hangs up.

# Outbound usage

	server := esl.NewOutbound("127.0.0.1:8084", func(ctx context.Context, s *esl.Session) error {
	    if _, err := s.Answer(ctx); err != nil {
	        return err
	    }
	    if _, err := s.Playback(ctx, "ivr/ivr-welcome.wav"); err != nil {
	        return err
	    }
	    _, err := s.Hangup(ctx, "NORMAL_CLEARING")
	    return err
	})
	log.Fatal(server.ListenAndServe(context.Background()))

# Inbound usage

	client, err := esl.DialInbound(ctx, "127.0.0.1:8021", "ClueCon")
	if err != nil {
	    log.Fatal(err)
	}
	defer client.Exit(ctx)

	job, err := client.BGAPI(ctx, "status")
	if err != nil {
	    log.Fatal(err)
	}
	if err := job.Wait(ctx); err != nil {
	    log.Fatal(err)
	}
	fmt.Println(job.Body())

# Event handling

Handlers attach by event name, CUSTOM subclass, or "*":

	client.On("CHANNEL_ANSWER", func(ev *esl.Event) {
	    log.Printf("answered: %s", ev.ChannelUUID())
	})

Handlers run on their own goroutines; a panic in one handler is logged
and isolated from the router and from other handlers.

# Correlation

Synchronous command replies carry no request id; the switch answers them
in order, so Send pairs each command with the next reply. Executions are
correlated by Application-UUID, background jobs by Job-UUID. A
CommandResult settles exactly once: completion, interruption (hangup or
destroy of the leg), and transport failure race, first one wins.

# Subpackages

  - config: map-backed configuration with typed accessors
  - observability: logging, metrics, and tracing helpers
  - journal: call record storage (memory, SQLite)
  - fifo: unbounded context-aware FIFO queue
*/
package esl
