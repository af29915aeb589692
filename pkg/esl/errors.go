package esl

import (
	"errors"
	"fmt"
)

// Sentinel errors for connection lifecycle.
var (
	// ErrNotConnected indicates an operation on a connection that is not up.
	ErrNotConnected = errors.New("not connected")

	// ErrAuthFailed indicates the switch rejected the auth command.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrDisconnected indicates the peer closed the connection.
	ErrDisconnected = errors.New("peer disconnected")
)

// Sentinel errors for session operations.
var (
	// ErrChannelNotFound indicates a lookup for an unknown channel id.
	ErrChannelNotFound = errors.New("channel not found")

	// ErrNoChannel indicates an outbound connection delivered no A-leg.
	ErrNoChannel = errors.New("connect reply carried no channel")

	// ErrNotCompleted indicates a result was inspected before it settled.
	ErrNotCompleted = errors.New("command not completed")
)

// InterruptedError reports that an executing application never completed
// because its channel hung up or was destroyed first.
type InterruptedError struct {
	// AppUUID is the correlation id of the interrupted execution.
	AppUUID string
	// ChannelUUID is the leg the application was running on.
	ChannelUUID string
	// Event is the name of the event that interrupted it.
	Event string
}

// Error implements the error interface.
func (e *InterruptedError) Error() string {
	return fmt.Sprintf("execution %s on channel %s interrupted by %s", e.AppUUID, e.ChannelUUID, e.Event)
}

// GoneError reports an operation against a channel that has already hung
// up or been destroyed.
type GoneError struct {
	// ChannelUUID is the leg that is gone.
	ChannelUUID string
}

// Error implements the error interface.
func (e *GoneError) Error() string {
	return fmt.Sprintf("channel %s is gone", e.ChannelUUID)
}

// OriginateError reports a failed originate, preserving what was dialed.
type OriginateError struct {
	// Destination is the dialstring that failed.
	Destination string
	// Variables are the originate-time variables that were applied.
	Variables map[string]any
	// Response is the error body returned by the switch, if any.
	Response string
}

// Error implements the error interface.
func (e *OriginateError) Error() string {
	if e.Response != "" {
		return fmt.Sprintf("originate %s failed: %s", e.Destination, e.Response)
	}
	return fmt.Sprintf("originate %s failed: channel gone before answer", e.Destination)
}

// CommandError reports a synchronous command the switch answered with an
// error reply.
type CommandError struct {
	// Command is the command that was sent.
	Command string
	// Reply is the Reply-Text (or body) the switch returned.
	Reply string
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q rejected: %s", e.Command, e.Reply)
}
