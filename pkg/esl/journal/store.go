// Package journal provides call record storage: lifecycle events of
// channels observed on a session, persisted to memory or SQLite.
package journal

import (
	"errors"
	"time"
)

// Record is one journaled call lifecycle event.
type Record struct {
	ChannelUUID    string
	Event          string
	CallState      string
	HangupCause    string
	CallerIDNumber string
	Destination    string
	Timestamp      time.Time
}

// Store persists call records.
// Implementations must be safe for concurrent use.
type Store interface {
	// Append stores one record.
	Append(rec Record) error

	// ByChannel returns all records of a channel in append order.
	// Returns an empty slice (not an error) for unknown channels.
	ByChannel(channelUUID string) ([]Record, error)

	// Recent returns the most recent n records, newest first.
	Recent(n int) ([]Record, error)

	// Close releases any resources (connections, files).
	Close() error
}

// Sentinel errors for journal operations.
var (
	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("journal store closed")
)
