// Package transport provides the uniform asynchronous byte-frame channel
// to a TNC described in spec.md section 4.3: serial KISS, KISS-over-TCP,
// and an in-memory mock. Drivers never parse AX.25; they move raw
// AX.25-over-KISS payloads and report connection status transitions.
//
// This generalizes the teacher's kissserial.go/kissnet.go/nettnc.go (three
// near-duplicate cgo implementations bound to one global channel table)
// into one Driver interface with three implementations, each owned by its
// own goroutine per the section 5 concurrency model.
package transport

import (
	"context"
	"fmt"
)

// State is a transport driver's lifecycle state (spec.md section 3).
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Event is emitted upward by a driver as its status changes or a frame
// arrives.
type Event struct {
	State  State
	Reason string // set when State == Disconnected due to an error
	Frame  []byte // raw AX.25 payload; set only for data events
}

// IsFrame reports whether this event carries a received frame.
func (e Event) IsFrame() bool { return e.Frame != nil }

// Driver is the uniform interface every transport variant implements.
type Driver interface {
	// Run starts the driver's connection-management goroutine. It
	// returns when ctx is cancelled, after the underlying connection (if
	// any) is closed. Events are delivered on the channel returned by
	// Events until Run returns.
	Run(ctx context.Context) error

	// Events returns the channel on which status transitions and
	// received frames are delivered. Valid only after Run has been
	// called; callers must drain it to avoid blocking the driver.
	Events() <-chan Event

	// Send submits a raw AX.25 payload for KISS-encoding and
	// transmission on port 0, command 0 (spec.md section 4.3).
	Send(payload []byte) error

	// Reconnect requests an out-of-band reconnect attempt, used by the
	// HTTP control surface or health checks; a no-op if already
	// connecting.
	Reconnect()
}

// ErrNotConnected is returned by Send when the underlying connection is
// not currently established; the caller (digipeater engine) treats this as
// a best-effort transmit failure per spec.md section 4.4 -- logged as a
// metric only, never re-queued.
var ErrNotConnected = fmt.Errorf("transport: not connected")
