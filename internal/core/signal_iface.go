package core

import "errors"

// Frame is one encoded signaling event.
type Frame []byte

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend queues f without blocking; frames from one caller keep their order.
	TrySend(Frame) error
	Close()
}
