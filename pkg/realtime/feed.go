package realtime

import "context"

// Feed is a source of row changes that can be subscribed to by named channel.
type Feed interface {
	// Open subscribes a channel to the given interests. Only changes matching at least one
	// interest's table, event and filter are delivered.
	Open(ctx context.Context, name string, interests []Interest) (Channel, error)
	// Publish announces a change to every matching channel.
	Publish(ctx context.Context, change Change) error
}

// Channel is one open subscription on a Feed. Events and Signals are closed after Close.
type Channel interface {
	Name() string
	Events() <-chan Change
	Signals() <-chan Signal
	Close() error
}

const (
	defaultEventBuffer  = 64
	defaultSignalBuffer = 4
)

// emit delivers a signal without blocking; signals describe state, so a full buffer already
// holds a newer one for the reader.
func emit(signals chan<- Signal, s Signal) {
	select {
	case signals <- s:
	default:
	}
}
