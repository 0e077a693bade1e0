package realtime

import (
	"context"
	"sync"
)

// MemoryFeed fans changes out to channels in the same process.
type MemoryFeed struct {
	mu       sync.RWMutex
	channels map[*memoryChannel]struct{}
	buffer   int
	closed   bool
}

func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{
		channels: make(map[*memoryChannel]struct{}),
		buffer:   defaultEventBuffer,
	}
}

func (f *MemoryFeed) Open(_ context.Context, name string, interests []Interest) (Channel, error) {
	m, err := compileInterests(interests)
	if err != nil {
		return nil, err
	}

	ch := &memoryChannel{
		feed:    f,
		name:    name,
		matcher: m,
		events:  make(chan Change, f.buffer),
		signals: make(chan Signal, defaultSignalBuffer),
		done:    make(chan struct{}),
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrChannelClosed
	}
	f.channels[ch] = struct{}{}
	emit(ch.signals, Signal{Type: SignalConnected})
	return ch, nil
}

// Publish blocks until every matching channel has buffered the change, the channel closes,
// or ctx is done.
func (f *MemoryFeed) Publish(ctx context.Context, change Change) error {
	f.mu.RLock()
	if f.closed {
		f.mu.RUnlock()
		return ErrChannelClosed
	}
	targets := make([]*memoryChannel, 0, len(f.channels))
	for ch := range f.channels {
		if ch.matcher.match(change) {
			targets = append(targets, ch)
		}
	}
	f.mu.RUnlock()

	for _, ch := range targets {
		if err := ch.deliver(ctx, change); err != nil {
			return err
		}
	}
	return nil
}

// Disconnect signals every open channel that the feed dropped, without closing them.
func (f *MemoryFeed) Disconnect() {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for ch := range f.channels {
		emit(ch.signals, Signal{Type: SignalDisconnected, Err: ErrChannelClosed})
	}
}

// Close closes every open channel and rejects further opens and publishes.
func (f *MemoryFeed) Close() error {
	f.mu.Lock()
	f.closed = true
	channels := make([]*memoryChannel, 0, len(f.channels))
	for ch := range f.channels {
		channels = append(channels, ch)
	}
	f.mu.Unlock()

	for _, ch := range channels {
		_ = ch.Close()
	}
	return nil
}

func (f *MemoryFeed) remove(ch *memoryChannel) {
	f.mu.Lock()
	delete(f.channels, ch)
	f.mu.Unlock()
}

type memoryChannel struct {
	feed    *MemoryFeed
	name    string
	matcher *matcher

	// sendMu is held for reading by senders; Close takes it for writing before closing events.
	sendMu  sync.RWMutex
	events  chan Change
	signals chan Signal
	done    chan struct{}
	once    sync.Once
}

func (c *memoryChannel) Name() string           { return c.name }
func (c *memoryChannel) Events() <-chan Change  { return c.events }
func (c *memoryChannel) Signals() <-chan Signal { return c.signals }

func (c *memoryChannel) deliver(ctx context.Context, change Change) error {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	select {
	case <-c.done:
		return nil
	default:
	}
	select {
	case c.events <- change:
		return nil
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *memoryChannel) Close() error {
	c.once.Do(func() {
		close(c.done)
		c.feed.remove(c)
		c.sendMu.Lock()
		close(c.events)
		close(c.signals)
		c.sendMu.Unlock()
	})
	return nil
}
