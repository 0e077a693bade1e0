package realtime

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// fakeFeed records opens and lets tests drive channel signals and close errors.
type fakeFeed struct {
	mu         sync.Mutex
	opened     map[string]*fakeChannel
	openErr    error
	closeErrs  map[string]error
	closeOrder []string
	opens      int

	// entered receives the group name when Open starts; gate, when set, holds Open until closed.
	entered chan string
	gate    chan struct{}
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{opened: map[string]*fakeChannel{}, closeErrs: map[string]error{}}
}

func (f *fakeFeed) Open(_ context.Context, name string, interests []Interest) (Channel, error) {
	if f.entered != nil {
		f.entered <- name
	}
	if f.gate != nil {
		<-f.gate
	}
	if f.openErr != nil {
		return nil, f.openErr
	}
	ch := &fakeChannel{
		feed:      f,
		name:      name,
		interests: append([]Interest(nil), interests...),
		events:    make(chan Change, 16),
		signals:   make(chan Signal, 4),
	}
	f.mu.Lock()
	f.opened[name] = ch
	f.opens++
	f.mu.Unlock()
	return ch, nil
}

func (f *fakeFeed) Publish(context.Context, Change) error { return errors.New("not supported") }

func (f *fakeFeed) channel(name string) *fakeChannel {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened[name]
}

type fakeChannel struct {
	feed      *fakeFeed
	name      string
	interests []Interest
	events    chan Change
	signals   chan Signal
	once      sync.Once
	closed    bool
}

func (c *fakeChannel) Name() string           { return c.name }
func (c *fakeChannel) Events() <-chan Change  { return c.events }
func (c *fakeChannel) Signals() <-chan Signal { return c.signals }

func (c *fakeChannel) Close() error {
	c.feed.mu.Lock()
	c.feed.closeOrder = append(c.feed.closeOrder, c.name)
	err := c.feed.closeErrs[c.name]
	c.closed = true
	c.feed.mu.Unlock()
	c.once.Do(func() {
		close(c.events)
		close(c.signals)
	})
	return err
}

func newNop() *zap.Logger { return zap.NewNop() }
