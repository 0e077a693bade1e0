package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Handler receives changes routed to a registration.
type Handler interface {
	OnChange(table string, change Change)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(table string, change Change)

func (f HandlerFunc) OnChange(table string, change Change) { f(table, change) }

// Registration is a handle to one registered interest. It stays valid until its group closes.
type Registration struct {
	Group string
	slot  int
	gen   uint64
}

type slot struct {
	handler Handler
	table   string
	gen     uint64
}

type group struct {
	name      string
	interests []Interest
	regs      []Registration
	channel   Channel
	done      chan struct{}

	// opening is non-nil while the feed subscription is in flight and closed once it settles.
	opening chan struct{}
	openErr error
	// busy is set while the dispatch goroutine is inside handlers.
	busy atomic.Bool
}

func (g *group) open() bool { return g.channel != nil }

// Multiplexer shares one feed channel between all interests registered under the same group name
// and routes incoming changes to handlers by table.
type Multiplexer struct {
	feed   Feed
	logger *zap.Logger

	mu     sync.Mutex
	groups map[string]*group
	arena  []slot
	free   []int
	gen    uint64
}

func NewMultiplexer(feed Feed, logger *zap.Logger) *Multiplexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Multiplexer{
		feed:   feed,
		logger: logger,
		groups: make(map[string]*group),
	}
}

// RegisterTable adds an interest to groupName. The group is not subscribed until Open.
// Registering into a group that is already open fails with ErrGroupOpen.
func (m *Multiplexer) RegisterTable(groupName, table string, event EventType, predicate string, handler Handler) (Registration, error) {
	if groupName == "" || table == "" || handler == nil {
		return Registration{}, ErrEmptyInterest
	}
	if _, err := ParseFilter(predicate); err != nil {
		return Registration{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.groups[groupName]
	if !ok {
		g = &group{name: groupName}
		m.groups[groupName] = g
	}
	if g.open() || g.opening != nil {
		return Registration{}, fmt.Errorf("register %s on %s: %w", table, groupName, ErrGroupOpen)
	}

	m.gen++
	s := slot{handler: handler, table: table, gen: m.gen}
	var idx int
	if n := len(m.free); n > 0 {
		idx = m.free[n-1]
		m.free = m.free[:n-1]
		m.arena[idx] = s
	} else {
		idx = len(m.arena)
		m.arena = append(m.arena, s)
	}

	g.interests = append(g.interests, Interest{Table: table, Event: event, Filter: predicate})
	reg := Registration{Group: groupName, slot: idx, gen: s.gen}
	g.regs = append(g.regs, reg)
	return reg, nil
}

// Open subscribes groupName on the feed with every interest registered so far.
// Opening an already open group is a no-op; concurrent opens share one subscription.
// The feed is contacted without holding the multiplexer lock.
func (m *Multiplexer) Open(ctx context.Context, groupName string) error {
	m.mu.Lock()
	g, ok := m.groups[groupName]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("open %s: %w", groupName, ErrGroupNotFound)
	}
	if g.open() {
		m.mu.Unlock()
		return nil
	}
	if wait := g.opening; wait != nil {
		m.mu.Unlock()
		return m.awaitOpen(ctx, g, wait)
	}
	if len(g.interests) == 0 {
		m.mu.Unlock()
		return fmt.Errorf("open %s: %w", groupName, ErrEmptyInterest)
	}
	interests := append([]Interest(nil), g.interests...)
	settled := make(chan struct{})
	g.opening = settled
	g.openErr = nil
	m.mu.Unlock()

	ch, err := m.feed.Open(ctx, groupName, interests)

	m.mu.Lock()
	defer m.mu.Unlock()
	defer close(settled)
	g.opening = nil

	if err != nil {
		g.openErr = err
		m.logger.Error("group open failed", zap.String("group", groupName), zap.Error(err))
		return fmt.Errorf("open %s: %w", groupName, err)
	}
	if m.groups[groupName] != g {
		// closed while the subscription was in flight
		g.openErr = ErrGroupNotFound
		if cerr := ch.Close(); cerr != nil {
			m.logger.Warn("discarding late channel failed", zap.String("group", groupName), zap.Error(cerr))
		}
		return fmt.Errorf("open %s: %w", groupName, ErrGroupNotFound)
	}
	g.channel = ch
	g.done = make(chan struct{})
	go m.dispatch(g)

	m.logger.Debug("group opened", zap.String("group", groupName), zap.Int("interests", len(interests)))
	return nil
}

// awaitOpen waits for another caller's open of g to settle.
func (m *Multiplexer) awaitOpen(ctx context.Context, g *group, settled <-chan struct{}) error {
	select {
	case <-settled:
	case <-ctx.Done():
		return fmt.Errorf("open %s: %w", g.name, ctx.Err())
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if g.open() && m.groups[g.name] == g {
		return nil
	}
	err := g.openErr
	if err == nil {
		err = ErrGroupNotFound
	}
	return fmt.Errorf("open %s: %w", g.name, err)
}

// Subscribe registers a single interest and opens the group.
func (m *Multiplexer) Subscribe(ctx context.Context, groupName, table string, event EventType, predicate string, handler Handler) (Registration, error) {
	reg, err := m.RegisterTable(groupName, table, event, predicate, handler)
	if err != nil {
		return Registration{}, err
	}
	if err := m.Open(ctx, groupName); err != nil {
		_ = m.Close(groupName)
		return Registration{}, err
	}
	return reg, nil
}

// Close unsubscribes groupName and releases its registrations. No handler of the group is
// invoked after Close returns, except one that is already running. Handlers may close their
// own group.
func (m *Multiplexer) Close(groupName string) error {
	m.mu.Lock()
	g, ok := m.groups[groupName]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("close %s: %w", groupName, ErrGroupNotFound)
	}
	delete(m.groups, groupName)
	for _, reg := range g.regs {
		m.release(reg)
	}
	ch, done := g.channel, g.done
	m.mu.Unlock()

	if ch == nil {
		return nil
	}
	err := ch.Close()
	// A handler closing its own group runs on the dispatch goroutine, which only exits
	// after the handler returns.
	if !g.busy.Load() {
		<-done
	}
	if err != nil {
		return fmt.Errorf("close %s: %w", groupName, err)
	}
	m.logger.Debug("group closed", zap.String("group", groupName))
	return nil
}

// Unregister stops delivering changes to reg. The interest stays part of the group's feed
// subscription until the group closes.
func (m *Multiplexer) Unregister(reg Registration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.release(reg)
}

func (m *Multiplexer) release(reg Registration) bool {
	if reg.slot < 0 || reg.slot >= len(m.arena) || m.arena[reg.slot].gen != reg.gen || m.arena[reg.slot].handler == nil {
		return false
	}
	m.arena[reg.slot] = slot{}
	m.free = append(m.free, reg.slot)
	return true
}

// CloseAll closes every group, attempting each one even if others fail.
func (m *Multiplexer) CloseAll() error {
	m.mu.Lock()
	names := make([]string, 0, len(m.groups))
	for name := range m.groups {
		names = append(names, name)
	}
	m.mu.Unlock()

	var errs []error
	for _, name := range names {
		if err := m.Close(name); err != nil && !errors.Is(err, ErrGroupNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Groups returns the names of all registered groups.
func (m *Multiplexer) Groups() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.groups))
	for name := range m.groups {
		names = append(names, name)
	}
	return names
}

// IsOpen reports whether groupName has an open feed channel.
func (m *Multiplexer) IsOpen(groupName string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[groupName]
	return ok && g.open()
}

func (m *Multiplexer) dispatch(g *group) {
	defer close(g.done)
	events, signals := g.channel.Events(), g.channel.Signals()
	for events != nil || signals != nil {
		select {
		case change, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			handlers := m.handlersFor(g, change.Table)
			g.busy.Store(true)
			for _, h := range handlers {
				m.invoke(g.name, h, change)
			}
			g.busy.Store(false)
		case s, ok := <-signals:
			if !ok {
				signals = nil
				continue
			}
			if s.Type == SignalDisconnected {
				m.logger.Warn("group disconnected", zap.String("group", g.name), zap.Error(s.Err))
			} else {
				m.logger.Debug("group signal", zap.String("group", g.name), zap.String("signal", string(s.Type)))
			}
		}
	}
}

func (m *Multiplexer) handlersFor(g *group, table string) []Handler {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Handler
	for _, reg := range g.regs {
		s := m.arena[reg.slot]
		if s.handler == nil || s.gen != reg.gen {
			continue
		}
		if s.table == AnyTable || s.table == table {
			out = append(out, s.handler)
		}
	}
	return out
}

func (m *Multiplexer) invoke(groupName string, h Handler, change Change) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("change handler panicked",
				zap.String("group", groupName),
				zap.String("table", change.Table),
				zap.Any("panic", r))
		}
	}()
	h.OnChange(change.Table, change)
}
