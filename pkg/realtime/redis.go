package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultRedisPrefix namespaces change channels in Redis.
const DefaultRedisPrefix = "lingrelay:changes:"

// RedisFeed carries changes over Redis pub/sub, one Redis channel per table.
type RedisFeed struct {
	client redis.UniversalClient
	prefix string
	logger *zap.Logger
}

func NewRedisFeed(client redis.UniversalClient, prefix string, logger *zap.Logger) *RedisFeed {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisFeed{client: client, prefix: prefix, logger: logger}
}

func (f *RedisFeed) Publish(ctx context.Context, change Change) error {
	if change.Table == "" || change.Table == AnyTable {
		return fmt.Errorf("publish: invalid table %q", change.Table)
	}
	if change.CommitTime.IsZero() {
		change.CommitTime = time.Now()
	}
	data, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return f.client.Publish(ctx, f.prefix+change.Table, data).Err()
}

// Open pattern-subscribes to the interests' tables. The channel emits connected once Redis has
// confirmed every pattern and disconnected if the receive loop fails.
func (f *RedisFeed) Open(ctx context.Context, name string, interests []Interest) (Channel, error) {
	m, err := compileInterests(interests)
	if err != nil {
		return nil, err
	}
	patterns := make([]string, 0, len(m.interests))
	for _, table := range m.tables() {
		patterns = append(patterns, f.prefix+table)
	}

	ps := f.client.PSubscribe(ctx, patterns...)
	runCtx, cancel := context.WithCancel(context.Background())
	ch := &redisChannel{
		name:     name,
		pubsub:   ps,
		matcher:  m,
		patterns: len(patterns),
		events:   make(chan Change, defaultEventBuffer),
		signals:  make(chan Signal, defaultSignalBuffer),
		cancel:   cancel,
		done:     make(chan struct{}),
		logger:   f.logger.With(zap.String("channel", name)),
	}
	go ch.run(runCtx)
	return ch, nil
}

type redisChannel struct {
	name     string
	pubsub   *redis.PubSub
	matcher  *matcher
	patterns int
	events   chan Change
	signals  chan Signal
	cancel   context.CancelFunc
	done     chan struct{}
	once     sync.Once
	logger   *zap.Logger
}

func (c *redisChannel) Name() string           { return c.name }
func (c *redisChannel) Events() <-chan Change  { return c.events }
func (c *redisChannel) Signals() <-chan Signal { return c.signals }

// Reconnect backoff bounds for a channel whose receive loop failed.
const (
	redisRetryMin = 100 * time.Millisecond
	redisRetryMax = 5 * time.Second
)

func nextBackoff(d time.Duration) time.Duration {
	if d <= 0 {
		return redisRetryMin
	}
	d *= 2
	if d > redisRetryMax {
		return redisRetryMax
	}
	return d
}

// run owns events and signals and closes both on exit. A receive failure emits disconnected
// once; the next Receive reconnects and resubscribes, and connected is emitted again once
// every pattern is confirmed.
func (c *redisChannel) run(ctx context.Context) {
	defer close(c.done)
	defer close(c.events)
	defer close(c.signals)

	confirmed := 0
	connected := false
	var backoff time.Duration
	for {
		msg, err := c.pubsub.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if connected || backoff == 0 {
				c.logger.Warn("change feed receive failed", zap.Error(err))
				emit(c.signals, Signal{Type: SignalDisconnected, Err: err})
			}
			connected = false
			confirmed = 0
			backoff = nextBackoff(backoff)
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			continue
		}

		switch m := msg.(type) {
		case *redis.Subscription:
			if m.Kind == "psubscribe" {
				confirmed++
				if confirmed == c.patterns && !connected {
					connected = true
					backoff = 0
					emit(c.signals, Signal{Type: SignalConnected})
				}
			}
		case *redis.Message:
			var change Change
			if err := json.Unmarshal([]byte(m.Payload), &change); err != nil {
				c.logger.Warn("discarding malformed change", zap.String("redis_channel", m.Channel), zap.Error(err))
				continue
			}
			if !c.matcher.match(change) {
				continue
			}
			select {
			case c.events <- change:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (c *redisChannel) Close() error {
	var err error
	c.once.Do(func() {
		c.cancel()
		err = c.pubsub.Close()
		<-c.done
	})
	return err
}
