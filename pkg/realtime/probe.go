package realtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProbeTimeout bounds how long CheckConnection waits for a connectivity signal.
const ProbeTimeout = 3000 * time.Millisecond

// ProbeResult is the outcome of one connectivity check.
type ProbeResult struct {
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
}

// Prober checks that the change feed can open a channel.
type Prober struct {
	feed    Feed
	timeout time.Duration
	logger  *zap.Logger
}

func NewProber(feed Feed, logger *zap.Logger) *Prober {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prober{feed: feed, timeout: ProbeTimeout, logger: logger}
}

// WithTimeout returns a copy of the prober using d instead of ProbeTimeout.
func (p *Prober) WithTimeout(d time.Duration) *Prober {
	cp := *p
	cp.timeout = d
	return &cp
}

// CheckConnection opens an ephemeral channel and waits for the first connected or disconnected
// signal, or the timeout. The channel is closed before returning on every path.
func (p *Prober) CheckConnection(ctx context.Context) (result ProbeResult) {
	defer func() {
		if r := recover(); r != nil {
			result = ProbeResult{Error: fmt.Sprint(r)}
		}
		p.logger.Debug("connectivity probe finished", zap.Bool("connected", result.Connected), zap.String("error", result.Error))
	}()

	name := "probe-" + uuid.NewString()
	ch, err := p.feed.Open(ctx, name, []Interest{{Table: AnyTable, Event: EventAll}})
	if err != nil {
		return ProbeResult{Error: err.Error()}
	}
	defer func() {
		if err := ch.Close(); err != nil {
			p.logger.Warn("probe channel close failed", zap.String("channel", name), zap.Error(err))
		}
	}()

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	for {
		select {
		case s, ok := <-ch.Signals():
			if !ok {
				return ProbeResult{Error: ErrChannelClosed.Error()}
			}
			switch s.Type {
			case SignalConnected:
				return ProbeResult{Connected: true}
			case SignalDisconnected:
				msg := "Disconnected"
				if s.Err != nil && !errors.Is(s.Err, ErrChannelClosed) {
					msg = s.Err.Error()
				}
				return ProbeResult{Error: msg}
			}
		case <-timer.C:
			return ProbeResult{Error: "Timeout"}
		case <-ctx.Done():
			return ProbeResult{Error: ctx.Err().Error()}
		}
	}
}
