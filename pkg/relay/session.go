package relay

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/code-100-precent/LingRelay/internal/models"
	"github.com/code-100-precent/LingRelay/pkg/auth"
	"github.com/code-100-precent/LingRelay/pkg/metrics"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// HistoryLoader reads a room's recent messages, oldest first.
type HistoryLoader interface {
	Recent(ctx context.Context, room string, limit int) ([]models.UserMessage, error)
}

// MessageStore persists messages and read receipts.
type MessageStore interface {
	Insert(ctx context.Context, msg *models.UserMessage) (*models.UserMessage, error)
	MarkAdminRead(ctx context.Context, room string, at time.Time) (int64, error)
}

// State is a session lifecycle stage.
type State int32

const (
	StateOpening State = iota
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Outcome is the result of handling one inbound frame.
type Outcome int

const (
	// OutcomeProcessed means the frame had its effect.
	OutcomeProcessed Outcome = iota
	// OutcomeIgnored means the frame was dropped without a reply.
	OutcomeIgnored
	// OutcomeErrorSent means an error frame was sent back.
	OutcomeErrorSent
	// OutcomeClosed means the transport closed and the loop ends.
	OutcomeClosed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeProcessed:
		return "processed"
	case OutcomeIgnored:
		return "ignored"
	case OutcomeErrorSent:
		return "error_sent"
	case OutcomeClosed:
		return "closed"
	}
	return "unknown"
}

// Session owns one relay connection. Inbound frames are handled one at a time in arrival order;
// outbound frames go through a buffered queue drained by a single writer.
type Session struct {
	ID        string
	Principal auth.Principal
	Room      string

	conn    *websocket.Conn
	cfg     *Config
	history HistoryLoader
	store   MessageStore
	logger  *zap.Logger
	now     func() time.Time

	state      atomic.Int32
	send       chan []byte
	writerDone chan struct{}
	closeOnce  sync.Once
}

func newSession(conn *websocket.Conn, p auth.Principal, room string, cfg *Config, history HistoryLoader, store MessageStore, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.NewString()
	s := &Session{
		ID:         id,
		Principal:  p,
		Room:       room,
		conn:       conn,
		cfg:        cfg,
		history:    history,
		store:      store,
		now:        time.Now,
		send:       make(chan []byte, cfg.SendBufferSize),
		writerDone: make(chan struct{}),
		logger: logger.With(
			zap.String("session", id),
			zap.String("room", room),
			zap.String("principal", p.ID),
			zap.Bool("admin", p.IsAdmin),
		),
	}
	s.state.Store(int32(StateOpening))
	return s
}

// State returns the current lifecycle stage.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Run delivers history, then handles frames until the transport closes.
func (s *Session) Run(ctx context.Context) {
	metrics.SessionsTotal.Inc()
	metrics.SessionsActive.Inc()
	defer metrics.SessionsActive.Dec()

	s.conn.SetReadLimit(s.cfg.MaxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	})

	go s.writePump()
	s.logger.Info("session opened")

	s.open(ctx)
	for s.Next(ctx) != OutcomeClosed {
	}

	s.shutdown()
	s.logger.Info("session closed")
}

// open sends the history frame and moves the session to active. A failed history load is
// reported as an empty history.
func (s *Session) open(ctx context.Context) {
	messages, err := s.history.Recent(ctx, s.Room, s.cfg.HistoryLimit)
	if err != nil {
		metrics.StoreFailures.WithLabelValues("history").Inc()
		s.logger.Error("history load failed", zap.Error(err))
		messages = nil
	}
	if len(messages) > s.cfg.HistoryLimit {
		messages = messages[len(messages)-s.cfg.HistoryLimit:]
	}
	s.enqueue(newHistoryFrame(messages))
	s.state.Store(int32(StateActive))
}

// Next blocks for one inbound frame and handles it.
func (s *Session) Next(ctx context.Context) Outcome {
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		s.logReadError(err)
		return OutcomeClosed
	}
	_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	return s.Handle(ctx, data)
}

// Handle applies one raw inbound frame. Bad frames never end the session.
func (s *Session) Handle(ctx context.Context, data []byte) Outcome {
	frame, err := DecodeFrame(data)
	if err != nil {
		label := "malformed"
		if errors.Is(err, ErrUnknownFrame) {
			label = "unknown"
		}
		metrics.FramesTotal.WithLabelValues(label, OutcomeIgnored.String()).Inc()
		s.logger.Warn("dropping inbound frame", zap.Error(err), zap.Int("bytes", len(data)))
		return OutcomeIgnored
	}

	var outcome Outcome
	switch frame.Type {
	case FrameTypeMessage:
		outcome = s.handleMessage(ctx, frame.Content)
	case FrameTypeRead:
		outcome = s.handleRead(ctx)
	}
	metrics.FramesTotal.WithLabelValues(frame.Type, outcome.String()).Inc()
	return outcome
}

func (s *Session) handleMessage(ctx context.Context, content string) Outcome {
	if strings.TrimSpace(content) == "" {
		return OutcomeIgnored
	}

	msg := models.NewUserMessage(s.Room, s.Principal.ID, s.Principal.IsAdmin, content)
	stored, err := s.store.Insert(ctx, msg)
	if err != nil {
		metrics.StoreFailures.WithLabelValues("insert").Inc()
		s.logger.Error("message insert failed", zap.Error(err))
		s.enqueue(newErrorFrame(MsgSendFailed))
		return OutcomeErrorSent
	}
	s.enqueue(newMessageFrame(stored))
	return OutcomeProcessed
}

func (s *Session) handleRead(ctx context.Context) Outcome {
	n, err := s.store.MarkAdminRead(ctx, s.Room, s.now())
	if err != nil {
		metrics.StoreFailures.WithLabelValues("mark_read").Inc()
		s.logger.Error("mark read failed", zap.Error(err))
		return OutcomeIgnored
	}
	s.logger.Debug("marked admin messages read", zap.Int64("rows", n))
	return OutcomeProcessed
}

// enqueue queues a frame for the writer. Frames are dropped once the writer has stopped.
func (s *Session) enqueue(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("encode outbound frame failed", zap.Error(err))
		return
	}
	select {
	case s.send <- data:
	case <-s.writerDone:
	}
}

// Close sends a close frame and drops the transport; the read loop then ends with OutcomeClosed.
func (s *Session) Close(code int, reason string) {
	if s.conn == nil {
		return
	}
	_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(s.cfg.WriteTimeout))
	_ = s.conn.Close()
}

func (s *Session) shutdown() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		close(s.send)
		<-s.writerDone
	})
}

func (s *Session) writePump() {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
		close(s.writerDone)
	}()

	for {
		select {
		case message, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					s.logger.Warn("write failed", zap.Error(err))
				}
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logger.Debug("ping failed", zap.Error(err))
				return
			}
		}
	}
}

func (s *Session) logReadError(err error) {
	switch {
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		s.logger.Debug("peer closed connection", zap.Error(err))
	case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure):
		s.logger.Warn("unexpected close", zap.Error(err))
	default:
		s.logger.Debug("read ended", zap.Error(err))
	}
}
