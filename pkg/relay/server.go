package relay

import (
	"errors"
	"net/http"
	"sync"

	"github.com/code-100-precent/LingRelay/pkg/auth"
	"github.com/code-100-precent/LingRelay/pkg/metrics"
	"github.com/code-100-precent/LingRelay/pkg/utils"
	"github.com/code-100-precent/LingRelay/pkg/utils/response"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Server upgrades authenticated requests into relay sessions.
type Server struct {
	cfg      *Config
	verifier auth.Verifier
	history  HistoryLoader
	store    MessageStore
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewServer(cfg *Config, verifier auth.Verifier, history HistoryLoader, store MessageStore, logger *zap.Logger) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:      cfg,
		verifier: verifier,
		history:  history,
		store:    store,
		logger:   logger,
		upgrader: newUpgrader(cfg),
		sessions: make(map[string]*Session),
	}
}

func newUpgrader(cfg *Config) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			if cfg.CheckOrigin == nil {
				return true
			}
			return cfg.CheckOrigin(r.Header.Get("Origin"))
		},
	}
}

// Handle is the gin handler for the upgrade endpoint. It blocks for the lifetime of the session.
func (s *Server) Handle(c *gin.Context) {
	if !websocket.IsWebSocketUpgrade(c.Request) {
		s.reject(c, "not_upgrade", utils.ErrNotUpgrade)
		return
	}

	token := auth.ExtractToken(c)
	if token == "" {
		s.reject(c, "missing_token", utils.ErrMissingCredential)
		return
	}
	principal, err := s.verifier.Verify(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenRequired) {
			s.reject(c, "missing_token", utils.ErrMissingCredential)
			return
		}
		s.logger.Debug("credential rejected", zap.Error(err))
		s.reject(c, "invalid_token", utils.ErrInvalidCredential)
		return
	}

	room := ResolveRoom(principal, c.Query(QueryRoomID))
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written an error response
		metrics.UpgradeRejected.WithLabelValues("upgrade_failed").Inc()
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	session := newSession(conn, principal, room, s.cfg, s.history, s.store, s.logger)
	s.track(session)
	defer s.untrack(session)

	session.Run(c.Request.Context())
}

// Register mounts the upgrade endpoint on r. Preflight requests are answered by
// middleware.CorsMiddleware, which must be installed on the engine.
func (s *Server) Register(r gin.IRoutes, handlers ...gin.HandlerFunc) {
	r.GET(RouteWebSocket, append(handlers, s.Handle)...)
}

// ActiveSessions returns the number of open sessions.
func (s *Server) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Shutdown closes every open session with a going-away status.
func (s *Server) Shutdown() {
	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.mu.Unlock()

	for _, session := range sessions {
		session.Close(websocket.CloseGoingAway, "server shutting down")
	}
	s.logger.Info("relay sessions closed", zap.Int("count", len(sessions)))
}

func (s *Server) reject(c *gin.Context, reason string, e *utils.Error) {
	metrics.UpgradeRejected.WithLabelValues(reason).Inc()
	s.logger.Info("upgrade rejected", zap.String("reason", reason), zap.String("remote", c.ClientIP()))
	response.AbortWithStatusJSON(c, e.StatusCode(), errors.New(e.Message))
}

func (s *Server) track(session *Session) {
	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()
}

func (s *Server) untrack(session *Session) {
	s.mu.Lock()
	delete(s.sessions, session.ID)
	s.mu.Unlock()
}
