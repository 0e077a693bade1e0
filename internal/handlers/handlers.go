package handlers

import (
	"context"
	"net/http"

	"github.com/code-100-precent/LingRelay/pkg/auth"
	"github.com/code-100-precent/LingRelay/pkg/metrics"
	"github.com/code-100-precent/LingRelay/pkg/middleware"
	"github.com/code-100-precent/LingRelay/pkg/realtime"
	"github.com/code-100-precent/LingRelay/pkg/relay"
	"github.com/code-100-precent/LingRelay/pkg/utils"
	"github.com/code-100-precent/LingRelay/pkg/utils/response"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// UnreadCounter counts a room's unread admin-authored messages.
type UnreadCounter interface {
	UnreadCount(ctx context.Context, room string) (int64, error)
}

// Options carries the components the routes are served by.
type Options struct {
	APIPrefix   string
	MetricsPath string
	Relay       *relay.Server
	Verifier    auth.Verifier
	Unread      UnreadCounter
	Prober      *realtime.Prober
	RateLimiter *middleware.RateLimiter
	Logger      *zap.Logger
}

type Handlers struct {
	opts   Options
	logger *zap.Logger
}

func NewHandlers(opts Options) *Handlers {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.APIPrefix == "" {
		opts.APIPrefix = "/api"
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}
	return &Handlers{opts: opts, logger: opts.Logger}
}

// Register mounts every route on engine.
func (h *Handlers) Register(engine *gin.Engine) {
	engine.GET("/health", h.handleHealth)
	engine.GET(h.opts.MetricsPath, gin.WrapH(promhttp.Handler()))

	if h.opts.Relay != nil {
		var guards []gin.HandlerFunc
		if h.opts.RateLimiter != nil {
			guards = append(guards, h.opts.RateLimiter.Middleware())
		}
		h.opts.Relay.Register(engine, guards...)
	}

	r := engine.Group(h.opts.APIPrefix)
	r.Use(middleware.CompressionMiddleware(nil))
	if h.opts.Prober != nil {
		r.GET("/realtime/probe", h.handleProbe)
	}
	if h.opts.Unread != nil && h.opts.Verifier != nil {
		r.GET("/rooms/:roomId/unread", auth.BearerMiddleware(h.opts.Verifier), h.handleUnread)
	}
}

func (h *Handlers) handleHealth(c *gin.Context) {
	body := gin.H{"status": "ok"}
	if h.opts.Relay != nil {
		body["sessions"] = h.opts.Relay.ActiveSessions()
	}
	c.JSON(http.StatusOK, body)
}

// handleProbe runs one connectivity check against the change feed
func (h *Handlers) handleProbe(c *gin.Context) {
	result := h.opts.Prober.CheckConnection(c.Request.Context())
	metrics.RecordProbe(result.Connected)
	if !result.Connected {
		h.logger.Warn("change feed probe failed", zap.String("error", result.Error))
		c.JSON(http.StatusServiceUnavailable, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleUnread reports how many admin messages in a room are unread. Users may only ask
// about their own room.
func (h *Handlers) handleUnread(c *gin.Context) {
	p, ok := auth.CurrentPrincipal(c)
	if !ok {
		response.AbortWithStatusJSON(c, http.StatusUnauthorized, utils.ErrMissingCredential)
		return
	}
	room := c.Param("roomId")
	if !p.IsAdmin && room != p.ID {
		response.AbortWithStatusJSON(c, http.StatusForbidden, utils.ErrForbidden)
		return
	}

	n, err := h.opts.Unread.UnreadCount(c.Request.Context(), room)
	if err != nil {
		metrics.StoreFailures.WithLabelValues("unread").Inc()
		h.logger.Error("unread count failed", zap.String("room", room), zap.Error(err))
		response.Fail(c, "unread count failed", nil)
		return
	}
	response.Success(c, "success", gin.H{"roomId": room, "unread": n})
}
