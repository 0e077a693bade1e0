package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/code-100-precent/LingRelay/pkg/auth"
	"github.com/code-100-precent/LingRelay/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"
)

// Rate limit identifiers
const (
	IdentifierIP        = "ip"
	IdentifierPrincipal = "principal"
)

// RateLimiterConfig configures RateLimiter.
type RateLimiterConfig struct {
	// Rate in ulule format, e.g. "120-M"
	Rate string
	// Identifier is "ip" or "principal"; principal falls back to the client IP when no
	// principal is attached to the request.
	Identifier     string
	SkipPaths      []string
	WhitelistCIDRs []string
	BlacklistCIDRs []string
}

// Observer is notified of every limiter decision.
type Observer interface {
	OnAllow(path, key string)
	OnDeny(path, key, reason string)
}

// PrometheusObserver counts rejections in metrics.RateLimitHits.
type PrometheusObserver struct{}

func (PrometheusObserver) OnAllow(string, string) {}

func (PrometheusObserver) OnDeny(path, _ string, reason string) {
	metrics.RateLimitHits.WithLabelValues(path, reason).Inc()
}

// RateLimiter is a ulule/limiter backed gin middleware.
type RateLimiter struct {
	mu        sync.RWMutex
	cfg       RateLimiterConfig
	limiter   *limiter.Limiter
	store     limiter.Store
	whitelist []*net.IPNet
	blacklist []*net.IPNet
	observer  Observer
	logger    *zap.Logger
}

// NewRateLimiter builds a limiter over store, or an in-memory store when nil.
func NewRateLimiter(cfg RateLimiterConfig, store limiter.Store, logger *zap.Logger) (*RateLimiter, error) {
	if store == nil {
		store = memory.NewStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	rl := &RateLimiter{store: store, observer: PrometheusObserver{}, logger: logger}
	if err := rl.UpdateConfig(cfg); err != nil {
		return nil, err
	}
	return rl, nil
}

// WithObserver replaces the decision observer.
func (rl *RateLimiter) WithObserver(o Observer) *RateLimiter {
	rl.mu.Lock()
	rl.observer = o
	rl.mu.Unlock()
	return rl
}

// UpdateConfig swaps the rate and address lists. Counters already in the store are kept.
func (rl *RateLimiter) UpdateConfig(cfg RateLimiterConfig) error {
	rate, err := limiter.NewRateFromFormatted(cfg.Rate)
	if err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	whitelist, err := parseCIDRs(cfg.WhitelistCIDRs)
	if err != nil {
		return err
	}
	blacklist, err := parseCIDRs(cfg.BlacklistCIDRs)
	if err != nil {
		return err
	}
	if cfg.Identifier == "" {
		cfg.Identifier = IdentifierIP
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.cfg = cfg
	rl.limiter = limiter.New(rl.store, rate)
	rl.whitelist = whitelist
	rl.blacklist = blacklist
	return nil
}

// Middleware returns the gin handler.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		rl.mu.RLock()
		cfg, lim, observer := rl.cfg, rl.limiter, rl.observer
		whitelist, blacklist := rl.whitelist, rl.blacklist
		rl.mu.RUnlock()

		path := c.Request.URL.Path
		for _, p := range cfg.SkipPaths {
			if p == path {
				c.Next()
				return
			}
		}

		ip := net.ParseIP(c.ClientIP())
		if containsIP(whitelist, ip) {
			c.Next()
			return
		}
		key := rl.key(c, cfg)
		if containsIP(blacklist, ip) {
			observer.OnDeny(path, key, "blacklist")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}

		ctx, err := lim.Get(c.Request.Context(), key)
		if err != nil {
			// fail open
			rl.logger.Warn("rate limiter store failed", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(ctx.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(ctx.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(ctx.Reset, 10))

		if ctx.Reached {
			observer.OnDeny(path, key, "limit")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		observer.OnAllow(path, key)
		c.Next()
	}
}

func (rl *RateLimiter) key(c *gin.Context, cfg RateLimiterConfig) string {
	if cfg.Identifier == IdentifierPrincipal {
		if p, ok := auth.CurrentPrincipal(c); ok {
			return "principal:" + p.ID
		}
	}
	return "ip:" + c.ClientIP()
}

func parseCIDRs(cidrs []string) ([]*net.IPNet, error) {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("rate limiter: invalid cidr %q: %w", cidr, err)
		}
		out = append(out, n)
	}
	return out, nil
}

func containsIP(nets []*net.IPNet, ip net.IP) bool {
	if ip == nil {
		return false
	}
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
