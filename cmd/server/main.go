package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/code-100-precent/LingRelay/cmd/bootstrap"
	"github.com/code-100-precent/LingRelay/internal/handlers"
	"github.com/code-100-precent/LingRelay/internal/models"
	"github.com/code-100-precent/LingRelay/internal/store"
	"github.com/code-100-precent/LingRelay/pkg/auth"
	"github.com/code-100-precent/LingRelay/pkg/cache"
	"github.com/code-100-precent/LingRelay/pkg/config"
	"github.com/code-100-precent/LingRelay/pkg/logger"
	"github.com/code-100-precent/LingRelay/pkg/metrics"
	"github.com/code-100-precent/LingRelay/pkg/middleware"
	"github.com/code-100-precent/LingRelay/pkg/realtime"
	"github.com/code-100-precent/LingRelay/pkg/relay"
	"github.com/code-100-precent/LingRelay/pkg/scheduler"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// auditGroup receives every message change so operators can trace relay traffic at debug level.
const auditGroup = "relay-audit"

func main() {
	// 1. Print Banner
	if err := bootstrap.PrintBannerFromFile("banner.txt"); err != nil {
		log.Printf("banner not printed: %v", err)
	}

	// 2. Parse Command Line Parameters
	mode := flag.String("mode", "", "running environment (development, test, production)")
	initSQL := flag.String("init-sql", "", "path to database init .sql script (optional)")
	flag.Parse()

	if *mode != "" {
		os.Setenv("APP_ENV", *mode)
	}

	// 3. Load Global Configuration
	if err := config.Load(); err != nil {
		panic("config load failed: " + err.Error())
	}
	cfg := config.GlobalConfig

	// 4. Load Log Configuration
	if err := logger.Init(&cfg.Log, cfg.Mode); err != nil {
		panic(err)
	}
	defer logger.Sync()
	bootstrap.LogConfigInfo()

	// 5. Load Data Source
	db, err := bootstrap.SetupDatabase(os.Stdout, &bootstrap.Options{
		InitSQLPath: *initSQL,
		AutoMigrate: true,
	})
	if err != nil {
		logger.Error("database setup failed", zap.Error(err))
		return
	}

	// 6. Change feed
	feed, closeFeed, err := newFeed(cfg.ChangeFeed)
	if err != nil {
		logger.Error("change feed setup failed", zap.Error(err))
		return
	}
	defer closeFeed()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mux := realtime.NewMultiplexer(feed, logger.Named("multiplexer"))
	if _, err := mux.Subscribe(ctx, auditGroup, models.UserMessageTable, realtime.EventAll, "", realtime.HandlerFunc(func(table string, change realtime.Change) {
		logger.Debug("message change", zap.String("table", table), zap.String("event", string(change.Event)))
	})); err != nil {
		logger.Warn("audit subscription failed", zap.Error(err))
	}

	// 7. Auth
	jwtConfig := auth.DefaultJWTConfig(cfg.JWTSecret)
	jwtConfig.Issuer = cfg.JWTIssuer
	jwtConfig.AccessTokenTTL = cfg.JWTAccessTTL
	verifier := auth.NewCachingVerifier(
		auth.NewJWTVerifier(auth.NewJWTManager(jwtConfig)),
		cache.TTLConfig{MaxSize: cfg.AuthCacheSize, TTL: cfg.AuthCacheTTL},
	)

	// 8. Relay
	messages := store.NewGormMessageStore(db, feed, logger.Named("store"))
	relayCfg := relay.LoadConfigFromEnv()
	if cfg.HistoryLimit > 0 {
		relayCfg.HistoryLimit = cfg.HistoryLimit
	}
	if err := relay.ValidateConfig(relayCfg); err != nil {
		logger.Error("invalid relay config", zap.Error(err))
		return
	}
	relayServer := relay.NewServer(relayCfg, verifier, messages, messages, logger.Named("relay"))

	// 9. Connectivity probe schedule
	prober := realtime.NewProber(feed, logger.Named("probe"))
	jobs := scheduler.NewScheduler(logger.Named("scheduler")).WithTimeout(2 * realtime.ProbeTimeout)
	if cfg.ProbeSchedule != "" {
		if err := jobs.AddTask("changefeed-probe", cfg.ProbeSchedule, func(ctx context.Context) error {
			result := prober.CheckConnection(ctx)
			metrics.RecordProbe(result.Connected)
			if !result.Connected {
				return errors.New("change feed unreachable: " + result.Error)
			}
			return nil
		}); err != nil {
			logger.Error("invalid probe schedule", zap.String("schedule", cfg.ProbeSchedule), zap.Error(err))
			return
		}
	}
	jobs.Start()

	// 10. Rate limiting
	limiter, err := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:       cfg.RateLimit,
		Identifier: middleware.IdentifierIP,
	}, memory.NewStore(), logger.Named("ratelimit"))
	if err != nil {
		logger.Error("invalid rate limit", zap.String("rate", cfg.RateLimit), zap.Error(err))
		return
	}

	// 11. Initialize Gin Routing
	if cfg.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(
		middleware.RecoveryMiddleware(zap.L()),
		middleware.RequestIDMiddleware(),
		middleware.CorsMiddleware(),
		middleware.LoggerMiddleware(zap.L()),
		middleware.MetricsMiddleware(),
	)

	handlers.NewHandlers(handlers.Options{
		APIPrefix:   cfg.APIPrefix,
		MetricsPath: cfg.MonitorPrefix,
		Relay:       relayServer,
		Verifier:    verifier,
		Unread:      messages,
		Prober:      prober,
		RateLimiter: limiter,
		Logger:      logger.Named("http"),
	}).Register(r)

	// 12. Start HTTP Server
	httpServer := &http.Server{
		Addr:           cfg.Addr,
		Handler:        r,
		ReadTimeout:    30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", cfg.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server run failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	jobs.Stop()
	relayServer.Shutdown()
	if err := mux.CloseAll(); err != nil {
		logger.Warn("closing subscriptions", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}
}

// newFeed builds the configured change feed and the function that releases it.
func newFeed(cfg config.ChangeFeedConfig) (realtime.Feed, func(), error) {
	switch cfg.Driver {
	case "", "memory":
		feed := realtime.NewMemoryFeed()
		return feed, func() { _ = feed.Close() }, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		feed := realtime.NewRedisFeed(client, cfg.Prefix, logger.Named("changefeed"))
		return feed, func() { _ = client.Close() }, nil
	default:
		return nil, nil, errors.New("unknown change feed driver: " + cfg.Driver)
	}
}
