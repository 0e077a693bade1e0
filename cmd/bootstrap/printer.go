package bootstrap

import (
	"fmt"
	"os"
	"strings"

	"github.com/code-100-precent/LingRelay/pkg/config"
	"github.com/code-100-precent/LingRelay/pkg/logger"
	"go.uber.org/zap"
)

// LogConfigInfo Print global configuration information
func LogConfigInfo() {
	cfg := config.GlobalConfig
	logger.Info("system config load finished")
	logger.Info("base config",
		zap.String("server_name", cfg.ServerName),
		zap.String("mode", cfg.Mode),
		zap.String("addr", cfg.Addr),
		zap.String("api_prefix", cfg.APIPrefix),
		zap.String("monitor_prefix", cfg.MonitorPrefix),
		zap.String("db_driver", cfg.DBDriver),
	)

	logger.Info("auth config",
		zap.String("jwt_issuer", cfg.JWTIssuer),
		zap.Duration("jwt_access_ttl", cfg.JWTAccessTTL),
		zap.Int("auth_cache_size", cfg.AuthCacheSize),
		zap.Duration("auth_cache_ttl", cfg.AuthCacheTTL),
	)

	logger.Info("relay config",
		zap.Int("history_limit", cfg.HistoryLimit),
		zap.String("rate_limit", cfg.RateLimit),
		zap.String("probe_schedule", cfg.ProbeSchedule),
		zap.String("changefeed_driver", cfg.ChangeFeed.Driver),
		zap.String("changefeed_prefix", cfg.ChangeFeed.Prefix),
		zap.String("redis_addr", cfg.ChangeFeed.RedisAddr),
	)

	logger.Info("log config",
		zap.String("log_level", cfg.Log.Level),
		zap.String("log_filename", cfg.Log.Filename),
		zap.Int("log_max_size", cfg.Log.MaxSize),
		zap.Int("log_max_age", cfg.Log.MaxAge),
		zap.Int("log_max_backups", cfg.Log.MaxBackups),
	)
}

// PrintBannerFromFile Read file and print
func PrintBannerFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	lines := strings.Split(string(data), "\n")

	colors := []string{
		"\x1b[38;5;165m",
		"\x1b[38;5;189m",
		"\x1b[38;5;207m",
		"\x1b[38;5;219m",
		"\x1b[38;5;225m",
		"\x1b[38;5;231m",
	}

	for i, line := range lines {
		color := colors[i%len(colors)]
		fmt.Println(color + line + "\x1b[0m")
	}
	return nil
}
