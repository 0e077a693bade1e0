package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/code-100-precent/LingRelay/pkg/logger"
	"github.com/code-100-precent/LingRelay/pkg/utils"
)

// Config represents the relay configuration
type Config struct {
	ServerName string `env:"SERVER_NAME"`
	Addr       string `env:"ADDR"`
	Mode       string `env:"MODE"`
	APIPrefix  string `env:"API_PREFIX"`
	DBDriver   string `env:"DB_DRIVER"`
	DSN        string `env:"DSN"`
	Log        logger.LogConfig

	JWTSecret     string        `env:"JWT_SECRET"`
	JWTIssuer     string        `env:"JWT_ISSUER"`
	JWTAccessTTL  time.Duration `env:"JWT_ACCESS_TTL"`
	AuthCacheSize int           `env:"AUTH_CACHE_SIZE"`
	AuthCacheTTL  time.Duration `env:"AUTH_CACHE_TTL"`
	HistoryLimit  int           `env:"HISTORY_LIMIT"`
	RateLimit     string        `env:"RATE_LIMIT"`
	ProbeSchedule string        `env:"PROBE_SCHEDULE"`
	MonitorPrefix string        `env:"MONITOR_PREFIX"`
	ChangeFeed    ChangeFeedConfig
}

// ChangeFeedConfig selects the change feed backing the subscription multiplexer.
type ChangeFeedConfig struct {
	Driver        string `env:"CHANGEFEED_DRIVER"` // memory | redis
	Prefix        string `env:"CHANGEFEED_PREFIX"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB"`
}

// GlobalConfig is the global configuration instance
var GlobalConfig *Config

// Load loads configuration from environment variables
func Load() error {
	env := os.Getenv("APP_ENV")
	if err := utils.LoadEnv(env); err != nil {
		log.Printf("Note: .env file not found or failed to load: %v (using default values)", err)
	}

	secret := utils.GetEnv("JWT_SECRET")
	if secret == "" {
		generated, err := generateDefaultSecret()
		if err != nil {
			return err
		}
		secret = generated
	}

	GlobalConfig = &Config{
		ServerName: getStringOrDefault("SERVER_NAME", "LingRelay"),
		Addr:       getStringOrDefault("ADDR", ":7072"),
		Mode:       getStringOrDefault("MODE", "development"),
		APIPrefix:  getStringOrDefault("API_PREFIX", "/api"),
		DBDriver:   getStringOrDefault("DB_DRIVER", "sqlite"),
		DSN:        getStringOrDefault("DSN", "./relay.db"),
		Log: logger.LogConfig{
			Level:      getStringOrDefault("LOG_LEVEL", "info"),
			Filename:   getStringOrDefault("LOG_FILENAME", "./logs/relay.log"),
			MaxSize:    getIntOrDefault("LOG_MAX_SIZE", 100),
			MaxAge:     getIntOrDefault("LOG_MAX_AGE", 30),
			MaxBackups: getIntOrDefault("LOG_MAX_BACKUPS", 5),
			Daily:      getBoolOrDefault("LOG_DAILY", true),
		},
		JWTSecret:     secret,
		JWTIssuer:     getStringOrDefault("JWT_ISSUER", "LingRelay"),
		JWTAccessTTL:  getDurationOrDefault("JWT_ACCESS_TTL", 24*time.Hour),
		AuthCacheSize: getIntOrDefault("AUTH_CACHE_SIZE", 4096),
		AuthCacheTTL:  getDurationOrDefault("AUTH_CACHE_TTL", time.Minute),
		HistoryLimit:  getIntOrDefault("HISTORY_LIMIT", 100),
		RateLimit:     getStringOrDefault("RATE_LIMIT", "120-M"),
		ProbeSchedule: getStringOrDefault("PROBE_SCHEDULE", "@every 1m"),
		MonitorPrefix: getStringOrDefault("MONITOR_PREFIX", "/metrics"),
		ChangeFeed: ChangeFeedConfig{
			Driver:        getStringOrDefault("CHANGEFEED_DRIVER", "memory"),
			Prefix:        getStringOrDefault("CHANGEFEED_PREFIX", "lingrelay:changes:"),
			RedisAddr:     getStringOrDefault("REDIS_ADDR", "localhost:6379"),
			RedisPassword: utils.GetEnv("REDIS_PASSWORD"),
			RedisDB:       int(utils.GetIntEnv("REDIS_DB")),
		},
	}
	if GlobalConfig.ProbeSchedule == "off" {
		GlobalConfig.ProbeSchedule = ""
	}
	return nil
}

// getStringOrDefault gets environment variable value, returns default if empty
func getStringOrDefault(key, defaultValue string) string {
	value := utils.GetEnv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getBoolOrDefault gets boolean environment variable value, returns default if empty
func getBoolOrDefault(key string, defaultValue bool) bool {
	if utils.GetEnv(key) == "" {
		return defaultValue
	}
	return utils.GetBoolEnv(key)
}

// getIntOrDefault gets integer environment variable value, returns default if zero
func getIntOrDefault(key string, defaultValue int) int {
	value := utils.GetIntEnv(key)
	if value == 0 {
		return defaultValue
	}
	return int(value)
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	s := utils.GetEnv(key)
	if s == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

// generateDefaultSecret is only for development; tokens signed with it do not survive a restart.
func generateDefaultSecret() (string, error) {
	suffix, err := utils.GenerateRandomString(16)
	if err != nil {
		return "", fmt.Errorf("generate default jwt secret: %w", err)
	}
	return "default-secret-key-change-in-production-" + suffix, nil
}
