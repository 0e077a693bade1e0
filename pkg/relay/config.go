package relay

import (
	"fmt"
	"time"

	"github.com/code-100-precent/LingRelay/pkg/utils"
)

// Config tunes the relay transport.
type Config struct {
	ReadBufferSize  int
	WriteBufferSize int
	MaxMessageSize  int64
	SendBufferSize  int
	PingInterval    time.Duration
	PongTimeout     time.Duration
	WriteTimeout    time.Duration
	HistoryLimit    int
	// CheckOrigin overrides the upgrader's origin check; nil accepts every origin.
	CheckOrigin func(origin string) bool
}

// DefaultConfig returns default relay configuration
func DefaultConfig() *Config {
	return &Config{
		ReadBufferSize:  DefaultReadBufferSize,
		WriteBufferSize: DefaultWriteBufferSize,
		MaxMessageSize:  DefaultMaxMessageSize,
		SendBufferSize:  DefaultSendBufferSize,
		PingInterval:    DefaultPingInterval * time.Second,
		PongTimeout:     DefaultPongTimeout * time.Second,
		WriteTimeout:    DefaultWriteTimeout * time.Second,
		HistoryLimit:    DefaultHistoryLimit,
	}
}

// LoadConfigFromEnv loads relay configuration from environment variables.
// Durations are given in seconds.
func LoadConfigFromEnv() *Config {
	config := DefaultConfig()

	if readBuf := utils.GetIntEnv(EnvRelayReadBufferSize); readBuf > 0 {
		config.ReadBufferSize = int(readBuf)
	}

	if writeBuf := utils.GetIntEnv(EnvRelayWriteBufferSize); writeBuf > 0 {
		config.WriteBufferSize = int(writeBuf)
	}

	if maxMsg := utils.GetIntEnv(EnvRelayMaxMessageSize); maxMsg > 0 {
		config.MaxMessageSize = maxMsg
	}

	if sendBuf := utils.GetIntEnv(EnvRelaySendBufferSize); sendBuf > 0 {
		config.SendBufferSize = int(sendBuf)
	}

	if ping := utils.GetIntEnv(EnvRelayPingInterval); ping > 0 {
		config.PingInterval = time.Duration(ping) * time.Second
	}

	if pong := utils.GetIntEnv(EnvRelayPongTimeout); pong > 0 {
		config.PongTimeout = time.Duration(pong) * time.Second
	}

	if write := utils.GetIntEnv(EnvRelayWriteTimeout); write > 0 {
		config.WriteTimeout = time.Duration(write) * time.Second
	}

	if limit := utils.GetIntEnv(EnvRelayHistoryLimit); limit > 0 {
		config.HistoryLimit = int(limit)
	}

	return config
}

// ValidateConfig validates relay configuration
func ValidateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if config.ReadBufferSize <= 0 || config.WriteBufferSize <= 0 {
		return fmt.Errorf("read/write buffer size must be greater than 0")
	}

	if config.MaxMessageSize <= 0 {
		return fmt.Errorf("max message size must be greater than 0")
	}

	if config.SendBufferSize <= 0 {
		return fmt.Errorf("send buffer size must be greater than 0")
	}

	if config.PingInterval <= 0 || config.PongTimeout <= 0 || config.WriteTimeout <= 0 {
		return fmt.Errorf("ping interval, pong timeout and write timeout must be greater than 0")
	}

	// Pings must land before the peer is considered gone
	if config.PingInterval >= config.PongTimeout {
		return fmt.Errorf("ping interval must be less than pong timeout")
	}

	if config.HistoryLimit <= 0 {
		return fmt.Errorf("history limit must be greater than 0")
	}

	return nil
}
