// Package config defines the runtime configuration for chatrelay and its
// environment variable overlay.
//
// Precedence order (highest wins):
//  1. CLI flags  (handled by cmd/chatrelay)
//  2. Environment variables  (this package)
//  3. Defaults
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every tuneable for a chatrelay process.
type Config struct {
	// Port is the TCP listen port.
	Port int
	// WSPort is the WebSocket listen port; 0 disables the WebSocket endpoint.
	WSPort int
	// IdleTimeout disconnects an authenticated session after this much silence.
	IdleTimeout time.Duration
	// HistoryTTL is how long broadcasts stay retrievable via HISTORY.
	HistoryTTL time.Duration
	// HistorySize bounds the number of retained broadcasts.
	HistorySize int
	// LogLevel is a zerolog level name: debug, info, warn, error.
	LogLevel string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:        4000,
		WSPort:      0,
		IdleTimeout: 60 * time.Second,
		HistoryTTL:  5 * time.Minute,
		HistorySize: 100,
		LogLevel:    "info",
	}
}

// Every supported env var uses the CHATRELAY_ prefix. Durations accept
// time.ParseDuration syntax ("90s", "5m").

// LoadFromEnv overlays environment variables onto cfg. Only set, parseable
// env vars override the existing value. Call this BEFORE CLI flag parsing so
// that flags take precedence.
func LoadFromEnv(cfg *Config) {
	if v := envInt("CHATRELAY_PORT"); v > 0 {
		cfg.Port = v
	}
	if v := envInt("CHATRELAY_WS_PORT"); v > 0 {
		cfg.WSPort = v
	}
	if v := envDuration("CHATRELAY_IDLE_TIMEOUT"); v > 0 {
		cfg.IdleTimeout = v
	}
	if v := envDuration("CHATRELAY_HISTORY_TTL"); v > 0 {
		cfg.HistoryTTL = v
	}
	if v := envInt("CHATRELAY_HISTORY_SIZE"); v > 0 {
		cfg.HistorySize = v
	}
	if v := os.Getenv("CHATRELAY_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// Validate reports the first configuration error, if any.
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	if c.WSPort < 0 || c.WSPort > 65535 {
		return fmt.Errorf("config: websocket port %d out of range", c.WSPort)
	}
	if c.WSPort != 0 && c.WSPort == c.Port {
		return fmt.Errorf("config: websocket port %d collides with TCP port", c.WSPort)
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("config: idle timeout must be positive")
	}

	return nil
}

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}

	return n
}

func envDuration(key string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}

	return d
}
