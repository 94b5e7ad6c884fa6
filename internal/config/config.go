// Chorus - Social Playlist Platform Realtime Backend
// Copyright 2026 Chorus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chorusapp/chorus

// Package config provides configuration loading for Chorus.
//
// Configuration is resolved in three layers, later layers overriding earlier:
//  1. Built-in defaults
//  2. YAML config file (config.yaml, or CONFIG_PATH)
//  3. Environment variables with the CHORUS_ prefix
//     (CHORUS_SERVER_PORT=8080 maps to server.port)
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the Chorus realtime backend.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Logging LoggingConfig `koanf:"logging"`
	NATS    NATSConfig    `koanf:"nats"`
	Store   StoreConfig   `koanf:"store"`
	Outbox  OutboxConfig  `koanf:"outbox"`
	Push    PushConfig    `koanf:"push"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// ConnectRateLimit bounds connect attempts per client IP per minute.
	ConnectRateLimit int `koanf:"connect_rate_limit"`

	// AllowedOrigins restricts CORS on the realtime endpoints.
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// NATSConfig holds broker settings.
//
// With Embedded enabled, Chorus runs an in-process NATS JetStream server,
// which makes a single-binary deployment self-contained. Multi-instance
// deployments point URL at a shared cluster instead.
type NATSConfig struct {
	URL             string        `koanf:"url"`
	Embedded        bool          `koanf:"embedded"`
	EmbeddedHost    string        `koanf:"embedded_host"`
	EmbeddedPort    int           `koanf:"embedded_port"`
	StoreDir        string        `koanf:"store_dir"`
	MaxMemory       int64         `koanf:"max_memory"`
	MaxStore        int64         `koanf:"max_store"`
	MaxReconnects   int           `koanf:"max_reconnects"`
	ReconnectWait   time.Duration `koanf:"reconnect_wait"`
	ReconnectBuffer int           `koanf:"reconnect_buffer"`
	CloseTimeout    time.Duration `koanf:"close_timeout"`

	// TrackMsgID enables JetStream duplicate detection keyed on the
	// outbox record id, bounding the damage of duplicate publication.
	TrackMsgID bool `koanf:"track_msg_id"`
}

// StoreConfig holds Badger settings shared by the outbox store, the replay
// cache and the notification store.
type StoreConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`
}

// OutboxConfig holds outbox publisher settings.
type OutboxConfig struct {
	// BatchSize bounds how many pending records one publish cycle selects.
	BatchSize int `koanf:"batch_size"`

	// MaxRetry is the retry budget after the initial attempt. A record that
	// has failed MaxRetry+1 times total becomes FAILED (terminal).
	MaxRetry int `koanf:"max_retry"`

	// PublishInterval is the polling cadence of the publish loop.
	PublishInterval time.Duration `koanf:"publish_interval"`

	// PublishRate caps broker publishes per second (0 = unlimited).
	PublishRate int `koanf:"publish_rate"`

	// CleanupInterval is the cadence of the retention job.
	CleanupInterval time.Duration `koanf:"cleanup_interval"`

	// Retention is how long PUBLISHED records are kept before purge.
	Retention time.Duration `koanf:"retention"`

	// BreakerEnabled wraps broker publishes in a circuit breaker.
	BreakerEnabled bool `koanf:"breaker_enabled"`
}

// PushConfig holds push fanout settings.
type PushConfig struct {
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	PongTimeout       time.Duration `koanf:"pong_timeout"`

	// ReplayCacheTTL bounds how long a cached event can be replayed.
	ReplayCacheTTL time.Duration `koanf:"replay_cache_ttl"`

	// ReplayCacheMaxEvents bounds cached events per recipient.
	ReplayCacheMaxEvents int `koanf:"replay_cache_max_events"`

	// Channels lists the broadcast categories this instance subscribes to.
	Channels []string `koanf:"channels"`
}

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8090,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     30 * time.Second,
			ShutdownTimeout:  10 * time.Second,
			ConnectRateLimit: 60,
			AllowedOrigins:   []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		NATS: NATSConfig{
			URL:             "nats://127.0.0.1:4222",
			Embedded:        true,
			EmbeddedHost:    "127.0.0.1",
			EmbeddedPort:    4222,
			StoreDir:        "/data/nats/jetstream",
			MaxMemory:       1 << 30,  // 1GB
			MaxStore:        10 << 30, // 10GB
			MaxReconnects:   -1,       // retry forever
			ReconnectWait:   2 * time.Second,
			ReconnectBuffer: 8 * 1024 * 1024,
			CloseTimeout:    30 * time.Second,
			TrackMsgID:      true,
		},
		Store: StoreConfig{
			Path:     "/data/chorus/store",
			InMemory: false,
		},
		Outbox: OutboxConfig{
			BatchSize:       100,
			MaxRetry:        3,
			PublishInterval: time.Second,
			PublishRate:     0,
			CleanupInterval: 24 * time.Hour,
			Retention:       7 * 24 * time.Hour,
			BreakerEnabled:  true,
		},
		Push: PushConfig{
			HeartbeatInterval:    30 * time.Second,
			WriteTimeout:         10 * time.Second,
			PongTimeout:          60 * time.Second,
			ReplayCacheTTL:       30 * time.Minute,
			ReplayCacheMaxEvents: 100,
			Channels:             []string{"notifications", "direct-messages"},
		},
	}
}

// Validate checks the configuration for invalid or inconsistent values.
// It returns the first error found.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateNATS,
		c.validateOutbox,
		c.validatePush,
	}

	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Server.ConnectRateLimit < 0 {
		return fmt.Errorf("server.connect_rate_limit must be >= 0, got %d", c.Server.ConnectRateLimit)
	}
	return nil
}

func (c *Config) validateNATS() error {
	if c.NATS.URL == "" && !c.NATS.Embedded {
		return fmt.Errorf("nats.url is required when nats.embedded is disabled")
	}
	if c.NATS.Embedded && c.NATS.StoreDir == "" {
		return fmt.Errorf("nats.store_dir is required when nats.embedded is enabled")
	}
	return nil
}

func (c *Config) validateOutbox() error {
	if c.Outbox.BatchSize < 1 {
		return fmt.Errorf("outbox.batch_size must be >= 1, got %d", c.Outbox.BatchSize)
	}
	if c.Outbox.MaxRetry < 0 {
		return fmt.Errorf("outbox.max_retry must be >= 0, got %d", c.Outbox.MaxRetry)
	}
	if c.Outbox.PublishInterval <= 0 {
		return fmt.Errorf("outbox.publish_interval must be positive, got %s", c.Outbox.PublishInterval)
	}
	if c.Outbox.Retention <= 0 {
		return fmt.Errorf("outbox.retention must be positive, got %s", c.Outbox.Retention)
	}
	return nil
}

func (c *Config) validatePush() error {
	if c.Push.HeartbeatInterval <= 0 {
		return fmt.Errorf("push.heartbeat_interval must be positive, got %s", c.Push.HeartbeatInterval)
	}
	if c.Push.ReplayCacheMaxEvents < 1 {
		return fmt.Errorf("push.replay_cache_max_events must be >= 1, got %d", c.Push.ReplayCacheMaxEvents)
	}
	if len(c.Push.Channels) == 0 {
		return fmt.Errorf("push.channels must list at least one broadcast channel")
	}
	seen := make(map[string]bool, len(c.Push.Channels))
	for _, ch := range c.Push.Channels {
		if ch == "" {
			return fmt.Errorf("push.channels must not contain empty names")
		}
		if seen[ch] {
			return fmt.Errorf("push.channels contains duplicate %q", ch)
		}
		seen[ch] = true
	}
	return nil
}

// Addr returns the host:port listen address for the HTTP server.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
