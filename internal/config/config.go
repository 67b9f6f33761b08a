// Chainwatch - Wormhole Chain Killmail Surveillance
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chainwatch

package config

import (
	"time"
)

// Config holds all application configuration loaded from defaults, an
// optional YAML config file, and environment variables (highest priority).
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all settings
//  2. Config File: Optional YAML config file (config.yaml)
//  3. Environment Variables: Override any setting
//
// Thread Safety:
// Config is immutable after Load() and safe for concurrent read access.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	NATS     NATSConfig     `koanf:"nats"`
	Database DatabaseConfig `koanf:"database"`
	Topology TopologyConfig `koanf:"topology"`
	Profiles ProfilesConfig `koanf:"profiles"`
	Dispatch DispatchConfig `koanf:"dispatch"`
	Emitter  EmitterConfig  `koanf:"emitter"`
	API      APIConfig      `koanf:"api"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
//
// Environment Variables:
//   - HTTP_PORT: Listen port (default: 3857)
//   - HTTP_HOST: Bind address (default: 0.0.0.0)
//   - HTTP_TIMEOUT: Read/write timeout (default: 30s)
type ServerConfig struct {
	Port    int           `koanf:"port"`
	Host    string        `koanf:"host"`
	Timeout time.Duration `koanf:"timeout"`
}

// NATSConfig holds NATS JetStream settings for killmail ingest and
// alert publication. The embedded server is the default deployment
// mode; point URL at an external cluster and set EmbeddedServer=false
// to share a stream with other services.
type NATSConfig struct {
	URL            string        `koanf:"url"`
	EmbeddedServer bool          `koanf:"embedded_server"`
	StoreDir       string        `koanf:"store_dir"`
	MaxMemory      int64         `koanf:"max_memory"`
	MaxStore       int64         `koanf:"max_store"`
	DurableName    string        `koanf:"durable_name"`
	RetryMax       int           `koanf:"retry_max"`
	CloseTimeout   time.Duration `koanf:"close_timeout"`
}

// DatabaseConfig holds DuckDB settings for the alert history store.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = use runtime.NumCPU()
}

// TopologyConfig holds the chain-mapping service connection and cache
// freshness settings.
//
// Environment Variables:
//   - TOPOLOGY_BASE_URL: Mapping service base URL (required)
//   - TOPOLOGY_API_TOKEN: Bearer token for the mapping API
//   - TOPOLOGY_MAP_ID: Chain map to track (required)
//   - TOPOLOGY_HOME_SYSTEM_ID: Home system for hop counting (required)
type TopologyConfig struct {
	BaseURL            string        `koanf:"base_url"`
	APIToken           string        `koanf:"api_token"`
	MapID              string        `koanf:"map_id"`
	HomeSystemID       int64         `koanf:"home_system_id"`
	RefreshInterval    time.Duration `koanf:"refresh_interval"`
	StalenessThreshold time.Duration `koanf:"staleness_threshold"`
	RequestTimeout     time.Duration `koanf:"request_timeout"`
}

// ProfilesConfig holds the Badger-backed profile store settings.
type ProfilesConfig struct {
	StorePath string `koanf:"store_path"`
	MaxDepth  int    `koanf:"max_depth"` // filter tree depth limit
}

// DispatchConfig holds evaluation fan-out settings. Deadline is the
// aggregate per-killmail budget across all enabled profiles.
type DispatchConfig struct {
	Deadline    time.Duration `koanf:"deadline"`
	Concurrency int           `koanf:"concurrency"`
}

// EmitterConfig holds alert delivery settings: per-profile rate
// limiting, dedup retention, and publish smoothing.
type EmitterConfig struct {
	RateLimitWindow  time.Duration `koanf:"rate_limit_window"`
	RateLimitMax     int           `koanf:"rate_limit_max"`
	PublishPerSecond int           `koanf:"publish_per_second"`
	QueueSize        int           `koanf:"queue_size"`
	PublishRetries   int           `koanf:"publish_retries"`
	DedupTTL         time.Duration `koanf:"dedup_ttl"`
	DedupPath        string        `koanf:"dedup_path"`
}

// APIConfig holds pagination and request throttling settings for the
// HTTP API.
type APIConfig struct {
	DefaultPageSize int           `koanf:"default_page_size"`
	MaxPageSize     int           `koanf:"max_page_size"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// LoggingConfig holds log level and output format settings.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json or console (default: json)
//   - LOG_CALLER: Include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}
