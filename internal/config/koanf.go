// Chainwatch - Wormhole Chain Killmail Surveillance
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chainwatch

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/chainwatch/config.yaml",
	"/etc/chainwatch/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:    3857,
			Host:    "0.0.0.0",
			Timeout: 30 * time.Second,
		},
		NATS: NATSConfig{
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: true,
			StoreDir:       "/data/nats/jetstream",
			MaxMemory:      1 << 30,  // 1GB
			MaxStore:       10 << 30, // 10GB
			DurableName:    "chainwatch",
			RetryMax:       3,
			CloseTimeout:   30 * time.Second,
		},
		Database: DatabaseConfig{
			Path:      "/data/chainwatch.duckdb",
			MaxMemory: "2GB",
			Threads:   0, // 0 = use runtime.NumCPU()
		},
		Topology: TopologyConfig{
			BaseURL:            "",
			APIToken:           "",
			MapID:              "",
			HomeSystemID:       0,
			RefreshInterval:    30 * time.Second,
			StalenessThreshold: 5 * time.Minute,
			RequestTimeout:     10 * time.Second,
		},
		Profiles: ProfilesConfig{
			StorePath: "/data/profiles",
			MaxDepth:  16,
		},
		Dispatch: DispatchConfig{
			Deadline:    200 * time.Millisecond,
			Concurrency: 8,
		},
		Emitter: EmitterConfig{
			RateLimitWindow:  time.Minute,
			RateLimitMax:     30,
			PublishPerSecond: 100,
			QueueSize:        1024,
			PublishRetries:   3,
			DedupTTL:         24 * time.Hour,
			DedupPath:        "/data/alert_dedup",
		},
		API: APIConfig{
			DefaultPageSize: 20,
			MaxPageSize:     100,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
//
// Precedence is ENV > File > Defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// Transform environment variable names to koanf paths:
	// TOPOLOGY_MAP_ID -> topology.map_id
	// HTTP_PORT -> server.port
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	// Unmarshal into Config struct
	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	// Check environment variable first
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	// Search default paths
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as
// comma-separated slices when sourced from environment variables.
var sliceConfigPaths = []string{
	"api.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Env vars come in as strings but the config expects
// slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// If it's already a slice (from YAML file), skip
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		// If it's a string, split by comma
		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envTransformFunc transforms environment variable names to koanf config
// paths.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - NATS_URL -> nats.url
//   - TOPOLOGY_MAP_ID -> topology.map_id
//   - DISPATCH_DEADLINE -> dispatch.deadline
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server mappings
		"http_port":    "server.port",
		"http_host":    "server.host",
		"http_timeout": "server.timeout",

		// NATS mappings
		"nats_url":           "nats.url",
		"nats_embedded":      "nats.embedded_server",
		"nats_store_dir":     "nats.store_dir",
		"nats_max_memory":    "nats.max_memory",
		"nats_max_store":     "nats.max_store",
		"nats_durable_name":  "nats.durable_name",
		"nats_retry_max":     "nats.retry_max",
		"nats_close_timeout": "nats.close_timeout",

		// Database mappings
		"duckdb_path":       "database.path",
		"duckdb_max_memory": "database.max_memory",
		"duckdb_threads":    "database.threads",

		// Topology mappings
		"topology_base_url":            "topology.base_url",
		"topology_api_token":           "topology.api_token",
		"topology_map_id":              "topology.map_id",
		"topology_home_system_id":      "topology.home_system_id",
		"topology_refresh_interval":    "topology.refresh_interval",
		"topology_staleness_threshold": "topology.staleness_threshold",
		"topology_request_timeout":     "topology.request_timeout",

		// Profile store mappings
		"profiles_store_path": "profiles.store_path",
		"profiles_max_depth":  "profiles.max_depth",

		// Dispatch mappings
		"dispatch_deadline":    "dispatch.deadline",
		"dispatch_concurrency": "dispatch.concurrency",

		// Emitter mappings
		"emitter_rate_limit_window":  "emitter.rate_limit_window",
		"emitter_rate_limit_max":     "emitter.rate_limit_max",
		"emitter_publish_per_second": "emitter.publish_per_second",
		"emitter_queue_size":         "emitter.queue_size",
		"emitter_publish_retries":    "emitter.publish_retries",
		"emitter_dedup_ttl":          "emitter.dedup_ttl",
		"emitter_dedup_path":         "emitter.dedup_path",

		// API mappings
		"api_default_page_size": "api.default_page_size",
		"api_max_page_size":     "api.max_page_size",
		"rate_limit_requests":   "api.rate_limit_reqs",
		"rate_limit_window":     "api.rate_limit_window",
		"cors_origins":          "api.cors_origins",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// For unmapped keys, return empty string to skip them.
	// This prevents random environment variables from polluting config.
	return ""
}
