// Chainwatch - Wormhole Chain Killmail Surveillance
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chainwatch

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// setRequiredEnv provides the minimum environment Load needs to pass
// validation.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TOPOLOGY_BASE_URL", "http://map.example")
	t.Setenv("TOPOLOGY_MAP_ID", "home-chain")
	t.Setenv("TOPOLOGY_HOME_SYSTEM_ID", "31000001")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 3857 {
		t.Errorf("Server.Port = %d, want 3857", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want 0.0.0.0", cfg.Server.Host)
	}
	if !cfg.NATS.EmbeddedServer {
		t.Error("NATS.EmbeddedServer = false, want true by default")
	}
	if cfg.Dispatch.Deadline != 200*time.Millisecond {
		t.Errorf("Dispatch.Deadline = %s, want 200ms", cfg.Dispatch.Deadline)
	}
	if cfg.Dispatch.Concurrency != 8 {
		t.Errorf("Dispatch.Concurrency = %d, want 8", cfg.Dispatch.Concurrency)
	}
	if cfg.Emitter.RateLimitMax != 30 {
		t.Errorf("Emitter.RateLimitMax = %d, want 30", cfg.Emitter.RateLimitMax)
	}
	if cfg.Profiles.MaxDepth != 16 {
		t.Errorf("Profiles.MaxDepth = %d, want 16", cfg.Profiles.MaxDepth)
	}
	if cfg.Topology.BaseURL != "http://map.example" {
		t.Errorf("Topology.BaseURL = %q, want http://map.example", cfg.Topology.BaseURL)
	}
	if cfg.Topology.HomeSystemID != 31000001 {
		t.Errorf("Topology.HomeSystemID = %d, want 31000001", cfg.Topology.HomeSystemID)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("HTTP_PORT", "9100")
	t.Setenv("DISPATCH_DEADLINE", "150ms")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("NATS_EMBEDDED", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Dispatch.Deadline != 150*time.Millisecond {
		t.Errorf("Dispatch.Deadline = %s, want 150ms", cfg.Dispatch.Deadline)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.NATS.EmbeddedServer {
		t.Error("NATS.EmbeddedServer = true, want false after NATS_EMBEDDED=false")
	}
}

func TestLoadConfigFile(t *testing.T) {
	setRequiredEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9000
dispatch:
  concurrency: 4
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000 from config file", cfg.Server.Port)
	}
	if cfg.Dispatch.Concurrency != 4 {
		t.Errorf("Dispatch.Concurrency = %d, want 4 from config file", cfg.Dispatch.Concurrency)
	}
}

func TestLoadEnvBeatsFile(t *testing.T) {
	setRequiredEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("HTTP_PORT", "9100")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want env override 9100", cfg.Server.Port)
	}
}

func TestLoadCORSOriginsFromEnv(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.API.CORSOrigins) != len(want) {
		t.Fatalf("CORSOrigins = %v, want %v", cfg.API.CORSOrigins, want)
	}
	for i, origin := range want {
		if cfg.API.CORSOrigins[i] != origin {
			t.Errorf("CORSOrigins[%d] = %q, want %q", i, cfg.API.CORSOrigins[i], origin)
		}
	}
}

func TestLoadMissingTopology(t *testing.T) {
	t.Setenv("TOPOLOGY_BASE_URL", "")
	t.Setenv("TOPOLOGY_MAP_ID", "")
	t.Setenv("TOPOLOGY_HOME_SYSTEM_ID", "")
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "absent.yaml"))

	if _, err := Load(); err == nil {
		t.Fatal("Load() succeeded without topology configuration")
	}
}

// validConfig returns defaults completed with the required topology
// settings, as a base for mutation in validation tests.
func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Topology.BaseURL = "http://map.example"
	cfg.Topology.MapID = "home-chain"
	cfg.Topology.HomeSystemID = 31000001
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "HTTP_PORT",
		},
		{
			name:    "zero timeout",
			mutate:  func(c *Config) { c.Server.Timeout = 0 },
			wantErr: "HTTP_TIMEOUT",
		},
		{
			name:    "bad nats scheme",
			mutate:  func(c *Config) { c.NATS.URL = "http://127.0.0.1:4222" },
			wantErr: "NATS_URL",
		},
		{
			name: "embedded server without store dir",
			mutate: func(c *Config) {
				c.NATS.EmbeddedServer = true
				c.NATS.StoreDir = ""
			},
			wantErr: "NATS_STORE_DIR",
		},
		{
			name:    "empty durable name",
			mutate:  func(c *Config) { c.NATS.DurableName = "" },
			wantErr: "NATS_DURABLE_NAME",
		},
		{
			name:    "missing base url",
			mutate:  func(c *Config) { c.Topology.BaseURL = "" },
			wantErr: "TOPOLOGY_BASE_URL",
		},
		{
			name:    "base url wrong scheme",
			mutate:  func(c *Config) { c.Topology.BaseURL = "ftp://map.example" },
			wantErr: "TOPOLOGY_BASE_URL",
		},
		{
			name:    "missing map id",
			mutate:  func(c *Config) { c.Topology.MapID = "" },
			wantErr: "TOPOLOGY_MAP_ID",
		},
		{
			name:    "non-positive home system",
			mutate:  func(c *Config) { c.Topology.HomeSystemID = 0 },
			wantErr: "TOPOLOGY_HOME_SYSTEM_ID",
		},
		{
			name: "staleness below refresh interval",
			mutate: func(c *Config) {
				c.Topology.RefreshInterval = time.Minute
				c.Topology.StalenessThreshold = 30 * time.Second
			},
			wantErr: "TOPOLOGY_STALENESS_THRESHOLD",
		},
		{
			name:    "deadline too small",
			mutate:  func(c *Config) { c.Dispatch.Deadline = 5 * time.Millisecond },
			wantErr: "DISPATCH_DEADLINE",
		},
		{
			name:    "zero concurrency",
			mutate:  func(c *Config) { c.Dispatch.Concurrency = 0 },
			wantErr: "DISPATCH_CONCURRENCY",
		},
		{
			name:    "zero rate limit max",
			mutate:  func(c *Config) { c.Emitter.RateLimitMax = 0 },
			wantErr: "EMITTER_RATE_LIMIT_MAX",
		},
		{
			name:    "zero dedup ttl",
			mutate:  func(c *Config) { c.Emitter.DedupTTL = 0 },
			wantErr: "EMITTER_DEDUP_TTL",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "LOG_LEVEL",
		},
		{
			name:    "unknown log format",
			mutate:  func(c *Config) { c.Logging.Format = "logfmt" },
			wantErr: "LOG_FORMAT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() succeeded, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to mention %s", err, tt.wantErr)
			}
		})
	}
}
