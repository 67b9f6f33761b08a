// Chainwatch - Wormhole Chain Killmail Surveillance
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chainwatch

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateNATS(); err != nil {
		return err
	}

	if err := c.validateTopology(); err != nil {
		return err
	}

	if err := c.validateDispatch(); err != nil {
		return err
	}

	if err := c.validateEmitter(); err != nil {
		return err
	}

	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.Server.Timeout)
	}
	return nil
}

func (c *Config) validateNATS() error {
	if c.NATS.URL == "" {
		return fmt.Errorf("NATS_URL is required")
	}
	if !strings.HasPrefix(c.NATS.URL, "nats://") && !strings.HasPrefix(c.NATS.URL, "tls://") {
		return fmt.Errorf("NATS_URL must start with nats:// or tls://, got %q", c.NATS.URL)
	}
	if c.NATS.EmbeddedServer && c.NATS.StoreDir == "" {
		return fmt.Errorf("NATS_STORE_DIR is required when NATS_EMBEDDED=true")
	}
	if c.NATS.DurableName == "" {
		return fmt.Errorf("NATS_DURABLE_NAME must not be empty")
	}
	return nil
}

// validateTopology requires a mapping service endpoint: without it every
// chain-scoped predicate evaluates Indeterminate forever, which is almost
// certainly a misconfiguration rather than an intent.
func (c *Config) validateTopology() error {
	if c.Topology.BaseURL == "" {
		return fmt.Errorf("TOPOLOGY_BASE_URL is required")
	}
	if err := validateHTTPURL(c.Topology.BaseURL, "TOPOLOGY_BASE_URL"); err != nil {
		return err
	}
	if c.Topology.MapID == "" {
		return fmt.Errorf("TOPOLOGY_MAP_ID is required")
	}
	if c.Topology.HomeSystemID <= 0 {
		return fmt.Errorf("TOPOLOGY_HOME_SYSTEM_ID must be positive, got %d", c.Topology.HomeSystemID)
	}
	if c.Topology.RefreshInterval <= 0 {
		return fmt.Errorf("TOPOLOGY_REFRESH_INTERVAL must be positive, got %s", c.Topology.RefreshInterval)
	}
	if c.Topology.StalenessThreshold < c.Topology.RefreshInterval {
		return fmt.Errorf("TOPOLOGY_STALENESS_THRESHOLD (%s) must be at least TOPOLOGY_REFRESH_INTERVAL (%s)",
			c.Topology.StalenessThreshold, c.Topology.RefreshInterval)
	}
	return nil
}

func (c *Config) validateDispatch() error {
	if c.Dispatch.Deadline < 10*time.Millisecond {
		return fmt.Errorf("DISPATCH_DEADLINE must be at least 10ms, got %s", c.Dispatch.Deadline)
	}
	if c.Dispatch.Concurrency < 1 {
		return fmt.Errorf("DISPATCH_CONCURRENCY must be at least 1, got %d", c.Dispatch.Concurrency)
	}
	return nil
}

func (c *Config) validateEmitter() error {
	if c.Emitter.RateLimitMax < 1 {
		return fmt.Errorf("EMITTER_RATE_LIMIT_MAX must be at least 1, got %d", c.Emitter.RateLimitMax)
	}
	if c.Emitter.RateLimitWindow <= 0 {
		return fmt.Errorf("EMITTER_RATE_LIMIT_WINDOW must be positive, got %s", c.Emitter.RateLimitWindow)
	}
	if c.Emitter.DedupTTL <= 0 {
		return fmt.Errorf("EMITTER_DEDUP_TTL must be positive, got %s", c.Emitter.DedupTTL)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, fatal; got %q", c.Logging.Level)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// validateHTTPURL checks that a value parses as an absolute http(s) URL.
func validateHTTPURL(raw, name string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https scheme, got %q", name, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s is missing a host", name)
	}
	return nil
}
