// Chainwatch - Wormhole Chain Killmail Surveillance
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chainwatch

package topology

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
)

// Provider fetches chain topology from the external mapping service.
type Provider interface {
	// FetchTopology returns a fresh snapshot for the given map. The
	// returned snapshot carries no version; the cache assigns one.
	FetchTopology(ctx context.Context, mapID string) (*Snapshot, error)
}

// FetchError wraps mapping-provider failures. It is recovered via the
// cached snapshot plus the staleness flag and never surfaced per event.
type FetchError struct {
	MapID string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("topology fetch for map %q: %v", e.MapID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// HTTPProviderConfig configures the mapping service client.
type HTTPProviderConfig struct {
	// BaseURL of the mapping service, e.g. "https://map.example.com".
	BaseURL string

	// Token is the optional bearer token for the mapping API.
	Token string

	// RequestTimeout bounds a single fetch. Default: 10s.
	RequestTimeout time.Duration

	// BreakerFailureThreshold is the consecutive-failure count that opens
	// the circuit. Default: 5.
	BreakerFailureThreshold uint32

	// BreakerTimeout is how long the circuit stays open. Default: 30s.
	BreakerTimeout time.Duration
}

// HTTPProvider implements Provider over the mapping service's REST API,
// with a circuit breaker so a dead provider fails fast instead of holding
// refresh goroutines on connection timeouts.
type HTTPProvider struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*Snapshot]
	baseURL string
	token   string
}

// NewHTTPProvider creates a mapping service client.
func NewHTTPProvider(cfg HTTPProviderConfig) *HTTPProvider {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.BreakerFailureThreshold == 0 {
		cfg.BreakerFailureThreshold = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:    "topology-provider",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailureThreshold
		},
	}

	return &HTTPProvider{
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		breaker: gobreaker.NewCircuitBreaker[*Snapshot](settings),
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
	}
}

// topologyResponse is the wire shape of the mapping service's chain endpoint.
type topologyResponse struct {
	MapID   string   `json:"map_id"`
	Systems []System `json:"systems"`
}

// FetchTopology implements Provider.
func (p *HTTPProvider) FetchTopology(ctx context.Context, mapID string) (*Snapshot, error) {
	snap, err := p.breaker.Execute(func() (*Snapshot, error) {
		return p.fetch(ctx, mapID)
	})
	if err != nil {
		return nil, &FetchError{MapID: mapID, Err: err}
	}
	return snap, nil
}

func (p *HTTPProvider) fetch(ctx context.Context, mapID string) (*Snapshot, error) {
	endpoint := fmt.Sprintf("%s/api/maps/%s/topology", p.baseURL, url.PathEscape(mapID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var decoded topologyResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}

	systems := make(map[int64]System, len(decoded.Systems))
	for _, sys := range decoded.Systems {
		systems[sys.SolarSystemID] = sys
	}

	return &Snapshot{
		MapID:     mapID,
		FetchedAt: time.Now(),
		Systems:   systems,
	}, nil
}

// BreakerState exposes the circuit state for the status endpoint.
func (p *HTTPProvider) BreakerState() string {
	return p.breaker.State().String()
}
