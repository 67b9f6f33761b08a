// Chainwatch - Wormhole Chain Killmail Surveillance
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chainwatch

package topology

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/tomtom215/chainwatch/internal/logging"
	"github.com/tomtom215/chainwatch/internal/metrics"
)

// CacheConfig configures the topology cache.
type CacheConfig struct {
	// MapID identifies the chain map to poll.
	MapID string

	// RefreshInterval is the polling period. Default: 30s.
	RefreshInterval time.Duration

	// StalenessThreshold is the snapshot age past which views are marked
	// degraded. Default: 5m.
	StalenessThreshold time.Duration
}

// DefaultCacheConfig returns production defaults.
func DefaultCacheConfig(mapID string) CacheConfig {
	return CacheConfig{
		MapID:              mapID,
		RefreshInterval:    30 * time.Second,
		StalenessThreshold: 5 * time.Minute,
	}
}

// Cache holds the current topology snapshot and refreshes it in the
// background. Reads never block on the network: View returns the last
// good snapshot immediately, with the degraded flag computed from its
// age. The snapshot pointer is replaced atomically so readers never see
// a torn update.
type Cache struct {
	provider Provider
	cfg      CacheConfig

	snap    atomic.Pointer[Snapshot]
	version atomic.Int64

	refreshCh chan struct{}
}

// NewCache creates a topology cache. Call Serve (typically under the
// supervisor tree) to start background refresh.
func NewCache(provider Provider, cfg CacheConfig) *Cache {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 30 * time.Second
	}
	if cfg.StalenessThreshold <= 0 {
		cfg.StalenessThreshold = 5 * time.Minute
	}
	return &Cache{
		provider:  provider,
		cfg:       cfg,
		refreshCh: make(chan struct{}, 1),
	}
}

// View returns the current chain view. Never blocks; before the first
// successful refresh the view has no snapshot and reports degraded.
func (c *Cache) View() *View {
	snap := c.snap.Load()
	if snap == nil {
		return &View{snap: nil, degraded: true}
	}
	return &View{
		snap:     snap,
		degraded: snap.Age(time.Now()) > c.cfg.StalenessThreshold,
	}
}

// Version returns the version of the current snapshot, 0 before the
// first refresh.
func (c *Cache) Version() int64 {
	if snap := c.snap.Load(); snap != nil {
		return snap.Version
	}
	return 0
}

// Refresh fetches a fresh snapshot immediately. On failure the previous
// snapshot keeps serving and the error is returned for logging.
func (c *Cache) Refresh(ctx context.Context) error {
	snap, err := c.provider.FetchTopology(ctx, c.cfg.MapID)
	if err != nil {
		metrics.TopologyRefreshes.WithLabelValues("failure").Inc()
		return err
	}
	snap.Version = c.version.Add(1)
	c.snap.Store(snap)
	metrics.TopologyRefreshes.WithLabelValues("success").Inc()
	metrics.TopologySnapshotVersion.Set(float64(snap.Version))
	metrics.TopologyDegraded.Set(0)
	return nil
}

// RequestRefresh schedules an out-of-band refresh on the serve loop.
// Non-blocking; a pending request coalesces with this one.
func (c *Cache) RequestRefresh() {
	select {
	case c.refreshCh <- struct{}{}:
	default:
	}
}

// Delta is an incremental topology update pushed by the mapping provider
// between full refreshes.
type Delta struct {
	AddedSystems     []System          `json:"added_systems,omitempty"`
	RemovedSystemIDs []int64           `json:"removed_system_ids,omitempty"`
	Inhabitants      map[int64][]int64 `json:"inhabitants,omitempty"`
}

// ApplyDelta folds a pushed delta into a new snapshot copy-on-write.
// A delta before the first full refresh is dropped; there is no base
// state to fold it into. Publication is a compare-and-swap so a full
// refresh landing concurrently is never overwritten with stale systems;
// on conflict the delta is refolded onto the fresh base.
func (c *Cache) ApplyDelta(delta Delta) {
	for {
		base := c.snap.Load()
		if base == nil {
			logging.Warn().Str("map_id", c.cfg.MapID).Msg("topology delta before first snapshot, dropped")
			return
		}

		systems := make(map[int64]System, len(base.Systems)+len(delta.AddedSystems))
		for id, sys := range base.Systems {
			systems[id] = sys
		}
		for _, sys := range delta.AddedSystems {
			systems[sys.SolarSystemID] = sys
		}
		for _, id := range delta.RemovedSystemIDs {
			delete(systems, id)
		}
		for id, inhabitants := range delta.Inhabitants {
			if sys, ok := systems[id]; ok {
				sys.Inhabitants = inhabitants
				sys.UpdatedAt = time.Now()
				systems[id] = sys
			}
		}

		next := &Snapshot{
			MapID:     base.MapID,
			Version:   c.version.Add(1),
			FetchedAt: time.Now(),
			Systems:   systems,
		}
		if c.snap.CompareAndSwap(base, next) {
			return
		}
	}
}

// Serve runs the refresh loop until the context is canceled. It
// implements suture.Service. Failures retry with exponential backoff
// while the previous snapshot keeps serving reads.
func (c *Cache) Serve(ctx context.Context) error {
	// First fetch happens immediately so evaluation leaves degraded mode
	// as soon as the provider responds.
	c.refreshWithRetry(ctx)

	ticker := time.NewTicker(c.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.refreshWithRetry(ctx)
		case <-c.refreshCh:
			c.refreshWithRetry(ctx)
		}
	}
}

// refreshWithRetry attempts a refresh with exponential backoff, giving up
// once the next scheduled tick is due. Persistent failure leaves the old
// snapshot in place; views turn degraded via the staleness threshold.
func (c *Cache) refreshWithRetry(ctx context.Context) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	policy.MaxInterval = c.cfg.RefreshInterval
	policy.MaxElapsedTime = c.cfg.RefreshInterval

	err := backoff.Retry(func() error {
		if err := c.Refresh(ctx); err != nil {
			logging.Warn().Err(err).Str("map_id", c.cfg.MapID).Msg("topology refresh failed, retrying")
			return err
		}
		return nil
	}, backoff.WithContext(policy, ctx))

	if err != nil {
		view := c.View()
		if view.Degraded() {
			metrics.TopologyDegraded.Set(1)
		}
		logging.Error().
			Err(err).
			Str("map_id", c.cfg.MapID).
			Bool("degraded", view.Degraded()).
			Int64("serving_version", c.Version()).
			Msg("topology refresh exhausted retries")
		return
	}

	logging.Debug().
		Str("map_id", c.cfg.MapID).
		Int64("version", c.Version()).
		Msg("topology snapshot refreshed")
}
