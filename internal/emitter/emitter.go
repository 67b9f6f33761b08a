// Chainwatch - Wormhole Chain Killmail Surveillance
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chainwatch

// Package emitter converts match results into durable, deduplicated
// alerts. Emission is idempotent on (profile id, killmail id), noisy
// profiles are suppressed by a per-profile rolling-window rate limit with
// suppressed counts still metered, and delivery to subscribers is
// fire-and-forget so a missing or slow subscriber never affects
// throughput. Alert history is append-only.
package emitter

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/tomtom215/chainwatch/internal/cache"
	"github.com/tomtom215/chainwatch/internal/logging"
	"github.com/tomtom215/chainwatch/internal/metrics"
	"github.com/tomtom215/chainwatch/internal/models"
)

// Publisher delivers alerts to one subscriber channel (websocket hub,
// NATS subject, webhook). Publish failures are retried best-effort and
// never reach the caller of Emit.
type Publisher interface {
	PublishAlert(alert *models.Alert) error
	Name() string
}

// Config configures the emitter.
type Config struct {
	// RateLimitWindow and RateLimitMax bound alerts per profile: at most
	// RateLimitMax alerts per rolling window. Defaults: 60s, 30.
	RateLimitWindow time.Duration
	RateLimitMax    int64

	// PublishPerSecond smooths delivery during alert storms. Default: 100.
	PublishPerSecond float64

	// QueueSize bounds the publish queue. Default: 1024.
	QueueSize int

	// PublishRetries is the best-effort retry count per publisher. Default: 3.
	PublishRetries int
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		RateLimitWindow:  time.Minute,
		RateLimitMax:     30,
		PublishPerSecond: 100,
		QueueSize:        1024,
		PublishRetries:   3,
	}
}

// Emitter turns matches into alerts. Emit never blocks on delivery; the
// Serve loop drains the publish queue in the background.
type Emitter struct {
	cfg        Config
	store      AlertStore
	dedup      Deduper
	collector  *metrics.Collector
	publishers []Publisher
	limiter    *rate.Limiter

	mu      sync.Mutex
	windows map[string]*cache.SlidingWindowCounter

	queue chan *models.Alert
}

// New creates an emitter.
func New(cfg Config, store AlertStore, dedup Deduper, collector *metrics.Collector, publishers ...Publisher) *Emitter {
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = time.Minute
	}
	if cfg.RateLimitMax <= 0 {
		cfg.RateLimitMax = 30
	}
	if cfg.PublishPerSecond <= 0 {
		cfg.PublishPerSecond = 100
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.PublishRetries <= 0 {
		cfg.PublishRetries = 3
	}
	return &Emitter{
		cfg:        cfg,
		store:      store,
		dedup:      dedup,
		collector:  collector,
		publishers: publishers,
		limiter:    rate.NewLimiter(rate.Limit(cfg.PublishPerSecond), int(cfg.PublishPerSecond)),
		windows:    make(map[string]*cache.SlidingWindowCounter),
		queue:      make(chan *models.Alert, cfg.QueueSize),
	}
}

// Emit converts one true match into an alert. Idempotent on
// (profile id, killmail id): repeated delivery of the same killmail never
// creates a duplicate alert. Implements the dispatcher's AlertSink.
func (e *Emitter) Emit(ctx context.Context, profileID string, km *models.Killmail, trace []string) {
	dedupKey := models.AlertDedupKey(profileID, km.ID)

	first, err := e.dedup.CheckAndMark(dedupKey)
	if err != nil {
		// Fail open: a broken dedup store must not drop alerts. The
		// history unique index still prevents duplicate rows.
		logging.Error().Err(err).Str("dedup_key", dedupKey).Msg("dedup check failed")
		first = true
	}
	if !first {
		metrics.AlertsDeduplicated.Inc()
		return
	}

	if !e.allow(profileID) {
		e.collector.RecordSuppressed(profileID)
		logging.Debug().Str("profile_id", profileID).Msg("alert suppressed by rate limit")
		return
	}

	alert := &models.Alert{
		ID:         uuid.NewString(),
		ProfileID:  profileID,
		KillmailID: km.ID,
		Trace:      trace,
		EmittedAt:  time.Now(),
		DedupKey:   dedupKey,
	}

	if err := e.store.Append(ctx, alert); err != nil {
		// History write failure is logged and metered; delivery proceeds
		// independently.
		metrics.EmitErrors.WithLabelValues("persist").Inc()
		logging.Error().Err(err).Str("alert_id", alert.ID).Msg("alert history write failed")
	}

	metrics.AlertsEmitted.Inc()

	select {
	case e.queue <- alert:
	default:
		metrics.EmitErrors.WithLabelValues("queue_full").Inc()
		logging.Warn().Str("alert_id", alert.ID).Msg("publish queue full, alert delivered to history only")
	}
}

// allow applies the per-profile rolling-window rate limit.
func (e *Emitter) allow(profileID string) bool {
	e.mu.Lock()
	window, ok := e.windows[profileID]
	if !ok {
		window = cache.NewSlidingWindowCounter(e.cfg.RateLimitWindow, 10)
		e.windows[profileID] = window
	}
	e.mu.Unlock()

	if window.Count() >= e.cfg.RateLimitMax {
		return false
	}
	window.IncrementOne()
	return true
}

// Serve drains the publish queue until the context is canceled. It
// implements suture.Service.
func (e *Emitter) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case alert := <-e.queue:
			if err := e.limiter.Wait(ctx); err != nil {
				return err
			}
			e.publish(alert)
		}
	}
}

// publish fans one alert out to every subscriber channel with best-effort
// retries. Failures are metered, never propagated.
func (e *Emitter) publish(alert *models.Alert) {
	for _, pub := range e.publishers {
		policy := backoff.NewExponentialBackOff()
		policy.InitialInterval = 50 * time.Millisecond
		policy.MaxInterval = time.Second

		err := backoff.Retry(func() error {
			return pub.PublishAlert(alert)
		}, backoff.WithMaxRetries(policy, uint64(e.cfg.PublishRetries)))
		if err != nil {
			metrics.EmitErrors.WithLabelValues("publish").Inc()
			logging.Error().
				Err(err).
				Str("publisher", pub.Name()).
				Str("alert_id", alert.ID).
				Msg("alert publish failed after retries")
		}
	}
}
