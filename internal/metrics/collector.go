// Chainwatch - Wormhole Chain Killmail Surveillance
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chainwatch

package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/chainwatch/internal/models"
)

// sampleWindow caps per-profile latency samples. Quantiles are computed
// over the most recent window, which is enough resolution for the
// operational questions the API answers.
const sampleWindow = 1024

// ProfileStats are the queryable statistics for one profile.
type ProfileStats struct {
	ProfileID     string        `json:"profile_id"`
	Evaluations   int64         `json:"evaluations"`
	Matches       int64         `json:"matches"`
	Timeouts      int64         `json:"timeouts"`
	Errors        int64         `json:"errors"`
	Indeterminate int64         `json:"indeterminate"`
	Suppressed    int64         `json:"suppressed"`
	MatchRate     float64       `json:"match_rate"`
	TimeoutRate   float64       `json:"timeout_rate"`
	LatencyP50    time.Duration `json:"latency_p50_ns"`
	LatencyP95    time.Duration `json:"latency_p95_ns"`
	LatencyP99    time.Duration `json:"latency_p99_ns"`
}

// SystemStats aggregate across all profiles.
type SystemStats struct {
	Events       int64         `json:"events"`
	Evaluations  int64         `json:"evaluations"`
	Matches      int64         `json:"matches"`
	Timeouts     int64         `json:"timeouts"`
	Errors       int64         `json:"errors"`
	MatchRate    float64       `json:"match_rate"`
	TimeoutRate  float64       `json:"timeout_rate"`
	LatencyP50   time.Duration `json:"latency_p50_ns"`
	LatencyP95   time.Duration `json:"latency_p95_ns"`
	LatencyP99   time.Duration `json:"latency_p99_ns"`
	ProfileCount int           `json:"profile_count"`
}

// profileSeries accumulates one profile's counters and a ring of recent
// latency samples.
type profileSeries struct {
	evaluations   int64
	matches       int64
	timeouts      int64
	errors        int64
	indeterminate int64
	suppressed    int64

	samples []time.Duration
	next    int
	full    bool
}

func (s *profileSeries) record(d time.Duration) {
	if len(s.samples) < sampleWindow {
		s.samples = append(s.samples, d)
		return
	}
	s.samples[s.next] = d
	s.next = (s.next + 1) % sampleWindow
	s.full = true
}

// Collector aggregates match results. Safe for concurrent use; recording
// is a short critical section per result so it never backpressures the
// dispatch hot path meaningfully.
type Collector struct {
	mu       sync.RWMutex
	profiles map[string]*profileSeries
	system   profileSeries
	events   int64
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{profiles: make(map[string]*profileSeries)}
}

// RecordEvent counts one dispatched killmail.
func (c *Collector) RecordEvent() {
	c.mu.Lock()
	c.events++
	c.mu.Unlock()
	DispatchEventsTotal.Inc()
}

// Record folds one match result into both the queryable series and the
// Prometheus metrics.
func (c *Collector) Record(res models.MatchResult) {
	EvaluationsTotal.WithLabelValues(string(res.Outcome)).Inc()
	EvaluationDuration.Observe(res.Duration.Seconds())

	c.mu.Lock()
	defer c.mu.Unlock()

	series, ok := c.profiles[res.ProfileID]
	if !ok {
		series = &profileSeries{}
		c.profiles[res.ProfileID] = series
	}
	for _, s := range []*profileSeries{series, &c.system} {
		s.evaluations++
		switch res.Outcome {
		case models.OutcomeMatch:
			s.matches++
		case models.OutcomeTimeout:
			s.timeouts++
		case models.OutcomeError:
			s.errors++
		case models.OutcomeIndeterminate:
			s.indeterminate++
		}
		s.record(res.Duration)
	}
}

// RecordSuppressed counts an alert suppressed by the rate limiter.
func (c *Collector) RecordSuppressed(profileID string) {
	AlertsSuppressed.WithLabelValues(profileID).Inc()

	c.mu.Lock()
	defer c.mu.Unlock()
	series, ok := c.profiles[profileID]
	if !ok {
		series = &profileSeries{}
		c.profiles[profileID] = series
	}
	series.suppressed++
	c.system.suppressed++
}

// ProfileMetrics returns the stats for one profile, false if the profile
// has never been evaluated.
func (c *Collector) ProfileMetrics(profileID string) (ProfileStats, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	series, ok := c.profiles[profileID]
	if !ok {
		return ProfileStats{}, false
	}
	p50, p95, p99 := quantiles(series.samples)
	stats := ProfileStats{
		ProfileID:     profileID,
		Evaluations:   series.evaluations,
		Matches:       series.matches,
		Timeouts:      series.timeouts,
		Errors:        series.errors,
		Indeterminate: series.indeterminate,
		Suppressed:    series.suppressed,
		LatencyP50:    p50,
		LatencyP95:    p95,
		LatencyP99:    p99,
	}
	if series.evaluations > 0 {
		stats.MatchRate = float64(series.matches) / float64(series.evaluations)
		stats.TimeoutRate = float64(series.timeouts) / float64(series.evaluations)
	}
	return stats, true
}

// SystemMetrics returns the aggregate stats.
func (c *Collector) SystemMetrics() SystemStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p50, p95, p99 := quantiles(c.system.samples)
	stats := SystemStats{
		Events:       c.events,
		Evaluations:  c.system.evaluations,
		Matches:      c.system.matches,
		Timeouts:     c.system.timeouts,
		Errors:       c.system.errors,
		LatencyP50:   p50,
		LatencyP95:   p95,
		LatencyP99:   p99,
		ProfileCount: len(c.profiles),
	}
	if c.system.evaluations > 0 {
		stats.MatchRate = float64(c.system.matches) / float64(c.system.evaluations)
		stats.TimeoutRate = float64(c.system.timeouts) / float64(c.system.evaluations)
	}
	return stats
}

// quantiles computes p50/p95/p99 over a copy of the samples.
func quantiles(samples []time.Duration) (p50, p95, p99 time.Duration) {
	if len(samples) == 0 {
		return 0, 0, 0
	}
	sorted := make([]time.Duration, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	pick := func(q float64) time.Duration {
		idx := int(q * float64(len(sorted)-1))
		return sorted[idx]
	}
	return pick(0.50), pick(0.95), pick(0.99)
}
