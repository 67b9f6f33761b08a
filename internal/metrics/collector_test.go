// Chainwatch - Wormhole Chain Killmail Surveillance
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chainwatch

package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/tomtom215/chainwatch/internal/models"
)

func record(c *Collector, profileID string, outcome models.Outcome, d time.Duration) {
	c.Record(models.MatchResult{ProfileID: profileID, KillmailID: 1, Outcome: outcome, Duration: d})
}

func TestCollectorProfileMetrics(t *testing.T) {
	c := NewCollector()

	record(c, "p-1", models.OutcomeMatch, time.Millisecond)
	record(c, "p-1", models.OutcomeNoMatch, 2*time.Millisecond)
	record(c, "p-1", models.OutcomeTimeout, 200*time.Millisecond)
	record(c, "p-1", models.OutcomeError, time.Millisecond)
	record(c, "p-1", models.OutcomeIndeterminate, time.Millisecond)
	c.RecordSuppressed("p-1")

	stats, ok := c.ProfileMetrics("p-1")
	if !ok {
		t.Fatal("ProfileMetrics() reported unknown profile")
	}
	if stats.Evaluations != 5 {
		t.Errorf("Evaluations = %d, want 5", stats.Evaluations)
	}
	if stats.Matches != 1 || stats.Timeouts != 1 || stats.Errors != 1 || stats.Indeterminate != 1 {
		t.Errorf("unexpected counters: %+v", stats)
	}
	if stats.Suppressed != 1 {
		t.Errorf("Suppressed = %d, want 1", stats.Suppressed)
	}
	if stats.MatchRate != 0.2 {
		t.Errorf("MatchRate = %v, want 0.2", stats.MatchRate)
	}
	if stats.TimeoutRate != 0.2 {
		t.Errorf("TimeoutRate = %v, want 0.2", stats.TimeoutRate)
	}
}

func TestCollectorUnknownProfile(t *testing.T) {
	c := NewCollector()
	if _, ok := c.ProfileMetrics("nope"); ok {
		t.Error("ProfileMetrics() found a never-evaluated profile")
	}
}

func TestCollectorQuantiles(t *testing.T) {
	c := NewCollector()

	// 100 samples: 1ms..100ms.
	for i := 1; i <= 100; i++ {
		record(c, "p-1", models.OutcomeNoMatch, time.Duration(i)*time.Millisecond)
	}

	stats, ok := c.ProfileMetrics("p-1")
	if !ok {
		t.Fatal("profile missing")
	}
	// Index-based quantiles over 100 sorted samples.
	if stats.LatencyP50 < 45*time.Millisecond || stats.LatencyP50 > 55*time.Millisecond {
		t.Errorf("p50 = %v", stats.LatencyP50)
	}
	if stats.LatencyP95 < 90*time.Millisecond || stats.LatencyP95 > 97*time.Millisecond {
		t.Errorf("p95 = %v", stats.LatencyP95)
	}
	if stats.LatencyP99 < 95*time.Millisecond || stats.LatencyP99 > 100*time.Millisecond {
		t.Errorf("p99 = %v", stats.LatencyP99)
	}
	if stats.LatencyP50 > stats.LatencyP95 || stats.LatencyP95 > stats.LatencyP99 {
		t.Error("quantiles not monotonic")
	}
}

// The sample ring keeps only the most recent window.
func TestCollectorSampleWindow(t *testing.T) {
	c := NewCollector()

	// Overfill the ring with slow samples, then flood with fast ones.
	for i := 0; i < sampleWindow; i++ {
		record(c, "p-1", models.OutcomeNoMatch, time.Second)
	}
	for i := 0; i < sampleWindow; i++ {
		record(c, "p-1", models.OutcomeNoMatch, time.Millisecond)
	}

	stats, _ := c.ProfileMetrics("p-1")
	if stats.LatencyP99 != time.Millisecond {
		t.Errorf("p99 = %v, want 1ms after window rollover", stats.LatencyP99)
	}
	if stats.Evaluations != 2*sampleWindow {
		t.Errorf("Evaluations = %d, counters must not be windowed", stats.Evaluations)
	}
}

func TestCollectorSystemMetrics(t *testing.T) {
	c := NewCollector()

	c.RecordEvent()
	c.RecordEvent()
	for i := 0; i < 4; i++ {
		record(c, fmt.Sprintf("p-%d", i), models.OutcomeMatch, time.Millisecond)
	}
	record(c, "p-0", models.OutcomeTimeout, 200*time.Millisecond)

	stats := c.SystemMetrics()
	if stats.Events != 2 {
		t.Errorf("Events = %d, want 2", stats.Events)
	}
	if stats.Evaluations != 5 || stats.Matches != 4 || stats.Timeouts != 1 {
		t.Errorf("unexpected system stats: %+v", stats)
	}
	if stats.ProfileCount != 4 {
		t.Errorf("ProfileCount = %d, want 4", stats.ProfileCount)
	}
	if stats.MatchRate != 0.8 {
		t.Errorf("MatchRate = %v, want 0.8", stats.MatchRate)
	}
}

func TestCollectorConcurrentRecord(t *testing.T) {
	c := NewCollector()
	done := make(chan struct{})
	for g := 0; g < 8; g++ {
		go func(id int) {
			for i := 0; i < 200; i++ {
				record(c, fmt.Sprintf("p-%d", id%2), models.OutcomeMatch, time.Millisecond)
			}
			done <- struct{}{}
		}(g)
	}
	for g := 0; g < 8; g++ {
		<-done
	}
	stats := c.SystemMetrics()
	if stats.Evaluations != 1600 {
		t.Errorf("Evaluations = %d, want 1600", stats.Evaluations)
	}
}
