// Chainwatch - Wormhole Chain Killmail Surveillance
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chainwatch

package emitter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/chainwatch/internal/metrics"
	"github.com/tomtom215/chainwatch/internal/models"
)

// memoryAlertStore records appended alerts, optionally failing.
type memoryAlertStore struct {
	mu     sync.Mutex
	alerts []*models.Alert
	err    error
}

func (s *memoryAlertStore) Append(_ context.Context, a *models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.alerts = append(s.alerts, a)
	return nil
}

func (s *memoryAlertStore) List(_ context.Context, _ AlertFilter) ([]models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Alert, len(s.alerts))
	for i, a := range s.alerts {
		out[i] = *a
	}
	return out, nil
}

func (s *memoryAlertStore) Count(_ context.Context, _ AlertFilter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alerts), nil
}

func (s *memoryAlertStore) stored() []*models.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.Alert(nil), s.alerts...)
}

// capturingPublisher records published alerts, optionally failing the
// first n attempts.
type capturingPublisher struct {
	mu        sync.Mutex
	published []*models.Alert
	failFirst int
	attempts  int
}

func (p *capturingPublisher) PublishAlert(a *models.Alert) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts++
	if p.attempts <= p.failFirst {
		return errors.New("subscriber unavailable")
	}
	p.published = append(p.published, a)
	return nil
}

func (p *capturingPublisher) Name() string { return "capture" }

func (p *capturingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

func testKM(id int64) *models.Killmail {
	return &models.Killmail{ID: id, SolarSystemID: 31000002, AttackerCount: 1}
}

func newTestEmitter(cfg Config, store AlertStore, pubs ...Publisher) *Emitter {
	return New(cfg, store, NewMemoryDeduper(), metrics.NewCollector(), pubs...)
}

// Emitting the same (profile, killmail) twice yields exactly one alert.
func TestEmitIdempotent(t *testing.T) {
	store := &memoryAlertStore{}
	e := newTestEmitter(Config{}, store)

	ctx := context.Background()
	e.Emit(ctx, "p-1", testKM(100), []string{"in_chain"})
	e.Emit(ctx, "p-1", testKM(100), []string{"in_chain"})

	got := store.stored()
	if len(got) != 1 {
		t.Fatalf("stored alerts = %d, want 1", len(got))
	}
	if got[0].DedupKey != models.AlertDedupKey("p-1", 100) {
		t.Errorf("dedup key = %q", got[0].DedupKey)
	}
	if len(got[0].Trace) != 1 || got[0].Trace[0] != "in_chain" {
		t.Errorf("trace = %v", got[0].Trace)
	}
}

// Different profiles matching the same killmail each get an alert, as do
// different killmails for the same profile.
func TestEmitDedupScope(t *testing.T) {
	store := &memoryAlertStore{}
	e := newTestEmitter(Config{}, store)

	ctx := context.Background()
	e.Emit(ctx, "p-1", testKM(100), nil)
	e.Emit(ctx, "p-2", testKM(100), nil)
	e.Emit(ctx, "p-1", testKM(101), nil)

	if got := len(store.stored()); got != 3 {
		t.Errorf("stored alerts = %d, want 3", got)
	}
}

// Alerts beyond the per-profile window limit are suppressed; other
// profiles are unaffected.
func TestEmitRateLimit(t *testing.T) {
	store := &memoryAlertStore{}
	e := newTestEmitter(Config{RateLimitWindow: time.Minute, RateLimitMax: 5}, store)

	ctx := context.Background()
	for i := int64(0); i < 20; i++ {
		e.Emit(ctx, "p-noisy", testKM(i), nil)
	}
	e.Emit(ctx, "p-quiet", testKM(1000), nil)

	var noisy, quiet int
	for _, a := range store.stored() {
		switch a.ProfileID {
		case "p-noisy":
			noisy++
		case "p-quiet":
			quiet++
		}
	}
	if noisy != 5 {
		t.Errorf("noisy profile alerts = %d, want 5", noisy)
	}
	if quiet != 1 {
		t.Errorf("quiet profile alerts = %d, want 1", quiet)
	}
}

// A failing dedup store fails open: the alert is still emitted.
func TestEmitDedupFailureFailsOpen(t *testing.T) {
	store := &memoryAlertStore{}
	e := New(Config{}, store, &failingDeduper{}, metrics.NewCollector())

	e.Emit(context.Background(), "p-1", testKM(100), nil)
	if got := len(store.stored()); got != 1 {
		t.Errorf("stored alerts = %d, want 1", got)
	}
}

type failingDeduper struct{}

func (failingDeduper) CheckAndMark(string) (bool, error) {
	return false, errors.New("dedup store down")
}

// Serve delivers queued alerts to every publisher, retrying transient
// failures.
func TestServeDelivery(t *testing.T) {
	store := &memoryAlertStore{}
	flaky := &capturingPublisher{failFirst: 1}
	stable := &capturingPublisher{}
	e := newTestEmitter(Config{PublishRetries: 3}, store, flaky, stable)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Serve(ctx) }()

	e.Emit(ctx, "p-1", testKM(100), nil)
	e.Emit(ctx, "p-1", testKM(101), nil)

	deadline := time.After(2 * time.Second)
	for flaky.count() < 2 || stable.count() < 2 {
		select {
		case <-deadline:
			t.Fatalf("delivery incomplete: flaky=%d stable=%d", flaky.count(), stable.count())
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() = %v, want context.Canceled", err)
	}
}

// A history write failure must not block delivery.
func TestEmitStoreFailureStillPublishes(t *testing.T) {
	store := &memoryAlertStore{err: errors.New("disk full")}
	pub := &capturingPublisher{}
	e := newTestEmitter(Config{}, store, pub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = e.Serve(ctx) }()

	e.Emit(ctx, "p-1", testKM(100), nil)

	deadline := time.After(2 * time.Second)
	for pub.count() < 1 {
		select {
		case <-deadline:
			t.Fatal("alert never published after store failure")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
