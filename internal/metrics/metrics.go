// Chainwatch - Wormhole Chain Killmail Surveillance
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chainwatch

// Package metrics records per-profile and system-wide evaluation
// statistics. It is purely additive: nothing in here influences matching
// correctness. Prometheus metrics serve scraping; the Collector serves
// the queryable metrics API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Evaluation metrics
	EvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainwatch_evaluations_total",
			Help: "Total profile evaluations by outcome",
		},
		[]string{"outcome"},
	)

	EvaluationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chainwatch_evaluation_duration_seconds",
			Help:    "Duration of single profile evaluations in seconds",
			Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.2},
		},
	)

	// Dispatch metrics
	DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chainwatch_dispatch_duration_seconds",
			Help:    "End-to-end fan-out duration per killmail in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.2, 0.5, 1},
		},
	)

	DispatchEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chainwatch_dispatch_events_total",
			Help: "Total killmails dispatched for evaluation",
		},
	)

	DispatchDeadlineExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chainwatch_dispatch_deadline_exceeded_total",
			Help: "Total dispatches that hit the aggregate deadline",
		},
	)

	// Alert metrics
	AlertsEmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chainwatch_alerts_emitted_total",
			Help: "Total alerts emitted after deduplication",
		},
	)

	AlertsDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chainwatch_alerts_deduplicated_total",
			Help: "Total duplicate emissions dropped by the dedup key",
		},
	)

	AlertsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainwatch_alerts_suppressed_total",
			Help: "Total alerts suppressed by the per-profile rate limit",
		},
		[]string{"profile_id"},
	)

	EmitErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainwatch_emit_errors_total",
			Help: "Total alert persistence or publish failures",
		},
		[]string{"stage"},
	)

	// Topology metrics
	TopologySnapshotVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chainwatch_topology_snapshot_version",
			Help: "Version of the topology snapshot currently serving reads",
		},
	)

	TopologyDegraded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chainwatch_topology_degraded",
			Help: "1 while the topology snapshot is stale or missing",
		},
	)

	TopologyRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainwatch_topology_refreshes_total",
			Help: "Total topology refresh attempts by result",
		},
		[]string{"result"},
	)

	// HTTP API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainwatch_api_requests_total",
			Help: "Total API requests by method, path and status",
		},
		[]string{"method", "path", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chainwatch_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"method", "path"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chainwatch_api_active_requests",
			Help: "API requests currently in flight",
		},
	)

	// WebSocket metrics
	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chainwatch_websocket_clients",
			Help: "Currently connected alert stream clients",
		},
	)
)
