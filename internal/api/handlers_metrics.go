// Chainwatch - Wormhole Chain Killmail Surveillance
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chainwatch

package api

import (
	"net/http"

	"github.com/tomtom215/chainwatch/internal/metrics"
)

// MetricsHandlers exposes the in-process evaluation statistics: match
// counts, timeout rates, and latency quantiles per profile and
// system-wide. Prometheus scraping is served separately on /metrics.
type MetricsHandlers struct {
	collector *metrics.Collector
}

// NewMetricsHandlers creates new metrics handlers.
func NewMetricsHandlers(collector *metrics.Collector) *MetricsHandlers {
	return &MetricsHandlers{collector: collector}
}

// System handles GET /api/v1/metrics/system
func (h *MetricsHandlers) System(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, h.collector.SystemMetrics())
}

// Profile handles GET /api/v1/metrics/profiles/{id}
func (h *MetricsHandlers) Profile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	stats, ok := h.collector.ProfileMetrics(id)
	if !ok {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "No metrics recorded for profile", nil)
		return
	}

	respondData(w, http.StatusOK, stats)
}
