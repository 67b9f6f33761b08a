// Chainwatch - Wormhole Chain Killmail Surveillance
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chainwatch

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/chainwatch/internal/emitter"
	"github.com/tomtom215/chainwatch/internal/logging"
	"github.com/tomtom215/chainwatch/internal/topology"
)

// AlertHandlers provides HTTP handlers for the alert history and
// system status endpoints.
type AlertHandlers struct {
	store emitter.AlertStore
	cache *topology.Cache

	staleness time.Duration
	pageSize  int
	maxPage   int
}

// NewAlertHandlers creates new alert handlers. staleness is the topology
// staleness threshold surfaced by the status endpoint.
func NewAlertHandlers(store emitter.AlertStore, cache *topology.Cache, staleness time.Duration, pageSize, maxPage int) *AlertHandlers {
	if pageSize <= 0 {
		pageSize = 20
	}
	if maxPage <= 0 {
		maxPage = 100
	}
	return &AlertHandlers{
		store:     store,
		cache:     cache,
		staleness: staleness,
		pageSize:  pageSize,
		maxPage:   maxPage,
	}
}

// List handles GET /api/v1/alerts
func (h *AlertHandlers) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter := emitter.AlertFilter{
		ProfileID: r.URL.Query().Get("profile_id"),
		Limit:     getIntParam(r, "limit", h.pageSize),
	}
	if filter.Limit > h.maxPage {
		filter.Limit = h.maxPage
	}

	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "since must be RFC3339", err)
			return
		}
		filter.Since = t
	}

	alerts, err := h.store.List(ctx, filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "ALERT_ERROR", "Failed to fetch alerts", err)
		return
	}

	// Total count is best effort; the page still renders without it.
	count, err := h.store.Count(ctx, filter)
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to get alert count")
		count = len(alerts)
	}

	respondData(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"total":  count,
		"limit":  filter.Limit,
	})
}

// Status handles GET /api/v1/status. It surfaces the topology snapshot
// freshness so operators can tell degraded evaluation apart from a quiet
// killmail feed.
func (h *AlertHandlers) Status(w http.ResponseWriter, r *http.Request) {
	view := h.cache.View()

	status := map[string]interface{}{
		"topology": map[string]interface{}{
			"version":             h.cache.Version(),
			"degraded":            view.Degraded(),
			"staleness_threshold": h.staleness.String(),
		},
	}

	if snap := view.Snapshot(); snap != nil {
		topo := status["topology"].(map[string]interface{})
		topo["map_id"] = snap.MapID
		topo["fetched_at"] = snap.FetchedAt
		topo["age"] = snap.Age(time.Now()).String()
		topo["system_count"] = len(snap.Systems)
	}

	respondData(w, http.StatusOK, status)
}
