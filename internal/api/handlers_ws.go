// Chainwatch - Wormhole Chain Killmail Surveillance
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chainwatch

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/chainwatch/internal/logging"
	ws "github.com/tomtom215/chainwatch/internal/websocket"
)

// WSHandlers upgrades HTTP connections and hands them to the alert hub.
type WSHandlers struct {
	hub            *ws.Hub
	allowedOrigins []string
}

// NewWSHandlers creates the websocket upgrade handler.
func NewWSHandlers(hub *ws.Hub, allowedOrigins []string) *WSHandlers {
	return &WSHandlers{hub: hub, allowedOrigins: allowedOrigins}
}

func (h *WSHandlers) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkOrigin validates connection origins. Browser WebSockets always
// send Origin; a missing header means a non-browser client trying to
// sidestep CORS, so it is rejected.
func (h *WSHandlers) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}

	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// Connect handles GET /ws
func (h *WSHandlers) Connect(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		logging.Warn().Msg("WebSocket connection rejected: hub not initialized")
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "WebSocket service unavailable", nil)
		return
	}

	upgrader := h.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("WebSocket upgrade error")
		return
	}

	client := ws.NewClient(h.hub, conn)
	h.hub.Register <- client
	client.Start()
}
