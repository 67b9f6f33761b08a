// Chainwatch - Wormhole Chain Killmail Surveillance
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chainwatch

package emitter

import (
	"github.com/tomtom215/chainwatch/internal/models"
	"github.com/tomtom215/chainwatch/internal/websocket"
)

// HubPublisher broadcasts alerts over the websocket hub. The hub is
// internally non-blocking, so this publisher never fails.
type HubPublisher struct {
	hub *websocket.Hub
}

// NewHubPublisher wraps a hub as a Publisher.
func NewHubPublisher(hub *websocket.Hub) *HubPublisher {
	return &HubPublisher{hub: hub}
}

// PublishAlert implements Publisher.
func (p *HubPublisher) PublishAlert(alert *models.Alert) error {
	p.hub.BroadcastAlert(alert)
	return nil
}

// Name implements Publisher.
func (p *HubPublisher) Name() string { return "websocket" }
