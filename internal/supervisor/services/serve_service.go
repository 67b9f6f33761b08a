// Chainwatch - Wormhole Chain Killmail Surveillance
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chainwatch

package services

import (
	"context"
)

// Server is any component exposing a blocking, context-aware Serve.
// The topology cache, the WebSocket hub, the alert emitter, and the
// NATS consumer all satisfy it.
type Server interface {
	Serve(ctx context.Context) error
}

// NamedService wraps a Server with a stable name so suture's event hook
// logs identify which component restarted.
type NamedService struct {
	inner Server
	name  string
}

// Named wraps srv under the given supervision name.
func Named(name string, srv Server) *NamedService {
	return &NamedService{inner: srv, name: name}
}

// Serve implements suture.Service.
func (s *NamedService) Serve(ctx context.Context) error {
	return s.inner.Serve(ctx)
}

// String implements fmt.Stringer for supervision logs.
func (s *NamedService) String() string {
	return s.name
}
