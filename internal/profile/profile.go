// Chainwatch - Wormhole Chain Killmail Surveillance
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chainwatch

// Package profile holds watch profiles: user-authored filter definitions,
// their compiled trees, and the lifecycle state machine that decides which
// profiles the dispatcher evaluates.
package profile

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/chainwatch/internal/filter"
)

// Status is the profile lifecycle state.
//
// Draft → Compiled → Active → {Disabled, Deleted}. Disabled profiles are
// retained and re-activatable; Deleted is terminal. In-flight evaluations
// for a just-deleted profile complete and are discarded.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusCompiled Status = "compiled"
	StatusActive   Status = "active"
	StatusDisabled Status = "disabled"
	StatusDeleted  Status = "deleted"
)

// CanTransition reports whether the lifecycle permits moving from s to next.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusDraft:
		return next == StatusCompiled || next == StatusDeleted
	case StatusCompiled:
		return next == StatusActive || next == StatusDeleted
	case StatusActive:
		return next == StatusDisabled || next == StatusDeleted
	case StatusDisabled:
		return next == StatusActive || next == StatusDeleted
	default:
		return false
	}
}

// Scope controls profile visibility. The dispatch enabled-set is
// independent of viewer identity; scope only affects the CRUD surface.
type Scope string

const (
	ScopePrivate Scope = "private"
	ScopeShared  Scope = "shared"
)

// Profile is a persisted, user-authored watch rule.
type Profile struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
	Name    string `json:"name"`
	Scope   Scope  `json:"scope"`
	Status  Status `json:"status"`

	// Definition is the raw filter tree the owner authored. It is the
	// durable form; the compiled tree is derived and never persisted.
	Definition json.RawMessage `json:"definition"`

	// Version is bumped on every edit and keys compiled-tree caching.
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Enabled reports whether the profile belongs in the dispatch set.
func (p *Profile) Enabled() bool {
	return p.Status == StatusActive
}

// Compiled pairs a profile version with its validated filter tree. The
// dispatcher evaluates only Compiled values, so an uncompiled definition
// can never reach the engine.
type Compiled struct {
	ProfileID string
	OwnerID   string
	Version   int64
	Tree      *filter.Node
}
