// Chainwatch - Wormhole Chain Killmail Surveillance
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chainwatch

// Package api provides HTTP handlers and routing for the Chainwatch API.
//
// requests.go - Request structs with go-playground/validator v10 tags.
package api

import (
	"github.com/goccy/go-json"
)

// ProfileUpsertRequest is the body for POST/PUT profile endpoints. The
// definition is the raw filter tree; compilation happens server-side and
// structural errors come back as VALIDATION_ERROR details.
type ProfileUpsertRequest struct {
	Name       string          `json:"name" validate:"required,min=1,max=128"`
	OwnerID    string          `json:"owner_id" validate:"required,min=1,max=64"`
	Scope      string          `json:"scope" validate:"omitempty,oneof=private shared"`
	Definition json.RawMessage `json:"definition" validate:"required"`
}

// ProfileDraftRequest is the body for saving a draft without compiling.
type ProfileDraftRequest struct {
	Name       string          `json:"name" validate:"required,min=1,max=128"`
	OwnerID    string          `json:"owner_id" validate:"required,min=1,max=64"`
	Scope      string          `json:"scope" validate:"omitempty,oneof=private shared"`
	Definition json.RawMessage `json:"definition"`
}

// AlertListRequest captures query parameters for GET /api/v1/alerts.
type AlertListRequest struct {
	ProfileID string `validate:"omitempty,max=64"`
	Limit     int    `validate:"min=1,max=1000"`
}

// KillmailIngestRequest bounds the HTTP ingest payload. The body itself
// is the killmail JSON; this struct only validates the envelope size
// constraints applied before parsing.
type KillmailIngestRequest struct {
	Body []byte `validate:"required,max=1048576"`
}
