// Chainwatch - Wormhole Chain Killmail Surveillance
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chainwatch

package api

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/chainwatch/internal/dispatch"
	"github.com/tomtom215/chainwatch/internal/models"
)

// maxKillmailBody bounds the HTTP ingest payload. Real killmails are a
// few KB; anything near this limit is garbage or abuse.
const maxKillmailBody = 1 << 20

// maxKillmailBatch bounds the number of killmails per batch request.
const maxKillmailBatch = 500

// KillmailDispatcher is the orchestrator surface the ingest handlers need.
type KillmailDispatcher interface {
	HandleEvent(ctx context.Context, km *models.Killmail) dispatch.Summary
	HandleBatch(ctx context.Context, kms []*models.Killmail) []dispatch.Summary
}

// KillmailHandlers provides the HTTP ingest path. The NATS consumer is
// the primary feed; this endpoint exists for backfill and integration
// tests against a running instance.
type KillmailHandlers struct {
	dispatcher KillmailDispatcher
}

// NewKillmailHandlers creates new killmail ingest handlers.
func NewKillmailHandlers(dispatcher KillmailDispatcher) *KillmailHandlers {
	return &KillmailHandlers{dispatcher: dispatcher}
}

// Ingest handles POST /api/v1/killmails
func (h *KillmailHandlers) Ingest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxKillmailBody+1))
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to read request body", err)
		return
	}
	if len(body) > maxKillmailBody {
		respondError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Killmail payload exceeds 1MB", nil)
		return
	}

	km, err := models.ParseKillmail(body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_KILLMAIL", "Malformed killmail payload", err)
		return
	}

	summary := h.dispatcher.HandleEvent(r.Context(), km)

	respondData(w, http.StatusAccepted, summaryPayload(summary))
}

// IngestBatch handles POST /api/v1/killmails/batch. The body is a JSON
// array of killmails; they are dispatched in array order, each under its
// own deadline.
func (h *KillmailHandlers) IngestBatch(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxKillmailBody*8+1))
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to read request body", err)
		return
	}
	if len(body) > maxKillmailBody*8 {
		respondError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Batch payload exceeds 8MB", nil)
		return
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(body, &raws); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Body must be a JSON array of killmails", err)
		return
	}
	if len(raws) > maxKillmailBatch {
		respondError(w, http.StatusRequestEntityTooLarge, "BATCH_TOO_LARGE",
			fmt.Sprintf("Batch exceeds %d killmails", maxKillmailBatch), nil)
		return
	}

	kms := make([]*models.Killmail, 0, len(raws))
	for i, raw := range raws {
		km, err := models.ParseKillmail(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_KILLMAIL",
				fmt.Sprintf("Malformed killmail at index %d", i), err)
			return
		}
		kms = append(kms, km)
	}

	summaries := h.dispatcher.HandleBatch(r.Context(), kms)
	results := make([]map[string]interface{}, len(summaries))
	for i, s := range summaries {
		results[i] = summaryPayload(s)
	}

	respondData(w, http.StatusAccepted, map[string]interface{}{
		"killmails": len(kms),
		"results":   results,
	})
}

func summaryPayload(s dispatch.Summary) map[string]interface{} {
	return map[string]interface{}{
		"killmail_id": s.KillmailID,
		"profiles":    s.Profiles,
		"matches":     s.Matches,
		"timeouts":    s.Timeouts,
		"errors":      s.Errors,
		"elapsed_ms":  s.Elapsed.Milliseconds(),
	}
}
