// Chainwatch - Wormhole Chain Killmail Surveillance
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chainwatch

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/chainwatch/internal/filter"
	"github.com/tomtom215/chainwatch/internal/profile"
)

// ProfileHandlers provides HTTP handlers for surveillance profile CRUD
// and lifecycle transitions.
type ProfileHandlers struct {
	repo *profile.Repository
}

// NewProfileHandlers creates new profile handlers.
func NewProfileHandlers(repo *profile.Repository) *ProfileHandlers {
	return &ProfileHandlers{repo: repo}
}

// List handles GET /api/v1/profiles
func (h *ProfileHandlers) List(w http.ResponseWriter, r *http.Request) {
	profiles := h.repo.List()

	// Optional owner filter
	if owner := r.URL.Query().Get("owner_id"); owner != "" {
		filtered := profiles[:0]
		for _, p := range profiles {
			if p.OwnerID == owner {
				filtered = append(filtered, p)
			}
		}
		profiles = filtered
	}

	respondData(w, http.StatusOK, map[string]interface{}{
		"profiles": profiles,
		"total":    len(profiles),
	})
}

// Get handles GET /api/v1/profiles/{id}
func (h *ProfileHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	p, err := h.repo.Get(id)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Profile not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "PROFILE_ERROR", "Failed to fetch profile", err)
		return
	}

	respondData(w, http.StatusOK, p)
}

// Create handles POST /api/v1/profiles
func (h *ProfileHandlers) Create(w http.ResponseWriter, r *http.Request) {
	h.upsert(w, r, "")
}

// Update handles PUT /api/v1/profiles/{id}
func (h *ProfileHandlers) Update(w http.ResponseWriter, r *http.Request) {
	h.upsert(w, r, r.PathValue("id"))
}

// upsert compiles the submitted definition and stores the profile. A
// failed compile returns the structured node path so the author can fix
// the exact clause.
func (h *ProfileHandlers) upsert(w http.ResponseWriter, r *http.Request, id string) {
	var req ProfileUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body", err)
		return
	}

	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	scope := profile.ScopePrivate
	if req.Scope != "" {
		scope = profile.Scope(req.Scope)
	}

	p, err := h.repo.Upsert(r.Context(), &profile.Profile{
		ID:         id,
		OwnerID:    req.OwnerID,
		Name:       req.Name,
		Scope:      scope,
		Definition: req.Definition,
	})
	if err != nil {
		var compileErr *filter.CompileError
		if errors.As(err, &compileErr) {
			respondError(w, http.StatusUnprocessableEntity, "COMPILE_ERROR", compileErr.Error(), nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "PROFILE_ERROR", "Failed to save profile", err)
		return
	}

	status := http.StatusOK
	if id == "" {
		status = http.StatusCreated
	}
	respondData(w, status, p)
}

// CreateDraft handles POST /api/v1/profiles/draft
func (h *ProfileHandlers) CreateDraft(w http.ResponseWriter, r *http.Request) {
	var req ProfileDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body", err)
		return
	}

	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	scope := profile.ScopePrivate
	if req.Scope != "" {
		scope = profile.Scope(req.Scope)
	}

	p, err := h.repo.SaveDraft(r.Context(), &profile.Profile{
		OwnerID:    req.OwnerID,
		Name:       req.Name,
		Scope:      scope,
		Definition: req.Definition,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "PROFILE_ERROR", "Failed to save draft", err)
		return
	}

	respondData(w, http.StatusCreated, p)
}

// Enable handles POST /api/v1/profiles/{id}/enable
func (h *ProfileHandlers) Enable(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.repo.Enable)
}

// Disable handles POST /api/v1/profiles/{id}/disable
func (h *ProfileHandlers) Disable(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.repo.Disable)
}

// lifecycle applies a status transition and maps the repository errors
// onto API responses. Illegal transitions are a client error, not a
// server fault.
func (h *ProfileHandlers) lifecycle(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id string) error) {
	id := r.PathValue("id")

	if err := fn(r.Context(), id); err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Profile not found", nil)
			return
		}
		respondError(w, http.StatusConflict, "ILLEGAL_TRANSITION", err.Error(), nil)
		return
	}

	p, err := h.repo.Get(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "PROFILE_ERROR", "Failed to fetch profile", err)
		return
	}
	respondData(w, http.StatusOK, p)
}

// Delete handles DELETE /api/v1/profiles/{id}
func (h *ProfileHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Profile not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "PROFILE_ERROR", "Failed to delete profile", err)
		return
	}

	respondData(w, http.StatusOK, map[string]string{"status": "deleted"})
}
