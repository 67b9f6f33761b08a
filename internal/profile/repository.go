// Chainwatch - Wormhole Chain Killmail Surveillance
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chainwatch

package profile

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/chainwatch/internal/filter"
	"github.com/tomtom215/chainwatch/internal/logging"
)

// Repository holds the live profile set and their compiled trees. All
// mutation goes through the repository so the enabled-set can be
// snapshotted consistently per dispatch: concurrent edits never cause a
// profile to be evaluated zero or two times within one event.
type Repository struct {
	mu       sync.RWMutex
	store    Store
	compiler *filter.Compiler
	profiles map[string]*Profile
	compiled map[string]*Compiled

	// enabled is rebuilt on every mutation and handed out as-is;
	// consumers treat the slice as immutable.
	enabled []*Compiled
}

// NewRepository creates a repository over the given store.
func NewRepository(store Store, compiler *filter.Compiler) *Repository {
	return &Repository{
		store:    store,
		compiler: compiler,
		profiles: make(map[string]*Profile),
		compiled: make(map[string]*Compiled),
	}
}

// Load warms the repository from the store. Profiles whose persisted
// definitions no longer compile are disabled rather than dropped, so a
// registry fault never silently loses a profile.
func (r *Repository) Load(ctx context.Context) error {
	profiles, err := r.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load profiles: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range profiles {
		if p.Status == StatusDeleted {
			continue
		}
		r.profiles[p.ID] = p
		if p.Status == StatusDraft {
			continue
		}
		tree, err := r.compiler.Compile(p.Definition)
		if err != nil {
			logging.Error().Err(err).Str("profile_id", p.ID).Msg("stored profile failed to compile, disabling")
			p.Status = StatusDisabled
			continue
		}
		r.compiled[p.ID] = &Compiled{ProfileID: p.ID, OwnerID: p.OwnerID, Version: p.Version, Tree: tree}
	}
	r.rebuildEnabledLocked()

	logging.Info().
		Int("profiles", len(r.profiles)).
		Int("enabled", len(r.enabled)).
		Msg("profile repository loaded")
	return nil
}

// Upsert validates and compiles a definition, then creates or updates the
// profile. Compile failures surface synchronously as *filter.CompileError
// and leave the stored profile untouched. Edits bump the version; an
// active profile stays active across edits.
func (r *Repository) Upsert(ctx context.Context, p *Profile) (*Profile, error) {
	tree, err := r.compiler.Compile(p.Definition)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Stage the new record and swap it in only after the save succeeds;
	// a store failure must leave the served profile, its compiled tree,
	// and durable state all at the previous version.
	now := time.Now()
	var next *Profile
	if existing, ok := r.profiles[p.ID]; ok {
		staged := *existing
		staged.Name = p.Name
		staged.Scope = p.Scope
		staged.Definition = append(json.RawMessage(nil), p.Definition...)
		staged.Version++
		staged.UpdatedAt = now
		if staged.Status == StatusDraft {
			staged.Status = StatusCompiled
		}
		next = &staged
	} else {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		p.Version = 1
		p.Status = StatusCompiled
		p.CreatedAt = now
		p.UpdatedAt = now
		next = p
	}

	if err := r.store.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("save profile %s: %w", next.ID, err)
	}

	r.profiles[next.ID] = next
	r.compiled[next.ID] = &Compiled{ProfileID: next.ID, OwnerID: next.OwnerID, Version: next.Version, Tree: tree}
	r.rebuildEnabledLocked()

	cp := *next
	return &cp, nil
}

// SaveDraft stores a definition without compiling it. Drafts never enter
// the dispatch set.
func (r *Repository) SaveDraft(ctx context.Context, p *Profile) (*Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if p.ID == "" {
		p.ID = uuid.NewString()
		p.CreatedAt = now
	}
	p.Status = StatusDraft
	p.UpdatedAt = now

	if err := r.store.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("save draft %s: %w", p.ID, err)
	}
	r.profiles[p.ID] = p

	cp := *p
	return &cp, nil
}

// Enable moves a compiled or disabled profile into the dispatch set.
func (r *Repository) Enable(ctx context.Context, id string) error {
	return r.transition(ctx, id, StatusActive)
}

// Disable removes a profile from the dispatch set but retains it.
func (r *Repository) Disable(ctx context.Context, id string) error {
	return r.transition(ctx, id, StatusDisabled)
}

func (r *Repository) transition(ctx context.Context, id string, next Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[id]
	if !ok {
		return ErrNotFound
	}
	if !p.Status.CanTransition(next) {
		return fmt.Errorf("profile %s: illegal transition %s -> %s", id, p.Status, next)
	}
	p.Status = next
	p.UpdatedAt = time.Now()

	if err := r.store.Save(ctx, p); err != nil {
		return fmt.Errorf("save profile %s: %w", id, err)
	}
	r.rebuildEnabledLocked()
	return nil
}

// Delete removes a profile terminally. In-flight evaluations referencing
// the profile complete against the snapshot they were dispatched with and
// their results are discarded downstream.
func (r *Repository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.profiles[id]; !ok {
		return ErrNotFound
	}
	if err := r.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete profile %s: %w", id, err)
	}
	delete(r.profiles, id)
	delete(r.compiled, id)
	r.rebuildEnabledLocked()
	return nil
}

// Get returns a copy of the profile.
func (r *Repository) Get(id string) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// List returns copies of all profiles sorted by creation time.
func (r *Repository) List() []*Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// EnabledSnapshot returns the current enabled set. The returned slice is
// immutable: the dispatcher captures it once per event, so every profile
// enabled at dispatch time is attempted exactly once regardless of
// concurrent edits.
func (r *Repository) EnabledSnapshot() []*Compiled {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabled
}

// rebuildEnabledLocked recomputes the enabled slice. Must be called with
// the write lock held.
func (r *Repository) rebuildEnabledLocked() {
	enabled := make([]*Compiled, 0, len(r.compiled))
	for id, c := range r.compiled {
		if p, ok := r.profiles[id]; ok && p.Enabled() {
			enabled = append(enabled, c)
		}
	}
	sort.Slice(enabled, func(i, j int) bool { return enabled[i].ProfileID < enabled[j].ProfileID })
	r.enabled = enabled
}
