// Chainwatch - Wormhole Chain Killmail Surveillance
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chainwatch

package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// ErrNotFound is returned when a profile id is unknown.
var ErrNotFound = errors.New("profile not found")

// Store is the durable profile persistence contract the repository needs:
// load-all on startup plus per-profile writes. Storage schema beyond this
// is owned by the embedding application.
type Store interface {
	Save(ctx context.Context, p *Profile) error
	Delete(ctx context.Context, id string) error
	LoadAll(ctx context.Context) ([]*Profile, error)
}

const profileKeyPrefix = "profile:"

// BadgerStore implements Store using BadgerDB for durable storage.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore creates a new BadgerDB-backed profile store.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Save persists one profile.
func (s *BadgerStore) Save(_ context.Context, p *Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(profileKeyPrefix+p.ID), data)
	})
}

// Delete removes a profile permanently.
func (s *BadgerStore) Delete(_ context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(profileKeyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// LoadAll returns every stored profile. Called once at startup to warm
// the repository.
func (s *BadgerStore) LoadAll(_ context.Context) ([]*Profile, error) {
	var profiles []*Profile
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(profileKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var p Profile
				if err := json.Unmarshal(val, &p); err != nil {
					return fmt.Errorf("unmarshal profile: %w", err)
				}
				profiles = append(profiles, &p)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

// MemoryStore is an in-memory Store for tests and ephemeral deployments.
type MemoryStore struct {
	profiles map[string]*Profile
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]*Profile)}
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, p *Profile) error {
	cp := *p
	s.profiles[p.ID] = &cp
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	delete(s.profiles, id)
	return nil
}

// LoadAll implements Store.
func (s *MemoryStore) LoadAll(_ context.Context) ([]*Profile, error) {
	out := make([]*Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}
