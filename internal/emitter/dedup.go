// Chainwatch - Wormhole Chain Killmail Surveillance
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chainwatch

package emitter

import (
	"errors"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Deduper is the idempotence gate: CheckAndMark returns true exactly on
// the first call for a key and false for every repeat.
type Deduper interface {
	CheckAndMark(key string) (first bool, err error)
}

const dedupKeyPrefix = "alert_dedup:"

// BadgerDeduper persists dedup keys with a TTL, so idempotence survives
// restarts for as long as the upstream feed can plausibly redeliver.
type BadgerDeduper struct {
	db  *badger.DB
	ttl time.Duration
}

// NewBadgerDeduper creates a deduper. A non-positive ttl defaults to 24h.
func NewBadgerDeduper(db *badger.DB, ttl time.Duration) *BadgerDeduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &BadgerDeduper{db: db, ttl: ttl}
}

// CheckAndMark implements Deduper in a single transaction.
func (d *BadgerDeduper) CheckAndMark(key string) (bool, error) {
	first := false
	err := d.db.Update(func(txn *badger.Txn) error {
		k := []byte(dedupKeyPrefix + key)
		_, err := txn.Get(k)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		first = true
		entry := badger.NewEntry(k, nil).WithTTL(d.ttl)
		return txn.SetEntry(entry)
	})
	return first, err
}

// MemoryDeduper is an in-memory Deduper for tests and ephemeral runs.
type MemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewMemoryDeduper creates an empty in-memory deduper.
func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{seen: make(map[string]struct{})}
}

// CheckAndMark implements Deduper.
func (d *MemoryDeduper) CheckAndMark(key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[key]; ok {
		return false, nil
	}
	d.seen[key] = struct{}{}
	return true, nil
}
