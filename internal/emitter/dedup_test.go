// Chainwatch - Wormhole Chain Killmail Surveillance
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chainwatch

package emitter

import (
	"testing"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

func TestMemoryDeduperCheckAndMark(t *testing.T) {
	d := NewMemoryDeduper()

	first, err := d.CheckAndMark("p-1:100")
	if err != nil || !first {
		t.Fatalf("first CheckAndMark = (%v, %v), want (true, nil)", first, err)
	}
	again, err := d.CheckAndMark("p-1:100")
	if err != nil || again {
		t.Fatalf("second CheckAndMark = (%v, %v), want (false, nil)", again, err)
	}
	other, err := d.CheckAndMark("p-1:101")
	if err != nil || !other {
		t.Fatalf("distinct key CheckAndMark = (%v, %v), want (true, nil)", other, err)
	}
}

func TestBadgerDeduperCheckAndMark(t *testing.T) {
	opts := badger.DefaultOptions(t.TempDir())
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("badger.Open() error = %v", err)
	}
	defer db.Close()

	d := NewBadgerDeduper(db, time.Hour)

	first, err := d.CheckAndMark("p-1:100")
	if err != nil || !first {
		t.Fatalf("first CheckAndMark = (%v, %v), want (true, nil)", first, err)
	}
	again, err := d.CheckAndMark("p-1:100")
	if err != nil || again {
		t.Fatalf("second CheckAndMark = (%v, %v), want (false, nil)", again, err)
	}
}
