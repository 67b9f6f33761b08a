// Chainwatch - Wormhole Chain Killmail Surveillance
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chainwatch

package database

import (
	"fmt"
	"os"

	badger "github.com/dgraph-io/badger/v4"
)

// OpenBadger opens a Badger store at path. Profiles and dedup keys are
// small, so the value log file size is reduced from the 1GB default and
// sync writes are enabled for durability.
func OpenBadger(path string) (*badger.DB, error) {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create badger directory %s: %w", path, err)
	}

	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Suppress BadgerDB internal logs
	opts.ValueLogFileSize = 16 << 20
	opts.SyncWrites = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db at %s: %w", path, err)
	}
	return db, nil
}
