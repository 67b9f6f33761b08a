// Chainwatch - Wormhole Chain Killmail Surveillance
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chainwatch

// Package database opens the embedded stores Chainwatch persists to:
// DuckDB for the alert history and Badger for profiles and dedup keys.
package database

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"database/sql"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/chainwatch/internal/config"
)

// OpenDuckDB opens the alert history database with tuning options from
// config. The parent directory is created if missing so a fresh deploy
// does not fail on "No such file or directory".
func OpenDuckDB(cfg config.DatabaseConfig) (*sql.DB, error) {
	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	dbDir := filepath.Dir(cfg.Path)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
		}
	}

	// Disable auto-install/auto-load so startup never hangs on extension
	// downloads in restricted network environments.
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, threads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// DuckDB is an in-process engine: one writer connection, no pool churn.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.Ping(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return conn, nil
}

func closeQuietly(c *sql.DB) {
	_ = c.Close()
}
