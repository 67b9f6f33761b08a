// Chainwatch - Wormhole Chain Killmail Surveillance
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chainwatch

package emitter

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/chainwatch/internal/models"
)

// AlertFilter narrows alert history queries.
type AlertFilter struct {
	ProfileID string
	Since     time.Time
	Limit     int
}

// AlertStore is the append-only alert history contract. Appends must be
// idempotent on the dedup key so a crash between dedup marking and the
// history write can never double-store an alert.
type AlertStore interface {
	Append(ctx context.Context, alert *models.Alert) error
	List(ctx context.Context, filter AlertFilter) ([]models.Alert, error)
	Count(ctx context.Context, filter AlertFilter) (int, error)
}

// DuckDBStore implements AlertStore on DuckDB.
type DuckDBStore struct {
	db *sql.DB
}

// NewDuckDBStore creates the store and its schema if missing.
func NewDuckDBStore(db *sql.DB) (*DuckDBStore, error) {
	const schema = `
		CREATE TABLE IF NOT EXISTS alerts (
			id VARCHAR PRIMARY KEY,
			profile_id VARCHAR NOT NULL,
			killmail_id BIGINT NOT NULL,
			trace VARCHAR,
			emitted_at TIMESTAMP NOT NULL,
			dedup_key VARCHAR NOT NULL UNIQUE
		)`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create alerts table: %w", err)
	}
	return &DuckDBStore{db: db}, nil
}

// Append stores one alert. A conflicting dedup key is a no-op, keeping
// the history append-only and idempotent.
func (s *DuckDBStore) Append(ctx context.Context, alert *models.Alert) error {
	traceJSON, err := json.Marshal(alert.Trace)
	if err != nil {
		return fmt.Errorf("marshal trace: %w", err)
	}

	const stmt = `
		INSERT INTO alerts (id, profile_id, killmail_id, trace, emitted_at, dedup_key)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (dedup_key) DO NOTHING`
	_, err = s.db.ExecContext(ctx, stmt,
		alert.ID, alert.ProfileID, alert.KillmailID, string(traceJSON), alert.EmittedAt, alert.DedupKey)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// List returns alerts newest first.
func (s *DuckDBStore) List(ctx context.Context, filter AlertFilter) ([]models.Alert, error) {
	query := `SELECT id, profile_id, killmail_id, trace, emitted_at, dedup_key FROM alerts WHERE 1=1`
	var args []interface{}
	if filter.ProfileID != "" {
		query += ` AND profile_id = ?`
		args = append(args, filter.ProfileID)
	}
	if !filter.Since.IsZero() {
		query += ` AND emitted_at >= ?`
		args = append(args, filter.Since)
	}
	query += ` ORDER BY emitted_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		var a models.Alert
		var traceJSON string
		if err := rows.Scan(&a.ID, &a.ProfileID, &a.KillmailID, &traceJSON, &a.EmittedAt, &a.DedupKey); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		if traceJSON != "" {
			if err := json.Unmarshal([]byte(traceJSON), &a.Trace); err != nil {
				return nil, fmt.Errorf("unmarshal trace: %w", err)
			}
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// Count returns the number of alerts matching the filter.
func (s *DuckDBStore) Count(ctx context.Context, filter AlertFilter) (int, error) {
	query := `SELECT COUNT(*) FROM alerts WHERE 1=1`
	var args []interface{}
	if filter.ProfileID != "" {
		query += ` AND profile_id = ?`
		args = append(args, filter.ProfileID)
	}
	if !filter.Since.IsZero() {
		query += ` AND emitted_at >= ?`
		args = append(args, filter.Since)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count alerts: %w", err)
	}
	return count, nil
}
