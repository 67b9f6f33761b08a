// Chainwatch - Wormhole Chain Killmail Surveillance
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chainwatch

package models

import (
	"fmt"
	"time"
)

// Outcome is the result of evaluating one profile against one killmail.
type Outcome string

const (
	// OutcomeMatch means the profile's filter tree evaluated to true.
	OutcomeMatch Outcome = "match"

	// OutcomeNoMatch means the filter tree evaluated to false.
	OutcomeNoMatch Outcome = "no_match"

	// OutcomeIndeterminate means a chain-aware predicate could not be
	// resolved because the topology snapshot was stale or missing. Distinct
	// from no_match so degraded evaluations are visible in metrics.
	OutcomeIndeterminate Outcome = "indeterminate"

	// OutcomeTimeout means the dispatch deadline elapsed before the
	// evaluation completed.
	OutcomeTimeout Outcome = "timeout"

	// OutcomeError means the evaluation failed; the error is counted
	// against the profile and never propagated to other profiles.
	OutcomeError Outcome = "error"
)

// MatchResult is the ephemeral outcome of one (profile, killmail)
// evaluation. It feeds the alert emitter and the metrics collector and is
// never persisted itself.
type MatchResult struct {
	ProfileID  string        `json:"profile_id"`
	KillmailID int64         `json:"killmail_id"`
	Outcome    Outcome       `json:"outcome"`
	Duration   time.Duration `json:"duration"`
	Timeout    bool          `json:"timeout"`

	// Trace lists the attribute paths of the leaves that decided the
	// match, in evaluation order. Empty for non-matches.
	Trace []string `json:"trace,omitempty"`

	// Err holds the evaluation error for OutcomeError results.
	Err error `json:"-"`
}

// Alert is the durable record produced when a profile matches a killmail.
// Alerts are append-only; they are never mutated after emission.
type Alert struct {
	ID         string    `json:"id"`
	ProfileID  string    `json:"profile_id"`
	KillmailID int64     `json:"killmail_id"`
	Trace      []string  `json:"trace,omitempty"`
	EmittedAt  time.Time `json:"emitted_at"`

	// DedupKey is the idempotence key: one alert per (profile, killmail).
	DedupKey string `json:"dedup_key"`
}

// AlertDedupKey builds the idempotence key for a (profile, killmail) pair.
func AlertDedupKey(profileID string, killmailID int64) string {
	return fmt.Sprintf("%s:%d", profileID, killmailID)
}
