// Chainwatch - Wormhole Chain Killmail Surveillance
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chainwatch

package profile

import "testing"

func TestStatusCanTransition(t *testing.T) {
	allowed := map[Status][]Status{
		StatusDraft:    {StatusCompiled, StatusDeleted},
		StatusCompiled: {StatusActive, StatusDeleted},
		StatusActive:   {StatusDisabled, StatusDeleted},
		StatusDisabled: {StatusActive, StatusDeleted},
		StatusDeleted:  {},
	}
	all := []Status{StatusDraft, StatusCompiled, StatusActive, StatusDisabled, StatusDeleted}

	for from, nexts := range allowed {
		ok := make(map[Status]bool, len(nexts))
		for _, n := range nexts {
			ok[n] = true
		}
		for _, to := range all {
			if got := from.CanTransition(to); got != ok[to] {
				t.Errorf("CanTransition(%s -> %s) = %v, want %v", from, to, got, ok[to])
			}
		}
	}
}

func TestProfileEnabled(t *testing.T) {
	for _, s := range []Status{StatusDraft, StatusCompiled, StatusDisabled, StatusDeleted} {
		p := &Profile{Status: s}
		if p.Enabled() {
			t.Errorf("status %s reports enabled", s)
		}
	}
	if !(&Profile{Status: StatusActive}).Enabled() {
		t.Error("active profile reports disabled")
	}
}
