// Chainwatch - Wormhole Chain Killmail Surveillance
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chainwatch

package models

import (
	"strings"
	"testing"
)

const validKillmailJSON = `{
	"killmail_id": 9001,
	"killmail_time": "2026-08-30T18:00:00Z",
	"solar_system_id": 31000002,
	"victim": {"character_id": 2001, "corporation_id": 98000100, "ship_type_id": 670},
	"attackers": [
		{"character_id": 1001, "ship_type_id": 17738, "final_blow": true},
		{"character_id": 1003, "ship_type_id": 11567}
	],
	"value_destroyed": 2500000000,
	"attributes": {"npc": false, "region": "J-space"}
}`

func TestParseKillmail(t *testing.T) {
	km, err := ParseKillmail([]byte(validKillmailJSON))
	if err != nil {
		t.Fatalf("ParseKillmail error: %v", err)
	}

	if km.ID != 9001 {
		t.Errorf("ID = %d, want 9001", km.ID)
	}
	if km.SolarSystemID != 31000002 {
		t.Errorf("SolarSystemID = %d, want 31000002", km.SolarSystemID)
	}
	if km.Victim.CharacterID != 2001 {
		t.Errorf("Victim.CharacterID = %d, want 2001", km.Victim.CharacterID)
	}
	if len(km.Attackers) != 2 {
		t.Fatalf("len(Attackers) = %d, want 2", len(km.Attackers))
	}
	if km.ValueDestroyed != 2.5e9 {
		t.Errorf("ValueDestroyed = %f, want 2.5e9", km.ValueDestroyed)
	}
	// attacker_count absent from the payload: derived from the list.
	if km.AttackerCount != 2 {
		t.Errorf("AttackerCount = %d, want 2 derived from attackers", km.AttackerCount)
	}
	if region, ok := km.Attributes["region"].(string); !ok || region != "J-space" {
		t.Errorf(`Attributes["region"] = %v, want "J-space"`, km.Attributes["region"])
	}
}

func TestParseKillmailExplicitAttackerCount(t *testing.T) {
	payload := `{"killmail_id": 1, "solar_system_id": 31000002, "attackers": [], "attacker_count": 40}`
	km, err := ParseKillmail([]byte(payload))
	if err != nil {
		t.Fatalf("ParseKillmail error: %v", err)
	}
	if km.AttackerCount != 40 {
		t.Errorf("AttackerCount = %d, want explicit 40 preserved", km.AttackerCount)
	}
}

func TestParseKillmailInvalid(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr string
	}{
		{
			name:    "malformed json",
			payload: `{"killmail_id": 9001,`,
		},
		{
			name:    "missing killmail id",
			payload: `{"solar_system_id": 31000002}`,
			wantErr: "killmail_id",
		},
		{
			name:    "missing solar system",
			payload: `{"killmail_id": 9001}`,
			wantErr: "solar_system_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			km, err := ParseKillmail([]byte(tt.payload))
			if err == nil {
				t.Fatalf("ParseKillmail succeeded with %+v, want error", km)
			}
			if tt.wantErr != "" && !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to mention %s", err, tt.wantErr)
			}
		})
	}
}

func TestFinalBlowAttacker(t *testing.T) {
	km := &Killmail{
		Attackers: []Participant{
			{CharacterID: 1001},
			{CharacterID: 1003, FinalBlow: true},
		},
	}
	got := km.FinalBlowAttacker()
	if got == nil || got.CharacterID != 1003 {
		t.Errorf("FinalBlowAttacker() = %+v, want attacker 1003", got)
	}

	if (&Killmail{}).FinalBlowAttacker() != nil {
		t.Error("FinalBlowAttacker() on empty list should be nil")
	}
	noFlag := &Killmail{Attackers: []Participant{{CharacterID: 1001}}}
	if noFlag.FinalBlowAttacker() != nil {
		t.Error("FinalBlowAttacker() without flag should be nil")
	}
}

func TestParticipantIDs(t *testing.T) {
	km := &Killmail{
		Victim: Participant{CharacterID: 2001},
		Attackers: []Participant{
			{CharacterID: 1001},
			{}, // NPC attacker, no character id
			{CharacterID: 1003},
		},
	}
	got := km.ParticipantIDs()
	want := []int64{2001, 1001, 1003}
	if len(got) != len(want) {
		t.Fatalf("ParticipantIDs() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ParticipantIDs()[%d] = %d, want %d", i, got[i], want[i])
		}
	}

	if ids := (&Killmail{}).ParticipantIDs(); len(ids) != 0 {
		t.Errorf("ParticipantIDs() on empty killmail = %v, want empty", ids)
	}
}
