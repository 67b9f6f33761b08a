// Chainwatch - Wormhole Chain Killmail Surveillance
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chainwatch

// Package models defines the shared domain types for Chainwatch: killmails
// consumed from the upstream feed, the alerts the engine produces when a
// watch profile matches, and the ephemeral match results that feed metrics.
package models

import (
	"errors"
	"time"

	"github.com/goccy/go-json"
)

// Participant is one entity on a killmail, either the victim or an attacker.
// Zero IDs mean the field is unknown (NPC or unresolved entity).
type Participant struct {
	CharacterID   int64 `json:"character_id,omitempty"`
	CorporationID int64 `json:"corporation_id,omitempty"`
	AllianceID    int64 `json:"alliance_id,omitempty"`
	ShipTypeID    int64 `json:"ship_type_id,omitempty"`

	// FinalBlow is only meaningful on attackers.
	FinalBlow bool `json:"final_blow,omitempty"`
}

// Killmail is one immutable combat event record. It is produced and
// validated by the upstream ingestion pipeline; the engine never mutates it.
type Killmail struct {
	ID             int64         `json:"killmail_id"`
	Timestamp      time.Time     `json:"killmail_time"`
	SolarSystemID  int64         `json:"solar_system_id"`
	Victim         Participant   `json:"victim"`
	Attackers      []Participant `json:"attackers"`
	ValueDestroyed float64       `json:"value_destroyed"`
	AttackerCount  int           `json:"attacker_count"`

	// Attributes carries upstream-supplied extension fields that have no
	// dedicated column. Values keep the types the decoder produced.
	Attributes map[string]any `json:"attributes,omitempty"`
}

// FinalBlowAttacker returns the attacker flagged with the final blow,
// or nil if the list is empty or no attacker carries the flag.
func (k *Killmail) FinalBlowAttacker() *Participant {
	for i := range k.Attackers {
		if k.Attackers[i].FinalBlow {
			return &k.Attackers[i]
		}
	}
	return nil
}

// ParticipantIDs returns every non-zero character id on the killmail,
// victim first. Used by chain-inhabitant matching.
func (k *Killmail) ParticipantIDs() []int64 {
	ids := make([]int64, 0, len(k.Attackers)+1)
	if k.Victim.CharacterID != 0 {
		ids = append(ids, k.Victim.CharacterID)
	}
	for i := range k.Attackers {
		if id := k.Attackers[i].CharacterID; id != 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

// ParseKillmail decodes a killmail from its upstream JSON form. The id
// and solar system are mandatory; a missing attacker_count is derived
// from the attacker list.
func ParseKillmail(payload []byte) (*Killmail, error) {
	var km Killmail
	if err := json.Unmarshal(payload, &km); err != nil {
		return nil, err
	}
	if km.ID == 0 {
		return nil, errors.New("killmail: missing killmail_id")
	}
	if km.SolarSystemID == 0 {
		return nil, errors.New("killmail: missing solar_system_id")
	}
	if km.AttackerCount == 0 {
		km.AttackerCount = len(km.Attackers)
	}
	return &km, nil
}
