// Chainwatch - Wormhole Chain Killmail Surveillance
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chainwatch

// Package topology maintains a periodically refreshed, versioned snapshot
// of the wormhole chain graph served by the external mapping provider.
//
// Snapshots are immutable values replaced wholesale on refresh
// (copy-on-write), so evaluation never takes a lock and one evaluation
// pass always sees one consistent version. When the provider is
// unreachable the cache keeps serving the last good snapshot; past the
// staleness threshold the cache marks its views degraded so chain-aware
// predicates resolve to indeterminate instead of silently false.
package topology

import (
	"time"
)

// System is one solar system in the chain graph.
type System struct {
	SolarSystemID int64     `json:"solar_system_id"`
	Name          string    `json:"name,omitempty"`
	Connections   []int64   `json:"connections"`
	Inhabitants   []int64   `json:"inhabitants,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Snapshot is an immutable, versioned view of the chain graph. All fields
// are treated as read-only after construction; refresh and delta folding
// build new snapshots rather than mutating an existing one.
type Snapshot struct {
	MapID     string
	Version   int64
	FetchedAt time.Time
	Systems   map[int64]System
}

// InChain reports whether the system is part of the chain.
func (s *Snapshot) InChain(systemID int64) bool {
	_, ok := s.Systems[systemID]
	return ok
}

// Inhabitants returns the character ids present in the system, or nil if
// the system is not in the chain.
func (s *Snapshot) Inhabitants(systemID int64) []int64 {
	sys, ok := s.Systems[systemID]
	if !ok {
		return nil
	}
	return sys.Inhabitants
}

// HopsFrom returns the shortest-hop distance from fromID to toID by
// breadth-first search over the connection graph. The second return is
// false when either endpoint is absent or no path exists. A system is
// zero hops from itself.
func (s *Snapshot) HopsFrom(fromID, toID int64) (int, bool) {
	if _, ok := s.Systems[fromID]; !ok {
		return 0, false
	}
	if _, ok := s.Systems[toID]; !ok {
		return 0, false
	}
	if fromID == toID {
		return 0, true
	}

	visited := map[int64]bool{fromID: true}
	frontier := []int64{fromID}
	hops := 0

	for len(frontier) > 0 {
		hops++
		var next []int64
		for _, id := range frontier {
			for _, conn := range s.Systems[id].Connections {
				if visited[conn] {
					continue
				}
				if conn == toID {
					return hops, true
				}
				// Only traverse connections that lead to known systems;
				// a dangling connection id is a provider inconsistency.
				if _, ok := s.Systems[conn]; ok {
					visited[conn] = true
					next = append(next, conn)
				}
			}
		}
		frontier = next
	}
	return 0, false
}

// Age returns how long ago the snapshot was fetched.
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.FetchedAt)
}

// View pairs an immutable snapshot with the degraded flag computed at
// read time. It implements the evaluator's ChainView. A nil-snapshot view
// (no successful fetch yet) is always degraded.
type View struct {
	snap     *Snapshot
	degraded bool
}

// InChain implements ChainView.
func (v *View) InChain(systemID int64) bool {
	if v.snap == nil {
		return false
	}
	return v.snap.InChain(systemID)
}

// HopsFrom implements ChainView.
func (v *View) HopsFrom(fromID, toID int64) (int, bool) {
	if v.snap == nil {
		return 0, false
	}
	return v.snap.HopsFrom(fromID, toID)
}

// Inhabitants implements ChainView.
func (v *View) Inhabitants(systemID int64) []int64 {
	if v.snap == nil {
		return nil
	}
	return v.snap.Inhabitants(systemID)
}

// Degraded implements ChainView.
func (v *View) Degraded() bool {
	return v.degraded
}

// Snapshot returns the underlying snapshot, which may be nil before the
// first successful refresh.
func (v *View) Snapshot() *Snapshot {
	return v.snap
}

// NewView constructs a view directly. Tests use this to inject fixed
// chain states into the evaluator.
func NewView(snap *Snapshot, degraded bool) *View {
	return &View{snap: snap, degraded: degraded}
}
