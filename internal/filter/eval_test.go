// Chainwatch - Wormhole Chain Killmail Surveillance
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chainwatch

package filter

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/chainwatch/internal/models"
)

// fakeChain is a fixed in-memory chain view for evaluator tests.
type fakeChain struct {
	systems     map[int64]int // system id -> hops from home
	inhabitants map[int64][]int64
	degraded    bool
}

func (f *fakeChain) InChain(systemID int64) bool {
	_, ok := f.systems[systemID]
	return ok
}

func (f *fakeChain) HopsFrom(fromID, toID int64) (int, bool) {
	if _, ok := f.systems[fromID]; !ok {
		return 0, false
	}
	hops, ok := f.systems[toID]
	return hops, ok
}

func (f *fakeChain) Inhabitants(systemID int64) []int64 {
	return f.inhabitants[systemID]
}

func (f *fakeChain) Degraded() bool { return f.degraded }

const (
	homeSystem   = int64(31000001)
	chainSystem  = int64(31000002)
	kspaceSystem = int64(30002187)
)

func testChain() *fakeChain {
	return &fakeChain{
		systems: map[int64]int{
			homeSystem:  0,
			chainSystem: 2,
		},
		inhabitants: map[int64][]int64{
			chainSystem: {1001, 1002},
		},
	}
}

func testKillmail() *models.Killmail {
	return &models.Killmail{
		ID:            12345678,
		Timestamp:     time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		SolarSystemID: chainSystem,
		Victim: models.Participant{
			CharacterID:   2001,
			CorporationID: 98000100,
			AllianceID:    99000010,
			ShipTypeID:    17738,
		},
		Attackers: []models.Participant{
			{CharacterID: 1001, CorporationID: 98000200, ShipTypeID: 11567, FinalBlow: true},
			{CharacterID: 1003, CorporationID: 98000201, ShipTypeID: 29984},
		},
		ValueDestroyed: 2.5e9,
		AttackerCount:  2,
		Attributes:     map[string]any{"npc": false, "region": "J-space"},
	}
}

func mustEval(t *testing.T, tree *Node, km *models.Killmail, chain ChainView) Result {
	t.Helper()
	e := NewEvaluator(homeSystem)
	res, err := e.Evaluate(context.Background(), tree, km, chain)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	return res
}

func TestEvaluateLeaves(t *testing.T) {
	km := testKillmail()
	chain := testChain()

	tests := []struct {
		name string
		tree *Node
		want Tristate
	}{
		{"system eq match", IntLeaf("solar_system_id", OpEq, chainSystem), True},
		{"system eq miss", IntLeaf("solar_system_id", OpEq, kspaceSystem), False},
		{"system in set", SetLeaf("solar_system_id", OpIn, kspaceSystem, chainSystem), True},
		{"victim corp", IntLeaf("victim_corporation_id", OpEq, 98000100), True},
		{"victim alliance ne", IntLeaf("victim_alliance_id", OpNe, 99000010), False},
		{"attacker char any-match", IntLeaf("attacker_character_id", OpEq, 1003), True},
		{"attacker corp set", SetLeaf("attacker_corporation_id", OpIn, 98000200), True},
		{"attacker miss", IntLeaf("attacker_alliance_id", OpEq, 4242), False},
		{"attacker count gte", IntLeaf("attacker_count", OpGte, 2), True},
		{"attacker count gt", IntLeaf("attacker_count", OpGt, 2), False},
		{"value destroyed gte", NumLeaf("value_destroyed", OpGte, 1e9), True},
		{"value destroyed lt", NumLeaf("value_destroyed", OpLt, 1e9), False},
		{"in chain", BoolLeaf(AttrInChain, true), True},
		{"not in chain", BoolLeaf(AttrInChain, false), False},
		{"jumps lte", IntLeaf(AttrJumpsFromHome, OpLte, 2), True},
		{"jumps lt boundary", IntLeaf(AttrJumpsFromHome, OpLt, 2), False},
		{"jumps eq boundary", IntLeaf(AttrJumpsFromHome, OpEq, 2), True},
		{"chain inhabitant present", BoolLeaf(AttrChainInhabitant, true), True},
		{"bag string", &Node{Kind: KindLeaf, Attribute: "attr.region", Op: OpEq, StrValue: strPtr("J-space")}, True},
		{"bag bool", &Node{Kind: KindLeaf, Attribute: "attr.npc", Op: OpEq, BoolValue: boolPtr(false)}, True},
		{"bag missing key", &Node{Kind: KindLeaf, Attribute: "attr.nope", Op: OpEq, StrValue: strPtr("x")}, False},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mustEval(t, tt.tree, km, chain).Value; got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateComposites(t *testing.T) {
	km := testKillmail()
	chain := testChain()

	matchLeaf := IntLeaf("solar_system_id", OpEq, chainSystem)
	missLeaf := IntLeaf("solar_system_id", OpEq, kspaceSystem)

	tests := []struct {
		name string
		tree *Node
		want Tristate
	}{
		{"and both", And(matchLeaf, NumLeaf("value_destroyed", OpGt, 1e9)), True},
		{"and one false", And(matchLeaf, missLeaf), False},
		{"or one true", Or(missLeaf, matchLeaf), True},
		{"or none", Or(missLeaf, IntLeaf("attacker_count", OpGt, 50)), False},
		{"not match", Not(matchLeaf), False},
		{"not miss", Not(missLeaf), True},
		{"nested", And(matchLeaf, Or(missLeaf, Not(missLeaf))), True},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mustEval(t, tt.tree, km, chain).Value; got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

// A hop bound of zero admits the home system only.
func TestEvaluateHomeSystemBoundary(t *testing.T) {
	chain := testChain()
	leaf := IntLeaf(AttrJumpsFromHome, OpLte, 0)

	home := testKillmail()
	home.SolarSystemID = homeSystem
	if got := mustEval(t, leaf, home, chain).Value; got != True {
		t.Errorf("home system kill = %v, want true", got)
	}

	away := testKillmail()
	away.SolarSystemID = chainSystem
	if got := mustEval(t, leaf, away, chain).Value; got != False {
		t.Errorf("two-hop kill = %v, want false", got)
	}
}

// A value threshold under an alliance conjunction separates big kills
// from small ones by the numeric operand alone.
func TestEvaluateAllianceValueConjunction(t *testing.T) {
	chain := testChain()
	tree := And(
		IntLeaf("attacker_alliance_id", OpEq, 99),
		NumLeaf("value_destroyed", OpGt, 5e8),
	)

	km := testKillmail()
	km.Attackers[0].AllianceID = 99
	km.ValueDestroyed = 6e8
	if got := mustEval(t, tree, km, chain).Value; got != True {
		t.Errorf("600M kill by alliance 99 = %v, want true", got)
	}

	km.ValueDestroyed = 1e8
	if got := mustEval(t, tree, km, chain).Value; got != False {
		t.Errorf("100M kill by alliance 99 = %v, want false", got)
	}
}

// OR over two chain-scoped leaves cannot resolve under stale topology:
// the outcome is indeterminate, not a definite no-match.
func TestEvaluateChainDisjunctionDegraded(t *testing.T) {
	degraded := testChain()
	degraded.degraded = true
	tree := Or(BoolLeaf(AttrInChain, true), BoolLeaf(AttrChainInhabitant, true))

	if got := mustEval(t, tree, testKillmail(), degraded).Value; got != Indeterminate {
		t.Errorf("chain disjunction under stale topology = %v, want indeterminate", got)
	}
	if got := mustEval(t, tree, testKillmail(), testChain()).Value; got != True {
		t.Errorf("chain disjunction with fresh topology = %v, want true", got)
	}
}

// Empty attacker lists are a definite false for attacker-scoped leaves,
// never an error.
func TestEvaluateEmptyAttackerList(t *testing.T) {
	km := testKillmail()
	km.Attackers = nil
	km.AttackerCount = 0

	res := mustEval(t, IntLeaf("attacker_character_id", OpEq, 1001), km, testChain())
	if res.Value != False {
		t.Errorf("empty attacker list = %v, want false", res.Value)
	}
	// And its negation is a definite true.
	res = mustEval(t, Not(IntLeaf("attacker_character_id", OpEq, 1001)), km, testChain())
	if res.Value != True {
		t.Errorf("negated empty attacker leaf = %v, want true", res.Value)
	}
}

// Chain-aware leaves resolve to Indeterminate under degraded topology;
// killmail-only leaves are unaffected.
func TestEvaluateDegradedTopology(t *testing.T) {
	km := testKillmail()
	degraded := testChain()
	degraded.degraded = true

	tests := []struct {
		name  string
		tree  *Node
		chain ChainView
		want  Tristate
	}{
		{"chain leaf degraded", BoolLeaf(AttrInChain, true), degraded, Indeterminate},
		{"chain leaf nil view", BoolLeaf(AttrInChain, true), nil, Indeterminate},
		{"hops degraded", IntLeaf(AttrJumpsFromHome, OpLte, 2), degraded, Indeterminate},
		{"killmail leaf unaffected", IntLeaf("solar_system_id", OpEq, chainSystem), degraded, True},
		{"not of indeterminate", Not(BoolLeaf(AttrInChain, true)), degraded, Indeterminate},
		{
			name:  "and short-circuits indeterminate on definite false",
			tree:  And(IntLeaf("solar_system_id", OpEq, kspaceSystem), BoolLeaf(AttrInChain, true)),
			chain: degraded,
			want:  False,
		},
		{
			name:  "or short-circuits indeterminate on definite true",
			tree:  Or(IntLeaf("solar_system_id", OpEq, chainSystem), BoolLeaf(AttrInChain, true)),
			chain: degraded,
			want:  True,
		},
		{
			name:  "and with true sibling stays indeterminate",
			tree:  And(IntLeaf("solar_system_id", OpEq, chainSystem), BoolLeaf(AttrInChain, true)),
			chain: degraded,
			want:  Indeterminate,
		},
		{
			name:  "or with false sibling stays indeterminate",
			tree:  Or(IntLeaf("solar_system_id", OpEq, kspaceSystem), BoolLeaf(AttrInChain, true)),
			chain: degraded,
			want:  Indeterminate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mustEval(t, tt.tree, km, tt.chain).Value; got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

// Operand order must not change the outcome, only possibly the amount of
// work: short-circuiting is an optimization, never a semantic change.
func TestEvaluateShortCircuitEquivalence(t *testing.T) {
	km := testKillmail()
	degraded := testChain()
	degraded.degraded = true

	leaves := []*Node{
		IntLeaf("solar_system_id", OpEq, chainSystem),  // true
		IntLeaf("solar_system_id", OpEq, kspaceSystem), // false
		BoolLeaf(AttrInChain, true),                    // indeterminate under degraded
	}

	for i, a := range leaves {
		for j, b := range leaves {
			andFwd := mustEval(t, And(a, b), km, degraded).Value
			andRev := mustEval(t, And(b, a), km, degraded).Value
			if andFwd != andRev {
				t.Errorf("AND(%d,%d) = %v but AND(%d,%d) = %v", i, j, andFwd, j, i, andRev)
			}
			orFwd := mustEval(t, Or(a, b), km, degraded).Value
			orRev := mustEval(t, Or(b, a), km, degraded).Value
			if orFwd != orRev {
				t.Errorf("OR(%d,%d) = %v but OR(%d,%d) = %v", i, j, orFwd, j, i, orRev)
			}
		}
	}
}

// A system outside the chain graph is definitively not within N jumps.
func TestEvaluateJumpsUnreachable(t *testing.T) {
	km := testKillmail()
	km.SolarSystemID = kspaceSystem

	res := mustEval(t, IntLeaf(AttrJumpsFromHome, OpLte, 10), km, testChain())
	if res.Value != False {
		t.Errorf("unreachable system = %v, want false", res.Value)
	}
}

func TestEvaluateTrace(t *testing.T) {
	km := testKillmail()
	tree := And(
		IntLeaf("solar_system_id", OpEq, chainSystem),
		NumLeaf("value_destroyed", OpGte, 1e9),
	)

	res := mustEval(t, tree, km, testChain())
	if res.Value != True {
		t.Fatalf("Evaluate() = %v, want true", res.Value)
	}
	want := []string{"solar_system_id", "value_destroyed"}
	if len(res.Trace) != len(want) {
		t.Fatalf("trace = %v, want %v", res.Trace, want)
	}
	for i := range want {
		if res.Trace[i] != want[i] {
			t.Errorf("trace[%d] = %q, want %q", i, res.Trace[i], want[i])
		}
	}
}

// Determinism: repeated evaluation of the same killmail against the same
// snapshot always produces the same result.
func TestEvaluateDeterministic(t *testing.T) {
	km := testKillmail()
	chain := testChain()
	tree := Or(
		And(BoolLeaf(AttrInChain, true), NumLeaf("value_destroyed", OpGt, 1e9)),
		SetLeaf("attacker_corporation_id", OpIn, 98000200, 98000300),
	)

	first := mustEval(t, tree, km, chain)
	for i := 0; i < 50; i++ {
		if got := mustEval(t, tree, km, chain); got.Value != first.Value {
			t.Fatalf("run %d = %v, want %v", i, got.Value, first.Value)
		}
	}
}

func TestEvaluateCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewEvaluator(homeSystem)
	tree := And(IntLeaf("attacker_count", OpGt, 0), IntLeaf("attacker_count", OpLt, 100))
	if _, err := e.Evaluate(ctx, tree, testKillmail(), testChain()); err == nil {
		t.Error("Evaluate() with canceled context succeeded, want error")
	}
}

func TestEvaluateNilInputs(t *testing.T) {
	e := NewEvaluator(homeSystem)
	if _, err := e.Evaluate(context.Background(), nil, testKillmail(), testChain()); err == nil {
		t.Error("nil tree accepted")
	}
	if _, err := e.Evaluate(context.Background(), IntLeaf("attacker_count", OpGt, 0), nil, testChain()); err == nil {
		t.Error("nil killmail accepted")
	}
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
