// Chainwatch - Wormhole Chain Killmail Surveillance
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chainwatch

package filter

import (
	"context"
	"fmt"

	"github.com/tomtom215/chainwatch/internal/models"
)

// ChainView is the topology read surface the evaluator needs. The
// production implementation is a topology.Snapshot; tests inject fixed
// views. All methods must be non-blocking in-memory reads.
type ChainView interface {
	// InChain reports whether the system is part of the current chain.
	InChain(systemID int64) bool

	// HopsFrom returns the shortest-hop distance between two systems in
	// the chain graph, and false if either side is absent or unreachable.
	HopsFrom(fromID, toID int64) (int, bool)

	// Inhabitants returns the character ids currently present in the
	// system, or nil if the system is not in the chain.
	Inhabitants(systemID int64) []int64

	// Degraded reports that the snapshot is past its staleness threshold.
	// Chain-aware leaves resolve to Indeterminate while this holds.
	Degraded() bool
}

// Result is the outcome of evaluating one tree against one killmail.
type Result struct {
	Value Tristate

	// Trace lists the attributes of the leaves that evaluated true, in
	// evaluation order. Populated regardless of the overall value; the
	// emitter stores it only for matches.
	Trace []string
}

// Evaluator decides whether killmails satisfy compiled filter trees.
// It is stateless apart from configuration and safe for concurrent use.
type Evaluator struct {
	// HomeSystemID anchors the jumps_from_home pseudo-attribute.
	HomeSystemID int64
}

// NewEvaluator returns an evaluator anchored at the given home system.
func NewEvaluator(homeSystemID int64) *Evaluator {
	return &Evaluator{HomeSystemID: homeSystemID}
}

// Evaluate runs short-circuit three-valued evaluation of tree against km
// under the given chain view. A nil chain view behaves like a fully
// degraded one. The context is checked at every composite node so a
// dispatch deadline cancels deep evaluations promptly.
//
// Evaluation is deterministic for a fixed killmail and chain snapshot.
func (e *Evaluator) Evaluate(ctx context.Context, tree *Node, km *models.Killmail, chain ChainView) (Result, error) {
	if tree == nil {
		return Result{}, fmt.Errorf("evaluate: nil tree")
	}
	if km == nil {
		return Result{}, fmt.Errorf("evaluate: nil killmail")
	}
	var trace []string
	v, err := e.eval(ctx, tree, km, chain, &trace)
	if err != nil {
		return Result{}, err
	}
	return Result{Value: v, Trace: trace}, nil
}

func (e *Evaluator) eval(ctx context.Context, n *Node, km *models.Killmail, chain ChainView, trace *[]string) (Tristate, error) {
	switch n.Kind {
	case KindLeaf:
		v := e.evalLeaf(n, km, chain)
		if v == True {
			*trace = append(*trace, n.Attribute)
		}
		return v, nil

	case KindAnd:
		if err := ctx.Err(); err != nil {
			return False, err
		}
		acc := True
		for _, child := range n.Children {
			v, err := e.eval(ctx, child, km, chain, trace)
			if err != nil {
				return False, err
			}
			if v == False {
				return False, nil
			}
			acc = acc.And(v)
		}
		return acc, nil

	case KindOr:
		if err := ctx.Err(); err != nil {
			return False, err
		}
		acc := False
		for _, child := range n.Children {
			v, err := e.eval(ctx, child, km, chain, trace)
			if err != nil {
				return False, err
			}
			if v == True {
				return True, nil
			}
			acc = acc.Or(v)
		}
		return acc, nil

	case KindNot:
		v, err := e.eval(ctx, n.Children[0], km, chain, trace)
		if err != nil {
			return False, err
		}
		return v.Not(), nil

	default:
		// Unreachable for compiled trees; the compiler rejects unknown kinds.
		return False, fmt.Errorf("evaluate: unknown node kind %q", n.Kind)
	}
}

func (e *Evaluator) evalLeaf(n *Node, km *models.Killmail, chain ChainView) Tristate {
	spec, ok := lookupAttr(n.Attribute)
	if !ok {
		return False
	}

	switch spec.typ {
	case AttrInt:
		return FromBool(compareInt(e.intAttr(n.Attribute, km), n))
	case AttrIntSet:
		return FromBool(e.evalAttackerSet(n, km))
	case AttrNum:
		return FromBool(compareNum(km.ValueDestroyed, n))
	case AttrChainBool, AttrChainHops:
		return e.evalChain(n, spec.typ, km, chain)
	case AttrBag:
		return FromBool(e.evalBag(n, km))
	}
	return False
}

// intAttr extracts a scalar integer attribute from the killmail.
func (e *Evaluator) intAttr(attribute string, km *models.Killmail) int64 {
	switch attribute {
	case "solar_system_id":
		return km.SolarSystemID
	case "victim_character_id":
		return km.Victim.CharacterID
	case "victim_corporation_id":
		return km.Victim.CorporationID
	case "victim_alliance_id":
		return km.Victim.AllianceID
	case "victim_ship_type_id":
		return km.Victim.ShipTypeID
	case "attacker_count":
		return int64(km.AttackerCount)
	}
	return 0
}

// evalAttackerSet holds if any attacker satisfies the comparison.
// An empty attacker list is a definite false.
func (e *Evaluator) evalAttackerSet(n *Node, km *models.Killmail) bool {
	for i := range km.Attackers {
		var v int64
		switch n.Attribute {
		case "attacker_character_id":
			v = km.Attackers[i].CharacterID
		case "attacker_corporation_id":
			v = km.Attackers[i].CorporationID
		case "attacker_alliance_id":
			v = km.Attackers[i].AllianceID
		case "attacker_ship_type_id":
			v = km.Attackers[i].ShipTypeID
		}
		if compareInt(v, n) {
			return true
		}
	}
	return false
}

func (e *Evaluator) evalChain(n *Node, typ AttrType, km *models.Killmail, chain ChainView) Tristate {
	if chain == nil || chain.Degraded() {
		return Indeterminate
	}

	switch n.Attribute {
	case AttrInChain:
		return FromBool(chain.InChain(km.SolarSystemID) == *n.BoolValue)

	case AttrJumpsFromHome:
		hops, reachable := chain.HopsFrom(e.HomeSystemID, km.SolarSystemID)
		if !reachable {
			// The system is definitively outside the chain graph.
			return False
		}
		return FromBool(compareOrdered(int64(hops), *n.IntValue, n.Op))

	case AttrChainInhabitant:
		inhabitants := chain.Inhabitants(km.SolarSystemID)
		present := false
		if len(inhabitants) > 0 {
			set := make(map[int64]struct{}, len(inhabitants))
			for _, id := range inhabitants {
				set[id] = struct{}{}
			}
			for _, id := range km.ParticipantIDs() {
				if _, ok := set[id]; ok {
					present = true
					break
				}
			}
		}
		return FromBool(present == *n.BoolValue)
	}
	return Indeterminate
}

// evalBag compares an extension attribute. Missing keys are false.
// Comparisons use the decoded value as supplied; no cross-type coercion
// beyond JSON's own number representation.
func (e *Evaluator) evalBag(n *Node, km *models.Killmail) bool {
	key := n.Attribute[len(BagAttrPrefix):]
	raw, ok := km.Attributes[key]
	if !ok {
		return false
	}

	var equal bool
	switch {
	case n.StrValue != nil:
		s, ok := raw.(string)
		equal = ok && s == *n.StrValue
	case n.BoolValue != nil:
		b, ok := raw.(bool)
		equal = ok && b == *n.BoolValue
	case n.NumValue != nil:
		f, ok := raw.(float64)
		equal = ok && f == *n.NumValue
	case n.IntValue != nil:
		switch v := raw.(type) {
		case int64:
			equal = v == *n.IntValue
		case float64:
			equal = v == float64(*n.IntValue)
		}
	}

	if n.Op == OpNe {
		return !equal
	}
	return equal
}

// compareInt applies the leaf operator to a scalar integer value.
func compareInt(v int64, n *Node) bool {
	switch n.Op {
	case OpIn:
		for _, candidate := range n.IntSet {
			if v == candidate {
				return true
			}
		}
		return false
	case OpEq:
		return v == *n.IntValue
	case OpNe:
		return v != *n.IntValue
	case OpGt, OpGte, OpLt, OpLte:
		return compareOrdered(v, *n.IntValue, n.Op)
	}
	return false
}

// compareNum applies the leaf operator to a scalar float value.
func compareNum(v float64, n *Node) bool {
	switch n.Op {
	case OpEq:
		return v == *n.NumValue
	case OpNe:
		return v != *n.NumValue
	case OpGt:
		return v > *n.NumValue
	case OpGte:
		return v >= *n.NumValue
	case OpLt:
		return v < *n.NumValue
	case OpLte:
		return v <= *n.NumValue
	}
	return false
}

func compareOrdered(v, operand int64, op Operator) bool {
	switch op {
	case OpEq:
		return v == operand
	case OpNe:
		return v != operand
	case OpGt:
		return v > operand
	case OpGte:
		return v >= operand
	case OpLt:
		return v < operand
	case OpLte:
		return v <= operand
	}
	return false
}
