// Chainwatch - Wormhole Chain Killmail Surveillance
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chainwatch

package filter

import "strings"

// AttrType classifies the operand type an attribute accepts.
type AttrType string

const (
	// AttrInt is a scalar integer attribute on the killmail.
	AttrInt AttrType = "int"

	// AttrIntSet is an integer attribute scoped over the attacker list:
	// the leaf holds if any attacker satisfies it. Empty attacker lists
	// evaluate to false, never error.
	AttrIntSet AttrType = "int_set"

	// AttrNum is a scalar numeric (float) attribute.
	AttrNum AttrType = "num"

	// AttrChainBool is a chain pseudo-attribute resolved against the
	// topology snapshot, yielding Indeterminate under degraded topology.
	AttrChainBool AttrType = "chain_bool"

	// AttrChainHops is the chain-distance pseudo-attribute: an integer
	// hop count from the configured home system.
	AttrChainHops AttrType = "chain_hops"

	// AttrBag is an extension attribute from the killmail's attribute
	// bag, addressed as "attr.<key>". Values compare as raw strings or
	// numbers; a missing key evaluates to false.
	AttrBag AttrType = "bag"
)

// BagAttrPrefix addresses killmail extension attributes.
const BagAttrPrefix = "attr."

// Chain pseudo-attribute names.
const (
	AttrInChain         = "in_chain"
	AttrJumpsFromHome   = "jumps_from_home"
	AttrChainInhabitant = "chain_inhabitant"
)

var (
	eqOps      = map[Operator]bool{OpEq: true, OpNe: true}
	setOps     = map[Operator]bool{OpEq: true, OpNe: true, OpIn: true}
	rangeOps   = map[Operator]bool{OpEq: true, OpNe: true, OpGt: true, OpGte: true, OpLt: true, OpLte: true}
	hopOps     = map[Operator]bool{OpEq: true, OpGt: true, OpGte: true, OpLt: true, OpLte: true}
	boolOnlyEq = map[Operator]bool{OpEq: true}
)

// attrSpec describes one legal attribute: its operand type and the closed
// set of operators a leaf over it may use.
type attrSpec struct {
	typ AttrType
	ops map[Operator]bool
}

// attributes is the closed attribute registry. The compiler rejects any
// leaf whose attribute is absent here (bag attributes excepted).
var attributes = map[string]attrSpec{
	"solar_system_id":         {AttrInt, setOps},
	"victim_character_id":     {AttrInt, setOps},
	"victim_corporation_id":   {AttrInt, setOps},
	"victim_alliance_id":      {AttrInt, setOps},
	"victim_ship_type_id":     {AttrInt, setOps},
	"attacker_character_id":   {AttrIntSet, setOps},
	"attacker_corporation_id": {AttrIntSet, setOps},
	"attacker_alliance_id":    {AttrIntSet, setOps},
	"attacker_ship_type_id":   {AttrIntSet, setOps},
	"attacker_count":          {AttrInt, rangeOps},
	"value_destroyed":         {AttrNum, rangeOps},
	AttrInChain:               {AttrChainBool, boolOnlyEq},
	AttrJumpsFromHome:         {AttrChainHops, hopOps},
	AttrChainInhabitant:       {AttrChainBool, boolOnlyEq},
}

// lookupAttr resolves an attribute name to its spec. Bag attributes are
// recognized by prefix and permit equality operators only.
func lookupAttr(name string) (attrSpec, bool) {
	if spec, ok := attributes[name]; ok {
		return spec, true
	}
	if strings.HasPrefix(name, BagAttrPrefix) && len(name) > len(BagAttrPrefix) {
		return attrSpec{AttrBag, eqOps}, true
	}
	return attrSpec{}, false
}

// IsChainAttribute reports whether the attribute depends on the topology
// snapshot rather than the killmail alone.
func IsChainAttribute(name string) bool {
	switch name {
	case AttrInChain, AttrJumpsFromHome, AttrChainInhabitant:
		return true
	}
	return false
}
