// Chainwatch - Wormhole Chain Killmail Surveillance
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chainwatch

// Package filter implements watch profile filter trees: a closed tagged
// variant of boolean nodes (leaf, and, or, not), a compiler that validates
// raw definitions into immutable trees, and a short-circuiting evaluator
// over killmails and chain topology snapshots.
//
// Evaluation uses three-valued (Kleene) logic. Chain-aware leaves resolve
// to Indeterminate when the topology snapshot is stale or missing, and
// composites propagate Indeterminate unless a definite sibling
// short-circuits it. This keeps simple profiles matching normally during
// topology outages without producing false positives or negatives for
// chain-dependent ones.
package filter

// Tristate is a three-valued truth value.
type Tristate int8

const (
	// False is a definite non-match.
	False Tristate = iota

	// True is a definite match.
	True

	// Indeterminate means the leaf could not be resolved with the
	// available topology data.
	Indeterminate
)

// String returns the lowercase name of the truth value.
func (t Tristate) String() string {
	switch t {
	case False:
		return "false"
	case True:
		return "true"
	default:
		return "indeterminate"
	}
}

// And combines two truth values under Kleene conjunction.
// False dominates; Indeterminate survives only against True.
func (t Tristate) And(other Tristate) Tristate {
	if t == False || other == False {
		return False
	}
	if t == Indeterminate || other == Indeterminate {
		return Indeterminate
	}
	return True
}

// Or combines two truth values under Kleene disjunction.
// True dominates; Indeterminate survives only against False.
func (t Tristate) Or(other Tristate) Tristate {
	if t == True || other == True {
		return True
	}
	if t == Indeterminate || other == Indeterminate {
		return Indeterminate
	}
	return False
}

// Not inverts the truth value. Indeterminate stays indeterminate.
func (t Tristate) Not() Tristate {
	switch t {
	case True:
		return False
	case False:
		return True
	default:
		return Indeterminate
	}
}

// FromBool converts a definite boolean to a Tristate.
func FromBool(b bool) Tristate {
	if b {
		return True
	}
	return False
}
