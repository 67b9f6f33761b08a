// Chainwatch - Wormhole Chain Killmail Surveillance
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chainwatch

package filter

import (
	"github.com/goccy/go-json"
)

// NodeKind discriminates the filter node variants.
type NodeKind string

const (
	KindLeaf NodeKind = "leaf"
	KindAnd  NodeKind = "and"
	KindOr   NodeKind = "or"
	KindNot  NodeKind = "not"
)

// Operator is a leaf comparison operator. The legal set depends on the
// attribute type; the compiler rejects illegal combinations.
type Operator string

const (
	OpEq  Operator = "eq"
	OpNe  Operator = "ne"
	OpIn  Operator = "in"
	OpGt  Operator = "gt"
	OpGte Operator = "gte"
	OpLt  Operator = "lt"
	OpLte Operator = "lte"
)

// Node is one node of a filter tree. A node is either a leaf (Attribute,
// Op, operand) or a composite (Children); the compiler guarantees the tree
// is finite, acyclic, and well-typed before evaluation ever sees it.
//
// Operand fields are split by type so the evaluator never type-switches on
// interface{} at match time. Exactly one operand field is set on a
// compiled leaf, determined by the attribute's declared type.
type Node struct {
	Kind NodeKind `json:"kind"`

	// Leaf fields.
	Attribute string   `json:"attribute,omitempty"`
	Op        Operator `json:"op,omitempty"`
	IntValue  *int64   `json:"int_value,omitempty"`
	IntSet    []int64  `json:"int_set,omitempty"`
	NumValue  *float64 `json:"num_value,omitempty"`
	BoolValue *bool    `json:"bool_value,omitempty"`
	StrValue  *string  `json:"str_value,omitempty"`

	// Composite fields. AND/OR require at least one child; NOT exactly one.
	Children []*Node `json:"children,omitempty"`
}

// Depth returns the height of the tree rooted at n. A leaf has depth 1.
func (n *Node) Depth() int {
	if n == nil {
		return 0
	}
	max := 0
	for _, c := range n.Children {
		if d := c.Depth(); d > max {
			max = d
		}
	}
	return max + 1
}

// Equal reports structural equality of two trees.
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	if n.Kind != other.Kind || n.Attribute != other.Attribute || n.Op != other.Op {
		return false
	}
	if !eqPtr(n.IntValue, other.IntValue) || !eqPtr(n.NumValue, other.NumValue) ||
		!eqPtr(n.BoolValue, other.BoolValue) || !eqPtr(n.StrValue, other.StrValue) {
		return false
	}
	if len(n.IntSet) != len(other.IntSet) {
		return false
	}
	for i, v := range n.IntSet {
		if other.IntSet[i] != v {
			return false
		}
	}
	if len(n.Children) != len(other.Children) {
		return false
	}
	for i, c := range n.Children {
		if !c.Equal(other.Children[i]) {
			return false
		}
	}
	return true
}

func eqPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Serialize encodes the tree to its canonical JSON definition form.
// Compile(Serialize(tree)) reproduces the tree exactly.
func (n *Node) Serialize() ([]byte, error) {
	return json.Marshal(n)
}

// Leaf constructors used by tests and by internal profile tooling.

// IntLeaf builds a leaf comparing an integer attribute.
func IntLeaf(attribute string, op Operator, v int64) *Node {
	return &Node{Kind: KindLeaf, Attribute: attribute, Op: op, IntValue: &v}
}

// NumLeaf builds a leaf comparing a numeric (float) attribute.
func NumLeaf(attribute string, op Operator, v float64) *Node {
	return &Node{Kind: KindLeaf, Attribute: attribute, Op: op, NumValue: &v}
}

// SetLeaf builds a membership leaf over an integer attribute.
func SetLeaf(attribute string, op Operator, vs ...int64) *Node {
	return &Node{Kind: KindLeaf, Attribute: attribute, Op: op, IntSet: vs}
}

// BoolLeaf builds a leaf over a boolean or chain pseudo-attribute.
func BoolLeaf(attribute string, v bool) *Node {
	return &Node{Kind: KindLeaf, Attribute: attribute, Op: OpEq, BoolValue: &v}
}

// And builds a conjunction over the given children.
func And(children ...*Node) *Node {
	return &Node{Kind: KindAnd, Children: children}
}

// Or builds a disjunction over the given children.
func Or(children ...*Node) *Node {
	return &Node{Kind: KindOr, Children: children}
}

// Not builds a negation of the given child.
func Not(child *Node) *Node {
	return &Node{Kind: KindNot, Children: []*Node{child}}
}
