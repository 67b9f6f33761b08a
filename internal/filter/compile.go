// Chainwatch - Wormhole Chain Killmail Surveillance
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chainwatch

package filter

import (
	"fmt"

	"github.com/goccy/go-json"
)

// DefaultMaxDepth bounds filter tree height. Deep trees are almost always
// authoring mistakes; the evaluator is recursive and this keeps stack use
// trivially bounded.
const DefaultMaxDepth = 16

// CompileError is a structured definition error naming the offending node
// by its path in the tree (e.g. "root.children[1].children[0]"). Compile
// errors surface synchronously to the profile editor and never reach
// dispatch.
type CompileError struct {
	Path string
	Msg  string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("filter compile: %s: %s", e.Path, e.Msg)
}

// Compiler validates raw profile definitions into immutable filter trees.
// Compilation is pure: the same definition always produces the same tree,
// and a compiled tree is never mutated afterwards.
type Compiler struct {
	maxDepth int
}

// NewCompiler returns a compiler with the given depth limit.
// A non-positive limit falls back to DefaultMaxDepth.
func NewCompiler(maxDepth int) *Compiler {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Compiler{maxDepth: maxDepth}
}

// Compile parses and validates a JSON filter definition. On success the
// returned tree is safe for concurrent evaluation; on failure the error is
// a *CompileError naming the offending node.
func (c *Compiler) Compile(definition []byte) (*Node, error) {
	var root Node
	if err := json.Unmarshal(definition, &root); err != nil {
		return nil, &CompileError{Path: "root", Msg: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if err := c.ValidateTree(&root); err != nil {
		return nil, err
	}
	return &root, nil
}

// ValidateTree validates an already-decoded tree. Used by Compile and by
// callers that construct trees programmatically.
func (c *Compiler) ValidateTree(root *Node) error {
	if root == nil {
		return &CompileError{Path: "root", Msg: "empty definition"}
	}
	if d := root.Depth(); d > c.maxDepth {
		return &CompileError{Path: "root", Msg: fmt.Sprintf("depth %d exceeds maximum %d", d, c.maxDepth)}
	}
	return c.validateNode(root, "root")
}

func (c *Compiler) validateNode(n *Node, path string) error {
	switch n.Kind {
	case KindLeaf:
		return c.validateLeaf(n, path)
	case KindAnd, KindOr:
		if len(n.Children) == 0 {
			return &CompileError{Path: path, Msg: fmt.Sprintf("%s node requires at least one child", n.Kind)}
		}
	case KindNot:
		if len(n.Children) != 1 {
			return &CompileError{Path: path, Msg: fmt.Sprintf("not node requires exactly one child, got %d", len(n.Children))}
		}
	default:
		return &CompileError{Path: path, Msg: fmt.Sprintf("unknown node kind %q", n.Kind)}
	}

	if n.Attribute != "" || n.Op != "" {
		return &CompileError{Path: path, Msg: fmt.Sprintf("%s node must not carry leaf fields", n.Kind)}
	}
	for i, child := range n.Children {
		if child == nil {
			return &CompileError{Path: fmt.Sprintf("%s.children[%d]", path, i), Msg: "null child"}
		}
		if err := c.validateNode(child, fmt.Sprintf("%s.children[%d]", path, i)); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) validateLeaf(n *Node, path string) error {
	if len(n.Children) != 0 {
		return &CompileError{Path: path, Msg: "leaf node must not have children"}
	}
	if n.Attribute == "" {
		return &CompileError{Path: path, Msg: "leaf node requires an attribute"}
	}
	spec, ok := lookupAttr(n.Attribute)
	if !ok {
		return &CompileError{Path: path, Msg: fmt.Sprintf("unknown attribute %q", n.Attribute)}
	}
	if !spec.ops[n.Op] {
		return &CompileError{Path: path, Msg: fmt.Sprintf("operator %q not allowed for attribute %q", n.Op, n.Attribute)}
	}
	return c.validateOperand(n, spec, path)
}

// validateOperand checks that exactly the operand field matching the
// attribute type is set. Numeric attributes take numeric operands with no
// implicit conversion between int and float forms.
func (c *Compiler) validateOperand(n *Node, spec attrSpec, path string) error {
	switch spec.typ {
	case AttrInt, AttrIntSet, AttrChainHops:
		if n.Op == OpIn {
			if len(n.IntSet) == 0 {
				return &CompileError{Path: path, Msg: "in operator requires a non-empty int_set operand"}
			}
			if n.IntValue != nil || n.NumValue != nil || n.BoolValue != nil || n.StrValue != nil {
				return &CompileError{Path: path, Msg: "in operator takes only the int_set operand"}
			}
			return nil
		}
		if n.IntValue == nil {
			return &CompileError{Path: path, Msg: fmt.Sprintf("attribute %q requires an int_value operand", n.Attribute)}
		}
		if len(n.IntSet) != 0 || n.NumValue != nil || n.BoolValue != nil || n.StrValue != nil {
			return &CompileError{Path: path, Msg: "exactly one operand field may be set"}
		}
	case AttrNum:
		if n.NumValue == nil {
			return &CompileError{Path: path, Msg: fmt.Sprintf("attribute %q requires a num_value operand", n.Attribute)}
		}
		if n.IntValue != nil || len(n.IntSet) != 0 || n.BoolValue != nil || n.StrValue != nil {
			return &CompileError{Path: path, Msg: "exactly one operand field may be set"}
		}
	case AttrChainBool:
		if n.BoolValue == nil {
			return &CompileError{Path: path, Msg: fmt.Sprintf("attribute %q requires a bool_value operand", n.Attribute)}
		}
		if n.IntValue != nil || len(n.IntSet) != 0 || n.NumValue != nil || n.StrValue != nil {
			return &CompileError{Path: path, Msg: "exactly one operand field may be set"}
		}
	case AttrBag:
		set := 0
		for _, ok := range []bool{n.IntValue != nil, n.NumValue != nil, n.BoolValue != nil, n.StrValue != nil} {
			if ok {
				set++
			}
		}
		if set != 1 || len(n.IntSet) != 0 {
			return &CompileError{Path: path, Msg: "bag attribute requires exactly one scalar operand"}
		}
	}
	return nil
}
