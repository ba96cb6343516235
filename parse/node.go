// Copyright 2024 The tmplforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// The Node interface and its Copy-for-clone discipline are adapted from
// the teacher package's node.go, itself derived from the Go standard
// library's text/template/parse.
//
// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package parse

import "fmt"

// Pos is a byte offset into the original source text.
type Pos int

// NodeKind identifies the kind of a tree Node, per spec §3.
type NodeKind int

const (
	KindRoot NodeKind = iota
	KindText
	KindVariable
	KindForLoop
	KindIfCondition
	KindElseifCondition
	KindElseCondition
	KindExtends
	KindBlock
	KindParent
	KindMacro
	KindImport
)

var nodeKindNames = [...]string{
	KindRoot:             "ROOT",
	KindText:             "TEXT",
	KindVariable:         "VARIABLE",
	KindForLoop:          "FOR_LOOP",
	KindIfCondition:      "IF_CONDITION",
	KindElseifCondition:  "ELSEIF_CONDITION",
	KindElseCondition:    "ELSE_CONDITION",
	KindExtends:          "EXTENDS",
	KindBlock:            "BLOCK",
	KindParent:           "PARENT",
	KindMacro:            "MACRO",
	KindImport:           "IMPORT",
}

func (k NodeKind) String() string {
	if int(k) >= 0 && int(k) < len(nodeKindNames) {
		return nodeKindNames[k]
	}
	return fmt.Sprintf("NodeKind(%d)", int(k))
}

// FilterCall is one stage of a variable's filter chain: `| name : params`.
type FilterCall struct {
	Name   string
	Params []string // trimmed, still possibly quoted; unquoted by the runtime
}

// VariableAttrs holds the parsed shape of a VARIABLE node.
type VariableAttrs struct {
	Expr    string
	Filters []FilterCall
}

// ForLoopAttrs holds the parsed shape of a FOR_LOOP node's header, per
// spec §9's suggestion to promote capture groups to typed attributes.
type ForLoopAttrs struct {
	ItemName     string
	IterableExpr string
	FilterExpr   string // optional "if EXPR" clause; empty if absent
}

// ConditionAttrs holds the predicate of an IF_CONDITION or
// ELSEIF_CONDITION node. ELSE_CONDITION nodes carry no attributes.
type ConditionAttrs struct {
	PredicateExpr string
}

// ExtendsAttrs holds an EXTENDS node's parent template path.
type ExtendsAttrs struct {
	ParentPath string
}

// BlockAttrs holds a BLOCK node's name.
type BlockAttrs struct {
	Name string
}

// MacroParam is one entry in a macro's ordered signature.
type MacroParam struct {
	Name       string
	Default    string // literal text; meaningful only if HasDefault
	HasDefault bool
}

// MacroAttrs holds a MACRO node's signature.
type MacroAttrs struct {
	Name   string
	Params []MacroParam
}

// ImportAttrs holds an IMPORT node's source path and alias.
type ImportAttrs struct {
	Path  string
	Alias string
}

// Node is a node in the parsed syntax tree (spec §3). A Node is owned
// exclusively by its parent; the root is owned by the ParsedTemplate
// record that produced it.
type Node struct {
	Kind        NodeKind
	Pos         Pos
	LiteralText string // meaningful for KindText only
	Children    []*Node

	// Attrs holds one of *VariableAttrs, *ForLoopAttrs, *ConditionAttrs,
	// *ExtendsAttrs, *BlockAttrs, *MacroAttrs, *ImportAttrs depending on
	// Kind, or nil for KindRoot, KindText, KindElseCondition, and
	// KindParent.
	Attrs interface{}
}

// Variable returns the node's VariableAttrs, or nil if Kind != KindVariable.
func (n *Node) Variable() *VariableAttrs {
	a, _ := n.Attrs.(*VariableAttrs)
	return a
}

// ForLoop returns the node's ForLoopAttrs, or nil if Kind != KindForLoop.
func (n *Node) ForLoop() *ForLoopAttrs {
	a, _ := n.Attrs.(*ForLoopAttrs)
	return a
}

// Condition returns the node's ConditionAttrs, or nil if the node is not
// an IF_CONDITION or ELSEIF_CONDITION.
func (n *Node) Condition() *ConditionAttrs {
	a, _ := n.Attrs.(*ConditionAttrs)
	return a
}

// Extends returns the node's ExtendsAttrs, or nil if Kind != KindExtends.
func (n *Node) Extends() *ExtendsAttrs {
	a, _ := n.Attrs.(*ExtendsAttrs)
	return a
}

// Block returns the node's BlockAttrs, or nil if Kind != KindBlock.
func (n *Node) Block() *BlockAttrs {
	a, _ := n.Attrs.(*BlockAttrs)
	return a
}

// Macro returns the node's MacroAttrs, or nil if Kind != KindMacro.
func (n *Node) Macro() *MacroAttrs {
	a, _ := n.Attrs.(*MacroAttrs)
	return a
}

// Import returns the node's ImportAttrs, or nil if Kind != KindImport.
func (n *Node) Import() *ImportAttrs {
	a, _ := n.Attrs.(*ImportAttrs)
	return a
}

// newNode allocates a bare node of the given kind at the given position.
func newNode(kind NodeKind, pos Pos) *Node {
	return &Node{Kind: kind, Pos: pos}
}

// Copy performs a deep clone: children are recursively cloned and Attrs
// are copied by value, so the clone shares no mutable state with n.
// Every optimizer pass in this module clones rather than mutates its
// input, per spec §4.3/§4.6's "input tree is not mutated" contract.
func (n *Node) Copy() *Node {
	if n == nil {
		return nil
	}
	clone := &Node{
		Kind:        n.Kind,
		Pos:         n.Pos,
		LiteralText: n.LiteralText,
	}
	if len(n.Children) > 0 {
		clone.Children = make([]*Node, len(n.Children))
		for i, c := range n.Children {
			clone.Children[i] = c.Copy()
		}
	}
	clone.Attrs = copyAttrs(n.Attrs)
	return clone
}

func copyAttrs(attrs interface{}) interface{} {
	switch a := attrs.(type) {
	case *VariableAttrs:
		filters := make([]FilterCall, len(a.Filters))
		for i, f := range a.Filters {
			params := make([]string, len(f.Params))
			copy(params, f.Params)
			filters[i] = FilterCall{Name: f.Name, Params: params}
		}
		return &VariableAttrs{Expr: a.Expr, Filters: filters}
	case *ForLoopAttrs:
		cp := *a
		return &cp
	case *ConditionAttrs:
		cp := *a
		return &cp
	case *ExtendsAttrs:
		cp := *a
		return &cp
	case *BlockAttrs:
		cp := *a
		return &cp
	case *MacroAttrs:
		params := make([]MacroParam, len(a.Params))
		copy(params, a.Params)
		return &MacroAttrs{Name: a.Name, Params: params}
	case *ImportAttrs:
		cp := *a
		return &cp
	default:
		return nil
	}
}

// Walk calls fn for n and every descendant, depth-first, pre-order.
func Walk(n *Node, fn func(*Node)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.Children {
		Walk(c, fn)
	}
}

// TextLeaves returns the LiteralText of every KindText leaf in n, in
// depth-first order. Used by property 1 in spec §8 (parser round-trip
// shape).
func TextLeaves(n *Node) []string {
	var out []string
	Walk(n, func(child *Node) {
		if child.Kind == KindText {
			out = append(out, child.LiteralText)
		}
	})
	return out
}
