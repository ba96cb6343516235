// Copyright 2024 The tmplforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package optimize

import "github.com/mohae/tmplforge/parse"

// BranchInfo is one clause of an if/elseif/else group, normalized away
// from the tree's nesting: the parser attaches ELSEIF_CONDITION and
// ELSE_CONDITION nodes as trailing children of the IF_CONDITION node
// itself, alongside the if-true body's own statements. Exported so the
// compiler's lowering pass can walk the same grouping after elimination.
type BranchInfo struct {
	Kind      parse.NodeKind
	Pos       parse.Pos
	Predicate string
	Body      []*parse.Node
}

// Eliminate rewrites tree, replacing each if/elseif/else group whose
// predicates fold to constants per spec §4.6. It never mutates n; the
// result is a fresh tree.
func Eliminate(n *parse.Node) *parse.Node {
	if n == nil {
		return nil
	}
	clone := n.Copy()
	clone.Children = eliminateChildren(n.Children)
	return clone
}

func eliminateChildren(children []*parse.Node) []*parse.Node {
	var out []*parse.Node
	for _, c := range children {
		if c.Kind == parse.KindIfCondition {
			out = append(out, rewriteIf(c)...)
			continue
		}
		out = append(out, Eliminate(c))
	}
	return out
}

// SplitIfBranches separates ifNode's own if-true body from its trailing
// ELSEIF_CONDITION/ELSE_CONDITION children.
func SplitIfBranches(ifNode *parse.Node) []BranchInfo {
	trailStart := len(ifNode.Children)
	for i := len(ifNode.Children) - 1; i >= 0; i-- {
		k := ifNode.Children[i].Kind
		if k == parse.KindElseifCondition || k == parse.KindElseCondition {
			trailStart = i
			continue
		}
		break
	}
	branches := []BranchInfo{{
		Kind:      parse.KindIfCondition,
		Pos:       ifNode.Pos,
		Predicate: ifNode.Condition().PredicateExpr,
		Body:      ifNode.Children[:trailStart],
	}}
	for _, c := range ifNode.Children[trailStart:] {
		b := BranchInfo{Kind: c.Kind, Pos: c.Pos, Body: c.Children}
		if c.Kind == parse.KindElseifCondition {
			b.Predicate = c.Condition().PredicateExpr
		}
		branches = append(branches, b)
	}
	return branches
}

// rewriteIf implements spec §4.6's rewrite: the first constant-true
// branch replaces the whole group with its (recursively optimized)
// body; constant-false branches are dropped; the first non-constant
// branch halts folding and the remainder is kept, recursively optimized.
// If every predicate is constant-false with no ELSE, the group vanishes.
func rewriteIf(ifNode *parse.Node) []*parse.Node {
	branches := SplitIfBranches(ifNode)
	for idx, b := range branches {
		if b.Kind == parse.KindElseCondition {
			return eliminateChildren(b.Body)
		}
		folded := Fold(b.Predicate)
		switch {
		case IsConstantTrue(folded):
			logger.Debugf("eliminated if/elseif/else at %v: branch %d proven constant-true", ifNode.Pos, idx)
			return eliminateChildren(b.Body)
		case IsConstantFalse(folded):
			logger.Debugf("eliminated if/elseif/else at %v: branch %d proven constant-false", ifNode.Pos, idx)
			continue
		default:
			return []*parse.Node{rebuildFrom(branches, idx)}
		}
	}
	return nil
}

// rebuildFrom reconstructs an IF_CONDITION node starting at branches[idx]
// (promoted to the head even if it was originally an ELSEIF_CONDITION,
// since everything before it was proven constant-false and dropped),
// followed by the untouched remaining branches, each recursively
// optimized.
func rebuildFrom(branches []BranchInfo, idx int) *parse.Node {
	head := branches[idx]
	newIf := &parse.Node{
		Kind:     parse.KindIfCondition,
		Pos:      head.Pos,
		Attrs:    &parse.ConditionAttrs{PredicateExpr: head.Predicate},
		Children: eliminateChildren(head.Body),
	}
	for _, b := range branches[idx+1:] {
		var child *parse.Node
		if b.Kind == parse.KindElseCondition {
			child = &parse.Node{Kind: parse.KindElseCondition, Pos: b.Pos, Children: eliminateChildren(b.Body)}
		} else {
			child = &parse.Node{
				Kind:     parse.KindElseifCondition,
				Pos:      b.Pos,
				Attrs:    &parse.ConditionAttrs{PredicateExpr: b.Predicate},
				Children: eliminateChildren(b.Body),
			}
		}
		newIf.Children = append(newIf.Children, child)
	}
	return newIf
}
