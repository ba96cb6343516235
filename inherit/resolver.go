// Copyright 2024 The tmplforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package inherit implements the InheritanceResolver pass (spec §4.3): it
// walks a template's EXTENDS chain, substituting BLOCK overrides into the
// parent's tree and expanding parent() references, while detecting cycles
// across the chain being resolved.
package inherit

import (
	"github.com/mohae/tmplforge/parse"
	"github.com/mohae/tmplforge/tmplerr"
)

// Loader loads the source text of a template by path, returning a
// tmplerr.TemplateNotFound error (or one wrapping it) when the name is
// unknown. Resolve propagates loader errors verbatim.
type Loader interface {
	Load(path string) (string, error)
}

// Resolve walks name's EXTENDS chain (if any) starting from root, merging
// BLOCK overrides depth-first into each ancestor and returning a single
// self-contained tree with no EXTENDS node. A template with no EXTENDS is
// returned as a structurally equal clone (spec §8 property 3).
func Resolve(name string, root *parse.Node, loader Loader) (*parse.Node, error) {
	return resolve(name, root, loader, nil)
}

func resolve(name string, root *parse.Node, loader Loader, visiting []string) (*parse.Node, error) {
	for _, v := range visiting {
		if v == name {
			cycle := append(append([]string{}, visiting...), name)
			return nil, tmplerr.Cyclic(name, cycle)
		}
	}
	visiting = append(visiting, name)

	extendsNode := findExtends(root)
	if extendsNode == nil {
		return root.Copy(), nil
	}

	parentPath := extendsNode.Extends().ParentPath
	parentSrc, err := loader.Load(parentPath)
	if err != nil {
		return nil, err
	}
	parentParsed, err := parse.Parse(parentPath, parentSrc)
	if err != nil {
		return nil, err
	}
	resolvedParent, err := resolve(parentPath, parentParsed.Root, loader, visiting)
	if err != nil {
		return nil, err
	}

	childBlocks := collectBlocks(root)
	merged := substitute(resolvedParent, childBlocks)
	merged.Children = append(merged.Children, childDeclarations(root)...)
	logger.Debugf("resolved %q against parent %q: %d block overrides", name, parentPath, len(childBlocks))
	return merged, nil
}

// childDeclarations returns clones of root's own top-level MACRO/IMPORT
// nodes. substitute only carries resolvedParent's tree plus the child's
// BLOCK overrides, so a child that both extends and declares its own
// macros or imports would otherwise lose them before macro.Process ever
// sees the resolved tree.
func childDeclarations(root *parse.Node) []*parse.Node {
	var out []*parse.Node
	for _, c := range root.Children {
		if c.Kind == parse.KindMacro || c.Kind == parse.KindImport {
			out = append(out, c.Copy())
		}
	}
	return out
}

// findExtends returns root's direct EXTENDS child, if any. Parse already
// enforces that EXTENDS, when present, is top-level with no non-whitespace
// text before it.
func findExtends(root *parse.Node) *parse.Node {
	for _, c := range root.Children {
		if c.Kind == parse.KindExtends {
			return c
		}
	}
	return nil
}

// collectBlocks maps BLOCK name to its defining node across all of root's
// descendants, depth-first; a later definition of the same name overrides
// an earlier one, per spec §4.3 step 3.
func collectBlocks(root *parse.Node) map[string]*parse.Node {
	blocks := make(map[string]*parse.Node)
	parse.Walk(root, func(n *parse.Node) {
		if n.Kind == parse.KindBlock {
			blocks[n.Block().Name] = n
		}
	})
	return blocks
}

// substitute clones parent, replacing every BLOCK whose name appears in
// childBlocks with the child's override body (expanding any parent()
// reference within that body into parent's own, already-substituted,
// block body), and continuing to descend into the substituted body so
// nested BLOCKs may themselves be overridden (spec §4.3 steps 4-5).
func substitute(n *parse.Node, childBlocks map[string]*parse.Node) *parse.Node {
	if n.Kind != parse.KindBlock {
		clone := shallowClone(n)
		clone.Children = substituteChildren(n.Children, childBlocks)
		return clone
	}

	name := n.Block().Name
	childDef, overridden := childBlocks[name]
	if !overridden {
		clone := shallowClone(n)
		clone.Children = substituteChildren(n.Children, childBlocks)
		return clone
	}

	parentBody := substituteChildren(n.Children, childBlocks)
	childBody := cloneList(childDef.Children)
	spliced := spliceParentRefs(childBody, parentBody)
	finalChildren := substituteChildren(spliced, childBlocks)

	clone := shallowClone(n)
	clone.Children = finalChildren
	return clone
}

func substituteChildren(children []*parse.Node, childBlocks map[string]*parse.Node) []*parse.Node {
	if len(children) == 0 {
		return nil
	}
	out := make([]*parse.Node, len(children))
	for i, c := range children {
		out[i] = substitute(c, childBlocks)
	}
	return out
}

// spliceParentRefs clones nodes, replacing every PARENT node with
// parentBody spliced in place; it does not descend into nested BLOCK
// nodes, whose own parent() references belong to their own substitution
// (handled by the caller's subsequent substituteChildren pass).
func spliceParentRefs(nodes []*parse.Node, parentBody []*parse.Node) []*parse.Node {
	var out []*parse.Node
	for _, n := range nodes {
		switch n.Kind {
		case parse.KindParent:
			out = append(out, cloneList(parentBody)...)
		case parse.KindBlock:
			out = append(out, n.Copy())
		default:
			clone := shallowClone(n)
			clone.Children = spliceParentRefs(n.Children, parentBody)
			out = append(out, clone)
		}
	}
	return out
}

func cloneList(nodes []*parse.Node) []*parse.Node {
	out := make([]*parse.Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Copy()
	}
	return out
}

// shallowClone copies a node's own fields (kind, position, text, attrs)
// without its children; callers assign Children separately once the
// recursive substitution of them is known.
func shallowClone(n *parse.Node) *parse.Node {
	full := n.Copy()
	full.Children = nil
	return full
}
