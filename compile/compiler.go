// Copyright 2024 The tmplforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compile

import (
	"github.com/mohae/tmplforge/inherit"
	"github.com/mohae/tmplforge/macro"
	"github.com/mohae/tmplforge/optimize"
	"github.com/mohae/tmplforge/parse"
	"github.com/mohae/tmplforge/ratelimit"
	"github.com/mohae/tmplforge/tmplerr"
)

// Loader loads a template's source text by path; it satisfies both
// inherit.Loader and macro.Loader, since both name the same shape.
type Loader interface {
	Load(path string) (string, error)
}

// Compiler lowers template source into a CompiledTemplate, running the
// passes in spec §4.8's fixed order. Loader and Limiter are optional:
// when Loader is nil, EXTENDS/IMPORT directives are left unresolved (the
// caller is compiling a self-contained fragment); when Limiter is nil,
// no rate limiting is applied.
type Compiler struct {
	Loader  Loader
	Limiter *ratelimit.Limiter
}

// Compile runs the full pipeline for template name with source src. name
// may be empty for an anonymous/inline compile, which skips rate
// limiting and inheritance/import resolution regardless of whether
// Loader/Limiter are configured (spec §4.8 steps 1-3 are conditioned on
// "a name is provided").
func (c *Compiler) Compile(name, src string) (*CompiledTemplate, error) {
	if c.Limiter != nil && name != "" {
		accepted, wait := c.Limiter.Check(name)
		if !accepted {
			return nil, tmplerr.RateLimited(name, wait)
		}
	}

	pt, err := parse.Parse(name, src)
	if err != nil {
		return nil, err
	}

	root := pt.Root
	if c.Loader != nil && name != "" {
		resolved, err := inherit.Resolve(name, root, c.Loader)
		if err != nil {
			return nil, err
		}
		root = resolved
	}

	reg := macro.NewRegistry()
	if c.Loader != nil && name != "" {
		stripped, extracted, err := macro.Process(name, root, c.Loader)
		if err != nil {
			return nil, err
		}
		root = stripped
		reg = extracted
	} else if name != "" {
		if err := macro.Extract(name, root, reg); err != nil {
			return nil, err
		}
		root = macro.Strip(root)
	}

	root = optimize.Eliminate(root)

	program, err := lowerChildren(root.Children, reg, name)
	if err != nil {
		return nil, err
	}

	logger.Debugf("compiled template %q: %d top-level instructions", name, len(program))
	return &CompiledTemplate{Name: name, Parsed: pt, Program: program, Macros: reg}, nil
}

// lowerChildren lowers a sibling list, splicing BLOCK nodes transparently
// (spec §4.8 step 5) and dropping directives that contribute nothing to
// the emitted program.
func lowerChildren(nodes []*parse.Node, reg *macro.Registry, templateName string) ([]*Instr, error) {
	var out []*Instr
	for _, n := range nodes {
		if n.Kind == parse.KindBlock {
			inner, err := lowerChildren(n.Children, reg, templateName)
			if err != nil {
				return nil, err
			}
			out = append(out, inner...)
			continue
		}
		instr, err := lowerNode(n, reg, templateName)
		if err != nil {
			return nil, err
		}
		if instr != nil {
			out = append(out, instr)
		}
	}
	return out, nil
}

func lowerNode(n *parse.Node, reg *macro.Registry, templateName string) (*Instr, error) {
	switch n.Kind {
	case parse.KindText:
		return &Instr{Kind: InstrText, Text: n.LiteralText}, nil
	case parse.KindVariable:
		return lowerVariable(n, reg, templateName)
	case parse.KindForLoop:
		return lowerForLoop(n, reg, templateName)
	case parse.KindIfCondition:
		return lowerIf(n, reg, templateName)
	case parse.KindExtends, parse.KindParent, parse.KindMacro, parse.KindImport:
		return nil, nil
	default:
		return nil, nil
	}
}

// lowerVariable implements spec §4.8 step 5's VARIABLE case: macro-call
// shapes resolve against the registry first, then constant-folding,
// falling back to a runtime-resolved variable; the filter chain is
// lowered in either case.
func lowerVariable(n *parse.Node, reg *macro.Registry, templateName string) (*Instr, error) {
	attrs := n.Variable()

	if instr, handled, err := lowerMacroCallIfShaped(attrs.Expr, reg, templateName); err != nil {
		return nil, err
	} else if handled {
		return instr, nil
	}

	var instr *Instr
	folded := optimize.Fold(attrs.Expr)
	if folded != attrs.Expr {
		instr = &Instr{Kind: InstrEmitLiteral, LiteralValue: folded}
	} else {
		instr = &Instr{Kind: InstrEmitVariable, Expr: attrs.Expr}
	}
	instr.Filters = optimize.InlineFilterChain(attrs.Filters)
	return instr, nil
}

func lowerMacroCallIfShaped(expr string, reg *macro.Registry, templateName string) (*Instr, bool, error) {
	alias, name, rawArgs, shaped := macro.ParseCallShape(expr)
	if !shaped {
		return nil, false, nil
	}
	var def *macro.MacroDefinition
	var found bool
	qualified := name
	if alias == "" {
		def, found = reg.Lookup(name)
	} else {
		qualified = alias + "." + name
		def, found = reg.LookupQualified(alias, name)
	}
	if !found {
		return nil, false, nil
	}

	bound, err := macro.BindArguments(templateName, def, rawArgs)
	if err != nil {
		return nil, true, err
	}
	body, err := lowerChildren(def.Body, reg, templateName)
	if err != nil {
		return nil, true, err
	}
	return &Instr{
		Kind:        InstrMacroCall,
		MacroName:   qualified,
		ArgBindings: macro.LowerBindings(bound),
		MacroBody:   body,
	}, true, nil
}

func lowerForLoop(n *parse.Node, reg *macro.Registry, templateName string) (*Instr, error) {
	attrs := n.ForLoop()
	body, err := lowerChildren(n.Children, reg, templateName)
	if err != nil {
		return nil, err
	}
	return &Instr{
		Kind:           InstrForLoop,
		ItemName:       attrs.ItemName,
		IterableExpr:   attrs.IterableExpr,
		LoopFilterExpr: attrs.FilterExpr,
		Body:           body,
	}, nil
}

func lowerIf(n *parse.Node, reg *macro.Registry, templateName string) (*Instr, error) {
	branches := optimize.SplitIfBranches(n)
	clauses := make([]IfClause, 0, len(branches))
	for _, b := range branches {
		body, err := lowerChildren(b.Body, reg, templateName)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, IfClause{
			PredicateExpr: b.Predicate,
			IsElse:        b.Kind == parse.KindElseCondition,
			Body:          body,
		})
	}
	return &Instr{Kind: InstrIf, Clauses: clauses}, nil
}
