// Copyright 2024 The tmplforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// The explicit-stack folding algorithm is adapted from the teacher
// package's parse.go tree-building discipline (push on open, pop on
// close, attach-without-push for leaves), generalized to this
// language's directive set per spec §4.2.
//
// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package parse

import (
	"strings"

	"github.com/mohae/tmplforge/exprutil"
	"github.com/mohae/tmplforge/tmplerr"
)

// ParsedTemplate is the immutable result of parsing one template's
// source, per spec §3.
type ParsedTemplate struct {
	Name          string
	CleanedSource string
	Root          *Node
}

// Parse lexes and parses source into a ParsedTemplate. name is used only
// for diagnostics (it need not be unique or even non-empty).
func Parse(name, source string) (*ParsedTemplate, error) {
	cleaned, err := stripComments(name, source)
	if err != nil {
		return nil, err
	}
	logger.Debugf("parse %q: %d bytes after comment strip\n", name, len(cleaned))

	p := &parser{name: name, lex: lex(name, cleaned)}
	root, err := p.run()
	if err != nil {
		return nil, err
	}
	return &ParsedTemplate{Name: name, CleanedSource: cleaned, Root: root}, nil
}

// frame tracks one open IF_CONDITION while its branches are parsed, so
// ELSEIF/ELSE can append their node to the enclosing IF_CONDITION's
// children (spec §4.2: "push themselves onto the enclosing
// IF_CONDITION") without losing access to it once a branch other than
// the first becomes the attach point.
type ifFrame struct {
	ifNode *Node
}

type parser struct {
	name string
	lex  *lexer

	root      *Node
	container []*Node // attach-point stack; top is current container
	ifStack   []*ifFrame
}

func (p *parser) run() (*Node, error) {
	p.root = newNode(KindRoot, 0)
	p.push(p.root)

	for {
		tok := p.lex.nextItem()
		switch tok.typ {
		case TokEOF:
			if len(p.container) != 1 {
				return nil, tmplerr.New(tmplerr.StructureError, p.name,
					"unexpected end of input with unclosed block(s)")
			}
			return p.root, nil
		case TokError:
			return nil, tmplerr.New(tmplerr.ParseError, p.name, tok.errMsg)
		case TokText:
			p.attach(&Node{Kind: KindText, Pos: tok.pos, LiteralText: tok.lexeme})
		case TokVariable:
			node, err := p.buildVariable(tok)
			if err != nil {
				return nil, err
			}
			p.attach(node)
		case TokParent:
			if !p.insideBlock() {
				return nil, tmplerr.New(tmplerr.InvalidBlockDirective, p.name,
					"parent() used outside of a block")
			}
			p.attach(&Node{Kind: KindParent, Pos: tok.pos})
		case TokExtends:
			if err := p.requireRootContainer("extends"); err != nil {
				return nil, err
			}
			if hasNonWhitespaceText(p.root.Children) {
				return nil, tmplerr.New(tmplerr.InvalidExtendsDirective, p.name,
					"extends must be the first non-whitespace content in the template")
			}
			p.attach(&Node{Kind: KindExtends, Pos: tok.pos, Attrs: &ExtendsAttrs{ParentPath: tok.groups[0]}})
		case TokImport:
			if err := p.requireRootContainer("import"); err != nil {
				return nil, err
			}
			p.attach(&Node{Kind: KindImport, Pos: tok.pos, Attrs: &ImportAttrs{Path: tok.groups[0], Alias: tok.groups[1]}})
		case TokBlockStart:
			n := &Node{Kind: KindBlock, Pos: tok.pos, Attrs: &BlockAttrs{Name: tok.groups[0]}}
			p.attach(n)
			p.push(n)
		case TokBlockEnd:
			if err := p.pop(KindBlock, "endblock"); err != nil {
				return nil, err
			}
		case TokForStart:
			n := &Node{Kind: KindForLoop, Pos: tok.pos, Attrs: &ForLoopAttrs{
				ItemName: tok.groups[0], IterableExpr: tok.groups[1], FilterExpr: tok.groups[2],
			}}
			p.attach(n)
			p.push(n)
		case TokForEnd:
			if err := p.pop(KindForLoop, "endfor"); err != nil {
				return nil, err
			}
		case TokMacroStart:
			params, err := parseMacroSignature(tok.groups[1])
			if err != nil {
				return nil, tmplerr.Wrap(tmplerr.InvalidMacroDirective, p.name, tok.groups[0], err)
			}
			if err := p.requireRootContainer("macro"); err != nil {
				return nil, err
			}
			n := &Node{Kind: KindMacro, Pos: tok.pos, Attrs: &MacroAttrs{Name: tok.groups[0], Params: params}}
			p.attach(n)
			p.push(n)
		case TokMacroEnd:
			if err := p.pop(KindMacro, "endmacro"); err != nil {
				return nil, err
			}
		case TokIfStart:
			n := &Node{Kind: KindIfCondition, Pos: tok.pos, Attrs: &ConditionAttrs{PredicateExpr: tok.groups[0]}}
			p.attach(n)
			p.push(n)
			p.ifStack = append(p.ifStack, &ifFrame{ifNode: n})
		case TokElseif:
			if err := p.switchBranch(); err != nil {
				return nil, err
			}
			frame := p.ifStack[len(p.ifStack)-1]
			n := &Node{Kind: KindElseifCondition, Pos: tok.pos, Attrs: &ConditionAttrs{PredicateExpr: tok.groups[0]}}
			if err := p.appendElseBranch(frame.ifNode, n); err != nil {
				return nil, err
			}
			p.push(n)
		case TokElse:
			if err := p.switchBranch(); err != nil {
				return nil, err
			}
			frame := p.ifStack[len(p.ifStack)-1]
			n := &Node{Kind: KindElseCondition, Pos: tok.pos}
			if err := p.appendElseBranch(frame.ifNode, n); err != nil {
				return nil, err
			}
			p.push(n)
		case TokIfEnd:
			// Pop the currently open branch (the if-true body, or the
			// last elseif/else body), then close the IF_CONDITION frame.
			top := p.container[len(p.container)-1]
			if !isIfBranchKind(top.Kind) {
				return nil, tmplerr.New(tmplerr.StructureError, p.name, "endif with no matching if")
			}
			p.container = p.container[:len(p.container)-1]
			if len(p.ifStack) == 0 {
				return nil, tmplerr.New(tmplerr.StructureError, p.name, "endif with no matching if")
			}
			p.ifStack = p.ifStack[:len(p.ifStack)-1]
		default:
			return nil, tmplerr.New(tmplerr.ParseError, p.name, "unrecognized token")
		}
	}
}

func isIfBranchKind(k NodeKind) bool {
	return k == KindIfCondition || k == KindElseifCondition || k == KindElseCondition
}

// switchBranch pops the currently open if-branch so a new ELSEIF/ELSE can
// be appended to the enclosing IF_CONDITION.
func (p *parser) switchBranch() error {
	if len(p.container) == 0 || !isIfBranchKind(p.container[len(p.container)-1].Kind) {
		return tmplerr.New(tmplerr.StructureError, p.name, "elseif/else with no matching if")
	}
	if len(p.ifStack) == 0 {
		return tmplerr.New(tmplerr.StructureError, p.name, "elseif/else with no matching if")
	}
	p.container = p.container[:len(p.container)-1]
	return nil
}

// appendElseBranch appends branch (an ELSEIF_CONDITION or ELSE_CONDITION)
// to ifNode.Children, enforcing that at most one ELSE_CONDITION exists
// and that it follows any ELSEIF_CONDITIONs (spec §3).
func (p *parser) appendElseBranch(ifNode *Node, branch *Node) error {
	if len(ifNode.Children) > 0 {
		last := ifNode.Children[len(ifNode.Children)-1]
		if last.Kind == KindElseCondition {
			return tmplerr.New(tmplerr.StructureError, p.name, "only one else allowed, and it must be last")
		}
	}
	ifNode.Children = append(ifNode.Children, branch)
	return nil
}

func (p *parser) push(n *Node) {
	p.container = append(p.container, n)
}

// pop closes the current container, verifying it matches want; endTag
// names the closing directive for error messages.
func (p *parser) pop(want NodeKind, endTag string) error {
	if len(p.container) == 0 || p.container[len(p.container)-1].Kind != want {
		return tmplerr.New(tmplerr.StructureError, p.name, endTag+" with no matching opener")
	}
	p.container = p.container[:len(p.container)-1]
	return nil
}

func (p *parser) attach(n *Node) {
	top := p.container[len(p.container)-1]
	top.Children = append(top.Children, n)
}

func (p *parser) insideBlock() bool {
	for _, c := range p.container {
		if c.Kind == KindBlock {
			return true
		}
	}
	return false
}

func (p *parser) requireRootContainer(what string) error {
	if p.container[len(p.container)-1] != p.root {
		kind := tmplerr.InvalidExtendsDirective
		if what == "import" {
			kind = tmplerr.InvalidImportDirective
		} else if what == "macro" {
			kind = tmplerr.InvalidMacroDirective
		}
		return tmplerr.New(kind, p.name, what+" must be a top-level directive")
	}
	return nil
}

func hasNonWhitespaceText(children []*Node) bool {
	for _, c := range children {
		if c.Kind == KindText && strings.TrimSpace(c.LiteralText) != "" {
			return true
		}
	}
	return false
}

// buildVariable parses a VARIABLE token's captured expression into the
// value expression plus its filter chain, per spec §4.1/§6.
func (p *parser) buildVariable(tok token) (*Node, error) {
	raw := tok.groups[0]
	parts := exprutil.SplitFilterChain(raw)
	expr := strings.TrimSpace(parts[0])
	var filters []FilterCall
	for _, part := range parts[1:] {
		fc, err := parseFilterCall(part)
		if err != nil {
			return nil, tmplerr.Wrap(tmplerr.ParseError, p.name, raw, err)
		}
		filters = append(filters, fc)
	}
	return &Node{Kind: KindVariable, Pos: tok.pos, Attrs: &VariableAttrs{Expr: expr, Filters: filters}}, nil
}

// parseFilterCall parses one `name` or `name : p1, p2` filter-chain
// segment, per spec §6.
func parseFilterCall(segment string) (FilterCall, error) {
	segment = strings.TrimSpace(segment)
	nameAndParams := strings.SplitN(segment, ":", 2)
	name := strings.TrimSpace(nameAndParams[0])
	if !exprutil.IsIdentifier(name) {
		return FilterCall{}, tmplerr.New(tmplerr.InvalidFilter, "", segment)
	}
	var params []string
	if len(nameAndParams) == 2 {
		for _, raw := range exprutil.SplitTopLevel(nameAndParams[1], ',') {
			params = append(params, strings.TrimSpace(raw))
		}
	}
	return FilterCall{Name: name, Params: params}, nil
}

// parseMacroSignature parses a comma-separated list of bare names or
// name=literal defaults, per spec §4.4.
func parseMacroSignature(raw string) ([]MacroParam, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var params []MacroParam
	seen := map[string]bool{}
	for _, part := range exprutil.SplitTopLevel(raw, ',') {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		eq := exprutil.IndexTopLevelEquals(part)
		var p MacroParam
		if eq < 0 {
			p = MacroParam{Name: strings.TrimSpace(part)}
		} else {
			p = MacroParam{
				Name:       strings.TrimSpace(part[:eq]),
				Default:    strings.TrimSpace(part[eq+1:]),
				HasDefault: true,
			}
		}
		if !exprutil.IsIdentifier(p.Name) {
			return nil, tmplerr.New(tmplerr.InvalidMacroDirective, "", "bad parameter name: "+p.Name)
		}
		if seen[p.Name] {
			return nil, tmplerr.New(tmplerr.InvalidMacroDirective, "", "duplicate parameter: "+p.Name)
		}
		seen[p.Name] = true
		params = append(params, p)
	}
	return params, nil
}
