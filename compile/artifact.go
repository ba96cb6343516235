// Copyright 2024 The tmplforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package compile implements the Compiler pass (spec §4.8): it runs the
// rate-limit check, inheritance resolution, macro processing, and
// dead-branch elimination in order, then lowers the surviving tree into
// an Instr program — the "target-code" spec §4.8 describes, here an
// instruction tree a runtime executor walks rather than literal source
// text, since no concrete target language is named.
package compile

import (
	"github.com/mohae/tmplforge/macro"
	"github.com/mohae/tmplforge/optimize"
	"github.com/mohae/tmplforge/parse"
)

// InstrKind identifies the shape of one lowered instruction.
type InstrKind int

const (
	InstrText InstrKind = iota
	InstrEmitLiteral
	InstrEmitVariable
	InstrForLoop
	InstrIf
	InstrMacroCall
)

// IfClause is one arm of a lowered if/elseif/else chain. IsElse clauses
// carry no PredicateExpr and are always taken if reached.
type IfClause struct {
	PredicateExpr string
	IsElse        bool
	Body          []*Instr
}

// Instr is one node of the lowered instruction tree. Only the fields
// relevant to Kind are meaningful; see the per-kind field groups below.
type Instr struct {
	Kind InstrKind

	// InstrText: literal bytes to append to the output accumulator.
	Text string

	// InstrEmitLiteral: a compile-time-folded constant to append.
	LiteralValue string

	// InstrEmitVariable: the opaque expression for the runtime
	// variable-resolver, and the filter chain to run over the result.
	Expr    string
	Filters []optimize.FilterStep

	// InstrForLoop.
	ItemName       string
	IterableExpr   string
	LoopFilterExpr string // optional "if EXPR" clause; empty if absent
	Body           []*Instr

	// InstrIf.
	Clauses []IfClause

	// InstrMacroCall: the resolved macro (by qualified name, for
	// diagnostics) and its bound arguments, plus the macro body, lowered
	// anew at each call site. The runtime saves/extends/restores its
	// variable scope around running Body (spec §4.8 step 6).
	MacroName   string
	ArgBindings map[string]macro.ArgValue
	MacroBody   []*Instr
}

// CompiledTemplate is the artifact produced by Compiler.Compile: an
// opaque lowered program plus a reference to the parsed template it came
// from, per spec §4.8's "opaque artifact plus a reference to the
// original parsed template".
type CompiledTemplate struct {
	Name    string
	Parsed  *parse.ParsedTemplate
	Program []*Instr
	Macros  *macro.Registry
}
