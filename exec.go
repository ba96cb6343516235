// Copyright 2024 The tmplforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tmplforge

import (
	"bytes"
	"strconv"

	"github.com/mohae/tmplforge/compile"
	"github.com/mohae/tmplforge/exprutil"
	"github.com/mohae/tmplforge/optimize"
	"github.com/mohae/tmplforge/runtimehelpers"
)

// execProgram runs program against scope, appending rendered output to
// b. This is the reference renderer for compile.CompiledTemplate.Program
// — a caller with different output needs may walk Program itself.
func execProgram(b *bytes.Buffer, program []*compile.Instr, scope *runtimehelpers.Scope, helpers runtimehelpers.HelperTable) error {
	for _, instr := range program {
		if err := execInstr(b, instr, scope, helpers); err != nil {
			return err
		}
	}
	return nil
}

func execInstr(b *bytes.Buffer, instr *compile.Instr, scope *runtimehelpers.Scope, helpers runtimehelpers.HelperTable) error {
	switch instr.Kind {
	case compile.InstrText:
		b.WriteString(instr.Text)
		return nil
	case compile.InstrEmitLiteral:
		var v interface{} = instr.LiteralValue
		if lit, ok := exprutil.ParseLiteral(instr.LiteralValue); ok {
			v = literalValue(lit)
		}
		for _, step := range instr.Filters {
			var err error
			if v, err = applyFilterStep(step, v, helpers); err != nil {
				return err
			}
		}
		b.WriteString(stringifyValue(v))
		return nil
	case compile.InstrEmitVariable:
		return execEmitVariable(b, instr, scope, helpers)
	case compile.InstrForLoop:
		return execForLoop(b, instr, scope, helpers)
	case compile.InstrIf:
		return execIf(b, instr, scope, helpers)
	case compile.InstrMacroCall:
		return execMacroCall(b, instr, scope, helpers)
	default:
		return nil
	}
}

func execEmitVariable(b *bytes.Buffer, instr *compile.Instr, scope *runtimehelpers.Scope, helpers runtimehelpers.HelperTable) error {
	v, err := resolveExpr(instr.Expr, scope, helpers)
	if err != nil {
		return err
	}
	for _, step := range instr.Filters {
		v, err = applyFilterStep(step, v, helpers)
		if err != nil {
			return err
		}
	}
	b.WriteString(stringifyValue(v))
	return nil
}

// applyFilterStep runs one FilterStep. Both Inline and fallback steps
// call through the same helper table here — Inline only records the
// FilterInliner's decision (spec §4.7) that the step takes no
// value-dependent parameters, so a target that emits literal code can
// substitute into its mapping instead of a call; this tree-walking
// renderer has no separate inline code path to substitute into. Quoted
// string parameters are unquoted before the call.
func applyFilterStep(step optimize.FilterStep, v interface{}, helpers runtimehelpers.HelperTable) (interface{}, error) {
	params := make([]string, len(step.Params))
	for i, p := range step.Params {
		params[i] = p
		if lit, ok := exprutil.ParseLiteral(p); ok && lit.Kind == exprutil.LiteralString {
			params[i] = lit.Str
		}
	}
	return helpers.ApplyFilter(step.Name, params, v)
}

func execForLoop(b *bytes.Buffer, instr *compile.Instr, scope *runtimehelpers.Scope, helpers runtimehelpers.HelperTable) error {
	iterable, err := resolveExpr(instr.IterableExpr, scope, helpers)
	if err != nil {
		return err
	}
	items, ok := iterable.([]interface{})
	if !ok {
		return nil
	}
	for _, item := range items {
		child := scope.Child()
		child.Set(instr.ItemName, item)
		if instr.LoopFilterExpr != "" {
			keep, err := helpers.EvaluateCondition(instr.LoopFilterExpr, child)
			if err != nil {
				return err
			}
			if !keep {
				continue
			}
		}
		if err := execProgram(b, instr.Body, child, helpers); err != nil {
			return err
		}
	}
	return nil
}

func execIf(b *bytes.Buffer, instr *compile.Instr, scope *runtimehelpers.Scope, helpers runtimehelpers.HelperTable) error {
	for _, clause := range instr.Clauses {
		if clause.IsElse {
			return execProgram(b, clause.Body, scope, helpers)
		}
		ok, err := helpers.EvaluateCondition(clause.PredicateExpr, scope)
		if err != nil {
			return err
		}
		if ok {
			return execProgram(b, clause.Body, scope, helpers)
		}
	}
	return nil
}

func execMacroCall(b *bytes.Buffer, instr *compile.Instr, scope *runtimehelpers.Scope, helpers runtimehelpers.HelperTable) error {
	callScope := scope.Child()
	for name, arg := range instr.ArgBindings {
		if arg.IsLiteral {
			lit, ok := exprutil.ParseLiteral(arg.LiteralText)
			if !ok {
				callScope.Set(name, arg.LiteralText)
				continue
			}
			callScope.Set(name, literalValue(lit))
			continue
		}
		v, err := resolveExpr(arg.Expr, scope, helpers)
		if err != nil {
			return err
		}
		callScope.Set(name, v)
	}
	return execProgram(b, instr.MacroBody, callScope, helpers)
}

func literalValue(lit exprutil.Literal) interface{} {
	switch lit.Kind {
	case exprutil.LiteralString:
		return lit.Str
	case exprutil.LiteralNumber:
		if lit.IsInt {
			return float64(lit.Int)
		}
		return lit.Num
	case exprutil.LiteralBool:
		return lit.Bool
	default:
		return nil
	}
}

// resolveExpr resolves a VARIABLE node's or macro argument's expression:
// a bare identifier or dotted path goes through ResolveVariable, per
// spec §6; anything else (arithmetic, concatenation, a macro-call shape
// already handled upstream) falls through to the general evaluator.
func resolveExpr(expr string, scope *runtimehelpers.Scope, helpers runtimehelpers.HelperTable) (interface{}, error) {
	if exprutil.IsIdentifier(expr) || exprutil.IsDottedPath(expr) {
		return helpers.ResolveVariable(expr, scope)
	}
	return helpers.Evaluate(expr, scope)
}

// stringifyValue renders a value as output text: strings as-is, booleans
// as true/false, integral numbers without a fraction, other numbers in
// shortest 'g' form, nil as "". Folded literals are parsed back into
// values and rendered through it too, so a constant prints the same
// whether it was folded at compile time or computed at runtime.
func stringifyValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return ""
	}
}
