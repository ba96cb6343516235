// Copyright 2024 The tmplforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohae/tmplforge/ratelimit"
	"github.com/mohae/tmplforge/tmplerr"
)

type mapLoader map[string]string

func (m mapLoader) Load(path string) (string, error) {
	src, ok := m[path]
	if !ok {
		return "", tmplerr.New(tmplerr.TemplateNotFound, "", path)
	}
	return src, nil
}

func TestCompileTextOnly(t *testing.T) {
	c := &Compiler{}
	ct, err := c.Compile("t", "Hello, world")
	require.NoError(t, err)
	require.Len(t, ct.Program, 1)
	assert.Equal(t, InstrText, ct.Program[0].Kind)
	assert.Equal(t, "Hello, world", ct.Program[0].Text)
}

func TestCompileFoldsConstantArithmeticVariable(t *testing.T) {
	c := &Compiler{}
	ct, err := c.Compile("t", "{{ 24 * 60 * 60 }}")
	require.NoError(t, err)
	require.Len(t, ct.Program, 1)
	assert.Equal(t, InstrEmitLiteral, ct.Program[0].Kind)
	assert.Equal(t, "86400", ct.Program[0].LiteralValue)
}

func TestCompileRuntimeVariableWithFilters(t *testing.T) {
	c := &Compiler{}
	ct, err := c.Compile("t", "{{ name | upper | trim }}")
	require.NoError(t, err)
	require.Len(t, ct.Program, 1)
	instr := ct.Program[0]
	assert.Equal(t, InstrEmitVariable, instr.Kind)
	assert.Equal(t, "name", instr.Expr)
	require.Len(t, instr.Filters, 2)
	assert.True(t, instr.Filters[0].Inline)
	assert.Equal(t, "upper", instr.Filters[0].Name)
	assert.True(t, instr.Filters[1].Inline)
	assert.Equal(t, "trim", instr.Filters[1].Name)
}

func TestCompileDeadBranchEliminatedBeforeLowering(t *testing.T) {
	c := &Compiler{}
	ct, err := c.Compile("t", "{% if 2 * 3 > 5 %}Y{% else %}N{% endif %}")
	require.NoError(t, err)
	require.Len(t, ct.Program, 1)
	assert.Equal(t, InstrText, ct.Program[0].Kind)
	assert.Equal(t, "Y", ct.Program[0].Text)
}

func TestCompileNonConstantIfLowersAllClauses(t *testing.T) {
	c := &Compiler{}
	ct, err := c.Compile("t", "{% if cond %}A{% elseif other %}B{% else %}C{% endif %}")
	require.NoError(t, err)
	require.Len(t, ct.Program, 1)
	instr := ct.Program[0]
	require.Equal(t, InstrIf, instr.Kind)
	require.Len(t, instr.Clauses, 3)
	assert.Equal(t, "cond", instr.Clauses[0].PredicateExpr)
	assert.False(t, instr.Clauses[0].IsElse)
	assert.Equal(t, "other", instr.Clauses[1].PredicateExpr)
	assert.True(t, instr.Clauses[2].IsElse)
	require.Len(t, instr.Clauses[2].Body, 1)
	assert.Equal(t, "C", instr.Clauses[2].Body[0].Text)
}

func TestCompileForLoopLowersHeaderAndBody(t *testing.T) {
	c := &Compiler{}
	ct, err := c.Compile("t", "{% for item in items if item.active %}{{ item }}{% endfor %}")
	require.NoError(t, err)
	require.Len(t, ct.Program, 1)
	instr := ct.Program[0]
	assert.Equal(t, InstrForLoop, instr.Kind)
	assert.Equal(t, "item", instr.ItemName)
	assert.Equal(t, "items", instr.IterableExpr)
	assert.Equal(t, "item.active", instr.LoopFilterExpr)
	require.Len(t, instr.Body, 1)
	assert.Equal(t, InstrEmitVariable, instr.Body[0].Kind)
}

func TestCompileMacroCallLowersBoundArgumentsAndBody(t *testing.T) {
	c := &Compiler{}
	src := `{% macro greet(who, greeting="Hi") %}{{ greeting }}, {{ who }}{% endmacro %}{{ greet("Ann") }}`
	ct, err := c.Compile("t", src)
	require.NoError(t, err)
	require.Len(t, ct.Program, 1)
	instr := ct.Program[0]
	require.Equal(t, InstrMacroCall, instr.Kind)
	assert.Equal(t, "greet", instr.MacroName)
	require.Contains(t, instr.ArgBindings, "who")
	assert.True(t, instr.ArgBindings["who"].IsLiteral)
	assert.Equal(t, `"Ann"`, instr.ArgBindings["who"].LiteralText)
	require.Contains(t, instr.ArgBindings, "greeting")
	assert.True(t, instr.ArgBindings["greeting"].IsLiteral)
	require.Len(t, instr.MacroBody, 3)
}

func TestCompileQualifiedMacroCallFromImport(t *testing.T) {
	loader := mapLoader{
		"lib.tmpl": `{% macro shout(msg) %}{{ msg | upper }}!{% endmacro %}`,
	}
	c := &Compiler{Loader: loader}
	src := `{% import "lib.tmpl" as lib %}{{ lib.shout(text) }}`
	ct, err := c.Compile("t", src)
	require.NoError(t, err)
	require.Len(t, ct.Program, 1)
	instr := ct.Program[0]
	require.Equal(t, InstrMacroCall, instr.Kind)
	assert.Equal(t, "lib.shout", instr.MacroName)
	assert.Equal(t, "text", instr.ArgBindings["msg"].Expr)
	require.Len(t, instr.MacroBody, 2)
	assert.Equal(t, InstrEmitVariable, instr.MacroBody[0].Kind)
}

func TestCompileResolvesInheritanceBeforeOptimizing(t *testing.T) {
	loader := mapLoader{
		"base.tmpl": `<h1>{% block title %}{% if false %}X{% else %}Default{% endif %}{% endblock %}</h1>`,
	}
	c := &Compiler{Loader: loader}
	ct, err := c.Compile("child", `{% extends "base.tmpl" %}`)
	require.NoError(t, err)
	require.Len(t, ct.Program, 3)
	assert.Equal(t, "<h1>", ct.Program[0].Text)
	assert.Equal(t, InstrText, ct.Program[1].Kind)
	assert.Equal(t, "Default", ct.Program[1].Text)
	assert.Equal(t, "</h1>", ct.Program[2].Text)
}

func TestCompileRateLimitRejectsOverQuota(t *testing.T) {
	lim := ratelimit.New(ratelimit.Config{MaxAttempts: 1, WindowSeconds: 60})
	c := &Compiler{Limiter: lim}

	_, err := c.Compile("hot", "x")
	require.NoError(t, err)

	_, err = c.Compile("hot", "x")
	require.Error(t, err)
	assert.True(t, tmplerr.Is(err, tmplerr.RateLimitExceeded))
}

func TestCompileAnonymousSkipsRateLimitAndInheritance(t *testing.T) {
	lim := ratelimit.New(ratelimit.Config{MaxAttempts: 1, WindowSeconds: 60})
	c := &Compiler{Limiter: lim}

	_, err := c.Compile("", "a")
	require.NoError(t, err)
	_, err = c.Compile("", "b")
	require.NoError(t, err)
}

func TestCompilePropagatesCyclicInheritanceError(t *testing.T) {
	loader := mapLoader{
		"a": `{% extends "b" %}{% block x %}A{% endblock %}`,
		"b": `{% extends "a" %}{% block x %}B{% endblock %}`,
	}
	c := &Compiler{Loader: loader}
	_, err := c.Compile("a", loader["a"])
	require.Error(t, err)
	assert.True(t, tmplerr.Is(err, tmplerr.CyclicInheritance))
}
