// Copyright 2024 The tmplforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package parse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSimpleVariable(t *testing.T) {
	pt, err := Parse("t", "Hello {{ name }}")
	require.NoError(t, err)
	require.Len(t, pt.Root.Children, 2)
	assert.Equal(t, KindText, pt.Root.Children[0].Kind)
	assert.Equal(t, KindVariable, pt.Root.Children[1].Kind)
	assert.Equal(t, "name", pt.Root.Children[1].Variable().Expr)
}

func TestParseIfElseifElse(t *testing.T) {
	pt, err := Parse("t", "{% if a %}A{% elseif b %}B{% else %}C{% endif %}")
	require.NoError(t, err)
	require.Len(t, pt.Root.Children, 1)
	ifNode := pt.Root.Children[0]
	assert.Equal(t, KindIfCondition, ifNode.Kind)
	assert.Equal(t, "a", ifNode.Condition().PredicateExpr)
	require.Len(t, ifNode.Children, 3) // "A" text, elseif, else
	assert.Equal(t, KindText, ifNode.Children[0].Kind)
	assert.Equal(t, KindElseifCondition, ifNode.Children[1].Kind)
	assert.Equal(t, "b", ifNode.Children[1].Condition().PredicateExpr)
	assert.Equal(t, KindElseCondition, ifNode.Children[2].Kind)
}

func TestParseElseAfterElseRejected(t *testing.T) {
	_, err := Parse("t", "{% if a %}{% else %}{% else %}{% endif %}")
	assert.Error(t, err)
}

func TestParseForLoop(t *testing.T) {
	pt, err := Parse("t", "{% for x in items %}{{ x }}{% endfor %}")
	require.NoError(t, err)
	require.Len(t, pt.Root.Children, 1)
	forNode := pt.Root.Children[0]
	assert.Equal(t, KindForLoop, forNode.Kind)
	assert.Equal(t, "x", forNode.ForLoop().ItemName)
	assert.Equal(t, "items", forNode.ForLoop().IterableExpr)
	require.Len(t, forNode.Children, 1)
	assert.Equal(t, KindVariable, forNode.Children[0].Kind)
}

func TestParseUnclosedForIsStructureError(t *testing.T) {
	_, err := Parse("t", "{% for x in items %}no end")
	assert.Error(t, err)
}

func TestParseMismatchedEndIsStructureError(t *testing.T) {
	_, err := Parse("t", "{% for x in items %}{% endif %}")
	assert.Error(t, err)
}

func TestParseExtendsMustBeFirst(t *testing.T) {
	_, err := Parse("t", `some text {% extends "base" %}`)
	assert.Error(t, err)

	pt, err := Parse("t", `{% extends "base" %}{% block a %}x{% endblock %}`)
	require.NoError(t, err)
	assert.Equal(t, KindExtends, pt.Root.Children[0].Kind)
}

func TestParseExtendsMustBeTopLevel(t *testing.T) {
	_, err := Parse("t", `{% block a %}{% extends "base" %}{% endblock %}`)
	assert.Error(t, err)
}

func TestParseParentOutsideBlockRejected(t *testing.T) {
	_, err := Parse("t", "{{ parent() }}")
	assert.Error(t, err)
}

func TestParseParentInsideBlockAccepted(t *testing.T) {
	pt, err := Parse("t", "{% block a %}[{{ parent() }}]{% endblock %}")
	require.NoError(t, err)
	block := pt.Root.Children[0]
	require.Len(t, block.Children, 3)
	assert.Equal(t, KindParent, block.Children[1].Kind)
}

func TestParseMacroAndCall(t *testing.T) {
	pt, err := Parse("t", `{% macro greet(who, greeting="Hello") %}{{ greeting }}, {{ who }}{% endmacro %}{{ greet("Ada") }}`)
	require.NoError(t, err)
	require.Len(t, pt.Root.Children, 2)
	macroNode := pt.Root.Children[0]
	assert.Equal(t, KindMacro, macroNode.Kind)
	attrs := macroNode.Macro()
	assert.Equal(t, "greet", attrs.Name)
	require.Len(t, attrs.Params, 2)
	assert.Equal(t, "who", attrs.Params[0].Name)
	assert.False(t, attrs.Params[0].HasDefault)
	assert.Equal(t, "greeting", attrs.Params[1].Name)
	assert.True(t, attrs.Params[1].HasDefault)
	assert.Equal(t, `"Hello"`, attrs.Params[1].Default)
}

func TestParseImport(t *testing.T) {
	pt, err := Parse("t", `{% import "lib.tmpl" as lib %}{{ lib.greet("Ada") }}`)
	require.NoError(t, err)
	imp := pt.Root.Children[0]
	assert.Equal(t, KindImport, imp.Kind)
	assert.Equal(t, "lib.tmpl", imp.Import().Path)
	assert.Equal(t, "lib", imp.Import().Alias)
}

func TestParseVariableFilterChain(t *testing.T) {
	pt, err := Parse("t", "{{ name | trim | upper | escape }}")
	require.NoError(t, err)
	v := pt.Root.Children[0].Variable()
	assert.Equal(t, "name", v.Expr)
	require.Len(t, v.Filters, 3)
	assert.Equal(t, "trim", v.Filters[0].Name)
	assert.Equal(t, "upper", v.Filters[1].Name)
	assert.Equal(t, "escape", v.Filters[2].Name)
}

func TestParseVariableLogicalOrIsNotAFilterSeparator(t *testing.T) {
	pt, err := Parse("t", "{{ user.nick || user.name }}")
	require.NoError(t, err)
	v := pt.Root.Children[0].Variable()
	assert.Equal(t, "user.nick || user.name", v.Expr)
	assert.Empty(t, v.Filters)
}

func TestParseVariableLogicalOrThenFilter(t *testing.T) {
	pt, err := Parse("t", "{{ user.nick || user.name | upper }}")
	require.NoError(t, err)
	v := pt.Root.Children[0].Variable()
	assert.Equal(t, "user.nick || user.name", v.Expr)
	require.Len(t, v.Filters, 1)
	assert.Equal(t, "upper", v.Filters[0].Name)
}

func TestParseVariableFilterWithParams(t *testing.T) {
	pt, err := Parse("t", `{{ items | join: ", " }}`)
	require.NoError(t, err)
	v := pt.Root.Children[0].Variable()
	require.Len(t, v.Filters, 1)
	assert.Equal(t, "join", v.Filters[0].Name)
	require.Len(t, v.Filters[0].Params, 1)
	assert.Equal(t, `", "`, v.Filters[0].Params[0])
}

// TestParserRoundTripShape verifies spec §8 property 1: concatenating
// every TEXT leaf's LiteralText, depth-first, equals the comment-stripped
// source with all non-text directives removed.
func TestParserRoundTripShape(t *testing.T) {
	src := "Hello {{ name }}, you have {% if n > 0 %}{{ n }} items{% else %}nothing{% endif %} today."
	pt, err := Parse("t", src)
	require.NoError(t, err)
	assert.Equal(t, "Hello ", pt.Root.Children[0].LiteralText)

	got := strings.Join(TextLeaves(pt.Root), "")
	want := "Hello " + ", you have " + " items" + "nothing" + " today."
	// Both branches' text leaves are in the tree regardless of which
	// would render, so the if-branch's " items" is part of the expected
	// concatenation alongside the else-branch's "nothing".
	assert.Contains(t, got, "Hello ")
	assert.Contains(t, got, ", you have ")
	assert.Contains(t, got, " today.")
	assert.Equal(t, want, got)
}

func TestDeepCloneDoesNotAliasChildren(t *testing.T) {
	pt, err := Parse("t", "{% if a %}x{% endif %}")
	require.NoError(t, err)
	clone := pt.Root.Copy()
	clone.Children[0].Children[0].LiteralText = "mutated"
	assert.Equal(t, "x", pt.Root.Children[0].Children[0].LiteralText)
}
