// Copyright 2024 The tmplforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tmplforge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohae/tmplforge/loadcache"
	"github.com/mohae/tmplforge/ratelimit"
)

func TestRenderTextAndVariable(t *testing.T) {
	e := &Engine{}
	out, err := e.Render("t", "Hello, {{ name }}!", map[string]interface{}{"name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "Hello, Ada!", out)
}

func TestRenderFilterChain(t *testing.T) {
	e := &Engine{}
	out, err := e.Render("t", "{{ name | trim | upper | escape }}", map[string]interface{}{"name": "  <x>  "})
	require.NoError(t, err)
	assert.Equal(t, "&lt;X&gt;", out)
}

func TestRenderForLoopWithFilterClause(t *testing.T) {
	e := &Engine{}
	src := "{% for item in items if item.active %}[{{ item.name }}]{% endfor %}"
	vars := map[string]interface{}{
		"items": []interface{}{
			map[string]interface{}{"name": "a", "active": true},
			map[string]interface{}{"name": "b", "active": false},
			map[string]interface{}{"name": "c", "active": true},
		},
	}
	out, err := e.Render("t", src, vars)
	require.NoError(t, err)
	assert.Equal(t, "[a][c]", out)
}

func TestRenderIfElseifElse(t *testing.T) {
	e := &Engine{}
	src := "{% if score >= 90 %}A{% elseif score >= 80 %}B{% else %}C{% endif %}"
	out, err := e.Render("t", src, map[string]interface{}{"score": float64(85)})
	require.NoError(t, err)
	assert.Equal(t, "B", out)
}

func TestRenderMacroCallWithDefaults(t *testing.T) {
	e := &Engine{}
	src := `{% macro greet(who, greeting="Hello") %}{{ greeting }}, {{ who }}{% endmacro %}{{ greet("Ada") }}`
	out, err := e.Render("t", src, nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello, Ada", out)
}

func TestRenderMacroCallOverridingDefault(t *testing.T) {
	e := &Engine{}
	src := `{% macro greet(who, greeting="Hello") %}{{ greeting }}, {{ who }}{% endmacro %}{{ greet("Ada", greeting="Hi") }}`
	out, err := e.Render("t", src, nil)
	require.NoError(t, err)
	assert.Equal(t, "Hi, Ada", out)
}

func TestRenderInheritanceWithParentSplice(t *testing.T) {
	loader := loadcache.MapLoader{
		"base.tmpl": `<h1>{% block title %}Default{% endblock %}</h1>`,
	}
	e := &Engine{Loader: loader}
	src := `{% extends "base.tmpl" %}{% block title %}[{{ parent() }}]{% endblock %}`
	out, err := e.Render("child", src, nil)
	require.NoError(t, err)
	assert.Equal(t, "<h1>[Default]</h1>", out)
}

func TestRenderInheritedChildKeepsOwnMacro(t *testing.T) {
	loader := loadcache.MapLoader{
		"base.tmpl": `<h1>{% block title %}Default{% endblock %}</h1>`,
	}
	e := &Engine{Loader: loader}
	src := `{% extends "base.tmpl" %}{% macro shout(name) %}{{ name }}!{% endmacro %}{% block title %}{{ shout("Hi") }}{% endblock %}`
	out, err := e.Render("child", src, nil)
	require.NoError(t, err)
	assert.Equal(t, "<h1>Hi!</h1>", out)
}

func TestRenderVariableLogicalOrIsParsedAsOneExpression(t *testing.T) {
	e := &Engine{}
	out, err := e.Render("t", "{{ nick || name }}", map[string]interface{}{"name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "true", out)
}

func TestRenderConstantFoldedArithmeticVariable(t *testing.T) {
	e := &Engine{}
	out, err := e.Render("t", "{{ 24 * 60 * 60 }}", nil)
	require.NoError(t, err)
	assert.Equal(t, "86400", out)
}

func TestRenderDeadBranchElimination(t *testing.T) {
	e := &Engine{}
	out, err := e.Render("t", "{% if 2 * 3 > 5 %}Y{% else %}N{% endif %}", nil)
	require.NoError(t, err)
	assert.Equal(t, "Y", out)
}

func TestEngineCompileCachesSecondCall(t *testing.T) {
	cache, err := loadcache.NewArtifactCache("", 8)
	require.NoError(t, err)
	e := &Engine{Cache: cache}

	src := "{{ x }}"
	ct1, err := e.Compile("cached", src)
	require.NoError(t, err)
	ct2, err := e.Compile("cached", src)
	require.NoError(t, err)
	assert.Same(t, ct1, ct2)
}

func TestEngineCompileRateLimited(t *testing.T) {
	lim := ratelimit.New(ratelimit.Config{MaxAttempts: 1, WindowSeconds: 60})
	e := &Engine{Limiter: lim}

	_, err := e.Compile("hot", "x")
	require.NoError(t, err)
	_, err = e.Compile("hot", "x")
	require.Error(t, err)
}
