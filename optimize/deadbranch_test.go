// Copyright 2024 The tmplforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package optimize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohae/tmplforge/parse"
)

func TestEliminateConstantTrueReplacesGroup(t *testing.T) {
	pt, err := parse.Parse("t", "{% if 2 * 3 > 5 %}Y{% else %}N{% endif %}")
	require.NoError(t, err)

	got := Eliminate(pt.Root)
	require.Len(t, got.Children, 1)
	assert.Equal(t, parse.KindText, got.Children[0].Kind)
	assert.Equal(t, "Y", got.Children[0].LiteralText)
}

func TestEliminateConstantFalseDropsElseifKeepsElse(t *testing.T) {
	pt, err := parse.Parse("t", "{% if false %}A{% elseif 0 %}B{% else %}C{% endif %}")
	require.NoError(t, err)

	got := Eliminate(pt.Root)
	require.Len(t, got.Children, 1)
	assert.Equal(t, "C", got.Children[0].LiteralText)
}

func TestEliminateAllFalseNoElseDeletesGroup(t *testing.T) {
	pt, err := parse.Parse("t", "before{% if false %}A{% elseif 0 %}B{% endif %}after")
	require.NoError(t, err)

	got := Eliminate(pt.Root)
	require.Len(t, got.Children, 2)
	assert.Equal(t, "before", got.Children[0].LiteralText)
	assert.Equal(t, "after", got.Children[1].LiteralText)
}

func TestEliminateNonConstantKeepsRemainderPromotingHead(t *testing.T) {
	pt, err := parse.Parse("t", "{% if false %}A{% elseif cond %}B{% else %}C{% endif %}")
	require.NoError(t, err)

	got := Eliminate(pt.Root)
	require.Len(t, got.Children, 1)
	ifNode := got.Children[0]
	assert.Equal(t, parse.KindIfCondition, ifNode.Kind)
	assert.Equal(t, "cond", ifNode.Condition().PredicateExpr)
	require.Len(t, ifNode.Children, 2) // "B" body, else branch
	assert.Equal(t, "B", ifNode.Children[0].LiteralText)
	assert.Equal(t, parse.KindElseCondition, ifNode.Children[1].Kind)
	assert.Equal(t, "C", ifNode.Children[1].Children[0].LiteralText)
}

func TestEliminateDoesNotMutateInput(t *testing.T) {
	pt, err := parse.Parse("t", "{% if false %}A{% endif %}")
	require.NoError(t, err)

	_ = Eliminate(pt.Root)
	require.Len(t, pt.Root.Children, 1)
	assert.Equal(t, parse.KindIfCondition, pt.Root.Children[0].Kind)
}

func TestEliminateRecursesIntoNestedContainers(t *testing.T) {
	pt, err := parse.Parse("t", "{% for x in items %}{% if true %}Y{% else %}N{% endif %}{% endfor %}")
	require.NoError(t, err)

	got := Eliminate(pt.Root)
	forNode := got.Children[0]
	require.Len(t, forNode.Children, 1)
	assert.Equal(t, "Y", forNode.Children[0].LiteralText)
}
