// Copyright 2024 The tmplforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package exprutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitTopLevel(t *testing.T) {
	cases := []struct {
		name string
		in   string
		sep  rune
		want []string
	}{
		{"simple", "a, b, c", ',', []string{"a", " b", " c"}},
		{"quoted comma", `a, "b, c", d`, ',', []string{"a", ` "b, c"`, " d"}},
		{"nested parens", "f(a, b), c", ',', []string{"f(a, b)", " c"}},
		{"pipe chain", "x | trim | upper", '|', []string{"x ", " trim ", " upper"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, SplitTopLevel(c.in, c.sep))
		})
	}
}

func TestSplitFilterChain(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"simple chain", "x | trim | upper", []string{"x ", " trim ", " upper"}},
		{"no filters", "a || b", []string{"a || b"}},
		{"or then filter", "user.nick || user.name | upper", []string{"user.nick || user.name ", " upper"}},
		{"or inside parens untouched", `f(a || b) | upper`, []string{"f(a || b) ", " upper"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, SplitFilterChain(c.in))
		})
	}
}

func TestIndexTopLevelEquals(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want int
	}{
		{"bare assignment", "greeting=Hello", 8},
		{"spaced assignment", "greeting = Hello", 9},
		{"no equals", "a", -1},
		{"double equal comparison skipped", "a == b", -1},
		{"not equal comparison skipped", "a != b", -1},
		{"less-equal comparison skipped", "a <= b", -1},
		{"greater-equal comparison skipped", "a >= b", -1},
		{"assignment with comparison value", "greeting = a == b", 9},
		{"quoted equals ignored", `name="a=b"`, 4},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, IndexTopLevelEquals(c.in))
		})
	}
}

func TestParseLiteral(t *testing.T) {
	lit, ok := ParseLiteral(`"hello"`)
	assert.True(t, ok)
	assert.Equal(t, LiteralString, lit.Kind)
	assert.Equal(t, "hello", lit.Str)

	lit, ok = ParseLiteral("42")
	assert.True(t, ok)
	assert.True(t, lit.IsInt)
	assert.Equal(t, int64(42), lit.Int)

	lit, ok = ParseLiteral("3.14")
	assert.True(t, ok)
	assert.False(t, lit.IsInt)
	assert.InDelta(t, 3.14, lit.Num, 0.0001)

	lit, ok = ParseLiteral("true")
	assert.True(t, ok)
	assert.True(t, lit.Bool)

	_, ok = ParseLiteral("name")
	assert.False(t, ok)
}

func TestFreeIdentifiers(t *testing.T) {
	assert.Empty(t, FreeIdentifiers("true && false"))
	assert.Empty(t, FreeIdentifiers(`1 + 2 * "abc"`))
	assert.Equal(t, []string{"a"}, FreeIdentifiers("a + 1"))
	assert.Equal(t, []string{"a", "b"}, FreeIdentifiers("a.b"))
}

func TestQuoteString(t *testing.T) {
	assert.Equal(t, `'it\'s'`, QuoteString("it's"))
	assert.Equal(t, `'back\\slash'`, QuoteString(`back\slash`))
}
