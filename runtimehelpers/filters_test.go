// Copyright 2024 The tmplforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package runtimehelpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyFilterTrimUpperEscapeChain(t *testing.T) {
	v, err := ApplyFilter("trim", nil, "  <x>  ")
	require.NoError(t, err)
	v, err = ApplyFilter("upper", nil, v)
	require.NoError(t, err)
	v, err = ApplyFilter("escape", nil, v)
	require.NoError(t, err)
	assert.Equal(t, "&lt;X&gt;", v)
}

func TestApplyFilterLength(t *testing.T) {
	v, err := ApplyFilter("length", nil, "hello")
	require.NoError(t, err)
	assert.Equal(t, 5, v)

	v, err = ApplyFilter("length", nil, []interface{}{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}

func TestApplyFilterDefault(t *testing.T) {
	v, err := ApplyFilter("default", []string{"N/A"}, "")
	require.NoError(t, err)
	assert.Equal(t, "N/A", v)

	v, err = ApplyFilter("default", []string{"N/A"}, "present")
	require.NoError(t, err)
	assert.Equal(t, "present", v)
}

func TestApplyFilterJoin(t *testing.T) {
	v, err := ApplyFilter("join", []string{", "}, []interface{}{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, "a, b, c", v)
}

func TestApplyFilterReverseStringAndSlice(t *testing.T) {
	v, err := ApplyFilter("reverse", nil, "abc")
	require.NoError(t, err)
	assert.Equal(t, "cba", v)

	v, err = ApplyFilter("reverse", nil, []interface{}{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{3, 2, 1}, v)
}

func TestApplyFilterFirstLast(t *testing.T) {
	v, err := ApplyFilter("first", []string{"2"}, []interface{}{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"a", "b"}, v)

	v, err = ApplyFilter("last", nil, []interface{}{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"c"}, v)
}

func TestApplyFilterNumberWithSeparators(t *testing.T) {
	v, err := ApplyFilter("number", []string{"2", ",", "."}, 1234.5)
	require.NoError(t, err)
	assert.Equal(t, "1.234,50", v)
}

func TestApplyFilterSlice(t *testing.T) {
	v, err := ApplyFilter("slice", []string{"1", "2"}, []interface{}{"a", "b", "c", "d"})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"b", "c"}, v)
}

func TestApplyFilterSort(t *testing.T) {
	v, err := ApplyFilter("sort", nil, []interface{}{"b", "a", "c"})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"a", "b", "c"}, v)
}

func TestApplyFilterJSON(t *testing.T) {
	v, err := ApplyFilter("json", nil, map[string]interface{}{"a": float64(1)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, v.(string))
}

func TestApplyFilterDateFromUnixTimestamp(t *testing.T) {
	v, err := ApplyFilter("date", []string{"2006-01-02"}, float64(1700000000))
	require.NoError(t, err)
	assert.Equal(t, "2023-11-14", v)
}

func TestApplyFilterDateFromParseableString(t *testing.T) {
	v, err := ApplyFilter("date", []string{"2006-01-02"}, "2023-11-14 22:13:20")
	require.NoError(t, err)
	assert.Equal(t, "2023-11-14", v)
}

func TestApplyFilterDateMissingFormatIsInvalidFilter(t *testing.T) {
	_, err := ApplyFilter("date", nil, "2023-11-14")
	require.Error(t, err)
}

func TestApplyFilterUnknownIsInvalidFilter(t *testing.T) {
	_, err := ApplyFilter("nope", nil, "x")
	require.Error(t, err)
}
