// Copyright 2024 The tmplforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package runtimehelpers

import (
	"encoding/json"
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jinzhu/now"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/width"

	"github.com/mohae/tmplforge/tmplerr"
)

var (
	upperCaser = cases.Upper(language.Und)
	lowerCaser = cases.Lower(language.Und)
)

func init() {
	// now.Parse interprets a zone-less string against now.TimeLocation,
	// which defaults to time.Local; pinning it to UTC keeps `date` output
	// reproducible across render hosts instead of following the host's
	// timezone.
	now.TimeLocation = time.UTC
}

// ApplyFilter runs the named filter (one of the table in spec §6) over
// value with the given trimmed, unquoted parameters, per §6's
// applyFilter(expression, value) -> value. Unknown filter names report
// InvalidFilter.
func ApplyFilter(name string, params []string, value interface{}) (interface{}, error) {
	switch name {
	case "upper":
		return upperCaser.String(stringOf(value)), nil
	case "lower":
		return lowerCaser.String(stringOf(value)), nil
	case "trim":
		if len(params) > 0 {
			return strings.Trim(stringOf(value), params[0]), nil
		}
		return strings.TrimSpace(stringOf(value)), nil
	case "escape":
		return html.EscapeString(stringOf(value)), nil
	case "length":
		return filterLength(value), nil
	case "json":
		return filterJSON(value, params)
	case "default":
		if len(params) == 0 {
			return nil, tmplerr.New(tmplerr.InvalidFilter, "", "default requires one argument")
		}
		if isEmpty(value) {
			return params[0], nil
		}
		return value, nil
	case "date":
		if len(params) == 0 {
			return nil, tmplerr.New(tmplerr.InvalidFilter, "", "date requires a format argument")
		}
		return filterDate(value, params[0])
	case "number":
		return filterNumber(value, params), nil
	case "first":
		return filterEdge(value, params, true), nil
	case "last":
		return filterEdge(value, params, false), nil
	case "join":
		sep := ","
		if len(params) > 0 {
			sep = params[0]
		}
		return filterJoin(value, sep), nil
	case "reverse":
		return filterReverse(value), nil
	case "sort":
		return filterSort(value), nil
	case "slice":
		return filterSlice(value, params), nil
	case "map", "filter", "batch":
		return nil, tmplerr.New(tmplerr.InvalidFilter, "", name+" requires a callback, not supported by this reference runtime")
	default:
		return nil, tmplerr.New(tmplerr.InvalidFilter, "", name)
	}
}

func isEmpty(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []interface{}:
		return len(t) == 0
	default:
		return false
	}
}

// filterLength implements `length` (spec §6: countable -> count, else ->
// string length). String length folds fullwidth/halfwidth variants to
// their canonical form first, so e.g. fullwidth Latin letters count the
// same as their halfwidth equivalents.
func filterLength(v interface{}) int {
	switch t := v.(type) {
	case []interface{}:
		return len(t)
	case map[string]interface{}:
		return len(t)
	default:
		return len([]rune(width.Narrow.String(stringOf(v))))
	}
}

// filterJSON implements `json` (0 or 1 args: an optional "pretty" flag).
func filterJSON(v interface{}, params []string) (interface{}, error) {
	if len(params) > 0 && params[0] == "pretty" {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, tmplerr.Wrap(tmplerr.InvalidFilter, "", "json", err)
		}
		return string(data), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, tmplerr.Wrap(tmplerr.InvalidFilter, "", "json", err)
	}
	return string(data), nil
}

// filterDate implements `date`: formats value, coerced to a time.Time via
// timeOf, using layout as a Go reference-time format string (spec §6: "1
// arg, format from timestamp / parseable string / date object").
func filterDate(value interface{}, layout string) (interface{}, error) {
	t, err := timeOf(value)
	if err != nil {
		return nil, tmplerr.Wrap(tmplerr.InvalidFilter, "", "date", err)
	}
	return t.UTC().Format(layout), nil
}

// timeOf coerces a filter value into a time.Time: a time.Time passes
// through, a number is read as a Unix timestamp in seconds, and a string
// is parsed with jinzhu/now's format-guessing parser rather than a single
// fixed layout, since spec §6 only promises "a parseable string" with no
// named format.
func timeOf(value interface{}) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case float64:
		return time.Unix(int64(v), 0), nil
	case int:
		return time.Unix(int64(v), 0), nil
	case int64:
		return time.Unix(v, 0), nil
	case string:
		return now.Parse(v)
	default:
		return time.Time{}, fmt.Errorf("unsupported value type %T", value)
	}
}

// filterNumber implements `number` (0..3 args: decimals, decimal
// separator, thousands separator).
func filterNumber(v interface{}, params []string) string {
	decimals := 0
	decimalSep := "."
	thousandsSep := ""
	if len(params) > 0 {
		if d, err := strconv.Atoi(params[0]); err == nil {
			decimals = d
		}
	}
	if len(params) > 1 {
		decimalSep = params[1]
	}
	if len(params) > 2 {
		thousandsSep = params[2]
	}

	f := numOf(v)
	formatted := strconv.FormatFloat(f, 'f', decimals, 64)
	intPart, fracPart, hasFrac := strings.Cut(formatted, ".")

	neg := strings.HasPrefix(intPart, "-")
	if neg {
		intPart = intPart[1:]
	}
	if thousandsSep != "" {
		intPart = groupThousands(intPart, thousandsSep)
	}
	out := intPart
	if neg {
		out = "-" + out
	}
	if hasFrac {
		out += decimalSep + fracPart
	}
	return out
}

func groupThousands(digits, sep string) string {
	n := len(digits)
	if n <= 3 {
		return digits
	}
	var b strings.Builder
	lead := n % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// filterEdge implements `first`/`last` (0 or 1 args: how many).
func filterEdge(v interface{}, params []string, first bool) interface{} {
	n := 1
	if len(params) > 0 {
		if p, err := strconv.Atoi(params[0]); err == nil {
			n = p
		}
	}
	switch t := v.(type) {
	case string:
		r := []rune(t)
		if n >= len(r) {
			return t
		}
		if first {
			return string(r[:n])
		}
		return string(r[len(r)-n:])
	case []interface{}:
		if n >= len(t) {
			return t
		}
		if first {
			return t[:n]
		}
		return t[len(t)-n:]
	default:
		return v
	}
}

// filterJoin implements `join` (0 or 1 args: separator).
func filterJoin(v interface{}, sep string) string {
	t, ok := v.([]interface{})
	if !ok {
		return stringOf(v)
	}
	parts := make([]string, len(t))
	for i, item := range t {
		parts[i] = stringOf(item)
	}
	return strings.Join(parts, sep)
}

// filterReverse implements `reverse` over a string or a slice.
func filterReverse(v interface{}) interface{} {
	switch t := v.(type) {
	case string:
		r := []rune(t)
		for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
			r[i], r[j] = r[j], r[i]
		}
		return string(r)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[len(t)-1-i] = item
		}
		return out
	default:
		return v
	}
}

// filterSort implements `sort` over a slice, ordering numerically when
// every element is a number (float64, int or int64), else
// lexicographically by string form.
func filterSort(v interface{}) interface{} {
	t, ok := v.([]interface{})
	if !ok {
		return v
	}
	out := make([]interface{}, len(t))
	copy(out, t)
	numeric := true
	for _, item := range out {
		switch item.(type) {
		case float64, int, int64:
		default:
			numeric = false
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if numeric {
			return numOf(out[i]) < numOf(out[j])
		}
		return stringOf(out[i]) < stringOf(out[j])
	})
	return out
}

// filterSlice implements `slice` (start[, length]).
func filterSlice(v interface{}, params []string) interface{} {
	if len(params) == 0 {
		return v
	}
	start, err := strconv.Atoi(params[0])
	if err != nil {
		return v
	}
	length := -1
	if len(params) > 1 {
		if l, err := strconv.Atoi(params[1]); err == nil {
			length = l
		}
	}

	clampSlice := func(n int) (int, int) {
		s := start
		if s < 0 {
			s = n + s
		}
		if s < 0 {
			s = 0
		}
		if s > n {
			s = n
		}
		e := n
		if length >= 0 {
			e = s + length
			if e > n {
				e = n
			}
		}
		return s, e
	}

	switch t := v.(type) {
	case string:
		r := []rune(t)
		s, e := clampSlice(len(r))
		return string(r[s:e])
	case []interface{}:
		s, e := clampSlice(len(t))
		return t[s:e]
	default:
		return v
	}
}
