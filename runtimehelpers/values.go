// Copyright 2024 The tmplforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package runtimehelpers

import (
	"fmt"
	"strconv"
)

// numOf coerces v to a float64 for arithmetic/comparison; non-numeric
// values (including nil) coerce to 0, matching the language's lenient
// runtime typing (spec §6 names no type-error path for arithmetic).
func numOf(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int64:
		return float64(t)
	case int:
		return float64(t)
	case bool:
		if t {
			return 1
		}
		return 0
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// stringOf renders v for `~` concatenation and the `join`/`default`
// family of filters.
func stringOf(v interface{}) string {
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
		return fmt.Sprintf("%v", t)
	}
}

func arith(op string, a, b interface{}) (interface{}, error) {
	x, y := numOf(a), numOf(b)
	switch op {
	case "+":
		return x + y, nil
	case "-":
		return x - y, nil
	case "*":
		return x * y, nil
	case "/":
		if y == 0 {
			return nil, &evalError{"", "division by zero"}
		}
		return x / y, nil
	case "%":
		if y == 0 {
			return nil, &evalError{"", "modulo by zero"}
		}
		xi, yi := int64(x), int64(y)
		return float64(xi % yi), nil
	}
	return nil, &evalError{"", "unknown arithmetic operator " + op}
}

func compareValues(op string, a, b interface{}) bool {
	as, aIsStr := a.(string)
	bs, bIsStr := b.(string)
	if aIsStr && bIsStr {
		switch op {
		case "==":
			return as == bs
		case "!=":
			return as != bs
		case "<":
			return as < bs
		case "<=":
			return as <= bs
		case ">":
			return as > bs
		case ">=":
			return as >= bs
		}
	}
	x, y := numOf(a), numOf(b)
	switch op {
	case "==":
		return x == y
	case "!=":
		return x != y
	case "<":
		return x < y
	case "<=":
		return x <= y
	case ">":
		return x > y
	case ">=":
		return x >= y
	}
	return false
}
