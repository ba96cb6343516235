// Copyright 2024 The tmplforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package optimize implements the ConstantFolder, DeadBranchEliminator,
// and FilterInliner passes (spec §4.5-§4.7). None of them use an
// in-process dynamic eval primitive: each sub-grammar gets its own small
// recursive-descent evaluator, per spec §9.
package optimize

import (
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/mohae/tmplforge/exprutil"
)

// Fold attempts to evaluate expr at compile time, per spec §4.5. It fails
// soft: any uncertain input returns expr unchanged.
func Fold(expr string) string {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return expr
	}
	if len(exprutil.FreeIdentifiers(trimmed)) > 0 {
		return expr
	}
	if s, ok := foldArithmetic(trimmed); ok {
		return s
	}
	if s, ok := foldStringConcat(trimmed); ok {
		return s
	}
	if s, ok := foldBoolean(trimmed); ok {
		return s
	}
	if s, ok := foldComparison(trimmed); ok {
		return s
	}
	return expr
}

// foldComparison handles a relational comparison between two arithmetic
// sub-expressions (e.g. "2 * 3 > 5"). The three named sub-evaluators
// don't cover comparison operators, but scenario S2 requires folding one
// to a boolean constant; this is the minimal grammar needed to satisfy
// it without chaining or mixing with && / ||.
func foldComparison(expr string) (string, bool) {
	for _, op := range []string{"<=", ">=", "==", "!=", "<", ">"} {
		idx := strings.Index(expr, op)
		if idx < 0 {
			continue
		}
		lhs, lok := foldArithmetic(strings.TrimSpace(expr[:idx]))
		rhs, rok := foldArithmetic(strings.TrimSpace(expr[idx+len(op):]))
		if !lok || !rok {
			return "", false
		}
		lf, err1 := strconv.ParseFloat(lhs, 64)
		rf, err2 := strconv.ParseFloat(rhs, 64)
		if err1 != nil || err2 != nil {
			return "", false
		}
		var result bool
		switch op {
		case "<=":
			result = lf <= rf
		case ">=":
			result = lf >= rf
		case "==":
			result = lf == rf
		case "!=":
			result = lf != rf
		case "<":
			result = lf < rf
		case ">":
			result = lf > rf
		}
		if result {
			return "true", true
		}
		return "false", true
	}
	return "", false
}

// numVal is an arithmetic intermediate result: either an exact int64 or a
// float64, per spec §4.5's "division yields a float when non-exact" rule.
type numVal struct {
	isInt bool
	i     int64
	f     float64
}

func (n numVal) asFloat() float64 {
	if n.isInt {
		return float64(n.i)
	}
	return n.f
}

func (n numVal) format() string {
	if n.isInt {
		return strconv.FormatInt(n.i, 10)
	}
	return strconv.FormatFloat(n.f, 'f', -1, 64)
}

var arithCharset = regexp.MustCompile(`^[0-9+\-*/%(). \t]*$`)

// foldArithmetic handles spec §4.5 sub-evaluator 1.
func foldArithmetic(expr string) (string, bool) {
	if !arithCharset.MatchString(expr) {
		return "", false
	}
	p := &arithParser{s: expr}
	v, ok := p.expr()
	if !ok {
		return "", false
	}
	p.skipWS()
	if p.pos != len(p.s) {
		return "", false
	}
	return v.format(), true
}

type arithParser struct {
	s   string
	pos int
}

func (p *arithParser) skipWS() {
	for p.pos < len(p.s) && (p.s[p.pos] == ' ' || p.s[p.pos] == '\t') {
		p.pos++
	}
}

func (p *arithParser) peek() byte {
	p.skipWS()
	if p.pos >= len(p.s) {
		return 0
	}
	return p.s[p.pos]
}

func (p *arithParser) expr() (numVal, bool) {
	v, ok := p.term()
	if !ok {
		return numVal{}, false
	}
	for {
		switch p.peek() {
		case '+':
			p.pos++
			rhs, ok := p.term()
			if !ok {
				return numVal{}, false
			}
			v, ok = addNum(v, rhs)
			if !ok {
				return numVal{}, false
			}
		case '-':
			p.pos++
			rhs, ok := p.term()
			if !ok {
				return numVal{}, false
			}
			v, ok = subNum(v, rhs)
			if !ok {
				return numVal{}, false
			}
		default:
			return v, true
		}
	}
}

func (p *arithParser) term() (numVal, bool) {
	v, ok := p.factor()
	if !ok {
		return numVal{}, false
	}
	for {
		switch p.peek() {
		case '*':
			p.pos++
			rhs, ok := p.factor()
			if !ok {
				return numVal{}, false
			}
			v, ok = mulNum(v, rhs)
			if !ok {
				return numVal{}, false
			}
		case '/':
			p.pos++
			rhs, ok := p.factor()
			if !ok {
				return numVal{}, false
			}
			v, ok = divNum(v, rhs)
			if !ok {
				return numVal{}, false
			}
		case '%':
			p.pos++
			rhs, ok := p.factor()
			if !ok {
				return numVal{}, false
			}
			v, ok = modNum(v, rhs)
			if !ok {
				return numVal{}, false
			}
		default:
			return v, true
		}
	}
}

func (p *arithParser) factor() (numVal, bool) {
	switch p.peek() {
	case '(':
		p.pos++
		v, ok := p.expr()
		if !ok {
			return numVal{}, false
		}
		if p.peek() != ')' {
			return numVal{}, false
		}
		p.pos++
		return v, true
	case '-':
		p.pos++
		v, ok := p.factor()
		if !ok {
			return numVal{}, false
		}
		return negateNum(v), true
	case '+':
		p.pos++
		return p.factor()
	}
	return p.number()
}

func (p *arithParser) number() (numVal, bool) {
	p.skipWS()
	start := p.pos
	sawDot := false
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		if c >= '0' && c <= '9' {
			p.pos++
			continue
		}
		if c == '.' && !sawDot {
			sawDot = true
			p.pos++
			continue
		}
		break
	}
	if p.pos == start {
		return numVal{}, false
	}
	text := p.s[start:p.pos]
	if sawDot {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return numVal{}, false
		}
		return numVal{f: f}, true
	}
	i, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return numVal{}, false
	}
	return numVal{isInt: true, i: i}, true
}

func negateNum(a numVal) numVal {
	if a.isInt {
		return numVal{isInt: true, i: -a.i}
	}
	return numVal{f: -a.f}
}

func addNum(a, b numVal) (numVal, bool) {
	if a.isInt && b.isInt {
		r := new(big.Int).Add(big.NewInt(a.i), big.NewInt(b.i))
		if !r.IsInt64() {
			return numVal{}, false
		}
		return numVal{isInt: true, i: r.Int64()}, true
	}
	return numVal{f: a.asFloat() + b.asFloat()}, true
}

func subNum(a, b numVal) (numVal, bool) {
	if a.isInt && b.isInt {
		r := new(big.Int).Sub(big.NewInt(a.i), big.NewInt(b.i))
		if !r.IsInt64() {
			return numVal{}, false
		}
		return numVal{isInt: true, i: r.Int64()}, true
	}
	return numVal{f: a.asFloat() - b.asFloat()}, true
}

func mulNum(a, b numVal) (numVal, bool) {
	if a.isInt && b.isInt {
		r := new(big.Int).Mul(big.NewInt(a.i), big.NewInt(b.i))
		if !r.IsInt64() {
			return numVal{}, false
		}
		return numVal{isInt: true, i: r.Int64()}, true
	}
	return numVal{f: a.asFloat() * b.asFloat()}, true
}

func divNum(a, b numVal) (numVal, bool) {
	if b.isInt && b.i == 0 {
		return numVal{}, false
	}
	if !b.isInt && b.f == 0 {
		return numVal{}, false
	}
	if a.isInt && b.isInt {
		if a.i%b.i == 0 {
			return numVal{isInt: true, i: a.i / b.i}, true
		}
		return numVal{f: float64(a.i) / float64(b.i)}, true
	}
	return numVal{f: a.asFloat() / b.asFloat()}, true
}

func modNum(a, b numVal) (numVal, bool) {
	if b.isInt && b.i == 0 {
		return numVal{}, false
	}
	if !b.isInt && b.f == 0 {
		return numVal{}, false
	}
	if a.isInt && b.isInt {
		return numVal{isInt: true, i: a.i % b.i}, true
	}
	return numVal{f: math.Mod(a.asFloat(), b.asFloat())}, true
}

// foldStringConcat handles spec §4.5 sub-evaluator 2: quoted literals
// joined by `~` or `.`.
func foldStringConcat(expr string) (string, bool) {
	pos := 0
	var out strings.Builder
	first := true
	for {
		pos = skipWS(expr, pos)
		if pos >= len(expr) {
			if first {
				return "", false
			}
			break
		}
		val, newPos, ok := scanQuotedLiteral(expr, pos)
		if !ok {
			return "", false
		}
		out.WriteString(val)
		pos = newPos
		first = false

		pos = skipWS(expr, pos)
		if pos >= len(expr) {
			break
		}
		c := expr[pos]
		if c != '~' && c != '.' {
			return "", false
		}
		pos++
	}
	return exprutil.QuoteString(out.String()), true
}

func skipWS(s string, pos int) int {
	for pos < len(s) && (s[pos] == ' ' || s[pos] == '\t') {
		pos++
	}
	return pos
}

func scanQuotedLiteral(s string, pos int) (string, int, bool) {
	if pos >= len(s) || (s[pos] != '"' && s[pos] != '\'') {
		return "", pos, false
	}
	quote := s[pos]
	var b strings.Builder
	i := pos + 1
	for i < len(s) {
		c := s[i]
		if c == '\\' && i+1 < len(s) {
			b.WriteByte(c)
			b.WriteByte(s[i+1])
			i += 2
			continue
		}
		if c == quote {
			lit, ok := exprutil.ParseLiteral(s[pos : i+1])
			if !ok || lit.Kind != exprutil.LiteralString {
				return "", pos, false
			}
			return lit.Str, i + 1, true
		}
		b.WriteByte(c)
		i++
	}
	return "", pos, false
}

// foldBoolean handles spec §4.5 sub-evaluator 3: true/false literals,
// negation, and && / || chains (&& binds tighter, both left-associative).
func foldBoolean(expr string) (string, bool) {
	toks, ok := tokenizeBool(expr)
	if !ok || len(toks) == 0 {
		return "", false
	}
	v, pos, ok := parseOr(toks, 0)
	if !ok || pos != len(toks) {
		return "", false
	}
	if v {
		return "true", true
	}
	return "false", true
}

func tokenizeBool(s string) ([]string, bool) {
	var toks []string
	i := 0
	for i < len(s) {
		for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
			i++
		}
		if i >= len(s) {
			break
		}
		switch {
		case strings.HasPrefix(s[i:], "&&"):
			toks = append(toks, "&&")
			i += 2
		case strings.HasPrefix(s[i:], "||"):
			toks = append(toks, "||")
			i += 2
		case strings.HasPrefix(s[i:], "true"):
			toks = append(toks, "true")
			i += 4
		case strings.HasPrefix(s[i:], "false"):
			toks = append(toks, "false")
			i += 5
		case s[i] == '!':
			toks = append(toks, "!")
			i++
		default:
			return nil, false
		}
	}
	return toks, true
}

func parseOr(toks []string, pos int) (bool, int, bool) {
	v, pos, ok := parseAnd(toks, pos)
	if !ok {
		return false, pos, false
	}
	for pos < len(toks) && toks[pos] == "||" {
		rhs, np, ok2 := parseAnd(toks, pos+1)
		if !ok2 {
			return false, pos, false
		}
		v = v || rhs
		pos = np
	}
	return v, pos, true
}

func parseAnd(toks []string, pos int) (bool, int, bool) {
	v, pos, ok := parseUnary(toks, pos)
	if !ok {
		return false, pos, false
	}
	for pos < len(toks) && toks[pos] == "&&" {
		rhs, np, ok2 := parseUnary(toks, pos+1)
		if !ok2 {
			return false, pos, false
		}
		v = v && rhs
		pos = np
	}
	return v, pos, true
}

func parseUnary(toks []string, pos int) (bool, int, bool) {
	if pos >= len(toks) {
		return false, pos, false
	}
	switch toks[pos] {
	case "!":
		v, np, ok := parseUnary(toks, pos+1)
		if !ok {
			return false, pos, false
		}
		return !v, np, true
	case "true":
		return true, pos + 1, true
	case "false":
		return false, pos + 1, true
	}
	return false, pos, false
}

// IsConstantTrue reports whether a folded expression represents true,
// per spec §4.6 step 1.
func IsConstantTrue(folded string) bool {
	return folded == "true" || folded == "1"
}

// IsConstantFalse reports whether a folded expression represents false.
func IsConstantFalse(folded string) bool {
	return folded == "false" || folded == "0"
}
