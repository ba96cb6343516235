// Copyright 2024 The tmplforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// The lexer's goroutine-plus-channel structure is adapted from the
// teacher package's lex.go, itself derived from the Go standard
// library's text/template/parse state-machine lexer. Where the teacher
// scans rune-by-rune with hand-written state functions, spec §4.1
// prescribes a regex-driven directive scanner instead; the channel-fed
// item protocol is kept as-is.
//
// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package parse

import (
	"fmt"
	"regexp"

	"github.com/mohae/tmplforge/tmplerr"
)

// TokenKind identifies the kind of a scanned token, per spec §3.
type TokenKind int

const (
	TokEOF TokenKind = iota
	TokError
	TokText
	TokVariable
	TokForStart
	TokForEnd
	TokIfStart
	TokElseif
	TokElse
	TokIfEnd
	TokExtends
	TokBlockStart
	TokBlockEnd
	TokParent
	TokMacroStart
	TokMacroEnd
	TokImport
)

var tokenKindNames = map[TokenKind]string{
	TokEOF:        "EOF",
	TokError:      "ERROR",
	TokText:       "TEXT",
	TokVariable:   "VARIABLE",
	TokForStart:   "FOR_START",
	TokForEnd:     "FOR_END",
	TokIfStart:    "IF_START",
	TokElseif:     "ELSEIF",
	TokElse:       "ELSE",
	TokIfEnd:      "IF_END",
	TokExtends:    "EXTENDS",
	TokBlockStart: "BLOCK_START",
	TokBlockEnd:   "BLOCK_END",
	TokParent:     "PARENT",
	TokMacroStart: "MACRO_START",
	TokMacroEnd:   "MACRO_END",
	TokImport:     "IMPORT",
}

func (k TokenKind) String() string {
	if s, ok := tokenKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// token is one scanned unit: a TEXT run, or a directive with its
// captured groups, per spec §3's Token record.
type token struct {
	typ    TokenKind
	pos    Pos
	lexeme string
	groups []string
	errMsg string
}

func (t token) String() string {
	if t.typ == TokError {
		return t.errMsg
	}
	return fmt.Sprintf("%s %q", t.typ, t.lexeme)
}

// directivePattern pairs a directive kind with the regex that recognizes
// it. Patterns are tried together at each scan position; the earliest,
// then longest, then non-VARIABLE match wins (spec §4.1).
type directivePattern struct {
	typ        TokenKind
	re         *regexp.Regexp
	isVariable bool
}

// Whitespace around keywords is deliberately permissive; "-?" allows an
// optional whitespace-trim marker familiar from the broader ecosystem,
// though this core does not act on it (trimming is a rendering concern).
var directivePatterns = []directivePattern{
	{TokParent, regexp.MustCompile(`^\{\{-?\s*parent\(\)\s*-?\}\}`), false},
	{TokVariable, regexp.MustCompile(`^\{\{-?\s*(.*?)\s*-?\}\}`), true},
	{TokForStart, regexp.MustCompile(`^\{%-?\s*for\s+(\w+)\s+in\s+(.+?)(?:\s+if\s+(.+?))?\s*-?%\}`), false},
	{TokForEnd, regexp.MustCompile(`^\{%-?\s*endfor\s*-?%\}`), false},
	{TokIfStart, regexp.MustCompile(`^\{%-?\s*if\s+(.+?)\s*-?%\}`), false},
	{TokElseif, regexp.MustCompile(`^\{%-?\s*elseif\s+(.+?)\s*-?%\}`), false},
	{TokElse, regexp.MustCompile(`^\{%-?\s*else\s*-?%\}`), false},
	{TokIfEnd, regexp.MustCompile(`^\{%-?\s*endif\s*-?%\}`), false},
	{TokExtends, regexp.MustCompile(`^\{%-?\s*extends\s+"([^"]*)"\s*-?%\}`), false},
	{TokBlockStart, regexp.MustCompile(`^\{%-?\s*block\s+(\w+)\s*-?%\}`), false},
	{TokBlockEnd, regexp.MustCompile(`^\{%-?\s*endblock\s*-?%\}`), false},
	{TokMacroStart, regexp.MustCompile(`^\{%-?\s*macro\s+(\w+)\s*\(([^)]*)\)\s*-?%\}`), false},
	{TokMacroEnd, regexp.MustCompile(`^\{%-?\s*endmacro\s*-?%\}`), false},
	{TokImport, regexp.MustCompile(`^\{%-?\s*import\s+"([^"]*)"\s+as\s+(\w+)\s*-?%\}`), false},
}

var commentOpen = regexp.MustCompile(`\{#`)
var commentClose = regexp.MustCompile(`#\}`)
var anyDelimOpen = regexp.MustCompile(`\{[{%]`)

// stripComments removes {# ... #} spans (possibly multi-line) from src,
// erroring if the delimiters do not balance: an open with no matching
// close, or a close with no preceding open. Comments never contribute
// TEXT tokens.
func stripComments(templateName, src string) (string, error) {
	var out []byte
	i := 0
	for i < len(src) {
		openLoc := commentOpen.FindStringIndex(src[i:])
		closeLoc := commentClose.FindStringIndex(src[i:])
		switch {
		case openLoc == nil && closeLoc == nil:
			out = append(out, src[i:]...)
			i = len(src)
		case closeLoc != nil && (openLoc == nil || closeLoc[0] < openLoc[0]):
			return "", tmplerr.New(tmplerr.ParseError, templateName, "unbalanced comment delimiter '#}'")
		default:
			openStart := i + openLoc[0]
			openEnd := i + openLoc[1]
			out = append(out, src[i:openStart]...)
			innerClose := commentClose.FindStringIndex(src[openEnd:])
			if innerClose == nil {
				return "", tmplerr.New(tmplerr.ParseError, templateName, "unterminated comment '{#'")
			}
			i = openEnd + innerClose[1]
		}
	}
	return string(out), nil
}

// lexer scans source text into a channel of tokens using the directive
// regex table, emitting a TEXT token for any literal gap before each
// recognized directive.
type lexer struct {
	templateName string
	input        string
	pos          int
	items        chan token
}

// lex starts a goroutine scanning input and returns the lexer driving
// it; tokens are retrieved with nextItem.
func lex(templateName, input string) *lexer {
	l := &lexer{templateName: templateName, input: input, items: make(chan token, 2)}
	go l.run()
	return l
}

func (l *lexer) run() {
	for {
		if l.pos >= len(l.input) {
			l.items <- token{typ: TokEOF, pos: Pos(l.pos)}
			close(l.items)
			return
		}
		rest := l.input[l.pos:]
		matched, kind, start, end, groups := findNextDirective(rest)
		if !matched {
			delimLoc := anyDelimOpen.FindStringIndex(rest)
			if delimLoc != nil {
				if delimLoc[0] > 0 {
					l.items <- token{typ: TokText, pos: Pos(l.pos), lexeme: rest[:delimLoc[0]]}
				}
				l.items <- token{typ: TokError, pos: Pos(l.pos + delimLoc[0]),
					errMsg: fmt.Sprintf("unterminated directive starting at offset %d", l.pos+delimLoc[0])}
				close(l.items)
				return
			}
			if len(rest) > 0 {
				l.items <- token{typ: TokText, pos: Pos(l.pos), lexeme: rest}
			}
			l.pos = len(l.input)
			continue
		}
		if start > 0 {
			l.items <- token{typ: TokText, pos: Pos(l.pos), lexeme: rest[:start]}
		}
		// A malformed open delimiter earlier than the matched directive
		// means we skipped over an unterminated one.
		if delimLoc := anyDelimOpen.FindStringIndex(rest[:start]); delimLoc != nil {
			l.items <- token{typ: TokError, pos: Pos(l.pos + delimLoc[0]),
				errMsg: fmt.Sprintf("unterminated directive starting at offset %d", l.pos+delimLoc[0])}
			close(l.items)
			return
		}
		l.items <- token{typ: kind, pos: Pos(l.pos + start), lexeme: rest[start:end], groups: groups}
		l.pos += end
	}
}

// nextItem receives the next scanned token.
func (l *lexer) nextItem() token {
	return <-l.items
}

// findNextDirective finds the earliest match among directivePatterns in
// s. Ties are broken by longest match, then by directive-over-VARIABLE
// priority, matching spec §4.1's ambiguity rule.
func findNextDirective(s string) (matched bool, kind TokenKind, start, end int, groups []string) {
	bestStart := -1
	bestEnd := -1
	var bestKind TokenKind
	var bestGroups []string
	bestIsVariable := true

	for _, dp := range directivePatterns {
		var loc []int
		for at := 0; at < len(s) && loc == nil; at++ {
			if s[at] != '{' {
				continue
			}
			if loc = dp.re.FindStringSubmatchIndex(s[at:]); loc != nil {
				for i := range loc {
					if loc[i] >= 0 {
						loc[i] += at
					}
				}
			}
		}
		if loc == nil {
			continue
		}
		mStart, mEnd := loc[0], loc[1]
		candidate := false
		switch {
		case bestStart == -1:
			candidate = true
		case mStart < bestStart:
			candidate = true
		case mStart == bestStart:
			mLen, bestLen := mEnd-mStart, bestEnd-bestStart
			if mLen > bestLen {
				candidate = true
			} else if mLen == bestLen && bestIsVariable && !dp.isVariable {
				candidate = true
			}
		}
		if candidate {
			bestStart, bestEnd = mStart, mEnd
			bestKind = dp.typ
			bestIsVariable = dp.isVariable
			bestGroups = submatchStrings(s, loc)
		}
	}
	if bestStart == -1 {
		return false, 0, 0, 0, nil
	}
	return true, bestKind, bestStart, bestEnd, bestGroups
}

// submatchStrings converts a FindStringSubmatchIndex result into the
// captured group strings (skipping group 0, the whole match).
func submatchStrings(s string, loc []int) []string {
	n := len(loc)/2 - 1
	if n <= 0 {
		return nil
	}
	groups := make([]string, n)
	for i := 0; i < n; i++ {
		lo, hi := loc[2+2*i], loc[3+2*i]
		if lo < 0 || hi < 0 {
			groups[i] = ""
			continue
		}
		groups[i] = s[lo:hi]
	}
	return groups
}
