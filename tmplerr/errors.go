// Copyright 2024 The tmplforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tmplerr defines the tagged error taxonomy shared by every pass
// in the compilation pipeline (lexer through compiler). Every exported
// error constructor records the template name, when known, and the
// offending directive or identifier so messages stay useful without a
// stack trace.
package tmplerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies which part of the pipeline rejected the input. Callers
// should switch on Kind rather than matching error strings.
type Kind int

const (
	_ Kind = iota
	ParseError
	StructureError
	InvalidBlockDirective
	InvalidExtendsDirective
	InvalidImportDirective
	InvalidMacroDirective
	CyclicInheritance
	TemplateNotFound
	DuplicateMacro
	DuplicateAlias
	UnknownParameter
	DuplicateArgument
	TooManyArguments
	MissingRequiredArgument
	InvalidFilter
	RateLimitExceeded
)

var kindNames = map[Kind]string{
	ParseError:              "ParseError",
	StructureError:          "StructureError",
	InvalidBlockDirective:   "InvalidBlockDirective",
	InvalidExtendsDirective: "InvalidExtendsDirective",
	InvalidImportDirective:  "InvalidImportDirective",
	InvalidMacroDirective:   "InvalidMacroDirective",
	CyclicInheritance:       "CyclicInheritance",
	TemplateNotFound:        "TemplateNotFound",
	DuplicateMacro:          "DuplicateMacro",
	DuplicateAlias:          "DuplicateAlias",
	UnknownParameter:        "UnknownParameter",
	DuplicateArgument:       "DuplicateArgument",
	TooManyArguments:        "TooManyArguments",
	MissingRequiredArgument: "MissingRequiredArgument",
	InvalidFilter:           "InvalidFilter",
	RateLimitExceeded:       "RateLimitExceeded",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is the concrete error type surfaced by every package in this
// module. Template and Offender are optional context fields rendered
// into Error() when present.
type Error struct {
	Kind     Kind
	Template string // template name, when known
	Offender string // offending directive or identifier, when known
	Cause    error  // wrapped underlying error, may be nil

	// Cycle carries the ancestor chain for CyclicInheritance errors, e.g.
	// []string{"A", "B", "A"}.
	Cycle []string
	// WaitSeconds carries the suggested retry delay for RateLimitExceeded.
	WaitSeconds float64
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Template != "" {
		msg += fmt.Sprintf(" in %q", e.Template)
	}
	if e.Offender != "" {
		msg += fmt.Sprintf(": %s", e.Offender)
	}
	switch e.Kind {
	case CyclicInheritance:
		if len(e.Cycle) > 0 {
			msg += fmt.Sprintf(" (cycle: %v)", e.Cycle)
		}
	case RateLimitExceeded:
		msg += fmt.Sprintf(" (wait %.2fs)", e.WaitSeconds)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap allows errors.Is/errors.As to see through to Cause.
func (e *Error) Unwrap() error { return e.Cause }

// New builds a bare *Error of the given kind.
func New(kind Kind, template, offender string) *Error {
	return &Error{Kind: kind, Template: template, Offender: offender}
}

// Wrap builds an *Error of the given kind wrapping cause, preserving its
// stack trace via github.com/pkg/errors so the originating site survives
// across pass boundaries.
func Wrap(kind Kind, template, offender string, cause error) *Error {
	return &Error{Kind: kind, Template: template, Offender: offender, Cause: errors.WithStack(cause)}
}

// Cyclic builds a CyclicInheritance error carrying the ancestor cycle.
func Cyclic(template string, cycle []string) *Error {
	return &Error{Kind: CyclicInheritance, Template: template, Cycle: cycle}
}

// RateLimited builds a RateLimitExceeded error carrying the wait time.
func RateLimited(template string, waitSeconds float64) *Error {
	return &Error{Kind: RateLimitExceeded, Template: template, WaitSeconds: waitSeconds}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
