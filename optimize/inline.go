// Copyright 2024 The tmplforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package optimize

import "github.com/mohae/tmplforge/parse"

// inlinableFilters are the built-in filters (spec §6) with no
// value-dependent parameters in their inline mapping: the generated step
// needs nothing beyond the current value. Filters called with explicit
// parameters always fall back to the runtime helper, even when their
// zero-arg form would otherwise qualify.
var inlinableFilters = map[string]bool{
	"upper":   true,
	"lower":   true,
	"trim":    true,
	"escape":  true,
	"reverse": true,
	"length":  true,
}

// FilterStep is one stage of a lowered filter chain: either a direct
// inline operation, or a fallback call into the runtime helper table's
// applyFilter, per spec §4.7.
type FilterStep struct {
	Inline bool
	Name   string
	Params []string // only meaningful when !Inline
}

// InlineFilterChain lowers a VARIABLE node's filter chain into an
// ordered sequence of steps, one assignment to the value variable per
// filter, in source order.
func InlineFilterChain(chain []parse.FilterCall) []FilterStep {
	steps := make([]FilterStep, 0, len(chain))
	for _, f := range chain {
		if inlinableFilters[f.Name] && len(f.Params) == 0 {
			steps = append(steps, FilterStep{Inline: true, Name: f.Name})
			continue
		}
		steps = append(steps, FilterStep{Name: f.Name, Params: f.Params})
	}
	return steps
}
