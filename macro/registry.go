// Copyright 2024 The tmplforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package macro implements the MacroProcessor pass (spec §4.4): extracting
// MACRO definitions and IMPORT namespaces from a parsed tree, stripping
// both kinds from the tree handed to later passes, and binding call-site
// arguments against a macro's signature.
package macro

import (
	"github.com/mohae/tmplforge/parse"
)

// MacroDefinition is one extracted macro, ready for call lowering.
type MacroDefinition struct {
	Name       string
	ParamNames []string          // ordered, as declared
	Defaults   map[string]string // param name -> literal text, for optional params
	Body       []*parse.Node
}

// IsRequired reports whether param has no default.
func (d *MacroDefinition) IsRequired(param string) bool {
	_, ok := d.Defaults[param]
	return !ok
}

// ImportedNamespace is a resolved `import ... as alias` directive: the
// template it came from and the sub-registry of macros it defines.
type ImportedNamespace struct {
	SourceTemplate string
	Registry       *Registry
}

// Registry holds the macros and import aliases visible to one template,
// per spec §3's MacroRegistry. Alias uniqueness is enforced by ResolveImports.
type Registry struct {
	Locals  map[string]*MacroDefinition
	Imports map[string]*ImportedNamespace
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		Locals:  make(map[string]*MacroDefinition),
		Imports: make(map[string]*ImportedNamespace),
	}
}

// Lookup resolves a bare local macro name to its definition. It does not
// look at imports; use LookupQualified for "alias.name".
func (r *Registry) Lookup(name string) (*MacroDefinition, bool) {
	if def, ok := r.Locals[name]; ok {
		return def, true
	}
	return nil, false
}

// LookupQualified resolves a macro imported under alias.
func (r *Registry) LookupQualified(alias, name string) (*MacroDefinition, bool) {
	ns, ok := r.Imports[alias]
	if !ok {
		return nil, false
	}
	def, ok := ns.Registry.Locals[name]
	return def, ok
}
