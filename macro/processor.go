// Copyright 2024 The tmplforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package macro

import (
	"regexp"
	"strings"

	"github.com/mohae/tmplforge/exprutil"
	"github.com/mohae/tmplforge/parse"
	"github.com/mohae/tmplforge/tmplerr"
)

// Loader loads a template's source text by path, for resolving IMPORT
// directives. Propagated errors (e.g. TemplateNotFound) pass through
// ResolveImports verbatim.
type Loader interface {
	Load(path string) (string, error)
}

// Process runs the three MacroProcessor operations (spec §4.4) over root
// in order: Extract, ResolveImports, Strip. It returns the macro-stripped
// root and the registry of macros visible to name (locals plus imports).
func Process(name string, root *parse.Node, loader Loader) (*parse.Node, *Registry, error) {
	reg := NewRegistry()
	if err := Extract(name, root, reg); err != nil {
		return nil, nil, err
	}
	if err := ResolveImports(name, root, loader, reg); err != nil {
		return nil, nil, err
	}
	logger.Debugf("processed %q: %d local macros, %d imported namespaces", name, len(reg.Locals), len(reg.Imports))
	return Strip(root), reg, nil
}

// Extract scans root's direct children for MACRO nodes, adding a
// MacroDefinition to reg.Locals for each. A duplicate name within the
// same template is a DuplicateMacro error.
func Extract(name string, root *parse.Node, reg *Registry) error {
	for _, c := range root.Children {
		if c.Kind != parse.KindMacro {
			continue
		}
		attrs := c.Macro()
		if _, dup := reg.Locals[attrs.Name]; dup {
			return tmplerr.New(tmplerr.DuplicateMacro, name, attrs.Name)
		}
		def := &MacroDefinition{
			Name:     attrs.Name,
			Defaults: make(map[string]string),
			Body:     c.Children,
		}
		for _, p := range attrs.Params {
			def.ParamNames = append(def.ParamNames, p.Name)
			if p.HasDefault {
				def.Defaults[p.Name] = p.Default
			}
		}
		reg.Locals[attrs.Name] = def
	}
	return nil
}

// ResolveImports scans root's direct children for IMPORT nodes, loading
// and parsing the referenced template and extracting its own macros into
// a sub-registry registered under the import's alias. A duplicate alias
// is a DuplicateAlias error.
func ResolveImports(name string, root *parse.Node, loader Loader, reg *Registry) error {
	for _, c := range root.Children {
		if c.Kind != parse.KindImport {
			continue
		}
		attrs := c.Import()
		if _, dup := reg.Imports[attrs.Alias]; dup {
			return tmplerr.New(tmplerr.DuplicateAlias, name, attrs.Alias)
		}
		src, err := loader.Load(attrs.Path)
		if err != nil {
			return err
		}
		parsed, err := parse.Parse(attrs.Path, src)
		if err != nil {
			return err
		}
		sub := NewRegistry()
		if err := Extract(attrs.Path, parsed.Root, sub); err != nil {
			return err
		}
		reg.Imports[attrs.Alias] = &ImportedNamespace{SourceTemplate: attrs.Path, Registry: sub}
	}
	return nil
}

// Strip returns a clone of root with every direct MACRO and IMPORT child
// removed; every invariant in spec §3 restricts both kinds to direct
// children of ROOT, so nothing below the top level needs inspecting.
func Strip(root *parse.Node) *parse.Node {
	clone := root.Copy()
	kept := clone.Children[:0]
	for _, c := range clone.Children {
		if c.Kind == parse.KindMacro || c.Kind == parse.KindImport {
			continue
		}
		kept = append(kept, c)
	}
	clone.Children = kept
	return clone
}

// callShape matches a macro-call-shaped variable expression: a bare name
// or alias-qualified name, applied to a parenthesized argument list.
// Greedy up to the final ')' so nested call arguments don't truncate it.
var callShape = regexp.MustCompile(`^(?:([A-Za-z_]\w*)\.)?([A-Za-z_]\w*)\((.*)\)$`)

// ParseCallShape recognizes expr as NAME(ARGS) or ALIAS.NAME(ARGS), per
// spec §4.8 step 5 and §6. ok is false when expr doesn't have that shape.
func ParseCallShape(expr string) (alias, name, rawArgs string, ok bool) {
	m := callShape.FindStringSubmatch(strings.TrimSpace(expr))
	if m == nil {
		return "", "", "", false
	}
	return m[1], m[2], m[3], true
}

// BindArguments binds a macro call's raw, comma-separated argument list
// against def's signature, per spec §4.4's argument-binding law:
// positional arguments fill left to right, named arguments may follow,
// unfilled parameters fall back to their default, and a handful of shapes
// are rejected outright.
func BindArguments(templateName string, def *MacroDefinition, rawArgs string) (map[string]string, error) {
	bound := make(map[string]string)
	filled := make(map[string]bool)

	rawArgs = strings.TrimSpace(rawArgs)
	var parts []string
	if rawArgs != "" {
		parts = exprutil.SplitTopLevel(rawArgs, ',')
	}

	positionalIndex := 0
	for _, raw := range parts {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if eq := exprutil.IndexTopLevelEquals(raw); eq >= 0 {
			paramName := strings.TrimSpace(raw[:eq])
			value := strings.TrimSpace(raw[eq+1:])
			if !paramKnown(def, paramName) {
				return nil, tmplerr.New(tmplerr.UnknownParameter, templateName, paramName)
			}
			if filled[paramName] {
				return nil, tmplerr.New(tmplerr.DuplicateArgument, templateName, paramName)
			}
			bound[paramName] = value
			filled[paramName] = true
			continue
		}
		if positionalIndex >= len(def.ParamNames) {
			return nil, tmplerr.New(tmplerr.TooManyArguments, templateName, def.Name)
		}
		paramName := def.ParamNames[positionalIndex]
		bound[paramName] = raw
		filled[paramName] = true
		positionalIndex++
	}

	for _, p := range def.ParamNames {
		if filled[p] {
			continue
		}
		if def.IsRequired(p) {
			return nil, tmplerr.New(tmplerr.MissingRequiredArgument, templateName, p)
		}
		bound[p] = def.Defaults[p]
	}
	return bound, nil
}

// ArgValue is one lowered, bound macro argument: either a compile-time
// literal or an expression the runtime variable-resolver must evaluate,
// per spec §4.8 step 6.
type ArgValue struct {
	IsLiteral   bool
	LiteralText string // raw literal text (still quoted, if a string)
	Expr        string // meaningful only when !IsLiteral
}

// LowerBindings classifies each bound argument from BindArguments as a
// literal or a runtime-resolved expression.
func LowerBindings(bound map[string]string) map[string]ArgValue {
	out := make(map[string]ArgValue, len(bound))
	for name, raw := range bound {
		if _, ok := exprutil.ParseLiteral(raw); ok {
			out[name] = ArgValue{IsLiteral: true, LiteralText: raw}
			continue
		}
		out[name] = ArgValue{Expr: raw}
	}
	return out
}

func paramKnown(def *MacroDefinition, name string) bool {
	for _, p := range def.ParamNames {
		if p == name {
			return true
		}
	}
	return false
}
