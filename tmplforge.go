// Copyright 2014 Joel Scoble (github:mohae). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// This code is based on code originally written by The Go Authors.
// Their copyright notice immediately follows this one.

// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tmplforge is the top-level facade over the compilation
// pipeline: Engine wires a Compiler, an optional rate limiter, an
// optional two-tier artifact cache, and a runtime helper table, then
// exposes Render/RenderFile the way the teacher package exposed its
// Render/RenderFile over its own Parse/Execute.
package tmplforge

import (
	"bytes"
	"os"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/mohae/tmplforge/compile"
	"github.com/mohae/tmplforge/loadcache"
	"github.com/mohae/tmplforge/ratelimit"
	"github.com/mohae/tmplforge/runtimehelpers"
)

// Engine compiles and renders templates. The zero Engine is usable: it
// compiles with no inheritance/import loader, no rate limiting, no
// caching, and the reference runtimehelpers.DefaultHelpers table.
type Engine struct {
	Loader  compile.Loader
	Limiter *ratelimit.Limiter
	Cache   *loadcache.ArtifactCache
	Helpers runtimehelpers.HelperTable

	group singleflight.Group
}

func (e *Engine) helpers() runtimehelpers.HelperTable {
	if e.Helpers != nil {
		return e.Helpers
	}
	return runtimehelpers.DefaultHelpers{}
}

// RenderFile reads path and renders it with vars, per the teacher's
// "read then delegate to Render" shape.
func (e *Engine) RenderFile(path string, vars map[string]interface{}) (string, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return e.Render(path, string(file), vars)
}

// Render compiles name/src (via Compile, so caching/rate-limiting/
// singleflight coalescing all apply) and executes the result against a
// fresh root Scope seeded with vars.
func (e *Engine) Render(name, src string, vars map[string]interface{}) (string, error) {
	ct, err := e.Compile(name, src)
	if err != nil {
		return "", err
	}
	var b bytes.Buffer
	scope := runtimehelpers.NewScope(vars)
	if err := execProgram(&b, ct.Program, scope, e.helpers()); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Compile returns name's compiled artifact, consulting the cache first
// (when configured) and coalescing concurrent compiles of the same name
// via singleflight so a burst of renderers asking for a still-compiling
// template blocks on one real compilation instead of racing the
// pipeline N times.
func (e *Engine) Compile(name, src string) (*compile.CompiledTemplate, error) {
	compileID := uuid.New().String()
	logger.Debugf("compile %q id=%s", name, compileID)

	var key loadcache.Key
	if e.Cache != nil && name != "" {
		key = loadcache.Key{Name: name, SourceHash: loadcache.HashSource(src)}
		if ct, ok := e.Cache.Get(key); ok {
			logger.Debugf("compile %q id=%s cache hit", name, compileID)
			return ct, nil
		}
	}

	sfKey := name
	if sfKey == "" {
		sfKey = loadcache.HashSource(src)
	}
	v, err, _ := e.group.Do(sfKey, func() (interface{}, error) {
		c := &compile.Compiler{Loader: e.Loader, Limiter: e.Limiter}
		ct, err := c.Compile(name, src)
		if err != nil {
			return nil, err
		}
		if e.Cache != nil && name != "" {
			if err := e.Cache.Put(key, ct); err != nil {
				logger.Debugf("compile %q id=%s cache write failed: %v", name, compileID, err)
			}
		}
		return ct, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*compile.CompiledTemplate), nil
}
