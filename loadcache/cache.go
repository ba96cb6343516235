// Copyright 2024 The tmplforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package loadcache

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohae/tmplforge/compile"
)

// Key identifies one cached compiled artifact: a template name plus a
// hash of the source it was compiled from, so a stale on-disk entry
// from a since-edited template never shadows a fresh compile.
type Key struct {
	Name       string
	SourceHash string
}

// HashSource computes Key.SourceHash for src.
func HashSource(src string) string {
	sum := sha256.Sum256([]byte(src))
	return hex.EncodeToString(sum[:])
}

// entry is the gob-serializable on-disk representation of one cached
// artifact: compile.CompiledTemplate's parsed-tree and macro-registry
// fields don't round-trip through gob cleanly, so the disk tier stores
// only the lowered program, which is everything a renderer needs (macro
// bodies are already inlined into their call sites' MacroBody).
type entry struct {
	Name    string
	Program []*compile.Instr
}

// ArtifactCache is a two-tier cache for compiled artifacts: an in-memory
// LRU of bounded size in front of a gob-encoded on-disk store rooted at
// Dir, keyed by Key. Get checks memory first, then disk (promoting a
// disk hit into memory); Put writes through to both tiers.
type ArtifactCache struct {
	Dir string

	mu  sync.Mutex
	mem *lru.Cache[Key, *compile.CompiledTemplate]
}

// NewArtifactCache returns a cache with the given in-memory capacity,
// writing every Put entry through to disk under dir (no disk tier when
// dir is empty).
func NewArtifactCache(dir string, capacity int) (*ArtifactCache, error) {
	mem, err := lru.New[Key, *compile.CompiledTemplate](capacity)
	if err != nil {
		return nil, err
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &ArtifactCache{Dir: dir, mem: mem}, nil
}

// Get returns the cached artifact for key, if any.
func (c *ArtifactCache) Get(key Key) (*compile.CompiledTemplate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ct, ok := c.mem.Get(key); ok {
		return ct, true
	}
	if c.Dir == "" {
		return nil, false
	}
	ct, ok, err := c.loadDisk(key)
	if err != nil {
		logger.Debugf("artifact cache disk read failed for %q: %v", key.Name, err)
		return nil, false
	}
	if ok {
		c.mem.Add(key, ct)
	}
	return ct, ok
}

// Put stores ct under key in both tiers.
func (c *ArtifactCache) Put(key Key, ct *compile.CompiledTemplate) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.mem.Add(key, ct)
	if c.Dir == "" {
		return nil
	}
	return c.storeDisk(key, ct)
}

func (c *ArtifactCache) diskPath(key Key) string {
	return filepath.Join(c.Dir, key.Name+"."+key.SourceHash+".gob")
}

func (c *ArtifactCache) loadDisk(key Key) (*compile.CompiledTemplate, bool, error) {
	data, err := os.ReadFile(c.diskPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var e entry
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&e); err != nil {
		return nil, false, err
	}
	return &compile.CompiledTemplate{Name: e.Name, Program: e.Program}, true, nil
}

func (c *ArtifactCache) storeDisk(key Key, ct *compile.CompiledTemplate) error {
	e := entry{Name: ct.Name, Program: ct.Program}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return err
	}
	return os.WriteFile(c.diskPath(key), buf.Bytes(), 0o644)
}
