// Copyright 2024 The tmplforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package loadcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohae/tmplforge/compile"
)

func sampleArtifact(name string) *compile.CompiledTemplate {
	return &compile.CompiledTemplate{
		Name: name,
		Program: []*compile.Instr{
			{Kind: compile.InstrText, Text: "hi"},
		},
	}
}

func TestArtifactCacheMemoryRoundTrip(t *testing.T) {
	c, err := NewArtifactCache("", 8)
	require.NoError(t, err)

	key := Key{Name: "t", SourceHash: HashSource("src")}
	_, ok := c.Get(key)
	assert.False(t, ok)

	require.NoError(t, c.Put(key, sampleArtifact("t")))
	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, "t", got.Name)
	require.Len(t, got.Program, 1)
	assert.Equal(t, "hi", got.Program[0].Text)
}

func TestArtifactCacheDiskTierSurvivesEviction(t *testing.T) {
	dir := t.TempDir()
	c, err := NewArtifactCache(dir, 1)
	require.NoError(t, err)

	keyA := Key{Name: "a", SourceHash: HashSource("srcA")}
	keyB := Key{Name: "b", SourceHash: HashSource("srcB")}

	require.NoError(t, c.Put(keyA, sampleArtifact("a")))
	require.NoError(t, c.Put(keyB, sampleArtifact("b"))) // evicts a from memory, capacity 1

	got, ok := c.Get(keyA)
	require.True(t, ok, "disk tier should still have a")
	assert.Equal(t, "a", got.Name)
}

func TestArtifactCacheDistinctHashesAreDistinctKeys(t *testing.T) {
	c, err := NewArtifactCache("", 8)
	require.NoError(t, err)

	k1 := Key{Name: "t", SourceHash: HashSource("v1")}
	k2 := Key{Name: "t", SourceHash: HashSource("v2")}

	require.NoError(t, c.Put(k1, sampleArtifact("t-v1")))
	_, ok := c.Get(k2)
	assert.False(t, ok, "a stale hash must not serve a newer template's cache slot")
}

func TestHashSourceIsDeterministicAndSensitiveToContent(t *testing.T) {
	assert.Equal(t, HashSource("x"), HashSource("x"))
	assert.NotEqual(t, HashSource("x"), HashSource("y"))
}
