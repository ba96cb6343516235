// Copyright 2024 The tmplforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package loadcache provides reference implementations of the two
// collaborators the compilation core treats as external: a template
// Loader and a persistent compiled-artifact cache. Neither is part of
// the core pipeline; compile.Compiler only needs something satisfying
// its own minimal Loader interface, and Engine's cache is opaque to the
// passes themselves.
package loadcache

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/mohae/tmplforge/tmplerr"
)

// MapLoader is an in-memory Loader backed by a fixed name->source map,
// for tests and embedded templates.
type MapLoader map[string]string

// Load returns the source registered under path, or TemplateNotFound.
func (m MapLoader) Load(path string) (string, error) {
	src, ok := m[path]
	if !ok {
		return "", tmplerr.New(tmplerr.TemplateNotFound, "", path)
	}
	return src, nil
}

// DiskLoader loads template source files rooted at a directory, caching
// each file's contents in memory and invalidating the cache entry when
// fsnotify reports a write, remove or rename of it, matched by base name
// among the files directly under Root. Paths passed to
// Load are joined onto Root; escaping Root via ".." is rejected.
type DiskLoader struct {
	Root string

	mu      sync.RWMutex
	cache   map[string]string
	watcher *fsnotify.Watcher
	closed  bool
}

// NewDiskLoader starts watching root for changes and returns a ready
// DiskLoader. Call Close when done to stop the watcher goroutine.
func NewDiskLoader(root string) (*DiskLoader, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(root); err != nil {
		watcher.Close()
		return nil, err
	}
	dl := &DiskLoader{
		Root:    root,
		cache:   make(map[string]string),
		watcher: watcher,
	}
	go dl.watch()
	return dl, nil
}

func (dl *DiskLoader) watch() {
	for {
		select {
		case event, ok := <-dl.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				dl.invalidate(filepath.Base(event.Name))
			}
		case _, ok := <-dl.watcher.Errors:
			if !ok {
				return
			}
			logger.Debugf("disk loader watch error on %q", dl.Root)
		}
	}
}

func (dl *DiskLoader) invalidate(name string) {
	dl.mu.Lock()
	defer dl.mu.Unlock()
	delete(dl.cache, name)
	logger.Debugf("invalidated cached source for %q", name)
}

// Load returns path's contents, served from cache when present.
func (dl *DiskLoader) Load(path string) (string, error) {
	dl.mu.RLock()
	if src, ok := dl.cache[path]; ok {
		dl.mu.RUnlock()
		return src, nil
	}
	dl.mu.RUnlock()

	full := filepath.Join(dl.Root, path)
	if !within(dl.Root, full) {
		return "", tmplerr.New(tmplerr.TemplateNotFound, "", path)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return "", tmplerr.New(tmplerr.TemplateNotFound, "", path)
		}
		return "", err
	}

	src := string(data)
	dl.mu.Lock()
	dl.cache[path] = src
	dl.mu.Unlock()
	return src, nil
}

// Close stops the underlying fsnotify watcher.
func (dl *DiskLoader) Close() error {
	dl.mu.Lock()
	defer dl.mu.Unlock()
	if dl.closed {
		return nil
	}
	dl.closed = true
	return dl.watcher.Close()
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !filepath.IsAbs(rel) && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
