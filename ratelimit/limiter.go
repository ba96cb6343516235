// Copyright 2024 The tmplforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ratelimit implements the RateLimiter component (spec §4.9): a
// per-key sliding-window attempt counter guarding repeated compilation of
// the same template. State is scoped to one Limiter instance, never
// promoted to process-global (spec §9).
package ratelimit

import (
	"sync"
	"time"
)

// defaultHousekeepThreshold is the key-count above which Check sweeps
// every key's window, per spec §4.9's "periodic housekeeping" clause.
const defaultHousekeepThreshold = 1000

// Config configures a Limiter.
type Config struct {
	MaxAttempts   int
	WindowSeconds float64

	// HousekeepThreshold overrides defaultHousekeepThreshold when > 0.
	HousekeepThreshold int
}

// Limiter is a sliding-window, per-key attempt counter. The zero value is
// not usable; construct with New. A Limiter's attempt map is shared
// across every Check call made against it; concurrent callers are
// serialised by an internal mutex (spec §5).
type Limiter struct {
	mu       sync.Mutex
	enabled  bool
	cfg      Config
	attempts map[string][]time.Time
}

// New returns an enabled Limiter with the given configuration.
func New(cfg Config) *Limiter {
	if cfg.HousekeepThreshold <= 0 {
		cfg.HousekeepThreshold = defaultHousekeepThreshold
	}
	return &Limiter{
		enabled:  true,
		cfg:      cfg,
		attempts: make(map[string][]time.Time),
	}
}

// SetEnabled flips the global short-circuit: when disabled, every Check
// reports accepted regardless of history.
func (l *Limiter) SetEnabled(enabled bool) {
	l.mu.Lock()
	l.enabled = enabled
	l.mu.Unlock()
}

// Check records an attempt for key against the sliding window, returning
// whether it's accepted and, when rejected, the wait time in seconds
// until the oldest attempt in the window expires.
func (l *Limiter) Check(key string) (accepted bool, waitSeconds float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.enabled {
		return true, 0
	}
	now := time.Now()
	l.prune(key, now)
	if len(l.attempts[key]) >= l.cfg.MaxAttempts {
		return false, l.waitTimeLocked(key, now)
	}
	l.attempts[key] = append(l.attempts[key], now)
	if len(l.attempts) > l.cfg.HousekeepThreshold {
		l.housekeep(now)
	}
	return true, 0
}

// Remaining returns how many more attempts key may make within the
// current window before being rejected.
func (l *Limiter) Remaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	l.prune(key, now)
	remaining := l.cfg.MaxAttempts - len(l.attempts[key])
	if remaining < 0 {
		return 0
	}
	return remaining
}

// WaitTime returns the seconds until key's oldest recorded attempt
// leaves the window, or 0 if key has no attempts in the window.
func (l *Limiter) WaitTime(key string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	l.prune(key, now)
	return l.waitTimeLocked(key, now)
}

// prune drops timestamps older than now-WindowSeconds from key's list.
// Callers must hold l.mu.
func (l *Limiter) prune(key string, now time.Time) {
	lst := l.attempts[key]
	if len(lst) == 0 {
		return
	}
	cutoff := now.Add(-time.Duration(l.cfg.WindowSeconds * float64(time.Second)))
	i := 0
	for i < len(lst) && lst[i].Before(cutoff) {
		i++
	}
	if i == 0 {
		return
	}
	if i == len(lst) {
		delete(l.attempts, key)
		return
	}
	l.attempts[key] = append([]time.Time{}, lst[i:]...)
}

// waitTimeLocked computes WaitTime assuming prune(key, now) already ran
// and l.mu is held.
func (l *Limiter) waitTimeLocked(key string, now time.Time) float64 {
	lst := l.attempts[key]
	if len(lst) == 0 {
		return 0
	}
	leavesAt := lst[0].Add(time.Duration(l.cfg.WindowSeconds * float64(time.Second)))
	wait := leavesAt.Sub(now).Seconds()
	if wait < 0 {
		return 0
	}
	return wait
}

// housekeep sweeps every tracked key's window, dropping keys left empty.
// Called only when the tracked key count exceeds cfg.HousekeepThreshold.
// Callers must hold l.mu.
func (l *Limiter) housekeep(now time.Time) {
	for key := range l.attempts {
		l.prune(key, now)
	}
	logger.Debugf("ratelimit housekeeping swept %d keys", len(l.attempts))
}
