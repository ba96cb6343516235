// Copyright 2024 The tmplforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads cmd/tmplc's settings via viper: a config file
// (tmplforge.yaml, searched in the working directory and $HOME), environment
// variables prefixed TMPLFORGE_, and command-line flags, in that
// increasing order of precedence.
package config

import (
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the resolved set of knobs cmd/tmplc wires into an Engine.
type Config struct {
	// TemplateDir is the root a loadcache.DiskLoader watches.
	TemplateDir string `mapstructure:"template_dir"`

	// CacheDir is where the on-disk tier of loadcache.ArtifactCache
	// persists compiled artifacts. Empty disables the disk tier.
	CacheDir string `mapstructure:"cache_dir"`
	// CacheCapacity is the in-memory LRU's entry count.
	CacheCapacity int `mapstructure:"cache_capacity"`

	// RateLimitEnabled toggles the ratelimit.Limiter entirely.
	RateLimitEnabled bool `mapstructure:"rate_limit_enabled"`
	// RateLimitMaxAttempts and RateLimitWindowSeconds parameterize the
	// sliding window (spec §4.9).
	RateLimitMaxAttempts   int     `mapstructure:"rate_limit_max_attempts"`
	RateLimitWindowSeconds float64 `mapstructure:"rate_limit_window_seconds"`
	RateLimitHousekeepAt   int     `mapstructure:"rate_limit_housekeep_at"`

	// LogLevel is one of seelog's level names (trace, debug, info, warn,
	// error, critical, off). It is loaded with the rest of Config, but no
	// logger.go reads it: each package's SetLogWriter logs at trace level.
	LogLevel string `mapstructure:"log_level"`
}

// Defaults returns the configuration used when no file, environment
// variable, or flag overrides a field.
func Defaults() Config {
	return Config{
		CacheCapacity:          256,
		RateLimitEnabled:       true,
		RateLimitMaxAttempts:   30,
		RateLimitWindowSeconds: 60,
		RateLimitHousekeepAt:   1000,
		LogLevel:               "info",
	}
}

// Load resolves Config from (in increasing precedence): Defaults(), a
// tmplforge.yaml file found on viper's search path,
// TMPLFORGE_-prefixed environment variables, and flags already registered
// on fs (bound by name, with underscores translated to dashes).
func Load(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()

	def := Defaults()
	v.SetDefault("template_dir", def.TemplateDir)
	v.SetDefault("cache_dir", def.CacheDir)
	v.SetDefault("cache_capacity", def.CacheCapacity)
	v.SetDefault("rate_limit_enabled", def.RateLimitEnabled)
	v.SetDefault("rate_limit_max_attempts", def.RateLimitMaxAttempts)
	v.SetDefault("rate_limit_window_seconds", def.RateLimitWindowSeconds)
	v.SetDefault("rate_limit_housekeep_at", def.RateLimitHousekeepAt)
	v.SetDefault("log_level", def.LogLevel)

	v.SetConfigName("tmplforge")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME")
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("TMPLFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		var bindErr error
		fs.VisitAll(func(f *pflag.Flag) {
			if bindErr != nil {
				return
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			bindErr = v.BindPFlag(key, f)
		})
		if bindErr != nil {
			return Config{}, bindErr
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
