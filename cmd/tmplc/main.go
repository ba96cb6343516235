// Copyright 2024 The tmplforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tmplc compiles and renders templates from the command line,
// wiring tmplforge.Engine to the loadcache, ratelimit, and config
// packages.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	tmplforge "github.com/mohae/tmplforge"
	"github.com/mohae/tmplforge/internal/config"
	"github.com/mohae/tmplforge/loadcache"
	"github.com/mohae/tmplforge/ratelimit"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tmplc",
		Short: "Compile and render tmplforge templates",
	}

	root.PersistentFlags().String("template-dir", "", "root directory templates and their extends/imports resolve against")
	root.PersistentFlags().String("cache-dir", "", "on-disk artifact cache directory (empty disables the disk tier)")
	root.PersistentFlags().Int("cache-capacity", 0, "in-memory artifact cache LRU capacity")
	root.PersistentFlags().Bool("rate-limit-enabled", true, "enable the per-template compile rate limiter")
	root.PersistentFlags().Int("rate-limit-max-attempts", 0, "max compiles per window per template name")
	root.PersistentFlags().Float64("rate-limit-window-seconds", 0, "sliding window width, in seconds")

	root.AddCommand(newRenderCmd(root), newCompileCmd(root))
	return root
}

func loadEngine(cmd *cobra.Command) (*tmplforge.Engine, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}

	e := &tmplforge.Engine{}
	if cfg.TemplateDir != "" {
		dl, err := loadcache.NewDiskLoader(cfg.TemplateDir)
		if err != nil {
			return nil, err
		}
		e.Loader = dl
	}
	if cfg.RateLimitEnabled {
		e.Limiter = ratelimit.New(ratelimit.Config{
			MaxAttempts:        cfg.RateLimitMaxAttempts,
			WindowSeconds:      cfg.RateLimitWindowSeconds,
			HousekeepThreshold: cfg.RateLimitHousekeepAt,
		})
	}
	if cfg.CacheDir != "" || cfg.CacheCapacity > 0 {
		capacity := cfg.CacheCapacity
		if capacity <= 0 {
			capacity = 1
		}
		cache, err := loadcache.NewArtifactCache(cfg.CacheDir, capacity)
		if err != nil {
			return nil, err
		}
		e.Cache = cache
	}
	return e, nil
}

func newCompileCmd(root *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:   "compile FILE",
		Short: "Compile a template and print its lowered instruction program as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEngine(cmd)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			ct, err := e.Compile(args[0], string(data))
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(ct.Program, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

func newRenderCmd(root *cobra.Command) *cobra.Command {
	var varsPath string
	cmd := &cobra.Command{
		Use:   "render FILE",
		Short: "Compile and render a template against JSON-encoded variables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEngine(cmd)
			if err != nil {
				return err
			}

			vars := map[string]interface{}{}
			if varsPath != "" {
				data, err := os.ReadFile(varsPath)
				if err != nil {
					return err
				}
				if err := json.Unmarshal(data, &vars); err != nil {
					return err
				}
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			out, err := e.Render(args[0], string(data), vars)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&varsPath, "vars", "", "path to a JSON file of template variables")
	return cmd
}
