// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

// Command deploy is a thin composition root wiring config, discovery and
// the session together. The CLI wrapper itself is explicitly out of
// scope (spec §1); this stays proportionally minimal: stdlib flag only,
// one phase per invocation, errors to stderr.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"deploydb.io/deploy/config"
	"deploydb.io/deploy/migrate"
	"deploydb.io/deploy/migrate/loader"
	"deploydb.io/deploy/migrate/local"
	"deploydb.io/deploy/migrate/merge"
	"deploydb.io/deploy/migrate/plan"
	"deploydb.io/deploy/migrate/resolve"
	"deploydb.io/deploy/migrate/session"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("deploy", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to the deployment descriptor (.hcl)")
	phaseName := fs.String("phase", "", "deployment phase to run: pre, core, or post")
	dryRun := fs.Bool("dry-run", false, "print the computed plan against an empty applied-migration list and exit, without opening any database connection")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *configPath == "" {
		return fmt.Errorf("deploy: -config is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	repo, err := local.Open(cfg.Source)
	if err != nil {
		return err
	}
	defined, err := repo.Discover(ctx, "")
	if err != nil {
		return err
	}

	if *dryRun {
		return printDryRunPlan(defined)
	}

	phase, err := parsePhase(*phaseName)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return fmt.Errorf("deploy: creating log directory: %w", err)
	}

	s := session.New(defined, cfg.LogDir, cfg.AllowCorePhase, cfg.WhatIf)
	fmt.Printf("Deployment %s: running phase %s against %d parallel set(s)\n", s.Deployment, phase, len(cfg.Sets))
	return s.RunPhase(ctx, phase, cfg.ParallelSets())
}

// printDryRunPlan merges defined against an empty applied list, so every
// migration is treated as NotApplied, and prints the resulting plan. It
// never opens a database connection, unlike -phase's what-if mode, which
// still reads real applied state from the target.
func printDryRunPlan(defined []*migrate.Migration) error {
	pending, err := merge.Merge(loader.New(), defined, nil)
	if err != nil {
		return fmt.Errorf("deploy: %w", err)
	}
	resolve.Resolve(pending)
	fmt.Print(plan.New(pending).Report())
	return nil
}

func parsePhase(name string) (migrate.Phase, error) {
	switch name {
	case "pre", "Pre", "PRE":
		return migrate.Pre, nil
	case "core", "Core", "CORE":
		return migrate.Core, nil
	case "post", "Post", "POST":
		return migrate.Post, nil
	default:
		return migrate.Pre, fmt.Errorf("deploy: -phase must be one of pre, core, post (got %q)", name)
	}
}
