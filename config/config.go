// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

// Package config loads and validates the HCL deployment descriptor: the
// migration source directory, the log directory, the two operator
// switches (AllowCorePhase, WhatIf), and the parallel sets of target
// databases a deployment runs against.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

type (
	// Target names one database a deployment phase is applied against.
	Target struct {
		Server   string `hcl:"server" validate:"required"`
		Database string `hcl:"database" validate:"required"`
	}

	// ParallelSet groups targets that run with bounded concurrency among
	// themselves (spec §5); sets themselves run with unlimited
	// concurrency against each other.
	ParallelSet struct {
		// MaxParallelism defaults to 1 in Load when omitted or <1; it
		// carries no validate tag since that default, not a validation
		// error, is the intended behavior for the common omitted case.
		MaxParallelism int      `hcl:"max_parallelism,optional"`
		Targets        []Target `hcl:"target,block" validate:"required,min=1,dive"`
	}

	// Config is the root of a deployment descriptor.
	Config struct {
		Source         string        `hcl:"source" validate:"required"`
		LogDir         string        `hcl:"log_dir" validate:"required"`
		AllowCorePhase bool          `hcl:"allow_core_phase,optional"`
		WhatIf         bool          `hcl:"what_if,optional"`
		Sets           []ParallelSet `hcl:"parallel_set,block" validate:"required,min=1,dive"`
	}
)

var validate = validator.New()

// Load parses and validates the deployment descriptor at path. It mirrors
// `hashicorp/hcl/v2/hclsimple`'s two-step parse-then-decode shape at a
// scope fixed to this one descriptor, rather than pulling in the
// teacher's full extensible `schemahcl` block engine.
func Load(path string) (*Config, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("config: parsing %s: %w", path, diags)
	}
	var cfg Config
	if diags := gohcl.DecodeBody(f.Body, nil, &cfg); diags.HasErrors() {
		return nil, fmt.Errorf("config: decoding %s: %w", path, diags)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	for i := range cfg.Sets {
		if cfg.Sets[i].MaxParallelism < 1 {
			cfg.Sets[i].MaxParallelism = 1
		}
	}
	return &cfg, nil
}
