// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"deploydb.io/deploy/config"
)

func writeHCL(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deploy.hcl")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const validDescriptor = `
source   = "/srv/migrations"
log_dir  = "/var/log/deploy"
allow_core_phase = true

parallel_set {
  max_parallelism = 2

  target {
    server   = "sql-01"
    database = "orders"
  }
  target {
    server   = "sql-01"
    database = "billing"
  }
}
`

func TestLoad_ValidDescriptor(t *testing.T) {
	cfg, err := config.Load(writeHCL(t, validDescriptor))
	require.NoError(t, err)
	require.Equal(t, "/srv/migrations", cfg.Source)
	require.True(t, cfg.AllowCorePhase)
	require.False(t, cfg.WhatIf)
	require.Len(t, cfg.Sets, 1)
	require.Equal(t, 2, cfg.Sets[0].MaxParallelism)
	require.Len(t, cfg.Sets[0].Targets, 2)
	require.Equal(t, "sql-01", cfg.Sets[0].Targets[0].Server)
}

func TestLoad_DefaultsMaxParallelismToOne(t *testing.T) {
	cfg, err := config.Load(writeHCL(t, `
source  = "/srv/migrations"
log_dir = "/var/log/deploy"

parallel_set {
  target {
    server   = "sql-01"
    database = "orders"
  }
}
`))
	require.NoError(t, err)
	require.Equal(t, 1, cfg.Sets[0].MaxParallelism)
}

func TestLoad_MissingSourceFailsValidation(t *testing.T) {
	_, err := config.Load(writeHCL(t, `
log_dir = "/var/log/deploy"

parallel_set {
  target {
    server   = "sql-01"
    database = "orders"
  }
}
`))
	require.Error(t, err)
}

func TestLoad_NoParallelSetsFailsValidation(t *testing.T) {
	_, err := config.Load(writeHCL(t, `
source  = "/srv/migrations"
log_dir = "/var/log/deploy"
`))
	require.Error(t, err)
}

func TestLoad_MalformedHCLFailsAtParse(t *testing.T) {
	_, err := config.Load(writeHCL(t, `this is not { valid hcl`))
	require.Error(t, err)
}

func TestParallelSets_ConvertsToSessionShape(t *testing.T) {
	cfg, err := config.Load(writeHCL(t, validDescriptor))
	require.NoError(t, err)

	sets := cfg.ParallelSets()
	require.Len(t, sets, 1)
	require.Equal(t, 2, sets[0].MaxParallelism)
	require.Len(t, sets[0].Targets, 2)
	require.Equal(t, "orders", sets[0].Targets[0].Database)
	require.NotNil(t, sets[0].Targets[0].Open)
}
