// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package validate_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"deploydb.io/deploy/migrate"
	"deploydb.io/deploy/migrate/plan"
	"deploydb.io/deploy/migrate/validate"
)

func diagMessages(m *migrate.Migration) []string {
	out := make([]string, len(m.Diagnostics))
	for i, d := range m.Diagnostics {
		out[i] = d.Message
	}
	return out
}

func TestValidate_NotChanged_ErrorsWhenAppliedButChanged(t *testing.T) {
	m := migrate.New("M1")
	m.State = migrate.AppliedPre
	m.HasChanged = true
	p := plan.New([]*migrate.Migration{m})

	ok := validate.Validate([]*migrate.Migration{m}, "", p, migrate.Pre)

	require.False(t, ok)
	require.True(t, m.HasErrors())
}

func TestValidate_NotChanged_OKWhenNotYetApplied(t *testing.T) {
	m := migrate.New("M1")
	m.Path = "/migrations/M1"
	m.HasChanged = true
	p := plan.New([]*migrate.Migration{m})

	ok := validate.Validate([]*migrate.Migration{m}, "", p, migrate.Pre)

	require.True(t, ok)
	require.False(t, m.HasErrors())
}

func TestValidate_Dependency_OlderThanEarliest_IsWarningOnly(t *testing.T) {
	m := migrate.New("M5")
	m.Path = "/migrations/M5"
	m.DependsOn = []migrate.MigrationReference{{Name: "M1"}}
	p := plan.New([]*migrate.Migration{m})

	ok := validate.Validate([]*migrate.Migration{m}, "M3", p, migrate.Pre)

	require.True(t, ok, "a stale dependency is only a warning")
	require.False(t, m.HasErrors())
	require.Contains(t, diagMessages(m)[0], "ignoring dependency")
}

func TestValidate_Dependency_EarlierButNotFound_IsError(t *testing.T) {
	m := migrate.New("M5")
	m.DependsOn = []migrate.MigrationReference{{Name: "M2"}}
	p := plan.New([]*migrate.Migration{m})

	ok := validate.Validate([]*migrate.Migration{m}, "M1", p, migrate.Pre)

	require.False(t, ok)
	require.Contains(t, diagMessages(m)[0], "not found")
}

func TestValidate_Dependency_LaterThanReferrer_IsError(t *testing.T) {
	m := migrate.New("M1")
	m.DependsOn = []migrate.MigrationReference{{Name: "M9"}}
	p := plan.New([]*migrate.Migration{m})

	ok := validate.Validate([]*migrate.Migration{m}, "M1", p, migrate.Pre)

	require.False(t, ok)
	require.Contains(t, diagMessages(m)[0], "must run later")
}

func TestValidate_Dependency_SelfDependency_IsError(t *testing.T) {
	m := migrate.New("M1")
	m.DependsOn = []migrate.MigrationReference{{Name: "M1"}}
	p := plan.New([]*migrate.Migration{m})

	ok := validate.Validate([]*migrate.Migration{m}, "M1", p, migrate.Pre)

	require.False(t, ok)
	require.Contains(t, diagMessages(m)[0], "itself")
}

func TestValidate_Applicability_BlockedWhenEarlierRequiredPhaseMissing(t *testing.T) {
	m := migrate.New("M1")
	m.Pre.IsRequired = true
	p := plan.New([]*migrate.Migration{m})

	// current = Core: m's Pre was planned (during Pre) but is required and
	// hasn't run yet by the time Core executes in this synthetic setup.
	ok := validate.Validate([]*migrate.Migration{m}, "", p, migrate.Core)

	require.False(t, ok)
	require.Contains(t, strings.Join(diagMessages(m), "\n"), "cannot apply in phase")
}

func TestValidate_HasSource_ErrorsWhenApplicableButPathMissing(t *testing.T) {
	m := migrate.New("M1")
	m.Path = ""
	p := plan.New([]*migrate.Migration{m})

	ok := validate.Validate([]*migrate.Migration{m}, "", p, migrate.Pre)

	require.False(t, ok)
	require.Contains(t, diagMessages(m)[len(diagMessages(m))-1], "no source")
}

func TestValidate_PseudoMigrationsAreSkipped(t *testing.T) {
	begin := migrate.New(migrate.BeginName)
	begin.IsPseudo = true
	begin.Path = ""
	p := plan.New([]*migrate.Migration{begin})

	ok := validate.Validate([]*migrate.Migration{begin}, "", p, migrate.Pre)

	require.True(t, ok)
	require.Empty(t, begin.Diagnostics)
}

func TestReport_RendersErrorsAndWarnings(t *testing.T) {
	m := migrate.New("M1")
	m.AddDiagnostic(true, "boom")
	m.AddDiagnostic(false, "heads up")

	out := validate.Report([]*migrate.Migration{m})

	require.Contains(t, out, "[ERROR] boom")
	require.Contains(t, out, "[WARNING] heads up")
}
