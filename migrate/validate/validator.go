// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

// Package validate implements MigrationValidator (spec §4.7): annotating
// a pending list with per-migration diagnostics and reporting whether any
// of them are errors that must abort the current phase.
package validate

import (
	"fmt"

	"deploydb.io/deploy/migrate"
	"deploydb.io/deploy/migrate/plan"
)

// applicability is the outcome of comparing a migration's PlannedPhase
// values against the session's current deployment phase.
type applicability int

const (
	none applicability = iota
	blocked
	allowed
)

// Validate annotates every non-pseudo migration in pending with
// diagnostics and reports whether the set is free of errors. earliest is
// the name of the earliest defined migration on disk (used to classify
// stale dependencies); p is the plan already computed for pending;
// current is the deployment phase the session is about to run.
func Validate(pending []*migrate.Migration, earliest string, p *plan.Plan, current migrate.Phase) bool {
	ok := true
	for _, m := range pending {
		if m.IsPseudo {
			continue
		}
		if !checkNotChanged(m) {
			ok = false
		}
		if !checkDependencies(m, earliest) {
			ok = false
		}
		app := applicabilityOf(m, current)
		if app == blocked {
			m.AddDiagnostic(true, "%s: cannot apply in phase %s because required earlier-phase content exists", m.Name, current)
			ok = false
		}
		if !checkHasSource(m, app) {
			ok = false
		}
	}
	return ok
}

// checkNotChanged emits an error if a migration has already begun
// applying on the target but its content changed since (spec §4.7
// "Not-changed").
func checkNotChanged(m *migrate.Migration) bool {
	if m.State != migrate.NotApplied && m.HasChanged {
		m.AddDiagnostic(true, "%s: content changed after it was applied; revert the change or override the recorded hash", m.Name)
		return false
	}
	return true
}

// checkDependencies classifies every unresolved DependsOn reference of m
// relative to m's own name and the earliest name defined on disk (spec
// §4.7 "Dependencies"). Resolved references need no classification.
func checkDependencies(m *migrate.Migration, earliest string) bool {
	ok := true
	for _, ref := range m.DependsOn {
		if ref.Migration != nil {
			continue
		}
		switch {
		case earliest != "" && migrate.Less(ref.Name, earliest):
			m.AddDiagnostic(false, "%s: ignoring dependency %q older than the earliest migration on disk", m.Name, ref.Name)
		case migrate.SameName(ref.Name, m.Name):
			m.AddDiagnostic(true, "%s: depends on itself", m.Name)
			ok = false
		case migrate.Less(m.Name, ref.Name):
			m.AddDiagnostic(true, "%s: dependency %q must run later in the sequence and cannot be satisfied", m.Name, ref.Name)
			ok = false
		default:
			m.AddDiagnostic(true, "%s: dependency %q not found; cannot be satisfied", m.Name, ref.Name)
			ok = false
		}
	}
	return ok
}

// applicabilityOf inspects m's three PlannedPhase values against current
// (spec §4.7 "Applicability"). A phase scheduled strictly after current
// is ignored (not yet relevant); a phase scheduled strictly before
// current whose content was authored means m cannot run this phase
// without that earlier phase having already happened, i.e. blocked.
func applicabilityOf(m *migrate.Migration, current migrate.Phase) applicability {
	app := none
	for _, p := range []migrate.Phase{migrate.Pre, migrate.Core, migrate.Post} {
		content := m.ContentFor(p)
		if content.PlannedPhase == nil {
			continue
		}
		planned := *content.PlannedPhase
		switch {
		case planned > current:
			continue
		case planned < current && content.IsRequired:
			return blocked
		case planned == current:
			if app != blocked {
				app = allowed
			}
		}
	}
	return app
}

// checkHasSource emits an error if a migration that may be applied this
// phase has no filesystem source to read content from (spec §4.7 "Has
// source"): an applied-but-vanished migration whose definition is still
// needed for an upcoming phase.
func checkHasSource(m *migrate.Migration, app applicability) bool {
	if app == none || m.Path != "" {
		return true
	}
	m.AddDiagnostic(true, "%s: no source on disk; stuck requiring phase content that cannot be read", m.Name)
	return false
}

// Report renders every diagnostic in pending as one "[ERROR] message" or
// "[WARNING] message" line. Unlike the applicator's log "Validation
// Results:" block, it adds no indentation and no migration-name prefix.
func Report(pending []*migrate.Migration) string {
	var out string
	for _, m := range pending {
		for _, d := range m.Diagnostics {
			kind := "WARNING"
			if d.IsError {
				kind = "ERROR"
			}
			out += fmt.Sprintf("[%s] %s\n", kind, d.Message)
		}
	}
	return out
}
