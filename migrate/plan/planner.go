// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

// Package plan implements MigrationPlanner (spec §4.6): assembling the
// three deployment-phase lists (Pre, Core, Post) for a pending list of
// migrations, hoisting content into Core whenever a cross-migration
// dependency demands it.
package plan

import (
	"fmt"
	"strings"

	"deploydb.io/deploy/migrate"
)

// Entry is one scheduled (migration, content-phase) pair: which of a
// migration's three Content slots will be executed.
type Entry struct {
	Migration    *migrate.Migration
	ContentPhase migrate.Phase
}

// Plan is the scheduled decomposition of a pending list into three
// ordered deployment-phase lists.
type Plan struct {
	Pre, Core, Post []Entry

	scheduled map[scheduleKey]bool
}

type scheduleKey struct {
	name    string
	content migrate.Phase
}

// New assembles a Plan from pending (already merged and reference
// resolved, per migrate.Sort order).
func New(pending []*migrate.Migration) *Plan {
	p := &Plan{scheduled: make(map[scheduleKey]bool)}
	p.schedulePre(pending)
	p.scheduleCore(pending)
	p.schedulePost(pending)
	return p
}

// IsEmpty reports whether the deployment-phase list for phase is empty.
func (p *Plan) IsEmpty(phase migrate.Phase) bool {
	return len(p.listFor(phase)) == 0
}

// IsCoreRequired reports whether the Core deployment-phase list contains
// any entry whose content was authored (non-empty) — i.e. disruptive
// content must run in Core.
func (p *Plan) IsCoreRequired() bool {
	for _, e := range p.Core {
		if e.Migration.ContentFor(e.ContentPhase).IsRequired {
			return true
		}
	}
	return false
}

// HasPreContentInCore reports whether any Pre content was hoisted later
// into the Core deployment phase. Reporting only.
func (p *Plan) HasPreContentInCore() bool {
	for _, e := range p.Core {
		if e.ContentPhase == migrate.Pre {
			return true
		}
	}
	return false
}

// HasPostContentInCore reports whether any Post content was hoisted
// earlier into the Core deployment phase. Reporting only.
func (p *Plan) HasPostContentInCore() bool {
	for _, e := range p.Core {
		if e.ContentPhase == migrate.Post {
			return true
		}
	}
	return false
}

// Entries returns the scheduled list for the given deployment phase.
func (p *Plan) Entries(deploymentPhase migrate.Phase) []Entry {
	return p.listFor(deploymentPhase)
}

func (p *Plan) listFor(phase migrate.Phase) []Entry {
	switch phase {
	case migrate.Pre:
		return p.Pre
	case migrate.Core:
		return p.Core
	case migrate.Post:
		return p.Post
	default:
		return nil
	}
}

// Report renders the three deployment-phase lists as (Name, Phase)
// sequences, the same shape used by the end-to-end scenarios of spec §8.
// Used both as a test oracle and by a dry-run report with no live target.
func (p *Plan) Report() string {
	var b strings.Builder
	for _, dp := range []migrate.Phase{migrate.Pre, migrate.Core, migrate.Post} {
		fmt.Fprintf(&b, "%s:\n", dp)
		for _, e := range p.listFor(dp) {
			fmt.Fprintf(&b, "  (%s, %s)\n", e.Migration.Name, e.ContentPhase)
		}
	}
	return b.String()
}

func (p *Plan) isScheduled(m *migrate.Migration, content migrate.Phase) bool {
	return p.scheduled[scheduleKey{strings.ToLower(m.Name), content}]
}

// schedule records (m, content) in the scheduled set unconditionally, and
// — the first time this pair is recorded, and only if m's current state
// does not already cover that phase — appends the entry to the
// deployment-phase list and marks the content's PlannedPhase (spec §4.6
// "Scheduling a (migration, phase) into a deployment phase").
func (p *Plan) schedule(deploymentPhase migrate.Phase, m *migrate.Migration, content migrate.Phase) {
	key := scheduleKey{strings.ToLower(m.Name), content}
	already := p.scheduled[key]
	p.scheduled[key] = true
	if already || m.State.Covers(content) {
		return
	}
	entry := Entry{Migration: m, ContentPhase: content}
	switch deploymentPhase {
	case migrate.Pre:
		p.Pre = append(p.Pre, entry)
	case migrate.Core:
		p.Core = append(p.Core, entry)
	case migrate.Post:
		p.Post = append(p.Post, entry)
	}
	dp := deploymentPhase
	m.ContentFor(content).PlannedPhase = &dp
}

// hasUnsatisfiedDependency returns the latest (by index) dependency of m
// that is neither unresolved-and-ignorable, already fully applied, nor
// already scheduled to have its Post run (spec §4.6).
func (p *Plan) hasUnsatisfiedDependency(m *migrate.Migration) (string, bool) {
	for i := len(m.DependsOn) - 1; i >= 0; i-- {
		ref := m.DependsOn[i]
		if ref.Migration == nil {
			continue
		}
		if ref.Migration.State == migrate.AppliedPost {
			continue
		}
		if p.isScheduled(ref.Migration, migrate.Post) {
			continue
		}
		return ref.Name, true
	}
	return "", false
}

// schedulePre is sweep 1: schedule Pre content in order, stopping at the
// first migration with an unsatisfied dependency.
func (p *Plan) schedulePre(pending []*migrate.Migration) {
	for _, m := range pending {
		if _, unsatisfied := p.hasUnsatisfiedDependency(m); unsatisfied {
			return
		}
		p.schedule(migrate.Pre, m, migrate.Pre)
	}
}

// scheduleCore is sweep 2: for every pending migration, hoist whatever an
// unsatisfied dependency demands via satisfy, then unconditionally
// schedule the migration's own Core content into the Core phase.
func (p *Plan) scheduleCore(pending []*migrate.Migration) {
	for _, m := range pending {
		if name, unsatisfied := p.hasUnsatisfiedDependency(m); unsatisfied {
			p.satisfy(pending, name)
		}
		p.schedule(migrate.Core, m, migrate.Core)
	}
}

// schedulePost is sweep 3: schedule Post content for every pending
// migration not already scheduled (typically hoisted into Core earlier).
func (p *Plan) schedulePost(pending []*migrate.Migration) {
	for _, m := range pending {
		if !p.isScheduled(m, migrate.Post) {
			p.schedule(migrate.Post, m, migrate.Post)
		}
	}
}

// satisfy hoists exactly what's needed to unblock a dependency named
// name: every migration up to and including it gets its Post scheduled
// into Core (if not already), then every migration after it gets its Pre
// scheduled into Core (if not already) until one of them is itself
// blocked by a still-unsatisfied dependency (spec §4.6).
func (p *Plan) satisfy(pending []*migrate.Migration, name string) {
	after := false
	for _, m := range pending {
		if !after {
			if !p.isScheduled(m, migrate.Post) {
				p.schedule(migrate.Core, m, migrate.Post)
			}
			if migrate.SameName(m.Name, name) {
				after = true
			}
			continue
		}
		if _, unsatisfied := p.hasUnsatisfiedDependency(m); unsatisfied {
			return
		}
		if !p.isScheduled(m, migrate.Pre) {
			p.schedule(migrate.Core, m, migrate.Pre)
		}
	}
}
