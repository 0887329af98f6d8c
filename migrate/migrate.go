// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

// Package migrate holds the core data model shared by every stage of a
// deployment: discovery, loading, merging, planning, validation and
// execution all operate on the same *Migration values.
package migrate

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Phase is both an attribute of migration content and the name of a
// deployment-wide sweep (see the package doc for migrate/session).
type Phase int

const (
	// Pre is the backward-compatible phase run while applications are live.
	Pre Phase = iota
	// Core is the disruptive phase run only during a downtime window.
	Core
	// Post is the cleanup phase run once applications have been upgraded.
	Post
)

// String implements fmt.Stringer.
func (p Phase) String() string {
	switch p {
	case Pre:
		return "Pre"
	case Core:
		return "Core"
	case Post:
		return "Post"
	default:
		return "Unknown"
	}
}

// State describes how far a migration has progressed on one target
// database. It is monotonic within the lifetime of a target registration.
type State int

const (
	// NotApplied means no phase of the migration has run on the target.
	NotApplied State = iota
	// AppliedPre means Pre has run.
	AppliedPre
	// AppliedCore means Pre and Core have run.
	AppliedCore
	// AppliedPost means all three phases have run.
	AppliedPost
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case NotApplied:
		return "NotApplied"
	case AppliedPre:
		return "AppliedPre"
	case AppliedCore:
		return "AppliedCore"
	case AppliedPost:
		return "AppliedPost"
	default:
		return "Unknown"
	}
}

// Covers reports whether s already covers the given phase, i.e. whether
// that phase has already run on the target this state describes.
func (s State) Covers(p Phase) bool {
	switch p {
	case Pre:
		return s >= AppliedPre
	case Core:
		return s >= AppliedCore
	case Post:
		return s >= AppliedPost
	default:
		return false
	}
}

// BeginName and EndName are the reserved pseudo-migration names that
// bracket a deployment. They sort first and last respectively and may
// neither declare nor be the target of a dependency.
const (
	BeginName = "_Begin"
	EndName   = "_End"
)

type (
	// Content is one of the three phase slots of a migration: the SQL text
	// authored (or later synthesized) for that phase, whether the phase
	// carries any authored SQL at all, and which deployment phase the
	// planner ultimately scheduled it into.
	Content struct {
		Sql          string
		IsRequired   bool
		PlannedPhase *Phase
	}

	// MigrationReference is a textual dependency declared by REQUIRES,
	// resolved to a Migration once the pending list has been assembled.
	MigrationReference struct {
		Name      string
		Migration *Migration
	}

	// Diagnostic is a single validator finding attached to a migration.
	Diagnostic struct {
		IsError bool
		Message string
	}

	// Migration is the unit this whole system schedules and applies.
	// Identity is Name, compared case-insensitively and ordinally (see
	// CompareNames). Migrations are never destroyed during a session; the
	// session that discovers or reads them owns them for its lifetime.
	Migration struct {
		// ID is a process-local, stable map key. It is never used as a
		// substitute for Name-based identity or ordering.
		ID uuid.UUID

		Name     string
		Path     string // empty: applied-but-source-removed
		Hash     string // blank: opt out of change detection
		State    State
		IsPseudo bool

		HasChanged bool

		Pre  Content
		Core Content
		Post Content

		DependsOn []MigrationReference

		IsContentLoaded bool
		Diagnostics     []Diagnostic

		once sync.Once
	}
)

// New returns a freshly-identified, unloaded Migration.
func New(name string) *Migration {
	return &Migration{ID: uuid.New(), Name: name}
}

// ContentFor returns a pointer to the Content slot for the given phase.
func (m *Migration) ContentFor(p Phase) *Content {
	switch p {
	case Pre:
		return &m.Pre
	case Core:
		return &m.Core
	case Post:
		return &m.Post
	default:
		panic("migrate: unknown phase")
	}
}

// LoadOnce runs load exactly once for this migration instance, regardless
// of how many goroutines call LoadOnce concurrently. Subsequent callers
// observe the already-loaded state without redoing the work (spec §4.2,
// §9 "lazy content loading with double-checked initialization").
func (m *Migration) LoadOnce(load func(*Migration) error) error {
	var err error
	m.once.Do(func() {
		err = load(m)
		if err == nil {
			m.IsContentLoaded = true
		}
	})
	return err
}

// ComputeChanged reports whether m.Hash (the defined hash) differs,
// case-insensitively, from an applied hash; it does not set m.HasChanged. A blank applied hash (including all-whitespace)
// always yields false: it is documented as an explicit opt-out of change
// detection and must never be reported as a change (spec §9, Open
// Question (a)).
func (m *Migration) ComputeChanged(appliedHash string) bool {
	if strings.TrimSpace(appliedHash) == "" {
		return false
	}
	return !strings.EqualFold(appliedHash, m.Hash)
}

// AddDiagnostic appends a validator finding to the migration.
func (m *Migration) AddDiagnostic(isError bool, format string, args ...interface{}) {
	m.Diagnostics = append(m.Diagnostics, Diagnostic{IsError: isError, Message: fmt.Sprintf(format, args...)})
}

// HasErrors reports whether any accumulated diagnostic is an error.
func (m *Migration) HasErrors() bool {
	for _, d := range m.Diagnostics {
		if d.IsError {
			return true
		}
	}
	return false
}
