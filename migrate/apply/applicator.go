// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

// Package apply implements MigrationApplicator (spec §4.8): the
// per-target execution sequence from opening a log file through
// executing a plan's phase entries on a single connection.
package apply

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/user"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"

	"deploydb.io/deploy/migrate"
	"deploydb.io/deploy/migrate/loader"
	"deploydb.io/deploy/migrate/merge"
	"deploydb.io/deploy/migrate/plan"
	"deploydb.io/deploy/migrate/remote"
	"deploydb.io/deploy/migrate/resolve"
	"deploydb.io/deploy/migrate/validate"
)

// Outcome is the terminal state of one target's execution attempt (spec
// §4.8's state machine).
type Outcome int

const (
	Successful Outcome = iota
	Incomplete
	Failed
)

// String implements fmt.Stringer. The log file's trailing marker ("",
// "[INCOMPLETE]" or "[EXCEPTION]") comes from marker, not from String.
func (o Outcome) String() string {
	switch o {
	case Successful:
		return "Successful"
	case Incomplete:
		return "Incomplete"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

func (o Outcome) marker() string {
	switch o {
	case Incomplete:
		return "[INCOMPLETE]"
	case Failed:
		return "[EXCEPTION]"
	default:
		return ""
	}
}

// Target names one database to deploy to and knows how to open a
// connection to it. Kept as a factory (rather than a live *sql.DB) so the
// applicator owns the connection's lifetime end to end.
type Target struct {
	Server, Database string
	Open             func(ctx context.Context) (*sql.DB, error)
}

// ErrorSignal exposes the session's shared error counter (spec §5
// "error-induced stop"): cooperative, best-effort, checked before every
// phase-entry execution.
type ErrorSignal interface {
	HasErrors() bool
}

// Metrics receives additive observability events; nil is a valid,
// no-op-equivalent value (spec "Metrics [NEW]").
type Metrics interface {
	ObserveApplied(phase migrate.Phase)
	ObserveError(kind string)
}

// Result is what one Apply call reports back to its caller (the session).
type Result struct {
	Outcome Outcome
	Applied int
	Elapsed time.Duration
}

// Applicator executes one phase of one deployment against one target
// database (spec §4.8).
type Applicator struct {
	Target         Target
	Defined        []*migrate.Migration
	LogDir         string
	AllowCorePhase bool
	WhatIf         bool
	Deployment     uuid.UUID
	Errors         ErrorSignal
	Metrics        Metrics
}

// Apply runs one deployment phase end to end against a.Target, writing a
// per-database log file and returning the outcome.
func (a *Applicator) Apply(ctx context.Context, phase migrate.Phase) (Result, error) {
	logger, err := NewFileLogger(a.LogDir, a.Target.Server, a.Target.Database, phase)
	if err != nil {
		return Result{Outcome: Failed}, err
	}
	defer logger.Close()

	started := time.Now()
	logger.Log(systemHeader(a.Deployment, phase, a.Target, started))
	logger.Log(migrate.LogMessage{Text: fmt.Sprintf("Starting %s / %s (%s)", a.Target.Server, a.Target.Database, phase)})

	result, err := a.run(ctx, phase, logger, started)
	logger.Log(migrate.LogDone{Applied: result.Applied, Elapsed: result.Elapsed, Outcome: result.Outcome.marker()})
	return result, err
}

func (a *Applicator) run(ctx context.Context, phase migrate.Phase, logger migrate.Logger, started time.Time) (Result, error) {
	fail := func(outcome Outcome, applied int, err error) (Result, error) {
		if a.Metrics != nil {
			a.Metrics.ObserveError(outcome.String())
		}
		return Result{Outcome: outcome, Applied: applied, Elapsed: time.Since(started)}, err
	}

	db, err := a.Target.Open(ctx)
	if err != nil {
		return fail(Failed, 0, fmt.Errorf("migrate/apply: opening connection: %w", err))
	}
	defer db.Close()

	earliest := earliestDefinedName(a.Defined)

	applied, err := remote.New(db).GetAppliedMigrations(ctx, earliest)
	if err != nil {
		return fail(Failed, 0, fmt.Errorf("migrate/apply: reading registry: %w", err))
	}
	pending, err := merge.Merge(loader.New(), a.Defined, applied)
	if err != nil {
		return fail(Failed, 0, fmt.Errorf("migrate/apply: merging: %w", err))
	}
	resolve.Resolve(pending)
	p := plan.New(pending)

	logger.Log(migrate.LogPending{Migrations: pending})

	valid := validate.Validate(pending, earliest, p, phase)
	for _, m := range pending {
		for _, d := range m.Diagnostics {
			logger.Log(migrate.LogDiagnostic{Migration: m.Name, Diagnostic: d})
		}
	}

	switch {
	case len(pending) == 0:
		logger.Log(migrate.LogMessage{Text: "Nothing pending; nothing to do."})
		return Result{Outcome: Successful, Elapsed: time.Since(started)}, nil
	case p.IsEmpty(phase):
		logger.Log(migrate.LogMessage{Text: fmt.Sprintf("Plan is empty for phase %s; nothing to do.", phase)})
		return Result{Outcome: Successful, Elapsed: time.Since(started)}, nil
	case !valid:
		if a.Metrics != nil {
			a.Metrics.ObserveError("Validation")
		}
		logger.Log(migrate.LogMessage{Text: "Validation failed; stopping before executing anything."})
		return Result{Outcome: Successful, Elapsed: time.Since(started)}, nil
	case p.IsCoreRequired() && !a.AllowCorePhase:
		logger.Log(migrate.LogMessage{Text: "Core phase is required by this plan but AllowCorePhase is false; stopping."})
		return Result{Outcome: Successful, Elapsed: time.Since(started)}, nil
	}

	if a.WhatIf {
		logger.Log(migrate.LogMessage{Text: "What-if mode: plan computed and validated, nothing executed."})
		return Result{Outcome: Successful, Elapsed: time.Since(started)}, nil
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return fail(Failed, 0, fmt.Errorf("migrate/apply: acquiring connection: %w", err))
	}
	defer conn.Close()

	count := 0
	for _, e := range p.Entries(phase) {
		if a.Errors != nil && a.Errors.HasErrors() {
			return Result{Outcome: Incomplete, Applied: count, Elapsed: time.Since(started)}, nil
		}
		text := e.Migration.ContentFor(e.ContentPhase).Sql
		if strings.TrimSpace(text) == "" {
			continue
		}
		logger.Log(migrate.LogStmt{Migration: e.Migration.Name, Phase: e.ContentPhase})
		if _, err := conn.ExecContext(ctx, text); err != nil {
			if ctx.Err() != nil {
				return fail(Incomplete, count, ctx.Err())
			}
			return fail(Failed, count, fmt.Errorf("migrate/apply: executing %s/%s: %w", e.Migration.Name, e.ContentPhase, err))
		}
		count++
		if a.Metrics != nil {
			a.Metrics.ObserveApplied(e.ContentPhase)
		}
		if ctx.Err() != nil {
			return Result{Outcome: Incomplete, Applied: count, Elapsed: time.Since(started)}, ctx.Err()
		}
	}
	return Result{Outcome: Successful, Applied: count, Elapsed: time.Since(started)}, nil
}

// earliestDefinedName returns the name of the first non-pseudo migration
// in a sorted defined list, or "" if there is none; it feeds both the
// registry floor query and the validator's stale-dependency check.
func earliestDefinedName(defined []*migrate.Migration) string {
	for _, m := range defined {
		if !m.IsPseudo {
			return m.Name
		}
	}
	return ""
}

func systemHeader(deployment uuid.UUID, phase migrate.Phase, t Target, startedAt time.Time) migrate.LogHeader {
	machine, _ := os.Hostname()
	userName := "unknown"
	if u, err := user.Current(); err == nil {
		userName = u.Username
	}
	return migrate.LogHeader{
		Deployment: deployment.String(),
		Phase:      phase,
		Server:     t.Server,
		Database:   t.Database,
		StartedAt:  startedAt,
		Machine:    machine,
		NumCPU:     runtime.NumCPU(),
		User:       userName,
		PID:        os.Getpid(),
		OS:         runtime.GOOS,
		Runtime:    runtime.Version(),
	}
}
