// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package migrate

import "time"

type (
	// A Logger receives structured LogEntry values as a deployment
	// progresses. It is the only logging abstraction this module defines;
	// callers (the per-database file logger in migrate/apply, a console
	// reporter, a test spy) implement it directly rather than reach for an
	// external logging framework — the teacher's core does the same.
	Logger interface {
		Log(LogEntry)
	}

	// LogEntry marks the sum type of events a Logger may receive.
	LogEntry interface {
		logEntry()
	}

	// LogHeader is emitted once per target, before any other entry.
	LogHeader struct {
		Deployment string // session correlation id
		Phase      Phase
		Server     string
		Database   string
		StartedAt  time.Time
		Machine    string
		NumCPU     int
		User       string
		PID        int
		OS         string
		Runtime    string
	}

	// LogPending is emitted once the pending list has been computed.
	LogPending struct {
		Migrations []*Migration
	}

	// LogDiagnostic is emitted once per accumulated validation diagnostic.
	LogDiagnostic struct {
		Migration string
		Diagnostic
	}

	// LogStmt is emitted immediately before a statement is sent to the
	// server for one (migration, phase) plan entry.
	LogStmt struct {
		Migration string
		Phase     Phase
	}

	// LogMessage carries one free-form line of text, such as the
	// applicator's own status messages.
	LogMessage struct {
		Text string
	}

	// LogDone is emitted once, at the end of a target's execution attempt.
	LogDone struct {
		Applied  int
		Elapsed  time.Duration
		Outcome  string // "", "[INCOMPLETE]", "[EXCEPTION]"
	}
)

func (LogHeader) logEntry()     {}
func (LogPending) logEntry()    {}
func (LogDiagnostic) logEntry() {}
func (LogStmt) logEntry()       {}
func (LogMessage) logEntry()    {}
func (LogDone) logEntry()       {}

// NopLogger discards every entry.
type NopLogger struct{}

// Log implements Logger.
func (NopLogger) Log(LogEntry) {}

var _ Logger = NopLogger{}
