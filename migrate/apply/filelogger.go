// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package apply

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"deploydb.io/deploy/migrate"
)

// invalidFilenameChars covers the characters Windows (the host OS for a
// SQL Server deployment tool) forbids in a path component, so log file
// names stay valid regardless of server/database display names (spec §6).
const invalidFilenameChars = `\/:*?"<>|`

func sanitizeFilenameComponent(s string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(invalidFilenameChars, r) {
			return '_'
		}
		return r
	}, s)
}

// FileLogger renders LogEntry values to the per-database UTF-8 log file
// format described in spec §6: a header section, a pending-migrations
// table, a validation-results block, an execution log delimited by
// "[migration phase]" markers, and a trailing summary line.
type FileLogger struct {
	f                  *os.File
	diagnosticsStarted bool
}

// NewFileLogger opens (creating or truncating) the log file for one
// target and phase, named "{server}.{database}.{phase}.log" with every
// component sanitized.
func NewFileLogger(dir, server, database string, phase migrate.Phase) (*FileLogger, error) {
	name := fmt.Sprintf("%s.%s.%s.log",
		sanitizeFilenameComponent(server),
		sanitizeFilenameComponent(database),
		sanitizeFilenameComponent(phase.String()),
	)
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("migrate/apply: opening log file: %w", err)
	}
	return &FileLogger{f: f}, nil
}

// Close flushes and closes the underlying file.
func (l *FileLogger) Close() error { return l.f.Close() }

// Log implements migrate.Logger.
func (l *FileLogger) Log(e migrate.LogEntry) {
	switch v := e.(type) {
	case migrate.LogHeader:
		fmt.Fprintf(l.f, "Deployment: %s\n", v.Deployment)
		fmt.Fprintf(l.f, "Phase: %s\n", v.Phase)
		fmt.Fprintf(l.f, "Server: %s\n", v.Server)
		fmt.Fprintf(l.f, "Database: %s\n", v.Database)
		fmt.Fprintf(l.f, "Started: %s\n", v.StartedAt.UTC().Format("2006-01-02T15:04:05Z"))
		fmt.Fprintf(l.f, "Machine: %s\n", v.Machine)
		fmt.Fprintf(l.f, "CPUs: %d\n", v.NumCPU)
		fmt.Fprintf(l.f, "User: %s\n", v.User)
		fmt.Fprintf(l.f, "PID: %d\n", v.PID)
		fmt.Fprintf(l.f, "OS: %s\n", v.OS)
		fmt.Fprintf(l.f, "Runtime: %s\n", v.Runtime)
		fmt.Fprintln(l.f)
	case migrate.LogPending:
		fmt.Fprintf(l.f, "Pending Migrations: %d\n", len(v.Migrations))
		for _, m := range v.Migrations {
			fmt.Fprintf(l.f, "  %-40s %-12s changed=%v\n", m.Name, m.State, m.HasChanged)
		}
		fmt.Fprintln(l.f)
	case migrate.LogDiagnostic:
		if !l.diagnosticsStarted {
			fmt.Fprintln(l.f, "Validation Results:")
			l.diagnosticsStarted = true
		}
		kind := "WARNING"
		if v.IsError {
			kind = "ERROR"
		}
		fmt.Fprintf(l.f, "  [%s] %s: %s\n", kind, v.Migration, v.Message)
	case migrate.LogStmt:
		fmt.Fprintf(l.f, "[%s %s]\n", v.Migration, v.Phase)
	case migrate.LogMessage:
		fmt.Fprintln(l.f, v.Text)
	case migrate.LogDone:
		marker := v.Outcome
		if marker != "" {
			marker = " " + marker
		}
		fmt.Fprintf(l.f, "\nApplied %d migration(s) in %s%s\n", v.Applied, v.Elapsed, marker)
	}
}

var _ migrate.Logger = (*FileLogger)(nil)
